package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// pollInterval is how often a waiting Tail re-checks the file for new lines.
const pollInterval = 250 * time.Millisecond

// maxLineBytes bounds a single line when tailing from the end of the file;
// longer lines fail the read.
const maxLineBytes = 1 << 20

// TailOptions controls one Tail call.
type TailOptions struct {
	// Offset is a byte position from a previous TailResult. Negative means
	// start at the end of the file and return the last Limit lines.
	Offset int64
	// Limit caps the line count for a negative Offset. Forward reads are
	// not capped.
	Limit int
	// Wait keeps polling until a line arrives or the duration elapses.
	// Zero returns immediately.
	Wait time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the log file at path. A missing file is not an error: the result
// is empty with offset 0 so callers can poll until the daemon writes its
// first line.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result, err := read(path, opts.Offset, opts.Limit)
	if err != nil {
		return result, err
	}
	if len(result.Lines) > 0 || opts.Wait <= 0 {
		return result, nil
	}

	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
		next, err := read(path, result.Offset, 0)
		if err != nil {
			return result, err
		}
		result = next
		if len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, nil
		}
	}
}

// read performs one pass over the file. A negative offset tails the last
// limit lines; otherwise every complete line from offset onward is returned.
// The returned offset points past the last complete line consumed.
func read(path string, offset int64, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	if offset < 0 {
		return tailEnd(file, limit)
	}
	// A shrunken file means rotation or truncation; resume at the new end.
	if size := info.Size(); offset > size {
		offset = size
	}
	return readForward(file, offset)
}

func tailEnd(file *os.File, limit int) (TailResult, error) {
	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: offset}, nil
	}

	scanner := newLineScanner(file)
	ring := make([]string, limit)
	seen := 0
	for scanner.Scan() {
		ring[seen%limit] = scanner.Text()
		seen++
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	count := seen
	if count > limit {
		count = limit
	}
	lines := make([]string, 0, count)
	for i := seen - count; i < seen; i++ {
		lines = append(lines, ring[i%limit])
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

func readForward(file *os.File, offset int64) (TailResult, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A trailing fragment is a write still in flight; it stays
				// pending until its newline lands.
				return TailResult{Lines: lines, Offset: offset}, nil
			}
			return TailResult{}, fmt.Errorf("read log file: %w", err)
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
		offset += int64(len(line))
	}
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
