package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders records as single text lines shaped for a human
// watching the daemon:
//
//	2026-01-02T15:04:05Z INFO enroll: chunk processed session_id=s1 voice_samples=4
//
// The component attribute becomes the message prefix instead of a key=value
// pair. Group attributes flatten into dotted keys.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string  // dot-joined groups opened by WithGroup
	bound     []field // fields fixed by WithAttrs, flattened at bind time
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := make([]field, 0, len(h.bound)+record.NumAttrs())
	fields = append(fields, h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	// The first component field names the log line; the rest are dropped so
	// the prefix stays unambiguous.
	component := ""
	rest := fields[:0]
	for _, f := range fields {
		if f.key == FieldComponent {
			if component == "" {
				component = f.text(false)
			}
			continue
		}
		rest = append(rest, f)
	}

	line := make([]byte, 0, 160)
	line = ts.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, ' ')
	line = append(line, levelLabel(record.Level)...)
	line = append(line, ' ')
	if component != "" {
		line = append(line, component...)
		line = append(line, ": "...)
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		line = append(line, msg...)
	} else {
		line = append(line, "(no message)"...)
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		if f.key == "" {
			continue
		}
		line = append(line, ' ')
		line = append(line, f.key...)
		line = append(line, '=')
		line = append(line, f.text(true)...)
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.bound = make([]field, 0, len(h.bound)+len(attrs))
	clone.bound = append(clone.bound, h.bound...)
	for _, attr := range attrs {
		clone.bound = appendField(clone.bound, h.prefix, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinPrefix(h.prefix, name)
	return &clone
}

type field struct {
	key string
	val slog.Value
}

// appendField resolves attr and flattens group members into dotted keys.
func appendField(fields []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := joinPrefix(prefix, attr.Key)
		for _, member := range attr.Value.Group() {
			fields = appendField(fields, next, member)
		}
		return fields
	}
	return append(fields, field{key: joinPrefix(prefix, attr.Key), val: attr.Value})
}

func joinPrefix(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// text renders the field value. Quoting applies only to key=value output; the
// component prefix renders raw.
func (f field) text(quoted bool) string {
	v := f.val.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return maybeQuote(v.String(), quoted)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			return maybeQuote(err.Error(), quoted)
		}
		return maybeQuote(fmt.Sprint(v.Any()), quoted)
	}
}

func maybeQuote(s string, quoted bool) string {
	if !quoted {
		return s
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
