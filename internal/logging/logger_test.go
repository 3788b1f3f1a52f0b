package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"likeness/internal/logging"
	"likeness/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "yaml"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleOutputFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	component := logging.NewComponentLogger(log, "enrollment")
	component.Info("chunk processed", logging.Int("voice_samples", 4), logging.String(logging.FieldSessionID, "sess-1"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log output failed: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "INFO enrollment: chunk processed") {
		t.Fatalf("expected component prefix in %q", line)
	}
	if !strings.Contains(line, "voice_samples=4") {
		t.Fatalf("expected attr in %q", line)
	}
	if !strings.Contains(line, "session_id=sess-1") {
		t.Fatalf("expected session id attr in %q", line)
	}
}

func TestJSONOutputUsesRenamedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info("verification stored", logging.Float64("confidence", 0.83))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log output failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &payload); err != nil {
		t.Fatalf("unmarshal log line failed: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in payload %v", key, payload)
		}
	}
	if payload["msg"] != "verification stored" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["confidence"] != 0.83 {
		t.Fatalf("unexpected confidence: %v", payload["confidence"])
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithSessionID(context.Background(), "sess-9")
	ctx = services.WithUserID(ctx, "user-3")
	ctx = services.WithRequestID(ctx, "req-abc")

	logging.WithContext(ctx, log).Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log output failed: %v", err)
	}
	line := string(data)
	for _, fragment := range []string{"session_id=sess-9", "user_id=user-3", "correlation_id=req-abc"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "vad")
	logger.Info("should not panic")
}
