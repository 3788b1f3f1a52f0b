package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"likeness/internal/config"
)

const userAgent = "Likeness-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyEnrollmentCompleted(ctx context.Context, userName string, strength float64) error
	NotifyVerificationCompleted(ctx context.Context, userName string, authentic bool, confidence float64) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:     topic,
		client:       client,
		enrollment:   cfg.Notifications.Enrollment,
		verification: cfg.Notifications.Verification,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	enrollment   bool
	verification bool
	errors       bool
}

func (n *ntfyService) NotifyEnrollmentCompleted(ctx context.Context, userName string, strength float64) error {
	if !n.enrollment {
		return nil
	}
	userName = strings.TrimSpace(userName)
	data := payload{
		title:   "Likeness - Enrollment Complete",
		message: fmt.Sprintf("✅ Enrollment complete: %s (profile strength %.0f%%)", userName, strength*100),
		tags:    []string{"likeness", "enroll", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVerificationCompleted(ctx context.Context, userName string, authentic bool, confidence float64) error {
	if !n.verification {
		return nil
	}
	userName = strings.TrimSpace(userName)

	var data payload
	if authentic {
		data = payload{
			title:   "Likeness - Verified",
			message: fmt.Sprintf("🔐 Verified: %s (%.0f%% confidence)", userName, confidence*100),
			tags:    []string{"likeness", "verify", "authentic"},
		}
	} else {
		data = payload{
			title:    "Likeness - Verification Rejected",
			message:  fmt.Sprintf("⚠️ Rejected: %s (%.0f%% confidence)", userName, confidence*100),
			tags:     []string{"likeness", "verify", "rejected"},
			priority: "high",
		}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Likeness - Error",
		message:  builder.String(),
		tags:     []string{"likeness", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Likeness - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"likeness", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEnrollmentCompleted(context.Context, string, float64) error { return nil }
func (noopService) NotifyVerificationCompleted(context.Context, string, bool, float64) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error          { return nil }
