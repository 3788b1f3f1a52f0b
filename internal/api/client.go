package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrDaemonUnavailable marks failures to reach the daemon API at all.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// Client talks to the daemon's HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the given bind address. A missing scheme
// defaults to http. Returns nil when the bind address is empty.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - chunk processing and verification block on model
		// inference until the caller cancels.
		http: &http.Client{},
	}, nil
}

// Health probes daemon liveness.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.getJSON(ctx, "/api/health", nil, &out)
	return out, err
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.getJSON(ctx, "/api/status", nil, &out)
	return out, err
}

// DatabaseHealth fetches profile database diagnostics.
func (c *Client) DatabaseHealth(ctx context.Context) (DatabaseHealthResponse, error) {
	var out DatabaseHealthResponse
	err := c.getJSON(ctx, "/api/db/health", nil, &out)
	return out, err
}

// StartEnrollment opens an enrollment session.
func (c *Client) StartEnrollment(ctx context.Context, req EnrollStartRequest) (EnrollStartResponse, error) {
	var out EnrollStartResponse
	err := c.postJSON(ctx, "/api/enroll/start", req, &out)
	return out, err
}

// SendChunk submits one recorded chunk to an open session.
func (c *Client) SendChunk(ctx context.Context, sessionID string, chunk []byte) (ChunkResponse, error) {
	var out ChunkResponse
	req := EnrollChunkRequest{
		SessionID: sessionID,
		Data:      base64.StdEncoding.EncodeToString(chunk),
	}
	err := c.postJSON(ctx, "/api/enroll/chunk", req, &out)
	return out, err
}

// CompleteEnrollment finalizes an enrollment session.
func (c *Client) CompleteEnrollment(ctx context.Context, sessionID string) (CompletionResponse, error) {
	var out CompletionResponse
	err := c.postJSON(ctx, "/api/enroll/complete", EnrollCompleteRequest{SessionID: sessionID}, &out)
	return out, err
}

// ProfileStrength fetches a user's cross-session strength report.
func (c *Client) ProfileStrength(ctx context.Context, userID string) (StrengthResponse, error) {
	var out StrengthResponse
	values := url.Values{}
	values.Set("user_id", userID)
	err := c.getJSON(ctx, "/api/profile/strength", values, &out)
	return out, err
}

// Verify uploads content for verification against a user's profile.
func (c *Client) Verify(ctx context.Context, userID string, content []byte, filename string) (VerifyResponse, error) {
	var out VerifyResponse
	if c == nil {
		return out, ErrDaemonUnavailable
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("user_id", userID); err != nil {
		return out, fmt.Errorf("encode user id: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return out, fmt.Errorf("create upload part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return out, fmt.Errorf("write upload part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return out, fmt.Errorf("finalize upload: %w", err)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/verify"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	err = c.do(req, &out)
	return out, err
}

// LogTail reads daemon log lines. A negative offset tails the last limit
// lines; wait long-polls for new lines when none are pending. Limit zero with
// a negative offset skips straight to the end of the log.
func (c *Client) LogTail(ctx context.Context, offset int64, limit int, wait time.Duration) (LogTailResponse, error) {
	var out LogTailResponse
	if limit < 0 {
		limit = 0
	}
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(offset, 10))
	values.Set("limit", strconv.Itoa(limit))
	if wait > 0 {
		values.Set("wait_ms", strconv.FormatInt(wait.Milliseconds(), 10))
	}
	err := c.getJSON(ctx, "/api/logs", values, &out)
	return out, err
}

// History fetches a user's verification history, newest first.
func (c *Client) History(ctx context.Context, userID string, limit int) (HistoryResponse, error) {
	var out HistoryResponse
	values := url.Values{}
	values.Set("user_id", userID)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	err := c.getJSON(ctx, "/api/verify/history", values, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}
	ref := &url.URL{Path: path}
	if values != nil {
		ref.RawQuery = values.Encode()
	}
	endpoint := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &failure) == nil && strings.TrimSpace(failure.Error) != "" {
			return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, failure.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsDaemonUnavailable reports whether err means the daemon cannot be reached,
// as opposed to the daemon rejecting the request.
func IsDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}
