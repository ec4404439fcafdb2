package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redub/internal/config"
)

const userAgent = "Redub-Go/0.1.0"

// Service defines the notification surface exposed to the worker and
// daemon. Implementations must be safe for concurrent use.
type Service interface {
	NotifyJobCompleted(ctx context.Context, sourcePath, targetLanguage string, duration time.Duration) error
	NotifyJobPartial(ctx context.Context, sourcePath string, failedSegments int) error
	NotifyJobFailed(ctx context.Context, sourcePath, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, sourcePath, targetLanguage string, duration time.Duration) error {
	sourcePath = strings.TrimSpace(sourcePath)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:   "Redub - Dub Complete",
		message: fmt.Sprintf("Dubbed %s into %s in %s", sourcePath, targetLanguage, duration),
		tags:    []string{"redub", "dub", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobPartial(ctx context.Context, sourcePath string, failedSegments int) error {
	sourcePath = strings.TrimSpace(sourcePath)
	data := payload{
		title:    "Redub - Dub Partial",
		message:  fmt.Sprintf("Dub of %s finished with %d segment(s) falling back to source audio", sourcePath, failedSegments),
		tags:     []string{"redub", "dub", "partial"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, sourcePath, reason string) error {
	sourcePath = strings.TrimSpace(sourcePath)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Redub - Dub Failed",
		message:  fmt.Sprintf("Dub of %s failed: %s", sourcePath, reason),
		tags:     []string{"redub", "dub", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Redub - Test",
		message:  "Notification system test",
		tags:     []string{"redub", "test"},
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

func (noopService) NotifyJobCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyJobPartial(context.Context, string, int) error   { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
