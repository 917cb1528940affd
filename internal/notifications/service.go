package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediasync/internal/config"
)

const userAgent = "mediasync/0.1.0"

// Summary describes a finished run for notification purposes.
type Summary struct {
	Mode        string
	DryRun      bool
	Listed      int
	Transferred int
	Duplicates  int
	Failed      int
	Deleted     int
	AlreadyGone int
	Initialized int
	Bytes       int64
	Duration    time.Duration
}

// Service defines the notification surface used by the runner.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary Summary) error
	NotifyRunFailed(ctx context.Context, mode string, err error) error
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

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
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
	toggles  config.Notifications
}

func (n *ntfyService) enabled(mode string) bool {
	switch mode {
	case "sync":
		return n.toggles.Sync
	case "prune":
		return n.toggles.Prune
	case "bootstrap":
		return n.toggles.Bootstrap
	default:
		return false
	}
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary Summary) error {
	if summary.DryRun || !n.enabled(summary.Mode) {
		return nil
	}
	if summary.Mode == "sync" && summary.Transferred+summary.Duplicates+summary.Failed < n.toggles.SyncMinFiles {
		return nil
	}

	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var message string
	switch summary.Mode {
	case "sync":
		message = fmt.Sprintf("Synced %d file(s), %s in %s", summary.Transferred, humanize.IBytes(uint64(max(summary.Bytes, 0))), duration)
		if summary.Duplicates > 0 {
			message += fmt.Sprintf("\n%d already present locally", summary.Duplicates)
		}
	case "prune":
		message = fmt.Sprintf("Pruned %d remote file(s), freed %s in %s", summary.Deleted, humanize.IBytes(uint64(max(summary.Bytes, 0))), duration)
		if summary.AlreadyGone > 0 {
			message += fmt.Sprintf("\n%d were already gone", summary.AlreadyGone)
		}
	case "bootstrap":
		message = fmt.Sprintf("Tracked %d existing remote file(s) of %d listed", summary.Initialized, summary.Listed)
	}

	title := fmt.Sprintf("mediasync - %s complete", titleCase(summary.Mode))
	tags := []string{"mediasync", summary.Mode, "completed"}
	priority := ""
	if summary.Failed > 0 {
		title += " (with errors)"
		message += fmt.Sprintf("\n%d file(s) failed", summary.Failed)
		tags = []string{"mediasync", summary.Mode, "warning"}
		priority = "high"
	}

	return n.send(ctx, payload{title: title, message: message, tags: tags, priority: priority})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, mode string, err error) error {
	if !n.toggles.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Run failed")
	if mode = strings.TrimSpace(mode); mode != "" {
		builder.WriteString(" during ")
		builder.WriteString(mode)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "mediasync - Error",
		message:  builder.String(),
		tags:     []string{"mediasync", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "mediasync - Test",
		message:  "Notification system test",
		tags:     []string{"mediasync", "test"},
		priority: "low",
	})
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

func titleCase(mode string) string {
	if mode == "" {
		return "Run"
	}
	return strings.ToUpper(mode[:1]) + mode[1:]
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, Summary) error    { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
