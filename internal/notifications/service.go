package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songforge/internal/config"
	"songforge/internal/humanreq"
	"songforge/internal/session"
)

const userAgent = "Songforge-Go/0.1.0"

// Service defines the notification surface exposed to the engine and
// background sweeper.
type Service interface {
	NotifySongCommitted(ctx context.Context, sess *session.Session) error
	NotifySessionsExpired(ctx context.Context, count int) error
	NotifyHumanRequestReceived(ctx context.Context, req *humanreq.Request) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		commit:       cfg.Notifications.Commit,
		expiry:       cfg.Notifications.Expiry,
		humanRequest: cfg.Notifications.HumanRequest,
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
	commit       bool
	expiry       bool
	humanRequest bool
}

func (n *ntfyService) NotifySongCommitted(ctx context.Context, sess *session.Session) error {
	if !n.commit || sess == nil || sess.Artifact == nil {
		return nil
	}
	data := payload{
		title: "Songforge - Song Ready",
		message: fmt.Sprintf("Song ready: %s (%s, %d BPM)",
			strings.TrimSpace(sess.Intake.Title), sess.Artifact.Key, sess.Artifact.BPM),
		tags:     []string{"songforge", "session", "committed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionsExpired(ctx context.Context, count int) error {
	if !n.expiry || count <= 0 {
		return nil
	}
	data := payload{
		title:   "Songforge - Sessions Expired",
		message: fmt.Sprintf("Abandoned %d idle sessions", count),
		tags:    []string{"songforge", "session", "expired"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyHumanRequestReceived(ctx context.Context, req *humanreq.Request) error {
	if !n.humanRequest || req == nil {
		return nil
	}
	data := payload{
		title: "Songforge - Human Request",
		message: fmt.Sprintf("New production request: %s (%s)\nTheme: %s",
			req.Title, req.Genre, req.Theme),
		tags: []string{"songforge", "human-request", "received"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Songforge - Test",
		message:  "Notification system test",
		tags:     []string{"songforge", "test"},
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

func (noopService) NotifySongCommitted(context.Context, *session.Session) error        { return nil }
func (noopService) NotifySessionsExpired(context.Context, int) error                   { return nil }
func (noopService) NotifyHumanRequestReceived(context.Context, *humanreq.Request) error { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
