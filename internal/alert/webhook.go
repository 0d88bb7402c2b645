// Package alert delivers operational notifications to an external webhook,
// typically a chat integration or incident pipeline.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
)

// Severity grades an event for downstream routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one notification.
type Event struct {
	Severity  Severity          `json:"severity"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives events. Delivery is best effort; failures must never block
// or fail the orchestration path.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Webhook posts events as JSON to a configured endpoint.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

// NewWebhook creates a webhook sink. When no URL is configured the returned
// sink discards events.
func NewWebhook(cfg config.WebhookConfig, logger *slog.Logger) Sink {
	if cfg.URL == "" {
		return Nop{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		w.logger.Warn("failed to marshal alert", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("failed to create alert request", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("alert delivery failed",
			slog.String("title", ev.Title),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("alert endpoint rejected event",
			slog.String("title", ev.Title),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)),
		)
	}
}
