package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// WebhookExecutor delegates steps to an external automation endpoint. The
// endpoint receives the step name and direction and is expected to block
// until the step finished, answering 2xx on success.
type WebhookExecutor struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookExecutor creates an executor posting to the configured endpoint.
func NewWebhookExecutor(cfg config.WebhookConfig) *WebhookExecutor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &WebhookExecutor{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

type stepRequest struct {
	Step      string `json:"step"`
	Direction string `json:"direction"`
	Source    string `json:"source"`
	Target    string `json:"target"`
}

// Execute posts the step to the automation endpoint. Its signature matches
// the registry fallback so unhandled steps route here.
func (w *WebhookExecutor) Execute(ctx context.Context, step string, direction model.Direction) error {
	if w.url == "" {
		return fmt.Errorf("no automation endpoint configured for step %s", step)
	}

	body, err := json.Marshal(stepRequest{
		Step:      step,
		Direction: string(direction),
		Source:    string(direction.Source()),
		Target:    string(direction.Target()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal step request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create step request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("automation endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("automation endpoint returned %d for step %s: %s", resp.StatusCode, step, string(detail))
	}
	return nil
}
