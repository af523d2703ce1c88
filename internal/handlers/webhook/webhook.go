package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"flowcore/internal/codec"
	"flowcore/internal/domain"
)

const maxErrBody = 4 << 10

// Webhook posts a fired workflow and its tasks to an execution endpoint as
// one document carrying both the "workflow" and "tasks" nodes.
type Webhook struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

func New(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (h *Webhook) Dispatch(ctx context.Context, wf domain.Workflow, tasks []domain.Task) error {
	if h.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	doc := codec.NewDocument()
	doc.PutWorkflow(wf)
	doc.PutTasks(tasks)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(doc.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Workflow-Id", wf.ID().String())
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("webhook HTTP %d: %s", resp.StatusCode, string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Debug().
		Str("workflow_id", wf.ID().String()).
		Int("tasks", len(tasks)).
		Int("status", resp.StatusCode).
		Msg("workflow delivered")
	return nil
}
