package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
)

// InternalTokenHeader authenticates stage calls between services.
const InternalTokenHeader = "X-Internal-Token"

// HTTPInvoker posts tasks to POST {baseURL}/internal/stages/:stage without
// waiting for the response.
type HTTPInvoker struct {
	baseURL    string
	token      string
	httpClient *http.Client
	wg         sync.WaitGroup
}

// NewHTTP builds an invoker against baseURL.
func NewHTTP(baseURL, token string, timeout time.Duration) (*HTTPInvoker, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("STAGE_BASE_URL is required for http stage transport")
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &HTTPInvoker{baseURL: baseURL, token: token, httpClient: &http.Client{Timeout: timeout}}, nil
}

// Invoke validates and encodes the task, then sends it on its own goroutine.
func (h *HTTPInvoker) Invoke(ctx context.Context, task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	payload, err := EncodeTask(task)
	if err != nil {
		return fmt.Errorf("encode stage task: %w", err)
	}
	bg := telemetry.Detached(telemetry.WithRequestID(ctx, task.RequestID))
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.post(bg, task, payload); err != nil {
			telemetry.Error("invoker.http.stage_failed", map[string]any{
				"request_id":      task.RequestID,
				"analysis_run_id": task.AnalysisRunID,
				"stage":           string(task.Stage),
				"error":           util.SanitizeMessage(err.Error()),
			})
		}
	}()
	return nil
}

// Wait blocks until every in-flight POST has returned.
func (h *HTTPInvoker) Wait() {
	h.wg.Wait()
}

func (h *HTTPInvoker) post(ctx context.Context, task Task, payload []byte) error {
	url := h.baseURL + "/internal/stages/" + string(task.Stage)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if task.RequestID != "" {
		req.Header.Set("X-Request-Id", task.RequestID)
	}
	if h.token != "" {
		req.Header.Set(InternalTokenHeader, h.token)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post stage: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stage %s returned %d: %s", task.Stage, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var _ Invoker = (*HTTPInvoker)(nil)
