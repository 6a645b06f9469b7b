package invoker

import (
	"context"
	"sync"

	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
)

// AsyncInvoker runs stages in-process on their own goroutine.
type AsyncInvoker struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// NewAsync returns an invoker; Bind must be called before the first Invoke.
func NewAsync() *AsyncInvoker {
	return &AsyncInvoker{}
}

// Bind sets the handler that runs tasks.
func (a *AsyncInvoker) Bind(h Handler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Invoke starts the stage on a detached context that keeps only the request id.
func (a *AsyncInvoker) Invoke(ctx context.Context, task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h == nil {
		return ErrNoHandler
	}

	bg := telemetry.Detached(telemetry.WithRequestID(ctx, task.RequestID))
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := h.Handle(bg, task); err != nil {
			telemetry.Error("invoker.async.stage_failed", map[string]any{
				"request_id":      task.RequestID,
				"analysis_run_id": task.AnalysisRunID,
				"stage":           string(task.Stage),
				"error":           util.SanitizeMessage(err.Error()),
			})
		}
	}()
	return nil
}

// Wait blocks until every stage started by this invoker, including stages
// those stages invoked, has returned.
func (a *AsyncInvoker) Wait() {
	a.wg.Wait()
}
