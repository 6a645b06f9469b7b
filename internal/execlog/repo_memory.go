package execlog

import (
	"context"
	"sync"
)

// MemoryRepo stores entries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byRun map[string][]Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byRun: make(map[string][]Entry)}
}

// Append stores the entry at the end of the run's log.
func (r *MemoryRepo) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(entry); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRun[entry.AnalysisRunID] = append(r.byRun[entry.AnalysisRunID], entry)
	return nil
}

// ListByRun returns the run's entries in append order.
func (r *MemoryRepo) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.byRun[runID]...), nil
}

var _ Repo = (*MemoryRepo)(nil)
