package conflicts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores conflict records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byRun map[string][]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byRun: make(map[string][]Record)}
}

// SaveAll stores records, skipping patents already stored for the run.
func (r *MemoryRepo) SaveAll(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(records); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if r.exists(rec.AnalysisRunID, rec.PatentNumber) {
			continue
		}
		r.byRun[rec.AnalysisRunID] = append(r.byRun[rec.AnalysisRunID], rec)
	}
	return nil
}

func (r *MemoryRepo) exists(runID, patentNumber string) bool {
	for _, rec := range r.byRun[runID] {
		if rec.PatentNumber == patentNumber {
			return true
		}
	}
	return false
}

// ListByRun returns the run's records, most severe first.
func (r *MemoryRepo) ListByRun(ctx context.Context, runID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append([]Record(nil), r.byRun[runID]...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].PatentNumber < out[j].PatentNumber
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
