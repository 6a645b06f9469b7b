package reports

import (
	"context"
	"sync"
)

// MemoryRepo stores reports in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byRun map[string][]Report
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byRun: make(map[string][]Report)}
}

// Create stores the report.
func (r *MemoryRepo) Create(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byRun[report.AnalysisRunID] {
		if existing.Version == report.Version {
			return ErrAlreadyExists
		}
	}
	r.byRun[report.AnalysisRunID] = append(r.byRun[report.AnalysisRunID], report)
	return nil
}

// Latest returns the highest version report for the run.
func (r *MemoryRepo) Latest(ctx context.Context, runID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest Report
	found := false
	for _, rep := range r.byRun[runID] {
		if !found || rep.Version > latest.Version {
			latest = rep
			found = true
		}
	}
	if !found {
		return Report{}, ErrNotFound
	}
	return latest, nil
}

var _ Repo = (*MemoryRepo)(nil)
