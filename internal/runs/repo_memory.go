package runs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Run
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = clone(run)
	return nil
}

// GetByID returns a run by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return clone(run), nil
}

// Transition validates and applies u under the write lock.
func (r *MemoryRepo) Transition(ctx context.Context, runID string, u Update) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	next, err := run.Apply(u, r.now())
	if err != nil {
		return Run{}, err
	}
	r.byID[runID] = next
	return clone(next), nil
}

// MarkPaid flags the run as paid.
func (r *MemoryRepo) MarkPaid(ctx context.Context, runID string) error {
	return r.setFlag(ctx, runID, func(run *Run) { run.Paid = true })
}

// MarkNotificationSent records that the completion notification went out.
func (r *MemoryRepo) MarkNotificationSent(ctx context.Context, runID string) error {
	return r.setFlag(ctx, runID, func(run *Run) { run.NotificationSent = true })
}

func (r *MemoryRepo) setFlag(ctx context.Context, runID string, set func(*Run)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	set(&run)
	run.UpdatedAt = r.now()
	r.byID[runID] = run
	return nil
}

// ListByUser lists runs for a user ordered newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	var out []Run
	for _, run := range r.byID {
		if run.UserID == userID {
			out = append(out, clone(run))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Run{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func clone(run Run) Run {
	run.TechnicalKeywords = append([]string(nil), run.TechnicalKeywords...)
	run.ClassificationCodes = append([]string(nil), run.ClassificationCodes...)
	return run
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ Repo = (*MemoryRepo)(nil)
