package runs

import "context"

// Repo is the pipeline state store. Transition is the only way stages change
// a run's status; implementations apply it atomically against the stored row.
type Repo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, runID string) (Run, error)
	Transition(ctx context.Context, runID string, u Update) (Run, error)
	MarkPaid(ctx context.Context, runID string) error
	MarkNotificationSent(ctx context.Context, runID string) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error)
}
