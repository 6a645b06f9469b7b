package reports

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("report not found")
	ErrAlreadyExists = errors.New("report version already exists")
)

// Repo persists reports. Versions are unique per run.
type Repo interface {
	Create(ctx context.Context, report Report) error
	Latest(ctx context.Context, runID string) (Report, error)
}
