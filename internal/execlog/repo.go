package execlog

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidEntry = errors.New("invalid execution log entry")

// Repo appends and lists execution log entries. ListByRun returns entries in
// creation order.
type Repo interface {
	Append(ctx context.Context, entry Entry) error
	ListByRun(ctx context.Context, runID string) ([]Entry, error)
}

func validate(entry Entry) error {
	if entry.AnalysisRunID == "" {
		return fmt.Errorf("%w: missing run id", ErrInvalidEntry)
	}
	if !entry.StageName.Valid() {
		return fmt.Errorf("%w: stage %q", ErrInvalidEntry, entry.StageName)
	}
	if entry.Outcome != OutcomeSuccess && entry.Outcome != OutcomeFailed {
		return fmt.Errorf("%w: outcome %q", ErrInvalidEntry, entry.Outcome)
	}
	return nil
}
