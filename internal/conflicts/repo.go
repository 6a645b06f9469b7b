package conflicts

import (
	"context"
	"errors"
	"fmt"
)

var ErrSeverityOutOfRange = errors.New("conflict severity out of range")

// Repo persists conflict records. SaveAll ignores records whose patent number
// is already stored for the run, so a redelivered stage does not accumulate.
type Repo interface {
	SaveAll(ctx context.Context, records []Record) error
	ListByRun(ctx context.Context, runID string) ([]Record, error)
}

func validate(records []Record) error {
	for _, rec := range records {
		if rec.Severity < MinSeverity || rec.Severity > MaxSeverity {
			return fmt.Errorf("%w: %s severity %d", ErrSeverityOutOfRange, rec.PatentNumber, rec.Severity)
		}
	}
	return nil
}
