package runs

import (
	"fmt"
	"time"

	"iprisk-backend/internal/shared/util"
)

// Status is the pipeline position of a run.
type Status string

const (
	StatusSearching    Status = "searching"
	StatusAnalyzing    Status = "analyzing"
	StatusReviewing    Status = "reviewing"
	StatusPreviewReady Status = "preview_ready"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// forward lists the statuses each status may advance to. failed is reachable
// from every non-terminal status and is handled separately.
var forward = map[Status][]Status{
	StatusSearching:    {StatusAnalyzing},
	StatusAnalyzing:    {StatusReviewing, StatusPreviewReady},
	StatusReviewing:    {StatusPreviewReady, StatusComplete},
	StatusPreviewReady: {StatusComplete},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSearching, StatusAnalyzing, StatusReviewing, StatusPreviewReady, StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status writes are accepted.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether a run in from may be written with status to.
// Re-writing the current status is allowed for progress updates while the run
// is still in flight.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusFailed || from == to {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply validates u against the run's current state and returns the updated run.
// The receiver is not modified.
func (r Run) Apply(u Update, now time.Time) (Run, error) {
	if !CanTransition(r.Status, u.Status) {
		return Run{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, u.Status)
	}

	next := r
	next.Status = u.Status
	next.UpdatedAt = now

	if u.Status == StatusFailed {
		msg := util.SanitizeMessage(u.ErrorMessage)
		if msg == "" {
			msg = "stage failed"
		}
		next.ErrorMessage = &msg
		return next, nil
	}

	if u.Progress != nil {
		p := *u.Progress
		if p < 0 || p > 100 {
			return Run{}, fmt.Errorf("%w: %d out of range", ErrInvalidProgress, p)
		}
		if p < r.ProgressPercentage {
			return Run{}, fmt.Errorf("%w: %d -> %d", ErrProgressRegression, r.ProgressPercentage, p)
		}
		next.ProgressPercentage = p
	}
	if next.ProgressPercentage == 100 && next.Status != StatusComplete {
		return Run{}, fmt.Errorf("%w: 100 requires %s", ErrInvalidProgress, StatusComplete)
	}
	if next.Status == StatusComplete {
		if next.ProgressPercentage != 100 {
			return Run{}, fmt.Errorf("%w: %s requires 100", ErrInvalidProgress, StatusComplete)
		}
		completedAt := now
		next.CompletedAt = &completedAt
	}

	if u.RiskScore != nil {
		score := *u.RiskScore
		if score < 0 || score > 100 {
			return Run{}, fmt.Errorf("%w: %d", ErrInvalidRiskScore, score)
		}
		next.RiskScore = &score
	}
	if u.RiskLevel != "" {
		next.RiskLevel = u.RiskLevel
	}
	if u.ReportGeneratedAt != nil {
		if r.ReportGeneratedAt != nil {
			return Run{}, ErrReportAlreadyGenerated
		}
		generatedAt := *u.ReportGeneratedAt
		next.ReportGeneratedAt = &generatedAt
	}
	return next, nil
}
