// Package pipeline runs the IP-risk analysis stages and the intake and polling
// operations around them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/execlog"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/notify"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/reports"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/storage/object"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
	"iprisk-backend/internal/stages"
	"iprisk-backend/internal/users"
)

// Progress checkpoints written by each stage.
const (
	ProgressSubmitted = runs.InitialProgress
	ProgressSearched  = 25
	ProgressAnalyzed  = 50
	ProgressReported  = 90
	ProgressComplete  = 100
)

const (
	DefaultMaxCandidates   = 20
	DefaultScoringInterval = 500 * time.Millisecond
	searchConcurrency      = 4
	maxQueries             = 10
)

// Service wires the stages to their stores and collaborators.
type Service struct {
	Runs      runs.Repo
	Conflicts conflicts.Repo
	Reports   reports.Repo
	ExecLog   execlog.Repo
	Users     users.Repo
	Store     object.Store
	LLM       *llm.Chain
	Patents   patents.Client
	Notifier  notify.Client
	Invoker   invoker.Invoker
	Guard     invoker.Guard

	// Retry applies to patent search and notification calls. Generation calls
	// use the chain's own options.
	Retry           retry.Options
	ScoringInterval time.Duration
	MaxCandidates   int
	AppBaseURL      string
	Now             func() time.Time
}

// RunView is a run with everything the pipeline has produced for it so far.
type RunView struct {
	Run       runs.Run           `json:"run"`
	Conflicts []conflicts.Record `json:"conflicts"`
	Report    *reports.Report    `json:"report,omitempty"`
}

// Submit validates the invention, creates the run and starts Search exactly once.
func (s *Service) Submit(ctx context.Context, userID string, in InventionInput) (runs.Run, error) {
	if userID == "" {
		return runs.Run{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	in = normalizeInput(in)
	if err := ValidateInput(in); err != nil {
		return runs.Run{}, err
	}

	now := s.now()
	run := runs.Run{
		ID:                   uuid.NewString(),
		UserID:               userID,
		InventionDescription: in.Description,
		TechnicalKeywords:    in.Keywords,
		ClassificationCodes:  in.ClassificationCodes,
		Status:               runs.InitialStatus,
		ProgressPercentage:   runs.InitialProgress,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		return runs.Run{}, fmt.Errorf("create run: %w", err)
	}

	requestID := telemetry.RequestIDFromContext(ctx)
	if err := s.Invoker.Invoke(ctx, invoker.NewTask(run.ID, stages.Search, requestID)); err != nil {
		msg := "dispatch search: " + err.Error()
		if _, ferr := s.Runs.Transition(ctx, run.ID, runs.Update{Status: runs.StatusFailed, ErrorMessage: msg}); ferr != nil {
			telemetry.Error("analysis_run.fail_write_failed", map[string]any{
				"request_id":      requestID,
				"analysis_run_id": run.ID,
				"error":           util.SanitizeMessage(ferr.Error()),
			})
		}
		return run, fmt.Errorf("dispatch search: %w", err)
	}

	telemetry.Info("analysis_run.submitted", map[string]any{
		"request_id":      requestID,
		"analysis_run_id": run.ID,
		"user_id":         userID,
		"keywords":        len(in.Keywords),
		"codes":           len(in.ClassificationCodes),
	})
	return run, nil
}

// Get returns the run with its conflicts and latest report. Runs owned by
// another user are reported as not found.
func (s *Service) Get(ctx context.Context, userID, runID string) (RunView, error) {
	run, err := s.owned(ctx, userID, runID)
	if err != nil {
		return RunView{}, err
	}
	records, err := s.Conflicts.ListByRun(ctx, runID)
	if err != nil {
		return RunView{}, fmt.Errorf("list conflicts: %w", err)
	}
	if records == nil {
		records = []conflicts.Record{}
	}
	view := RunView{Run: run, Conflicts: records}
	report, err := s.Reports.Latest(ctx, runID)
	switch {
	case err == nil:
		view.Report = &report
	case errors.Is(err, reports.ErrNotFound):
	default:
		return RunView{}, fmt.Errorf("load report: %w", err)
	}
	return view, nil
}

// Executions returns the run's execution log in creation order.
func (s *Service) Executions(ctx context.Context, userID, runID string) ([]execlog.Entry, error) {
	if _, err := s.owned(ctx, userID, runID); err != nil {
		return nil, err
	}
	entries, err := s.ExecLog.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	if entries == nil {
		entries = []execlog.Entry{}
	}
	return entries, nil
}

// List returns the user's runs, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]runs.Run, error) {
	return s.Runs.ListByUser(ctx, userID, limit, offset)
}

// MarkPaid records a payment captured by billing.
func (s *Service) MarkPaid(ctx context.Context, runID string) error {
	if err := s.Runs.MarkPaid(ctx, runID); err != nil {
		return err
	}
	telemetry.Info("analysis_run.paid", map[string]any{
		"request_id":      telemetry.RequestIDFromContext(ctx),
		"analysis_run_id": runID,
	})
	return nil
}

func (s *Service) owned(ctx context.Context, userID, runID string) (runs.Run, error) {
	run, err := s.Runs.GetByID(ctx, runID)
	if err != nil {
		return runs.Run{}, err
	}
	if run.UserID != userID {
		return runs.Run{}, runs.ErrNotFound
	}
	return run, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) maxCandidates() int {
	if s.MaxCandidates > 0 {
		return s.MaxCandidates
	}
	return DefaultMaxCandidates
}

// retryOptions returns the service retry options reporting retries against provider.
func (s *Service) retryOptions(ctx context.Context, provider string) retry.Options {
	opts := s.Retry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.IncExternalRetry(provider)
		telemetry.Warn("external.retry", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"provider":   provider,
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
			"error":      util.SanitizeMessage(err.Error()),
		})
	}
	return opts
}
