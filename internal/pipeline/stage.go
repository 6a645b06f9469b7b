package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"iprisk-backend/internal/execlog"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
	"iprisk-backend/internal/stages"
)

const tracerName = "iprisk-backend/internal/pipeline"

// Summary is what a stage invocation reports back to its caller.
type Summary struct {
	AnalysisRunID string      `json:"analysisRunId"`
	Stage         stages.Name `json:"stage"`
	Status        runs.Status `json:"status,omitempty"`
	Progress      int         `json:"progressPercentage"`
	Skipped       bool        `json:"skipped,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Output        any         `json:"output,omitempty"`
}

// stageResult carries what a stage produced. input and output are stored in
// the execution log; next, when set, is invoked after the log entry is written.
type stageResult struct {
	input  any
	output any
	run    runs.Run
	next   *invoker.Task
}

type stageFunc func(ctx context.Context, run runs.Run, task invoker.Task) (stageResult, error)

// Handle runs one stage task. It satisfies invoker.Handler.
func (s *Service) Handle(ctx context.Context, task invoker.Task) error {
	_, err := s.Execute(ctx, task)
	return err
}

// Execute runs one stage task and returns its summary. Duplicate deliveries and
// tasks for runs that already moved past the stage are acknowledged and skipped.
func (s *Service) Execute(ctx context.Context, task invoker.Task) (Summary, error) {
	summary := Summary{AnalysisRunID: task.AnalysisRunID, Stage: task.Stage}
	if task.AnalysisRunID == "" || !task.Stage.Valid() {
		return summary, invoker.ErrInvalidTask
	}
	if task.RequestID != "" && telemetry.RequestIDFromContext(ctx) == "" {
		ctx = telemetry.WithRequestID(ctx, task.RequestID)
	}

	if s.Guard != nil {
		claimed, err := s.Guard.Claim(ctx, task.AnalysisRunID, task.Stage)
		if err != nil {
			return summary, fmt.Errorf("claim stage: %w", err)
		}
		if !claimed {
			metrics.IncStageDuplicate(string(task.Stage))
			telemetry.Info("pipeline.stage.duplicate", s.fields(ctx, task))
			summary.Skipped = true
			summary.Reason = "duplicate"
			return summary, nil
		}
	}

	summary, err := s.execute(ctx, task)
	if err != nil && s.Guard != nil && !errors.Is(err, ErrNotificationFailed) {
		// A claim left behind blocks redelivery until it expires.
		if rerr := s.Guard.Release(context.WithoutCancel(ctx), task.AnalysisRunID, task.Stage); rerr != nil {
			fields := s.fields(ctx, task)
			fields["error"] = util.SanitizeMessage(rerr.Error())
			telemetry.Warn("pipeline.stage.release_failed", fields)
		}
	}
	return summary, err
}

func (s *Service) execute(ctx context.Context, task invoker.Task) (Summary, error) {
	summary := Summary{AnalysisRunID: task.AnalysisRunID, Stage: task.Stage}
	run, err := s.Runs.GetByID(ctx, task.AnalysisRunID)
	if err != nil {
		return summary, fmt.Errorf("load run: %w", err)
	}
	summary.Status = run.Status
	summary.Progress = run.ProgressPercentage
	if !ready(task.Stage, run) {
		fields := s.fields(ctx, task)
		fields["status"] = string(run.Status)
		fields["progress"] = run.ProgressPercentage
		telemetry.Info("pipeline.stage.skipped", fields)
		summary.Skipped = true
		summary.Reason = "run is " + string(run.Status)
		return summary, nil
	}

	var fn stageFunc
	switch task.Stage {
	case stages.Search:
		fn = s.search
	case stages.Analysis:
		fn = s.analyze
	case stages.Report:
		fn = s.report
	case stages.Delivery:
		fn = s.deliver
	}
	return s.runStage(ctx, run, task, fn)
}

// ready reports whether run is in the state the stage starts from. Analysis and
// Report both start from analyzing and are told apart by progress.
func ready(stage stages.Name, run runs.Run) bool {
	switch stage {
	case stages.Search:
		return run.Status == runs.StatusSearching
	case stages.Analysis:
		return run.Status == runs.StatusAnalyzing && run.ProgressPercentage < ProgressAnalyzed
	case stages.Report:
		return run.Status == runs.StatusAnalyzing && run.ProgressPercentage >= ProgressAnalyzed && run.ReportGeneratedAt == nil
	case stages.Delivery:
		return run.Status == runs.StatusReviewing || run.Status == runs.StatusPreviewReady
	default:
		return false
	}
}

func (s *Service) runStage(ctx context.Context, run runs.Run, task invoker.Task, fn stageFunc) (Summary, error) {
	stage := string(task.Stage)
	summary := Summary{AnalysisRunID: run.ID, Stage: task.Stage}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "pipeline."+stage, trace.WithAttributes(
		attribute.String("analysis_run_id", run.ID),
		attribute.String("stage", stage),
	))
	defer span.End()

	metrics.IncStageStarted(stage)
	telemetry.Info("pipeline.stage.started", s.fields(ctx, task))
	start := time.Now()

	res, err := fn(ctx, run, task)
	duration := time.Since(start)
	metrics.ObserveStageDurationMs(stage, float64(duration.Milliseconds()))

	// Outcome writes and the hand-off survive cancellation of the caller.
	bookCtx := context.WithoutCancel(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
		metrics.IncStageFailed(stage)
		s.appendEntry(bookCtx, run.ID, task.Stage, execlog.OutcomeFailed, res.input, res.output, err, duration)

		fields := s.fields(ctx, task)
		fields["duration_ms"] = duration.Milliseconds()
		fields["error"] = util.SanitizeMessage(err.Error())
		if errors.Is(err, ErrNotificationFailed) {
			telemetry.Warn("pipeline.stage.notification_failed", fields)
			summary.Status = res.run.Status
			summary.Progress = res.run.ProgressPercentage
			summary.Output = res.output
			return summary, err
		}
		telemetry.Error("pipeline.stage.failed", fields)
		failed := s.failRun(bookCtx, run.ID, task.Stage, err)
		summary.Status = failed.Status
		summary.Progress = failed.ProgressPercentage
		return summary, err
	}

	s.appendEntry(bookCtx, run.ID, task.Stage, execlog.OutcomeSuccess, res.input, res.output, nil, duration)
	summary.Status = res.run.Status
	summary.Progress = res.run.ProgressPercentage
	summary.Output = res.output

	if res.next != nil {
		if err := s.Invoker.Invoke(bookCtx, *res.next); err != nil {
			err = fmt.Errorf("dispatch %s: %w", res.next.Stage, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
			metrics.IncStageFailed(stage)
			s.appendEntry(bookCtx, run.ID, task.Stage, execlog.OutcomeFailed, res.input, res.output, err, time.Since(start))
			failed := s.failRun(bookCtx, run.ID, task.Stage, err)
			summary.Status = failed.Status
			summary.Progress = failed.ProgressPercentage
			return summary, err
		}
	}

	metrics.IncStageCompleted(stage)
	fields := s.fields(ctx, task)
	fields["duration_ms"] = duration.Milliseconds()
	fields["status"] = string(res.run.Status)
	fields["progress"] = res.run.ProgressPercentage
	telemetry.Info("pipeline.stage.completed", fields)
	return summary, nil
}

// failRun moves the run to failed. A run that is already terminal is left alone.
func (s *Service) failRun(ctx context.Context, runID string, stage stages.Name, cause error) runs.Run {
	msg := fmt.Sprintf("%s stage failed: %s", stage, cause.Error())
	run, err := s.Runs.Transition(ctx, runID, runs.Update{Status: runs.StatusFailed, ErrorMessage: msg})
	if err != nil {
		telemetry.Error("pipeline.run.fail_write_failed", map[string]any{
			"request_id":      telemetry.RequestIDFromContext(ctx),
			"analysis_run_id": runID,
			"stage":           string(stage),
			"error":           util.SanitizeMessage(err.Error()),
		})
		return runs.Run{ID: runID, Status: runs.StatusFailed}
	}
	telemetry.Info("analysis_run.status", map[string]any{
		"request_id":      telemetry.RequestIDFromContext(ctx),
		"analysis_run_id": runID,
		"status":          string(run.Status),
	})
	return run
}

func (s *Service) appendEntry(ctx context.Context, runID string, stage stages.Name, outcome string, input, output any, cause error, duration time.Duration) {
	entry := execlog.Entry{
		ID:             uuid.NewString(),
		AnalysisRunID:  runID,
		StageName:      stage,
		Outcome:        outcome,
		Input:          snapshot(input),
		Output:         snapshot(output),
		DurationMillis: duration.Milliseconds(),
		CreatedAt:      s.now(),
	}
	if cause != nil {
		msg := util.SanitizeMessage(cause.Error())
		entry.ErrorMessage = &msg
	}
	if err := s.ExecLog.Append(ctx, entry); err != nil {
		telemetry.Error("pipeline.execlog.append_failed", map[string]any{
			"request_id":      telemetry.RequestIDFromContext(ctx),
			"analysis_run_id": runID,
			"stage":           string(stage),
			"error":           util.SanitizeMessage(err.Error()),
		})
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func (s *Service) fields(ctx context.Context, task invoker.Task) map[string]any {
	return map[string]any{
		"request_id":      telemetry.RequestIDFromContext(ctx),
		"analysis_run_id": task.AnalysisRunID,
		"stage":           string(task.Stage),
	}
}

// nextTask builds the task for the stage after current, carrying the request id.
func nextTask(ctx context.Context, runID string, next stages.Name) *invoker.Task {
	task := invoker.NewTask(runID, next, telemetry.RequestIDFromContext(ctx))
	return &task
}
