// Package workerproc turns queue payloads into stage invocations. It is shared
// by the long-poll worker and the Lambda worker.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingRunID indicates a task without an analysis run id.
type ErrMissingRunID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingRunID) Error() string { return "missing analysis run id" }

// ErrInvalidStage indicates a task naming an unknown stage, or a stage other
// than the one the queue serves.
type ErrInvalidStage struct {
	Meta          MessageMeta
	AnalysisRunID string
	Stage         string
}

func (e ErrInvalidStage) Error() string { return "invalid stage " + e.Stage }

// ErrProcess indicates the stage failed after the task was parsed.
type ErrProcess struct {
	AnalysisRunID string
	Stage         string
	RequestID     string
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process stage"
	}
	return "process " + e.Stage + " stage: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never be processed
// and should be deleted rather than redelivered.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingRunID
	var stage ErrInvalidStage
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing) || errors.As(err, &stage)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (invoker.Task, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return invoker.Task{}, meta, ErrEmptyBody{Meta: meta}
	}

	task, err := invoker.DecodeTask([]byte(body))
	if err != nil {
		return invoker.Task{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(task.AnalysisRunID) == "" {
		return task, meta, ErrMissingRunID{Meta: meta, RequestID: task.RequestID}
	}
	if !task.Stage.Valid() {
		return task, meta, ErrInvalidStage{Meta: meta, AnalysisRunID: task.AnalysisRunID, Stage: string(task.Stage)}
	}
	return task, meta, nil
}

type parsedTaskKey struct{}

// WithParsedTask stores a decoded task in the context for reuse.
func WithParsedTask(ctx context.Context, task invoker.Task) context.Context {
	return context.WithValue(ctx, parsedTaskKey{}, task)
}

func parsedTaskFromContext(ctx context.Context) (invoker.Task, bool) {
	if ctx == nil {
		return invoker.Task{}, false
	}
	task, ok := ctx.Value(parsedTaskKey{}).(invoker.Task)
	return task, ok
}

// HandleMessage parses, validates, and runs a task payload.
func HandleMessage(ctx context.Context, handler invoker.Handler, body string) error {
	if handler == nil {
		return errors.New("stage handler not configured")
	}

	task, ok := parsedTaskFromContext(ctx)
	if !ok {
		var err error
		task, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(task.AnalysisRunID) == "" {
		return ErrMissingRunID{Meta: ComputeMeta(body), RequestID: task.RequestID}
	}

	ctxWithRequest := telemetry.WithRequestID(ctx, task.RequestID)
	if err := handler.Handle(ctxWithRequest, task); err != nil {
		return ErrProcess{AnalysisRunID: task.AnalysisRunID, Stage: string(task.Stage), RequestID: task.RequestID, Err: err}
	}
	return nil
}
