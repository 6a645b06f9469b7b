// Package invoker hands a stage task to the next stage without waiting for it.
package invoker

import (
	"context"
	"errors"
)

// Invoker fires a stage. Invoke returns once the task is handed off; it never
// waits for the stage itself to finish.
type Invoker interface {
	Invoke(ctx context.Context, task Task) error
}

// Handler runs a stage for a task.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Handle(ctx context.Context, task Task) error { return f(ctx, task) }

var (
	// ErrNoHandler is returned when an in-process invoker has nothing bound.
	ErrNoHandler = errors.New("stage handler not bound")
	// ErrNoQueue is returned when a stage has no queue configured.
	ErrNoQueue = errors.New("no queue configured for stage")
	// ErrInvalidTask is returned for tasks missing a run id or with an unknown stage.
	ErrInvalidTask = errors.New("invalid stage task")
)

func validateTask(task Task) error {
	if task.AnalysisRunID == "" {
		return errors.Join(ErrInvalidTask, errors.New("missing analysis run id"))
	}
	if !task.Stage.Valid() {
		return errors.Join(ErrInvalidTask, errors.New("unknown stage "+string(task.Stage)))
	}
	return nil
}
