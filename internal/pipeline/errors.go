package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("invalid invention input")
	ErrDescriptionTooLong = fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionRunes)
	ErrNoQueries          = errors.New("no valid search queries generated")
	ErrEmptyPlan          = errors.New("mitigation plan has no actions")
	ErrInvalidScore       = errors.New("invalid conflict score")
	// ErrNotificationFailed is returned by delivery when the run completed but
	// the notification could not be sent.
	ErrNotificationFailed = errors.New("notification failed")
)
