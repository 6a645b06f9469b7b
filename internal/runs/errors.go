package runs

import "errors"

var (
	ErrNotFound               = errors.New("analysis run not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidProgress        = errors.New("invalid progress")
	ErrProgressRegression     = errors.New("progress cannot decrease")
	ErrInvalidRiskScore       = errors.New("risk score out of range")
	ErrReportAlreadyGenerated = errors.New("report already generated")
	ErrConcurrentUpdate       = errors.New("analysis run changed concurrently")
)
