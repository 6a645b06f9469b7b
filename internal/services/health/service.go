package health

import (
	"context"
	"time"
)

const defaultTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Report is the health payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewService constructs a new health service. Nil checks are ignored.
func NewService(checks map[string]Pinger) *Service {
	s := &Service{checks: map[string]Pinger{}, timeout: defaultTimeout}
	for name, p := range checks {
		if p != nil {
			s.checks[name] = p
		}
	}
	return s
}

// Status pings every dependency and reports the result of each.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true}
	if len(s.checks) == 0 {
		return report
	}
	report.Checks = make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.PingContext(cctx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = "down"
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
