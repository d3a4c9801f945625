// Package health reports readiness of the configured backend.
package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// New creates a Service checking the backend under the name "backend".
func New(backend Pinger) *Service {
	return &Service{
		checks:  map[string]Pinger{"backend": backend},
		timeout: DefaultTimeout,
	}
}

// With adds a named check.
func (s *Service) With(name string, p Pinger) *Service {
	s.checks[name] = p
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for name, p := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.Ping(cctx)
		cancel()
		if err != nil {
			checks[name] = CheckError
			status = Degraded
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
