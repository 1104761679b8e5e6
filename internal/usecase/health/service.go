package health

import (
	"context"
	"errors"
	"time"
)

// probeTimeout bounds each component check.
const probeTimeout = 2 * time.Second

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
	// CheckTimeout indicates the component did not answer within probeTimeout.
	CheckTimeout CheckResult = "timeout"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	probes  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service. journal can be nil when journaling is disabled.
func New(model ModelChecker, journal JournalPinger) *Service {
	probes := map[string]func(context.Context) error{
		"model": model.HealthCheck,
	}
	if journal != nil {
		probes["journal"] = journal.Ping
	}
	return &Service{probes: probes, timeout: probeTimeout}
}

// Check runs every probe. Any non-ok probe degrades the report.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for name, probe := range s.probes {
		res := s.run(ctx, probe)
		report.Checks[name] = res
		if res != CheckOK {
			report.Status = Degraded
		}
	}
	return report
}

func (s *Service) run(ctx context.Context, probe func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Probes may ignore ctx (the classifier waits on its session lock),
	// so the deadline is enforced here rather than trusted to the probe.
	done := make(chan error, 1)
	go func() { done <- probe(ctx) }()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return CheckOK
		case errors.Is(err, context.DeadlineExceeded):
			return CheckTimeout
		default:
			return CheckError
		}
	case <-ctx.Done():
		return CheckTimeout
	}
}
