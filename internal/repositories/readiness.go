package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/codfleet/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe. A failing required probe marks the
// whole report as error; a failing optional probe only degrades it.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Check    func(context.Context) error
}

type ReadinessOption func(*readinessProbe)

// WithProbeTimeout sets the timeout for checks that do not carry their own.
func WithProbeTimeout(timeout time.Duration) ReadinessOption {
	return func(p *readinessProbe) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithProbeClock(clock func() time.Time) ReadinessOption {
	return func(p *readinessProbe) {
		if clock != nil {
			p.now = clock
		}
	}
}

type readinessProbe struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

var _ HealthRepository = (*readinessProbe)(nil)

// NewReadinessProbe validates the check set once so Collect never has to.
// An empty set is allowed and always reports ok.
func NewReadinessProbe(checks []DependencyCheck, opts ...ReadinessOption) (HealthRepository, error) {
	seen := make(map[string]struct{}, len(checks))
	for i, check := range checks {
		name := strings.TrimSpace(check.Name)
		if name == "" {
			return nil, fmt.Errorf("readiness: check %d has no name", i)
		}
		if check.Check == nil {
			return nil, fmt.Errorf("readiness: check %s has no probe function", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("readiness: duplicate check %s", name)
		}
		seen[name] = struct{}{}
	}

	p := &readinessProbe{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *readinessProbe) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("readiness: context is required")
	}

	results := make([]domain.SystemHealthCheck, len(p.checks))
	var wg sync.WaitGroup
	for i, check := range p.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.probe(ctx, check)
		}()
	}
	wg.Wait()

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(p.checks)),
		GeneratedAt: p.now(),
	}
	for i, check := range p.checks {
		report.Checks[strings.TrimSpace(check.Name)] = results[i]
		report.Status = worseStatus(report.Status, results[i].Status)
	}
	return report, nil
}

func (p *readinessProbe) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	err := check.Check(probeCtx)
	if err == nil {
		// a probe that ignores its context still fails once the deadline passes
		err = probeCtx.Err()
	}
	end := p.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil {
		return result
	}

	result.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Detail = "cancelled"
	default:
		result.Detail = "unavailable"
	}
	result.Status = domain.HealthStatusError
	if check.Optional {
		result.Status = domain.HealthStatusDegraded
	}
	return result
}

func worseStatus(a, b string) string {
	rank := func(s string) int {
		switch s {
		case domain.HealthStatusError:
			return 2
		case domain.HealthStatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
