package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

const (
	outboxCheckName        = "outbox"
	defaultOutboxLagBudget = 5 * time.Minute
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	// Outbox is optional. When set, events overdue by more than OutboxLag degrade the report.
	Outbox    repositories.OutboxRepository
	OutboxLag time.Duration
	Clock     func() time.Time
	Build     BuildInfo
}

type systemService struct {
	probes    repositories.HealthRepository
	outbox    repositories.OutboxRepository
	outboxLag time.Duration
	now       func() time.Time
	build     BuildInfo
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	lag := deps.OutboxLag
	if lag <= 0 {
		lag = defaultOutboxLagBudget
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	return &systemService{
		probes:    deps.HealthRepository,
		outbox:    deps.Outbox,
		outboxLag: lag,
		now:       func() time.Time { return clock().UTC() },
		build:     build,
	}, nil
}

// HealthReport merges dependency probes with the order event backlog and stamps build metadata.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.probes.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, fmt.Errorf("%w: readiness probes: %w", ErrDependencyFailure, err)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}

	now := s.now()
	if s.outbox != nil {
		report.Checks[outboxCheckName] = s.outboxBacklog(ctx, now)
	}

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.CommitSHA == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	report.Uptime = now.Sub(s.build.StartedAt)
	report.Status = overallStatus(report.Status, report.Checks)
	return report, nil
}

// outboxBacklog looks for any pending event whose next attempt is older than the lag budget.
func (s *systemService) outboxBacklog(ctx context.Context, now time.Time) domain.SystemHealthCheck {
	check := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: "ok", CheckedAt: now}
	stale, err := s.outbox.ListDue(ctx, now.Add(-s.outboxLag), 1)
	check.Latency = s.now().Sub(now)
	switch {
	case err != nil:
		check.Status = domain.HealthStatusDegraded
		check.Detail = "unavailable"
		check.Error = err.Error()
	case len(stale) > 0:
		check.Status = domain.HealthStatusDegraded
		check.Detail = fmt.Sprintf("event %s overdue since %s", stale[0].ID, stale[0].NextAttemptAt.UTC().Format(time.RFC3339))
	}
	return check
}

func overallStatus(reported string, checks map[string]domain.SystemHealthCheck) string {
	status := strings.TrimSpace(reported)
	if status == "" {
		status = domain.HealthStatusOK
	}
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusDegraded:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
