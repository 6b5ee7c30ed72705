package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// SequenceRepository implements repositories.SequenceRepository on a Store.
type SequenceRepository struct {
	store *Store
}

func (r *SequenceRepository) Next(ctx context.Context, scope string, ceiling int64) (int64, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return 0, &repositories.SequenceError{Err: repositories.ErrSequenceScope}
	}
	defer r.store.lock(ctx)()

	last := r.store.data.sequences[scope]
	if ceiling > 0 && last >= ceiling {
		return 0, &repositories.SequenceError{Scope: scope, Last: last, Err: repositories.ErrSequenceExhausted}
	}
	r.store.data.sequences[scope] = last + 1
	return last + 1, nil
}

// OutboxRepository implements repositories.OutboxRepository on a Store.
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) Append(ctx context.Context, event domain.OutboxEvent) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.outbox[event.ID]; exists {
		return conflict("outbox.append", fmt.Sprintf("event %s already exists", event.ID))
	}
	r.store.data.outbox[event.ID] = event
	return nil
}

func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error) {
	defer r.store.lock(ctx)()
	due := make([]domain.OutboxEvent, 0)
	for _, event := range r.store.data.outbox {
		if event.State != domain.OutboxPending {
			continue
		}
		if !event.NextAttemptAt.IsZero() && event.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, event)
	}
	slices.SortFunc(due, func(a, b domain.OutboxEvent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string, publishedAt time.Time) error {
	defer r.store.lock(ctx)()
	event, ok := r.store.data.outbox[eventID]
	if !ok {
		return notFound("outbox.publish", eventID)
	}
	at := publishedAt
	event.State = domain.OutboxPublished
	event.PublishedAt = &at
	event.LastError = ""
	r.store.data.outbox[eventID] = event
	return nil
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, eventID string, update repositories.OutboxRetryUpdate) error {
	defer r.store.lock(ctx)()
	event, ok := r.store.data.outbox[eventID]
	if !ok {
		return notFound("outbox.retry", eventID)
	}
	event.Attempts = update.Attempts
	event.NextAttemptAt = update.NextAttemptAt
	event.LastError = update.LastError
	if update.Failed {
		event.State = domain.OutboxFailed
	}
	r.store.data.outbox[eventID] = event
	return nil
}

// Events returns every outbox entry, oldest first.
func (r *OutboxRepository) Events() []domain.OutboxEvent {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	events := make([]domain.OutboxEvent, 0, len(r.store.data.outbox))
	for _, event := range r.store.data.outbox {
		events = append(events, event)
	}
	slices.SortFunc(events, func(a, b domain.OutboxEvent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return events
}

// Registry wires every in-memory repository around one Store.
type Registry struct {
	*Store

	orders      *OrderRepository
	products    *ProductRepository
	actors      *ActorRepository
	remittances *RemittanceRepository
	expenses    *ExpenseRepository
	sequences   *SequenceRepository
	outbox      *OutboxRepository
	health      repositories.HealthRepository
}

// NewRegistry constructs an empty in-memory registry. Extra checks join the readiness report.
func NewRegistry(checks ...repositories.DependencyCheck) *Registry {
	store := NewStore()
	health, err := repositories.NewReadinessProbe(checks)
	if err != nil {
		health = failedProbe{err: err}
	}
	return &Registry{
		Store:       store,
		orders:      &OrderRepository{store: store},
		products:    &ProductRepository{store: store},
		actors:      &ActorRepository{store: store},
		remittances: &RemittanceRepository{store: store},
		expenses:    &ExpenseRepository{store: store},
		sequences:   &SequenceRepository{store: store},
		outbox:      &OutboxRepository{store: store},
		health:      health,
	}
}

var _ repositories.Registry = (*Registry)(nil)

func (r *Registry) Close(context.Context) error                    { return nil }
func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Products() repositories.ProductRepository       { return r.products }
func (r *Registry) Actors() repositories.ActorRepository           { return r.actors }
func (r *Registry) Remittances() repositories.RemittanceRepository { return r.remittances }
func (r *Registry) Expenses() repositories.ExpenseRepository       { return r.expenses }
func (r *Registry) Sequences() repositories.SequenceRepository     { return r.sequences }
func (r *Registry) Outbox() repositories.OutboxRepository          { return r.outbox }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }
func (r *Registry) OutboxEvents() []domain.OutboxEvent             { return r.outbox.Events() }

// failedProbe reports an invalid readiness check set on every Collect.
type failedProbe struct{ err error }

func (p failedProbe) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{}, p.err
}
