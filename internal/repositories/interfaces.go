package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/codfleet/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Actors() ActorRepository
	Remittances() RemittanceRepository
	Expenses() ExpenseRepository
	Sequences() SequenceRepository
	Outbox() OutboxRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. Repository calls made with
// the context handed to fn participate in the same transaction; nested calls join the outer one.
// fn may be invoked more than once when the backend retries on contention, so it must derive all
// decisions from reads performed inside it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders and provides the scoped queries used by services.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindRecentDuplicate returns the newest order matching the query, or a not-found RepositoryError.
	FindRecentDuplicate(ctx context.Context, query DuplicateQuery) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// Scan returns every order matching the filter, ignoring pagination. Used by projections.
	Scan(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// ProductRepository stores the inventory slice of catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
}

// ActorRepository resolves actor profiles (role, workspace chain, location, permissions).
type ActorRepository interface {
	FindByID(ctx context.Context, actorID string) (domain.Actor, error)
	Upsert(ctx context.Context, actor domain.Actor) error
}

// RemittanceRepository stores driver to manager cash hand-offs.
type RemittanceRepository interface {
	Insert(ctx context.Context, remittance domain.Remittance) error
	Update(ctx context.Context, remittance domain.Remittance) error
	FindByID(ctx context.Context, remittanceID string) (domain.Remittance, error)
	List(ctx context.Context, filter RemittanceListFilter) (domain.CursorPage[domain.Remittance], error)
}

// ExpenseRepository stores operating expenses consumed by the reconciler.
type ExpenseRepository interface {
	Insert(ctx context.Context, expense domain.Expense) error
	List(ctx context.Context, filter ExpenseListFilter) ([]domain.Expense, error)
}

// OutboxRepository stores lifecycle events awaiting publication.
type OutboxRepository interface {
	Append(ctx context.Context, event domain.OutboxEvent) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string, publishedAt time.Time) error
	MarkRetry(ctx context.Context, eventID string, update OutboxRetryUpdate) error
}

// SequenceRepository issues gapless numbers per scope, starting at 1. Inside a unit of work the
// increment commits with the caller's writes.
type SequenceRepository interface {
	// Next fails with a *SequenceError wrapping ErrSequenceExhausted once the value would pass
	// ceiling. A ceiling of zero or less is unbounded.
	Next(ctx context.Context, scope string, ceiling int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// DuplicateQuery identifies a resubmitted order.
type DuplicateQuery struct {
	CreatedBy     string
	CustomerPhone string
	Details       string
	Since         time.Time
}

type OrderListFilter struct {
	WorkspaceOwnerID string
	CreatedBy        string
	DriverID         string
	Unassigned       bool
	Country          string
	ProductID        string
	Status           []string
	ShipmentStatus   []string
	DateRange        domain.RangeQuery[time.Time]
	// UpdatedSince keeps orders whose last write is at or after the instant.
	UpdatedSince *time.Time
	Pagination   domain.Pagination
}

// MaxFilterValues is the largest value list a single "in" filter may carry (Firestore's limit).
const MaxFilterValues = 30

// ErrFilterTooBroad rejects filters that the backend cannot express in one query.
var ErrFilterTooBroad = errors.New("filter has too many values")

// Validate reports filters whose value lists exceed MaxFilterValues.
func (f OrderListFilter) Validate() error {
	for field, values := range map[string][]string{"status": f.Status, "shipmentStatus": f.ShipmentStatus} {
		if len(values) > MaxFilterValues {
			return fmt.Errorf("%w: %s lists %d values, at most %d allowed", ErrFilterTooBroad, field, len(values), MaxFilterValues)
		}
	}
	return nil
}

type ProductListFilter struct {
	WorkspaceOwnerID string
}

type RemittanceListFilter struct {
	DriverID         string
	ManagerID        string
	WorkspaceOwnerID string
	Status           []string
	Pagination       domain.Pagination
}

type ExpenseListFilter struct {
	WorkspaceOwnerID string
	DateRange        domain.RangeQuery[time.Time]
}

// OutboxRetryUpdate records a failed publish attempt. Failed marks the event as parked.
type OutboxRetryUpdate struct {
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Failed        bool
}
