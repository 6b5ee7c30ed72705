// Package memory provides process-local repository implementations used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// Error implements repositories.RepositoryError for the in-memory backend.
type Error struct {
	op       string
	msg      string
	notFound bool
	conflict bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("memory.%s: %s", e.op, e.msg)
}

func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = (*Error)(nil)

func notFound(op, id string) error {
	return &Error{op: op, msg: fmt.Sprintf("%s not found", id), notFound: true}
}

func conflict(op, msg string) error {
	return &Error{op: op, msg: msg, conflict: true}
}

type state struct {
	orders      map[string]domain.Order
	products    map[string]domain.Product
	actors      map[string]domain.Actor
	remittances map[string]domain.Remittance
	expenses    map[string]domain.Expense
	sequences   map[string]int64
	outbox      map[string]domain.OutboxEvent
}

func newState() state {
	return state{
		orders:      map[string]domain.Order{},
		products:    map[string]domain.Product{},
		actors:      map[string]domain.Actor{},
		remittances: map[string]domain.Remittance{},
		expenses:    map[string]domain.Expense{},
		sequences:   map[string]int64{},
		outbox:      map[string]domain.OutboxEvent{},
	}
}

func (s state) clone() state {
	out := state{
		orders:      maps.Clone(s.orders),
		products:    make(map[string]domain.Product, len(s.products)),
		actors:      maps.Clone(s.actors),
		remittances: maps.Clone(s.remittances),
		expenses:    maps.Clone(s.expenses),
		sequences:   maps.Clone(s.sequences),
		outbox:      maps.Clone(s.outbox),
	}
	for id, product := range s.products {
		out.products[id] = cloneProduct(product)
	}
	return out
}

func cloneProduct(p domain.Product) domain.Product {
	p.RegionStock = domain.CloneRegionStock(p.RegionStock)
	p.EnabledCountries = append([]string(nil), p.EnabledCountries...)
	return p
}

type txMarker struct{}

// Store holds every collection behind a single lock. Transactions serialise on that lock and
// restore a snapshot when the callback fails; standalone calls take the lock per operation.
type Store struct {
	mu   sync.Mutex
	data state
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// RunInTx implements repositories.UnitOfWork.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(txMarker{}).(*Store)
	return ok
}

func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Seed helpers load fixtures without going through services.

func (s *Store) SeedActors(actors ...domain.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, actor := range actors {
		s.data.actors[actor.ID] = actor
	}
}

func (s *Store) SeedProducts(products ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, product := range products {
		s.data.products[product.ID] = cloneProduct(product)
	}
}

func (s *Store) SeedOrders(orders ...domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range orders {
		s.data.orders[order.ID] = order
	}
}
