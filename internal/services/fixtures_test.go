package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
	"github.com/codfleet/api/internal/repositories/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%04d", n)
	}
}

type logEntry struct {
	event  string
	fields map[string]any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) Log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{event: event, fields: fields})
	l.mu.Unlock()
}

func (l *captureLogger) Has(event string) bool {
	return l.Count(event) > 0
}

func (l *captureLogger) Count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.entries {
		if entry.event == event {
			n++
		}
	}
	return n
}

// Workspace fixture: owner-1 runs a KSA workspace with an agent, two managers and two drivers.
// owner-2 is an unrelated workspace.
var (
	testAdmin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	testOwner    = domain.Actor{ID: "owner-1", Role: domain.RoleUser, Country: "KSA", City: "Riyadh"}
	testAgent    = domain.Actor{ID: "agent-1", Role: domain.RoleAgent, CreatedBy: "owner-1", Country: "KSA"}
	testManager  = domain.Actor{ID: "manager-1", Role: domain.RoleManager, CreatedBy: "owner-1", Country: "KSA", CanCreateOrders: true}
	testViewer   = domain.Actor{ID: "manager-2", Role: domain.RoleManager, CreatedBy: "owner-1", Country: "KSA"}
	testDriver   = domain.Actor{ID: "driver-1", Role: domain.RoleDriver, CreatedBy: "manager-1", Country: "KSA", City: "Riyadh"}
	testDriver2  = domain.Actor{ID: "driver-2", Role: domain.RoleDriver, CreatedBy: "owner-1", Country: "KSA", City: "Jeddah"}
	testOwner2   = domain.Actor{ID: "owner-2", Role: domain.RoleUser, Country: "UAE"}
	testDriverX  = domain.Actor{ID: "driver-x", Role: domain.RoleDriver, CreatedBy: "owner-2", Country: "UAE", City: "Dubai"}
	testManagerX = domain.Actor{ID: "manager-x", Role: domain.RoleManager, CreatedBy: "owner-2", Country: "UAE"}
)

func testProduct() domain.Product {
	return domain.Product{
		ID:               "prod-1",
		Name:             "Desk Lamp",
		SKU:              "LAMP-1",
		WorkspaceOwnerID: testOwner.ID,
		Price:            25,
		EnabledCountries: []string{"KSA", "UAE"},
		RegionStock:      map[string]int{"KSA": 10, "UAE": 4},
		StockQty:         14,
		InStock:          true,
	}
}

type lifecycleFixture struct {
	t         *testing.T
	registry  *memory.Registry
	clock     *testClock
	logs      *captureLogger
	claims    ClaimStore
	wrapUnit  func(repositories.UnitOfWork) repositories.UnitOfWork
	orders    OrderLifecycle
	inventory ProductInventory
	dedup     SubmissionDeduplicator
}

type fixtureOption func(*lifecycleFixture)

func withClaimStore(store ClaimStore) fixtureOption {
	return func(f *lifecycleFixture) { f.claims = store }
}

// withUnitOfWork wraps the unit of work handed to the order lifecycle.
func withUnitOfWork(wrap func(repositories.UnitOfWork) repositories.UnitOfWork) fixtureOption {
	return func(f *lifecycleFixture) { f.wrapUnit = wrap }
}

func newLifecycleFixture(t *testing.T, opts ...fixtureOption) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		t:        t,
		registry: memory.NewRegistry(),
		clock:    newTestClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)),
		logs:     &captureLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.registry.SeedActors(testAdmin, testOwner, testAgent, testManager, testViewer, testDriver, testDriver2, testOwner2, testDriverX, testManagerX)
	f.registry.SeedProducts(testProduct())

	var err error
	f.inventory, err = NewProductInventory(ProductInventoryDeps{
		Products:   f.registry.Products(),
		Actors:     f.registry.Actors(),
		UnitOfWork: f.registry,
		Clock:      f.clock.Now,
		Logger:     f.logs.Log,
	})
	if err != nil {
		t.Fatalf("new inventory: %v", err)
	}
	f.dedup, err = NewSubmissionDeduplicator(SubmissionDeduplicatorDeps{
		Orders: f.registry.Orders(),
		Claims: f.claims,
		Clock:  f.clock.Now,
		Logger: f.logs.Log,
	})
	if err != nil {
		t.Fatalf("new deduplicator: %v", err)
	}
	invoices, err := NewInvoiceCounter(InvoiceCounterDeps{Sequences: f.registry.Sequences()})
	if err != nil {
		t.Fatalf("new invoice counter: %v", err)
	}
	var unit repositories.UnitOfWork = f.registry
	if f.wrapUnit != nil {
		unit = f.wrapUnit(unit)
	}
	f.orders, err = NewOrderLifecycle(OrderLifecycleDeps{
		Orders:       f.registry.Orders(),
		Products:     f.registry.Products(),
		Actors:       f.registry.Actors(),
		Outbox:       f.registry.Outbox(),
		Invoices:     invoices,
		Inventory:    f.inventory,
		Deduplicator: f.dedup,
		UnitOfWork:   unit,
		Clock:        f.clock.Now,
		IDGenerator:  sequentialIDs(),
		Logger:       f.logs.Log,
	})
	if err != nil {
		t.Fatalf("new order lifecycle: %v", err)
	}
	return f
}

func (f *lifecycleFixture) createOrder(actorID string, mutate ...func(*CreateOrderCommand)) Order {
	f.t.Helper()
	cmd := CreateOrderCommand{
		ActorID:       actorID,
		CustomerName:  "Sara",
		CustomerPhone: "+966 500 000 001",
		Address:       "King Fahd Rd 12",
		City:          "Riyadh",
		Country:       "KSA",
		Details:       "1x desk lamp",
		ProductID:     "prod-1",
		Quantity:      3,
		ShippingFee:   10,
		CODAmount:     100,
	}
	for _, fn := range mutate {
		fn(&cmd)
	}
	result, err := f.orders.Create(context.Background(), cmd)
	if err != nil {
		f.t.Fatalf("create order: %v", err)
	}
	if result.Duplicate {
		f.t.Fatalf("expected a fresh order, got duplicate %s", result.Order.ID)
	}
	return result.Order
}

func (f *lifecycleFixture) product(id string) domain.Product {
	f.t.Helper()
	product, err := f.registry.Products().FindByID(context.Background(), id)
	if err != nil {
		f.t.Fatalf("find product %s: %v", id, err)
	}
	return product
}

func (f *lifecycleFixture) eventsFor(orderID string) []domain.OutboxEvent {
	var events []domain.OutboxEvent
	for _, event := range f.registry.OutboxEvents() {
		if event.OrderID == orderID {
			events = append(events, event)
		}
	}
	return events
}

var errContended = errors.New("transaction contended")

// contendedUnitOfWork replays the next callbacks before committing, the way Firestore retries a
// transaction that lost a race.
type contendedUnitOfWork struct {
	inner   repositories.UnitOfWork
	mu      sync.Mutex
	retries int
}

func (u *contendedUnitOfWork) failNext(n int) {
	u.mu.Lock()
	u.retries = n
	u.mu.Unlock()
}

func (u *contendedUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	for {
		u.mu.Lock()
		retry := u.retries > 0
		if retry {
			u.retries--
		}
		u.mu.Unlock()

		err := u.inner.RunInTx(ctx, func(txCtx context.Context) error {
			if err := fn(txCtx); err != nil {
				return err
			}
			if retry {
				return errContended
			}
			return nil
		})
		if retry && errors.Is(err, errContended) {
			continue
		}
		return err
	}
}
