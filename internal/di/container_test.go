package di

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/config"
	"github.com/codfleet/api/internal/platform/dedup"
	"github.com/codfleet/api/internal/repositories/memory"
	"github.com/codfleet/api/internal/services"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (p *capturePublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Persistence: config.PersistenceConfig{Backend: config.PersistenceMemory},
		Events:      config.EventsConfig{Sink: config.EventSinkLog},
		Outbox: config.OutboxConfig{
			Interval:    time.Second,
			BatchSize:   10,
			MaxAttempts: 3,
			BaseBackoff: time.Second,
			MaxBackoff:  time.Minute,
		},
		Dedup: config.DedupConfig{Window: 30 * time.Second, Backend: config.DedupMemory},
	}
}

func TestNewContainerRequiresDependencies(t *testing.T) {
	ctx := context.Background()
	if _, err := NewContainer(ctx, testConfig(), nil); err == nil {
		t.Fatal("expected error without registry")
	}
	if _, err := NewContainer(ctx, testConfig(), memory.NewRegistry(), WithPublisher(&capturePublisher{})); err == nil {
		t.Fatal("expected error without claim store")
	}
	if _, err := NewContainer(ctx, testConfig(), memory.NewRegistry(), WithClaimStore(dedup.NewMemoryClaimStore())); err == nil {
		t.Fatal("expected error without publisher")
	}
}

func TestContainerWiresOrderFlowThroughOutbox(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	reg := memory.NewRegistry()
	reg.SeedActors(domain.Actor{ID: "owner-1", Role: domain.RoleUser, Country: "KSA", City: "Riyadh"})
	reg.SeedProducts(domain.Product{
		ID:               "prod-1",
		Name:             "Desk Lamp",
		WorkspaceOwnerID: "owner-1",
		Price:            25,
		EnabledCountries: []string{"KSA"},
		RegionStock:      map[string]int{"KSA": 5},
		StockQty:         5,
		InStock:          true,
	})

	pub := &capturePublisher{}
	closed := 0
	container, err := NewContainer(ctx, testConfig(), reg,
		WithClaimStore(dedup.NewMemoryClaimStore()),
		WithPublisher(pub),
		WithClock(func() time.Time { return now }),
		WithCloser(func(context.Context) error { closed++; return nil }),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	result, err := container.Services.Orders.Create(ctx, services.CreateOrderCommand{
		ActorID:       "owner-1",
		CustomerName:  "Sara",
		CustomerPhone: "+966500000001",
		Address:       "King Fahd Rd 12",
		City:          "Riyadh",
		Country:       "KSA",
		Details:       "2x desk lamp",
		ProductID:     "prod-1",
		Quantity:      2,
		CODAmount:     60,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Duplicate || result.Order.InvoiceNumber == "" {
		t.Fatalf("unexpected create result %+v", result)
	}

	dispatched, err := container.Services.Outbox.Dispatch(ctx, 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if dispatched.Published != 1 || len(pub.events) != 1 || pub.events[0].OrderID != result.Order.ID {
		t.Fatalf("unexpected dispatch %+v events=%+v", dispatched, pub.events)
	}

	report, err := container.Services.System.HealthReport(ctx)
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != "ok" {
		t.Fatalf("expected healthy report, got %+v", report)
	}

	if err := container.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected closer to run once, got %d", closed)
	}
}

func TestContainerCloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	container, err := NewContainer(context.Background(), testConfig(), memory.NewRegistry(),
		WithClaimStore(dedup.NewMemoryClaimStore()),
		WithPublisher(&capturePublisher{}),
		WithCloser(func(context.Context) error { return boom }),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if err := container.Close(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected joined closer error, got %v", err)
	}
}

func TestOpenInfrastructureDefaults(t *testing.T) {
	ctx := context.Background()

	claims, err := OpenClaimStore(ctx, config.DedupConfig{Backend: config.DedupMemory})
	if err != nil || claims.Store == nil || claims.Check != nil {
		t.Fatalf("unexpected memory claim store %+v err=%v", claims, err)
	}
	if _, err := OpenClaimStore(ctx, config.DedupConfig{Backend: "etcd"}); err == nil {
		t.Fatal("expected unsupported dedup backend error")
	}

	pub, err := OpenPublisher(ctx, config.EventsConfig{Sink: config.EventSinkLog}, nil)
	if err != nil || pub.Publisher == nil || pub.Close != nil {
		t.Fatalf("unexpected log publisher %+v err=%v", pub, err)
	}
	if _, err := OpenPublisher(ctx, config.EventsConfig{Sink: "sqs"}, nil); err == nil {
		t.Fatal("expected unsupported sink error")
	}

	reg, err := OpenRegistry(ctx, config.Config{Persistence: config.PersistenceConfig{Backend: config.PersistenceMemory}})
	if err != nil {
		t.Fatalf("memory registry: %v", err)
	}
	if _, ok := reg.(*memory.Registry); !ok {
		t.Fatalf("expected memory registry, got %T", reg)
	}
	if _, err := OpenRegistry(ctx, config.Config{Persistence: config.PersistenceConfig{Backend: "postgres"}}); err == nil {
		t.Fatal("expected unsupported persistence error")
	}
}
