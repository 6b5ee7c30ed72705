//go:build integration

package firestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
)

func TestShipTransactionIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, "ship-test")
	registry, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	product := domain.Product{ID: "prod-1", Name: "Lamp", WorkspaceOwnerID: "owner-1", Price: 25, RegionStock: map[string]int{"KSA": 10}, StockQty: 10, InStock: true, CreatedAt: now, UpdatedAt: now}
	if err := registry.Products().Insert(ctx, product); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	order := domain.Order{ID: "ord-1", WorkspaceOwnerID: "owner-1", ProductID: "prod-1", Quantity: 2, Country: "KSA", Status: domain.OrderStatusPending, CreatedAt: now, UpdatedAt: now}
	if err := registry.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if err := registry.Orders().Insert(ctx, order); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}

	// A failing callback rolls back both writes.
	boom := errors.New("boom")
	err = registry.RunInTx(ctx, func(ctx context.Context) error {
		p, err := registry.Products().FindByID(ctx, "prod-1")
		if err != nil {
			return err
		}
		o, err := registry.Orders().FindByID(ctx, "ord-1")
		if err != nil {
			return err
		}
		p.RegionStock["KSA"] -= o.Quantity
		o.Status = domain.OrderStatusShipped
		if err := registry.Products().Update(ctx, p); err != nil {
			return err
		}
		if err := registry.Orders().Update(ctx, o); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error surfaced, got %v", err)
	}
	stored, _ := registry.Products().FindByID(ctx, "prod-1")
	if stored.RegionStock["KSA"] != 10 {
		t.Fatalf("expected rollback to keep stock at 10, got %d", stored.RegionStock["KSA"])
	}

	// Concurrent decrements never lose an update.
	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := registry.RunInTx(ctx, func(ctx context.Context) error {
				p, err := registry.Products().FindByID(ctx, "prod-1")
				if err != nil {
					return err
				}
				p.RegionStock["KSA"]--
				return registry.Products().Update(ctx, p)
			})
			if err != nil {
				t.Errorf("decrement: %v", err)
			}
		}()
	}
	wg.Wait()
	stored, err = registry.Products().FindByID(ctx, "prod-1")
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if stored.RegionStock["KSA"] != 10-workers {
		t.Fatalf("expected %d left, got %d", 10-workers, stored.RegionStock["KSA"])
	}
}
