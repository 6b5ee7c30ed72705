package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	registry := NewRegistry()
	registry.SeedProducts(domain.Product{ID: "p1", RegionStock: map[string]int{"KSA": 5}, StockQty: 5, InStock: true})
	ctx := context.Background()

	boom := errors.New("boom")
	err := registry.RunInTx(ctx, func(ctx context.Context) error {
		product, err := registry.Products().FindByID(ctx, "p1")
		if err != nil {
			return err
		}
		product.DecrementForShipment("KSA", 2)
		if err := registry.Products().Update(ctx, product); err != nil {
			return err
		}
		if err := registry.Orders().Insert(ctx, domain.Order{ID: "o1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	product, err := registry.Products().FindByID(ctx, "p1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if product.RegionStock["KSA"] != 5 {
		t.Fatalf("expected rollback to restore stock, got %d", product.RegionStock["KSA"])
	}
	if _, err := registry.Orders().FindByID(ctx, "o1"); err == nil {
		t.Fatalf("expected order insert to be rolled back")
	}
}

func TestProductReadsAreIsolatedCopies(t *testing.T) {
	registry := NewRegistry()
	registry.SeedProducts(domain.Product{ID: "p1", RegionStock: map[string]int{"UAE": 3}})

	product, _ := registry.Products().FindByID(context.Background(), "p1")
	product.RegionStock["UAE"] = 0

	stored, _ := registry.Products().FindByID(context.Background(), "p1")
	if stored.RegionStock["UAE"] != 3 {
		t.Fatalf("mutating a read copy leaked into the store")
	}
}

func TestOrderListPaginatesNewestFirst(t *testing.T) {
	registry := NewRegistry()
	base := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		registry.SeedOrders(domain.Order{
			ID:               fmt.Sprintf("o%d", i),
			WorkspaceOwnerID: "owner",
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		})
	}
	registry.SeedOrders(domain.Order{ID: "other", WorkspaceOwnerID: "someone-else", CreatedAt: base})

	ctx := context.Background()
	filter := repositories.OrderListFilter{WorkspaceOwnerID: "owner", Pagination: domain.Pagination{PageSize: 2}}

	var seen []string
	for page := 0; page < 5; page++ {
		result, err := registry.Orders().List(ctx, filter)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, order := range result.Items {
			seen = append(seen, order.ID)
		}
		if result.NextPageToken == "" {
			break
		}
		filter.Pagination.PageToken = result.NextPageToken
	}

	want := []string{"o4", "o3", "o2", "o1", "o0"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
}

func TestFindRecentDuplicateRespectsWindow(t *testing.T) {
	registry := NewRegistry()
	created := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	registry.SeedOrders(domain.Order{ID: "o1", CreatedBy: "agent", CustomerPhone: "+9665", Details: "2x lamp", CreatedAt: created})

	query := repositories.DuplicateQuery{CreatedBy: "agent", CustomerPhone: "+9665", Details: "2x lamp", Since: created.Add(-time.Second)}
	order, err := registry.Orders().FindRecentDuplicate(context.Background(), query)
	if err != nil || order.ID != "o1" {
		t.Fatalf("expected duplicate o1, got %v %v", order.ID, err)
	}

	query.Since = created.Add(time.Second)
	_, err = registry.Orders().FindRecentDuplicate(context.Background(), query)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found outside window, got %v", err)
	}
}

func TestSequenceNextStopsAtCeiling(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()
	for want := int64(1); want <= 2; want++ {
		got, err := registry.Sequences().Next(ctx, "invoices:2025", 2)
		if err != nil || got != want {
			t.Fatalf("Next=%d,%v want %d", got, err, want)
		}
	}
	_, err := registry.Sequences().Next(ctx, "invoices:2025", 2)
	var seqErr *repositories.SequenceError
	if !errors.As(err, &seqErr) || !errors.Is(err, repositories.ErrSequenceExhausted) || seqErr.Last != 2 {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if got, err := registry.Sequences().Next(ctx, "invoices:2026", 2); err != nil || got != 1 {
		t.Fatalf("expected independent scope to start at 1, got %d %v", got, err)
	}
}

func TestSequenceNextRollsBackWithTransaction(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()
	boom := errors.New("boom")
	err := registry.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := registry.Sequences().Next(ctx, "invoices:2025", 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if got, _ := registry.Sequences().Next(ctx, "invoices:2025", 0); got != 1 {
		t.Fatalf("expected rolled back sequence to reissue 1, got %d", got)
	}
}
