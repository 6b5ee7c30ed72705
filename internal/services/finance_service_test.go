package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
	"github.com/codfleet/api/internal/repositories/memory"
)

func TestBuildLedgerTotals(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	shippedAt := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	settledAt := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	deliveredAt := time.Date(2025, 6, 6, 10, 0, 0, 0, time.UTC)

	orders := []Order{
		{
			ID: "o1", InvoiceNumber: "INV-2025-000001", Country: "KSA",
			Status: domain.OrderStatusShipped, ShipmentStatus: domain.ShipmentDelivered,
			Settled: true, ReceivedFromCourier: 80, SettledAt: &settledAt,
			CollectedAmount: 90, CreatedAt: shippedAt, UpdatedAt: settledAt,
		},
		{
			ID: "o2", InvoiceNumber: "INV-2025-000002", Country: "KSA",
			Status: domain.OrderStatusShipped, ShipmentStatus: domain.ShipmentDelivered,
			CollectedAmount: 50, ShippingFee: 5, DeliveredAt: &deliveredAt, ShippedAt: &shippedAt,
			CreatedAt: shippedAt, UpdatedAt: deliveredAt,
		},
	}
	expenses := []Expense{{ID: "exp_1", Title: "Fuel", Amount: 20, Currency: "SAR", IncurredAt: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)}}

	ledger := BuildLedger(from, to, orders, expenses)
	if ledger.Credits != 130 || ledger.Debits != 25 || ledger.Net != 105 {
		t.Fatalf("expected credits=130 debits=25 net=105, got %d/%d/%d", ledger.Credits, ledger.Debits, ledger.Net)
	}
	if len(ledger.Transactions) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(ledger.Transactions))
	}
	first := ledger.Transactions[0]
	if first.Source != domain.SourceCODCollected || first.Reference != "INV-2025-000002" || first.Currency != "SAR" {
		t.Fatalf("expected newest COD credit first, got %+v", first)
	}
	for i := 1; i < len(ledger.Transactions); i++ {
		if ledger.Transactions[i].Date.After(ledger.Transactions[i-1].Date) {
			t.Fatalf("transactions not sorted newest first: %+v", ledger.Transactions)
		}
	}
}

func TestBuildLedgerFiltersByTransactionDate(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	mayShip := time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC)
	juneSettle := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	ledger := BuildLedger(from, to, []Order{{
		ID: "o1", Status: domain.OrderStatusShipped, ShipmentStatus: domain.ShipmentDelivered,
		ShippingFee: 7, ShippedAt: &mayShip, Settled: true, ReceivedFromCourier: 60, SettledAt: &juneSettle,
		CreatedAt: mayShip,
	}}, nil)

	if ledger.Debits != 0 || ledger.Credits != 60 {
		t.Fatalf("expected only the June settlement, got %+v", ledger)
	}
	if ledger.Transactions[0].Reference != "o1" {
		t.Fatalf("expected id as reference without invoice, got %q", ledger.Transactions[0].Reference)
	}
}

func TestBuildLedgerNetProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	properties.Property("net equals credits minus debits and totals match lines", prop.ForAll(
		func(received, collected, fee, expense int64) bool {
			at := from.AddDate(0, 3, 0)
			orders := []Order{
				{ID: "a", Settled: received > 0, ReceivedFromCourier: received, SettledAt: &at, CreatedAt: at},
				{ID: "b", ShipmentStatus: domain.ShipmentDelivered, CollectedAmount: collected, ShippingFee: fee, DeliveredAt: &at, ShippedAt: &at, CreatedAt: at},
			}
			expenses := []Expense{{ID: "e", Amount: expense, IncurredAt: at}}
			ledger := BuildLedger(from, to, orders, expenses)

			var credits, debits int64
			for _, tx := range ledger.Transactions {
				if tx.Amount <= 0 {
					return false
				}
				if tx.Type == domain.TransactionCredit {
					credits += tx.Amount
				} else {
					debits += tx.Amount
				}
			}
			return credits == ledger.Credits && debits == ledger.Debits && ledger.Net == credits-debits
		},
		gen.Int64Range(0, 10_000),
		gen.Int64Range(0, 10_000),
		gen.Int64Range(0, 1_000),
		gen.Int64Range(0, 5_000),
	))

	properties.TestingRun(t)
}

func newFinanceFixture(t *testing.T) (*memory.Registry, FinancialReconciler, *testClock) {
	t.Helper()
	registry := memory.NewRegistry()
	registry.SeedActors(testAdmin, testOwner, testManager, testDriver, testOwner2)
	clock := newTestClock(time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC))
	svc, err := NewFinancialReconciler(FinancialReconcilerDeps{
		Orders:      registry.Orders(),
		Expenses:    registry.Expenses(),
		Actors:      registry.Actors(),
		Clock:       clock.Now,
		IDGenerator: sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return registry, svc, clock
}

func TestLedgerScopesToWorkspace(t *testing.T) {
	registry, svc, clock := newFinanceFixture(t)
	ctx := context.Background()
	settledAt := clock.Now().Add(-24 * time.Hour)
	registry.SeedOrders(
		Order{ID: "mine", WorkspaceOwnerID: testOwner.ID, Status: domain.OrderStatusShipped, Settled: true, ReceivedFromCourier: 80, SettledAt: &settledAt, CreatedAt: settledAt, UpdatedAt: settledAt},
		Order{ID: "theirs", WorkspaceOwnerID: testOwner2.ID, Status: domain.OrderStatusShipped, Settled: true, ReceivedFromCourier: 999, SettledAt: &settledAt, CreatedAt: settledAt, UpdatedAt: settledAt},
	)

	if _, err := svc.RecordExpense(ctx, RecordExpenseCommand{ActorID: testOwner.ID, Title: "Fuel", Amount: 20}); err != nil {
		t.Fatalf("record expense: %v", err)
	}

	ledger, err := svc.Ledger(ctx, LedgerQuery{ActorID: testOwner.ID})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.Credits != 80 || ledger.Debits != 20 || ledger.Net != 60 {
		t.Fatalf("unexpected owner ledger %+v", ledger)
	}
	if !ledger.To.Equal(clock.Now()) || !ledger.From.Equal(clock.Now().Add(-DefaultLedgerWindow)) {
		t.Fatalf("expected default 30 day window, got %s..%s", ledger.From, ledger.To)
	}

	all, err := svc.Ledger(ctx, LedgerQuery{ActorID: testAdmin.ID})
	if err != nil {
		t.Fatalf("admin ledger: %v", err)
	}
	if all.Credits != 1079 {
		t.Fatalf("expected admin to see every workspace, got %d", all.Credits)
	}

	for _, actor := range []domain.Actor{testManager, testDriver} {
		if _, err := svc.Ledger(ctx, LedgerQuery{ActorID: actor.ID}); !errors.Is(err, ErrAuthorization) {
			t.Fatalf("%s: expected authorization error, got %v", actor.ID, err)
		}
	}

	from := clock.Now()
	to := from.Add(-time.Hour)
	if _, err := svc.Ledger(ctx, LedgerQuery{ActorID: testOwner.ID, From: &from, To: &to}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected inverted window rejected, got %v", err)
	}
}

type recordingOrders struct {
	repositories.OrderRepository
	scans []repositories.OrderListFilter
}

func (r *recordingOrders) Scan(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.scans = append(r.scans, filter)
	return r.OrderRepository.Scan(ctx, filter)
}

func TestLedgerSkipsOrdersUntouchedSinceWindowStart(t *testing.T) {
	registry := memory.NewRegistry()
	registry.SeedActors(testOwner)
	clock := newTestClock(time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC))
	orders := &recordingOrders{OrderRepository: registry.Orders()}
	svc, err := NewFinancialReconciler(FinancialReconcilerDeps{
		Orders:   orders,
		Expenses: registry.Expenses(),
		Actors:   registry.Actors(),
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	from := clock.Now().Add(-7 * 24 * time.Hour)
	stale := from.Add(-time.Hour)
	recent := from.Add(time.Hour)
	registry.SeedOrders(
		Order{ID: "stale", WorkspaceOwnerID: testOwner.ID, Settled: true, ReceivedFromCourier: 500, SettledAt: &stale, CreatedAt: stale, UpdatedAt: stale},
		Order{ID: "recent", WorkspaceOwnerID: testOwner.ID, Settled: true, ReceivedFromCourier: 70, SettledAt: &recent, CreatedAt: stale, UpdatedAt: recent},
	)

	ledger, err := svc.Ledger(context.Background(), LedgerQuery{ActorID: testOwner.ID, From: &from})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.Credits != 70 || len(ledger.Transactions) != 1 {
		t.Fatalf("expected only the recent settlement, got %+v", ledger)
	}
	if len(orders.scans) != 1 || orders.scans[0].UpdatedSince == nil || !orders.scans[0].UpdatedSince.Equal(from) {
		t.Fatalf("expected scan bounded by updatedAt >= from, got %+v", orders.scans)
	}
}

func TestRecordExpenseDefaults(t *testing.T) {
	_, svc, clock := newFinanceFixture(t)
	ctx := context.Background()

	expense, err := svc.RecordExpense(ctx, RecordExpenseCommand{ActorID: testOwner.ID, Title: "  Office <i>rent</i> ", Amount: 1500})
	if err != nil {
		t.Fatalf("record expense: %v", err)
	}
	if expense.Title != "Office rent" || expense.Country != "KSA" || expense.Currency != "SAR" {
		t.Fatalf("unexpected expense defaults %+v", expense)
	}
	if expense.WorkspaceOwnerID != testOwner.ID || !expense.IncurredAt.Equal(clock.Now()) {
		t.Fatalf("unexpected expense scope %+v", expense)
	}

	fuel, err := svc.RecordExpense(ctx, RecordExpenseCommand{ActorID: testOwner.ID, Title: "Fuel & oil", Amount: 40})
	if err != nil || fuel.Title != "Fuel & oil" {
		t.Fatalf("expected title stored verbatim, got %q err=%v", fuel.Title, err)
	}

	if _, err := svc.RecordExpense(ctx, RecordExpenseCommand{ActorID: testOwner.ID, Title: "x", Amount: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero amount rejected, got %v", err)
	}
	if _, err := svc.RecordExpense(ctx, RecordExpenseCommand{ActorID: testOwner.ID, Amount: 10}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected missing title rejected, got %v", err)
	}
}
