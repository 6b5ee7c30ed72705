package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/textutil"
	"github.com/codfleet/api/internal/repositories"
)

// DefaultLedgerWindow is used when a ledger query omits its start.
const DefaultLedgerWindow = 30 * 24 * time.Hour

const expenseIDPrefix = "exp_"

// FinancialReconcilerDeps bundles collaborators required to construct the reconciler.
type FinancialReconcilerDeps struct {
	Orders      repositories.OrderRepository
	Expenses    repositories.ExpenseRepository
	Actors      repositories.ActorRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type financialReconciler struct {
	orders   repositories.OrderRepository
	expenses repositories.ExpenseRepository
	actors   repositories.ActorRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewFinancialReconciler wires dependencies into a FinancialReconciler implementation.
func NewFinancialReconciler(deps FinancialReconcilerDeps) (FinancialReconciler, error) {
	if deps.Orders == nil {
		return nil, errors.New("financial reconciler: order repository is required")
	}
	if deps.Expenses == nil {
		return nil, errors.New("financial reconciler: expense repository is required")
	}
	if deps.Actors == nil {
		return nil, errors.New("financial reconciler: actor repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &financialReconciler{
		orders:   deps.Orders,
		expenses: deps.Expenses,
		actors:   deps.Actors,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Ledger recomputes the transaction list for the window from current orders and expenses.
func (s *financialReconciler) Ledger(ctx context.Context, query LedgerQuery) (Ledger, error) {
	actor, err := loadActor(ctx, s.actors, query.ActorID)
	if err != nil {
		return Ledger{}, err
	}
	scope, err := financeScope(actor)
	if err != nil {
		return Ledger{}, err
	}

	to := s.clock()
	if query.To != nil {
		to = query.To.UTC()
	}
	from := to.Add(-DefaultLedgerWindow)
	if query.From != nil {
		from = query.From.UTC()
	}
	if from.After(to) {
		return Ledger{}, fmt.Errorf("%w: from must not be after to", ErrFinanceInvalidInput)
	}

	// Ledger dates never exceed updatedAt.
	orders, err := s.orders.Scan(ctx, repositories.OrderListFilter{WorkspaceOwnerID: scope, UpdatedSince: &from})
	if err != nil {
		return Ledger{}, mapRepositoryError(nil, err)
	}
	window := domain.TimeRange{From: &from, To: &to}
	expenses, err := s.expenses.List(ctx, repositories.ExpenseListFilter{WorkspaceOwnerID: scope, DateRange: window})
	if err != nil {
		return Ledger{}, mapRepositoryError(nil, err)
	}

	ledger := BuildLedger(from, to, orders, expenses)
	s.logger(ctx, "finance.ledger_built", map[string]any{
		"actorId":      actor.ID,
		"workspaceId":  scope,
		"transactions": len(ledger.Transactions),
		"net":          ledger.Net,
	})
	return ledger, nil
}

func (s *financialReconciler) RecordExpense(ctx context.Context, cmd RecordExpenseCommand) (Expense, error) {
	title := textutil.SanitizeNote(cmd.Title)
	if title == "" {
		return Expense{}, fmt.Errorf("%w: title is required", ErrFinanceInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Expense{}, fmt.Errorf("%w: amount must be positive", ErrFinanceInvalidInput)
	}

	actor, err := loadActor(ctx, s.actors, cmd.ActorID)
	if err != nil {
		return Expense{}, err
	}
	scope, err := financeScope(actor)
	if err != nil {
		return Expense{}, err
	}

	now := s.clock()
	country := domain.NormalizeCountry(cmd.Country)
	if country == "" {
		country = domain.NormalizeCountry(actor.Country)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = domain.CurrencyForCountry(country)
	}
	incurred := now
	if cmd.IncurredAt != nil {
		incurred = cmd.IncurredAt.UTC()
	}

	expense := Expense{
		ID:               expenseIDPrefix + s.newID(),
		WorkspaceOwnerID: scope,
		CreatedBy:        actor.ID,
		Title:            title,
		Amount:           cmd.Amount,
		Currency:         currency,
		Country:          country,
		Notes:            textutil.SanitizeNote(cmd.Notes),
		IncurredAt:       incurred,
		CreatedAt:        now,
	}
	if err := s.expenses.Insert(ctx, expense); err != nil {
		return Expense{}, mapRepositoryError(nil, err)
	}
	s.logger(ctx, "finance.expense_recorded", map[string]any{
		"expenseId": expense.ID,
		"actorId":   actor.ID,
		"amount":    expense.Amount,
		"currency":  expense.Currency,
	})
	return expense, nil
}

// financeScope returns the workspace filter for finance reads: "" for admins, the owner's id for
// workspace owners. Other roles have no finance access.
func financeScope(actor Actor) (string, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return "", nil
	case domain.RoleUser:
		return actor.ID, nil
	default:
		return "", fmt.Errorf("%w: role may not access finance", ErrAuthorization)
	}
}

// BuildLedger derives transactions dated inside [from, to], newest first, with totals. It is pure
// so the ledger can be recomputed at any time.
func BuildLedger(from, to time.Time, orders []Order, expenses []Expense) Ledger {
	window := domain.TimeRange{From: &from, To: &to}
	ledger := Ledger{From: from, To: to, Transactions: []Transaction{}}

	add := func(tx Transaction) {
		if tx.Amount <= 0 || !domain.InTimeRange(window, tx.Date) {
			return
		}
		ledger.Transactions = append(ledger.Transactions, tx)
		switch tx.Type {
		case domain.TransactionCredit:
			ledger.Credits += tx.Amount
		case domain.TransactionDebit:
			ledger.Debits += tx.Amount
		}
	}

	for _, order := range orders {
		ref := cmp.Or(order.InvoiceNumber, order.ID)
		currency := domain.CurrencyForCountry(order.Country)

		switch {
		case order.Settled && order.ReceivedFromCourier > 0:
			add(Transaction{
				Date:      firstTime(order.SettledAt, &order.UpdatedAt, &order.CreatedAt),
				Type:      domain.TransactionCredit,
				Source:    domain.SourceCourierSettlement,
				Reference: ref,
				Amount:    order.ReceivedFromCourier,
				Currency:  currency,
				Notes:     "courier settlement",
			})
		case order.CollectedAmount > 0 && order.ShipmentStatus == domain.ShipmentDelivered:
			add(Transaction{
				Date:      firstTime(order.DeliveredAt, &order.UpdatedAt, &order.CreatedAt),
				Type:      domain.TransactionCredit,
				Source:    domain.SourceCODCollected,
				Reference: ref,
				Amount:    order.CollectedAmount,
				Currency:  currency,
				Notes:     "COD collected",
			})
		}

		if order.ShippingFee > 0 {
			add(Transaction{
				Date:      firstTime(order.ShippedAt, &order.CreatedAt),
				Type:      domain.TransactionDebit,
				Source:    domain.SourceShippingCost,
				Reference: ref,
				Amount:    order.ShippingFee,
				Currency:  currency,
				Notes:     "shipping cost",
			})
		}
	}

	for _, expense := range expenses {
		add(Transaction{
			Date:      expense.IncurredAt,
			Type:      domain.TransactionDebit,
			Source:    domain.SourceExpense,
			Reference: expense.ID,
			Amount:    expense.Amount,
			Currency:  expense.Currency,
			Notes:     expense.Title,
		})
	}

	slices.SortStableFunc(ledger.Transactions, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.Reference, b.Reference); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	ledger.Net = ledger.Credits - ledger.Debits
	return ledger
}

func firstTime(candidates ...*time.Time) time.Time {
	for _, candidate := range candidates {
		if candidate != nil && !candidate.IsZero() {
			return candidate.UTC()
		}
	}
	return time.Time{}
}
