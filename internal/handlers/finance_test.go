package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/services"
)

type stubFinancialReconciler struct {
	ledgerFn  func(context.Context, services.LedgerQuery) (services.Ledger, error)
	expenseFn func(context.Context, services.RecordExpenseCommand) (services.Expense, error)
}

func (s *stubFinancialReconciler) Ledger(ctx context.Context, query services.LedgerQuery) (services.Ledger, error) {
	if s.ledgerFn != nil {
		return s.ledgerFn(ctx, query)
	}
	return services.Ledger{}, errStubNotConfigured
}

func (s *stubFinancialReconciler) RecordExpense(ctx context.Context, cmd services.RecordExpenseCommand) (services.Expense, error) {
	if s.expenseFn != nil {
		return s.expenseFn(ctx, cmd)
	}
	return services.Expense{}, errStubNotConfigured
}

func newFinanceRouter(svc services.FinancialReconciler) chi.Router {
	router := chi.NewRouter()
	router.Route("/finance", NewFinanceHandlers(svc).Routes)
	return router
}

func TestFinanceHandlersLedger(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	var captured services.LedgerQuery
	svc := &stubFinancialReconciler{
		ledgerFn: func(_ context.Context, query services.LedgerQuery) (services.Ledger, error) {
			captured = query
			return services.Ledger{
				From: *query.From,
				To:   *query.To,
				Transactions: []services.Transaction{
					{Date: to, Type: domain.TransactionCredit, Source: domain.SourceCourierSettlement, Reference: "INV-2025-000001", Amount: 80, Currency: "SAR"},
					{Date: from, Type: domain.TransactionDebit, Source: domain.SourceExpense, Reference: "exp_1", Amount: 20, Currency: "SAR"},
				},
				Credits: 80,
				Debits:  20,
				Net:     60,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	newFinanceRouter(svc).ServeHTTP(rr, actorRequest(http.MethodGet, "/finance/ledger?from=2025-06-01&to=2025-06-30", "owner-1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ActorID != "owner-1" || !captured.From.Equal(from) || !captured.To.Equal(to) {
		t.Fatalf("unexpected query %+v", captured)
	}
	resp := decodeBody[ledgerResponse](t, rr)
	if resp.Net != 60 || len(resp.Transactions) != 2 || resp.Transactions[0].Source != "courier_settlement" {
		t.Fatalf("unexpected ledger %+v", resp)
	}
}

func TestFinanceHandlersLedgerErrors(t *testing.T) {
	svc := &stubFinancialReconciler{
		ledgerFn: func(context.Context, services.LedgerQuery) (services.Ledger, error) {
			return services.Ledger{}, services.ErrAuthorization
		},
	}
	router := newFinanceRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, actorRequest(http.MethodGet, "/finance/ledger", "driver-1", ""))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, actorRequest(http.MethodGet, "/finance/ledger?from=june", "owner-1", ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFinanceHandlersRecordExpense(t *testing.T) {
	var captured services.RecordExpenseCommand
	svc := &stubFinancialReconciler{
		expenseFn: func(_ context.Context, cmd services.RecordExpenseCommand) (services.Expense, error) {
			captured = cmd
			return services.Expense{ID: "exp_1", Title: cmd.Title, Amount: cmd.Amount, Currency: "SAR", Country: "KSA", IncurredAt: *cmd.IncurredAt}, nil
		},
	}

	rr := httptest.NewRecorder()
	newFinanceRouter(svc).ServeHTTP(rr, actorRequest(http.MethodPost, "/finance/expenses", "owner-1", `{"title":"Fuel","amount":120,"incurred_at":"2025-06-03T08:00:00Z"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ActorID != "owner-1" || captured.Amount != 120 || captured.IncurredAt == nil {
		t.Fatalf("unexpected command %+v", captured)
	}
	resp := decodeBody[expenseResponse](t, rr)
	if resp.Expense.ID != "exp_1" || resp.Expense.IncurredAt != "2025-06-03T08:00:00Z" {
		t.Fatalf("unexpected expense %+v", resp.Expense)
	}
}
