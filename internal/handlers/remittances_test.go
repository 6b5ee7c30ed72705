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

type stubRemittanceLedger struct {
	submitFn  func(context.Context, services.SubmitRemittanceCommand) (services.Remittance, error)
	acceptFn  func(context.Context, services.AcceptRemittanceCommand) (services.Remittance, error)
	summaryFn func(context.Context, services.RemittanceSummaryQuery) (services.RemittanceSummary, error)
	listFn    func(context.Context, services.RemittanceListQuery) (domain.CursorPage[services.Remittance], error)
}

func (s *stubRemittanceLedger) Submit(ctx context.Context, cmd services.SubmitRemittanceCommand) (services.Remittance, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, cmd)
	}
	return services.Remittance{}, errStubNotConfigured
}

func (s *stubRemittanceLedger) Accept(ctx context.Context, cmd services.AcceptRemittanceCommand) (services.Remittance, error) {
	if s.acceptFn != nil {
		return s.acceptFn(ctx, cmd)
	}
	return services.Remittance{}, errStubNotConfigured
}

func (s *stubRemittanceLedger) Summary(ctx context.Context, query services.RemittanceSummaryQuery) (services.RemittanceSummary, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, query)
	}
	return services.RemittanceSummary{}, errStubNotConfigured
}

func (s *stubRemittanceLedger) List(ctx context.Context, query services.RemittanceListQuery) (domain.CursorPage[services.Remittance], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[services.Remittance]{}, nil
}

func newRemittanceRouter(svc services.RemittanceLedger) chi.Router {
	router := chi.NewRouter()
	router.Route("/remittances", NewRemittanceHandlers(svc).Routes)
	return router
}

func TestRemittanceHandlersSubmit(t *testing.T) {
	var captured services.SubmitRemittanceCommand
	svc := &stubRemittanceLedger{
		submitFn: func(_ context.Context, cmd services.SubmitRemittanceCommand) (services.Remittance, error) {
			captured = cmd
			return services.Remittance{
				ID:                   "rem_1",
				DriverID:             cmd.ActorID,
				ManagerID:            cmd.ManagerID,
				Amount:               cmd.Amount,
				Currency:             "SAR",
				From:                 cmd.From,
				TotalDeliveredOrders: 3,
				Status:               domain.RemittancePending,
			}, nil
		},
	}

	body := `{"manager_id":"manager-1","amount":450,"from":"2025-06-01","to":"2025-06-07T23:59:59Z","note":"week 23"}`
	rr := httptest.NewRecorder()
	newRemittanceRouter(svc).ServeHTTP(rr, actorRequest(http.MethodPost, "/remittances", "driver-1", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ActorID != "driver-1" || captured.ManagerID != "manager-1" || captured.Amount != 450 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.From == nil || !captured.From.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) || captured.To == nil {
		t.Fatalf("unexpected window %v..%v", captured.From, captured.To)
	}
	resp := decodeBody[remittanceResponse](t, rr)
	if resp.Remittance.Status != "pending" || resp.Remittance.TotalDeliveredOrders != 3 || resp.Remittance.From != "2025-06-01T00:00:00Z" {
		t.Fatalf("unexpected remittance %+v", resp.Remittance)
	}

	rr = httptest.NewRecorder()
	newRemittanceRouter(svc).ServeHTTP(rr, actorRequest(http.MethodPost, "/remittances", "driver-1", `{"manager_id":"m","amount":1,"from":"last week"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad window rejected, got %d", rr.Code)
	}
}

func TestRemittanceHandlersAcceptConflict(t *testing.T) {
	svc := &stubRemittanceLedger{
		acceptFn: func(_ context.Context, cmd services.AcceptRemittanceCommand) (services.Remittance, error) {
			if cmd.RemittanceID != "rem_1" || cmd.ActorID != "manager-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Remittance{}, services.ErrRemittanceAlreadyAccepted
		},
	}
	rr := httptest.NewRecorder()
	newRemittanceRouter(svc).ServeHTTP(rr, actorRequest(http.MethodPost, "/remittances/rem_1:accept", "manager-1", ""))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if body := decodeBody[map[string]any](t, rr); body["error"] != "remittance_already_accepted" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestRemittanceHandlersSummaryAndList(t *testing.T) {
	var summaryQuery services.RemittanceSummaryQuery
	var listQuery services.RemittanceListQuery
	svc := &stubRemittanceLedger{
		summaryFn: func(_ context.Context, query services.RemittanceSummaryQuery) (services.RemittanceSummary, error) {
			summaryQuery = query
			return services.RemittanceSummary{DriverID: "driver-1", Currency: "SAR", DeliveredOrders: 4, CollectedAmount: 620}, nil
		},
		listFn: func(_ context.Context, query services.RemittanceListQuery) (domain.CursorPage[services.Remittance], error) {
			listQuery = query
			return domain.CursorPage[services.Remittance]{Items: []services.Remittance{{ID: "rem_1", Status: domain.RemittanceAccepted}}}, nil
		},
	}
	router := newRemittanceRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, actorRequest(http.MethodGet, "/remittances/summary?driver_id=driver-1&from=2025-06-01", "manager-1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if summaryQuery.DriverID != "driver-1" || summaryQuery.From == nil || summaryQuery.To != nil {
		t.Fatalf("unexpected summary query %+v", summaryQuery)
	}
	summary := decodeBody[remittanceSummaryPayload](t, rr)
	if summary.CollectedAmount != 620 || summary.DeliveredOrders != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, actorRequest(http.MethodGet, "/remittances?status=accepted&pageSize=5", "manager-1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(listQuery.Status) != 1 || listQuery.Status[0] != "accepted" || listQuery.Pagination.PageSize != 5 {
		t.Fatalf("unexpected list query %+v", listQuery)
	}
	list := decodeBody[remittanceListResponse](t, rr)
	if len(list.Items) != 1 || list.Items[0].Status != "accepted" {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, actorRequest(http.MethodGet, "/remittances?status=rejected", "manager-1", ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown status rejected, got %d", rr.Code)
	}
}
