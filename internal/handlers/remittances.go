package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/services"
)

var remittanceListFilters = map[string][]string{
	"status": {string(domain.RemittancePending), string(domain.RemittanceAccepted)},
}

// RemittanceHandlers exposes driver cash hand-offs to managers.
type RemittanceHandlers struct {
	remittances services.RemittanceLedger
}

func NewRemittanceHandlers(remittances services.RemittanceLedger) *RemittanceHandlers {
	return &RemittanceHandlers{remittances: remittances}
}

func (h *RemittanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listRemittances)
	r.Post("/", h.submitRemittance)
	r.Get("/summary", h.summary)
	r.Post("/{remittanceID}:accept", h.acceptRemittance)
}

type submitRemittanceRequest struct {
	ManagerID string `json:"manager_id"`
	Amount    int64  `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Note      string `json:"note"`
}

func (h *RemittanceHandlers) submitRemittance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	var req submitRemittanceRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	from, err := optionalBodyTime("from", req.From)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	to, err := optionalBodyTime("to", req.To)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	remittance, err := h.remittances.Submit(r.Context(), services.SubmitRemittanceCommand{
		ActorID:   actorID,
		ManagerID: strings.TrimSpace(req.ManagerID),
		Amount:    req.Amount,
		From:      from,
		To:        to,
		Note:      req.Note,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, remittanceResponse{Remittance: buildRemittancePayload(remittance)})
}

func (h *RemittanceHandlers) acceptRemittance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "remittanceID"))
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "remittance id is required", http.StatusBadRequest))
		return
	}
	remittance, err := h.remittances.Accept(r.Context(), services.AcceptRemittanceCommand{RemittanceID: id, ActorID: actorID})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, remittanceResponse{Remittance: buildRemittancePayload(remittance)})
}

func (h *RemittanceHandlers) summary(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	from, ok := parseOptionalTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseOptionalTime(w, r, "to")
	if !ok {
		return
	}
	summary, err := h.remittances.Summary(r.Context(), services.RemittanceSummaryQuery{
		ActorID:  actorID,
		DriverID: strings.TrimSpace(r.URL.Query().Get("driver_id")),
		From:     from,
		To:       to,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, remittanceSummaryPayload{
		DriverID:        summary.DriverID,
		Currency:        summary.Currency,
		From:            formatTimePtr(summary.From),
		To:              formatTimePtr(summary.To),
		DeliveredOrders: summary.DeliveredOrders,
		CollectedAmount: summary.CollectedAmount,
	})
}

func (h *RemittanceHandlers) listRemittances(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{Filters: remittanceListFilters})
	if err != nil {
		writePaginationError(r.Context(), w, err)
		return
	}
	page, err := h.remittances.List(r.Context(), services.RemittanceListQuery{
		ActorID:    actorID,
		Status:     params.Filter("status"),
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]remittancePayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildRemittancePayload(item))
	}
	writeJSONResponse(w, http.StatusOK, remittanceListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *RemittanceHandlers) begin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.remittances == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("remittance_service_unavailable", "remittance service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return requireActor(w, r)
}

func optionalBodyTime(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	ts, err := parseTimeParam(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %w", field, err)
	}
	return &ts, nil
}

type remittanceResponse struct {
	Remittance remittancePayload `json:"remittance"`
}

type remittanceListResponse struct {
	Items         []remittancePayload `json:"items"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

type remittancePayload struct {
	ID                   string `json:"id"`
	DriverID             string `json:"driver_id"`
	ManagerID            string `json:"manager_id"`
	Country              string `json:"country,omitempty"`
	Currency             string `json:"currency"`
	Amount               int64  `json:"amount"`
	From                 string `json:"from,omitempty"`
	To                   string `json:"to,omitempty"`
	TotalDeliveredOrders int    `json:"total_delivered_orders"`
	Note                 string `json:"note,omitempty"`
	Status               string `json:"status"`
	AcceptedAt           string `json:"accepted_at,omitempty"`
	AcceptedBy           string `json:"accepted_by,omitempty"`
	CreatedAt            string `json:"created_at"`
}

type remittanceSummaryPayload struct {
	DriverID        string `json:"driver_id"`
	Currency        string `json:"currency"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	DeliveredOrders int    `json:"delivered_orders"`
	CollectedAmount int64  `json:"collected_amount"`
}

func buildRemittancePayload(rem services.Remittance) remittancePayload {
	return remittancePayload{
		ID:                   rem.ID,
		DriverID:             rem.DriverID,
		ManagerID:            rem.ManagerID,
		Country:              rem.Country,
		Currency:             rem.Currency,
		Amount:               rem.Amount,
		From:                 formatTimePtr(rem.From),
		To:                   formatTimePtr(rem.To),
		TotalDeliveredOrders: rem.TotalDeliveredOrders,
		Note:                 rem.Note,
		Status:               string(rem.Status),
		AcceptedAt:           formatTimePtr(rem.AcceptedAt),
		AcceptedBy:           rem.AcceptedBy,
		CreatedAt:            formatTime(rem.CreatedAt),
	}
}
