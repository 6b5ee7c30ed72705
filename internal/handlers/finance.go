package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/services"
)

// FinanceHandlers serves the derived ledger and expense capture.
type FinanceHandlers struct {
	finance services.FinancialReconciler
}

func NewFinanceHandlers(finance services.FinancialReconciler) *FinanceHandlers {
	return &FinanceHandlers{finance: finance}
}

func (h *FinanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/ledger", h.ledger)
	r.Post("/expenses", h.recordExpense)
}

type recordExpenseRequest struct {
	Title      string `json:"title"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Country    string `json:"country"`
	Notes      string `json:"notes"`
	IncurredAt string `json:"incurred_at"`
}

func (h *FinanceHandlers) ledger(w http.ResponseWriter, r *http.Request) {
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

	ledger, err := h.finance.Ledger(r.Context(), services.LedgerQuery{ActorID: actorID, From: from, To: to})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	lines := make([]transactionPayload, 0, len(ledger.Transactions))
	for _, tx := range ledger.Transactions {
		lines = append(lines, transactionPayload{
			Date:      formatTime(tx.Date),
			Type:      string(tx.Type),
			Source:    tx.Source,
			Reference: tx.Reference,
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			Notes:     tx.Notes,
		})
	}
	writeJSONResponse(w, http.StatusOK, ledgerResponse{
		From:         formatTime(ledger.From),
		To:           formatTime(ledger.To),
		Transactions: lines,
		Credits:      ledger.Credits,
		Debits:       ledger.Debits,
		Net:          ledger.Net,
	})
}

func (h *FinanceHandlers) recordExpense(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	var req recordExpenseRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	incurredAt, err := optionalBodyTime("incurred_at", req.IncurredAt)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	expense, err := h.finance.RecordExpense(r.Context(), services.RecordExpenseCommand{
		ActorID:    actorID,
		Title:      req.Title,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Country:    req.Country,
		Notes:      req.Notes,
		IncurredAt: incurredAt,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, expenseResponse{Expense: expensePayload{
		ID:         expense.ID,
		Title:      expense.Title,
		Amount:     expense.Amount,
		Currency:   expense.Currency,
		Country:    expense.Country,
		Notes:      expense.Notes,
		IncurredAt: formatTime(expense.IncurredAt),
		CreatedBy:  expense.CreatedBy,
		CreatedAt:  formatTime(expense.CreatedAt),
	}})
}

func (h *FinanceHandlers) begin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.finance == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("finance_service_unavailable", "finance service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return requireActor(w, r)
}

type ledgerResponse struct {
	From         string               `json:"from"`
	To           string               `json:"to"`
	Transactions []transactionPayload `json:"transactions"`
	Credits      int64                `json:"credits"`
	Debits       int64                `json:"debits"`
	Net          int64                `json:"net"`
}

type transactionPayload struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Notes     string `json:"notes,omitempty"`
}

type expenseResponse struct {
	Expense expensePayload `json:"expense"`
}

type expensePayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Country    string `json:"country"`
	Notes      string `json:"notes,omitempty"`
	IncurredAt string `json:"incurred_at"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  string `json:"created_at"`
}
