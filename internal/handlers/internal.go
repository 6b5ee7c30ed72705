package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/codfleet/api/internal/platform/auth"
	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/platform/requestctx"
	"github.com/codfleet/api/internal/services"
)

const maxDispatchLimit = 500

// InternalHandlers serves endpoints invoked by Cloud Scheduler and other service principals.
type InternalHandlers struct {
	outbox services.OutboxDispatcher
}

func NewInternalHandlers(outbox services.OutboxDispatcher) *InternalHandlers {
	return &InternalHandlers{outbox: outbox}
}

func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/outbox:dispatch", h.dispatchOutbox)
}

type dispatchResponse struct {
	Published int `json:"published"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

func (h *InternalHandlers) dispatchOutbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.outbox == nil {
		httpx.WriteError(ctx, w, httpx.NewError("outbox_unavailable", "outbox dispatcher unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := auth.ServiceIdentityFromContext(ctx); !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "service identity required", http.StatusUnauthorized))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 || value > maxDispatchLimit {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be between 0 and 500", http.StatusBadRequest))
			return
		}
		limit = value
	}

	result, err := h.outbox.Dispatch(ctx, limit)
	if err != nil {
		requestctx.Logger(ctx).Error("outbox dispatch failed", zap.Error(err))
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, dispatchResponse{
		Published: result.Published,
		Retried:   result.Retried,
		Failed:    result.Failed,
	})
}
