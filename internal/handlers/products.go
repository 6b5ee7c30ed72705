package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/services"
)

// ProductHandlers exposes per-region stock management and availability checks.
type ProductHandlers struct {
	inventory services.ProductInventory
}

func NewProductHandlers(inventory services.ProductInventory) *ProductHandlers {
	return &ProductHandlers{inventory: inventory}
}

func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Put("/{productID}/stock/{region}", h.setRegionStock)
	r.Get("/{productID}/availability", h.checkAvailability)
}

type setRegionStockRequest struct {
	Quantity *int `json:"quantity"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	SKU              string         `json:"sku,omitempty"`
	Price            int64          `json:"price"`
	EnabledCountries []string       `json:"enabled_countries"`
	RegionStock      map[string]int `json:"region_stock"`
	StockQty         int            `json:"stock_qty"`
	InStock          bool           `json:"in_stock"`
	UpdatedAt        string         `json:"updated_at,omitempty"`
}

type availabilityResponse struct {
	ProductID string `json:"product_id"`
	Country   string `json:"country"`
	Enabled   bool   `json:"enabled"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Enough    bool   `json:"enough"`
}

func (h *ProductHandlers) setRegionStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req setRegionStockRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	product, err := h.inventory.SetRegionStock(ctx, services.SetRegionStockCommand{
		ActorID:   actorID,
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Region:    strings.TrimSpace(chi.URLParam(r, "region")),
		Quantity:  *req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *ProductHandlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireActor(w, r); !ok {
		return
	}

	query := r.URL.Query()
	quantity := 1
	if raw := strings.TrimSpace(query.Get("quantity")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be an integer", http.StatusBadRequest))
			return
		}
		quantity = value
	}

	availability, err := h.inventory.CheckAvailability(ctx, services.AvailabilityQuery{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Country:   strings.TrimSpace(query.Get("country")),
		Quantity:  quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, availabilityResponse{
		ProductID: availability.ProductID,
		Country:   availability.Country,
		Enabled:   availability.Enabled,
		Requested: availability.Requested,
		Available: availability.Available,
		Enough:    availability.Enough,
	})
}

func buildProductPayload(product services.Product) productPayload {
	countries := append([]string(nil), product.EnabledCountries...)
	sort.Strings(countries)
	stock := make(map[string]int, len(product.RegionStock))
	for region, qty := range product.RegionStock {
		stock[region] = qty
	}
	return productPayload{
		ID:               product.ID,
		Name:             product.Name,
		SKU:              product.SKU,
		Price:            product.Price,
		EnabledCountries: countries,
		RegionStock:      stock,
		StockQty:         product.StockQty,
		InStock:          product.InStock,
		UpdatedAt:        formatTime(product.UpdatedAt),
	}
}
