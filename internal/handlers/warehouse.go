package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/services"
)

type WarehouseHandlers struct {
	warehouse services.WarehouseSummary
}

func NewWarehouseHandlers(warehouse services.WarehouseSummary) *WarehouseHandlers {
	return &WarehouseHandlers{warehouse: warehouse}
}

func (h *WarehouseHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/summary", h.summary)
}

type warehouseResponse struct {
	Items []warehouseItemPayload `json:"items"`
}

type warehouseItemPayload struct {
	ProductID      string         `json:"product_id"`
	Name           string         `json:"name"`
	SKU            string         `json:"sku,omitempty"`
	RegionStock    map[string]int `json:"region_stock"`
	StockLeft      int            `json:"stock_left"`
	InStock        bool           `json:"in_stock"`
	ShippedQty     int            `json:"shipped_qty"`
	ShippedOrders  int            `json:"shipped_orders"`
	StockValue     int64          `json:"stock_value"`
	ShippedValue   int64          `json:"shipped_value"`
	CODOutstanding int64          `json:"cod_outstanding"`
}

func (h *WarehouseHandlers) summary(w http.ResponseWriter, r *http.Request) {
	if h.warehouse == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("warehouse_service_unavailable", "warehouse service unavailable", http.StatusServiceUnavailable))
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	items, err := h.warehouse.Summary(r.Context(), actorID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	resp := warehouseResponse{Items: make([]warehouseItemPayload, 0, len(items))}
	for _, item := range items {
		stock := item.RegionStock
		if stock == nil {
			stock = map[string]int{}
		}
		resp.Items = append(resp.Items, warehouseItemPayload{
			ProductID:      item.ProductID,
			Name:           item.Name,
			SKU:            item.SKU,
			RegionStock:    stock,
			StockLeft:      item.StockLeft,
			InStock:        item.InStock,
			ShippedQty:     item.ShippedQty,
			ShippedOrders:  item.ShippedOrders,
			StockValue:     item.StockValue,
			ShippedValue:   item.ShippedValue,
			CODOutstanding: item.CODOutstanding,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
