package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

var orderListFilters = map[string][]string{
	"status":          {string(domain.OrderStatusPending), string(domain.OrderStatusShipped)},
	"shipment_status": nil,
	"scope":           {services.OrderScopeClaimable},
	"driver_id":       nil,
}

// OrderHandlers exposes the order lifecycle to authenticated actors. Role checks live in the
// service; handlers only translate between HTTP and commands.
type OrderHandlers struct {
	orders services.OrderLifecycle
}

func NewOrderHandlers(orders services.OrderLifecycle) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/shipment", h.updateShipment)
	r.Post("/{orderID}:assign", h.assignDriver)
	r.Post("/{orderID}:claim", h.claimOrder)
	r.Post("/{orderID}:ship", h.shipOrder)
	r.Post("/{orderID}:deliver", h.deliverOrder)
	r.Post("/{orderID}:return", h.returnOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:settle", h.settleOrder)
}

type createOrderRequest struct {
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	Address       string           `json:"address"`
	Area          string           `json:"area"`
	City          string           `json:"city"`
	Country       string           `json:"country"`
	Location      *geoPointPayload `json:"location"`
	Details       string           `json:"details"`
	ProductID     string           `json:"product_id"`
	Quantity      int              `json:"quantity"`
	UnitPrice     *int64           `json:"unit_price"`
	Total         *int64           `json:"total"`
	Discount      *int64           `json:"discount"`
	ShippingFee   int64            `json:"shipping_fee"`
	CODAmount     int64            `json:"cod_amount"`
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

type shipOrderRequest struct {
	ShippingFee    *int64  `json:"shipping_fee"`
	CODAmount      *int64  `json:"cod_amount"`
	Courier        *string `json:"courier"`
	TrackingNumber *string `json:"tracking_number"`
}

type updateShipmentRequest struct {
	ShipmentStatus  *string `json:"shipment_status"`
	Notes           *string `json:"notes"`
	Courier         *string `json:"courier"`
	TrackingNumber  *string `json:"tracking_number"`
	ShippingFee     *int64  `json:"shipping_fee"`
	CODAmount       *int64  `json:"cod_amount"`
	CollectedAmount *int64  `json:"collected_amount"`
}

type deliverOrderRequest struct {
	CollectedAmount *int64 `json:"collected_amount"`
	Note            string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type settleOrderRequest struct {
	ReceivedFromCourier *int64 `json:"received_from_courier"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	cmd := services.CreateOrderCommand{
		ActorID:       actorID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Address:       req.Address,
		Area:          req.Area,
		City:          req.City,
		Country:       req.Country,
		Details:       req.Details,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Total:         req.Total,
		Discount:      req.Discount,
		ShippingFee:   req.ShippingFee,
		CODAmount:     req.CODAmount,
	}
	if req.Location != nil {
		cmd.Location = &domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	result, err := h.orders.Create(r.Context(), cmd)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, orderResponse{Order: buildOrderPayload(result.Order), Duplicate: result.Duplicate})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
		Filters:         orderListFilters,
	})
	if err != nil {
		writePaginationError(r.Context(), w, err)
		return
	}
	after, ok := parseOptionalTime(w, r, "created_after")
	if !ok {
		return
	}
	before, ok := parseOptionalTime(w, r, "created_before")
	if !ok {
		return
	}

	query := services.OrderListQuery{
		ActorID:        actorID,
		Status:         params.Filter("status"),
		ShipmentStatus: params.Filter("shipment_status"),
		DateRange:      domain.TimeRange{From: after, To: before},
		Pagination:     services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	if scope := params.Filter("scope"); len(scope) > 0 {
		query.Scope = scope[0]
	}
	if driver := params.Filter("driver_id"); len(driver) > 0 {
		query.DriverID = driver[0]
	}

	page, err := h.orders.List(r.Context(), query)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), actorID, orderID)
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) assignDriver(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req assignDriverRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	order, err := h.orders.AssignDriver(r.Context(), services.AssignDriverCommand{
		OrderID:  orderID,
		ActorID:  actorID,
		DriverID: strings.TrimSpace(req.DriverID),
	})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) claimOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Claim(r.Context(), services.ClaimOrderCommand{OrderID: orderID, ActorID: actorID})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req shipOrderRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	order, err := h.orders.Ship(r.Context(), services.ShipOrderCommand{
		OrderID:        orderID,
		ActorID:        actorID,
		ShippingFee:    req.ShippingFee,
		CODAmount:      req.CODAmount,
		Courier:        req.Courier,
		TrackingNumber: req.TrackingNumber,
	})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) updateShipment(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req updateShipmentRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	cmd := services.UpdateShipmentCommand{
		OrderID:         orderID,
		ActorID:         actorID,
		Notes:           req.Notes,
		Courier:         req.Courier,
		TrackingNumber:  req.TrackingNumber,
		ShippingFee:     req.ShippingFee,
		CODAmount:       req.CODAmount,
		CollectedAmount: req.CollectedAmount,
	}
	if req.ShipmentStatus != nil {
		status := domain.ShipmentStatus(strings.ToLower(strings.TrimSpace(*req.ShipmentStatus)))
		if !status.Valid() {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "shipment_status is not a known status", http.StatusBadRequest))
			return
		}
		cmd.ShipmentStatus = &status
	}
	order, err := h.orders.UpdateShipment(r.Context(), cmd)
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) deliverOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req deliverOrderRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	order, err := h.orders.Deliver(r.Context(), services.DeliverOrderCommand{
		OrderID:         orderID,
		ActorID:         actorID,
		CollectedAmount: req.CollectedAmount,
		Note:            req.Note,
	})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) returnOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	order, err := h.orders.Return(r.Context(), services.ReturnOrderCommand{OrderID: orderID, ActorID: actorID, Reason: req.Reason})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	order, err := h.orders.Cancel(r.Context(), services.CancelOrderCommand{OrderID: orderID, ActorID: actorID, Reason: req.Reason})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) settleOrder(w http.ResponseWriter, r *http.Request) {
	actorID, orderID, ok := h.beginOrder(w, r)
	if !ok {
		return
	}
	var req settleOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	if req.ReceivedFromCourier == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "received_from_courier is required", http.StatusBadRequest))
		return
	}
	order, err := h.orders.Settle(r.Context(), services.SettleOrderCommand{
		OrderID:             orderID,
		ActorID:             actorID,
		ReceivedFromCourier: *req.ReceivedFromCourier,
	})
	h.respond(w, r, order, err)
}

func (h *OrderHandlers) begin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return requireActor(w, r)
}

func (h *OrderHandlers) beginOrder(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	actorID, ok := h.begin(w, r)
	if !ok {
		return "", "", false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", "", false
	}
	return actorID, orderID, true
}

func (h *OrderHandlers) respond(w http.ResponseWriter, r *http.Request, order services.Order, err error) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order     orderPayload `json:"order"`
	Duplicate bool         `json:"duplicate,omitempty"`
}

type geoPointPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type orderPayload struct {
	ID                  string           `json:"id"`
	InvoiceNumber       string           `json:"invoice_number"`
	CustomerName        string           `json:"customer_name"`
	CustomerPhone       string           `json:"customer_phone"`
	Address             string           `json:"address,omitempty"`
	Area                string           `json:"area,omitempty"`
	City                string           `json:"city"`
	Country             string           `json:"country"`
	Location            *geoPointPayload `json:"location,omitempty"`
	Details             string           `json:"details,omitempty"`
	ProductID           string           `json:"product_id,omitempty"`
	Quantity            int              `json:"quantity"`
	UnitPrice           *int64           `json:"unit_price,omitempty"`
	Total               *int64           `json:"total,omitempty"`
	Discount            *int64           `json:"discount,omitempty"`
	CreatedBy           string           `json:"created_by"`
	CreatorRole         string           `json:"creator_role,omitempty"`
	Status              string           `json:"status"`
	ShipmentStatus      string           `json:"shipment_status"`
	DriverID            string           `json:"driver_id,omitempty"`
	Courier             string           `json:"courier,omitempty"`
	TrackingNumber      string           `json:"tracking_number,omitempty"`
	ShipmentNotes       string           `json:"shipment_notes,omitempty"`
	ShippingFee         int64            `json:"shipping_fee"`
	CODAmount           int64            `json:"cod_amount"`
	CollectedAmount     int64            `json:"collected_amount"`
	BalanceDue          int64            `json:"balance_due"`
	ReceivedFromCourier int64            `json:"received_from_courier"`
	Settled             bool             `json:"settled"`
	SettledAt           string           `json:"settled_at,omitempty"`
	SettledBy           string           `json:"settled_by,omitempty"`
	DeliveryNote        string           `json:"delivery_note,omitempty"`
	ReturnReason        string           `json:"return_reason,omitempty"`
	CancelReason        string           `json:"cancel_reason,omitempty"`
	CreatedAt           string           `json:"created_at"`
	UpdatedAt           string           `json:"updated_at,omitempty"`
	ShippedAt           string           `json:"shipped_at,omitempty"`
	PickedUpAt          string           `json:"picked_up_at,omitempty"`
	DeliveredAt         string           `json:"delivered_at,omitempty"`
	ReturnedAt          string           `json:"returned_at,omitempty"`
	CancelledAt         string           `json:"cancelled_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                  order.ID,
		InvoiceNumber:       order.InvoiceNumber,
		CustomerName:        order.CustomerName,
		CustomerPhone:       order.CustomerPhone,
		Address:             order.Address,
		Area:                order.Area,
		City:                order.City,
		Country:             order.Country,
		Details:             order.Details,
		ProductID:           order.ProductID,
		Quantity:            order.Quantity,
		UnitPrice:           order.UnitPrice,
		Total:               order.Total,
		Discount:            order.Discount,
		CreatedBy:           order.CreatedBy,
		CreatorRole:         string(order.CreatorRole),
		Status:              string(order.Status),
		ShipmentStatus:      string(order.ShipmentStatus),
		DriverID:            order.DriverID,
		Courier:             order.Courier,
		TrackingNumber:      order.TrackingNumber,
		ShipmentNotes:       order.ShipmentNotes,
		ShippingFee:         order.ShippingFee,
		CODAmount:           order.CODAmount,
		CollectedAmount:     order.CollectedAmount,
		BalanceDue:          order.BalanceDue,
		ReceivedFromCourier: order.ReceivedFromCourier,
		Settled:             order.Settled,
		SettledAt:           formatTimePtr(order.SettledAt),
		SettledBy:           order.SettledBy,
		DeliveryNote:        order.DeliveryNote,
		ReturnReason:        order.ReturnReason,
		CancelReason:        order.CancelReason,
		CreatedAt:           formatTime(order.CreatedAt),
		UpdatedAt:           formatTime(order.UpdatedAt),
		ShippedAt:           formatTimePtr(order.ShippedAt),
		PickedUpAt:          formatTimePtr(order.PickedUpAt),
		DeliveredAt:         formatTimePtr(order.DeliveredAt),
		ReturnedAt:          formatTimePtr(order.ReturnedAt),
		CancelledAt:         formatTimePtr(order.CancelledAt),
	}
	if order.Location != nil {
		payload.Location = &geoPointPayload{Lat: order.Location.Lat, Lng: order.Location.Lng}
	}
	return payload
}
