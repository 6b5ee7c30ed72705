package jobs

import (
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/services"
)

// orderEventEnvelope is the JSON body shared by every event transport.
type orderEventEnvelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OrderID       string          `json:"orderId"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	Status        string          `json:"status,omitempty"`
	ActorID       string          `json:"actorId,omitempty"`
	Recipients    []string        `json:"recipients,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Order         orderSnapshotV1 `json:"order"`
}

// orderSnapshotV1 is the full order as of the event, so collaborators never read it back.
type orderSnapshotV1 struct {
	ID                  string      `json:"id"`
	InvoiceNumber       string      `json:"invoiceNumber,omitempty"`
	CustomerName        string      `json:"customerName,omitempty"`
	CustomerPhone       string      `json:"customerPhone"`
	Address             string      `json:"address,omitempty"`
	Area                string      `json:"area,omitempty"`
	City                string      `json:"city,omitempty"`
	Country             string      `json:"country,omitempty"`
	Location            *geoPointV1 `json:"location,omitempty"`
	Details             string      `json:"details,omitempty"`
	ProductID           string      `json:"productId,omitempty"`
	Quantity            int         `json:"quantity,omitempty"`
	UnitPrice           *int64      `json:"unitPrice,omitempty"`
	Total               *int64      `json:"total,omitempty"`
	Discount            *int64      `json:"discount,omitempty"`
	CreatedBy           string      `json:"createdBy,omitempty"`
	CreatorRole         string      `json:"creatorRole,omitempty"`
	WorkspaceOwnerID    string      `json:"workspaceOwnerId,omitempty"`
	Status              string      `json:"status,omitempty"`
	ShipmentStatus      string      `json:"shipmentStatus,omitempty"`
	DriverID            string      `json:"driverId,omitempty"`
	Courier             string      `json:"courier,omitempty"`
	TrackingNumber      string      `json:"trackingNumber,omitempty"`
	ShipmentNotes       string      `json:"shipmentNotes,omitempty"`
	ShippingFee         int64       `json:"shippingFee"`
	CODAmount           int64       `json:"codAmount"`
	CollectedAmount     int64       `json:"collectedAmount"`
	BalanceDue          int64       `json:"balanceDue"`
	ReceivedFromCourier int64       `json:"receivedFromCourier"`
	Settled             bool        `json:"settled"`
	SettledAt           *time.Time  `json:"settledAt,omitempty"`
	SettledBy           string      `json:"settledBy,omitempty"`
	DeliveryNote        string      `json:"deliveryNote,omitempty"`
	ReturnReason        string      `json:"returnReason,omitempty"`
	CancelReason        string      `json:"cancelReason,omitempty"`
	CreatedAt           *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time  `json:"updatedAt,omitempty"`
	ShippedAt           *time.Time  `json:"shippedAt,omitempty"`
	PickedUpAt          *time.Time  `json:"pickedUpAt,omitempty"`
	DeliveredAt         *time.Time  `json:"deliveredAt,omitempty"`
	ReturnedAt          *time.Time  `json:"returnedAt,omitempty"`
	CancelledAt         *time.Time  `json:"cancelledAt,omitempty"`
}

type geoPointV1 struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func newEnvelope(event services.OrderEvent) orderEventEnvelope {
	return orderEventEnvelope{
		ID:            event.ID,
		Type:          event.Type,
		OrderID:       event.OrderID,
		InvoiceNumber: event.InvoiceNumber,
		Status:        event.Status,
		ActorID:       event.ActorID,
		Recipients:    event.Recipients,
		OccurredAt:    event.OccurredAt.UTC(),
		Order:         newOrderSnapshot(event.Snapshot),
	}
}

func newOrderSnapshot(order domain.Order) orderSnapshotV1 {
	snap := orderSnapshotV1{
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
		WorkspaceOwnerID:    order.WorkspaceOwnerID,
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
		SettledAt:           utcPtr(order.SettledAt),
		SettledBy:           order.SettledBy,
		DeliveryNote:        order.DeliveryNote,
		ReturnReason:        order.ReturnReason,
		CancelReason:        order.CancelReason,
		CreatedAt:           utcTime(order.CreatedAt),
		UpdatedAt:           utcTime(order.UpdatedAt),
		ShippedAt:           utcPtr(order.ShippedAt),
		PickedUpAt:          utcPtr(order.PickedUpAt),
		DeliveredAt:         utcPtr(order.DeliveredAt),
		ReturnedAt:          utcPtr(order.ReturnedAt),
		CancelledAt:         utcPtr(order.CancelledAt),
	}
	if order.Location != nil {
		snap.Location = &geoPointV1{Lat: order.Location.Lat, Lng: order.Location.Lng}
	}
	return snap
}

func utcTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return utcTime(*t)
}

func eventAttributes(event services.OrderEvent) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "invoiceNumber", event.InvoiceNumber)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
