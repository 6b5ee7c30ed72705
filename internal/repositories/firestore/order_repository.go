package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in Firestore. Reads and writes join the transaction carried on
// the context when one is present.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Create(ctx, order.ID, newOrderDocument(order))
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Set(ctx, order.ID, newOrderDocument(order))
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindRecentDuplicate needs a composite index on (createdBy, customerPhone, details, createdAt desc).
func (r *OrderRepository) FindRecentDuplicate(ctx context.Context, query repositories.DuplicateQuery) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("createdBy", "==", query.CreatedBy).
			Where("customerPhone", "==", query.CustomerPhone).
			Where("details", "==", query.Details).
			Where("createdAt", ">=", query.Since.UTC()).
			OrderBy("createdAt", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.duplicate", notFoundStatus("no recent duplicate"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	if err := filter.Validate(); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	limit := max(filter.Pagination.PageSize, 0)
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		ts, id, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = applyOrderFilter(q, filter).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		if nextToken, err = pagination.EncodeTimeCursor(last.Data.CreatedAt, last.ID); err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

func (r *OrderRepository) Scan(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = applyOrderFilter(q, filter)
		if filter.UpdatedSince != nil {
			q = q.OrderBy("updatedAt", firestore.Desc)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	if filter.UpdatedSince != nil {
		slices.SortStableFunc(items, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
	return items, nil
}

func applyOrderFilter(q firestore.Query, filter repositories.OrderListFilter) firestore.Query {
	if filter.WorkspaceOwnerID != "" {
		q = q.Where("workspaceOwnerId", "==", filter.WorkspaceOwnerID)
	}
	if filter.CreatedBy != "" {
		q = q.Where("createdBy", "==", filter.CreatedBy)
	}
	if filter.DriverID != "" {
		q = q.Where("driverId", "==", filter.DriverID)
	} else if filter.Unassigned {
		q = q.Where("driverId", "==", "")
	}
	if filter.ProductID != "" {
		q = q.Where("productId", "==", filter.ProductID)
	}
	if filter.Country != "" {
		q = q.Where("countryCode", "==", domain.NormalizeCountry(filter.Country))
	}
	q = whereIn(q, "status", filter.Status)
	q = whereIn(q, "shipmentStatus", filter.ShipmentStatus)
	if filter.UpdatedSince != nil {
		q = q.Where("updatedAt", ">=", filter.UpdatedSince.UTC())
	}
	if filter.DateRange.From != nil {
		q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}
	return q
}

// whereIn expects lists already bounded by OrderListFilter.Validate.
func whereIn(q firestore.Query, field string, values []string) firestore.Query {
	switch {
	case len(values) == 1:
		return q.Where(field, "==", values[0])
	case len(values) > 1:
		return q.Where(field, "in", values)
	}
	return q
}

type geoPointDocument struct {
	Lat float64 `firestore:"lat"`
	Lng float64 `firestore:"lng"`
}

type orderDocument struct {
	InvoiceNumber       string            `firestore:"invoiceNumber"`
	CustomerName        string            `firestore:"customerName"`
	CustomerPhone       string            `firestore:"customerPhone"`
	Address             string            `firestore:"address"`
	Area                string            `firestore:"area,omitempty"`
	City                string            `firestore:"city"`
	Country             string            `firestore:"country"`
	CountryCode         string            `firestore:"countryCode"`
	Location            *geoPointDocument `firestore:"location,omitempty"`
	Details             string            `firestore:"details"`
	ProductID           string            `firestore:"productId,omitempty"`
	Quantity            int               `firestore:"quantity"`
	UnitPrice           *int64            `firestore:"unitPrice,omitempty"`
	Total               *int64            `firestore:"total,omitempty"`
	Discount            *int64            `firestore:"discount,omitempty"`
	CreatedBy           string            `firestore:"createdBy"`
	CreatorRole         string            `firestore:"creatorRole"`
	WorkspaceOwnerID    string            `firestore:"workspaceOwnerId"`
	Status              string            `firestore:"status"`
	ShipmentStatus      string            `firestore:"shipmentStatus"`
	DriverID            string            `firestore:"driverId"`
	Courier             string            `firestore:"courier,omitempty"`
	TrackingNumber      string            `firestore:"trackingNumber,omitempty"`
	ShipmentNotes       string            `firestore:"shipmentNotes,omitempty"`
	ShippingFee         int64             `firestore:"shippingFee"`
	CODAmount           int64             `firestore:"codAmount"`
	CollectedAmount     int64             `firestore:"collectedAmount"`
	BalanceDue          int64             `firestore:"balanceDue"`
	ReceivedFromCourier int64             `firestore:"receivedFromCourier"`
	Settled             bool              `firestore:"settled"`
	SettledAt           *time.Time        `firestore:"settledAt,omitempty"`
	SettledBy           string            `firestore:"settledBy,omitempty"`
	DeliveryNote        string            `firestore:"deliveryNote,omitempty"`
	ReturnReason        string            `firestore:"returnReason,omitempty"`
	CancelReason        string            `firestore:"cancelReason,omitempty"`
	CreatedAt           time.Time         `firestore:"createdAt"`
	UpdatedAt           time.Time         `firestore:"updatedAt"`
	ShippedAt           *time.Time        `firestore:"shippedAt,omitempty"`
	PickedUpAt          *time.Time        `firestore:"pickedUpAt,omitempty"`
	DeliveredAt         *time.Time        `firestore:"deliveredAt,omitempty"`
	ReturnedAt          *time.Time        `firestore:"returnedAt,omitempty"`
	CancelledAt         *time.Time        `firestore:"cancelledAt,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		InvoiceNumber:       order.InvoiceNumber,
		CustomerName:        order.CustomerName,
		CustomerPhone:       order.CustomerPhone,
		Address:             order.Address,
		Area:                order.Area,
		City:                order.City,
		Country:             order.Country,
		CountryCode:         domain.NormalizeCountry(order.Country),
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
		CreatedAt:           order.CreatedAt.UTC(),
		UpdatedAt:           order.UpdatedAt.UTC(),
		ShippedAt:           utcPtr(order.ShippedAt),
		PickedUpAt:          utcPtr(order.PickedUpAt),
		DeliveredAt:         utcPtr(order.DeliveredAt),
		ReturnedAt:          utcPtr(order.ReturnedAt),
		CancelledAt:         utcPtr(order.CancelledAt),
	}
	if order.Location != nil {
		doc.Location = &geoPointDocument{Lat: order.Location.Lat, Lng: order.Location.Lng}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                  id,
		InvoiceNumber:       d.InvoiceNumber,
		CustomerName:        d.CustomerName,
		CustomerPhone:       d.CustomerPhone,
		Address:             d.Address,
		Area:                d.Area,
		City:                d.City,
		Country:             d.Country,
		Details:             d.Details,
		ProductID:           d.ProductID,
		Quantity:            d.Quantity,
		UnitPrice:           d.UnitPrice,
		Total:               d.Total,
		Discount:            d.Discount,
		CreatedBy:           d.CreatedBy,
		CreatorRole:         domain.Role(d.CreatorRole),
		WorkspaceOwnerID:    d.WorkspaceOwnerID,
		Status:              domain.OrderStatus(d.Status),
		ShipmentStatus:      domain.ShipmentStatus(d.ShipmentStatus),
		DriverID:            d.DriverID,
		Courier:             d.Courier,
		TrackingNumber:      d.TrackingNumber,
		ShipmentNotes:       d.ShipmentNotes,
		ShippingFee:         d.ShippingFee,
		CODAmount:           d.CODAmount,
		CollectedAmount:     d.CollectedAmount,
		BalanceDue:          d.BalanceDue,
		ReceivedFromCourier: d.ReceivedFromCourier,
		Settled:             d.Settled,
		SettledAt:           utcPtr(d.SettledAt),
		SettledBy:           d.SettledBy,
		DeliveryNote:        d.DeliveryNote,
		ReturnReason:        d.ReturnReason,
		CancelReason:        d.CancelReason,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
		ShippedAt:           utcPtr(d.ShippedAt),
		PickedUpAt:          utcPtr(d.PickedUpAt),
		DeliveredAt:         utcPtr(d.DeliveredAt),
		ReturnedAt:          utcPtr(d.ReturnedAt),
		CancelledAt:         utcPtr(d.CancelledAt),
	}
	if d.Location != nil {
		order.Location = &domain.GeoPoint{Lat: d.Location.Lat, Lng: d.Location.Lng}
	}
	return order
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	value := t.UTC()
	return &value
}
