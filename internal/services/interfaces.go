package services

import (
	"context"
	"time"

	domain "github.com/codfleet/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	ShipmentStatus     = domain.ShipmentStatus
	GeoPoint           = domain.GeoPoint
	Product            = domain.Product
	StockChange        = domain.StockChange
	Actor              = domain.Actor
	Role               = domain.Role
	Remittance         = domain.Remittance
	RemittanceSummary  = domain.RemittanceSummary
	Expense            = domain.Expense
	Transaction        = domain.Transaction
	Ledger             = domain.Ledger
	WarehouseItem      = domain.WarehouseItem
	OutboxEvent        = domain.OutboxEvent
	SystemHealthReport = domain.SystemHealthReport
)

// OrderLifecycle moves orders through creation, dispatch, delivery and settlement. Every mutation
// re-reads the order inside a unit of work and decides against that fresh state.
type OrderLifecycle interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
	AssignDriver(ctx context.Context, cmd AssignDriverCommand) (Order, error)
	Claim(ctx context.Context, cmd ClaimOrderCommand) (Order, error)
	Ship(ctx context.Context, cmd ShipOrderCommand) (Order, error)
	UpdateShipment(ctx context.Context, cmd UpdateShipmentCommand) (Order, error)
	Deliver(ctx context.Context, cmd DeliverOrderCommand) (Order, error)
	Return(ctx context.Context, cmd ReturnOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	Settle(ctx context.Context, cmd SettleOrderCommand) (Order, error)
	Get(ctx context.Context, actorID, orderID string) (Order, error)
	List(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error)
}

// ProductInventory owns per-region stock. DecrementOnShip must be called with the ship
// transaction's context so the decrement commits or rolls back with the status flip.
type ProductInventory interface {
	DecrementOnShip(ctx context.Context, cmd DecrementStockCommand) (StockChange, error)
	SetRegionStock(ctx context.Context, cmd SetRegionStockCommand) (Product, error)
	CheckAvailability(ctx context.Context, query AvailabilityQuery) (Availability, error)
}

// InvoiceCounter issues unique human-readable invoice numbers.
type InvoiceCounter interface {
	NextInvoiceNumber(ctx context.Context, at time.Time) (string, error)
}

// SubmissionDeduplicator suppresses repeated order submissions inside a short window.
type SubmissionDeduplicator interface {
	// Claim reserves the submission fingerprint while the creating transaction runs.
	Claim(ctx context.Context, sub Submission) (SubmissionClaim, error)
	// FindDuplicate returns the newest stored order matching sub inside the window.
	FindDuplicate(ctx context.Context, sub Submission) (Order, bool, error)
}

// FinancialReconciler derives the transaction ledger from orders and expenses on demand.
type FinancialReconciler interface {
	Ledger(ctx context.Context, query LedgerQuery) (Ledger, error)
	RecordExpense(ctx context.Context, cmd RecordExpenseCommand) (Expense, error)
}

// RemittanceLedger tracks driver to manager cash hand-offs.
type RemittanceLedger interface {
	Submit(ctx context.Context, cmd SubmitRemittanceCommand) (Remittance, error)
	Accept(ctx context.Context, cmd AcceptRemittanceCommand) (Remittance, error)
	Summary(ctx context.Context, query RemittanceSummaryQuery) (RemittanceSummary, error)
	List(ctx context.Context, query RemittanceListQuery) (domain.CursorPage[Remittance], error)
}

// WarehouseSummary joins product stock with shipped-order aggregates.
type WarehouseSummary interface {
	Summary(ctx context.Context, actorID string) ([]WarehouseItem, error)
}

// OutboxDispatcher publishes pending outbox events and owns their retry policy.
type OutboxDispatcher interface {
	Dispatch(ctx context.Context, limit int) (DispatchResult, error)
}

// SystemService exposes health information to handlers.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher delivers order events to downstream consumers (notifications, invoicing).
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent is the wire shape of a published order mutation.
type OrderEvent struct {
	ID            string
	Type          string
	OrderID       string
	InvoiceNumber string
	Status        string
	ActorID       string
	Recipients    []string
	Snapshot      Order
	OccurredAt    time.Time
}

// ClaimStore holds short-lived exclusive claims keyed by submission fingerprint.
type ClaimStore interface {
	// Claim returns ok=false when the key is already held. The token identifies this holder.
	Claim(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops the claim only if it is still held with token.
	Release(ctx context.Context, key, token string) error
}

// Commands and queries -------------------------------------------------------

type CreateOrderCommand struct {
	ActorID       string
	CustomerName  string
	CustomerPhone string
	Address       string
	Area          string
	City          string
	Country       string
	Location      *GeoPoint
	Details       string
	ProductID     string
	Quantity      int
	UnitPrice     *int64
	Total         *int64
	Discount      *int64
	ShippingFee   int64
	CODAmount     int64
}

type CreateOrderResult struct {
	Order     Order
	Duplicate bool
}

type AssignDriverCommand struct {
	OrderID  string
	ActorID  string
	DriverID string
}

type ClaimOrderCommand struct {
	OrderID string
	ActorID string
}

// ShipOrderCommand carries optional overrides applied just before the status flip.
type ShipOrderCommand struct {
	OrderID        string
	ActorID        string
	ShippingFee    *int64
	CODAmount      *int64
	Courier        *string
	TrackingNumber *string
}

// UpdateShipmentCommand is a partial update. Drivers may only set ShipmentStatus and Notes.
type UpdateShipmentCommand struct {
	OrderID         string
	ActorID         string
	ShipmentStatus  *ShipmentStatus
	Notes           *string
	Courier         *string
	TrackingNumber  *string
	ShippingFee     *int64
	CODAmount       *int64
	CollectedAmount *int64
}

// HasFieldUpdates reports whether anything other than status and notes is being changed.
func (c UpdateShipmentCommand) HasFieldUpdates() bool {
	return c.Courier != nil || c.TrackingNumber != nil || c.ShippingFee != nil ||
		c.CODAmount != nil || c.CollectedAmount != nil
}

type DeliverOrderCommand struct {
	OrderID         string
	ActorID         string
	CollectedAmount *int64
	Note            string
}

type ReturnOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

type SettleOrderCommand struct {
	OrderID             string
	ActorID             string
	ReceivedFromCourier int64
}

// OrderScopeClaimable restricts a driver's listing to unassigned orders in their country.
const OrderScopeClaimable = "claimable"

type OrderListQuery struct {
	ActorID        string
	Scope          string
	DriverID       string
	Status         []string
	ShipmentStatus []string
	DateRange      domain.TimeRange
	Pagination     Pagination
}

type DecrementStockCommand struct {
	ProductID string
	Country   string
	Quantity  int
}

type SetRegionStockCommand struct {
	ActorID   string
	ProductID string
	Region    string
	Quantity  int
}

type AvailabilityQuery struct {
	ProductID string
	Country   string
	Quantity  int
}

// Availability answers whether a product can ship a quantity to a country.
type Availability struct {
	ProductID string
	Country   string
	Enabled   bool
	Requested int
	Available int
	Enough    bool
}

// Submission is the fingerprint the deduplicator keys on.
type Submission struct {
	CreatedBy     string
	CustomerPhone string
	Details       string
}

type LedgerQuery struct {
	ActorID string
	From    *time.Time
	To      *time.Time
}

type RecordExpenseCommand struct {
	ActorID    string
	Title      string
	Amount     int64
	Currency   string
	Country    string
	Notes      string
	IncurredAt *time.Time
}

type SubmitRemittanceCommand struct {
	ActorID   string
	ManagerID string
	Amount    int64
	From      *time.Time
	To        *time.Time
	Note      string
}

type AcceptRemittanceCommand struct {
	RemittanceID string
	ActorID      string
}

type RemittanceSummaryQuery struct {
	ActorID  string
	DriverID string
	From     *time.Time
	To       *time.Time
}

type RemittanceListQuery struct {
	ActorID    string
	Status     []string
	Pagination Pagination
}

// DispatchResult counts what one outbox pass did.
type DispatchResult struct {
	Published int
	Retried   int
	Failed    int
}
