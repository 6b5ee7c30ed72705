package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Contains reports whether value lies within the inclusive range. Open bounds always match.
func (r RangeQuery[T]) Contains(value T, less func(a, b T) bool) bool {
	if r.From != nil && less(value, *r.From) {
		return false
	}
	if r.To != nil && less(*r.To, value) {
		return false
	}
	return true
}

// TimeRange is the inclusive time window used by reports and snapshots.
type TimeRange = RangeQuery[time.Time]

// InTimeRange reports whether ts falls inside r. A nil bound is open.
func InTimeRange(r TimeRange, ts time.Time) bool {
	return r.Contains(ts, func(a, b time.Time) bool { return a.Before(b) })
}

// Role identifies the kind of actor performing an operation.
type Role string

const (
	// RoleAdmin has unrestricted access across workspaces.
	RoleAdmin Role = "admin"
	// RoleUser is a workspace owner; agents, managers and drivers hang off it.
	RoleUser Role = "user"
	// RoleManager receives remittances and may dispatch within the owner's workspace.
	RoleManager Role = "manager"
	// RoleAgent creates orders on behalf of a workspace.
	RoleAgent Role = "agent"
	// RoleDriver delivers orders and remits collected cash.
	RoleDriver Role = "driver"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleManager, RoleAgent, RoleDriver:
		return true
	}
	return false
}

// Actor is the profile of anyone allowed to call the API.
type Actor struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	Role            Role
	CreatedBy       string
	Country         string
	City            string
	CanCreateOrders bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderStatus is the coarse warehouse flag: has the order left the warehouse.
type OrderStatus string

const (
	// OrderStatusPending means stock has not been decremented yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped is set exactly once, together with the stock decrement.
	OrderStatusShipped OrderStatus = "shipped"
)

// ShipmentStatus is the courier/driver facing state of an order.
type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "pending"
	ShipmentAssigned   ShipmentStatus = "assigned"
	ShipmentInTransit  ShipmentStatus = "in_transit"
	ShipmentNoResponse ShipmentStatus = "no_response"
	ShipmentAttempted  ShipmentStatus = "attempted"
	ShipmentContacted  ShipmentStatus = "contacted"
	ShipmentPickedUp   ShipmentStatus = "picked_up"
	ShipmentDelivered  ShipmentStatus = "delivered"
	ShipmentReturned   ShipmentStatus = "returned"
	ShipmentCancelled  ShipmentStatus = "cancelled"
)

var shipmentStatuses = map[ShipmentStatus]struct{}{
	ShipmentPending:    {},
	ShipmentAssigned:   {},
	ShipmentInTransit:  {},
	ShipmentNoResponse: {},
	ShipmentAttempted:  {},
	ShipmentContacted:  {},
	ShipmentPickedUp:   {},
	ShipmentDelivered:  {},
	ShipmentReturned:   {},
	ShipmentCancelled:  {},
}

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	_, ok := shipmentStatuses[s]
	return ok
}

// IsTerminal reports whether no further shipment transition is permitted.
func (s ShipmentStatus) IsTerminal() bool {
	switch s {
	case ShipmentDelivered, ShipmentReturned, ShipmentCancelled:
		return true
	}
	return false
}

// DriverUpdatable reports whether a driver may set s through the restricted update path.
func (s ShipmentStatus) DriverUpdatable() bool {
	switch s {
	case ShipmentNoResponse, ShipmentAttempted, ShipmentContacted, ShipmentPickedUp:
		return true
	}
	return false
}

// GeoPoint is an optional customer location.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Order is one customer order tracked through dispatch, delivery and settlement.
type Order struct {
	ID            string
	InvoiceNumber string

	CustomerName  string
	CustomerPhone string
	Address       string
	Area          string
	City          string
	Country       string
	Location      *GeoPoint
	Details       string

	ProductID string
	Quantity  int
	UnitPrice *int64
	Total     *int64
	Discount  *int64

	CreatedBy        string
	CreatorRole      Role
	WorkspaceOwnerID string

	Status         OrderStatus
	ShipmentStatus ShipmentStatus
	DriverID       string
	Courier        string
	TrackingNumber string
	ShipmentNotes  string

	ShippingFee     int64
	CODAmount       int64
	CollectedAmount int64
	BalanceDue      int64

	ReceivedFromCourier int64
	Settled             bool
	SettledAt           *time.Time
	SettledBy           string

	DeliveryNote string
	ReturnReason string
	CancelReason string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	ReturnedAt  *time.Time
	CancelledAt *time.Time
}

// RecomputeBalance refreshes BalanceDue from the money fields.
func (o *Order) RecomputeBalance() {
	o.BalanceDue = BalanceDue(o.CODAmount, o.CollectedAmount, o.ShippingFee)
}

// Product is the inventory-relevant slice of a catalog item.
type Product struct {
	ID               string
	Name             string
	SKU              string
	WorkspaceOwnerID string
	Price            int64
	Cost             int64
	EnabledCountries []string
	RegionStock      map[string]int
	StockQty         int
	InStock          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RemittanceStatus is one-way: pending then accepted.
type RemittanceStatus string

const (
	RemittancePending  RemittanceStatus = "pending"
	RemittanceAccepted RemittanceStatus = "accepted"
)

// Remittance records a driver's cash hand-off to a manager.
type Remittance struct {
	ID                   string
	DriverID             string
	ManagerID            string
	WorkspaceOwnerID     string
	Country              string
	Currency             string
	Amount               int64
	From                 *time.Time
	To                   *time.Time
	TotalDeliveredOrders int
	Note                 string
	Status               RemittanceStatus
	AcceptedAt           *time.Time
	AcceptedBy           string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RemittanceSummary aggregates a driver's deliveries for a window.
type RemittanceSummary struct {
	DriverID        string
	Currency        string
	From            *time.Time
	To              *time.Time
	DeliveredOrders int
	CollectedAmount int64
}

// Expense is an operating cost recorded against a workspace.
type Expense struct {
	ID               string
	WorkspaceOwnerID string
	CreatedBy        string
	Title            string
	Amount           int64
	Currency         string
	Country          string
	Notes            string
	IncurredAt       time.Time
	CreatedAt        time.Time
}

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction sources emitted by the reconciler.
const (
	SourceCourierSettlement = "courier_settlement"
	SourceCODCollected      = "cod_collected"
	SourceShippingCost      = "shipping_cost"
	SourceExpense           = "expense"
)

// Transaction is one derived ledger line. It is never persisted.
type Transaction struct {
	Date      time.Time
	Type      TransactionType
	Source    string
	Reference string
	Amount    int64
	Currency  string
	Notes     string
}

// Ledger is the derived transaction list for a window with its totals.
type Ledger struct {
	From         time.Time
	To           time.Time
	Transactions []Transaction
	Credits      int64
	Debits       int64
	Net          int64
}

// WarehouseItem joins a product's stock with its shipped-order aggregates.
type WarehouseItem struct {
	ProductID      string
	Name           string
	SKU            string
	RegionStock    map[string]int
	StockLeft      int
	InStock        bool
	ShippedQty     int
	ShippedOrders  int
	StockValue     int64
	ShippedValue   int64
	CODOutstanding int64
}

// OutboxState tracks delivery of an outbox event to the event bus.
type OutboxState string

const (
	OutboxPending   OutboxState = "pending"
	OutboxPublished OutboxState = "published"
	OutboxFailed    OutboxState = "failed"
)

// OutboxEvent is appended in the same unit of work as the order mutation it describes.
type OutboxEvent struct {
	ID            string
	OrderID       string
	Action        string
	NewStatus     string
	Snapshot      Order
	Recipients    []string
	ActorID       string
	State         OutboxState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	PublishedAt   *time.Time
	CreatedAt     time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
