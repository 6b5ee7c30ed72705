package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/textutil"
	"github.com/codfleet/api/internal/repositories"
)

// Outbox actions, also used as the suffix of published event types.
const (
	OrderActionCreated         = "created"
	OrderActionAssigned        = "assigned"
	OrderActionClaimed         = "claimed"
	OrderActionShipped         = "shipped"
	OrderActionShipmentUpdated = "shipment_updated"
	OrderActionDelivered       = "delivered"
	OrderActionReturned        = "returned"
	OrderActionCancelled       = "cancelled"
	OrderActionSettled         = "settled"

	orderIDPrefix  = "ord_"
	outboxIDPrefix = "evt_"
)

// OrderLifecycleDeps bundles collaborators required to construct the order lifecycle service.
type OrderLifecycleDeps struct {
	Orders       repositories.OrderRepository
	Products     repositories.ProductRepository
	Actors       repositories.ActorRepository
	Outbox       repositories.OutboxRepository
	Invoices     InvoiceCounter
	Inventory    ProductInventory
	Deduplicator SubmissionDeduplicator
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderLifecycle struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	actors     repositories.ActorRepository
	outbox     repositories.OutboxRepository
	invoices   InvoiceCounter
	inventory  ProductInventory
	dedup      SubmissionDeduplicator
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderLifecycle wires dependencies into a concrete OrderLifecycle implementation.
func NewOrderLifecycle(deps OrderLifecycleDeps) (OrderLifecycle, error) {
	if deps.Orders == nil {
		return nil, errors.New("order lifecycle: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order lifecycle: product repository is required")
	}
	if deps.Actors == nil {
		return nil, errors.New("order lifecycle: actor repository is required")
	}
	if deps.Outbox == nil {
		return nil, errors.New("order lifecycle: outbox repository is required")
	}
	if deps.Invoices == nil {
		return nil, errors.New("order lifecycle: invoice counter is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order lifecycle: inventory is required")
	}
	if deps.Deduplicator == nil {
		return nil, errors.New("order lifecycle: deduplicator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderLifecycle{
		orders:     deps.Orders,
		products:   deps.Products,
		actors:     deps.Actors,
		outbox:     deps.Outbox,
		invoices:   deps.Invoices,
		inventory:  deps.Inventory,
		dedup:      deps.Deduplicator,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderLifecycle) Create(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	draft, err := normaliseCreateCommand(cmd)
	if err != nil {
		return CreateOrderResult{}, err
	}

	actor, err := loadActor(ctx, s.actors, cmd.ActorID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if decision := AuthorizeTransition(TransitionRequest{Transition: TransitionCreate, Actor: actor}); !decision.Allowed {
		return CreateOrderResult{}, decision.Err()
	}
	workspace, err := resolveWorkspace(ctx, s.actors, actor)
	if err != nil {
		return CreateOrderResult{}, err
	}

	sub := Submission{CreatedBy: actor.ID, CustomerPhone: draft.CustomerPhone, Details: draft.Details}
	claim, err := s.dedup.Claim(ctx, sub)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !claim.Acquired {
		existing, found, err := s.dedup.FindDuplicate(ctx, sub)
		if err != nil {
			return CreateOrderResult{}, err
		}
		if !found {
			return CreateOrderResult{}, ErrSubmissionInProgress
		}
		s.logDuplicate(ctx, existing, "claim")
		return CreateOrderResult{Order: existing, Duplicate: true}, nil
	}
	defer func() {
		if err := claim.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger(ctx, "dedup.release_failed", map[string]any{
				"actorId": actor.ID,
				"error":   err.Error(),
			})
		}
	}()

	now := s.now()
	var result CreateOrderResult
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		result = CreateOrderResult{}

		existing, found, err := s.dedup.FindDuplicate(txCtx, sub)
		if err != nil {
			return err
		}
		if found {
			result = CreateOrderResult{Order: existing, Duplicate: true}
			return nil
		}

		if draft.ProductID != "" {
			product, err := s.products.FindByID(txCtx, draft.ProductID)
			if err != nil {
				return mapRepositoryError(ErrProductNotFound, err)
			}
			if !product.EnabledIn(draft.Country) {
				return fmt.Errorf("%w: %s is not sold in %s", ErrProductUnavailable, product.ID, draft.Country)
			}
		}

		invoice, err := s.invoices.NextInvoiceNumber(txCtx, now)
		if err != nil {
			return err
		}

		order := draft
		order.ID = orderIDPrefix + s.newID()
		order.InvoiceNumber = invoice
		order.CreatedBy = actor.ID
		order.CreatorRole = actor.Role
		order.WorkspaceOwnerID = workspace
		order.Status = domain.OrderStatusPending
		order.ShipmentStatus = domain.ShipmentPending
		order.CreatedAt = now
		order.UpdatedAt = now
		order.RecomputeBalance()

		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(ErrOrderNotFound, err)
		}
		if err := s.appendEvent(txCtx, order, OrderActionCreated, actor.ID, now); err != nil {
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	if result.Duplicate {
		s.logDuplicate(ctx, result.Order, "lookback")
		return result, nil
	}
	s.logger(ctx, "order.created", map[string]any{
		"orderId":       result.Order.ID,
		"invoiceNumber": result.Order.InvoiceNumber,
		"actorId":       actor.ID,
		"workspaceId":   workspace,
	})
	return result, nil
}

func (s *orderLifecycle) AssignDriver(ctx context.Context, cmd AssignDriverCommand) (Order, error) {
	driverID := strings.TrimSpace(cmd.DriverID)
	if driverID == "" {
		return Order{}, fmt.Errorf("%w: driver id is required", ErrOrderInvalidInput)
	}

	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionAssign,
		action:     OrderActionAssigned,
		prepare: func(txCtx context.Context, req *TransitionRequest) error {
			driver, err := s.actors.FindByID(txCtx, driverID)
			if err != nil {
				return mapRepositoryError(ErrActorNotFound, err)
			}
			workspace, err := resolveWorkspace(txCtx, s.actors, driver)
			if err != nil {
				return err
			}
			req.Driver = &driver
			req.DriverWorkspace = workspace
			return nil
		},
		apply: func(_ context.Context, order *Order, _ time.Time) error {
			order.DriverID = driverID
			if order.ShipmentStatus == domain.ShipmentPending {
				order.ShipmentStatus = domain.ShipmentAssigned
			}
			return nil
		},
	})
}

func (s *orderLifecycle) Claim(ctx context.Context, cmd ClaimOrderCommand) (Order, error) {
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionClaim,
		action:     OrderActionClaimed,
		apply: func(_ context.Context, order *Order, _ time.Time) error {
			order.DriverID = strings.TrimSpace(cmd.ActorID)
			if order.ShipmentStatus == domain.ShipmentPending {
				order.ShipmentStatus = domain.ShipmentAssigned
			}
			return nil
		},
	})
}

// Ship flips status to shipped and decrements stock in the same unit of work. A repeated call on a
// shipped order returns it unchanged without touching inventory.
func (s *orderLifecycle) Ship(ctx context.Context, cmd ShipOrderCommand) (Order, error) {
	if err := nonNegative("shippingFee", cmd.ShippingFee); err != nil {
		return Order{}, err
	}
	if err := nonNegative("codAmount", cmd.CODAmount); err != nil {
		return Order{}, err
	}

	var stock *StockChange
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionShip,
		action:     OrderActionShipped,
		apply: func(txCtx context.Context, order *Order, now time.Time) error {
			stock = nil
			if order.ProductID != "" {
				change, err := s.inventory.DecrementOnShip(deferStockLog(txCtx), DecrementStockCommand{
					ProductID: order.ProductID,
					Country:   order.Country,
					Quantity:  order.Quantity,
				})
				if err != nil {
					return err
				}
				stock = &change
			}

			if cmd.ShippingFee != nil {
				order.ShippingFee = *cmd.ShippingFee
			}
			if cmd.CODAmount != nil {
				order.CODAmount = *cmd.CODAmount
			}
			if cmd.Courier != nil {
				order.Courier = strings.TrimSpace(*cmd.Courier)
			}
			if cmd.TrackingNumber != nil {
				order.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
			}
			order.Status = domain.OrderStatusShipped
			if order.ShipmentStatus == domain.ShipmentPending || order.ShipmentStatus == domain.ShipmentAssigned {
				order.ShipmentStatus = domain.ShipmentInTransit
			}
			order.ShippedAt = valuePtr(now)
			return nil
		},
		committed: func(ctx context.Context, order Order) {
			if stock == nil {
				return
			}
			s.logger(ctx, "inventory.decremented", stockChangeFields(order.ProductID, *stock))
			if stock.Applied < stock.Requested {
				s.logger(ctx, "order.ship.stock_clamped", map[string]any{
					"orderId":   order.ID,
					"productId": order.ProductID,
					"requested": stock.Requested,
					"applied":   stock.Applied,
				})
			}
		},
	})
}

func (s *orderLifecycle) UpdateShipment(ctx context.Context, cmd UpdateShipmentCommand) (Order, error) {
	for name, value := range map[string]*int64{
		"shippingFee":     cmd.ShippingFee,
		"codAmount":       cmd.CODAmount,
		"collectedAmount": cmd.CollectedAmount,
	} {
		if err := nonNegative(name, value); err != nil {
			return Order{}, err
		}
	}

	var target ShipmentStatus
	if cmd.ShipmentStatus != nil {
		target = ShipmentStatus(strings.TrimSpace(string(*cmd.ShipmentStatus)))
		if target == "" {
			return Order{}, fmt.Errorf("%w: shipment status must not be blank", ErrOrderInvalidInput)
		}
	}
	if target == "" && cmd.Notes == nil && !cmd.HasFieldUpdates() {
		return Order{}, fmt.Errorf("%w: nothing to update", ErrOrderInvalidInput)
	}

	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionUpdateShipment,
		action:     OrderActionShipmentUpdated,
		prepare: func(_ context.Context, req *TransitionRequest) error {
			req.TargetStatus = target
			req.FieldUpdates = cmd.HasFieldUpdates()
			return nil
		},
		apply: func(_ context.Context, order *Order, now time.Time) error {
			if cmd.Notes != nil {
				order.ShipmentNotes = textutil.SanitizeNote(*cmd.Notes)
			}
			if cmd.Courier != nil {
				order.Courier = strings.TrimSpace(*cmd.Courier)
			}
			if cmd.TrackingNumber != nil {
				order.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
			}
			if cmd.ShippingFee != nil {
				order.ShippingFee = *cmd.ShippingFee
			}
			if cmd.CODAmount != nil {
				order.CODAmount = *cmd.CODAmount
			}
			if cmd.CollectedAmount != nil {
				order.CollectedAmount = *cmd.CollectedAmount
			}
			if target != "" && target != order.ShipmentStatus {
				order.ShipmentStatus = target
				stampShipmentTime(order, target, now)
			}
			return nil
		},
	})
}

func (s *orderLifecycle) Deliver(ctx context.Context, cmd DeliverOrderCommand) (Order, error) {
	if err := nonNegative("collectedAmount", cmd.CollectedAmount); err != nil {
		return Order{}, err
	}
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionDeliver,
		action:     OrderActionDelivered,
		apply: func(_ context.Context, order *Order, now time.Time) error {
			if cmd.CollectedAmount != nil {
				order.CollectedAmount = *cmd.CollectedAmount
			}
			if note := textutil.SanitizeNote(cmd.Note); note != "" {
				order.DeliveryNote = note
			}
			order.ShipmentStatus = domain.ShipmentDelivered
			stampShipmentTime(order, domain.ShipmentDelivered, now)
			return nil
		},
	})
}

func (s *orderLifecycle) Return(ctx context.Context, cmd ReturnOrderCommand) (Order, error) {
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionReturn,
		action:     OrderActionReturned,
		apply: func(_ context.Context, order *Order, now time.Time) error {
			order.ReturnReason = textutil.SanitizeNote(cmd.Reason)
			order.ShipmentStatus = domain.ShipmentReturned
			stampShipmentTime(order, domain.ShipmentReturned, now)
			return nil
		},
	})
}

func (s *orderLifecycle) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionCancel,
		action:     OrderActionCancelled,
		apply: func(_ context.Context, order *Order, now time.Time) error {
			order.CancelReason = textutil.SanitizeNote(cmd.Reason)
			order.ShipmentStatus = domain.ShipmentCancelled
			stampShipmentTime(order, domain.ShipmentCancelled, now)
			return nil
		},
	})
}

func (s *orderLifecycle) Settle(ctx context.Context, cmd SettleOrderCommand) (Order, error) {
	if cmd.ReceivedFromCourier < 0 {
		return Order{}, fmt.Errorf("%w: receivedFromCourier must not be negative", ErrOrderInvalidInput)
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	return s.mutate(ctx, cmd.OrderID, cmd.ActorID, orderMutation{
		transition: TransitionSettle,
		action:     OrderActionSettled,
		apply: func(_ context.Context, order *Order, now time.Time) error {
			order.ReceivedFromCourier = cmd.ReceivedFromCourier
			order.Settled = true
			order.SettledAt = valuePtr(now)
			order.SettledBy = actorID
			return nil
		},
	})
}

func (s *orderLifecycle) Get(ctx context.Context, actorID, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	actor, err := loadActor(ctx, s.actors, actorID)
	if err != nil {
		return Order{}, err
	}
	workspace, err := resolveWorkspace(ctx, s.actors, actor)
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(ErrOrderNotFound, err)
	}
	decision := AuthorizeTransition(TransitionRequest{
		Transition:     TransitionView,
		Actor:          actor,
		ActorWorkspace: workspace,
		Order:          order,
	})
	if !decision.Allowed {
		// Hide existence of orders outside the caller's scope.
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// List applies the caller's visibility scope on top of the requested filters.
func (s *orderLifecycle) List(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error) {
	actor, err := loadActor(ctx, s.actors, query.ActorID)
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}
	workspace, err := resolveWorkspace(ctx, s.actors, actor)
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}

	for _, status := range query.ShipmentStatus {
		if !ShipmentStatus(status).Valid() {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown shipment status %q", ErrOrderInvalidInput, status)
		}
	}

	filter := repositories.OrderListFilter{
		DriverID:       strings.TrimSpace(query.DriverID),
		Status:         query.Status,
		ShipmentStatus: query.ShipmentStatus,
		DateRange:      query.DateRange,
		Pagination:     query.Pagination,
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleUser, domain.RoleManager:
		if workspace == "" {
			return domain.CursorPage[Order]{}, nil
		}
		filter.WorkspaceOwnerID = workspace
	case domain.RoleAgent:
		filter.CreatedBy = actor.ID
	case domain.RoleDriver:
		if query.Scope == OrderScopeClaimable {
			filter.DriverID = ""
			filter.Unassigned = true
			filter.Country = domain.NormalizeCountry(actor.Country)
			if len(filter.ShipmentStatus) == 0 {
				filter.ShipmentStatus = claimableStatuses
			}
		} else {
			filter.DriverID = actor.ID
		}
	default:
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: role may not list orders", ErrAuthorization)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(ErrOrderNotFound, err)
	}
	return page, nil
}

var claimableStatuses = []string{string(domain.ShipmentPending), string(domain.ShipmentAssigned)}

type orderMutation struct {
	transition Transition
	action     string
	// prepare loads extra authorization inputs. It runs inside the transaction before any write.
	prepare func(txCtx context.Context, req *TransitionRequest) error
	apply   func(txCtx context.Context, order *Order, now time.Time) error
	// committed runs once after a successful write, outside the transaction.
	committed func(ctx context.Context, order Order)
}

// mutate runs read, authorize, apply and write in one unit of work so every guard sees fresh state.
func (s *orderLifecycle) mutate(ctx context.Context, orderID, actorID string, m orderMutation) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	actor, err := loadActor(ctx, s.actors, actorID)
	if err != nil {
		return Order{}, err
	}
	workspace, err := resolveWorkspace(ctx, s.actors, actor)
	if err != nil {
		return Order{}, err
	}

	var (
		result  Order
		changed bool
		before  ShipmentStatus
	)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		changed = false

		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(ErrOrderNotFound, err)
		}
		req := TransitionRequest{
			Transition:     m.transition,
			Actor:          actor,
			ActorWorkspace: workspace,
			Order:          order,
		}
		if m.prepare != nil {
			if err := m.prepare(txCtx, &req); err != nil {
				return err
			}
		}
		decision := AuthorizeTransition(req)
		if !decision.Allowed {
			return decision.Err()
		}
		if decision.Noop {
			result = order
			return nil
		}

		now := s.now()
		before = order.ShipmentStatus
		if err := m.apply(txCtx, &order, now); err != nil {
			return err
		}
		order.RecomputeBalance()
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(ErrOrderNotFound, err)
		}
		if err := s.appendEvent(txCtx, order, m.action, actor.ID, now); err != nil {
			return err
		}
		result = order
		changed = true
		return nil
	})
	if err != nil {
		s.logger(ctx, "order."+m.action+".rejected", map[string]any{
			"orderId": orderID,
			"actorId": actor.ID,
			"error":   err.Error(),
		})
		return Order{}, err
	}

	if changed {
		s.logger(ctx, "order."+m.action, map[string]any{
			"orderId":                result.ID,
			"actorId":                actor.ID,
			"status":                 string(result.Status),
			"previousShipmentStatus": string(before),
			"shipmentStatus":         string(result.ShipmentStatus),
		})
		if m.committed != nil {
			m.committed(ctx, result)
		}
	}
	return result, nil
}

func (s *orderLifecycle) appendEvent(ctx context.Context, order Order, action, actorID string, now time.Time) error {
	event := domain.OutboxEvent{
		ID:            outboxIDPrefix + s.newID(),
		OrderID:       order.ID,
		Action:        action,
		NewStatus:     eventStatus(order, action),
		Snapshot:      order,
		Recipients:    eventRecipients(order),
		ActorID:       actorID,
		State:         domain.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return mapRepositoryError(nil, err)
	}
	return nil
}

func (s *orderLifecycle) logDuplicate(ctx context.Context, order Order, via string) {
	s.logger(ctx, "order.duplicate_suppressed", map[string]any{
		"orderId": order.ID,
		"actorId": order.CreatedBy,
		"via":     via,
	})
}

func (s *orderLifecycle) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderLifecycle) now() time.Time {
	return s.clock()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func normaliseCreateCommand(cmd CreateOrderCommand) (Order, error) {
	order := Order{
		CustomerName:  strings.TrimSpace(cmd.CustomerName),
		CustomerPhone: strings.Join(strings.Fields(cmd.CustomerPhone), ""),
		Address:       textutil.SanitizeNote(cmd.Address),
		Area:          strings.TrimSpace(cmd.Area),
		City:          strings.TrimSpace(cmd.City),
		Country:       domain.NormalizeCountry(cmd.Country),
		Details:       textutil.SanitizeNote(cmd.Details),
		ProductID:     strings.TrimSpace(cmd.ProductID),
		Quantity:      cmd.Quantity,
		UnitPrice:     cmd.UnitPrice,
		Total:         cmd.Total,
		Discount:      cmd.Discount,
		ShippingFee:   cmd.ShippingFee,
		CODAmount:     cmd.CODAmount,
	}
	if cmd.Location != nil {
		loc := *cmd.Location
		order.Location = &loc
	}

	switch {
	case order.CustomerPhone == "":
		return Order{}, fmt.Errorf("%w: customer phone is required", ErrOrderInvalidInput)
	case order.Address == "":
		return Order{}, fmt.Errorf("%w: address is required", ErrOrderInvalidInput)
	case order.Details == "":
		return Order{}, fmt.Errorf("%w: order details are required", ErrOrderInvalidInput)
	case order.Quantity < 0:
		return Order{}, fmt.Errorf("%w: quantity must be at least 1", ErrOrderInvalidInput)
	case order.ShippingFee < 0 || order.CODAmount < 0:
		return Order{}, fmt.Errorf("%w: money fields must not be negative", ErrOrderInvalidInput)
	}
	for name, value := range map[string]*int64{"unitPrice": order.UnitPrice, "total": order.Total, "discount": order.Discount} {
		if err := nonNegative(name, value); err != nil {
			return Order{}, err
		}
	}
	if order.Quantity == 0 {
		order.Quantity = 1
	}
	if order.Location != nil && (order.Location.Lat < -90 || order.Location.Lat > 90 || order.Location.Lng < -180 || order.Location.Lng > 180) {
		return Order{}, fmt.Errorf("%w: location is out of range", ErrOrderInvalidInput)
	}
	return order, nil
}

func nonNegative(name string, value *int64) error {
	if value != nil && *value < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrOrderInvalidInput, name)
	}
	return nil
}

func stampShipmentTime(order *Order, status ShipmentStatus, now time.Time) {
	switch status {
	case domain.ShipmentPickedUp:
		order.PickedUpAt = valuePtr(now)
	case domain.ShipmentDelivered:
		order.DeliveredAt = valuePtr(now)
	case domain.ShipmentReturned:
		order.ReturnedAt = valuePtr(now)
	case domain.ShipmentCancelled:
		order.CancelledAt = valuePtr(now)
	}
}

func eventStatus(order Order, action string) string {
	switch action {
	case OrderActionShipped:
		return string(order.Status)
	case OrderActionSettled:
		return OrderActionSettled
	default:
		return string(order.ShipmentStatus)
	}
}

// eventRecipients targets the driver, the creator and the workspace owner, once each.
func eventRecipients(order Order) []string {
	recipients := make([]string, 0, 3)
	for _, id := range []string{order.DriverID, order.CreatedBy, order.WorkspaceOwnerID} {
		if id == "" || slices.Contains(recipients, id) {
			continue
		}
		recipients = append(recipients, id)
	}
	return recipients
}

func valuePtr[T any](v T) *T {
	return &v
}
