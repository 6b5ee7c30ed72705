package services

import (
	"fmt"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/textutil"
)

// Transition names an order operation checked by AuthorizeTransition.
type Transition string

const (
	TransitionCreate         Transition = "create"
	TransitionView           Transition = "view"
	TransitionAssign         Transition = "assign"
	TransitionClaim          Transition = "claim"
	TransitionShip           Transition = "ship"
	TransitionUpdateShipment Transition = "update_shipment"
	TransitionDeliver        Transition = "deliver"
	TransitionReturn         Transition = "return"
	TransitionCancel         Transition = "cancel"
	TransitionSettle         Transition = "settle"
)

// TransitionRequest is everything the authorizer needs; callers load it from fresh reads.
type TransitionRequest struct {
	Transition     Transition
	Actor          Actor
	ActorWorkspace string
	Order          Order

	// TargetStatus is the requested shipment status for update_shipment.
	TargetStatus ShipmentStatus
	// FieldUpdates marks an update_shipment that touches more than status and notes.
	FieldUpdates bool

	// Driver and DriverWorkspace describe the assignee for assign.
	Driver          *Actor
	DriverWorkspace string
}

// Decision is the authorizer's verdict. Noop marks an allowed request that must not mutate state.
type Decision struct {
	Allowed bool
	Noop    bool
	Reason  string
	kind    error
}

// Err returns nil for allowed decisions, otherwise an error wrapping the taxonomy member.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", d.kind, d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func noop(reason string) Decision { return Decision{Allowed: true, Noop: true, Reason: reason} }

func deny(kind error, reason string) Decision { return Decision{kind: kind, Reason: reason} }

func forbid(reason string) Decision { return deny(ErrAuthorization, reason) }

var forwardShipmentTargets = []ShipmentStatus{
	domain.ShipmentAssigned,
	domain.ShipmentInTransit,
	domain.ShipmentNoResponse,
	domain.ShipmentAttempted,
	domain.ShipmentContacted,
	domain.ShipmentPickedUp,
	domain.ShipmentDelivered,
	domain.ShipmentReturned,
	domain.ShipmentCancelled,
}

// shipmentTransitions lists allowed exits per state. Terminal states have none.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	domain.ShipmentPending:    forwardShipmentTargets,
	domain.ShipmentAssigned:   forwardShipmentTargets,
	domain.ShipmentInTransit:  forwardShipmentTargets,
	domain.ShipmentNoResponse: forwardShipmentTargets,
	domain.ShipmentAttempted:  forwardShipmentTargets,
	domain.ShipmentContacted:  forwardShipmentTargets,
	domain.ShipmentPickedUp:   forwardShipmentTargets,
	domain.ShipmentDelivered:  nil,
	domain.ShipmentReturned:   nil,
	domain.ShipmentCancelled:  nil,
}

func canMoveShipment(current, target ShipmentStatus) bool {
	if current == "" {
		current = domain.ShipmentPending
	}
	for _, next := range shipmentTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// AuthorizeTransition is the single role and state matrix for order operations. It performs no I/O.
func AuthorizeTransition(req TransitionRequest) Decision {
	if !req.Actor.Role.Valid() {
		return forbid("actor has no recognised role")
	}

	switch req.Transition {
	case TransitionCreate:
		return authorizeCreate(req)
	case TransitionView:
		return authorizeView(req)
	case TransitionAssign:
		return authorizeAssign(req)
	case TransitionClaim:
		return authorizeClaim(req)
	case TransitionShip:
		return authorizeShip(req)
	case TransitionUpdateShipment:
		return authorizeUpdateShipment(req)
	case TransitionDeliver:
		return authorizeCloseOut(req, domain.ShipmentDelivered, true)
	case TransitionCancel:
		return authorizeCloseOut(req, domain.ShipmentCancelled, true)
	case TransitionReturn:
		return authorizeCloseOut(req, domain.ShipmentReturned, false)
	case TransitionSettle:
		return authorizeSettle(req)
	default:
		return deny(ErrValidation, fmt.Sprintf("unknown transition %q", req.Transition))
	}
}

func authorizeCreate(req TransitionRequest) Decision {
	switch req.Actor.Role {
	case domain.RoleAdmin, domain.RoleUser, domain.RoleAgent:
		return allow()
	case domain.RoleManager:
		if req.Actor.CanCreateOrders {
			return allow()
		}
		return forbid("manager lacks order creation permission")
	default:
		return forbid("role may not create orders")
	}
}

func authorizeView(req TransitionRequest) Decision {
	actor, order := req.Actor, req.Order
	switch actor.Role {
	case domain.RoleAdmin:
		return allow()
	case domain.RoleUser, domain.RoleManager:
		if inWorkspace(req) {
			return allow()
		}
	case domain.RoleAgent:
		if order.CreatedBy == actor.ID {
			return allow()
		}
	case domain.RoleDriver:
		if order.DriverID == actor.ID {
			return allow()
		}
		if order.DriverID == "" && !order.ShipmentStatus.IsTerminal() && domain.SameCountry(order.Country, actor.Country) {
			return allow()
		}
	}
	return forbid("order is outside the actor's scope")
}

func authorizeAssign(req TransitionRequest) Decision {
	switch req.Actor.Role {
	case domain.RoleAdmin:
	case domain.RoleUser, domain.RoleManager:
		if !inWorkspace(req) {
			return forbid("order belongs to another workspace")
		}
		if req.Driver != nil && req.DriverWorkspace != req.ActorWorkspace {
			return forbid("driver belongs to another workspace")
		}
	default:
		return forbid("role may not assign drivers")
	}

	if req.Driver == nil {
		return deny(ErrValidation, "driver is required")
	}
	if req.Driver.Role != domain.RoleDriver {
		return deny(ErrValidation, "assignee must have the driver role")
	}
	if req.Order.ShipmentStatus.IsTerminal() {
		return deny(ErrOrderTerminal, string(req.Order.ShipmentStatus))
	}
	if textutil.CitiesConflict(req.Order.City, req.Driver.City) {
		return deny(ErrCityMismatch, fmt.Sprintf("order city %q, driver city %q", req.Order.City, req.Driver.City))
	}
	return allow()
}

func authorizeClaim(req TransitionRequest) Decision {
	actor, order := req.Actor, req.Order
	if actor.Role != domain.RoleDriver {
		return forbid("only drivers may claim orders")
	}
	if order.ShipmentStatus.IsTerminal() {
		return deny(ErrOrderTerminal, string(order.ShipmentStatus))
	}
	if order.DriverID == actor.ID {
		return noop("already assigned to this driver")
	}
	if order.DriverID != "" {
		return deny(ErrOrderAlreadyAssigned, order.DriverID)
	}
	if !domain.SameCountry(order.Country, actor.Country) {
		return deny(ErrCountryMismatch, fmt.Sprintf("order country %q, driver country %q", order.Country, actor.Country))
	}
	if textutil.CitiesConflict(order.City, actor.City) {
		return deny(ErrCityMismatch, fmt.Sprintf("order city %q, driver city %q", order.City, actor.City))
	}
	return allow()
}

func authorizeShip(req TransitionRequest) Decision {
	if !ownerOrAdmin(req) {
		return forbid("only admins and the workspace owner may ship")
	}
	if req.Order.Status == domain.OrderStatusShipped {
		return noop("already shipped")
	}
	if req.Order.ShipmentStatus.IsTerminal() {
		return deny(ErrOrderTerminal, string(req.Order.ShipmentStatus))
	}
	return allow()
}

func authorizeUpdateShipment(req TransitionRequest) Decision {
	actor, order, target := req.Actor, req.Order, req.TargetStatus
	if target != "" && !target.Valid() {
		return deny(ErrValidation, fmt.Sprintf("unknown shipment status %q", target))
	}

	switch actor.Role {
	case domain.RoleDriver:
		if order.DriverID != actor.ID {
			return forbid("order is not assigned to this driver")
		}
		if req.FieldUpdates {
			return forbid("drivers may only update shipment status and notes")
		}
		if target != "" && !target.DriverUpdatable() {
			return forbid(fmt.Sprintf("drivers may not set shipment status %q", target))
		}
		if order.ShipmentStatus.IsTerminal() {
			return deny(ErrOrderTerminal, string(order.ShipmentStatus))
		}
	case domain.RoleAdmin:
	case domain.RoleUser:
		if !inWorkspace(req) {
			return forbid("order belongs to another workspace")
		}
	case domain.RoleAgent:
		if order.CreatedBy != actor.ID {
			return forbid("agents may only update orders they created")
		}
	default:
		return forbid("role may not update shipments")
	}

	if target != "" && !canMoveShipment(order.ShipmentStatus, target) {
		if order.ShipmentStatus.IsTerminal() {
			return deny(ErrOrderTerminal, string(order.ShipmentStatus))
		}
		return deny(ErrConflict, fmt.Sprintf("cannot move shipment from %q to %q", order.ShipmentStatus, target))
	}
	return allow()
}

// authorizeCloseOut covers deliver, cancel and return. Drivers may act only when driverAllowed.
func authorizeCloseOut(req TransitionRequest, target ShipmentStatus, driverAllowed bool) Decision {
	actor, order := req.Actor, req.Order
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleUser:
		if !inWorkspace(req) {
			return forbid("order belongs to another workspace")
		}
	case domain.RoleAgent:
		if order.CreatedBy != actor.ID {
			return forbid("agents may only act on orders they created")
		}
	case domain.RoleDriver:
		if !driverAllowed {
			return forbid("drivers may not perform this transition")
		}
		if order.DriverID != actor.ID {
			return forbid("order is not assigned to this driver")
		}
	default:
		return forbid("role may not perform this transition")
	}

	if !canMoveShipment(order.ShipmentStatus, target) {
		return deny(ErrOrderTerminal, string(order.ShipmentStatus))
	}
	return allow()
}

func authorizeSettle(req TransitionRequest) Decision {
	if !ownerOrAdmin(req) {
		return forbid("only admins and the workspace owner may settle")
	}
	if req.Order.Status != domain.OrderStatusShipped {
		return deny(ErrOrderNotShipped, "settlement requires a shipped order")
	}
	if req.Order.Settled {
		return deny(ErrOrderAlreadySettled, req.Order.ID)
	}
	return allow()
}

func ownerOrAdmin(req TransitionRequest) bool {
	switch req.Actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return inWorkspace(req)
	}
	return false
}

func inWorkspace(req TransitionRequest) bool {
	return req.ActorWorkspace != "" && req.ActorWorkspace == req.Order.WorkspaceOwnerID
}
