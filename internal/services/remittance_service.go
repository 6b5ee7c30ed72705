package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/textutil"
	"github.com/codfleet/api/internal/repositories"
)

const remittanceIDPrefix = "rem_"

// RemittanceLedgerDeps bundles collaborators required to construct the remittance ledger.
type RemittanceLedgerDeps struct {
	Remittances repositories.RemittanceRepository
	Orders      repositories.OrderRepository
	Actors      repositories.ActorRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type remittanceLedger struct {
	remittances repositories.RemittanceRepository
	orders      repositories.OrderRepository
	actors      repositories.ActorRepository
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewRemittanceLedger wires dependencies into a RemittanceLedger implementation.
func NewRemittanceLedger(deps RemittanceLedgerDeps) (RemittanceLedger, error) {
	if deps.Remittances == nil {
		return nil, errors.New("remittance ledger: remittance repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("remittance ledger: order repository is required")
	}
	if deps.Actors == nil {
		return nil, errors.New("remittance ledger: actor repository is required")
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

	return &remittanceLedger{
		remittances: deps.Remittances,
		orders:      deps.Orders,
		actors:      deps.Actors,
		unitOfWork:  unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Submit records a driver's hand-off with a snapshot of delivered orders in the range. The snapshot
// is never recomputed.
func (s *remittanceLedger) Submit(ctx context.Context, cmd SubmitRemittanceCommand) (Remittance, error) {
	if cmd.Amount <= 0 {
		return Remittance{}, fmt.Errorf("%w: amount must be positive", ErrRemittanceInvalidInput)
	}
	managerID := strings.TrimSpace(cmd.ManagerID)
	if managerID == "" {
		return Remittance{}, fmt.Errorf("%w: manager id is required", ErrRemittanceInvalidInput)
	}
	window, err := remittanceWindow(cmd.From, cmd.To)
	if err != nil {
		return Remittance{}, err
	}

	driver, err := loadActor(ctx, s.actors, cmd.ActorID)
	if err != nil {
		return Remittance{}, err
	}
	if driver.Role != domain.RoleDriver {
		return Remittance{}, fmt.Errorf("%w: only drivers submit remittances", ErrAuthorization)
	}

	manager, err := s.actors.FindByID(ctx, managerID)
	if err != nil {
		return Remittance{}, mapRepositoryError(ErrActorNotFound, err)
	}
	if manager.Role != domain.RoleManager {
		return Remittance{}, fmt.Errorf("%w: recipient %s is not a manager", ErrRemittanceInvalidInput, managerID)
	}

	driverWorkspace, err := resolveWorkspace(ctx, s.actors, driver)
	if err != nil {
		return Remittance{}, err
	}
	managerWorkspace, err := resolveWorkspace(ctx, s.actors, manager)
	if err != nil {
		return Remittance{}, err
	}
	if driverWorkspace == "" || driverWorkspace != managerWorkspace {
		return Remittance{}, fmt.Errorf("%w: manager belongs to another workspace", ErrAuthorization)
	}
	if driver.Country != "" && manager.Country != "" && !domain.SameCountry(driver.Country, manager.Country) {
		return Remittance{}, fmt.Errorf("%w: driver %s, manager %s", ErrCountryMismatch, driver.Country, manager.Country)
	}

	delivered, err := s.deliveredOrders(ctx, driver.ID, window)
	if err != nil {
		return Remittance{}, err
	}

	now := s.clock()
	remittance := Remittance{
		ID:                   remittanceIDPrefix + s.newID(),
		DriverID:             driver.ID,
		ManagerID:            manager.ID,
		WorkspaceOwnerID:     driverWorkspace,
		Country:              domain.NormalizeCountry(driver.Country),
		Currency:             domain.CurrencyForCountry(driver.Country),
		Amount:               cmd.Amount,
		From:                 window.From,
		To:                   window.To,
		TotalDeliveredOrders: len(delivered),
		Note:                 textutil.SanitizeNote(cmd.Note),
		Status:               domain.RemittancePending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.remittances.Insert(ctx, remittance); err != nil {
		return Remittance{}, mapRepositoryError(ErrRemittanceNotFound, err)
	}

	s.logger(ctx, "remittance.submitted", map[string]any{
		"remittanceId":    remittance.ID,
		"driverId":        driver.ID,
		"managerId":       manager.ID,
		"amount":          remittance.Amount,
		"currency":        remittance.Currency,
		"deliveredOrders": remittance.TotalDeliveredOrders,
	})
	return remittance, nil
}

// Accept is one-way: only the named manager may accept, and only once.
func (s *remittanceLedger) Accept(ctx context.Context, cmd AcceptRemittanceCommand) (Remittance, error) {
	remittanceID := strings.TrimSpace(cmd.RemittanceID)
	if remittanceID == "" {
		return Remittance{}, fmt.Errorf("%w: remittance id is required", ErrRemittanceInvalidInput)
	}
	actor, err := loadActor(ctx, s.actors, cmd.ActorID)
	if err != nil {
		return Remittance{}, err
	}

	var accepted Remittance
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		remittance, err := s.remittances.FindByID(txCtx, remittanceID)
		if err != nil {
			return mapRepositoryError(ErrRemittanceNotFound, err)
		}
		if actor.Role != domain.RoleManager || remittance.ManagerID != actor.ID {
			return fmt.Errorf("%w: only the addressed manager may accept", ErrAuthorization)
		}
		if remittance.Status == domain.RemittanceAccepted {
			return fmt.Errorf("%w: %s", ErrRemittanceAlreadyAccepted, remittance.ID)
		}

		now := s.clock()
		remittance.Status = domain.RemittanceAccepted
		remittance.AcceptedAt = valuePtr(now)
		remittance.AcceptedBy = actor.ID
		remittance.UpdatedAt = now
		if err := s.remittances.Update(txCtx, remittance); err != nil {
			return mapRepositoryError(ErrRemittanceNotFound, err)
		}
		accepted = remittance
		return nil
	})
	if err != nil {
		return Remittance{}, err
	}

	s.logger(ctx, "remittance.accepted", map[string]any{
		"remittanceId": accepted.ID,
		"managerId":    actor.ID,
		"amount":       accepted.Amount,
	})
	return accepted, nil
}

// Summary aggregates a driver's delivered orders in range, independent of any remittance.
func (s *remittanceLedger) Summary(ctx context.Context, query RemittanceSummaryQuery) (RemittanceSummary, error) {
	window, err := remittanceWindow(query.From, query.To)
	if err != nil {
		return RemittanceSummary{}, err
	}
	actor, err := loadActor(ctx, s.actors, query.ActorID)
	if err != nil {
		return RemittanceSummary{}, err
	}

	driver := actor
	if driverID := strings.TrimSpace(query.DriverID); driverID != "" && driverID != actor.ID {
		if driver, err = s.actors.FindByID(ctx, driverID); err != nil {
			return RemittanceSummary{}, mapRepositoryError(ErrActorNotFound, err)
		}
		if err := s.authorizeDriverView(ctx, actor, driver); err != nil {
			return RemittanceSummary{}, err
		}
	}
	if driver.Role != domain.RoleDriver {
		return RemittanceSummary{}, fmt.Errorf("%w: %s is not a driver", ErrRemittanceInvalidInput, driver.ID)
	}

	delivered, err := s.deliveredOrders(ctx, driver.ID, window)
	if err != nil {
		return RemittanceSummary{}, err
	}
	summary := RemittanceSummary{
		DriverID:        driver.ID,
		Currency:        domain.CurrencyForCountry(driver.Country),
		From:            window.From,
		To:              window.To,
		DeliveredOrders: len(delivered),
	}
	for _, order := range delivered {
		summary.CollectedAmount += order.CollectedAmount
	}
	return summary, nil
}

func (s *remittanceLedger) List(ctx context.Context, query RemittanceListQuery) (domain.CursorPage[Remittance], error) {
	actor, err := loadActor(ctx, s.actors, query.ActorID)
	if err != nil {
		return domain.CursorPage[Remittance]{}, err
	}

	filter := repositories.RemittanceListFilter{Status: query.Status, Pagination: query.Pagination}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleUser:
		filter.WorkspaceOwnerID = actor.ID
	case domain.RoleManager:
		filter.ManagerID = actor.ID
	case domain.RoleDriver:
		filter.DriverID = actor.ID
	default:
		return domain.CursorPage[Remittance]{}, fmt.Errorf("%w: role may not list remittances", ErrAuthorization)
	}

	page, err := s.remittances.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Remittance]{}, mapRepositoryError(nil, err)
	}
	return page, nil
}

func (s *remittanceLedger) authorizeDriverView(ctx context.Context, actor, driver Actor) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleUser, domain.RoleManager:
		actorWorkspace, err := resolveWorkspace(ctx, s.actors, actor)
		if err != nil {
			return err
		}
		driverWorkspace, err := resolveWorkspace(ctx, s.actors, driver)
		if err != nil {
			return err
		}
		if actorWorkspace != "" && actorWorkspace == driverWorkspace {
			return nil
		}
	}
	return fmt.Errorf("%w: driver is outside the actor's scope", ErrAuthorization)
}

// deliveredOrders returns the driver's delivered orders whose delivery time falls in window.
func (s *remittanceLedger) deliveredOrders(ctx context.Context, driverID string, window domain.TimeRange) ([]Order, error) {
	orders, err := s.orders.Scan(ctx, repositories.OrderListFilter{
		DriverID:       driverID,
		ShipmentStatus: []string{string(domain.ShipmentDelivered)},
	})
	if err != nil {
		return nil, mapRepositoryError(nil, err)
	}
	delivered := orders[:0]
	for _, order := range orders {
		if order.ShipmentStatus != domain.ShipmentDelivered {
			continue
		}
		if domain.InTimeRange(window, firstTime(order.DeliveredAt, &order.UpdatedAt)) {
			delivered = append(delivered, order)
		}
	}
	return delivered, nil
}

func remittanceWindow(from, to *time.Time) (domain.TimeRange, error) {
	var window domain.TimeRange
	if from != nil {
		window.From = valuePtr(from.UTC())
	}
	if to != nil {
		window.To = valuePtr(to.UTC())
	}
	if window.From != nil && window.To != nil && window.From.After(*window.To) {
		return domain.TimeRange{}, fmt.Errorf("%w: from must not be after to", ErrRemittanceInvalidInput)
	}
	return window, nil
}
