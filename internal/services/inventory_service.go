package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// ProductInventoryDeps bundles the collaborators required to construct the inventory service.
type ProductInventoryDeps struct {
	Products   repositories.ProductRepository
	Actors     repositories.ActorRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type productInventory struct {
	products   repositories.ProductRepository
	actors     repositories.ActorRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewProductInventory wires dependencies into a concrete ProductInventory implementation.
func NewProductInventory(deps ProductInventoryDeps) (ProductInventory, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	if deps.Actors == nil {
		return nil, errors.New("inventory service: actor repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &productInventory{
		products:   deps.Products,
		actors:     deps.Actors,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// DecrementOnShip removes max(1, quantity) units for the order's country, clamped at zero. When ctx
// carries a transaction the read and write join it.
func (s *productInventory) DecrementOnShip(ctx context.Context, cmd DecrementStockCommand) (StockChange, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return StockChange{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}

	var change StockChange
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: product %s missing during decrement", ErrDependencyFailure, productID)
			}
			return mapRepositoryError(ErrProductNotFound, err)
		}

		product.RegionStock = domain.CloneRegionStock(product.RegionStock)
		change = product.DecrementForShipment(cmd.Country, cmd.Quantity)
		product.UpdatedAt = s.clock()

		if err := s.products.Update(txCtx, product); err != nil {
			return mapRepositoryError(ErrProductNotFound, err)
		}
		return nil
	})
	if err != nil {
		return StockChange{}, err
	}

	if !stockLogDeferred(ctx) {
		s.logger(ctx, "inventory.decremented", stockChangeFields(productID, change))
	}
	return change, nil
}

type deferStockLogKey struct{}

// deferStockLog marks ctx as belonging to a caller's transaction that logs the stock change
// itself once it commits.
func deferStockLog(ctx context.Context) context.Context {
	return context.WithValue(ctx, deferStockLogKey{}, true)
}

func stockLogDeferred(ctx context.Context) bool {
	deferred, _ := ctx.Value(deferStockLogKey{}).(bool)
	return deferred
}

func stockChangeFields(productID string, change StockChange) map[string]any {
	fields := map[string]any{
		"productId": productID,
		"requested": change.Requested,
		"applied":   change.Applied,
		"before":    change.Before,
		"after":     change.After,
	}
	if change.Legacy {
		fields["legacy"] = true
	} else {
		fields["region"] = change.Region
	}
	if change.Applied < change.Requested {
		fields["clamped"] = true
	}
	return fields
}

// SetRegionStock overwrites one region's quantity. A legacy product is converted to region tracking
// and its aggregate becomes the region sum.
func (s *productInventory) SetRegionStock(ctx context.Context, cmd SetRegionStockCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	region := domain.NormalizeCountry(cmd.Region)
	if !slices.Contains(domain.Regions, region) {
		return Product{}, fmt.Errorf("%w: unsupported region %q", ErrInventoryInvalidInput, cmd.Region)
	}
	if cmd.Quantity < 0 {
		return Product{}, fmt.Errorf("%w: quantity must not be negative", ErrInventoryInvalidInput)
	}

	actor, err := loadActor(ctx, s.actors, cmd.ActorID)
	if err != nil {
		return Product{}, err
	}

	var updated Product
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return mapRepositoryError(ErrProductNotFound, err)
		}
		switch actor.Role {
		case domain.RoleAdmin:
		case domain.RoleUser:
			if product.WorkspaceOwnerID != actor.ID {
				return fmt.Errorf("%w: product belongs to another workspace", ErrAuthorization)
			}
		default:
			return fmt.Errorf("%w: role may not manage stock", ErrAuthorization)
		}

		stock := domain.CloneRegionStock(product.RegionStock)
		if stock == nil {
			stock = make(map[string]int, len(domain.Regions))
		}
		stock[region] = cmd.Quantity
		product.RegionStock = stock
		product.SyncAggregate()
		product.UpdatedAt = s.clock()

		if err := s.products.Update(txCtx, product); err != nil {
			return mapRepositoryError(ErrProductNotFound, err)
		}
		updated = product
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.logger(ctx, "inventory.stock_set", map[string]any{
		"productId": productID,
		"region":    region,
		"quantity":  cmd.Quantity,
		"stockQty":  updated.StockQty,
		"actorId":   actor.ID,
	})
	return updated, nil
}

func (s *productInventory) CheckAvailability(ctx context.Context, query AvailabilityQuery) (Availability, error) {
	productID := strings.TrimSpace(query.ProductID)
	if productID == "" {
		return Availability{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Availability{}, mapRepositoryError(ErrProductNotFound, err)
	}

	result := Availability{
		ProductID: productID,
		Country:   domain.NormalizeCountry(query.Country),
		Enabled:   product.EnabledIn(query.Country),
		Requested: max(query.Quantity, 1),
		Available: product.AvailableIn(query.Country),
	}
	result.Enough = result.Enabled && result.Available >= result.Requested
	return result, nil
}
