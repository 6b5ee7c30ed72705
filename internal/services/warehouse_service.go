package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// WarehouseSummaryDeps bundles collaborators required to construct the warehouse projection.
type WarehouseSummaryDeps struct {
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository
	Actors   repositories.ActorRepository
}

type warehouseSummary struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	actors   repositories.ActorRepository
}

func NewWarehouseSummary(deps WarehouseSummaryDeps) (WarehouseSummary, error) {
	if deps.Products == nil || deps.Orders == nil || deps.Actors == nil {
		return nil, errors.New("warehouse summary: product, order and actor repositories are required")
	}
	return &warehouseSummary{products: deps.Products, orders: deps.Orders, actors: deps.Actors}, nil
}

func (s *warehouseSummary) Summary(ctx context.Context, actorID string) ([]WarehouseItem, error) {
	actor, err := loadActor(ctx, s.actors, actorID)
	if err != nil {
		return nil, err
	}

	var scope string
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleUser, domain.RoleManager:
		if scope, err = resolveWorkspace(ctx, s.actors, actor); err != nil {
			return nil, err
		}
		if scope == "" {
			return []WarehouseItem{}, nil
		}
	default:
		return nil, fmt.Errorf("%w: role may not view the warehouse", ErrAuthorization)
	}

	products, err := s.products.List(ctx, repositories.ProductListFilter{WorkspaceOwnerID: scope})
	if err != nil {
		return nil, mapRepositoryError(ErrProductNotFound, err)
	}
	shipped, err := s.orders.Scan(ctx, repositories.OrderListFilter{
		WorkspaceOwnerID: scope,
		Status:           []string{string(domain.OrderStatusShipped)},
	})
	if err != nil {
		return nil, mapRepositoryError(nil, err)
	}
	return BuildWarehouseSummary(products, shipped), nil
}

// BuildWarehouseSummary joins product stock with shipped-order aggregates. Orders for products not
// in the list are ignored.
func BuildWarehouseSummary(products []Product, shipped []Order) []WarehouseItem {
	index := make(map[string]int, len(products))
	items := make([]WarehouseItem, 0, len(products))
	for _, product := range products {
		index[product.ID] = len(items)
		items = append(items, WarehouseItem{
			ProductID:   product.ID,
			Name:        product.Name,
			SKU:         product.SKU,
			RegionStock: domain.CloneRegionStock(product.RegionStock),
			StockLeft:   max(product.StockQty, 0),
			InStock:     product.InStock,
			StockValue:  int64(max(product.StockQty, 0)) * product.Price,
		})
	}

	for _, order := range shipped {
		if order.Status != domain.OrderStatusShipped {
			continue
		}
		pos, ok := index[order.ProductID]
		if !ok {
			continue
		}
		item := &items[pos]
		qty := max(order.Quantity, 1)
		item.ShippedQty += qty
		item.ShippedOrders++
		item.ShippedValue += orderValue(order, products[pos].Price, qty)
		if !order.Settled && order.ShipmentStatus != domain.ShipmentCancelled && order.ShipmentStatus != domain.ShipmentReturned {
			item.CODOutstanding += order.BalanceDue
		}
	}

	slices.SortFunc(items, func(a, b WarehouseItem) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return items
}

// orderValue prefers the order's own pricing and falls back to the catalog price.
func orderValue(order Order, catalogPrice int64, qty int) int64 {
	switch {
	case order.Total != nil:
		return *order.Total
	case order.UnitPrice != nil:
		return *order.UnitPrice * int64(qty)
	default:
		return catalogPrice * int64(qty)
	}
}
