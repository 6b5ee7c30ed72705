package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/repositories"
)

// OrderRepository implements repositories.OrderRepository on a Store.
type OrderRepository struct {
	store *Store
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.orders[order.ID]; exists {
		return conflict("orders.insert", fmt.Sprintf("order %s already exists", order.ID))
	}
	r.store.data.orders[order.ID] = order
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.orders[order.ID]; !exists {
		return notFound("orders.update", order.ID)
	}
	r.store.data.orders[order.ID] = order
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.store.lock(ctx)()
	order, ok := r.store.data.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.get", orderID)
	}
	return order, nil
}

func (r *OrderRepository) FindRecentDuplicate(ctx context.Context, query repositories.DuplicateQuery) (domain.Order, error) {
	defer r.store.lock(ctx)()
	var (
		found domain.Order
		hit   bool
	)
	for _, order := range r.store.data.orders {
		if order.CreatedBy != query.CreatedBy || order.CustomerPhone != query.CustomerPhone || order.Details != query.Details {
			continue
		}
		if order.CreatedAt.Before(query.Since) {
			continue
		}
		if !hit || order.CreatedAt.After(found.CreatedAt) {
			found, hit = order, true
		}
	}
	if !hit {
		return domain.Order{}, notFound("orders.duplicate", query.CustomerPhone)
	}
	return found, nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	orders, err := r.Scan(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	return paginate(orders, filter.Pagination, func(o domain.Order) (time.Time, string) { return o.CreatedAt, o.ID })
}

func (r *OrderRepository) Scan(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	defer r.store.lock(ctx)()
	out := make([]domain.Order, 0)
	for _, order := range r.store.data.orders {
		if matchesOrder(order, filter) {
			out = append(out, order)
		}
	}
	sortNewestFirst(out, func(o domain.Order) (time.Time, string) { return o.CreatedAt, o.ID })
	return out, nil
}

func matchesOrder(order domain.Order, filter repositories.OrderListFilter) bool {
	if filter.WorkspaceOwnerID != "" && order.WorkspaceOwnerID != filter.WorkspaceOwnerID {
		return false
	}
	if filter.CreatedBy != "" && order.CreatedBy != filter.CreatedBy {
		return false
	}
	if filter.DriverID != "" && order.DriverID != filter.DriverID {
		return false
	}
	if filter.Unassigned && order.DriverID != "" {
		return false
	}
	if filter.Country != "" && !domain.SameCountry(order.Country, filter.Country) {
		return false
	}
	if filter.ProductID != "" && order.ProductID != filter.ProductID {
		return false
	}
	if len(filter.Status) > 0 && !slices.Contains(filter.Status, string(order.Status)) {
		return false
	}
	if len(filter.ShipmentStatus) > 0 && !slices.Contains(filter.ShipmentStatus, string(order.ShipmentStatus)) {
		return false
	}
	if filter.UpdatedSince != nil && order.UpdatedAt.Before(*filter.UpdatedSince) {
		return false
	}
	return domain.InTimeRange(filter.DateRange, order.CreatedAt)
}

func sortNewestFirst[T any](items []T, key func(T) (time.Time, string)) {
	slices.SortFunc(items, func(a, b T) int {
		ta, ia := key(a)
		tb, ib := key(b)
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return strings.Compare(ib, ia)
	})
}

// paginate slices items that are already sorted newest first using a createdAt/id cursor.
func paginate[T any](items []T, pager domain.Pagination, key func(T) (time.Time, string)) (domain.CursorPage[T], error) {
	start := 0
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		ts, id, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[T]{}, err
		}
		start = len(items)
		for i, item := range items {
			itemTS, itemID := key(item)
			if itemTS.Before(ts) || (itemTS.Equal(ts) && itemID < id) {
				start = i
				break
			}
		}
	}

	rest := items[start:]
	if pager.PageSize <= 0 || len(rest) <= pager.PageSize {
		return domain.CursorPage[T]{Items: rest}, nil
	}
	page := rest[:pager.PageSize]
	lastTS, lastID := key(page[len(page)-1])
	next, err := pagination.EncodeTimeCursor(lastTS, lastID)
	if err != nil {
		return domain.CursorPage[T]{}, err
	}
	return domain.CursorPage[T]{Items: page, NextPageToken: next}, nil
}
