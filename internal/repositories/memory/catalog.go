package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// ProductRepository implements repositories.ProductRepository on a Store.
type ProductRepository struct {
	store *Store
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.products[product.ID]; exists {
		return conflict("products.insert", fmt.Sprintf("product %s already exists", product.ID))
	}
	r.store.data.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.products[product.ID]; !exists {
		return notFound("products.update", product.ID)
	}
	r.store.data.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	defer r.store.lock(ctx)()
	product, ok := r.store.data.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.get", productID)
	}
	return cloneProduct(product), nil
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	defer r.store.lock(ctx)()
	out := make([]domain.Product, 0, len(r.store.data.products))
	for _, product := range r.store.data.products {
		if filter.WorkspaceOwnerID != "" && product.WorkspaceOwnerID != filter.WorkspaceOwnerID {
			continue
		}
		out = append(out, cloneProduct(product))
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// ActorRepository implements repositories.ActorRepository on a Store.
type ActorRepository struct {
	store *Store
}

func (r *ActorRepository) FindByID(ctx context.Context, actorID string) (domain.Actor, error) {
	defer r.store.lock(ctx)()
	actor, ok := r.store.data.actors[actorID]
	if !ok {
		return domain.Actor{}, notFound("actors.get", actorID)
	}
	return actor, nil
}

func (r *ActorRepository) Upsert(ctx context.Context, actor domain.Actor) error {
	defer r.store.lock(ctx)()
	r.store.data.actors[actor.ID] = actor
	return nil
}

// RemittanceRepository implements repositories.RemittanceRepository on a Store.
type RemittanceRepository struct {
	store *Store
}

func (r *RemittanceRepository) Insert(ctx context.Context, remittance domain.Remittance) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.remittances[remittance.ID]; exists {
		return conflict("remittances.insert", fmt.Sprintf("remittance %s already exists", remittance.ID))
	}
	r.store.data.remittances[remittance.ID] = remittance
	return nil
}

func (r *RemittanceRepository) Update(ctx context.Context, remittance domain.Remittance) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.remittances[remittance.ID]; !exists {
		return notFound("remittances.update", remittance.ID)
	}
	r.store.data.remittances[remittance.ID] = remittance
	return nil
}

func (r *RemittanceRepository) FindByID(ctx context.Context, remittanceID string) (domain.Remittance, error) {
	defer r.store.lock(ctx)()
	remittance, ok := r.store.data.remittances[remittanceID]
	if !ok {
		return domain.Remittance{}, notFound("remittances.get", remittanceID)
	}
	return remittance, nil
}

func (r *RemittanceRepository) List(ctx context.Context, filter repositories.RemittanceListFilter) (domain.CursorPage[domain.Remittance], error) {
	unlock := r.store.lock(ctx)
	out := make([]domain.Remittance, 0)
	for _, remittance := range r.store.data.remittances {
		if filter.DriverID != "" && remittance.DriverID != filter.DriverID {
			continue
		}
		if filter.ManagerID != "" && remittance.ManagerID != filter.ManagerID {
			continue
		}
		if filter.WorkspaceOwnerID != "" && remittance.WorkspaceOwnerID != filter.WorkspaceOwnerID {
			continue
		}
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, string(remittance.Status)) {
			continue
		}
		out = append(out, remittance)
	}
	unlock()

	key := func(rem domain.Remittance) (time.Time, string) { return rem.CreatedAt, rem.ID }
	sortNewestFirst(out, key)
	return paginate(out, filter.Pagination, key)
}

// ExpenseRepository implements repositories.ExpenseRepository on a Store.
type ExpenseRepository struct {
	store *Store
}

func (r *ExpenseRepository) Insert(ctx context.Context, expense domain.Expense) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.data.expenses[expense.ID]; exists {
		return conflict("expenses.insert", fmt.Sprintf("expense %s already exists", expense.ID))
	}
	r.store.data.expenses[expense.ID] = expense
	return nil
}

func (r *ExpenseRepository) List(ctx context.Context, filter repositories.ExpenseListFilter) ([]domain.Expense, error) {
	defer r.store.lock(ctx)()
	out := make([]domain.Expense, 0)
	for _, expense := range r.store.data.expenses {
		if filter.WorkspaceOwnerID != "" && expense.WorkspaceOwnerID != filter.WorkspaceOwnerID {
			continue
		}
		if !domain.InTimeRange(filter.DateRange, expense.IncurredAt) {
			continue
		}
		out = append(out, expense)
	}
	sortNewestFirst(out, func(e domain.Expense) (time.Time, string) { return e.IncurredAt, e.ID })
	return out, nil
}
