package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/repositories"
)

// Registry assembles the Firestore repositories around a shared provider and unit of work.
type Registry struct {
	*pfirestore.UnitOfWork

	provider    *pfirestore.Provider
	orders      *OrderRepository
	products    *ProductRepository
	users       *UserRepository
	remittances *RemittanceRepository
	expenses    *ExpenseRepository
	sequences   *SequenceRepository
	outbox      *OutboxRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository. Extra dependency checks are appended to the Firestore probe.
func NewRegistry(provider *pfirestore.Provider, checks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{UnitOfWork: pfirestore.NewUnitOfWork(provider), provider: provider}

	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if reg.remittances, err = NewRemittanceRepository(provider); err != nil {
		return nil, err
	}
	if reg.expenses, err = NewExpenseRepository(provider); err != nil {
		return nil, err
	}
	if reg.sequences, err = NewSequenceRepository(provider); err != nil {
		return nil, err
	}
	if reg.outbox, err = NewOutboxRepository(provider); err != nil {
		return nil, err
	}

	all := append([]repositories.DependencyCheck{{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			client, err := provider.Client(ctx)
			if err != nil {
				return err
			}
			_, err = client.Collection(ordersCollection).Limit(1).Documents(ctx).GetAll()
			return err
		},
	}}, checks...)
	if reg.health, err = repositories.NewReadinessProbe(all); err != nil {
		return nil, fmt.Errorf("firestore registry health: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Actors() repositories.ActorRepository { return r.users }

func (r *Registry) Remittances() repositories.RemittanceRepository { return r.remittances }

func (r *Registry) Expenses() repositories.ExpenseRepository { return r.expenses }

func (r *Registry) Sequences() repositories.SequenceRepository { return r.sequences }

func (r *Registry) Outbox() repositories.OutboxRepository { return r.outbox }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Provider exposes the shared client provider for collaborators outside the registry.
func (r *Registry) Provider() *pfirestore.Provider { return r.provider }
