package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository stores product stock documents.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection)}, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Create(ctx, product.ID, newProductDocument(product))
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Set(ctx, product.ID, newProductDocument(product))
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.WorkspaceOwnerID != "" {
			q = q.Where("workspaceOwnerId", "==", filter.WorkspaceOwnerID)
		}
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

type productDocument struct {
	Name             string         `firestore:"name"`
	SKU              string         `firestore:"sku,omitempty"`
	WorkspaceOwnerID string         `firestore:"workspaceOwnerId"`
	Price            int64          `firestore:"price"`
	Cost             int64          `firestore:"cost"`
	EnabledCountries []string       `firestore:"enabledCountries,omitempty"`
	RegionStock      map[string]int `firestore:"stockByCountry,omitempty"`
	StockQty         int            `firestore:"stockQty"`
	InStock          bool           `firestore:"inStock"`
	CreatedAt        time.Time      `firestore:"createdAt"`
	UpdatedAt        time.Time      `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Name:             p.Name,
		SKU:              p.SKU,
		WorkspaceOwnerID: p.WorkspaceOwnerID,
		Price:            p.Price,
		Cost:             p.Cost,
		EnabledCountries: p.EnabledCountries,
		RegionStock:      domain.CloneRegionStock(p.RegionStock),
		StockQty:         p.StockQty,
		InStock:          p.InStock,
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:               id,
		Name:             d.Name,
		SKU:              d.SKU,
		WorkspaceOwnerID: d.WorkspaceOwnerID,
		Price:            d.Price,
		Cost:             d.Cost,
		EnabledCountries: d.EnabledCountries,
		RegionStock:      d.RegionStock,
		StockQty:         d.StockQty,
		InStock:          d.InStock,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}
