package firestore

import (
	"context"
	"errors"
	"slices"
	"testing"

	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/repositories"
)

func TestOrderRepositoryRejectsOversizedInFilters(t *testing.T) {
	// Validation runs before the provider is touched.
	repo := &OrderRepository{base: pfirestore.NewBaseRepository[orderDocument](nil, ordersCollection)}
	filter := repositories.OrderListFilter{ShipmentStatus: slices.Repeat([]string{"delivered"}, repositories.MaxFilterValues+1)}

	if _, err := repo.List(context.Background(), filter); !errors.Is(err, repositories.ErrFilterTooBroad) {
		t.Fatalf("List: expected ErrFilterTooBroad, got %v", err)
	}
	if _, err := repo.Scan(context.Background(), filter); !errors.Is(err, repositories.ErrFilterTooBroad) {
		t.Fatalf("Scan: expected ErrFilterTooBroad, got %v", err)
	}
}
