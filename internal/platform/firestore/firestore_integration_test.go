//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/codfleet/api/internal/platform/config"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
)

type regionStock struct {
	Qty     int  `firestore:"qty"`
	InStock bool `firestore:"inStock"`
}

var errSoldOut = errors.New("sold out")

// emulatorProvider expects FIRESTORE_EMULATOR_HOST, e.g. from `gcloud emulators firestore start`.
func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "platform-" + time.Now().Format("150405.000000"), EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestBaseRepositoryCRUD(t *testing.T) {
	provider := emulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	repo := pfirestore.NewBaseRepository[regionStock](provider, "stock")
	if err := repo.Create(ctx, "lamp:KSA", regionStock{Qty: 5, InStock: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var cls interface{ IsConflict() bool }
	if err := repo.Create(ctx, "lamp:KSA", regionStock{}); !errors.As(err, &cls) || !cls.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}
	if err := repo.Update(ctx, "lamp:KSA", []firestore.Update{{Path: "qty", Value: 0}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.Merge(ctx, "lamp:KSA", map[string]any{"inStock": false}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	doc, err := repo.Get(ctx, "lamp:KSA")
	if err != nil || doc.Data != (regionStock{}) || doc.CreateTime.IsZero() || doc.UpdateTime.Before(doc.CreateTime) {
		t.Fatalf("unexpected document %+v err=%v", doc, err)
	}

	var nf interface{ IsNotFound() bool }
	if _, err := repo.Get(ctx, "lamp:UAE"); !errors.As(err, &nf) || !nf.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
	docs, err := repo.Query(ctx, func(q firestore.Query) firestore.Query { return q.Where("inStock", "==", false) })
	if err != nil || len(docs) != 1 || docs[0].ID != "lamp:KSA" {
		t.Fatalf("unexpected query result %+v err=%v", docs, err)
	}
}

// Concurrent reservations against the same stock document must never oversell.
func TestUnitOfWorkSerialisesStockReservations(t *testing.T) {
	provider := emulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	repo := pfirestore.NewBaseRepository[regionStock](provider, "stock")
	if err := repo.Create(ctx, "chair:UAE", regionStock{Qty: 3, InStock: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	uow := pfirestore.NewUnitOfWork(provider, pfirestore.WithTxAttempts(20))

	reserve := func(ctx context.Context) error {
		return uow.RunInTx(ctx, func(ctx context.Context) error {
			// nested call joins the outer transaction
			return uow.RunInTx(ctx, func(ctx context.Context) error {
				if _, ok := pfirestore.TransactionFrom(ctx); !ok {
					return errors.New("nested call lost the transaction")
				}
				current, err := repo.Get(ctx, "chair:UAE")
				if err != nil {
					return err
				}
				if current.Data.Qty == 0 {
					return errSoldOut
				}
				current.Data.Qty--
				current.Data.InStock = current.Data.Qty > 0
				return repo.Set(ctx, "chair:UAE", current.Data)
			})
		})
	}

	const buyers = 6
	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		reserved, soldOut int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reserve(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case errors.Is(err, errSoldOut):
				soldOut++
			default:
				t.Errorf("reserve: %v", err)
			}
		}()
	}
	wg.Wait()

	if reserved != 3 || soldOut != buyers-3 {
		t.Fatalf("expected 3 reservations and %d sold out, got %d and %d", buyers-3, reserved, soldOut)
	}
	doc, err := repo.Get(ctx, "chair:UAE")
	if err != nil || doc.Data.Qty != 0 || doc.Data.InStock {
		t.Fatalf("expected empty stock, got %+v err=%v", doc.Data, err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := uow.RunInTx(cancelled, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
