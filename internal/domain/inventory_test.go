package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDecrementForShipmentRegionStock(t *testing.T) {
	product := Product{ID: "p1", RegionStock: map[string]int{RegionKSA: 10, RegionUAE: 2}}
	product.SyncAggregate()

	change := product.DecrementForShipment("Saudi Arabia", 3)

	if product.RegionStock[RegionKSA] != 7 {
		t.Fatalf("expected KSA stock 7, got %d", product.RegionStock[RegionKSA])
	}
	if product.StockQty != 9 || !product.InStock {
		t.Fatalf("expected aggregate 9 in stock, got %d %v", product.StockQty, product.InStock)
	}
	if change.Region != RegionKSA || change.Applied != 3 || change.Legacy {
		t.Fatalf("unexpected change %#v", change)
	}
}

func TestDecrementForShipmentClampsAtZero(t *testing.T) {
	product := Product{RegionStock: map[string]int{RegionKWT: 1}}

	change := product.DecrementForShipment(RegionKWT, 5)

	if product.RegionStock[RegionKWT] != 0 {
		t.Fatalf("expected clamp to zero, got %d", product.RegionStock[RegionKWT])
	}
	if product.InStock || product.StockQty != 0 {
		t.Fatalf("expected out of stock, got qty=%d inStock=%v", product.StockQty, product.InStock)
	}
	if change.Applied != 1 {
		t.Fatalf("expected 1 unit applied, got %d", change.Applied)
	}
}

func TestDecrementForShipmentZeroQuantityTakesOne(t *testing.T) {
	product := Product{RegionStock: map[string]int{RegionQAT: 4}}
	product.DecrementForShipment(RegionQAT, 0)
	if product.RegionStock[RegionQAT] != 3 {
		t.Fatalf("expected one unit removed, got %d", product.RegionStock[RegionQAT])
	}
}

func TestDecrementForShipmentLegacyAggregate(t *testing.T) {
	product := Product{StockQty: 2, InStock: true}

	change := product.DecrementForShipment(RegionKSA, 3)

	if !change.Legacy {
		t.Fatalf("expected legacy decrement")
	}
	if product.StockQty != 0 || product.InStock {
		t.Fatalf("expected legacy stock clamped to zero, got %d", product.StockQty)
	}
	if product.RegionStock != nil {
		t.Fatalf("legacy product should not grow a region map")
	}
}

func TestEnabledIn(t *testing.T) {
	product := Product{EnabledCountries: []string{"KSA", "uae"}}
	if !product.EnabledIn("saudi arabia") {
		t.Fatalf("expected KSA enabled")
	}
	if !product.EnabledIn("United Arab Emirates") {
		t.Fatalf("expected UAE enabled")
	}
	if product.EnabledIn("Oman") {
		t.Fatalf("expected Oman disabled")
	}
	if !(Product{}).EnabledIn("Oman") {
		t.Fatalf("empty enabled list should allow every country")
	}
}

func TestRegionStockInvariantProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("regions never negative and inStock tracks the sum", prop.ForAll(
		func(start []int, shipments []int, regionIdx []int) bool {
			product := Product{RegionStock: map[string]int{}}
			for i, qty := range start {
				product.RegionStock[Regions[i%len(Regions)]] = qty
			}
			product.SyncAggregate()
			for i, qty := range shipments {
				region := Regions[0]
				if i < len(regionIdx) {
					region = Regions[regionIdx[i]%len(Regions)]
				}
				product.DecrementForShipment(region, qty)

				sum := 0
				for _, v := range product.RegionStock {
					if v < 0 {
						return false
					}
					sum += v
				}
				if product.StockQty != sum || product.InStock != (sum > 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 50)),
		gen.SliceOf(gen.IntRange(-3, 20)),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
