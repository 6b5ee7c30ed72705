package domain

import "maps"

// StockChange describes the effect of a single decrement on a product.
type StockChange struct {
	Region    string
	Requested int
	Applied   int
	Before    int
	After     int
	Legacy    bool
}

// TracksRegions reports whether the product keeps a per-region breakdown.
func (p Product) TracksRegions() bool {
	return len(p.RegionStock) > 0
}

// EnabledIn reports whether the product may be ordered from country. An empty
// enabled list means every country is allowed.
func (p Product) EnabledIn(country string) bool {
	if len(p.EnabledCountries) == 0 {
		return true
	}
	target := NormalizeCountry(country)
	for _, enabled := range p.EnabledCountries {
		if NormalizeCountry(enabled) == target {
			return true
		}
	}
	return false
}

// AvailableIn returns the quantity that can ship to country.
func (p Product) AvailableIn(country string) int {
	if !p.TracksRegions() {
		return max(p.StockQty, 0)
	}
	return max(p.RegionStock[NormalizeCountry(country)], 0)
}

// SyncAggregate recomputes StockQty and InStock from the regions, clamping negatives.
// Legacy products without regions only have their aggregate clamped.
func (p *Product) SyncAggregate() {
	if !p.TracksRegions() {
		p.StockQty = max(p.StockQty, 0)
		p.InStock = p.StockQty > 0
		return
	}
	total := 0
	for region, qty := range p.RegionStock {
		if qty < 0 {
			qty = 0
			p.RegionStock[region] = 0
		}
		total += qty
	}
	p.StockQty = total
	p.InStock = total > 0
}

// DecrementForShipment removes max(1, quantity) units for country, never going below zero.
func (p *Product) DecrementForShipment(country string, quantity int) StockChange {
	units := max(quantity, 1)
	change := StockChange{Requested: units}

	if !p.TracksRegions() {
		change.Legacy = true
		change.Before = p.StockQty
		p.StockQty = max(p.StockQty-units, 0)
		change.After = p.StockQty
		change.Applied = change.Before - change.After
		p.InStock = p.StockQty > 0
		return change
	}

	region := NormalizeCountry(country)
	change.Region = region
	change.Before = p.RegionStock[region]
	after := max(change.Before-units, 0)
	if _, ok := p.RegionStock[region]; ok {
		p.RegionStock[region] = after
	}
	change.After = after
	change.Applied = max(change.Before, 0) - after
	p.SyncAggregate()
	return change
}

// CloneRegionStock returns an independent copy of the region map.
func CloneRegionStock(src map[string]int) map[string]int {
	return maps.Clone(src)
}
