package correction

import (
	"math"

	"github.com/raine/product-evaluator/internal/evaluation"
)

// quote is the derived cost and price picture for a candidate.
type quote struct {
	Supplier   float64
	Shipping   float64
	Total      float64
	Multiplier float64
	Market     float64 // 0 when unknown
	Band       evaluation.PriceBand
}

// Margin is the share of the optimal price left after costs.
func (q quote) Margin() float64 {
	if q.Band.Optimal <= 0 {
		return 0
	}
	return (q.Band.Optimal - q.Total) / q.Band.Optimal
}

// supplierCost prefers the caller's hint, then the provider's estimate.
func (p Policy) supplierCost(c evaluation.Candidate, req evaluation.Request) float64 {
	if req.CostHint > 0 {
		return p.clampCost(req.CostHint)
	}
	if c.SupplierCost != nil && *c.SupplierCost > 0 {
		return p.clampCost(*c.SupplierCost)
	}
	return p.DefaultSupplierCost
}

func (p Policy) shippingCost(c evaluation.Candidate) float64 {
	if c.ShippingCost != nil && *c.ShippingCost >= 0 {
		return p.clampCost(*c.ShippingCost)
	}
	return p.DefaultShippingCost
}

// clampCost caps v at MaxUnitCost so derived prices stay finite. Callers
// have already rejected NaN and non-positive values.
func (p Policy) clampCost(v float64) float64 {
	return math.Min(v, p.MaxUnitCost)
}

// quote derives the price band from costs and the market price only, so a
// provider supplied band never leaks into the result.
func (p Policy) quote(c evaluation.Candidate, req evaluation.Request) quote {
	q := quote{
		Supplier: p.supplierCost(c, req),
		Shipping: p.shippingCost(c),
	}
	q.Total = q.Supplier + q.Shipping
	q.Multiplier = p.HighCostMultiplier
	if q.Total < p.MultiplierThreshold {
		q.Multiplier = p.LowCostMultiplier
	}
	if c.MarketPrice != nil && *c.MarketPrice > 0 {
		q.Market = p.clampCost(*c.MarketPrice)
	}

	floor := math.Max(p.AbsoluteMinPrice, q.Total*q.Multiplier)
	optimal := math.Max(floor, q.Market*p.PremiumCoefficient)
	if optimal <= q.Total {
		optimal = q.Total * q.Multiplier * p.PathologicalFactor
	}
	band := evaluation.PriceBand{Min: floor, Optimal: optimal}

	// Closing re-validation.
	if band.Optimal <= q.Total {
		band.Optimal = q.Total * q.Multiplier * p.PathologicalFactor
	}
	if band.Min < p.AbsoluteMinPrice {
		band.Min = p.AbsoluteMinPrice
	}
	if band.Min > band.Optimal {
		band.Min = band.Optimal
	}

	band.Min = ceilCents(band.Min)
	band.Optimal = ceilCents(band.Optimal)
	band.Max = ceilCents(band.Optimal * p.MaxPriceFactor)
	q.Band = band
	return q
}

// ceilCents rounds up to whole cents. The epsilon keeps values that are
// already whole cents stable under float noise.
func ceilCents(v float64) float64 {
	return math.Ceil(v*100-1e-6) / 100
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
