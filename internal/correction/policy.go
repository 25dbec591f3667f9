package correction

import (
	"fmt"
	"strings"
)

// SaturationThresholds are the competitor counts at which a market stops
// being low and medium saturation respectively.
type SaturationThresholds struct {
	Low  int
	High int
}

var (
	// SaturationStandard is used by the evaluation flow.
	SaturationStandard = SaturationThresholds{Low: 40, High: 90}
	// SaturationWide is the alternative boundary set kept for comparison.
	SaturationWide = SaturationThresholds{Low: 100, High: 130}
)

// SaturationPreset resolves a preset name ("standard" or "wide").
func SaturationPreset(name string) (SaturationThresholds, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return SaturationStandard, nil
	case "wide":
		return SaturationWide, nil
	}
	return SaturationThresholds{}, fmt.Errorf("unknown saturation preset %q (want standard or wide)", name)
}

// Policy holds the business constants used by the correction rules.
type Policy struct {
	RequiredTagCount int
	MaxTagLength     int // In runes
	MaxSearchTokens  int

	DefaultSupplierCost float64
	DefaultShippingCost float64
	MultiplierThreshold float64 // Total cost below which LowCostMultiplier applies
	LowCostMultiplier   float64
	HighCostMultiplier  float64
	AbsoluteMinPrice    float64
	PremiumCoefficient  float64
	PathologicalFactor  float64
	MaxPriceFactor      float64
	MaxUnitCost         float64 // Upper clamp for any cost or market price

	DefaultCompetitorCount int
	Saturation             SaturationThresholds

	FallbackSearchQuery string
}

// DefaultPolicy returns the production constants.
func DefaultPolicy() Policy {
	return Policy{
		RequiredTagCount: 13,
		MaxTagLength:     20,
		MaxSearchTokens:  4,

		DefaultSupplierCost: 10,
		DefaultShippingCost: 5,
		MultiplierThreshold: 70,
		LowCostMultiplier:   3,
		HighCostMultiplier:  2,
		AbsoluteMinPrice:    14.99,
		PremiumCoefficient:  1.05,
		PathologicalFactor:  1.1,
		MaxPriceFactor:      1.3,
		MaxUnitCost:         1_000_000,

		DefaultCompetitorCount: 50,
		Saturation:             SaturationStandard,

		FallbackSearchQuery: "trending product",
	}
}

// Validate rejects constants that would break the record invariants.
func (p Policy) Validate() error {
	switch {
	case p.RequiredTagCount < 1 || p.RequiredTagCount > 100:
		return fmt.Errorf("required tag count must be between 1 and 100")
	case p.MaxTagLength < 4:
		return fmt.Errorf("max tag length must be >= 4")
	case p.MaxSearchTokens < 1:
		return fmt.Errorf("max search tokens must be >= 1")
	case p.DefaultSupplierCost <= 0 || p.DefaultShippingCost < 0:
		return fmt.Errorf("default costs must be positive")
	case p.LowCostMultiplier <= 1 || p.HighCostMultiplier <= 1:
		return fmt.Errorf("price multipliers must be > 1")
	case p.AbsoluteMinPrice <= 0:
		return fmt.Errorf("absolute minimum price must be > 0")
	case p.PremiumCoefficient <= 0:
		return fmt.Errorf("premium coefficient must be > 0")
	case p.PathologicalFactor <= 1 || p.MaxPriceFactor < 1:
		return fmt.Errorf("price factors out of range")
	case p.MaxUnitCost < p.DefaultSupplierCost || p.MaxUnitCost < p.DefaultShippingCost || p.MaxUnitCost > 1e9:
		return fmt.Errorf("max unit cost must be between the default costs and 1e9")
	case p.DefaultCompetitorCount < 1:
		return fmt.Errorf("default competitor count must be >= 1")
	case p.Saturation.Low < 1 || p.Saturation.High <= p.Saturation.Low:
		return fmt.Errorf("saturation thresholds must satisfy 0 < low < high (got %d/%d)", p.Saturation.Low, p.Saturation.High)
	case strings.TrimSpace(p.FallbackSearchQuery) == "":
		return fmt.Errorf("fallback search query must not be empty")
	}
	return nil
}
