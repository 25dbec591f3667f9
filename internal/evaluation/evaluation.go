package evaluation

import "slices"

// ImageRef points at the product image. Exactly one of URL or Data is
// expected to be set; URL may also be a data: URL.
type ImageRef struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Request is a single product evaluation request.
type Request struct {
	Image    ImageRef
	CostHint float64 // Supplier cost known by the caller, 0 if unknown
	Niche    string  // Free-text category or niche label
}

// Saturation classifies how crowded the market is.
type Saturation string

const (
	SaturationLow    Saturation = "low"
	SaturationMedium Saturation = "medium"
	SaturationHigh   Saturation = "high"
)

// RiskLevel is the overall risk of selling the product.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PriceRange is a market price range.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceBand is the recommended selling price band.
type PriceBand struct {
	Min     float64 `json:"min"`
	Optimal float64 `json:"optimal"`
	Max     float64 `json:"max"`
}

// SaleWindow estimates how long until the first sale, in days.
type SaleWindow struct {
	MinDays int `json:"minDays"`
	MaxDays int `json:"maxDays"`
}

// Projection is a monthly sales projection for one scenario.
type Projection struct {
	UnitsPerMonth  int     `json:"unitsPerMonth"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	MonthlyProfit  float64 `json:"monthlyProfit"`
}

// Projections holds the three sales scenarios.
type Projections struct {
	Pessimistic Projection `json:"pessimistic"`
	Realistic   Projection `json:"realistic"`
	Optimistic  Projection `json:"optimistic"`
}

// Candidate is a parsed but unverified provider result. A nil field means
// the provider did not supply it.
type Candidate struct {
	Identified          *bool        `json:"identified,omitempty"`
	Description         *string      `json:"description,omitempty"`
	SearchQuery         *string      `json:"searchQuery,omitempty"`
	SupplierCost        *float64     `json:"supplierCost,omitempty"`
	ShippingCost        *float64     `json:"shippingCost,omitempty"`
	CompetitorCount     *int         `json:"competitorCount,omitempty"`
	CompetitorReliable  *bool        `json:"competitorReliable,omitempty"`
	CompetitorReasoning *string      `json:"competitorReasoning,omitempty"`
	Saturation          *Saturation  `json:"saturation,omitempty"`
	MarketPrice         *float64     `json:"averageMarketPrice,omitempty"`
	MarketRange         *PriceRange  `json:"marketPriceRange,omitempty"`
	RecommendedPrice    *PriceBand   `json:"recommendedPrice,omitempty"`
	RiskLevel           *RiskLevel   `json:"riskLevel,omitempty"`
	TimeToFirstSale     *SaleWindow  `json:"timeToFirstSale,omitempty"`
	Projections         *Projections `json:"salesProjections,omitempty"`
	Strengths           []string     `json:"strengths,omitempty"`
	Risks               []string     `json:"risks,omitempty"`
	SEOTags             []string     `json:"seoTags,omitempty"`
	ExtraTags           []string     `json:"extraTags,omitempty"`
	Title               *string      `json:"title,omitempty"`
	Verdict             *string      `json:"verdict,omitempty"`
	Warning             *string      `json:"warning,omitempty"`
}

// Clone returns a deep copy so corrections never alias the input.
func (c Candidate) Clone() Candidate {
	out := c
	out.Identified = clonePtr(c.Identified)
	out.Description = clonePtr(c.Description)
	out.SearchQuery = clonePtr(c.SearchQuery)
	out.SupplierCost = clonePtr(c.SupplierCost)
	out.ShippingCost = clonePtr(c.ShippingCost)
	out.CompetitorCount = clonePtr(c.CompetitorCount)
	out.CompetitorReliable = clonePtr(c.CompetitorReliable)
	out.CompetitorReasoning = clonePtr(c.CompetitorReasoning)
	out.Saturation = clonePtr(c.Saturation)
	out.MarketPrice = clonePtr(c.MarketPrice)
	out.MarketRange = clonePtr(c.MarketRange)
	out.RecommendedPrice = clonePtr(c.RecommendedPrice)
	out.RiskLevel = clonePtr(c.RiskLevel)
	out.TimeToFirstSale = clonePtr(c.TimeToFirstSale)
	out.Projections = clonePtr(c.Projections)
	out.Strengths = slices.Clone(c.Strengths)
	out.Risks = slices.Clone(c.Risks)
	out.SEOTags = slices.Clone(c.SEOTags)
	out.ExtraTags = slices.Clone(c.ExtraTags)
	out.Title = clonePtr(c.Title)
	out.Verdict = clonePtr(c.Verdict)
	out.Warning = clonePtr(c.Warning)
	return out
}

// IsEmpty reports whether no field was supplied at all.
func (c Candidate) IsEmpty() bool {
	return c.Identified == nil && c.Description == nil && c.SearchQuery == nil &&
		c.SupplierCost == nil && c.ShippingCost == nil && c.CompetitorCount == nil &&
		c.CompetitorReliable == nil && c.CompetitorReasoning == nil && c.Saturation == nil &&
		c.MarketPrice == nil && c.MarketRange == nil && c.RecommendedPrice == nil &&
		c.RiskLevel == nil && c.TimeToFirstSale == nil && c.Projections == nil &&
		len(c.Strengths) == 0 && len(c.Risks) == 0 && len(c.SEOTags) == 0 &&
		len(c.ExtraTags) == 0 && c.Title == nil && c.Verdict == nil && c.Warning == nil
}

// Quality describes how trustworthy a Record is.
type Quality struct {
	Strategy  int      `json:"strategy"`  // Recovery strategy that produced the candidate (1-5)
	Degraded  bool     `json:"degraded"`  // Set when a lenient strategy was needed
	Defaulted []string `json:"defaulted"` // Fields filled in by correction rules
}

// Record is a fully corrected evaluation. Every invariant holds.
type Record struct {
	Identified          bool        `json:"identified"`
	Description         string      `json:"description"`
	SearchQuery         string      `json:"searchQuery"`
	SupplierCost        float64     `json:"supplierCost"`
	ShippingCost        float64     `json:"shippingCost"`
	CompetitorCount     int         `json:"competitorCount"`
	CompetitorReliable  bool        `json:"competitorReliable"`
	CompetitorReasoning string      `json:"competitorReasoning"`
	Saturation          Saturation  `json:"saturation"`
	MarketPrice         float64     `json:"averageMarketPrice"`
	MarketRange         PriceRange  `json:"marketPriceRange"`
	RecommendedPrice    PriceBand   `json:"recommendedPrice"`
	RiskLevel           RiskLevel   `json:"riskLevel"`
	TimeToFirstSale     SaleWindow  `json:"timeToFirstSale"`
	Projections         Projections `json:"salesProjections"`
	Strengths           []string    `json:"strengths"`
	Risks               []string    `json:"risks"`
	SEOTags             []string    `json:"seoTags"`
	Title               string      `json:"title"`
	Verdict             string      `json:"verdict"`
	Warning             string      `json:"warning,omitempty"`
	Quality             Quality     `json:"quality"`
}

// TotalCost is supplier plus shipping cost.
func (r *Record) TotalCost() float64 {
	return r.SupplierCost + r.ShippingCost
}

// Candidate converts the record back into a fully populated candidate.
// Feeding it through the correction pipeline again yields the same record.
func (r *Record) Candidate() Candidate {
	c := Candidate{
		Identified:          Ptr(r.Identified),
		Description:         Ptr(r.Description),
		SearchQuery:         Ptr(r.SearchQuery),
		SupplierCost:        Ptr(r.SupplierCost),
		ShippingCost:        Ptr(r.ShippingCost),
		CompetitorCount:     Ptr(r.CompetitorCount),
		CompetitorReliable:  Ptr(r.CompetitorReliable),
		CompetitorReasoning: Ptr(r.CompetitorReasoning),
		Saturation:          Ptr(r.Saturation),
		MarketPrice:         Ptr(r.MarketPrice),
		MarketRange:         Ptr(r.MarketRange),
		RecommendedPrice:    Ptr(r.RecommendedPrice),
		RiskLevel:           Ptr(r.RiskLevel),
		TimeToFirstSale:     Ptr(r.TimeToFirstSale),
		Projections:         Ptr(r.Projections),
		Strengths:           slices.Clone(r.Strengths),
		Risks:               slices.Clone(r.Risks),
		SEOTags:             slices.Clone(r.SEOTags),
		Title:               Ptr(r.Title),
		Verdict:             Ptr(r.Verdict),
	}
	if r.Warning != "" {
		c.Warning = Ptr(r.Warning)
	}
	return c
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
