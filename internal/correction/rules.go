package correction

import (
	"fmt"
	"strings"

	"github.com/raine/product-evaluator/internal/evaluation"
)

const (
	unidentifiedWarning = "The product could not be identified with confidence. The evaluation is generic."
	defaultReasoning    = "No reliable competitor estimate was available, a conservative default was used."
	estimatedReasoning  = "Estimated from comparable marketplace listings."
	maxTitleLength      = 60
	minListEntries      = 2
	maxListEntries      = 5
)

// identification forces the identified flag on and makes sure there is a
// description to work from.
func (p Policy) identification(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	if c.Identified != nil && !*c.Identified && blank(c.Warning) {
		c.Warning = evaluation.Ptr(unidentifiedWarning)
	}
	c.Identified = evaluation.Ptr(true)
	if blank(c.Description) {
		desc := "Generic product"
		if niche := strings.TrimSpace(req.Niche); niche != "" {
			desc = fmt.Sprintf("Generic %s product", niche)
		}
		c.Description = &desc
	}
	return c
}

func (p Policy) searchQuery(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if !blank(c.SearchQuery) {
		return c
	}
	q := p.FallbackSearchQuery
	if c.Description != nil {
		if tokens := keywords(*c.Description); len(tokens) > 0 {
			q = strings.Join(tokens[:min(len(tokens), p.MaxSearchTokens)], " ")
		}
	}
	c.SearchQuery = &q
	return c
}

func (p Policy) competitors(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if c.CompetitorCount == nil || *c.CompetitorCount <= 0 {
		c.CompetitorCount = evaluation.Ptr(p.DefaultCompetitorCount)
		c.CompetitorReliable = evaluation.Ptr(false)
		c.CompetitorReasoning = evaluation.Ptr(defaultReasoning)
		return c
	}
	if blank(c.CompetitorReasoning) {
		c.CompetitorReasoning = evaluation.Ptr(estimatedReasoning)
	}
	return c
}

func (p Policy) saturationFor(count int) evaluation.Saturation {
	switch {
	case count <= p.Saturation.Low:
		return evaluation.SaturationLow
	case count <= p.Saturation.High:
		return evaluation.SaturationMedium
	default:
		return evaluation.SaturationHigh
	}
}

func (p Policy) saturation(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if c.Saturation != nil {
		if _, ok := saleWindows[*c.Saturation]; ok {
			return c
		}
	}
	count := p.DefaultCompetitorCount
	if c.CompetitorCount != nil {
		count = *c.CompetitorCount
	}
	c.Saturation = evaluation.Ptr(p.saturationFor(count))
	return c
}

// strengthsAndRisks fills whichever list is empty from templates driven by
// competition, margin and market price.
func (p Policy) strengthsAndRisks(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	if len(c.Strengths) > 0 && len(c.Risks) > 0 {
		return c
	}
	q := p.quote(c, req)
	count := p.DefaultCompetitorCount
	if c.CompetitorCount != nil {
		count = *c.CompetitorCount
	}
	reliable := c.CompetitorReliable != nil && *c.CompetitorReliable

	if len(c.Strengths) == 0 {
		var s []string
		switch {
		case count <= p.Saturation.Low:
			s = append(s, "Low competition market opportunity")
		case count <= p.Saturation.High:
			s = append(s, "Moderate competition leaves room for a differentiated listing")
		}
		if q.Margin() >= 0.6 {
			s = append(s, "Healthy profit margin at the recommended price")
		}
		if q.Market > 0 && q.Band.Optimal <= q.Market*1.1 {
			s = append(s, "Recommended price is in line with the market average")
		}
		if q.Total < p.MultiplierThreshold {
			s = append(s, "Low upfront cost per unit")
		}
		c.Strengths = padList(s, "Clear visual selling point for marketplace photos", "Easy to ship and store")
	}

	if len(c.Risks) == 0 {
		var r []string
		if count > p.Saturation.High {
			r = append(r, "Saturated market with many established sellers")
		}
		if !reliable {
			r = append(r, "Competitor estimate is uncertain, verify demand manually")
		}
		if q.Margin() < 0.55 {
			r = append(r, "Tight profit margin requires careful cost management")
		}
		switch {
		case q.Market <= 0:
			r = append(r, "No reliable market price reference")
		case q.Band.Optimal > q.Market*1.1:
			r = append(r, "Recommended price is above the market average")
		}
		c.Risks = padList(r, "Supplier quality and shipping times may vary", "Demand may be seasonal")
	}
	return c
}

// padList brings list to between minListEntries and maxListEntries entries.
func padList(list []string, fillers ...string) []string {
	for _, f := range fillers {
		if len(list) >= minListEntries {
			break
		}
		list = append(list, f)
	}
	if len(list) > maxListEntries {
		list = list[:maxListEntries]
	}
	return list
}

// pricing always re-derives costs and the price band.
func (p Policy) pricing(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	q := p.quote(c, req)
	c.SupplierCost = evaluation.Ptr(q.Supplier)
	c.ShippingCost = evaluation.Ptr(q.Shipping)
	c.RecommendedPrice = evaluation.Ptr(q.Band)
	if c.MarketPrice != nil {
		c.MarketPrice = evaluation.Ptr(q.Market)
	}
	return c
}

func (p Policy) marketRange(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	if r := c.MarketRange; r != nil && r.Min > 0 && r.Max >= r.Min {
		return c
	}
	q := p.quote(c, req)
	if q.Market > 0 {
		c.MarketRange = &evaluation.PriceRange{Min: roundCents(q.Market * 0.8), Max: roundCents(q.Market * 1.2)}
	} else {
		c.MarketRange = &evaluation.PriceRange{Min: q.Band.Min, Max: q.Band.Max}
	}
	return c
}

func (p Policy) riskLevel(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if c.RiskLevel != nil {
		switch *c.RiskLevel {
		case evaluation.RiskLow, evaluation.RiskMedium, evaluation.RiskHigh:
			return c
		}
	}
	level := evaluation.RiskMedium
	if c.Saturation != nil {
		switch *c.Saturation {
		case evaluation.SaturationLow:
			level = evaluation.RiskLow
		case evaluation.SaturationHigh:
			level = evaluation.RiskHigh
		}
	}
	c.RiskLevel = &level
	return c
}

var saleWindows = map[evaluation.Saturation]evaluation.SaleWindow{
	evaluation.SaturationLow:    {MinDays: 3, MaxDays: 10},
	evaluation.SaturationMedium: {MinDays: 7, MaxDays: 21},
	evaluation.SaturationHigh:   {MinDays: 14, MaxDays: 45},
}

func (p Policy) timeToFirstSale(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if w := c.TimeToFirstSale; w != nil && w.MinDays >= 1 && w.MaxDays >= w.MinDays {
		return c
	}
	sat := evaluation.SaturationMedium
	if c.Saturation != nil {
		sat = *c.Saturation
	}
	w := saleWindows[sat]
	c.TimeToFirstSale = &w
	return c
}

var baseUnits = map[evaluation.Saturation]int{
	evaluation.SaturationLow:    30,
	evaluation.SaturationMedium: 20,
	evaluation.SaturationHigh:   10,
}

func (p Policy) salesProjections(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	if pr := c.Projections; pr != nil && pr.Realistic.UnitsPerMonth >= 1 {
		return c
	}
	sat := evaluation.SaturationMedium
	if c.Saturation != nil {
		sat = *c.Saturation
	}
	units := baseUnits[sat]
	q := p.quote(c, req)
	project := func(n int) evaluation.Projection {
		return evaluation.Projection{
			UnitsPerMonth:  n,
			MonthlyRevenue: roundCents(float64(n) * q.Band.Optimal),
			MonthlyProfit:  roundCents(float64(n) * (q.Band.Optimal - q.Total)),
		}
	}
	c.Projections = &evaluation.Projections{
		Pessimistic: project(max(1, units/2)),
		Realistic:   project(units),
		Optimistic:  project(units * 2),
	}
	return c
}

func (p Policy) title(c evaluation.Candidate, _ evaluation.Request) evaluation.Candidate {
	if !blank(c.Title) {
		return c
	}
	t := "Trending Product"
	if c.Description != nil {
		if d := strings.TrimSpace(*c.Description); d != "" {
			if cut := truncateWords(d, maxTitleLength); cut != "" {
				t = capitalize(cut)
			}
		}
	}
	c.Title = &t
	return c
}

func (p Policy) verdict(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	if !blank(c.Verdict) {
		return c
	}
	q := p.quote(c, req)
	var v string
	switch {
	case c.Saturation != nil && *c.Saturation == evaluation.SaturationHigh:
		v = fmt.Sprintf("Proceed with caution: crowded market, differentiate before listing at %.2f.", q.Band.Optimal)
	case q.Margin() >= 0.55:
		v = fmt.Sprintf("Worth testing: healthy margin at %.2f with manageable competition.", q.Band.Optimal)
	default:
		v = fmt.Sprintf("Marginal: test a small batch at %.2f before committing.", q.Band.Optimal)
	}
	c.Verdict = &v
	return c
}
