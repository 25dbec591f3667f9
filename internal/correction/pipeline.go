// Package correction repairs candidate records so every record invariant
// holds. Rules are pure and run as a left fold in a fixed order.
package correction

import (
	"reflect"

	"github.com/raine/product-evaluator/internal/evaluation"
)

// Rule derives a corrected candidate. Rules must not mutate their input.
type Rule func(evaluation.Candidate, evaluation.Request) evaluation.Candidate

type namedRule struct {
	field string
	apply Rule
}

// Pipeline applies the correction rules.
type Pipeline struct {
	policy Policy
	rules  []namedRule
}

// New creates a pipeline for policy.
func New(policy Policy) *Pipeline {
	p := &Pipeline{policy: policy}
	p.rules = []namedRule{
		{"identified", policy.identification},
		{"searchQuery", policy.searchQuery},
		{"competitorCount", policy.competitors},
		{"saturation", policy.saturation},
		{"strengthsRisks", policy.strengthsAndRisks},
		{"recommendedPrice", policy.pricing},
		{"marketPriceRange", policy.marketRange},
		{"riskLevel", policy.riskLevel},
		{"timeToFirstSale", policy.timeToFirstSale},
		{"salesProjections", policy.salesProjections},
		{"title", policy.title},
		{"verdict", policy.verdict},
		{"seoTags", policy.seoTags},
	}
	return p
}

// Policy returns the pipeline's constants.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// Correct folds the rules over c and returns a complete record. The
// record's Quality.Defaulted lists the rules that changed something;
// Quality.Strategy is left to the caller.
func (p *Pipeline) Correct(c evaluation.Candidate, req evaluation.Request) evaluation.Record {
	cur := c.Clone()
	var defaulted []string
	for _, r := range p.rules {
		next := r.apply(cur.Clone(), req)
		if !reflect.DeepEqual(cur, next) {
			defaulted = append(defaulted, r.field)
		}
		cur = next
	}
	rec := finalize(cur)
	rec.Quality.Defaulted = defaulted
	return rec
}

// finalize copies a fully corrected candidate into a record.
func finalize(c evaluation.Candidate) evaluation.Record {
	return evaluation.Record{
		Identified:          deref(c.Identified),
		Description:         deref(c.Description),
		SearchQuery:         deref(c.SearchQuery),
		SupplierCost:        deref(c.SupplierCost),
		ShippingCost:        deref(c.ShippingCost),
		CompetitorCount:     deref(c.CompetitorCount),
		CompetitorReliable:  deref(c.CompetitorReliable),
		CompetitorReasoning: deref(c.CompetitorReasoning),
		Saturation:          deref(c.Saturation),
		MarketPrice:         deref(c.MarketPrice),
		MarketRange:         deref(c.MarketRange),
		RecommendedPrice:    deref(c.RecommendedPrice),
		RiskLevel:           deref(c.RiskLevel),
		TimeToFirstSale:     deref(c.TimeToFirstSale),
		Projections:         deref(c.Projections),
		Strengths:           c.Strengths,
		Risks:               c.Risks,
		SEOTags:             c.SEOTags,
		Title:               deref(c.Title),
		Verdict:             deref(c.Verdict),
		Warning:             deref(c.Warning),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
