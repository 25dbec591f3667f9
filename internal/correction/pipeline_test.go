package correction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkInvariants(t *testing.T, p Policy, rec evaluation.Record) {
	t.Helper()

	require.Len(t, rec.SEOTags, p.RequiredTagCount)
	seen := map[string]bool{}
	for _, tag := range rec.SEOTags {
		assert.NotEmpty(t, tag)
		assert.LessOrEqual(t, utf8.RuneCountInString(tag), p.MaxTagLength, tag)
		assert.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}

	band := rec.RecommendedPrice
	assert.Greater(t, band.Optimal, rec.TotalCost())
	assert.LessOrEqual(t, band.Min, band.Optimal)
	assert.LessOrEqual(t, band.Optimal, band.Max)
	assert.GreaterOrEqual(t, band.Min, p.AbsoluteMinPrice)

	assert.NotEmpty(t, rec.Strengths)
	assert.NotEmpty(t, rec.Risks)
	assert.GreaterOrEqual(t, rec.CompetitorCount, 1)
	assert.NotEmpty(t, strings.TrimSpace(rec.SearchQuery))
	assert.True(t, rec.Identified)
	assert.NotEmpty(t, rec.Description)
	assert.NotEmpty(t, rec.Title)
	assert.NotEmpty(t, rec.Verdict)
	assert.NotEmpty(t, rec.Saturation)
	assert.NotEmpty(t, rec.RiskLevel)
	assert.GreaterOrEqual(t, rec.TimeToFirstSale.MinDays, 1)
	assert.GreaterOrEqual(t, rec.Projections.Realistic.UnitsPerMonth, 1)
}

func TestCorrect_AllAbsentCandidate(t *testing.T) {
	p := DefaultPolicy()
	rec := New(p).Correct(evaluation.Candidate{}, evaluation.Request{})

	checkInvariants(t, p, rec)
	assert.Equal(t, "Generic product", rec.Description)
	assert.Equal(t, "trending product", rec.SearchQuery)
	assert.Equal(t, 50, rec.CompetitorCount)
	assert.False(t, rec.CompetitorReliable)
	assert.Equal(t, evaluation.SaturationMedium, rec.Saturation)
	assert.Equal(t, 10.0, rec.SupplierCost)
	assert.Equal(t, 5.0, rec.ShippingCost)
	assert.Equal(t, evaluation.PriceBand{Min: 45, Optimal: 45, Max: 58.5}, rec.RecommendedPrice)
	assert.Equal(t, evaluation.PriceRange{Min: 45, Max: 58.5}, rec.MarketRange)
	assert.Equal(t, evaluation.RiskMedium, rec.RiskLevel)
	assert.Equal(t, evaluation.SaleWindow{MinDays: 7, MaxDays: 21}, rec.TimeToFirstSale)
	assert.Equal(t, evaluation.Projection{UnitsPerMonth: 20, MonthlyRevenue: 900, MonthlyProfit: 600}, rec.Projections.Realistic)
	assert.Empty(t, rec.Warning)
	assert.Equal(t, []string{
		"trending product", "generic product", "trending",
		"gift idea", "best seller", "trending now", "unique gift", "everyday use",
		"great value", "top rated", "must have", "new arrival", "popular choice",
	}, rec.SEOTags)
	assert.Contains(t, rec.Quality.Defaulted, "seoTags")
	assert.Contains(t, rec.Quality.Defaulted, "competitorCount")
}

func TestCorrect_UnidentifiedProduct(t *testing.T) {
	c := evaluation.Candidate{Identified: evaluation.Ptr(false)}
	rec := New(DefaultPolicy()).Correct(c, evaluation.Request{Niche: "pet toys"})

	assert.True(t, rec.Identified)
	assert.Equal(t, "Generic pet toys product", rec.Description)
	assert.Equal(t, "pet toys", rec.SearchQuery)
	assert.NotEmpty(t, rec.Warning)
	assert.Contains(t, rec.SEOTags, "pet toys")
}

func TestCorrect_SearchQueryFromDescription(t *testing.T) {
	c := evaluation.Candidate{Description: evaluation.Ptr("A set of 4 stainless steel reusable drinking straws with a cleaning brush")}
	rec := New(DefaultPolicy()).Correct(c, evaluation.Request{})
	assert.Equal(t, "stainless steel reusable drinking", rec.SearchQuery)
}

func TestCorrect_KeepsProviderValues(t *testing.T) {
	c := evaluation.Candidate{
		Identified:          evaluation.Ptr(true),
		Description:         evaluation.Ptr("Magnetic phone mount"),
		SearchQuery:         evaluation.Ptr("magnetic car mount"),
		CompetitorCount:     evaluation.Ptr(120),
		CompetitorReliable:  evaluation.Ptr(true),
		CompetitorReasoning: evaluation.Ptr("Counted listings"),
		Saturation:          evaluation.Ptr(evaluation.SaturationHigh),
		Strengths:           []string{"Impulse buy"},
		Risks:               []string{"Cheap clones"},
		Title:               evaluation.Ptr("Magnetic Car Phone Mount"),
		Verdict:             evaluation.Ptr("Go"),
	}
	rec := New(DefaultPolicy()).Correct(c, evaluation.Request{})

	assert.Equal(t, "magnetic car mount", rec.SearchQuery)
	assert.Equal(t, 120, rec.CompetitorCount)
	assert.True(t, rec.CompetitorReliable)
	assert.Equal(t, evaluation.SaturationHigh, rec.Saturation)
	assert.Equal(t, evaluation.RiskHigh, rec.RiskLevel)
	assert.Equal(t, []string{"Impulse buy"}, rec.Strengths)
	assert.Equal(t, []string{"Cheap clones"}, rec.Risks)
	assert.Equal(t, "Go", rec.Verdict)
	assert.NotContains(t, rec.Quality.Defaulted, "strengthsRisks")
	assert.NotContains(t, rec.Quality.Defaulted, "title")
}

func TestCorrect_NonPositiveCompetitorCount(t *testing.T) {
	for _, n := range []int{0, -5} {
		c := evaluation.Candidate{CompetitorCount: evaluation.Ptr(n), CompetitorReliable: evaluation.Ptr(true)}
		rec := New(DefaultPolicy()).Correct(c, evaluation.Request{})
		assert.Equal(t, 50, rec.CompetitorCount)
		assert.False(t, rec.CompetitorReliable)
		assert.NotEmpty(t, rec.CompetitorReasoning)
	}
}

func TestCorrect_SaturationThresholds(t *testing.T) {
	tests := []struct {
		count      int
		thresholds SaturationThresholds
		want       evaluation.Saturation
	}{
		{10, SaturationStandard, evaluation.SaturationLow},
		{40, SaturationStandard, evaluation.SaturationLow},
		{41, SaturationStandard, evaluation.SaturationMedium},
		{90, SaturationStandard, evaluation.SaturationMedium},
		{91, SaturationStandard, evaluation.SaturationHigh},
		{91, SaturationWide, evaluation.SaturationLow},
		{120, SaturationWide, evaluation.SaturationMedium},
		{131, SaturationWide, evaluation.SaturationHigh},
	}
	for _, tt := range tests {
		p := DefaultPolicy()
		p.Saturation = tt.thresholds
		rec := New(p).Correct(evaluation.Candidate{CompetitorCount: evaluation.Ptr(tt.count)}, evaluation.Request{})
		assert.Equal(t, tt.want, rec.Saturation, "count %d with %+v", tt.count, tt.thresholds)
	}
}

func TestCorrect_InvalidEnumsAreReplaced(t *testing.T) {
	c := evaluation.Candidate{
		CompetitorCount: evaluation.Ptr(10),
		Saturation:      evaluation.Ptr(evaluation.Saturation("extreme")),
		RiskLevel:       evaluation.Ptr(evaluation.RiskLevel("")),
	}
	rec := New(DefaultPolicy()).Correct(c, evaluation.Request{})
	assert.Equal(t, evaluation.SaturationLow, rec.Saturation)
	assert.Equal(t, evaluation.RiskLow, rec.RiskLevel)
	assert.Equal(t, evaluation.SaleWindow{MinDays: 3, MaxDays: 10}, rec.TimeToFirstSale)
}

func TestCorrect_StrengthsAndRisksBounds(t *testing.T) {
	cases := []evaluation.Candidate{
		{},
		{CompetitorCount: evaluation.Ptr(5), CompetitorReliable: evaluation.Ptr(true), MarketPrice: evaluation.Ptr(200.0)},
		{CompetitorCount: evaluation.Ptr(500), SupplierCost: evaluation.Ptr(90.0), MarketPrice: evaluation.Ptr(20.0)},
	}
	for _, c := range cases {
		rec := New(DefaultPolicy()).Correct(c, evaluation.Request{})
		assert.GreaterOrEqual(t, len(rec.Strengths), 2)
		assert.LessOrEqual(t, len(rec.Strengths), 5)
		assert.GreaterOrEqual(t, len(rec.Risks), 2)
		assert.LessOrEqual(t, len(rec.Risks), 5)
	}

	crowded := New(DefaultPolicy()).Correct(cases[2], evaluation.Request{})
	assert.Contains(t, crowded.Risks, "Saturated market with many established sellers")
	assert.Contains(t, crowded.Risks, "Tight profit margin requires careful cost management")
}

func TestCorrect_DoesNotMutateInput(t *testing.T) {
	c := evaluation.Candidate{
		Identified:  evaluation.Ptr(false),
		SEOTags:     []string{"  Desk Lamp ", "desk lamp", "LED"},
		ExtraTags:   []string{"office"},
		Strengths:   []string{"Bright"},
		MarketPrice: evaluation.Ptr(-3.0),
	}
	before := c.Clone()

	New(DefaultPolicy()).Correct(c, evaluation.Request{CostHint: 7})
	assert.Equal(t, before, c)
}

func TestCorrect_Idempotent(t *testing.T) {
	corpus := []struct {
		name string
		c    evaluation.Candidate
		req  evaluation.Request
	}{
		{"empty", evaluation.Candidate{}, evaluation.Request{}},
		{"empty with niche and hint", evaluation.Candidate{}, evaluation.Request{Niche: "garden tools", CostHint: 12.5}},
		{"unidentified", evaluation.Candidate{Identified: evaluation.Ptr(false)}, evaluation.Request{}},
		{"negative market", evaluation.Candidate{MarketPrice: evaluation.Ptr(-10.0), ShippingCost: evaluation.Ptr(-1.0)}, evaluation.Request{}},
		{"expensive", evaluation.Candidate{
			Description:  evaluation.Ptr("Ergonomic mesh office chair with lumbar support"),
			SupplierCost: evaluation.Ptr(85.0),
			ShippingCost: evaluation.Ptr(25.0),
			MarketPrice:  evaluation.Ptr(249.99),
			SEOTags:      []string{"office chair", "ERGONOMIC CHAIR", "office chair", "a really long tag that must be cut"},
		}, evaluation.Request{}},
		{"provider band ignored", evaluation.Candidate{
			RecommendedPrice: &evaluation.PriceBand{Min: 1, Optimal: 2, Max: 3},
			CompetitorCount:  evaluation.Ptr(150),
			Title:            evaluation.Ptr("   "),
		}, evaluation.Request{CostHint: 3}},
	}

	pipeline := New(DefaultPolicy())
	for _, tt := range corpus {
		t.Run(tt.name, func(t *testing.T) {
			first := pipeline.Correct(tt.c, tt.req)
			second := pipeline.Correct(first.Candidate(), tt.req)

			checkInvariants(t, pipeline.Policy(), first)
			assert.Empty(t, second.Quality.Defaulted)

			first.Quality = evaluation.Quality{}
			second.Quality = evaluation.Quality{}
			assert.Equal(t, first, second)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Saturation = SaturationThresholds{Low: 90, High: 40}
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.MaxTagLength = 2
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.PremiumCoefficient = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.MaxUnitCost = 1e300
	assert.Error(t, p.Validate())
}

func TestSaturationPreset(t *testing.T) {
	s, err := SaturationPreset("")
	require.NoError(t, err)
	assert.Equal(t, SaturationStandard, s)

	s, err = SaturationPreset("WIDE")
	require.NoError(t, err)
	assert.Equal(t, SaturationWide, s)

	_, err = SaturationPreset("tight")
	assert.Error(t, err)
}
