package recovery

import (
	"testing"

	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const block = `{
  "identified": true,
  "description": "Adjustable LED desk lamp with USB charging port",
  "searchQuery": "led desk lamp usb",
  "supplierCost": 8.4,
  "shippingCost": 3,
  "competitorCount": 64,
  "competitorReliable": true,
  "saturation": "medium",
  "averageMarketPrice": 34.99,
  "marketPriceRange": {"min": 19.99, "max": 49.99},
  "strengths": ["Solves a daily problem", "Low unit cost"],
  "risks": ["Many similar listings"],
  "seoTags": ["desk lamp", "led lamp", "usb lamp"],
  "title": "LED Desk Lamp with USB Port"
}`

func TestRecover_PlainJSON(t *testing.T) {
	res := Recover(block)

	assert.Equal(t, StrategyFenced, res.Strategy)
	assert.False(t, res.Degraded)
	require.NotNil(t, res.Candidate.Description)
	assert.Equal(t, "Adjustable LED desk lamp with USB charging port", *res.Candidate.Description)
	assert.Equal(t, 64, *res.Candidate.CompetitorCount)
	assert.Equal(t, evaluation.SaturationMedium, *res.Candidate.Saturation)
	assert.Equal(t, &evaluation.PriceRange{Min: 19.99, Max: 49.99}, res.Candidate.MarketRange)
	assert.Equal(t, []string{"desk lamp", "led lamp", "usb lamp"}, res.Candidate.SEOTags)
	assert.Nil(t, res.Candidate.RecommendedPrice)
}

func TestRecover_FencedJSON(t *testing.T) {
	res := Recover("```json\n" + block + "\n```")
	assert.Equal(t, StrategyFenced, res.Strategy)
	assert.False(t, res.Degraded)
	assert.Equal(t, Recover(block).Candidate, res.Candidate)

	res = Recover("```\n" + block + "\n```")
	assert.Equal(t, StrategyFenced, res.Strategy)
}

func TestRecover_ProseAroundJSON(t *testing.T) {
	raw := "Here is my analysis of the product:\n\n" + block + "\n\nLet me know if you need anything else {smile}."

	res := Recover(raw)
	assert.Equal(t, StrategyBalanced, res.Strategy)
	assert.True(t, res.Degraded)
	assert.Equal(t, Recover(block).Candidate, res.Candidate)
}

func TestRecover_BracesInsideStrings(t *testing.T) {
	raw := `Result: {"description": "Mug with {curly} print", "searchQuery": "funny mug"} done`

	res := Recover(raw)
	assert.Equal(t, StrategyBalanced, res.Strategy)
	assert.Equal(t, "Mug with {curly} print", *res.Candidate.Description)
}

func TestRecover_StrayBraceBeforeJSON(t *testing.T) {
	raw := "Use {curly} placeholders.\n{\"description\": \"Lamp\", \"competitorCount\": 12}"

	res := Recover(raw)
	assert.Equal(t, StrategyLenient, res.Strategy)
	assert.True(t, res.Degraded)
	assert.Equal(t, "Lamp", *res.Candidate.Description)
	assert.Equal(t, 12, *res.Candidate.CompetitorCount)
}

func TestRecover_TrailingCommas(t *testing.T) {
	raw := `{"description": "Lamp", "risks": ["cheap copies", "fragile",], }`

	res := Recover(raw)
	assert.Equal(t, StrategyLenient, res.Strategy)
	assert.Equal(t, []string{"cheap copies", "fragile"}, res.Candidate.Risks)
}

func TestRecover_TruncatedOutput(t *testing.T) {
	raw := `{"description": "Desk lamp", "searchQuery": "led desk lamp", "strengths": ["cheap", "lig`

	res := Recover(raw)
	assert.Equal(t, StrategyLenient, res.Strategy)
	assert.Equal(t, "led desk lamp", *res.Candidate.SearchQuery)
	assert.Equal(t, []string{"cheap", "lig"}, res.Candidate.Strengths)
}

func TestRecover_TruncatedAfterKey(t *testing.T) {
	raw := `{"description": "Desk lamp", "competitorCount": 30, "verdict":`

	res := Recover(raw)
	assert.Equal(t, StrategyLenient, res.Strategy)
	assert.Equal(t, 30, *res.Candidate.CompetitorCount)
	assert.Nil(t, res.Candidate.Verdict)
}

func TestRecover_Salvage(t *testing.T) {
	raw := `{"description": "Phone \"stand\" holder", "searchQuery": "phone stand", "competitorCount": 42 "oops": }`

	res := Recover(raw)
	assert.Equal(t, StrategySalvage, res.Strategy)
	assert.True(t, res.Degraded)
	assert.Equal(t, `Phone "stand" holder`, *res.Candidate.Description)
	assert.Equal(t, "phone stand", *res.Candidate.SearchQuery)
	assert.Equal(t, 42, *res.Candidate.CompetitorCount)
	assert.Nil(t, res.Candidate.Strengths)
	assert.Nil(t, res.Candidate.SupplierCost)
}

func TestRecover_NestedObjectDoesNotHideSalvage(t *testing.T) {
	raw := `{"description": "Blue ceramic mug", "searchQuery": "ceramic mug", "competitorCount": 12 "marketPriceRange": {"min": 5, "max": 9}}`

	res := Recover(raw)
	assert.Equal(t, StrategySalvage, res.Strategy)
	require.NotNil(t, res.Candidate.Description)
	assert.Equal(t, "Blue ceramic mug", *res.Candidate.Description)
	assert.Equal(t, "ceramic mug", *res.Candidate.SearchQuery)
	assert.Equal(t, 12, *res.Candidate.CompetitorCount)
}

func TestParseLenient_EmptyObjectIsFailure(t *testing.T) {
	_, ok := parseLenient(`note: {"unrelated": true} and nothing else`)
	assert.False(t, ok)
}

func TestObjectStarts_TopLevelOnly(t *testing.T) {
	s := `x {"a": {"b": "{"}} then {"c": 1}`
	assert.Equal(t, []int{2, 25}, objectStarts(s))
}

func TestRecover_EmptyFallback(t *testing.T) {
	for _, raw := range []string{"", "   ", "I'm sorry, I cannot analyse this image.", "{{{{", "```"} {
		res := Recover(raw)
		assert.Equal(t, StrategyEmpty, res.Strategy, raw)
		assert.True(t, res.Degraded)
		assert.True(t, res.Candidate.IsEmpty())
	}
}

func TestRecover_FlexibleScalars(t *testing.T) {
	raw := `{
		"identified": "yes",
		"supplierCost": "$12,50",
		"shippingCost": "4.00 USD",
		"competitorCount": "about 120 sellers",
		"competitorReliable": 0,
		"averageMarketPrice": "1,299.00",
		"saturation": "HIGH",
		"riskLevel": "extreme",
		"seoTags": "gift idea, desk decor, ",
		"description": 42,
		"title": null,
		"timeToFirstSale": {"minDays": "3", "maxDays": 10}
	}`

	c := Recover(raw).Candidate
	assert.True(t, *c.Identified)
	assert.Equal(t, 12.5, *c.SupplierCost)
	assert.Equal(t, 4.0, *c.ShippingCost)
	assert.Equal(t, 120, *c.CompetitorCount)
	assert.False(t, *c.CompetitorReliable)
	assert.Equal(t, 1299.0, *c.MarketPrice)
	assert.Equal(t, evaluation.SaturationHigh, *c.Saturation)
	assert.Nil(t, c.RiskLevel)
	assert.Equal(t, []string{"gift idea", "desk decor"}, c.SEOTags)
	assert.Equal(t, "42", *c.Description)
	assert.Nil(t, c.Title)
	assert.Equal(t, &evaluation.SaleWindow{MinDays: 3, MaxDays: 10}, c.TimeToFirstSale)
}

func TestRecover_UnusableValuesAreAbsent(t *testing.T) {
	c := Recover(`{"supplierCost": "unknown", "shippingCost": 1e999, "identified": "maybe", "strengths": [null, "", "ok"], "marketPriceRange": {"min": 5}}`).Candidate
	assert.Nil(t, c.SupplierCost)
	assert.Nil(t, c.ShippingCost)
	assert.Nil(t, c.Identified)
	assert.Equal(t, []string{"ok"}, c.Strengths)
	assert.Nil(t, c.MarketRange)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"$12.99", 12.99, true},
		{"12,99 €", 12.99, true},
		{"1,299", 1299, true},
		{"1,299.50", 1299.5, true},
		{"-3.5", -3.5, true},
		{"between 20 and 30", 20, true},
		{"n/a", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```json {\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "fenced", StrategyFenced.String())
	assert.Equal(t, "empty", StrategyEmpty.String())
	assert.Equal(t, "unknown", Strategy(9).String())
}
