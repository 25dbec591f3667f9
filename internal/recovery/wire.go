package recovery

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/raine/product-evaluator/internal/evaluation"
)

// wireCandidate mirrors the JSON the provider is asked for. Scalars use
// tolerant types because models often quote numbers or write "yes".
type wireCandidate struct {
	Identified          flexBool         `json:"identified"`
	Description         flexString       `json:"description"`
	SearchQuery         flexString       `json:"searchQuery"`
	SupplierCost        flexFloat        `json:"supplierCost"`
	ShippingCost        flexFloat        `json:"shippingCost"`
	CompetitorCount     flexInt          `json:"competitorCount"`
	CompetitorReliable  flexBool         `json:"competitorReliable"`
	CompetitorReasoning flexString       `json:"competitorReasoning"`
	Saturation          flexString       `json:"saturation"`
	MarketPrice         flexFloat        `json:"averageMarketPrice"`
	MarketRange         *wireRange       `json:"marketPriceRange"`
	RecommendedPrice    *wireBand        `json:"recommendedPrice"`
	RiskLevel           flexString       `json:"riskLevel"`
	TimeToFirstSale     *wireWindow      `json:"timeToFirstSale"`
	Projections         *wireProjections `json:"salesProjections"`
	Strengths           flexStrings      `json:"strengths"`
	Risks               flexStrings      `json:"risks"`
	SEOTags             flexStrings      `json:"seoTags"`
	ExtraTags           flexStrings      `json:"extraTags"`
	Title               flexString       `json:"title"`
	Verdict             flexString       `json:"verdict"`
	Warning             flexString       `json:"warning"`
}

type wireRange struct {
	Min flexFloat `json:"min"`
	Max flexFloat `json:"max"`
}

type wireBand struct {
	Min     flexFloat `json:"min"`
	Optimal flexFloat `json:"optimal"`
	Max     flexFloat `json:"max"`
}

type wireWindow struct {
	MinDays flexInt `json:"minDays"`
	MaxDays flexInt `json:"maxDays"`
}

type wireProjection struct {
	UnitsPerMonth  flexInt   `json:"unitsPerMonth"`
	MonthlyRevenue flexFloat `json:"monthlyRevenue"`
	MonthlyProfit  flexFloat `json:"monthlyProfit"`
}

type wireProjections struct {
	Pessimistic wireProjection `json:"pessimistic"`
	Realistic   wireProjection `json:"realistic"`
	Optimistic  wireProjection `json:"optimistic"`
}

func (w wireProjection) projection() evaluation.Projection {
	return evaluation.Projection{
		UnitsPerMonth:  w.UnitsPerMonth.Value,
		MonthlyRevenue: w.MonthlyRevenue.Value,
		MonthlyProfit:  w.MonthlyProfit.Value,
	}
}

// candidate converts the wire form, leaving everything that was missing or
// unusable as absent.
func (w wireCandidate) candidate() evaluation.Candidate {
	c := evaluation.Candidate{
		Identified:          w.Identified.ptr(),
		Description:         w.Description.ptr(),
		SearchQuery:         w.SearchQuery.ptr(),
		SupplierCost:        w.SupplierCost.ptr(),
		ShippingCost:        w.ShippingCost.ptr(),
		CompetitorCount:     w.CompetitorCount.ptr(),
		CompetitorReliable:  w.CompetitorReliable.ptr(),
		CompetitorReasoning: w.CompetitorReasoning.ptr(),
		MarketPrice:         w.MarketPrice.ptr(),
		Strengths:           w.Strengths.list(),
		Risks:               w.Risks.list(),
		SEOTags:             w.SEOTags.list(),
		ExtraTags:           w.ExtraTags.list(),
		Title:               w.Title.ptr(),
		Verdict:             w.Verdict.ptr(),
		Warning:             w.Warning.ptr(),
	}

	switch s := evaluation.Saturation(strings.ToLower(w.Saturation.Value)); s {
	case evaluation.SaturationLow, evaluation.SaturationMedium, evaluation.SaturationHigh:
		c.Saturation = &s
	}
	switch r := evaluation.RiskLevel(strings.ToLower(w.RiskLevel.Value)); r {
	case evaluation.RiskLow, evaluation.RiskMedium, evaluation.RiskHigh:
		c.RiskLevel = &r
	}

	if r := w.MarketRange; r != nil && r.Min.Valid && r.Max.Valid {
		c.MarketRange = &evaluation.PriceRange{Min: r.Min.Value, Max: r.Max.Value}
	}
	if b := w.RecommendedPrice; b != nil && b.Optimal.Valid {
		c.RecommendedPrice = &evaluation.PriceBand{
			Min:     b.Min.Value,
			Optimal: b.Optimal.Value,
			Max:     b.Max.Value,
		}
	}
	if t := w.TimeToFirstSale; t != nil && t.MinDays.Valid && t.MaxDays.Valid {
		c.TimeToFirstSale = &evaluation.SaleWindow{MinDays: t.MinDays.Value, MaxDays: t.MaxDays.Value}
	}
	if p := w.Projections; p != nil && p.Realistic.UnitsPerMonth.Valid {
		c.Projections = &evaluation.Projections{
			Pessimistic: p.Pessimistic.projection(),
			Realistic:   p.Realistic.projection(),
			Optimistic:  p.Optimistic.projection(),
		}
	}
	return c
}

var null = []byte("null")

// flexString accepts a JSON string or any scalar, which it keeps verbatim.
// Blank strings count as missing.
type flexString struct {
	Value string
	Valid bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
			return nil
		}
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f.Value, f.Valid = s, true
	return nil
}

func (f flexString) ptr() *string {
	if !f.Valid {
		return nil
	}
	return evaluation.Ptr(f.Value)
}

// flexFloat accepts numbers and numeric strings such as "$12.99" or "12,99".
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.Value, f.Valid = n, finite(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if v, ok := parseNumber(s); ok && finite(v) {
		f.Value, f.Valid = v, true
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	return evaluation.Ptr(f.Value)
}

type flexInt struct {
	Value int
	Valid bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var ff flexFloat
	if err := ff.UnmarshalJSON(b); err != nil || !ff.Valid {
		return err
	}
	if math.IsNaN(ff.Value) || math.Abs(ff.Value) > math.MaxInt32 {
		return nil
	}
	f.Value, f.Valid = int(math.Round(ff.Value)), true
	return nil
}

func (f flexInt) ptr() *int {
	if !f.Valid {
		return nil
	}
	return evaluation.Ptr(f.Value)
}

// flexBool accepts booleans, "yes"/"no" style strings and numbers.
type flexBool struct {
	Value bool
	Valid bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		f.Value, f.Valid = v, true
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.Value, f.Valid = n != 0, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		f.Value, f.Valid = true, true
	case "false", "no", "n", "0":
		f.Value, f.Valid = false, true
	}
	return nil
}

func (f flexBool) ptr() *bool {
	if !f.Valid {
		return nil
	}
	return evaluation.Ptr(f.Value)
}

// flexStrings accepts an array of scalars or a single comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err == nil {
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			var s flexString
			if err := s.UnmarshalJSON(item); err == nil && s.Valid {
				out = append(out, s.Value)
			}
		}
		*f = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*f = out
	return nil
}

func (f flexStrings) list() []string {
	if len(f) == 0 {
		return nil
	}
	return []string(f)
}

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)

// parseNumber extracts the first number from s. A lone comma followed by one
// or two digits is read as a decimal separator.
func parseNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	switch {
	case strings.Contains(m, ".") && strings.Contains(m, ","):
		m = strings.ReplaceAll(m, ",", "")
	case strings.Count(m, ",") == 1:
		if i := strings.Index(m, ","); len(m)-i-1 <= 2 {
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	default:
		m = strings.ReplaceAll(m, ",", "")
	}
	if strings.Count(m, ".") > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
