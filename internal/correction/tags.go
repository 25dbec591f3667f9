package correction

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raine/product-evaluator/internal/evaluation"
)

var genericTags = []string{
	"gift idea",
	"best seller",
	"trending now",
	"unique gift",
	"everyday use",
	"great value",
	"top rated",
	"must have",
	"new arrival",
	"popular choice",
	"home essentials",
	"quality product",
	"fast shipping",
}

// tagSet collects normalized, unique tags up to a limit.
type tagSet struct {
	maxLen int
	limit  int
	tags   []string
	seen   map[string]bool
}

func newTagSet(limit, maxLen int) *tagSet {
	return &tagSet{maxLen: maxLen, limit: limit, seen: map[string]bool{}}
}

func (s *tagSet) full() bool {
	return len(s.tags) >= s.limit
}

// normalizeTag lowercases, collapses whitespace and cuts to maxLen runes.
func normalizeTag(t string, maxLen int) string {
	t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
	return strings.TrimSpace(truncateRunes(t, maxLen))
}

func (s *tagSet) add(candidates ...string) {
	for _, t := range candidates {
		if s.full() {
			return
		}
		t = normalizeTag(t, s.maxLen)
		if t == "" || s.seen[t] {
			continue
		}
		s.seen[t] = true
		s.tags = append(s.tags, t)
	}
}

// seoTags enforces exactly RequiredTagCount tags of at most MaxTagLength
// runes each.
func (p Policy) seoTags(c evaluation.Candidate, req evaluation.Request) evaluation.Candidate {
	set := newTagSet(p.RequiredTagCount, p.MaxTagLength)
	set.add(c.SEOTags...)
	set.add(c.ExtraTags...)
	set.add(derivedTags(c, req)...)
	set.add(genericTags...)
	for i := 1; !set.full(); i++ {
		set.add(placeholderTag(i, p.MaxTagLength))
	}
	c.SEOTags = set.tags
	return c
}

func placeholderTag(i, maxLen int) string {
	if t := fmt.Sprintf("product tag %d", i); utf8.RuneCountInString(t) <= maxLen {
		return t
	}
	return fmt.Sprintf("t%d", i)
}

// derivedTags are phrases and keywords from the niche, title and search query.
func derivedTags(c evaluation.Candidate, req evaluation.Request) []string {
	var sources []string
	if n := strings.TrimSpace(req.Niche); n != "" {
		sources = append(sources, n)
	}
	if !blank(c.SearchQuery) {
		sources = append(sources, *c.SearchQuery)
	}
	if !blank(c.Title) {
		sources = append(sources, *c.Title)
	}

	out := append([]string(nil), sources...)
	for _, src := range sources {
		out = append(out, keywords(src)...)
	}
	return out
}
