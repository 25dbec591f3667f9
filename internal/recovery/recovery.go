// Package recovery turns raw provider text into a candidate record. It never
// fails: when nothing can be parsed it returns an all-absent candidate.
package recovery

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/raine/product-evaluator/internal/evaluation"
)

// Strategy identifies which parser produced a candidate.
type Strategy int

const (
	StrategyFenced Strategy = iota + 1
	StrategyBalanced
	StrategyLenient
	StrategySalvage
	StrategyEmpty
)

func (s Strategy) String() string {
	switch s {
	case StrategyFenced:
		return "fenced"
	case StrategyBalanced:
		return "balanced"
	case StrategyLenient:
		return "lenient"
	case StrategySalvage:
		return "salvage"
	case StrategyEmpty:
		return "empty"
	}
	return "unknown"
}

// Result is a recovered candidate and how it was obtained.
type Result struct {
	Candidate evaluation.Candidate
	Strategy  Strategy
	Degraded  bool
}

type parseFunc func(raw string) (evaluation.Candidate, bool)

type strategy struct {
	id    Strategy
	parse parseFunc
}

var strategies = []strategy{
	{StrategyFenced, parseFenced},
	{StrategyBalanced, parseBalanced},
	{StrategyLenient, parseLenient},
	{StrategySalvage, salvage},
	{StrategyEmpty, empty},
}

// firstSuccess runs the strategies in order and keeps the first that parses.
func firstSuccess(list []strategy) func(string) Result {
	return func(raw string) Result {
		for _, s := range list {
			if c, ok := s.parse(raw); ok {
				return Result{Candidate: c, Strategy: s.id, Degraded: s.id > StrategyFenced}
			}
		}
		return Result{Strategy: StrategyEmpty, Degraded: true}
	}
}

var recoverChain = firstSuccess(strategies)

// Recover parses raw provider output.
func Recover(raw string) Result {
	return recoverChain(raw)
}

// strictObject decodes s only if the whole text is a single JSON object.
func strictObject(s string) (evaluation.Candidate, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return evaluation.Candidate{}, false
	}
	var w wireCandidate
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return evaluation.Candidate{}, false
	}
	return w.candidate(), true
}

func parseFenced(raw string) (evaluation.Candidate, bool) {
	return strictObject(stripFences(raw))
}

func parseBalanced(raw string) (evaluation.Candidate, bool) {
	span, ok := balancedObject(raw)
	if !ok {
		return evaluation.Candidate{}, false
	}
	return strictObject(span)
}

// parseLenient decodes the first top-level object that parses and ignores
// whatever follows it. Trailing commas and truncated output get a second try.
// An object with no usable field is a failure so salvage still runs.
func parseLenient(raw string) (evaluation.Candidate, bool) {
	if c, ok := decodeFromAnyBrace(raw); ok {
		return c, true
	}
	if fixed := removeTrailingCommas(raw); fixed != raw {
		if c, ok := decodeFromAnyBrace(fixed); ok {
			return c, true
		}
	}
	if closed, ok := closeTruncated(removeTrailingCommas(raw)); ok {
		if c, ok := strictObject(removeTrailingCommas(closed)); ok && !c.IsEmpty() {
			return c, true
		}
	}
	return evaluation.Candidate{}, false
}

func decodeFromAnyBrace(s string) (evaluation.Candidate, bool) {
	for _, i := range objectStarts(s) {
		var w wireCandidate
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		if err := dec.Decode(&w); err != nil {
			continue
		}
		if c := w.candidate(); !c.IsEmpty() {
			return c, true
		}
	}
	return evaluation.Candidate{}, false
}

var (
	descriptionPattern = stringField("description")
	searchQueryPattern = stringField("searchQuery")
	titlePattern       = stringField("title")
	competitorPattern  = regexp.MustCompile(`(?i)"?competitorCount"?\s*[:=]\s*"?\s*(\d+)`)
)

func stringField(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)"?` + name + `"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
}

// salvage extracts the few fields a caller cannot work without.
func salvage(raw string) (evaluation.Candidate, bool) {
	var c evaluation.Candidate
	if s, ok := matchString(descriptionPattern, raw); ok {
		c.Description = &s
	}
	if s, ok := matchString(searchQueryPattern, raw); ok {
		c.SearchQuery = &s
	}
	if s, ok := matchString(titlePattern, raw); ok {
		c.Title = &s
	}
	if m := competitorPattern.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			c.CompetitorCount = &n
		}
	}
	return c, !c.IsEmpty()
}

func matchString(re *regexp.Regexp, raw string) (string, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	s, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func empty(string) (evaluation.Candidate, bool) {
	return evaluation.Candidate{}, true
}
