package correction

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"with": true, "without": true, "for": true, "of": true, "in": true, "on": true,
	"to": true, "from": true, "by": true, "at": true, "as": true, "into": true,
	"this": true, "that": true, "these": true, "those": true, "its": true, "it": true,
	"is": true, "are": true, "was": true, "be": true, "can": true, "could": true,
	"not": true, "very": true, "has": true, "have": true, "your": true, "you": true,
	"set": true, "pcs": true, "piece": true, "pieces": true,
	"new": true, "product": true, "item": true, "generic": true, "unknown": true,
}

// keywords splits s into lowercase tokens, dropping stop-words and tokens
// shorter than three runes. Order is preserved and duplicates removed.
func keywords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	var out []string
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if utf8.RuneCountInString(f) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// truncateWords cuts s to at most n runes on a word boundary when possible.
func truncateWords(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := truncateRunes(s, n)
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-")
}

func blank(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
