package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"
)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// parseCaption splits a photo caption of the form "niche; cost". Either
// part may be missing, and a caption that is only a number is a cost.
func parseCaption(caption string) (niche string, cost float64) {
	parts := strings.SplitN(caption, ";", 2)
	niche = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		cost, _ = parseCost(parts[1])
		return niche, cost
	}
	if c, ok := parseCost(niche); ok {
		return "", c
	}
	return niche, 0
}

// parseCost accepts "8.50", "8,50", "$8.50" or "8.50 USD".
func parseCost(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(s), "USD"))
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
