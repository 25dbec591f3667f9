package bot

import (
	"fmt"
	"strings"

	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/storage"
	"github.com/rs/zerolog/log"
)

var helpText = formatReplyText(`
	Send a product photo to get an evaluation.

	Optionally add a caption with the niche and your supplier cost:
	  home office; 8.50

	/history shows your latest evaluations.
`)

const errorReplyInternal = "Something went wrong on our side. Please try again later."

// errorReply maps an evaluation failure to a user-facing message.
func errorReply(err error) string {
	e, ok := evaluation.AsError(err)
	if !ok {
		log.Error().Err(err).Msg("evaluation failed")
		return errorReplyInternal
	}

	log.Warn().Err(err).Str("kind", string(e.Kind)).Bool("operational", e.Operational()).Msg("evaluation failed")
	switch {
	case e.Kind == evaluation.KindBusy:
		return "Another evaluation is running. Please try again in a minute."
	case e.Operational():
		return "The evaluation service is not configured correctly. The admin has been notified in the logs."
	case e.Retryable():
		return "The evaluation service did not return an answer. Please try again shortly."
	case e.Kind == evaluation.KindCanceled:
		return "The evaluation was canceled."
	}
	return "The evaluation service rejected the request. Try a different photo."
}

func formatRecord(rec *evaluation.Record, cached bool) string {
	var sb strings.Builder

	if rec.Warning != "" {
		fmt.Fprintf(&sb, "⚠️ %s\n\n", rec.Warning)
	}
	sb.WriteString(formatReplyText(`
		%s
		%s

		Cost: $%.2f + $%.2f shipping
		Price: $%.2f (range $%.2f - $%.2f)
		Market: $%.2f (range $%.2f - $%.2f)
		Competitors: %d, saturation %s, risk %s
		First sale in %d-%d days
		Monthly profit: $%.0f / $%.0f / $%.0f
	`,
		rec.Title,
		rec.Verdict,
		rec.SupplierCost, rec.ShippingCost,
		rec.RecommendedPrice.Optimal, rec.RecommendedPrice.Min, rec.RecommendedPrice.Max,
		rec.MarketPrice, rec.MarketRange.Min, rec.MarketRange.Max,
		rec.CompetitorCount, rec.Saturation, rec.RiskLevel,
		rec.TimeToFirstSale.MinDays, rec.TimeToFirstSale.MaxDays,
		rec.Projections.Pessimistic.MonthlyProfit,
		rec.Projections.Realistic.MonthlyProfit,
		rec.Projections.Optimistic.MonthlyProfit,
	))

	writeList(&sb, "Strengths", rec.Strengths)
	writeList(&sb, "Risks", rec.Risks)
	fmt.Fprintf(&sb, "\n\nTags: %s", strings.Join(rec.SEOTags, ", "))

	if rec.Quality.Degraded {
		sb.WriteString("\n\nNote: the answer was partly unreadable, some values are estimates.")
	}
	if cached {
		sb.WriteString("\n\n(from an earlier evaluation of the same photo)")
	}
	return sb.String()
}

func writeList(sb *strings.Builder, heading string, items []string) {
	fmt.Fprintf(sb, "\n\n%s:", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "\n• %s", item)
	}
}

func formatHistory(items []storage.StoredEvaluation) string {
	if len(items) == 0 {
		return "No evaluations yet. Send a product photo to start."
	}
	var sb strings.Builder
	sb.WriteString("Latest evaluations:")
	for _, item := range items {
		fmt.Fprintf(&sb, "\n%s  %s: $%.2f, %s saturation",
			item.CreatedAt.Format("2006-01-02"),
			item.Record.Title,
			item.Record.RecommendedPrice.Optimal,
			item.Record.Saturation,
		)
	}
	return sb.String()
}
