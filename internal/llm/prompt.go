package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/product-evaluator/internal/evaluation"
)

const systemInstruction = `
	You are an e-commerce product research analyst. You look at a product photo
	and estimate sourcing costs, competition and pricing for an online
	marketplace listing. You always answer with a single JSON object and never
	include markdown, commentary or code fences.`

const taskTemplate = `
	Evaluate the product in the attached image for resale on an online marketplace.

	Seller context:
	- Niche or category: %s
	- Known supplier cost: %s

	Respond with a JSON object with exactly these fields:
	- identified (boolean): whether you could identify the product
	- description (string): what the product is, 1-2 sentences
	- searchQuery (string): 2-5 word marketplace search query for this product
	- supplierCost (number): estimated wholesale unit cost in USD
	- shippingCost (number): estimated shipping cost per unit in USD
	- competitorCount (integer): estimated number of competing listings
	- competitorReliable (boolean): whether the competitor estimate is based on clear evidence
	- competitorReasoning (string): one sentence explaining the competitor estimate
	- saturation (string): "low", "medium" or "high"
	- averageMarketPrice (number): typical selling price in USD
	- marketPriceRange (object): {"min": number, "max": number}
	- recommendedPrice (object): {"min": number, "optimal": number, "max": number}
	- riskLevel (string): "low", "medium" or "high"
	- timeToFirstSale (object): {"minDays": integer, "maxDays": integer}
	- salesProjections (object): {"pessimistic", "realistic", "optimistic"}, each {"unitsPerMonth": integer, "monthlyRevenue": number, "monthlyProfit": number}
	- strengths (array of 2-5 strings)
	- risks (array of 2-5 strings)
	- seoTags (array of exactly %d strings, lowercase, at most %d characters each, no duplicates)
	- extraTags (array of up to 10 additional tag ideas)
	- title (string): listing title, at most 140 characters
	- verdict (string): one paragraph final recommendation
	- warning (string, optional): anything the seller must know

	The recommended optimal price must be higher than supplierCost + shippingCost.
	Respond ONLY with the JSON object.`

// PromptOptions controls the parts of the prompt that mirror correction limits.
type PromptOptions struct {
	TagCount     int
	MaxTagLength int
}

// BuildPrompt creates the provider prompt for an evaluation request.
func BuildPrompt(req evaluation.Request, opts PromptOptions) Prompt {
	niche := strings.TrimSpace(req.Niche)
	if niche == "" {
		niche = "not specified"
	}
	cost := "unknown"
	if req.CostHint > 0 {
		cost = fmt.Sprintf("%.2f USD", req.CostHint)
	}

	return Prompt{
		System: strings.TrimSpace(dedent.Dedent(systemInstruction)),
		Task:   fmt.Sprintf(strings.TrimSpace(dedent.Dedent(taskTemplate)), niche, cost, opts.TagCount, opts.MaxTagLength),
		Image: Image{
			URL:      req.Image.URL,
			Data:     req.Image.Data,
			MIMEType: req.Image.MIMEType,
		},
	}
}
