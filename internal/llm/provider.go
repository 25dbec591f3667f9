package llm

import (
	"context"
	"time"
)

// Image is an image attached to a prompt. Either URL or Data is set.
type Image struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Prompt is a single request to the inference provider.
type Prompt struct {
	System string
	Task   string
	Image  Image
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// RawResponse is what the provider returned for one attempt.
type RawResponse struct {
	StatusCode int
	RetryAfter time.Duration // Zero when the provider gave no hint
	Body       string        // Model text on success, error message otherwise
	Usage      Usage
}

// Success reports whether the status is 2xx.
func (r *RawResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Provider sends one prompt to an upstream model.
//
// Transport failures (DNS, connection reset, deadline) are returned as
// errors. Anything the upstream answered, including error statuses, is
// returned as a RawResponse.
type Provider interface {
	Name() string
	// HasCredential reports whether an API credential is configured.
	HasCredential() bool
	Generate(ctx context.Context, prompt Prompt) (*RawResponse, error)
}

// Excerpt shortens s to at most n runes for logs and error messages.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
