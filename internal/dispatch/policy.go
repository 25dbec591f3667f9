package dispatch

import (
	"fmt"
	"time"

	"github.com/raine/product-evaluator/internal/llm"
)

// Policy bounds how long and how often the dispatcher tries the upstream.
type Policy struct {
	AttemptTimeout    time.Duration // Per-attempt timeout (T)
	MaxAttempts       int           // Maximum attempts (N)
	RetryDelay        time.Duration // Delay after network and server failures (D)
	DefaultRetryAfter time.Duration // Delay after rate limiting without a hint
	MaxRetryAfter     time.Duration // Cap for provider supplied retry hints
}

// DefaultPolicy bounds one dispatch at 104s: three 28s attempts plus two
// backoffs of at most 10s.
func DefaultPolicy() Policy {
	return Policy{
		AttemptTimeout:    28 * time.Second,
		MaxAttempts:       3,
		RetryDelay:        2 * time.Second,
		DefaultRetryAfter: 5 * time.Second,
		MaxRetryAfter:     10 * time.Second,
	}
}

// Validate checks that the policy can make progress.
func (p Policy) Validate() error {
	if p.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be > 0 (got %s)", p.AttemptTimeout)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.RetryDelay < 0 || p.DefaultRetryAfter < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if p.MaxRetryAfter <= 0 {
		return fmt.Errorf("max retry after must be > 0 (got %s)", p.MaxRetryAfter)
	}
	return nil
}

// Ceiling is the worst-case wall-clock time of one dispatch. It holds for
// policies that pass Validate.
func (p Policy) Ceiling() time.Duration {
	longestBackoff := max(p.RetryDelay, p.DefaultRetryAfter, p.MaxRetryAfter)
	return time.Duration(p.MaxAttempts)*p.AttemptTimeout +
		time.Duration(p.MaxAttempts-1)*longestBackoff
}

// backoffs maps a retryable reason to the delay before the next attempt.
var backoffs = map[Reason]func(Policy, *llm.RawResponse) time.Duration{
	ReasonTimeout: func(Policy, *llm.RawResponse) time.Duration { return 0 },
	ReasonNetwork: func(p Policy, _ *llm.RawResponse) time.Duration { return p.RetryDelay },
	ReasonServerError: func(p Policy, _ *llm.RawResponse) time.Duration {
		return p.RetryDelay
	},
	ReasonRateLimited: func(p Policy, res *llm.RawResponse) time.Duration {
		d := p.DefaultRetryAfter
		if res != nil && res.RetryAfter > 0 {
			d = res.RetryAfter
		}
		if d > p.MaxRetryAfter {
			d = p.MaxRetryAfter
		}
		return d
	},
}

// Backoff returns the delay to wait after a retryable outcome.
func (p Policy) Backoff(o Outcome) time.Duration {
	if f, ok := backoffs[o.Reason]; ok {
		return f(p, o.Response)
	}
	return 0
}
