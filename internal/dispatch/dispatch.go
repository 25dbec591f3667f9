// Package dispatch issues upstream calls under a bounded retry policy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/llm"
	"github.com/raine/product-evaluator/internal/metrics"
	"github.com/rs/zerolog/log"
)

// State is the result state of one attempt.
type State int

const (
	StateAttempting State = iota
	StateSuccess
	StateRetryable
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StateRetryable:
		return "retryable"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}

// Reason explains a failed attempt.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonTimeout     Reason = "timeout"
	ReasonNetwork     Reason = "network"
	ReasonRateLimited Reason = "rate_limited"
	ReasonServerError Reason = "server_error"
	ReasonRejected    Reason = "rejected"
	ReasonCanceled    Reason = "canceled"
)

// Outcome is the classified result of one attempt.
type Outcome struct {
	State    State
	Reason   Reason
	Response *llm.RawResponse
	Err      error
}

func (o Outcome) label() string {
	if o.State == StateSuccess {
		return "success"
	}
	return string(o.Reason)
}

// Result is a successful dispatch.
type Result struct {
	Response *llm.RawResponse
	Attempts int
	Elapsed  time.Duration
}

// Dispatcher calls a provider until it succeeds, fails fatally or runs out
// of attempts.
type Dispatcher struct {
	policy  Policy
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// New creates a dispatcher. m may be nil.
func New(policy Policy, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		policy:  policy,
		metrics: m,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// WithSleep replaces the backoff sleep, for tests.
func (d *Dispatcher) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Dispatcher {
	d.sleep = sleep
	return d
}

// Policy returns the dispatcher's policy.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// Dispatch sends prompt to provider. Terminal failures are *evaluation.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, provider llm.Provider, prompt llm.Prompt) (*Result, error) {
	start := d.now()
	var last Outcome

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		attemptStart := d.now()
		o := d.attempt(ctx, provider, prompt)
		attemptElapsed := d.now().Sub(attemptStart)
		elapsed := d.now().Sub(start)

		d.metrics.ObserveAttempt(provider.Name(), o.label(), attemptElapsed.Seconds())
		ev := log.Info()
		if o.State != StateSuccess {
			ev = log.Warn().Err(o.Err)
		}
		if o.Response != nil {
			ev = ev.Int("status", o.Response.StatusCode)
		}
		ev.Str("provider", provider.Name()).
			Int("attempt", attempt).
			Int("maxAttempts", d.policy.MaxAttempts).
			Dur("attemptElapsed", attemptElapsed).
			Dur("elapsed", elapsed).
			Str("outcome", o.label()).
			Msg("upstream attempt")

		switch o.State {
		case StateSuccess:
			return &Result{Response: o.Response, Attempts: attempt, Elapsed: elapsed}, nil
		case StateFatal:
			return nil, fatalError(o, attempt, elapsed)
		}

		last = o
		if attempt == d.policy.MaxAttempts {
			break
		}
		if delay := d.policy.Backoff(o); delay > 0 {
			log.Debug().Dur("delay", delay).Str("reason", string(o.Reason)).Msg("backing off before retry")
			if err := d.sleep(ctx, delay); err != nil {
				return nil, &evaluation.Error{
					Kind:     evaluation.KindCanceled,
					Message:  "canceled during backoff",
					Attempts: attempt,
					Elapsed:  d.now().Sub(start),
					Cause:    err,
				}
			}
		}
	}

	return nil, exhaustedError(last, d.policy.MaxAttempts, d.now().Sub(start))
}

type callResult struct {
	res *llm.RawResponse
	err error
}

// attempt runs one call under its own timeout. The select makes the timer
// authoritative even if a provider ignores its context.
func (d *Dispatcher) attempt(ctx context.Context, provider llm.Provider, prompt llm.Prompt) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, d.policy.AttemptTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		res, err := provider.Generate(attemptCtx, prompt)
		done <- callResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		return classify(ctx, attemptCtx, r.res, r.err)
	case <-attemptCtx.Done():
		return classify(ctx, attemptCtx, nil, attemptCtx.Err())
	}
}

// classify maps the raw result of an attempt to an Outcome.
func classify(parent, attemptCtx context.Context, res *llm.RawResponse, err error) Outcome {
	if parent.Err() != nil {
		return Outcome{State: StateFatal, Reason: ReasonCanceled, Err: parent.Err()}
	}

	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{State: StateRetryable, Reason: ReasonTimeout, Err: err}
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Outcome{State: StateRetryable, Reason: ReasonTimeout, Err: err}
		}
		return Outcome{State: StateRetryable, Reason: ReasonNetwork, Err: err}
	}

	if res == nil {
		return Outcome{State: StateRetryable, Reason: ReasonNetwork, Err: fmt.Errorf("provider returned no response")}
	}

	switch {
	case res.Success():
		return Outcome{State: StateSuccess, Response: res}
	case res.StatusCode == http.StatusTooManyRequests:
		return Outcome{State: StateRetryable, Reason: ReasonRateLimited, Response: res, Err: statusError(res)}
	case res.StatusCode == http.StatusRequestTimeout:
		return Outcome{State: StateRetryable, Reason: ReasonTimeout, Response: res, Err: statusError(res)}
	case isTransientStatus(res.StatusCode):
		return Outcome{State: StateRetryable, Reason: ReasonServerError, Response: res, Err: statusError(res)}
	default:
		return Outcome{State: StateFatal, Reason: ReasonRejected, Response: res, Err: statusError(res)}
	}
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// maxMessageRunes bounds how much of an upstream body ends up in errors.
const maxMessageRunes = 300

func statusError(res *llm.RawResponse) error {
	return fmt.Errorf("upstream status %d: %s", res.StatusCode, llm.Excerpt(res.Body, maxMessageRunes))
}

func fatalError(o Outcome, attempts int, elapsed time.Duration) *evaluation.Error {
	if o.Reason == ReasonCanceled {
		return &evaluation.Error{
			Kind:     evaluation.KindCanceled,
			Message:  "dispatch canceled",
			Attempts: attempts,
			Elapsed:  elapsed,
			Cause:    o.Err,
		}
	}
	return rejectedError(o, attempts, elapsed)
}

func rejectedError(o Outcome, attempts int, elapsed time.Duration) *evaluation.Error {
	e := &evaluation.Error{
		Kind:     evaluation.KindUpstreamRejected,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
	if o.Response != nil {
		e.Status = o.Response.StatusCode
		e.Message = llm.Excerpt(o.Response.Body, maxMessageRunes)
	}
	return e
}

// exhaustedError classifies running out of attempts by the last failure.
func exhaustedError(last Outcome, attempts int, elapsed time.Duration) *evaluation.Error {
	switch last.Reason {
	case ReasonTimeout:
		return &evaluation.Error{
			Kind:     evaluation.KindTimeout,
			Message:  "upstream did not answer in time",
			Attempts: attempts,
			Elapsed:  elapsed,
			Cause:    last.Err,
		}
	case ReasonRateLimited, ReasonServerError:
		return rejectedError(last, attempts, elapsed)
	default:
		return &evaluation.Error{
			Kind:     evaluation.KindNetwork,
			Message:  "upstream unreachable",
			Attempts: attempts,
			Elapsed:  elapsed,
			Cause:    last.Err,
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
