// Package evaluator runs one product evaluation end to end: gate, dispatch,
// recovery and correction.
package evaluator

import (
	"context"
	"strings"
	"time"

	"github.com/raine/product-evaluator/internal/correction"
	"github.com/raine/product-evaluator/internal/dispatch"
	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/gate"
	"github.com/raine/product-evaluator/internal/llm"
	"github.com/raine/product-evaluator/internal/metrics"
	"github.com/raine/product-evaluator/internal/recovery"
	"github.com/rs/zerolog/log"
)

// Options configures an Orchestrator. Nil collaborators get defaults.
type Options struct {
	Provider   llm.Provider
	Dispatcher *dispatch.Dispatcher
	Pipeline   *correction.Pipeline
	Gate       *gate.Gate
	Metrics    *metrics.Metrics
}

// Orchestrator is safe for concurrent use; concurrent callers beyond the
// first get a Busy error.
type Orchestrator struct {
	provider   llm.Provider
	dispatcher *dispatch.Dispatcher
	pipeline   *correction.Pipeline
	gate       *gate.Gate
	metrics    *metrics.Metrics
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		provider:   opts.Provider,
		dispatcher: opts.Dispatcher,
		pipeline:   opts.Pipeline,
		gate:       opts.Gate,
		metrics:    opts.Metrics,
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.New(dispatch.DefaultPolicy(), o.metrics)
	}
	if o.pipeline == nil {
		o.pipeline = correction.New(correction.DefaultPolicy())
	}
	if o.gate == nil {
		o.gate = gate.New()
	}
	return o
}

// Ceiling is the worst-case time Evaluate can take.
func (o *Orchestrator) Ceiling() time.Duration {
	return o.dispatcher.Policy().Ceiling()
}

// Busy reports whether an evaluation is in flight.
func (o *Orchestrator) Busy() bool {
	return o.gate.Held()
}

// Wait blocks until no evaluation is in flight, for graceful shutdown.
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.gate.Wait(ctx)
}

// Evaluate runs one evaluation. The only failures are *evaluation.Error of
// kind Busy, ConfigMissing, Timeout, NetworkError, UpstreamRejected,
// NoContent or Canceled; once text was received a record is always returned.
func (o *Orchestrator) Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Record, error) {
	start := time.Now()
	rec, err := o.evaluate(ctx, req)

	result := "ok"
	if e, ok := evaluation.AsError(err); ok {
		result = string(e.Kind)
	} else if err != nil {
		result = "error"
	}
	o.metrics.ObserveEvaluation(result, time.Since(start).Seconds())
	return rec, err
}

func (o *Orchestrator) evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Record, error) {
	if o.provider == nil || !o.provider.HasCredential() {
		log.Error().Msg("evaluation requested but no provider credential is configured")
		return nil, evaluation.NewError(evaluation.KindConfigMissing, "provider credential is not configured", nil)
	}

	release, ok := o.gate.Enter()
	if !ok {
		log.Info().Msg("evaluation rejected: another evaluation is in flight")
		return nil, evaluation.ErrBusy
	}
	defer release()

	policy := o.pipeline.Policy()
	prompt := llm.BuildPrompt(req, llm.PromptOptions{
		TagCount:     policy.RequiredTagCount,
		MaxTagLength: policy.MaxTagLength,
	})

	res, err := o.dispatcher.Dispatch(ctx, o.provider, prompt)
	if err != nil {
		log.Error().Err(err).Str("provider", o.provider.Name()).Msg("evaluation dispatch failed")
		return nil, err
	}

	body := res.Response.Body
	if strings.TrimSpace(body) == "" {
		return nil, &evaluation.Error{
			Kind:     evaluation.KindNoContent,
			Status:   res.Response.StatusCode,
			Message:  "provider returned an empty response",
			Attempts: res.Attempts,
			Elapsed:  res.Elapsed,
		}
	}

	recovered := recovery.Recover(body)
	o.metrics.ObserveStrategy(recovered.Strategy.String())
	if recovered.Degraded {
		log.Warn().
			Str("strategy", recovered.Strategy.String()).
			Str("bodyExcerpt", llm.Excerpt(body, 200)).
			Msg("provider output needed lenient recovery")
	}

	rec := o.pipeline.Correct(recovered.Candidate, req)
	rec.Quality.Strategy = int(recovered.Strategy)
	rec.Quality.Degraded = recovered.Degraded
	o.metrics.ObserveCorrected(rec.Quality.Defaulted)

	log.Info().
		Str("provider", o.provider.Name()).
		Int("attempts", res.Attempts).
		Dur("elapsed", res.Elapsed).
		Str("strategy", recovered.Strategy.String()).
		Strs("defaulted", rec.Quality.Defaulted).
		Float64("costUSD", res.Response.Usage.CostUSD).
		Float64("optimalPrice", rec.RecommendedPrice.Optimal).
		Msg("evaluation complete")

	return &rec, nil
}
