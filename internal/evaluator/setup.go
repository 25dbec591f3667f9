package evaluator

import (
	"context"
	"fmt"

	"github.com/raine/product-evaluator/internal/config"
	"github.com/raine/product-evaluator/internal/correction"
	"github.com/raine/product-evaluator/internal/dispatch"
	"github.com/raine/product-evaluator/internal/llm"
	"github.com/raine/product-evaluator/internal/metrics"
	"github.com/rs/zerolog/log"
)

// NewProvider creates the provider selected in cfg. A missing credential is
// not an error here; Evaluate reports it as ConfigMissing.
func NewProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(llm.OpenAIOpts{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
		}), nil
	case config.ProviderGemini:
		return llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, nil)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// FromConfig wires an Orchestrator from cfg. m may be nil.
func FromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Orchestrator, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	o := New(Options{
		Provider:   provider,
		Dispatcher: dispatch.New(cfg.Dispatch, m),
		Pipeline:   correction.New(cfg.Correction),
		Metrics:    m,
	})

	event := log.Info()
	if !provider.HasCredential() {
		event = log.Warn()
	}
	event.
		Str("provider", provider.Name()).
		Bool("credential", provider.HasCredential()).
		Dur("attemptTimeout", cfg.Dispatch.AttemptTimeout).
		Int("maxAttempts", cfg.Dispatch.MaxAttempts).
		Dur("ceiling", o.Ceiling()).
		Msg("evaluator configured")
	return o, nil
}
