// Package llmclient provides the AI model provider collaborators: one
// HTTP client per supported backend behind the schemas.LLMClient
// interface, each with its own bounded retry and rate-limit policy.
package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewClient creates the LLM client selected by cfg.DefaultModel.
func NewClient(cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	modelCfg, ok := cfg.Models[cfg.DefaultModel]
	if !ok {
		return nil, fmt.Errorf("default model '%s' not found in configured models", cfg.DefaultModel)
	}
	return newProviderClient(modelCfg, logger)
}

// newProviderClient instantiates the backend for a single model config.
func newProviderClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider: '%s'", cfg.Provider)
	}
}

// newLimiter paces outbound requests. Zero or negative rpm disables
// pacing.
func newLimiter(rpm float64) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rpm/60.0), 1)
}

// retryPolicy builds the shared bounded exponential backoff, capped both
// by attempt count and by the caller's context.
func retryPolicy(ctx context.Context, maxRetries int) backoff.BackOffContext {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 20 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}
