// Package model wraps Genkit generation behind the pipeline's ModelClient
// contract. Every call is rate limited, retried with exponential backoff on
// transient failures, and guarded by a circuit breaker so a broken provider
// fails fast instead of queueing work.
//
// Tool requests are always returned to the caller rather than auto-executed;
// running tools is the pipeline's job.
package model

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/pipeline"
)

// Config carries the client's construction parameters.
type Config struct {
	// Genkit is the initialized Genkit instance. Required.
	Genkit *genkit.Genkit
	// Model is the resolved model reference. Required.
	Model ai.Model
	// Logger receives call diagnostics. Defaults to slog.Default.
	Logger log.Logger
	// Retry overrides DefaultRetryConfig when non-zero.
	Retry RetryConfig
	// Breaker overrides the default circuit breaker thresholds.
	Breaker CircuitBreakerConfig
	// Limiter paces outgoing calls. Defaults to 1 req/s with burst 5.
	Limiter *rate.Limiter
}

// Client issues model calls for the pipeline.
type Client struct {
	g       *genkit.Genkit
	model   ai.Model
	logger  log.Logger
	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// New builds a client. Genkit and Model are required; everything else has
// working defaults.
func New(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("model: Genkit instance is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("model: model reference is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(1, 5)
	}

	return &Client{
		g:       cfg.Genkit,
		model:   cfg.Model,
		logger:  cfg.Logger,
		retry:   cfg.Retry,
		breaker: NewCircuitBreaker(cfg.Breaker),
		limiter: cfg.Limiter,
	}, nil
}

// Send implements pipeline.ModelClient.
func (c *Client) Send(ctx context.Context, req pipeline.ModelRequest) (*ai.ModelResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	opts := []ai.GenerateOption{
		ai.WithModel(c.model),
		ai.WithSystem(req.System),
		ai.WithMessages(req.Messages...),
		ai.WithReturnToolRequests(true),
	}
	if len(req.Tools) > 0 {
		opts = append(opts, ai.WithTools(req.Tools...))
	}

	resp, err := c.generateWithRetry(ctx, opts)
	if err != nil {
		c.breaker.Failure()
		return nil, err
	}
	c.breaker.Success()
	return resp, nil
}

// BreakerState exposes the circuit state for readiness reporting.
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}
