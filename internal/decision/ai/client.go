package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"underwriter/internal/decision/metrics"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
	dErrors "underwriter/pkg/domain-errors"
	"underwriter/pkg/platform/circuit"
)

// ClientConfig bounds how long and how often the client waits on a provider.
type ClientConfig struct {
	// Timeout applies to each attempt.
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxConcurrent caps simultaneous provider calls across the process.
	MaxConcurrent    int64
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		InitialBackoff:   time.Second,
		MaxBackoff:       10 * time.Second,
		MaxConcurrent:    8,
		BreakerFailures:  5,
		BreakerSuccesses: 2,
		BreakerCooldown:  30 * time.Second,
	}
}

// Client implements ports.AIPort on top of a Provider.
type Client struct {
	provider Provider
	prompts  *PromptBuilder
	cfg      ClientConfig
	breaker  *circuit.Breaker
	sem      *semaphore.Weighted
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

var _ ports.AIPort = (*Client)(nil)

type ClientOption func(*Client)

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithBreaker replaces the breaker built from ClientConfig.
func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

func NewClient(provider Provider, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if provider == nil {
		return nil, NewProviderError(ErrorConfiguration, "", "provider is required", nil)
	}
	defaults := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}

	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	c := &Client{
		provider: provider,
		prompts:  prompts,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("ai:"+provider.ID(),
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.BreakerSuccesses),
			circuit.WithCooldown(cfg.BreakerCooldown),
		)
	}
	return c, nil
}

// ProviderID identifies the configured provider.
func (c *Client) ProviderID() string {
	return c.provider.ID()
}

// Evaluate asks the provider for a second opinion. Retryable failures are
// retried with exponential backoff up to the retry budget; every returned
// error carries the ai_unavailable code.
func (c *Client) Evaluate(ctx context.Context, app *models.Application, rc ports.RuleSetContext) (*models.AIDecision, error) {
	prompt, err := c.prompts.Build(app, rc)
	if err != nil {
		return nil, c.unavailable(NewProviderError(ErrorConfiguration, c.provider.ID(), "render prompt", err))
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, c.unavailable(transportError(c.provider.ID(), err))
	}
	defer c.sem.Release(1)

	if !c.breaker.Allow() {
		pe := NewProviderError(ErrorUnavailable, c.provider.ID(), "short-circuited", ErrCircuitOpen)
		c.metrics.ObserveAICall(c.provider.ID(), "circuit_open", 0)
		return nil, c.unavailable(pe)
	}

	var decision *models.AIDecision
	operation := func() error {
		d, err := c.attempt(ctx, prompt)
		if err != nil {
			if !IsRetryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		decision = d
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		c.metrics.IncrementAIRetry(c.provider.ID(), string(GetCategory(err)))
		c.logger.WarnContext(ctx, "ai attempt failed, retrying",
			"provider", c.provider.ID(),
			"application_id", app.ID,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	err = backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx), notify)
	if err != nil {
		c.recordFailure(ctx, err)
		return nil, c.unavailable(err)
	}
	c.recordSuccess(ctx)

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		decision.TraceID = sc.TraceID().String()
	}
	return decision, nil
}

// attempt runs one bounded provider call and parses its completion.
func (c *Client) attempt(ctx context.Context, prompt Prompt) (*models.AIDecision, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.provider.Complete(attemptCtx, prompt)
	var decision *models.AIDecision
	if err == nil {
		decision, err = Parse(c.provider.ID(), c.provider.Model(), raw)
	} else {
		err = c.normalize(ctx, attemptCtx, err)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(GetCategory(err))
	}
	c.metrics.ObserveAICall(c.provider.ID(), outcome, time.Since(start))
	return decision, err
}

// normalize types errors from providers that do not return a ProviderError.
func (c *Client) normalize(parent, attemptCtx context.Context, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, c.provider.ID(), "attempt timed out", err)
	}
	return transportError(c.provider.ID(), err)
}

func (c *Client) recordFailure(ctx context.Context, err error) {
	if !IsRetryable(err) {
		return
	}
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "ai circuit breaker opened",
			"breaker", c.breaker.Name(),
			"provider", c.provider.ID(),
			"error", err,
		)
	}
	c.metrics.SetBreakerOpen(c.provider.ID(), c.breaker.IsOpen())
}

func (c *Client) recordSuccess(ctx context.Context) {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "ai circuit breaker closed",
			"breaker", c.breaker.Name(),
			"state", c.breaker.State(),
		)
	}
	c.metrics.SetBreakerOpen(c.provider.ID(), c.breaker.IsOpen())
}

func (c *Client) unavailable(err error) error {
	return dErrors.Wrap(err, dErrors.CodeAIUnavailable, "ai second opinion unavailable")
}
