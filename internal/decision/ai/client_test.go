package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace"

	"underwriter/internal/decision/models"
	dErrors "underwriter/pkg/domain-errors"
	"underwriter/pkg/platform/circuit"
)

const acceptCompletion = `{"decision": "accept", "reasoning": "clean record", "risk_assessment": {"overall_risk_score": 120, "confidence_score": 0.88}}`

// scriptedProvider replays results in order and repeats the last one.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	results []scriptedResult
	block   bool
}

type scriptedResult struct {
	raw string
	err error
}

func (p *scriptedProvider) ID() string    { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Complete(ctx context.Context, _ Prompt) (string, error) {
	p.mu.Lock()
	p.calls++
	idx := min(p.calls-1, len(p.results)-1)
	r := p.results[idx]
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.raw, r.err
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func unavailableResult() scriptedResult {
	return scriptedResult{err: NewProviderError(ErrorUnavailable, "scripted", "status 503", nil)}
}

type ClientSuite struct {
	suite.Suite
	cfg ClientConfig
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.cfg = ClientConfig{
		Timeout:          time.Second,
		MaxRetries:       3,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
		MaxConcurrent:    4,
		BreakerFailures:  2,
		BreakerSuccesses: 1,
		BreakerCooldown:  time.Hour,
	}
}

func (s *ClientSuite) newClient(p Provider, opts ...ClientOption) *Client {
	c, err := NewClient(p, s.cfg, opts...)
	s.Require().NoError(err)
	return c
}

func (s *ClientSuite) evaluate(c *Client) (*models.AIDecision, error) {
	return c.Evaluate(context.Background(), sampleApplication(), sampleContext())
}

// =============================================================================
// Success and retries
// =============================================================================

func (s *ClientSuite) TestSuccess() {
	p := &scriptedProvider{results: []scriptedResult{{raw: acceptCompletion}}}
	c := s.newClient(p)

	d, err := s.evaluate(c)
	s.Require().NoError(err)
	s.Equal(models.DecisionAccept, d.Decision)
	s.InDelta(0.88, d.Confidence, 1e-9)
	s.Equal("scripted", d.Provider)
	s.Equal("scripted-1", d.Model)
	s.Equal(1, p.Calls())
}

func (s *ClientSuite) TestRetriesRetryableFailures() {
	p := &scriptedProvider{results: []scriptedResult{
		unavailableResult(),
		{err: NewProviderError(ErrorRateLimited, "scripted", "status 429", nil)},
		{raw: acceptCompletion},
	}}
	c := s.newClient(p)

	d, err := s.evaluate(c)
	s.Require().NoError(err)
	s.Equal(models.DecisionAccept, d.Decision)
	s.Equal(3, p.Calls())
	s.Equal(circuit.StateClosed, c.breaker.State())
}

func (s *ClientSuite) TestRetryBudgetExhausted() {
	s.cfg.BreakerFailures = 10
	p := &scriptedProvider{results: []scriptedResult{unavailableResult()}}
	c := s.newClient(p)

	_, err := s.evaluate(c)
	s.Require().Error(err)
	s.Equal(s.cfg.MaxRetries+1, p.Calls())
	s.True(dErrors.HasCode(err, dErrors.CodeAIUnavailable))
	s.Equal(ErrorUnavailable, GetCategory(err))
}

func (s *ClientSuite) TestInvalidResponseIsNotRetried() {
	p := &scriptedProvider{results: []scriptedResult{{raw: "I think they are fine."}}}
	c := s.newClient(p)

	for range 3 {
		_, err := s.evaluate(c)
		s.Require().Error(err)
		s.Equal(ErrorInvalidResponse, GetCategory(err))
		s.True(dErrors.HasCode(err, dErrors.CodeAIUnavailable))
	}
	s.Equal(3, p.Calls())
	s.Equal(circuit.StateClosed, c.breaker.State(), "invalid responses do not trip the breaker")
}

func (s *ClientSuite) TestAttemptTimeout() {
	s.cfg.Timeout = 10 * time.Millisecond
	s.cfg.MaxRetries = 0
	p := &scriptedProvider{results: []scriptedResult{{}}, block: true}
	c := s.newClient(p)

	_, err := s.evaluate(c)
	s.Require().Error(err)
	s.Equal(ErrorTimeout, GetCategory(err))
	s.True(dErrors.HasCode(err, dErrors.CodeAIUnavailable))
}

func (s *ClientSuite) TestCallerCancellationStopsRetries() {
	p := &scriptedProvider{results: []scriptedResult{{}}, block: true}
	c := s.newClient(p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Evaluate(ctx, sampleApplication(), sampleContext())
	s.Require().Error(err)
	s.Equal(1, p.Calls())
	s.True(dErrors.HasCode(err, dErrors.CodeAIUnavailable))
}

// =============================================================================
// Circuit breaker
// =============================================================================

func (s *ClientSuite) TestBreakerOpensAndShortCircuits() {
	s.cfg.MaxRetries = 0
	p := &scriptedProvider{results: []scriptedResult{unavailableResult()}}
	c := s.newClient(p)

	for range 2 {
		_, err := s.evaluate(c)
		s.Require().Error(err)
	}
	s.Equal(circuit.StateOpen, c.breaker.State())

	_, err := s.evaluate(c)
	s.Require().Error(err)
	s.ErrorIs(err, ErrCircuitOpen)
	s.True(dErrors.HasCode(err, dErrors.CodeAIUnavailable))
	s.Equal(2, p.Calls(), "open breaker must not reach the provider")
}

func (s *ClientSuite) TestBreakerProbeClosesAfterCooldown() {
	now := time.Now()
	clock := func() time.Time { return now }
	breaker := circuit.New("ai:scripted",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(clock),
	)
	s.cfg.MaxRetries = 0
	p := &scriptedProvider{results: []scriptedResult{unavailableResult(), {raw: acceptCompletion}}}
	c := s.newClient(p, WithBreaker(breaker))

	_, err := s.evaluate(c)
	s.Require().Error(err)
	s.True(breaker.IsOpen())

	now = now.Add(2 * time.Minute)
	d, err := s.evaluate(c)
	s.Require().NoError(err)
	s.Equal(models.DecisionAccept, d.Decision)
	s.Equal(circuit.StateClosed, breaker.State())
}

// =============================================================================
// Concurrency and tracing
// =============================================================================

type countingProvider struct {
	inflight atomic.Int64
	peak     atomic.Int64
}

func (p *countingProvider) ID() string    { return "counting" }
func (p *countingProvider) Model() string { return "counting-1" }

func (p *countingProvider) Complete(ctx context.Context, _ Prompt) (string, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(15 * time.Millisecond)
	return acceptCompletion, nil
}

func (s *ClientSuite) TestConcurrencyCap() {
	s.cfg.MaxConcurrent = 2
	p := &countingProvider{}
	c := s.newClient(p)

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.evaluate(c)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	s.LessOrEqual(p.peak.Load(), int64(2))
}

func (s *ClientSuite) TestTraceIDFromContext() {
	p := &scriptedProvider{results: []scriptedResult{{raw: acceptCompletion}}}
	c := s.newClient(p)

	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{0, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
	}))

	d, err := c.Evaluate(ctx, sampleApplication(), sampleContext())
	s.Require().NoError(err)
	s.Equal(traceID.String(), d.TraceID)
}

func (s *ClientSuite) TestRequiresProvider() {
	_, err := NewClient(nil, s.cfg)
	s.Require().Error(err)
	s.Equal(ErrorConfiguration, GetCategory(err))
}
