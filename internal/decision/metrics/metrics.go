package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the underwriting engine.
type Metrics struct {
	// Pipeline stage latencies: scoring, rule_evaluating, awaiting_ai, fusing
	StageLatency *prometheus.HistogramVec

	// Final decisions by decision, basis and rule set
	DecisionOutcome *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency *prometheus.HistogramVec

	BatchSize prometheus.Histogram

	// AI second opinion calls by provider and outcome category
	AICalls   *prometheus.CounterVec
	AILatency *prometheus.HistogramVec
	AIRetries *prometheus.CounterVec

	// Decisions that fell back to the rule outcome because the AI was unavailable
	AIFallbacks *prometheus.CounterVec

	BreakerOpen *prometheus.GaugeVec

	RuleSetReloads    *prometheus.CounterVec
	RuleSetGeneration prometheus.Gauge
}

// New registers all engine metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all engine metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "underwriting_stage_duration_seconds",
			Help:    "Duration of each evaluation stage",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),

		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriting_decisions_total",
			Help: "Total final decisions by decision, basis and rule set",
		}, []string{"decision", "basis", "rule_set"}),

		EvaluateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "underwriting_evaluate_duration_seconds",
			Help:    "Duration of a full evaluation including the AI second opinion",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"rule_set", "ai"}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "underwriting_batch_size",
			Help:    "Applications per batch request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),

		AICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriting_ai_calls_total",
			Help: "AI provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		AILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "underwriting_ai_call_duration_seconds",
			Help:    "Duration of AI provider attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),

		AIRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriting_ai_retries_total",
			Help: "AI provider retries by provider and error category",
		}, []string{"provider", "category"}),

		AIFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriting_ai_fallbacks_total",
			Help: "Decisions that fell back to rules because the AI was unavailable",
		}, []string{"strategy"}),

		BreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "underwriting_ai_breaker_open",
			Help: "1 while the AI provider circuit breaker is open",
		}, []string{"provider"}),

		RuleSetReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriting_ruleset_reloads_total",
			Help: "Rule set reloads by result",
		}, []string{"result"}),

		RuleSetGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "underwriting_ruleset_generation",
			Help: "Generation of the rule set snapshot currently served",
		}),
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records a final decision.
func (m *Metrics) IncrementOutcome(decision, basis, ruleSet string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(decision, basis, ruleSet).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(ruleSet string, useAI bool, d time.Duration) {
	if m != nil {
		ai := "false"
		if useAI {
			ai = "true"
		}
		m.EvaluateLatency.WithLabelValues(ruleSet, ai).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// ObserveAICall records one provider attempt and its outcome category, "ok"
// on success.
func (m *Metrics) ObserveAICall(provider, outcome string, d time.Duration) {
	if m != nil {
		m.AICalls.WithLabelValues(provider, outcome).Inc()
		m.AILatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementAIRetry(provider, category string) {
	if m != nil {
		m.AIRetries.WithLabelValues(provider, category).Inc()
	}
}

func (m *Metrics) IncrementAIFallback(strategy string) {
	if m != nil {
		m.AIFallbacks.WithLabelValues(strategy).Inc()
	}
}

// SetBreakerOpen exports the breaker state of provider.
func (m *Metrics) SetBreakerOpen(provider string, open bool) {
	if m != nil {
		v := 0.0
		if open {
			v = 1
		}
		m.BreakerOpen.WithLabelValues(provider).Set(v)
	}
}

// ObserveReload records a rule set reload; generation is ignored on failure.
func (m *Metrics) ObserveReload(generation uint64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RuleSetReloads.WithLabelValues("error").Inc()
		return
	}
	m.RuleSetReloads.WithLabelValues("ok").Inc()
	m.RuleSetGeneration.Set(float64(generation))
}
