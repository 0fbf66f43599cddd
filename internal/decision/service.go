// Package decision orchestrates underwriting: every evaluation scores the
// application, applies the rule set, optionally asks the AI for a second
// opinion and fuses the two into one FinalDecision.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"underwriter/internal/decision/fusion"
	"underwriter/internal/decision/metrics"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
	"underwriter/internal/decision/rules"
	"underwriter/internal/decision/ruleset"
	"underwriter/internal/decision/scoring"
	dErrors "underwriter/pkg/domain-errors"
	"underwriter/pkg/platform/audit"
	"underwriter/pkg/platform/sentinel"
	platformstrings "underwriter/pkg/platform/strings"
	"underwriter/pkg/requestcontext"
)

const tracerName = "underwriter/internal/decision"

// Pipeline stages, in execution order.
const (
	StageScoring = "scoring"
	StageRules   = "rule_evaluation"
	StageAI      = "ai"
	StageFusion  = "fusion"
)

const (
	defaultMaxConcurrency = 8
	defaultListLimit      = 20
	maxListLimit          = 100
)

// RuleSetRegistry supplies immutable rule set snapshots.
type RuleSetRegistry interface {
	Current() *ruleset.Snapshot
	Load(ctx context.Context) (*ruleset.Snapshot, error)
}

// Service is the underwriting engine. It holds no per-evaluation state and is
// safe for concurrent use.
type Service struct {
	registry       RuleSetRegistry
	ai             ports.AIPort
	fusion         fusion.Config
	defaultRuleSet string
	maxConcurrency int
	store          ports.DecisionStore
	auditor        ports.AuditPort
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAI enables the AI second opinion.
func WithAI(ai ports.AIPort) Option {
	return func(s *Service) {
		s.ai = ai
	}
}

func WithFusion(cfg fusion.Config) Option {
	return func(s *Service) {
		s.fusion = cfg
	}
}

func WithDefaultRuleSet(name string) Option {
	return func(s *Service) {
		s.defaultRuleSet = name
	}
}

// WithMaxConcurrency sets the default fan-out of batch and compare calls.
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

func WithStore(store ports.DecisionStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

func WithAuditor(auditor ports.AuditPort) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithClock overrides the clock used to stamp stored decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds a Service. The fusion configuration is validated once here.
func New(registry RuleSetRegistry, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, dErrors.New(dErrors.CodeConfig, "rule set registry is required")
	}
	s := &Service{
		registry:       registry,
		fusion:         fusion.DefaultConfig(),
		defaultRuleSet: "standard",
		maxConcurrency: defaultMaxConcurrency,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fusion.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// EvaluateOne evaluates app against the named rule set; an empty name selects
// the default rule set.
func (s *Service) EvaluateOne(ctx context.Context, app *models.Application, ruleSetName string, useAI bool) (models.FinalDecision, error) {
	if err := app.Validate(); err != nil {
		return models.FinalDecision{}, err
	}
	rs, err := s.resolve(s.registry.Current(), ruleSetName)
	if err != nil {
		return models.FinalDecision{}, err
	}
	return s.evaluate(ctx, app, rs, useAI)
}

// EvaluateBatch evaluates every application against one snapshot of the
// named rule set. Results follow input order. Every application is validated
// before any is evaluated and the first failure fails the batch.
func (s *Service) EvaluateBatch(ctx context.Context, apps []*models.Application, ruleSetName string, useAI bool, maxConcurrency int) ([]models.FinalDecision, error) {
	for i, app := range apps {
		if err := app.Validate(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("application %d", i))
		}
	}
	rs, err := s.resolve(s.registry.Current(), ruleSetName)
	if err != nil {
		return nil, err
	}
	if maxConcurrency <= 0 {
		maxConcurrency = s.maxConcurrency
	}
	s.metrics.ObserveBatchSize(len(apps))

	results := make([]models.FinalDecision, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, app := range apps {
		g.Go(func() error {
			fd, err := s.evaluate(gctx, app, rs, useAI)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf("application %d (%s)", i, app.ID))
			}
			results[i] = fd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CompareRuleSets runs app through each named rule set independently. Names
// are matched case-insensitively and repeats run once; no names compares every
// loaded rule set.
func (s *Service) CompareRuleSets(ctx context.Context, app *models.Application, ruleSetNames []string, useAI bool) (map[string]models.FinalDecision, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	snap := s.registry.Current()
	names := platformstrings.DedupeAndTrimLower(ruleSetNames)
	if len(names) == 0 {
		names = snap.Names()
	}

	sets := make([]*ruleset.RuleSet, 0, len(names))
	for _, name := range names {
		rs, err := snap.Get(name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}

	results := make([]models.FinalDecision, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, rs := range sets {
		g.Go(func() error {
			fd, err := s.evaluate(gctx, app, rs, useAI)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf("rule set %q", rs.Name))
			}
			results[i] = fd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]models.FinalDecision, len(sets))
	for i, rs := range sets {
		out[rs.Name] = results[i]
	}
	return out, nil
}

func (s *Service) resolve(snap *ruleset.Snapshot, name string) (*ruleset.RuleSet, error) {
	if name == "" {
		name = s.defaultRuleSet
	}
	return snap.Get(name)
}

// evaluate runs the pipeline for one validated application against rs.
func (s *Service) evaluate(ctx context.Context, app *models.Application, rs *ruleset.RuleSet, useAI bool) (models.FinalDecision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "decision.Evaluate", trace.WithAttributes(
		attribute.String("application.id", app.ID),
		attribute.String("rule_set.name", rs.Name),
		attribute.String("rule_set.version", rs.Version),
		attribute.Bool("use_ai", useAI),
	))
	defer span.End()

	in := fusion.Input{
		ApplicationID:  app.ID,
		RuleSetName:    rs.Name,
		RuleSetVersion: rs.Version,
		AIRequested:    useAI,
	}
	var fd models.FinalDecision

	err := s.stage(ctx, StageScoring, func(context.Context) error {
		var err error
		in.RiskScore, err = scoring.Score(app, rs.Weights, rs.Parameters)
		return err
	})
	if err == nil {
		err = s.stage(ctx, StageRules, func(context.Context) error {
			in.RuleOutcome = rules.Evaluate(app, rs)
			return nil
		})
	}
	if err == nil && useAI {
		err = s.stage(ctx, StageAI, func(ctx context.Context) error {
			in.AI, in.AIErr = s.secondOpinion(ctx, app, rs)
			return nil
		})
	}
	if err == nil {
		err = s.stage(ctx, StageFusion, func(context.Context) error {
			var err error
			fd, err = fusion.Fuse(in, s.fusion)
			return err
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.logger.ErrorContext(ctx, "evaluation failed",
			"application_id", app.ID,
			"rule_set", rs.Name,
			"error", err,
		)
		return models.FinalDecision{}, err
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("decision", string(fd.Decision)),
		attribute.String("basis", string(fd.Basis)),
		attribute.String("trace_ref", fd.TraceRef),
	)
	s.metrics.IncrementOutcome(string(fd.Decision), string(fd.Basis), rs.Name)
	s.metrics.ObserveEvaluateLatency(rs.Name, useAI, elapsed)
	s.logger.InfoContext(ctx, "decision made",
		"application_id", app.ID,
		"rule_set", rs.Name,
		"decision", fd.Decision,
		"basis", fd.Basis,
		"ai_status", fd.AIStatus,
		"trace_ref", fd.TraceRef,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.record(context.WithoutCancel(ctx), fd)
	return fd, nil
}

// stage runs one pipeline step in its own span. A done context stops the
// pipeline before the step starts.
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation stopped before "+name)
	}
	ctx, span := s.tracer.Start(ctx, "decision."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveStage(name, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logger.DebugContext(ctx, "stage complete",
		"stage", name,
		"duration_ms", elapsed.Milliseconds(),
		"failed", err != nil,
	)
	return err
}

func (s *Service) secondOpinion(ctx context.Context, app *models.Application, rs *ruleset.RuleSet) (*models.AIDecision, error) {
	if s.ai == nil {
		return nil, dErrors.New(dErrors.CodeAIUnavailable, "no ai provider configured")
	}
	decision, err := s.ai.Evaluate(ctx, app, ruleSetContext(rs))
	if err != nil {
		s.logger.WarnContext(ctx, "ai second opinion unavailable",
			"application_id", app.ID,
			"rule_set", rs.Name,
			"error", err,
		)
		return nil, err
	}
	return decision, nil
}

// record stores and audits fd. Failures are logged and never change the
// decision already made.
func (s *Service) record(ctx context.Context, fd models.FinalDecision) {
	if s.store != nil {
		if err := s.store.Save(ctx, models.NewDecisionRecord(fd, s.now())); err != nil {
			s.logger.ErrorContext(ctx, "failed to store decision",
				"application_id", fd.ApplicationID,
				"error", err,
			)
		}
	}
	s.emit(ctx, decisionEvent(ctx, audit.EventDecisionMade, fd))
	if fd.Fallback {
		s.metrics.IncrementAIFallback(string(fd.Strategy))
		s.emit(ctx, decisionEvent(ctx, audit.EventAIFallback, fd))
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

func decisionEvent(ctx context.Context, action audit.AuditEvent, fd models.FinalDecision) audit.Event {
	reason := fd.Reason
	if action == audit.EventAIFallback {
		reason = fd.AIError
	}
	return audit.Event{
		Action:         string(action),
		Subject:        fd.ApplicationID,
		RuleSet:        fd.RuleSetName,
		RuleSetVersion: fd.RuleSetVersion,
		Decision:       string(fd.Decision),
		Basis:          string(fd.Basis),
		Reason:         reason,
		RequestID:      requestcontext.RequestID(ctx),
		TraceRef:       fd.TraceRef,
	}
}

// ruleSetContext is the rule set as the AI second opinion sees it.
func ruleSetContext(rs *ruleset.RuleSet) ports.RuleSetContext {
	return ports.RuleSetContext{
		Name:        rs.Name,
		Version:     rs.Version,
		Description: rs.Description,
		HardStops:   summarize(rs.HardStops),
		Referrals:   summarize(rs.Referrals),
		Acceptance:  summarize(rs.Acceptance),
	}
}

func summarize(rules []ruleset.Rule) []ports.RuleSummary {
	out := make([]ports.RuleSummary, 0, len(rules))
	for _, r := range rules {
		out = append(out, ports.RuleSummary{ID: r.ID, Name: r.Name, Reason: r.Reason})
	}
	return out
}

// GetDecision returns the latest stored decision for applicationID.
func (s *Service) GetDecision(ctx context.Context, applicationID string) (*models.DecisionRecord, error) {
	if s.store == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "decision history is not enabled")
	}
	record, err := s.store.Get(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no decision recorded for %q", applicationID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decision")
	}
	return record, nil
}

// ListDecisions returns the most recent stored decisions, newest first.
// limit defaults to 20 and is capped at 100.
func (s *Service) ListDecisions(ctx context.Context, limit int) ([]*models.DecisionRecord, error) {
	if s.store == nil {
		return []*models.DecisionRecord{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	records, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list decisions")
	}
	return records, nil
}
