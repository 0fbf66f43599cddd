package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"underwriter/internal/decision"
	"underwriter/internal/decision/ai"
	"underwriter/internal/decision/fusion"
	"underwriter/internal/decision/handler"
	decisionmetrics "underwriter/internal/decision/metrics"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
	"underwriter/internal/decision/ruleset"
	"underwriter/internal/decision/store"
	"underwriter/internal/platform/config"
	"underwriter/internal/platform/kafka"
	"underwriter/internal/platform/metrics"
	"underwriter/internal/platform/postgres"
	"underwriter/internal/platform/redis"
	"underwriter/pkg/platform/audit"
	"underwriter/pkg/platform/audit/publisher"
	auditkafka "underwriter/pkg/platform/audit/store/kafka"
	auditmemory "underwriter/pkg/platform/audit/store/memory"
	auditpostgres "underwriter/pkg/platform/audit/store/postgres"
	"underwriter/pkg/platform/middleware/metadata"
	"underwriter/pkg/platform/middleware/request"
	"underwriter/pkg/platform/middleware/requesttime"
)

// app owns everything main has to release on shutdown.
type app struct {
	router  http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	engineMetrics := decisionmetrics.New()
	httpMetrics := metrics.New()

	var db *sql.DB
	if cfg.Postgres.URL != "" {
		var err error
		if db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db, log); err != nil {
			a.close()
			return nil, err
		}
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	auditor, err := buildAuditor(ctx, cfg, db, log, a)
	if err != nil {
		a.close()
		return nil, err
	}

	registry, err := buildRegistry(ctx, cfg, rdb, engineMetrics, auditor, log)
	if err != nil {
		a.close()
		return nil, err
	}

	fusionCfg, err := fusionConfig(cfg.Engine)
	if err != nil {
		a.close()
		return nil, err
	}
	opts := []decision.Option{
		decision.WithFusion(fusionCfg),
		decision.WithDefaultRuleSet(cfg.Engine.DefaultRuleSet),
		decision.WithMaxConcurrency(cfg.Engine.MaxConcurrency),
		decision.WithAuditor(auditor),
		decision.WithMetrics(engineMetrics),
		decision.WithLogger(log),
	}
	if db != nil {
		opts = append(opts, decision.WithStore(store.NewPostgres(db)))
	} else {
		opts = append(opts, decision.WithStore(store.NewInMemoryStore()))
	}
	if cfg.AI.Enabled() {
		client, err := buildAI(cfg.AI, engineMetrics, log)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, decision.WithAI(client))
	}

	svc, err := decision.New(registry, opts...)
	if err != nil {
		a.close()
		return nil, err
	}

	a.router = newRouter(handler.New(svc, log), httpMetrics, log, health(db, rdb))
	return a, nil
}

func fusionConfig(cfg config.EngineConfig) (fusion.Config, error) {
	strategy, err := models.ParseStrategy(cfg.Strategy)
	if err != nil {
		return fusion.Config{}, err
	}
	return fusion.Config{
		Strategy:                strategy,
		RuleWeight:              cfg.RuleWeight,
		AIWeight:                cfg.AIWeight,
		ConfidenceThreshold:     cfg.ConfidenceThreshold,
		HighConfidenceThreshold: cfg.HighConfidenceThreshold,
		FallbackToRules:         cfg.FallbackToRules,
	}, nil
}

// buildAuditor prefers Kafka, then Postgres, then memory. Events are written
// by a background worker so evaluations never wait on the sink.
func buildAuditor(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger, a *app) (ports.AuditPort, error) {
	var sink audit.Store
	switch {
	case cfg.Kafka.Enabled():
		cl, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cl.Close)
		if err := kafka.EnsureTopic(ctx, cl, cfg.Kafka); err != nil {
			return nil, err
		}
		sink = auditkafka.New(cl, cfg.Kafka.AuditTopic)
	case db != nil:
		sink = auditpostgres.New(db)
	default:
		sink = auditmemory.NewInMemoryStore()
	}
	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Server.AuditBuffer),
		publisher.WithLogger(log),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func buildRegistry(ctx context.Context, cfg config.Config, rdb *redis.Client, m *decisionmetrics.Metrics, auditor ports.AuditPort, log *slog.Logger) (*ruleset.Registry, error) {
	var source ruleset.Source
	var watch ruleset.Subscriber
	switch cfg.Engine.RulesSource {
	case config.RulesSourceDir:
		source = ruleset.NewFSSource(os.DirFS(cfg.Engine.RulesDir), ".")
	case config.RulesSourceRedis:
		redisSource := ruleset.NewRedisSource(rdb.Client)
		source, watch = redisSource, redisSource
	default:
		source = ruleset.DefaultSource()
	}

	registry, err := ruleset.NewRegistry(source,
		ruleset.WithLogger(log),
		ruleset.WithReloadListener(decision.ReloadListener(m, auditor, log)),
	)
	if err != nil {
		return nil, err
	}
	if _, err := registry.Load(ctx); err != nil {
		return nil, err
	}
	if watch != nil {
		go func() {
			if err := registry.Watch(ctx, watch); err != nil && ctx.Err() == nil {
				log.Error("rule set watch stopped", "error", err)
			}
		}()
	}
	return registry, nil
}

func buildAI(cfg config.AIConfig, m *decisionmetrics.Metrics, log *slog.Logger) (*ai.Client, error) {
	provider, err := ai.DefaultRegistry().New(ai.Config{
		Provider:         cfg.Provider,
		Model:            cfg.Model,
		BaseURL:          cfg.BaseURL,
		APIKey:           cfg.APIKey,
		APIVersion:       cfg.APIVersion,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		StaticDecision:   cfg.StaticDecision,
		StaticConfidence: cfg.StaticConfidence,
	})
	if err != nil {
		return nil, err
	}
	return ai.NewClient(provider, ai.ClientConfig{
		Timeout:          cfg.Timeout,
		MaxRetries:       cfg.MaxRetries,
		InitialBackoff:   cfg.InitialBackoff,
		MaxBackoff:       cfg.MaxBackoff,
		MaxConcurrent:    cfg.MaxConcurrent,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerSuccesses: cfg.BreakerSuccesses,
		BreakerCooldown:  cfg.BreakerCooldown,
	}, ai.WithLogger(log), ai.WithMetrics(m))
}

// health reports unavailable when a configured backing store stops answering.
func health(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}
}

func newRouter(h *handler.Handler, m *metrics.Metrics, log *slog.Logger, healthz http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log, m))
	r.Use(inFlight(m))

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)
	return r
}

func inFlight(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer m.TrackInFlight()()
			next.ServeHTTP(w, r)
		})
	}
}
