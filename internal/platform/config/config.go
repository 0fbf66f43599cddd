// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dErrors "underwriter/pkg/domain-errors"
	platformstrings "underwriter/pkg/platform/strings"
)

// Config is the complete, typed service configuration.
type Config struct {
	Server   Server
	Engine   EngineConfig
	AI       AIConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AuditBuffer       int
}

// Rule set sources.
const (
	RulesSourceEmbedded = "embedded"
	RulesSourceDir      = "dir"
	RulesSourceRedis    = "redis"
)

// EngineConfig selects rule sets and the fusion policy.
type EngineConfig struct {
	DefaultRuleSet          string
	RulesSource             string
	RulesDir                string
	Strategy                string
	RuleWeight              float64
	AIWeight                float64
	ConfidenceThreshold     float64
	HighConfidenceThreshold float64
	FallbackToRules         bool
	MaxConcurrency          int
}

// AIConfig configures the AI second opinion. An empty Provider disables it.
type AIConfig struct {
	Provider         string
	Model            string
	BaseURL          string
	APIKey           string
	APIVersion       string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	MaxConcurrent    int64
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
	StaticDecision   string
	StaticConfidence float64
}

// Enabled reports whether an AI provider is configured.
func (c AIConfig) Enabled() bool {
	return c.Provider != ""
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	ClientID          string
	AuditTopic        string
	Partitions        int32
	ReplicationFactor int16
}

// Enabled reports whether Kafka brokers are configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads a .env file if one exists and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables and validates
// it.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: Server{
			Addr:              e.str("UNDERWRITER_ADDR", ":8080"),
			ReadHeaderTimeout: e.duration("UNDERWRITER_READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:   e.duration("UNDERWRITER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AuditBuffer:       e.int("AUDIT_BUFFER", 1024),
		},
		Engine: EngineConfig{
			DefaultRuleSet:          e.str("DEFAULT_RULE_SET", "standard"),
			RulesSource:             e.str("RULES_SOURCE", RulesSourceEmbedded),
			RulesDir:                e.str("RULES_DIR", ""),
			Strategy:                e.str("FUSION_STRATEGY", "weighted_average"),
			RuleWeight:              e.float("FUSION_RULE_WEIGHT", 0.7),
			AIWeight:                e.float("FUSION_AI_WEIGHT", 0.3),
			ConfidenceThreshold:     e.float("FUSION_CONFIDENCE_THRESHOLD", 0.7),
			HighConfidenceThreshold: e.float("FUSION_HIGH_CONFIDENCE_THRESHOLD", 0.9),
			FallbackToRules:         e.bool("FUSION_FALLBACK_TO_RULES", true),
			MaxConcurrency:          e.int("ENGINE_MAX_CONCURRENCY", 8),
		},
		AI: AIConfig{
			Provider:         strings.ToLower(e.str("AI_PROVIDER", "")),
			Model:            e.str("AI_MODEL", ""),
			BaseURL:          e.str("AI_BASE_URL", ""),
			APIKey:           e.str("AI_API_KEY", ""),
			APIVersion:       e.str("AI_API_VERSION", ""),
			Temperature:      e.float("AI_TEMPERATURE", 0.1),
			MaxTokens:        e.int("AI_MAX_TOKENS", 2000),
			Timeout:          e.duration("AI_TIMEOUT", 30*time.Second),
			MaxRetries:       e.int("AI_MAX_RETRIES", 3),
			InitialBackoff:   e.duration("AI_INITIAL_BACKOFF", time.Second),
			MaxBackoff:       e.duration("AI_MAX_BACKOFF", 10*time.Second),
			MaxConcurrent:    int64(e.int("AI_MAX_CONCURRENT", 8)),
			BreakerFailures:  e.int("AI_BREAKER_FAILURES", 5),
			BreakerSuccesses: e.int("AI_BREAKER_SUCCESSES", 2),
			BreakerCooldown:  e.duration("AI_BREAKER_COOLDOWN", 30*time.Second),
			StaticDecision:   e.str("AI_STATIC_DECISION", ""),
			StaticConfidence: e.float("AI_STATIC_CONFIDENCE", 0.5),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:           e.list("KAFKA_BROKERS"),
			ClientID:          e.str("KAFKA_CLIENT_ID", "underwriter"),
			AuditTopic:        e.str("KAFKA_AUDIT_TOPIC", "underwriting.audit"),
			Partitions:        int32(e.int("KAFKA_AUDIT_PARTITIONS", 3)),
			ReplicationFactor: int16(e.int("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Tracing: TracingConfig{
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: e.str("OTEL_SERVICE_NAME", "underwriter"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
		Log: LogConfig{
			Level:  strings.ToLower(e.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(e.str("LOG_FORMAT", "json")),
		},
	}
	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the parsers cannot: enumerations, ranges and
// settings that only make sense together.
func (c Config) Validate() error {
	switch c.Engine.RulesSource {
	case RulesSourceEmbedded:
	case RulesSourceDir:
		if c.Engine.RulesDir == "" {
			return dErrors.New(dErrors.CodeConfig, "RULES_DIR is required when RULES_SOURCE=dir")
		}
	case RulesSourceRedis:
		if c.Redis.URL == "" {
			return dErrors.New(dErrors.CodeConfig, "REDIS_URL is required when RULES_SOURCE=redis")
		}
	default:
		return dErrors.Newf(dErrors.CodeConfig, "unknown RULES_SOURCE %q", c.Engine.RulesSource)
	}
	if c.Engine.DefaultRuleSet == "" {
		return dErrors.New(dErrors.CodeConfig, "DEFAULT_RULE_SET must not be empty")
	}
	if c.Engine.MaxConcurrency <= 0 {
		return dErrors.New(dErrors.CodeConfig, "ENGINE_MAX_CONCURRENCY must be positive")
	}
	if c.AI.Enabled() {
		if c.AI.Timeout <= 0 {
			return dErrors.New(dErrors.CodeConfig, "AI_TIMEOUT must be positive")
		}
		if c.AI.MaxRetries < 0 {
			return dErrors.New(dErrors.CodeConfig, "AI_MAX_RETRIES must not be negative")
		}
		if c.AI.MaxConcurrent <= 0 {
			return dErrors.New(dErrors.CodeConfig, "AI_MAX_CONCURRENT must be positive")
		}
	}
	if c.Kafka.Enabled() && c.Kafka.AuditTopic == "" {
		return dErrors.New(dErrors.CodeConfig, "KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return dErrors.New(dErrors.CodeConfig, "OTEL_TRACES_SAMPLE_RATIO must be between 0 and 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return dErrors.Newf(dErrors.CodeConfig, "unknown LOG_LEVEL %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return dErrors.Newf(dErrors.CodeConfig, "unknown LOG_FORMAT %q", c.Log.Format)
	}
	return nil
}

// env reads typed values and keeps the first parse error.
type env struct {
	err error
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = dErrors.Wrap(err, dErrors.CodeConfig, fmt.Sprintf("invalid %s=%q", key, value))
	}
}

func (e *env) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return n
}

func (e *env) float(key string, fallback float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return f
}

func (e *env) bool(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return d
}

func (e *env) list(key string) []string {
	return platformstrings.DedupeAndTrim(strings.Split(e.str(key, ""), ","))
}
