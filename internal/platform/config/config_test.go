package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "underwriter/pkg/domain-errors"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "standard", cfg.Engine.DefaultRuleSet)
	assert.Equal(t, RulesSourceEmbedded, cfg.Engine.RulesSource)
	assert.Equal(t, "weighted_average", cfg.Engine.Strategy)
	assert.InDelta(t, 0.7, cfg.Engine.RuleWeight, 1e-9)
	assert.True(t, cfg.Engine.FallbackToRules)
	assert.False(t, cfg.AI.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("AI_TIMEOUT", "12s")
	t.Setenv("AI_MAX_RETRIES", "1")
	t.Setenv("FUSION_STRATEGY", "consensus_required")
	t.Setenv("FUSION_FALLBACK_TO_RULES", "false")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("RULES_SOURCE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 12*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, "consensus_required", cfg.Engine.Strategy)
	assert.False(t, cfg.Engine.FallbackToRules)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFromEnvRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":         {"AI_TIMEOUT": "soon"},
		"bad bool":             {"FUSION_FALLBACK_TO_RULES": "maybe"},
		"bad float":            {"FUSION_AI_WEIGHT": "thirty"},
		"unknown rules source": {"RULES_SOURCE": "s3"},
		"dir without path":     {"RULES_SOURCE": "dir"},
		"redis without url":    {"RULES_SOURCE": "redis"},
		"zero concurrency":     {"ENGINE_MAX_CONCURRENCY": "0"},
		"negative retries":     {"AI_PROVIDER": "static", "AI_MAX_RETRIES": "-1"},
		"sample ratio":         {"OTEL_TRACES_SAMPLE_RATIO": "1.5"},
		"unknown log level":    {"LOG_LEVEL": "verbose"},
		"unknown log format":   {"LOG_FORMAT": "xml"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
		})
	}
}
