package fusion

import (
	"math"

	"underwriter/internal/decision/models"
	dErrors "underwriter/pkg/domain-errors"
)

// Config selects the fusion strategy and its tuning. It is fixed at service
// construction and shared read-only by every evaluation.
type Config struct {
	Strategy                models.Strategy
	RuleWeight              float64
	AIWeight                float64
	ConfidenceThreshold     float64
	HighConfidenceThreshold float64
	FallbackToRules         bool
}

// DefaultConfig returns the weighted-average configuration with fallback to
// rules enabled.
func DefaultConfig() Config {
	return Config{
		Strategy:                models.StrategyWeightedAverage,
		RuleWeight:              0.7,
		AIWeight:                0.3,
		ConfidenceThreshold:     0.7,
		HighConfidenceThreshold: 0.9,
		FallbackToRules:         true,
	}
}

const weightTolerance = 1e-9

// Validate rejects configurations fusion cannot honour.
func (c Config) Validate() error {
	if _, err := models.ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"rule weight", c.RuleWeight},
		{"ai weight", c.AIWeight},
		{"confidence threshold", c.ConfidenceThreshold},
		{"high confidence threshold", c.HighConfidenceThreshold},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return dErrors.Newf(dErrors.CodeConfig, "fusion %s %v outside [0, 1]", f.name, f.value)
		}
	}
	if math.Abs(c.RuleWeight+c.AIWeight-1) > weightTolerance {
		return dErrors.Newf(dErrors.CodeConfig, "fusion weights must sum to 1.0, got %v", c.RuleWeight+c.AIWeight)
	}
	return nil
}

// permille converts a unit fraction to parts per thousand.
func permille(v float64) int64 {
	return int64(math.Round(v * 1000))
}
