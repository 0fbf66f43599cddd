// Package fusion combines the rule outcome with an optional AI second opinion
// into the final decision. Every strategy is a pure function of its inputs.
package fusion

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"underwriter/internal/decision/models"
	dErrors "underwriter/pkg/domain-errors"
)

// traceNamespace scopes deterministic trace references.
var traceNamespace = uuid.MustParse("6f1b2f9e-43a7-5c1e-9d2a-7c0f5b8e4a31")

// Input carries everything fusion reads. AI is nil when the second opinion
// was not requested or could not be obtained; AIErr explains the latter.
type Input struct {
	ApplicationID  string
	RuleSetName    string
	RuleSetVersion string
	RuleOutcome    models.RuleOutcome
	RiskScore      models.RiskScore
	AI             *models.AIDecision
	AIErr          error
	AIRequested    bool
}

// TraceRef derives the stable reference of one evaluation. Identical inputs
// produce identical references.
func TraceRef(applicationID, ruleSetName, ruleSetVersion string, strategy models.Strategy) string {
	name := applicationID + "\x00" + ruleSetName + "\x00" + ruleSetVersion + "\x00" + string(strategy)
	return uuid.NewSHA1(traceNamespace, []byte(name)).String()
}

// Fuse produces the final decision under cfg. It returns a fusion error when
// the AI was requested, is unavailable and fallback to rules is disabled, and
// an invariant violation when a malformed AI decision would drive the outcome.
func Fuse(in Input, cfg Config) (models.FinalDecision, error) {
	if err := cfg.Validate(); err != nil {
		return models.FinalDecision{}, err
	}
	if in.AI != nil {
		if err := checkAIDecision(in.AI); err != nil {
			// A malformed opinion is fatal only where it could decide the outcome.
			if cfg.Strategy != models.StrategyRulesOnly && !in.RuleOutcome.IsHardStop() {
				return models.FinalDecision{}, err
			}
			in.AI, in.AIErr = nil, dErrors.Wrap(err, dErrors.CodeAIUnavailable, "ai decision rejected")
		}
	}

	fd := models.FinalDecision{
		ApplicationID:   in.ApplicationID,
		RuleOutcome:     in.RuleOutcome,
		RiskScore:       in.RiskScore,
		AI:              in.AI.Clone(),
		AIStatus:        aiStatus(in),
		Strategy:        cfg.Strategy,
		AppliedStrategy: cfg.Strategy,
		RuleSetName:     in.RuleSetName,
		RuleSetVersion:  in.RuleSetVersion,
		TraceRef:        TraceRef(in.ApplicationID, in.RuleSetName, in.RuleSetVersion, cfg.Strategy),
	}
	if in.AI != nil {
		confidence := in.AI.Confidence
		fd.Confidence = &confidence
	}
	if fd.AIStatus == models.AIUnavailable {
		fd.AIError = unavailableReason(in.AIErr)
	}

	switch {
	case !in.AIRequested:
		useRules(&fd, models.BasisAINotRequested)
		fd.AppliedStrategy = models.StrategyRulesOnly
		return fd, nil
	case cfg.Strategy == models.StrategyRulesOnly:
		useRules(&fd, models.BasisRules)
		return fd, nil
	case in.RuleOutcome.IsHardStop():
		useRules(&fd, models.BasisHardStop)
		return fd, nil
	case in.AI == nil:
		if !cfg.FallbackToRules {
			return models.FinalDecision{}, dErrors.Wrap(aiError(in.AIErr), dErrors.CodeFusion,
				fmt.Sprintf("ai unavailable under %s and fallback to rules disabled", cfg.Strategy))
		}
		useRules(&fd, models.BasisFallbackToRules)
		fd.AppliedStrategy = models.StrategyRulesOnly
		fd.Fallback = true
		fd.Reason = "ai unavailable, rule decision applied: " + in.RuleOutcome.Reason
		return fd, nil
	}

	switch cfg.Strategy {
	case models.StrategyAIOnly:
		fuseAIOnly(&fd, in)
	case models.StrategyWeightedAverage:
		fuseWeightedAverage(&fd, in, cfg)
	case models.StrategyAIOverride:
		fuseAIOverride(&fd, in, cfg)
	case models.StrategyConsensusRequired:
		fuseConsensus(&fd, in)
	}
	return fd, nil
}

func aiStatus(in Input) models.AIStatus {
	switch {
	case !in.AIRequested:
		return models.AINotRequested
	case in.AI == nil:
		return models.AIUnavailable
	default:
		return models.AIAvailable
	}
}

func aiError(err error) error {
	if err == nil {
		return dErrors.New(dErrors.CodeAIUnavailable, "no ai decision")
	}
	return err
}

func unavailableReason(err error) string {
	return aiError(err).Error()
}

func checkAIDecision(ai *models.AIDecision) error {
	if !ai.Decision.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "ai decision %q is not a valid decision", ai.Decision)
	}
	if math.IsNaN(ai.Confidence) || ai.Confidence < 0 || ai.Confidence > 1 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "ai confidence %v outside [0, 1]", ai.Confidence)
	}
	return nil
}

func useRules(fd *models.FinalDecision, basis models.Basis) {
	fd.Decision = fd.RuleOutcome.Decision
	fd.Reason = fd.RuleOutcome.Reason
	fd.Basis = basis
}
