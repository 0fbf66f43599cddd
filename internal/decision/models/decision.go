package models

import (
	"strings"

	dErrors "underwriter/pkg/domain-errors"
)

// Decision is the underwriting outcome. Adjudicate means manual review.
type Decision string

const (
	DecisionAccept     Decision = "accept"
	DecisionDeny       Decision = "deny"
	DecisionAdjudicate Decision = "adjudicate"
)

func (d Decision) IsValid() bool {
	return d == DecisionAccept || d == DecisionDeny || d == DecisionAdjudicate
}

// ParseDecision accepts the canonical values plus the aliases model providers
// tend to produce (approve, decline, review...).
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "approve", "approved", "accepted":
		return DecisionAccept, nil
	case "deny", "decline", "declined", "reject", "rejected", "denied":
		return DecisionDeny, nil
	case "adjudicate", "review", "refer", "referred", "manual_review":
		return DecisionAdjudicate, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown decision %q", s)
}

// RuleCategory is the rule bucket that produced a rule outcome.
type RuleCategory string

const (
	CategoryHardStop   RuleCategory = "hard_stop"
	CategoryReferral   RuleCategory = "referral"
	CategoryAcceptance RuleCategory = "acceptance"
	// CategoryDefault marks the no-match outcome.
	CategoryDefault RuleCategory = "default"
)

// RuleOutcome is the result of rule evaluation.
type RuleOutcome struct {
	Decision Decision     `json:"decision"`
	Category RuleCategory `json:"category"`
	RuleID   string       `json:"rule_id,omitempty"`
	RuleName string       `json:"rule_name,omitempty"`
	Reason   string       `json:"reason"`
}

// IsHardStop reports whether the outcome came from a hard-stop rule.
func (o RuleOutcome) IsHardStop() bool {
	return o.Category == CategoryHardStop && o.Decision == DecisionDeny
}

// RiskBand buckets the overall risk score.
type RiskBand string

const (
	BandLow      RiskBand = "low"
	BandModerate RiskBand = "moderate"
	BandHigh     RiskBand = "high"
	BandVeryHigh RiskBand = "very_high"
)

// Band cut points, inclusive upper bounds.
const (
	LowRiskMax      = 300
	ModerateRiskMax = 600
	HighRiskMax     = 800
)

// BandFor maps an overall score to its band.
func BandFor(overall int) RiskBand {
	switch {
	case overall <= LowRiskMax:
		return BandLow
	case overall <= ModerateRiskMax:
		return BandModerate
	case overall <= HighRiskMax:
		return BandHigh
	default:
		return BandVeryHigh
	}
}

// RiskScore is the composite risk assessment for one application.
type RiskScore struct {
	Driver       int      `json:"driver"`
	Vehicle      int      `json:"vehicle"`
	History      int      `json:"history"`
	Credit       int      `json:"credit"`
	CreditScored bool     `json:"credit_scored"`
	Overall      int      `json:"overall"`
	Band         RiskBand `json:"band"`
}

// AIDecision is the second opinion returned by an AI provider.
type AIDecision struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	RiskScore  *int     `json:"risk_score,omitempty"`
	Factors    []string `json:"factors,omitempty"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model,omitempty"`
	TraceID    string   `json:"trace_id,omitempty"`
}

// Clone returns a deep copy so a FinalDecision never shares slices with the
// provider response.
func (a *AIDecision) Clone() *AIDecision {
	if a == nil {
		return nil
	}
	out := *a
	if a.RiskScore != nil {
		score := *a.RiskScore
		out.RiskScore = &score
	}
	if a.Factors != nil {
		out.Factors = append([]string(nil), a.Factors...)
	}
	return &out
}

// AIStatus records whether the AI second opinion informed the decision.
type AIStatus string

const (
	AINotRequested AIStatus = "not_requested"
	AIAvailable    AIStatus = "available"
	AIUnavailable  AIStatus = "unavailable"
)

// Strategy is the fusion policy combining rule and AI decisions.
type Strategy string

const (
	StrategyRulesOnly         Strategy = "rules_only"
	StrategyAIOnly            Strategy = "ai_only"
	StrategyWeightedAverage   Strategy = "weighted_average"
	StrategyAIOverride        Strategy = "ai_override"
	StrategyConsensusRequired Strategy = "consensus_required"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyRulesOnly, StrategyAIOnly, StrategyWeightedAverage, StrategyAIOverride, StrategyConsensusRequired:
		return st, nil
	}
	return "", dErrors.Newf(dErrors.CodeConfig, "unknown fusion strategy %q", s)
}

// Basis explains which input the final decision rests on.
type Basis string

const (
	BasisRules           Basis = "rules"
	BasisHardStop        Basis = "hard_stop_absolute"
	BasisAI              Basis = "ai"
	BasisWeightedBlend   Basis = "weighted_blend"
	BasisLowConfidence   Basis = "ai_below_confidence_threshold"
	BasisAIOverride      Basis = "ai_override"
	BasisConsensus       Basis = "consensus"
	BasisNoConsensus     Basis = "no_consensus"
	BasisFallbackToRules Basis = "ai_unavailable_fallback"
	BasisAINotRequested  Basis = "ai_not_requested"
)

// FinalDecision is the only artifact returned to callers. It is built once by
// fusion and handed out by value.
type FinalDecision struct {
	ApplicationID   string      `json:"application_id"`
	Decision        Decision    `json:"decision"`
	RuleOutcome     RuleOutcome `json:"rule_outcome"`
	RiskScore       RiskScore   `json:"risk_score"`
	AI              *AIDecision `json:"ai,omitempty"`
	AIStatus        AIStatus    `json:"ai_status"`
	AIError         string      `json:"ai_error,omitempty"`
	Strategy        Strategy    `json:"strategy"`
	AppliedStrategy Strategy    `json:"applied_strategy"`
	Fallback        bool        `json:"fallback"`
	Basis           Basis       `json:"basis"`
	Reason          string      `json:"reason"`
	Confidence      *float64    `json:"confidence,omitempty"`
	RuleSetName     string      `json:"rule_set_name"`
	RuleSetVersion  string      `json:"rule_set_version"`
	TraceRef        string      `json:"trace_ref"`
}

// TriggeredRuleID returns the id of the rule that produced the rule outcome,
// empty for the default outcome.
func (f FinalDecision) TriggeredRuleID() string {
	return f.RuleOutcome.RuleID
}
