package fusion

import (
	"fmt"

	"underwriter/internal/decision/models"
)

// Risk levels implied by each decision, per mille.
const (
	levelAccept     int64 = 0
	levelAdjudicate int64 = 500
	levelDeny       int64 = 1000

	// Blends at or below acceptBlendMax accept; at or above denyBlendMin deny.
	acceptBlendMax int64 = 250
	denyBlendMin   int64 = 750
)

func riskLevel(d models.Decision) int64 {
	switch d {
	case models.DecisionAccept:
		return levelAccept
	case models.DecisionDeny:
		return levelDeny
	default:
		return levelAdjudicate
	}
}

// ============================================================================
// STRATEGY: ai_only - the AI decision is final, the rule outcome is audit only
// ============================================================================

func fuseAIOnly(fd *models.FinalDecision, in Input) {
	fd.Decision = in.AI.Decision
	fd.Reason = in.AI.Reasoning
	fd.Basis = models.BasisAI
}

// ============================================================================
// STRATEGY: weighted_average - blend implied risk levels
// ============================================================================

// fuseWeightedAverage blends the rule level with the confidence-weighted AI
// level. Below the confidence threshold the AI contributes nothing; a
// confidence equal to the threshold meets it. All arithmetic is per mille.
func fuseWeightedAverage(fd *models.FinalDecision, in Input, cfg Config) {
	confidence := permille(in.AI.Confidence)
	if confidence < permille(cfg.ConfidenceThreshold) {
		fd.Decision = in.RuleOutcome.Decision
		fd.Reason = fmt.Sprintf("ai confidence %.2f below threshold %.2f, rule decision kept: %s",
			in.AI.Confidence, cfg.ConfidenceThreshold, in.RuleOutcome.Reason)
		fd.Basis = models.BasisLowConfidence
		return
	}

	ruleLevel := riskLevel(in.RuleOutcome.Decision)
	aiLevel := riskLevel(in.AI.Decision)
	ruleWeight := permille(cfg.RuleWeight)
	aiWeight := 1000 - ruleWeight

	// Scaled by 10^6: aiEffective carries one factor of 1000 from confidence,
	// the blend a second from the weights.
	aiEffective := confidence*aiLevel + (1000-confidence)*ruleLevel
	blend := ruleWeight*ruleLevel*1000 + aiWeight*aiEffective

	switch {
	case blend <= acceptBlendMax*1_000_000:
		fd.Decision = models.DecisionAccept
	case blend >= denyBlendMin*1_000_000:
		fd.Decision = models.DecisionDeny
	default:
		fd.Decision = models.DecisionAdjudicate
	}
	fd.Reason = fmt.Sprintf("weighted blend %d (rules=%s weight %.2f, ai=%s weight %.2f, confidence %.2f)",
		(blend+500_000)/1_000_000, in.RuleOutcome.Decision, cfg.RuleWeight, in.AI.Decision, cfg.AIWeight, in.AI.Confidence)
	fd.Basis = models.BasisWeightedBlend
}

// ============================================================================
// STRATEGY: ai_override - a highly confident AI replaces the rule decision
// ============================================================================

// fuseAIOverride applies the AI decision only when its confidence strictly
// exceeds the high-confidence threshold. Hard stops never reach here.
func fuseAIOverride(fd *models.FinalDecision, in Input, cfg Config) {
	if permille(in.AI.Confidence) > permille(cfg.HighConfidenceThreshold) {
		fd.Decision = in.AI.Decision
		fd.Reason = "ai override: " + in.AI.Reasoning
		fd.Basis = models.BasisAIOverride
		return
	}
	fd.Decision = in.RuleOutcome.Decision
	fd.Reason = in.RuleOutcome.Reason
	fd.Basis = models.BasisRules
}

// ============================================================================
// STRATEGY: consensus_required - disagreement goes to manual review
// ============================================================================

func fuseConsensus(fd *models.FinalDecision, in Input) {
	if in.RuleOutcome.Decision == in.AI.Decision {
		fd.Decision = in.RuleOutcome.Decision
		fd.Reason = in.RuleOutcome.Reason
		fd.Basis = models.BasisConsensus
		return
	}
	fd.Decision = models.DecisionAdjudicate
	fd.Reason = fmt.Sprintf("no consensus: rules=%s, ai=%s", in.RuleOutcome.Decision, in.AI.Decision)
	fd.Basis = models.BasisNoConsensus
}
