package decision

import (
	"math"
	"sort"

	"underwriter/internal/decision/models"
)

const topTriggeredRules = 10

// DecisionCount is the number and share of one decision value.
type DecisionCount struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RuleCount is how often one rule produced the rule outcome.
type RuleCount struct {
	RuleID string `json:"rule_id"`
	Count  int    `json:"count"`
}

// Summary aggregates a set of final decisions. Percentages are in [0, 100]
// and rounded to two places.
type Summary struct {
	Total             int                               `json:"total"`
	Decisions         map[models.Decision]DecisionCount `json:"decisions"`
	AverageRiskScore  float64                           `json:"average_risk_score"`
	RiskBands         map[models.RiskBand]int           `json:"risk_bands"`
	TopTriggeredRules []RuleCount                       `json:"top_triggered_rules"`
	// AICoverage is the share of decisions with an available AI opinion.
	AICoverage float64 `json:"ai_coverage"`
	// AIAgreement is the share of those where the AI agreed with the rules.
	AIAgreement float64 `json:"ai_agreement"`
	Fallbacks   int     `json:"fallbacks"`
}

// Statistics summarises decisions, typically the result of one batch.
func Statistics(decisions []models.FinalDecision) Summary {
	sum := Summary{
		Total: len(decisions),
		Decisions: map[models.Decision]DecisionCount{
			models.DecisionAccept:     {},
			models.DecisionDeny:       {},
			models.DecisionAdjudicate: {},
		},
		RiskBands: map[models.RiskBand]int{
			models.BandLow:      0,
			models.BandModerate: 0,
			models.BandHigh:     0,
			models.BandVeryHigh: 0,
		},
		TopTriggeredRules: []RuleCount{},
	}
	if len(decisions) == 0 {
		return sum
	}

	var scoreTotal, withAI, agreed int
	triggered := map[string]int{}
	for _, fd := range decisions {
		dc := sum.Decisions[fd.Decision]
		dc.Count++
		sum.Decisions[fd.Decision] = dc
		sum.RiskBands[fd.RiskScore.Band]++
		scoreTotal += fd.RiskScore.Overall
		if id := fd.TriggeredRuleID(); id != "" {
			triggered[id]++
		}
		if fd.AIStatus == models.AIAvailable && fd.AI != nil {
			withAI++
			if fd.AI.Decision == fd.RuleOutcome.Decision {
				agreed++
			}
		}
		if fd.Fallback {
			sum.Fallbacks++
		}
	}

	for d, dc := range sum.Decisions {
		dc.Percentage = percent(dc.Count, sum.Total)
		sum.Decisions[d] = dc
	}
	sum.AverageRiskScore = round2(float64(scoreTotal) / float64(sum.Total))
	sum.AICoverage = percent(withAI, sum.Total)
	sum.AIAgreement = percent(agreed, withAI)

	for id, n := range triggered {
		sum.TopTriggeredRules = append(sum.TopTriggeredRules, RuleCount{RuleID: id, Count: n})
	}
	sort.Slice(sum.TopTriggeredRules, func(i, j int) bool {
		a, b := sum.TopTriggeredRules[i], sum.TopTriggeredRules[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.RuleID < b.RuleID
	})
	if len(sum.TopTriggeredRules) > topTriggeredRules {
		sum.TopTriggeredRules = sum.TopTriggeredRules[:topTriggeredRules]
	}
	return sum
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(100 * float64(n) / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
