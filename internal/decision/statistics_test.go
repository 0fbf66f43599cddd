package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"underwriter/internal/decision/models"
)

func finalDecision(decision models.Decision, overall int, ruleID string) models.FinalDecision {
	return models.FinalDecision{
		Decision:    decision,
		RuleOutcome: models.RuleOutcome{Decision: decision, RuleID: ruleID},
		RiskScore:   models.RiskScore{Overall: overall, Band: models.BandFor(overall)},
		AIStatus:    models.AINotRequested,
	}
}

func TestStatisticsEmpty(t *testing.T) {
	sum := Statistics(nil)

	assert.Zero(t, sum.Total)
	assert.Len(t, sum.Decisions, 3)
	assert.Len(t, sum.RiskBands, 4)
	assert.NotNil(t, sum.TopTriggeredRules)
	assert.Empty(t, sum.TopTriggeredRules)
	assert.Zero(t, sum.AverageRiskScore)
}

func TestStatisticsAggregates(t *testing.T) {
	withAI := func(fd models.FinalDecision, ai models.Decision) models.FinalDecision {
		fd.AIStatus = models.AIAvailable
		fd.AI = &models.AIDecision{Decision: ai, Confidence: 0.8}
		return fd
	}
	fallback := finalDecision(models.DecisionAccept, 120, "AC001")
	fallback.AIStatus = models.AIUnavailable
	fallback.Fallback = true

	decisions := []models.FinalDecision{
		withAI(finalDecision(models.DecisionAccept, 100, "AC001"), models.DecisionAccept),
		withAI(finalDecision(models.DecisionDeny, 900, "HS002"), models.DecisionAccept),
		finalDecision(models.DecisionAdjudicate, 450, "AT001"),
		finalDecision(models.DecisionAdjudicate, 650, ""),
		fallback,
		finalDecision(models.DecisionDeny, 850, "HS002"),
	}

	sum := Statistics(decisions)

	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, DecisionCount{Count: 2, Percentage: 33.33}, sum.Decisions[models.DecisionAccept])
	assert.Equal(t, DecisionCount{Count: 2, Percentage: 33.33}, sum.Decisions[models.DecisionDeny])
	assert.Equal(t, DecisionCount{Count: 2, Percentage: 33.33}, sum.Decisions[models.DecisionAdjudicate])
	assert.InDelta(t, 511.67, sum.AverageRiskScore, 1e-9)
	assert.Equal(t, map[models.RiskBand]int{
		models.BandLow:      2,
		models.BandModerate: 1,
		models.BandHigh:     1,
		models.BandVeryHigh: 2,
	}, sum.RiskBands)
	require.Len(t, sum.TopTriggeredRules, 3)
	assert.Equal(t, []RuleCount{
		{RuleID: "AC001", Count: 2},
		{RuleID: "HS002", Count: 2},
		{RuleID: "AT001", Count: 1},
	}, sum.TopTriggeredRules)
	assert.InDelta(t, 33.33, sum.AICoverage, 1e-9)
	assert.InDelta(t, 50.0, sum.AIAgreement, 1e-9)
	assert.Equal(t, 1, sum.Fallbacks)
}

func TestStatisticsKeepsTopTenRules(t *testing.T) {
	var decisions []models.FinalDecision
	for i := 0; i < 12; i++ {
		id := "R" + string(rune('A'+i))
		for n := 0; n <= i; n++ {
			decisions = append(decisions, finalDecision(models.DecisionAdjudicate, 500, id))
		}
	}

	sum := Statistics(decisions)

	require.Len(t, sum.TopTriggeredRules, 10)
	assert.Equal(t, "RL", sum.TopTriggeredRules[0].RuleID)
	assert.Equal(t, 12, sum.TopTriggeredRules[0].Count)
	assert.Equal(t, "RC", sum.TopTriggeredRules[9].RuleID)
}
