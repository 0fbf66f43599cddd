// Package scoring computes the composite risk score. All arithmetic is
// integer fixed point; weights are converted to parts per million.
package scoring

import (
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
	dErrors "underwriter/pkg/domain-errors"
)

const (
	// SubScoreMax bounds every sub-score.
	SubScoreMax = 250
	// OverallMax bounds the composite score.
	OverallMax = 1000
)

func toFixed(w ruleset.Weights) (ruleset.FixedWeights, error) {
	fw := w.Fixed()
	if fw.Driver < 0 || fw.Vehicle < 0 || fw.History < 0 || fw.Credit < 0 {
		return ruleset.FixedWeights{}, dErrors.New(dErrors.CodeInvariantViolation, "negative scoring weight")
	}
	if sum := fw.Sum(); sum != ruleset.PartsPerMillion {
		return ruleset.FixedWeights{}, dErrors.Newf(dErrors.CodeInvariantViolation, "scoring weights drifted: sum is %d ppm", sum)
	}
	return fw, nil
}

// Score computes the risk score of app. It is total over valid applications
// and returns an invariant violation, never a clamped value, when the weights
// or the result fall outside their contract.
func Score(app *models.Application, w ruleset.Weights, params ruleset.Parameters) (models.RiskScore, error) {
	fw, err := toFixed(w)
	if err != nil {
		return models.RiskScore{}, err
	}

	rs := models.RiskScore{
		Driver:  driverRisk(app),
		Vehicle: vehicleRisk(app),
		History: historyRisk(app, params),
	}
	if app.CreditScore != nil {
		rs.Credit = creditRisk(*app.CreditScore)
		rs.CreditScored = true
	}

	num := fw.Driver*int64(rs.Driver) + fw.Vehicle*int64(rs.Vehicle) + fw.History*int64(rs.History)
	den := fw.Driver + fw.Vehicle + fw.History
	if rs.CreditScored {
		num += fw.Credit * int64(rs.Credit)
		den += fw.Credit
	}

	// Sub-scores span 0..250 and the composite spans 0..1000.
	scale := int64(OverallMax / SubScoreMax)
	if den > 0 {
		rs.Overall = int(roundHalfUp(num*scale, den))
	}

	if rs.Overall < 0 || rs.Overall > OverallMax {
		return models.RiskScore{}, dErrors.Newf(dErrors.CodeInvariantViolation, "overall risk score %d outside [0, %d]", rs.Overall, OverallMax)
	}
	rs.Band = models.BandFor(rs.Overall)
	return rs, nil
}

// roundHalfUp divides non-negative num by positive den, rounding halves up.
func roundHalfUp(num, den int64) int64 {
	return (2*num + den) / (2 * den)
}
