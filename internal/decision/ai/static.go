package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"underwriter/internal/decision/models"
)

// Static answers every prompt with the same decision. It is meant for local
// development and for running the full pipeline without a model.
type Static struct {
	decision   models.Decision
	confidence float64
}

func NewStatic(cfg Config) (Provider, error) {
	if cfg.StaticDecision == "" {
		return &Static{decision: models.DecisionAdjudicate, confidence: 0.5}, nil
	}
	decision, err := models.ParseDecision(cfg.StaticDecision)
	if err != nil {
		return nil, NewProviderError(ErrorConfiguration, ProviderStatic, "invalid static decision", err)
	}
	if cfg.StaticConfidence < 0 || cfg.StaticConfidence > 1 {
		return nil, NewProviderError(ErrorConfiguration, ProviderStatic,
			fmt.Sprintf("static confidence %v outside [0, 1]", cfg.StaticConfidence), nil)
	}
	return &Static{decision: decision, confidence: cfg.StaticConfidence}, nil
}

func (p *Static) ID() string    { return ProviderStatic }
func (p *Static) Model() string { return "static" }

func (p *Static) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", transportError(ProviderStatic, err)
	}
	resp := responseDocument{
		Decision:  string(p.decision),
		Reasoning: fmt.Sprintf("static responder for application %s under rule set %s", prompt.ApplicationID, prompt.RuleSet),
		RiskAssessment: &assessmentDocument{
			OverallRiskScore: json.RawMessage("500"),
			ConfidenceScore:  json.RawMessage(strconv.FormatFloat(p.confidence, 'f', -1, 64)),
			KeyRiskFactors:   []string{},
		},
	}
	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", NewProviderError(ErrorInvalidResponse, ProviderStatic, "encode response", err)
	}
	return "```json\n" + string(body) + "\n```", nil
}
