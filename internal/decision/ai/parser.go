package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"underwriter/internal/decision/models"
)

// responseDocument is the JSON shape providers are asked to produce.
type responseDocument struct {
	Decision       string              `json:"decision"`
	Reasoning      string              `json:"reasoning"`
	Confidence     json.RawMessage     `json:"confidence,omitempty"`
	RiskAssessment *assessmentDocument `json:"risk_assessment"`
}

type assessmentDocument struct {
	OverallRiskScore json.RawMessage `json:"overall_risk_score,omitempty"`
	RiskLevel        string          `json:"risk_level,omitempty"`
	ConfidenceScore  json.RawMessage `json:"confidence_score,omitempty"`
	KeyRiskFactors   []string        `json:"key_risk_factors"`
}

const maxAIRiskScore = 1000

var fencePattern = regexp.MustCompile("(?is)```(?:json)?[ \t]*\r?\n(.*?)```")

// extractJSON finds the JSON object in a completion: a ```json fence, a bare
// fence, then the outermost braces.
func extractJSON(raw string) ([]byte, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		candidate := []byte(strings.TrimSpace(m[1]))
		if json.Valid(candidate) {
			return candidate, true
		}
	}
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate := []byte(raw[start : end+1])
		if json.Valid(candidate) {
			return candidate, true
		}
	}
	return nil, false
}

// Parse turns a raw completion into an AIDecision. Anything that is not a
// complete decision is an invalid_response error; confidence outside [0, 1]
// is rejected and the risk score is clamped to [0, 1000].
func Parse(providerID, model, raw string) (*models.AIDecision, error) {
	invalid := func(msg string, err error) error {
		return NewProviderError(ErrorInvalidResponse, providerID, msg, err)
	}

	data, ok := extractJSON(raw)
	if !ok {
		return nil, invalid("no json object in completion", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var doc responseDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("malformed decision document", err)
	}

	switch {
	case strings.TrimSpace(doc.Decision) == "":
		return nil, invalid("missing required field decision", nil)
	case strings.TrimSpace(doc.Reasoning) == "":
		return nil, invalid("missing required field reasoning", nil)
	case doc.RiskAssessment == nil:
		return nil, invalid("missing required field risk_assessment", nil)
	}

	decision, err := models.ParseDecision(doc.Decision)
	if err != nil {
		return nil, invalid("unrecognised decision", err)
	}

	confidence, ok, err := number(doc.RiskAssessment.ConfidenceScore)
	if err == nil && !ok {
		confidence, ok, err = number(doc.Confidence)
	}
	switch {
	case err != nil:
		return nil, invalid("confidence is not a number", err)
	case !ok:
		return nil, invalid("missing confidence", nil)
	case math.IsNaN(confidence) || confidence < 0 || confidence > 1:
		return nil, invalid(fmt.Sprintf("confidence %v outside [0, 1]", confidence), nil)
	}

	out := &models.AIDecision{
		Decision:   decision,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(doc.Reasoning),
		Provider:   providerID,
		Model:      model,
	}

	score, ok, err := number(doc.RiskAssessment.OverallRiskScore)
	if err != nil {
		return nil, invalid("overall_risk_score is not a number", err)
	}
	if ok {
		clamped := int(math.Round(math.Max(0, math.Min(maxAIRiskScore, score))))
		out.RiskScore = &clamped
	}

	for _, f := range doc.RiskAssessment.KeyRiskFactors {
		if f = strings.TrimSpace(f); f != "" {
			out.Factors = append(out.Factors, f)
		}
	}
	return out, nil
}

// number reads a JSON number or numeric string. ok is false when the field
// is absent or null.
func number(raw json.RawMessage) (v float64, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v, err == nil, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}
