package handler

import (
	"time"

	"underwriter/internal/decision"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
)

// BatchResponse is the HTTP response for POST /v1/underwriting/batch.
type BatchResponse struct {
	Decisions  []models.FinalDecision `json:"decisions"`
	Statistics decision.Summary       `json:"statistics"`
}

// CompareResponse is the HTTP response for POST /v1/underwriting/compare.
type CompareResponse struct {
	ApplicationID string                          `json:"application_id"`
	Results       map[string]models.FinalDecision `json:"results"`
	Agreement     bool                            `json:"agreement"`
}

// RuleSetsResponse lists loaded rule sets.
type RuleSetsResponse struct {
	Default  string         `json:"default"`
	RuleSets []ruleset.Info `json:"rule_sets"`
}

// DecisionRecordResponse is a stored decision.
type DecisionRecordResponse struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Decision  models.FinalDecision `json:"decision"`
}

type DecisionListResponse struct {
	Decisions []DecisionRecordResponse `json:"decisions"`
	Count     int                      `json:"count"`
}

func fromRecord(rec *models.DecisionRecord) DecisionRecordResponse {
	return DecisionRecordResponse{
		ID:        rec.ID.String(),
		CreatedAt: rec.CreatedAt,
		Decision:  rec.Final,
	}
}

func fromRecords(recs []*models.DecisionRecord) *DecisionListResponse {
	out := make([]DecisionRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return &DecisionListResponse{Decisions: out, Count: len(out)}
}

func fromComparison(applicationID string, results map[string]models.FinalDecision) *CompareResponse {
	agreement := true
	var first models.Decision
	for _, fd := range results {
		if first == "" {
			first = fd.Decision
			continue
		}
		if fd.Decision != first {
			agreement = false
		}
	}
	return &CompareResponse{
		ApplicationID: applicationID,
		Results:       results,
		Agreement:     agreement,
	}
}
