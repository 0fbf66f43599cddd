package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionRecord is the stored form of a FinalDecision. The indexed columns
// are denormalised from Decision for querying.
type DecisionRecord struct {
	ID             uuid.UUID
	ApplicationID  string
	RuleSetName    string
	RuleSetVersion string
	Decision       Decision
	Strategy       Strategy
	Basis          Basis
	TriggeredRules []string
	OverallScore   int
	Band           RiskBand
	AIStatus       AIStatus
	Fallback       bool
	TraceRef       string
	Final          FinalDecision
	CreatedAt      time.Time
}

// NewDecisionRecord builds the record of fd stamped at createdAt.
func NewDecisionRecord(fd FinalDecision, createdAt time.Time) *DecisionRecord {
	var triggered []string
	if id := fd.TriggeredRuleID(); id != "" {
		triggered = []string{id}
	}
	return &DecisionRecord{
		ID:             uuid.New(),
		ApplicationID:  fd.ApplicationID,
		RuleSetName:    fd.RuleSetName,
		RuleSetVersion: fd.RuleSetVersion,
		Decision:       fd.Decision,
		Strategy:       fd.Strategy,
		Basis:          fd.Basis,
		TriggeredRules: triggered,
		OverallScore:   fd.RiskScore.Overall,
		Band:           fd.RiskScore.Band,
		AIStatus:       fd.AIStatus,
		Fallback:       fd.Fallback,
		TraceRef:       fd.TraceRef,
		Final:          fd,
		CreatedAt:      createdAt,
	}
}
