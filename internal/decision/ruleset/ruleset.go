// Package ruleset holds the immutable, versioned rule configuration the engine
// evaluates against, the loader that validates it and the registry that swaps
// snapshots on reload.
package ruleset

import (
	"math"
	"time"

	"underwriter/internal/decision/models"
)

// Action is what a matching rule does.
type Action string

const (
	ActionDeny   Action = "deny"
	ActionRefer  Action = "refer"
	ActionAccept Action = "accept"
)

// Decision maps the action to the decision it produces.
func (a Action) Decision() models.Decision {
	switch a {
	case ActionDeny:
		return models.DecisionDeny
	case ActionAccept:
		return models.DecisionAccept
	default:
		return models.DecisionAdjudicate
	}
}

// Rule is a predicate over application facts plus the action taken on match.
type Rule struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Action      Action    `yaml:"action"`
	Reason      string    `yaml:"reason"`
	When        Predicate `yaml:"when"`
}

// Weights are the sub-score weights. They are non-negative and sum to 1.0.
type Weights struct {
	Driver  float64 `yaml:"driver" json:"driver"`
	Vehicle float64 `yaml:"vehicle" json:"vehicle"`
	History float64 `yaml:"history" json:"history"`
	Credit  float64 `yaml:"credit" json:"credit"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Driver + w.Vehicle + w.History + w.Credit
}

// PartsPerMillion is the fixed-point scale scoring uses for weights.
const PartsPerMillion = 1_000_000

// FixedWeights are Weights rounded to parts per million.
type FixedWeights struct {
	Driver, Vehicle, History, Credit int64
}

// Sum returns the total in parts per million.
func (f FixedWeights) Sum() int64 {
	return f.Driver + f.Vehicle + f.History + f.Credit
}

// Fixed rounds w to parts per million. Loading and scoring both go through
// it, so a rule set that loads always scores.
func (w Weights) Fixed() FixedWeights {
	return FixedWeights{
		Driver:  int64(math.Round(w.Driver * PartsPerMillion)),
		Vehicle: int64(math.Round(w.Vehicle * PartsPerMillion)),
		History: int64(math.Round(w.History * PartsPerMillion)),
		Credit:  int64(math.Round(w.Credit * PartsPerMillion)),
	}
}

// Parameters tune fact derivation and scoring.
type Parameters struct {
	LookbackYears     int                                      `yaml:"lookback_years"`
	ViolationSeverity map[models.ViolationType]models.Severity `yaml:"violation_severity,omitempty"`
}

// SeverityOf resolves a violation's severity: rule set override first, then
// the severity recorded on the violation, then the type default.
func (p Parameters) SeverityOf(v models.Violation) models.Severity {
	if sev, ok := p.ViolationSeverity[v.Type]; ok {
		return sev
	}
	if v.Severity != "" {
		return v.Severity
	}
	return v.Type.DefaultSeverity()
}

// DefaultLookbackYears applies when a rule set does not set one.
const DefaultLookbackYears = 5

// RuleSet is a validated, read-only rule configuration. Values are shared by
// concurrent evaluations and must never be modified after Parse returns.
type RuleSet struct {
	Name        string
	Version     string
	Description string
	LastUpdated time.Time
	HardStops   []Rule
	Referrals   []Rule
	Acceptance  []Rule
	Weights     Weights
	Parameters  Parameters
}

// Info summarises a rule set for listings.
type Info struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	Description   string    `json:"description"`
	LastUpdated   time.Time `json:"last_updated"`
	HardStops     int       `json:"hard_stops"`
	Referrals     int       `json:"referral_triggers"`
	Acceptance    int       `json:"acceptance_rules"`
	Weights       Weights   `json:"weights"`
	LookbackYears int       `json:"lookback_years"`
}

// Info returns the listing summary of rs.
func (rs *RuleSet) Info() Info {
	return Info{
		Name:          rs.Name,
		Version:       rs.Version,
		Description:   rs.Description,
		LastUpdated:   rs.LastUpdated,
		HardStops:     len(rs.HardStops),
		Referrals:     len(rs.Referrals),
		Acceptance:    len(rs.Acceptance),
		Weights:       rs.Weights,
		LookbackYears: rs.Parameters.LookbackYears,
	}
}
