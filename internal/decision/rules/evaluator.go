// Package rules applies a rule set to an application. Evaluation is a pure
// function of its inputs.
package rules

import (
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
)

// DefaultReason explains the outcome when no rule matched.
const DefaultReason = "no rule matched; referred for manual review"

// Evaluate applies rs to app in fixed precedence:
//  1. Hard stops: first match denies and stops evaluation.
//  2. Referral triggers: first match refers and stops evaluation.
//  3. Acceptance rules: first match accepts.
//  4. Nothing matched: adjudicate.
func Evaluate(app *models.Application, rs *ruleset.RuleSet) models.RuleOutcome {
	f := DeriveFacts(app, rs.Parameters)

	// Rule 1: hard stops are absolute
	if r, ok := firstMatch(rs.HardStops, f); ok {
		return outcome(r, models.CategoryHardStop, models.DecisionDeny)
	}

	// Rule 2: referral precedes acceptance
	if r, ok := firstMatch(rs.Referrals, f); ok {
		return outcome(r, models.CategoryReferral, models.DecisionAdjudicate)
	}

	// Rule 3: acceptance
	if r, ok := firstMatch(rs.Acceptance, f); ok {
		return outcome(r, models.CategoryAcceptance, models.DecisionAccept)
	}

	// Rule 4: never accept by default
	return models.RuleOutcome{
		Decision: models.DecisionAdjudicate,
		Category: models.CategoryDefault,
		Reason:   DefaultReason,
	}
}

// Matches lists every matching rule id per category. It does not affect the
// outcome; callers use it to explain a decision.
type Matches struct {
	HardStops  []string `json:"hard_stops"`
	Referrals  []string `json:"referral_triggers"`
	Acceptance []string `json:"acceptance_rules"`
}

// MatchAll evaluates every rule of rs against app.
func MatchAll(app *models.Application, rs *ruleset.RuleSet) Matches {
	f := DeriveFacts(app, rs.Parameters)
	return Matches{
		HardStops:  allMatches(rs.HardStops, f),
		Referrals:  allMatches(rs.Referrals, f),
		Acceptance: allMatches(rs.Acceptance, f),
	}
}

func firstMatch(rules []ruleset.Rule, f *Facts) (ruleset.Rule, bool) {
	for _, r := range rules {
		if Match(r.When, f) {
			return r, true
		}
	}
	return ruleset.Rule{}, false
}

func allMatches(rules []ruleset.Rule, f *Facts) []string {
	ids := []string{}
	for _, r := range rules {
		if Match(r.When, f) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func outcome(r ruleset.Rule, category models.RuleCategory, decision models.Decision) models.RuleOutcome {
	return models.RuleOutcome{
		Decision: decision,
		Category: category,
		RuleID:   r.ID,
		RuleName: r.Name,
		Reason:   r.Reason,
	}
}
