package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: every
	// underwriting decision must be reconstructable from its audit trail.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the application id for decision events and the rule set
	// name for rule set events.
	Subject        string
	RuleSet        string
	RuleSetVersion string
	Decision       string
	Basis          string
	Reason         string
	RequestID      string
	TraceRef       string
}

type AuditEvent string

const (
	// Decision events
	EventDecisionMade AuditEvent = "decision_made"
	EventAIFallback   AuditEvent = "ai_fallback"

	// Rule set events
	EventRuleSetsReloaded    AuditEvent = "rule_sets_reloaded"
	EventRuleSetReloadFailed AuditEvent = "rule_set_reload_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionMade:        CategoryCompliance,
	EventRuleSetsReloaded:    CategoryCompliance,
	EventAIFallback:          CategoryOperations,
	EventRuleSetReloadFailed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
