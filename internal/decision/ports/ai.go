package ports

//go:generate mockgen -source=ai.go -destination=mocks/ai-mocks.go -package=mocks AIPort

import (
	"context"

	"underwriter/internal/decision/models"
)

// RuleSummary describes one rule to the AI provider.
type RuleSummary struct {
	ID     string
	Name   string
	Reason string
}

// RuleSetContext is the view of a rule set handed to the AI second opinion.
type RuleSetContext struct {
	Name        string
	Version     string
	Description string
	HardStops   []RuleSummary
	Referrals   []RuleSummary
	Acceptance  []RuleSummary
}

// AIPort defines the interface for obtaining an AI second opinion.
// Errors are typed by the adapter; the engine treats any error as the AI
// being unavailable.
type AIPort interface {
	Evaluate(ctx context.Context, app *models.Application, rc RuleSetContext) (*models.AIDecision, error)
}
