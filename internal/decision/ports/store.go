package ports

//go:generate mockgen -source=store.go -destination=mocks/store-mocks.go -package=mocks DecisionStore

import (
	"context"

	"underwriter/internal/decision/models"
)

// DecisionStore persists final decisions for later review. Saving never
// alters the decision it records.
type DecisionStore interface {
	Save(ctx context.Context, record *models.DecisionRecord) error
	// Get returns the most recent record for applicationID.
	Get(ctx context.Context, applicationID string) (*models.DecisionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.DecisionRecord, error)
}
