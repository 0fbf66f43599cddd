package ports

//go:generate mockgen -source=audit.go -destination=mocks/audit-mocks.go -package=mocks AuditPort

import (
	"context"

	"underwriter/pkg/platform/audit"
)

// AuditPort records underwriting decisions and rule set reloads. The
// async audit publisher satisfies it.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}
