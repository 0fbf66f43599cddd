package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "underwriter/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table. Appends are
// idempotent on the event id so a replayed event is stored once.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event. The category is always derived from the
// action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, subject,
			rule_set, rule_set_version, decision, basis, reason,
			request_id, trace_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		string(audit.AuditEvent(event.Action).Category()),
		event.Timestamp,
		event.Action,
		event.Subject,
		event.RuleSet,
		event.RuleSetVersion,
		event.Decision,
		event.Basis,
		event.Reason,
		event.RequestID,
		event.TraceRef,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for an application or rule set, newest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, subject,
			   rule_set, rule_set_version, decision, basis, reason,
			   request_id, trace_ref
		FROM audit_events
		WHERE subject = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, subject,
			   rule_set, rule_set_version, decision, basis, reason,
			   request_id, trace_ref
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}
	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			category string
		)
		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&event.Action,
			&event.Subject,
			&event.RuleSet,
			&event.RuleSetVersion,
			&event.Decision,
			&event.Basis,
			&event.Reason,
			&event.RequestID,
			&event.TraceRef,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID.String()
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
