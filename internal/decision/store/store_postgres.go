package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
	"underwriter/pkg/platform/sentinel"
)

var _ ports.DecisionStore = (*PostgresStore)(nil)

// PostgresStore keeps one row per decision in decision_records. The full
// decision is stored as jsonb next to the indexed columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, application_id, rule_set_name, rule_set_version, decision, strategy,
		basis, triggered_rules, overall_score, band, ai_status, fallback, trace_ref, final, created_at`

func (s *PostgresStore) Save(ctx context.Context, record *models.DecisionRecord) error {
	final, err := json.Marshal(record.Final)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	triggered := record.TriggeredRules
	if triggered == nil {
		triggered = []string{}
	}
	query := `
		INSERT INTO decision_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.ApplicationID,
		record.RuleSetName,
		record.RuleSetVersion,
		string(record.Decision),
		string(record.Strategy),
		string(record.Basis),
		pq.Array(triggered),
		record.OverallScore,
		string(record.Band),
		string(record.AIStatus),
		record.Fallback,
		record.TraceRef,
		final,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, applicationID string) (*models.DecisionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM decision_records
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.DecisionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM decision_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query decision records: %w", err)
	}
	defer rows.Close()

	records := []*models.DecisionRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.DecisionRecord, error) {
	var r models.DecisionRecord
	var decision, strategy, basis, band, aiStatus string
	var final []byte
	err := row.Scan(
		&r.ID,
		&r.ApplicationID,
		&r.RuleSetName,
		&r.RuleSetVersion,
		&decision,
		&strategy,
		&basis,
		pq.Array(&r.TriggeredRules),
		&r.OverallScore,
		&band,
		&aiStatus,
		&r.Fallback,
		&r.TraceRef,
		&final,
		&r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan decision record: %w", err)
	}
	if err := json.Unmarshal(final, &r.Final); err != nil {
		return nil, fmt.Errorf("decode decision record: %w", err)
	}
	r.Decision = models.Decision(decision)
	r.Strategy = models.Strategy(strategy)
	r.Basis = models.Basis(basis)
	r.Band = models.RiskBand(band)
	r.AIStatus = models.AIStatus(aiStatus)
	return &r, nil
}
