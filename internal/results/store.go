// internal/results/store.go
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"
)

const DefaultTable = "orchestration_results"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store keeps OrchestrationResults as JSON documents keyed by request id.
type Store struct {
	db    *sql.DB
	table string
}

func NewStore(db *sql.DB, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid results table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

// Schema returns the statements that create the result table.
func (s *Store) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			request_id UUID PRIMARY KEY,
			intent TEXT NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_intent ON %s (intent)`, s.table, s.table),
	}
}

// Save upserts result under its request id.
func (s *Store) Save(ctx context.Context, result *models.OrchestrationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return apperrors.NewResultPersistFailedError(result.RequestID, err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (request_id, intent, degraded, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE
		SET intent = EXCLUDED.intent, degraded = EXCLUDED.degraded, result = EXCLUDED.result`, s.table),
		result.RequestID,
		string(result.Intent),
		result.Degraded,
		payload,
		result.Timestamp,
	)
	if err != nil {
		return apperrors.NewResultPersistFailedError(result.RequestID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, requestID string) (*models.OrchestrationResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT result FROM %s WHERE request_id = $1`, s.table), requestID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewResultNotFoundError(requestID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	var result models.OrchestrationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, apperrors.NewResultPersistFailedError(requestID, fmt.Errorf("decode stored result: %w", err))
	}
	return &result, nil
}
