// internal/observations/store.go
package observations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrInvalidObservation = errors.New("OBSERVATION_INVALID")

// Schema creates the observation table and its lookup indexes.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_observations (
		id UUID PRIMARY KEY,
		company TEXT NOT NULL,
		area TEXT NOT NULL,
		finding TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		evidence TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority_label TEXT NOT NULL,
		corrective_actions JSONB NOT NULL DEFAULT '[]',
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_observations_company ON audit_observations (LOWER(company))`,
	`CREATE INDEX IF NOT EXISTS idx_audit_observations_status ON audit_observations (status)`,
}

const selectColumns = `SELECT id, company, area, finding, risk_level, evidence, reference, status,
	priority_label, corrective_actions, due_date, created_at, updated_at FROM audit_observations`

// NewObservation is the caller-supplied part of an observation.
type NewObservation struct {
	Company   string     `json:"company"`
	Area      string     `json:"area"`
	Finding   string     `json:"finding"`
	RiskLevel string     `json:"riskLevel"`
	Evidence  string     `json:"evidence"`
	Reference string     `json:"reference,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

// Validate normalizes the risk level and rejects missing required fields.
func (n *NewObservation) Validate() (models.RiskLevel, error) {
	var missing []string
	if strings.TrimSpace(n.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(n.Area) == "" {
		missing = append(missing, "area")
	}
	if strings.TrimSpace(n.Finding) == "" {
		missing = append(missing, "finding")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidObservation, strings.Join(missing, ", "))
	}

	risk, ok := models.ParseRiskLevel(n.RiskLevel)
	if !ok {
		return "", fmt.Errorf("%w: unknown risk level %q", ErrInvalidObservation, n.RiskLevel)
	}
	return risk, nil
}

// Store persists audit observations in Postgres.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Create(ctx context.Context, in NewObservation) (*models.Observation, error) {
	risk, err := in.Validate()
	if err != nil {
		return nil, apperrors.NewObservationInvalidError(err.Error())
	}

	now := s.now().UTC()
	obs := &models.Observation{
		ID:                uuid.New().String(),
		Company:           strings.TrimSpace(in.Company),
		Area:              strings.TrimSpace(in.Area),
		Finding:           strings.TrimSpace(in.Finding),
		RiskLevel:         risk,
		Evidence:          in.Evidence,
		Reference:         in.Reference,
		Status:            models.ObservationOpen,
		PriorityLabel:     risk.PriorityLabel(),
		CorrectiveActions: []models.CorrectiveAction{},
		DueDate:           in.DueDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_observations (
			id, company, area, finding, risk_level, evidence, reference, status,
			priority_label, corrective_actions, due_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		obs.ID,
		obs.Company,
		obs.Area,
		obs.Finding,
		string(obs.RiskLevel),
		obs.Evidence,
		obs.Reference,
		string(obs.Status),
		obs.PriorityLabel,
		[]byte("[]"),
		nullTime(obs.DueDate),
		now,
	)
	if err != nil {
		return nil, apperrors.NewObservationStoreFailedError("create", err)
	}
	return obs, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return nil, apperrors.NewObservationStoreFailedError("get", err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return nil, apperrors.NewObservationStoreFailedError("get", err)
	}
	if len(list) == 0 {
		return nil, apperrors.NewObservationNotFoundError(id)
	}
	return list[0], nil
}

// ListByCompany matches company case-insensitively.
func (s *Store) ListByCompany(ctx context.Context, company string) ([]*models.Observation, error) {
	return s.list(ctx, "list_by_company",
		selectColumns+` WHERE LOWER(company) = LOWER($1) ORDER BY created_at`, company)
}

func (s *Store) ListByRisk(ctx context.Context, levels ...models.RiskLevel) ([]*models.Observation, error) {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return s.list(ctx, "list_by_risk",
		selectColumns+` WHERE risk_level = ANY($1) ORDER BY created_at`, pq.Array(names))
}

// ListByArea matches observations whose area contains area, ignoring case.
func (s *Store) ListByArea(ctx context.Context, area string) ([]*models.Observation, error) {
	return s.list(ctx, "list_by_area",
		selectColumns+` WHERE area ILIKE '%' || $1 || '%' ORDER BY created_at`, area)
}

func (s *Store) ListOpen(ctx context.Context) ([]*models.Observation, error) {
	return s.list(ctx, "list_open",
		selectColumns+` WHERE status = $1 ORDER BY created_at`, string(models.ObservationOpen))
}

// ListOverdue returns unresolved observations whose due date is before now.
func (s *Store) ListOverdue(ctx context.Context, now time.Time) ([]*models.Observation, error) {
	return s.list(ctx, "list_overdue",
		selectColumns+` WHERE due_date IS NOT NULL AND due_date < $1 AND status <> $2 ORDER BY due_date`,
		now.UTC(), string(models.ObservationClosed))
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.ObservationStatus) error {
	if !status.IsValid() {
		return apperrors.NewObservationInvalidError(fmt.Sprintf("unknown status %q", status))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_observations SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), s.now().UTC(), id)
	if err != nil {
		return apperrors.NewObservationStoreFailedError("update_status", err)
	}
	return requireOneRow(res, id)
}

// AddCorrectiveAction appends action and, when dueDate is set, moves the observation due date.
func (s *Store) AddCorrectiveAction(ctx context.Context, id, action string, dueDate *time.Time) error {
	if strings.TrimSpace(action) == "" {
		return apperrors.NewObservationInvalidError("corrective action is empty")
	}

	now := s.now().UTC()
	entry, err := json.Marshal([]models.CorrectiveAction{{Action: action, DueDate: dueDate, CreatedAt: now}})
	if err != nil {
		return apperrors.NewObservationStoreFailedError("add_corrective_action", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_observations
		SET corrective_actions = corrective_actions || $1::jsonb,
			due_date = COALESCE($2, due_date),
			updated_at = $3
		WHERE id = $4`,
		entry, nullTime(dueDate), now, id)
	if err != nil {
		return apperrors.NewObservationStoreFailedError("add_corrective_action", err)
	}
	return requireOneRow(res, id)
}

// Summary counts observations for company, or for every company when company is empty.
func (s *Store) Summary(ctx context.Context, company string) (*models.ObservationSummary, error) {
	list, err := s.listFor(ctx, "summary", company)
	if err != nil {
		return nil, err
	}
	return Summarize(company, list, s.now()), nil
}

// listFor lists one company's observations, or all of them when company is empty.
func (s *Store) listFor(ctx context.Context, op, company string) ([]*models.Observation, error) {
	if company == "" {
		return s.list(ctx, op, selectColumns+` ORDER BY created_at`)
	}
	return s.ListByCompany(ctx, company)
}

// Summarize counts observations by risk level, status and area.
func Summarize(company string, list []*models.Observation, now time.Time) *models.ObservationSummary {
	summary := &models.ObservationSummary{
		Company: company,
		Total:   len(list),
		ByRiskLevel: map[string]int{
			string(models.RiskCritical): 0,
			string(models.RiskMajor):    0,
			string(models.RiskMinor):    0,
		},
		ByStatus: map[string]int{
			string(models.ObservationOpen):       0,
			string(models.ObservationInProgress): 0,
			string(models.ObservationClosed):     0,
		},
		ByArea: map[string]int{},
	}
	for _, o := range list {
		summary.ByRiskLevel[string(o.RiskLevel)]++
		summary.ByStatus[string(o.Status)]++
		summary.ByArea[o.Area]++
		if o.Overdue(now) {
			summary.Overdue++
		}
	}
	return summary
}

func (s *Store) list(ctx context.Context, op, query string, args ...interface{}) ([]*models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewObservationStoreFailedError(op, err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return nil, apperrors.NewObservationStoreFailedError(op, err)
	}
	return list, nil
}

func scanAll(rows *sql.Rows) ([]*models.Observation, error) {
	defer rows.Close()

	list := []*models.Observation{}
	for rows.Next() {
		var (
			o       models.Observation
			risk    string
			status  string
			actions []byte
			due     sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.Company, &o.Area, &o.Finding, &risk, &o.Evidence, &o.Reference,
			&status, &o.PriorityLabel, &actions, &due, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.RiskLevel = models.RiskLevel(risk)
		o.Status = models.ObservationStatus(status)
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &o.CorrectiveActions); err != nil {
				return nil, fmt.Errorf("decode corrective actions for %s: %w", o.ID, err)
			}
		}
		if due.Valid {
			t := due.Time
			o.DueDate = &t
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewObservationStoreFailedError("rows_affected", err)
	}
	if n == 0 {
		return apperrors.NewObservationNotFoundError(id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
