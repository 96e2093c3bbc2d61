package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type CaseRepo struct {
	db DBTX
}

func NewCaseRepo(db *sql.DB) *CaseRepo {
	return &CaseRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *CaseRepo) WithTx(tx *sql.Tx) *CaseRepo {
	return &CaseRepo{db: tx}
}

const caseColumns = `id, tenant_id, title, status, intake_json, intake_completed_at, created_by, created_at, updated_at`

func (r *CaseRepo) Create(ctx context.Context, tenantID int64, title string, createdBy int64) (*models.Case, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO cases (tenant_id, title, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, title, models.CaseStatusDraft, createdBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *CaseRepo) GetByID(ctx context.Context, id int64) (*models.Case, error) {
	return scanCase(r.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = ?`, id))
}

func (r *CaseRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Case, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCaseRows(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// CompleteIntake stores the structured intake payload as a JSON blob and
// marks the case ready for plan generation.
func (r *CaseRepo) CompleteIntake(ctx context.Context, id int64, intake *models.IntakeRecord) error {
	blob, err := json.Marshal(intake)
	if err != nil {
		return fmt.Errorf("failed to encode intake: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`UPDATE cases SET intake_json = ?, intake_completed_at = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(blob), now, models.CaseStatusIntake, now, id)
	return err
}

func (r *CaseRepo) UpdateStatus(ctx context.Context, id int64, status models.CaseStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cases SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	return err
}

func scanCase(row *sql.Row) (*models.Case, error) {
	var c models.Case
	var intakeJSON sql.NullString
	var intakeCompletedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.Status, &intakeJSON, &intakeCompletedAt,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return decodeCase(&c, intakeJSON, intakeCompletedAt)
}

func scanCaseRows(rows *sql.Rows) (*models.Case, error) {
	var c models.Case
	var intakeJSON sql.NullString
	var intakeCompletedAt sql.NullTime
	if err := rows.Scan(&c.ID, &c.TenantID, &c.Title, &c.Status, &intakeJSON, &intakeCompletedAt,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}
	return decodeCase(&c, intakeJSON, intakeCompletedAt)
}

func decodeCase(c *models.Case, intakeJSON sql.NullString, intakeCompletedAt sql.NullTime) (*models.Case, error) {
	if intakeJSON.Valid && intakeJSON.String != "" {
		var intake models.IntakeRecord
		if err := json.Unmarshal([]byte(intakeJSON.String), &intake); err != nil {
			return nil, fmt.Errorf("failed to decode intake for case %d: %w", c.ID, err)
		}
		c.Intake = &intake
	}
	if intakeCompletedAt.Valid {
		t := intakeCompletedAt.Time
		c.IntakeCompletedAt = &t
	}
	return c, nil
}
