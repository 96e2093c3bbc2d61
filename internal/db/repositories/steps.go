package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type StepRepo struct {
	db DBTX
}

func NewStepRepo(db *sql.DB) *StepRepo {
	return &StepRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *StepRepo) WithTx(tx *sql.Tx) *StepRepo {
	return &StepRepo{db: tx}
}

const stepColumns = `id, case_id, tenant_id, step_key, title, sequence, status, due_date, assigned_user_id,
	is_readiness_overridden, override_rationale, override_by_user_id, overridden_at,
	blocked_reason_code, blocked_reason_detail, created_at, updated_at`

func (r *StepRepo) Create(ctx context.Context, step *models.WorkflowStep) (*models.WorkflowStep, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_steps (case_id, tenant_id, step_key, title, sequence, status, due_date, assigned_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.CaseID, step.TenantID, step.StepKey, step.Title, step.Sequence, step.Status,
		step.DueDate, step.AssignedUserID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create step %q: %w", step.StepKey, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *StepRepo) GetByID(ctx context.Context, id int64) (*models.WorkflowStep, error) {
	return scanStep(r.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE id = ?`, id))
}

func (r *StepRepo) ListByCase(ctx context.Context, caseID int64) ([]*models.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE case_id = ? ORDER BY sequence, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var steps []*models.WorkflowStep
	for rows.Next() {
		s, err := scanStepRows(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *StepRepo) CountByCase(ctx context.Context, caseID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_steps WHERE case_id = ?`, caseID).Scan(&count)
	return count, err
}

// UpdateStatus sets a step's status. A manual status update always clears any
// readiness override: the explicit transition supersedes the pin.
func (r *StepRepo) UpdateStatus(ctx context.Context, id int64, status models.StepStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_steps
		 SET status = ?, is_readiness_overridden = FALSE, override_rationale = NULL,
		     override_by_user_id = NULL, overridden_at = NULL, updated_at = ?
		 WHERE id = ?`,
		status, time.Now().UTC(), id)
	return err
}

// PromoteToReady moves a Blocked step to Ready during recalculation, leaving
// override bookkeeping untouched. The status guard keeps the update a no-op
// if the step moved concurrently.
func (r *StepRepo) PromoteToReady(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_steps SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND is_readiness_overridden = FALSE`,
		models.StepStatusReady, time.Now().UTC(), id, models.StepStatusBlocked)
	return err
}

// Override pins a step's status outside normal propagation and records the
// override actor, time, and rationale.
func (r *StepRepo) Override(ctx context.Context, id int64, status models.StepStatus, rationale string, byUserID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_steps
		 SET status = ?, is_readiness_overridden = TRUE, override_rationale = ?,
		     override_by_user_id = ?, overridden_at = ?, updated_at = ?
		 WHERE id = ?`,
		status, rationale, byUserID, now, now, id)
	return err
}

// SetBlockedReason records an external blocking cause on a step.
func (r *StepRepo) SetBlockedReason(ctx context.Context, id int64, code models.BlockedReasonCode, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_steps SET blocked_reason_code = ?, blocked_reason_detail = ?, updated_at = ? WHERE id = ?`,
		code, detail, time.Now().UTC(), id)
	return err
}

// SetDueDate assigns or clears a step's due date.
func (r *StepRepo) SetDueDate(ctx context.Context, id int64, due *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_steps SET due_date = ?, updated_at = ? WHERE id = ?`,
		due, time.Now().UTC(), id)
	return err
}

// ListOverdue returns incomplete steps whose due date has passed, across all
// cases. Used by the overdue notification sweep.
func (r *StepRepo) ListOverdue(ctx context.Context, now time.Time) ([]*models.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps
		 WHERE due_date IS NOT NULL AND due_date < ? AND status != ?
		 ORDER BY due_date`, now, models.StepStatusComplete)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.WorkflowStep
	for rows.Next() {
		s, err := scanStepRows(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

type stepScanner interface {
	Scan(dest ...interface{}) error
}

func scanStep(row *sql.Row) (*models.WorkflowStep, error) {
	return scanStepFrom(row)
}

func scanStepRows(rows *sql.Rows) (*models.WorkflowStep, error) {
	s, err := scanStepFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan step: %w", err)
	}
	return s, nil
}

func scanStepFrom(sc stepScanner) (*models.WorkflowStep, error) {
	var s models.WorkflowStep
	var dueDate, overriddenAt sql.NullTime
	var assignedUserID, overrideByUserID sql.NullInt64
	var overrideRationale, blockedReasonCode, blockedReasonDetail sql.NullString

	err := sc.Scan(&s.ID, &s.CaseID, &s.TenantID, &s.StepKey, &s.Title, &s.Sequence, &s.Status,
		&dueDate, &assignedUserID,
		&s.IsReadinessOverridden, &overrideRationale, &overrideByUserID, &overriddenAt,
		&blockedReasonCode, &blockedReasonDetail, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		t := dueDate.Time
		s.DueDate = &t
	}
	if assignedUserID.Valid {
		s.AssignedUserID = &assignedUserID.Int64
	}
	if overrideRationale.Valid {
		s.OverrideRationale = &overrideRationale.String
	}
	if overrideByUserID.Valid {
		s.OverrideByUserID = &overrideByUserID.Int64
	}
	if overriddenAt.Valid {
		t := overriddenAt.Time
		s.OverriddenAt = &t
	}
	if blockedReasonCode.Valid {
		code := models.BlockedReasonCode(blockedReasonCode.String)
		s.BlockedReasonCode = &code
	}
	if blockedReasonDetail.Valid {
		s.BlockedReasonDetail = &blockedReasonDetail.String
	}
	return &s, nil
}
