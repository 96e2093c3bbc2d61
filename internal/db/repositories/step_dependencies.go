package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type StepDependencyRepo struct {
	db DBTX
}

func NewStepDependencyRepo(db *sql.DB) *StepDependencyRepo {
	return &StepDependencyRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *StepDependencyRepo) WithTx(tx *sql.Tx) *StepDependencyRepo {
	return &StepDependencyRepo{db: tx}
}

func (r *StepDependencyRepo) Create(ctx context.Context, dep *models.WorkflowStepDependency) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_step_dependencies (case_id, tenant_id, step_id, depends_on_step_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		dep.CaseID, dep.TenantID, dep.StepID, dep.DependsOnStepID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create dependency %d -> %d: %w", dep.StepID, dep.DependsOnStepID, err)
	}
	return nil
}

func (r *StepDependencyRepo) ListByCase(ctx context.Context, caseID int64) ([]*models.WorkflowStepDependency, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, case_id, tenant_id, step_id, depends_on_step_id, created_at
		 FROM workflow_step_dependencies WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var deps []*models.WorkflowStepDependency
	for rows.Next() {
		var d models.WorkflowStepDependency
		if err := rows.Scan(&d.ID, &d.CaseID, &d.TenantID, &d.StepID, &d.DependsOnStepID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, &d)
	}
	return deps, rows.Err()
}
