package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type PlaybookRepo struct {
	db DBTX
}

func NewPlaybookRepo(db *sql.DB) *PlaybookRepo {
	return &PlaybookRepo{db: db}
}

const playbookColumns = `id, tenant_id, name, version, active, template, created_by, created_at, updated_at`

func (r *PlaybookRepo) Create(ctx context.Context, tenantID int64, name, template string, createdBy int64) (*models.Playbook, error) {
	var nextVersion int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM playbooks WHERE tenant_id = ? AND name = ?`,
		tenantID, name).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playbook version: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO playbooks (tenant_id, name, version, active, template, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, FALSE, ?, ?, ?, ?)`,
		tenantID, name, nextVersion, template, createdBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create playbook %q: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PlaybookRepo) GetByID(ctx context.Context, id int64) (*models.Playbook, error) {
	return scanPlaybook(r.db.QueryRowContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE id = ?`, id))
}

// GetActiveByTenant returns the tenant's active playbook, or sql.ErrNoRows
// when the tenant runs on the built-in catalog.
func (r *PlaybookRepo) GetActiveByTenant(ctx context.Context, tenantID int64) (*models.Playbook, error) {
	return scanPlaybook(r.db.QueryRowContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE tenant_id = ? AND active = TRUE
		 ORDER BY version DESC LIMIT 1`, tenantID))
}

func (r *PlaybookRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Playbook, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE tenant_id = ? ORDER BY name, version DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playbooks: %w", err)
	}
	defer rows.Close()

	var playbooks []*models.Playbook
	for rows.Next() {
		var p models.Playbook
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Version, &p.Active, &p.Template,
			&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playbook: %w", err)
		}
		playbooks = append(playbooks, &p)
	}
	return playbooks, rows.Err()
}

// SetActive activates one playbook and deactivates every other playbook of
// the tenant.
func (r *PlaybookRepo) SetActive(ctx context.Context, tenantID, playbookID int64) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`UPDATE playbooks SET active = FALSE, updated_at = ? WHERE tenant_id = ?`, now, tenantID); err != nil {
		return fmt.Errorf("failed to deactivate playbooks: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE playbooks SET active = TRUE, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		now, playbookID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to activate playbook %d: %w", playbookID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanPlaybook(row *sql.Row) (*models.Playbook, error) {
	var p models.Playbook
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Version, &p.Active, &p.Template,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
