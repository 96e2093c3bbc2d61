package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type UserRepo struct {
	db DBTX
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, tenant_id, username, is_tenant_admin, api_key, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, tenantID int64, username string, isTenantAdmin bool, apiKey *string) (*models.User, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (tenant_id, username, is_tenant_admin, api_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, username, isTenantAdmin, apiKey, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE api_key = ?`, apiKey))
}

func (r *UserRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? ORDER BY username`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) UpdateAPIKey(ctx context.Context, id int64, apiKey *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		apiKey, time.Now().UTC(), id)
	return err
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var apiKey sql.NullString
	if err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.IsTenantAdmin, &apiKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if apiKey.Valid {
		u.APIKey = &apiKey.String
	}
	return &u, nil
}

func scanUserRows(rows *sql.Rows) (*models.User, error) {
	var u models.User
	var apiKey sql.NullString
	if err := rows.Scan(&u.ID, &u.TenantID, &u.Username, &u.IsTenantAdmin, &apiKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if apiKey.Valid {
		u.APIKey = &apiKey.String
	}
	return &u, nil
}
