package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SettingsRepo struct {
	db DBTX
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns a tenant setting value, or defaultValue when unset.
func (r *SettingsRepo) Get(ctx context.Context, tenantID int64, key, defaultValue string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE tenant_id = ? AND key = ?`, tenantID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultValue, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SettingsRepo) Set(ctx context.Context, tenantID int64, key, value string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (tenant_id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		tenantID, key, value, now, now)
	return err
}
