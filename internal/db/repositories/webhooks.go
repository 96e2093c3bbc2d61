package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type WebhookRepo struct {
	db DBTX
}

func NewWebhookRepo(db *sql.DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

const webhookColumns = `id, tenant_id, name, url, secret, enabled, events, timeout_seconds, retry_attempts, created_by, created_at, updated_at`

func (r *WebhookRepo) Create(ctx context.Context, webhook *models.Webhook) (*models.Webhook, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO webhooks (tenant_id, name, url, secret, enabled, events, timeout_seconds, retry_attempts, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		webhook.TenantID, webhook.Name, webhook.URL, webhook.Secret, webhook.Enabled,
		webhook.Events, webhook.TimeoutSeconds, webhook.RetryAttempts, webhook.CreatedBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook %q: %w", webhook.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *WebhookRepo) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	return scanWebhook(r.db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id))
}

func (r *WebhookRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Webhook, error) {
	return r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = ? ORDER BY name`, tenantID)
}

func (r *WebhookRepo) ListEnabledByTenant(ctx context.Context, tenantID int64) ([]*models.Webhook, error) {
	return r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = ? AND enabled = TRUE ORDER BY name`, tenantID)
}

func (r *WebhookRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var w models.Webhook
		var secret sql.NullString
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Name, &w.URL, &secret, &w.Enabled, &w.Events,
			&w.TimeoutSeconds, &w.RetryAttempts, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		if secret.Valid {
			w.Secret = secret.String
		}
		webhooks = append(webhooks, &w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhooks SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	return err
}

func (r *WebhookRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

func scanWebhook(row *sql.Row) (*models.Webhook, error) {
	var w models.Webhook
	var secret sql.NullString
	if err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.URL, &secret, &w.Enabled, &w.Events,
		&w.TimeoutSeconds, &w.RetryAttempts, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if secret.Valid {
		w.Secret = secret.String
	}
	return &w, nil
}
