package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type WebhookDeliveryRepo struct {
	db DBTX
}

func NewWebhookDeliveryRepo(db *sql.DB) *WebhookDeliveryRepo {
	return &WebhookDeliveryRepo{db: db}
}

func (r *WebhookDeliveryRepo) Insert(ctx context.Context, deliveryID string, webhookID int64, eventType, payload string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, webhook_id, event_type, payload, status, attempt_count, created_at)
		 VALUES (?, ?, ?, ?, 'pending', 0, ?)`,
		deliveryID, webhookID, eventType, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert webhook delivery: %w", err)
	}
	return nil
}

// MarkResult records the outcome of a delivery attempt.
func (r *WebhookDeliveryRepo) MarkResult(ctx context.Context, deliveryID string, success bool, httpStatus int, errMsg string, attempts int) error {
	status := "failed"
	if success {
		status = "success"
	}

	var statusCode sql.NullInt64
	if httpStatus > 0 {
		statusCode = sql.NullInt64{Int64: int64(httpStatus), Valid: true}
	}
	var errorMessage sql.NullString
	if errMsg != "" {
		errorMessage = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET status = ?, http_status_code = ?, error_message = ?, attempt_count = ?, completed_at = ?
		 WHERE delivery_id = ?`,
		status, statusCode, errorMessage, attempts, time.Now().UTC(), deliveryID)
	return err
}

func (r *WebhookDeliveryRepo) ListByWebhook(ctx context.Context, webhookID int64, limit int) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, delivery_id, webhook_id, event_type, payload, status, http_status_code, error_message, attempt_count, created_at, completed_at
		 FROM webhook_deliveries WHERE webhook_id = ? ORDER BY id DESC LIMIT ?`,
		webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		var statusCode sql.NullInt64
		var errorMessage sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.DeliveryID, &d.WebhookID, &d.EventType, &d.Payload, &d.Status,
			&statusCode, &errorMessage, &d.AttemptCount, &d.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		if statusCode.Valid {
			code := int(statusCode.Int64)
			d.HTTPStatusCode = &code
		}
		if errorMessage.Valid {
			d.ErrorMessage = &errorMessage.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			d.CompletedAt = &t
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}
