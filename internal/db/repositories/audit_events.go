package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"caseflow/pkg/models"
)

type AuditEventRepo struct {
	db DBTX
}

func NewAuditEventRepo(db *sql.DB) *AuditEventRepo {
	return &AuditEventRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction so audit
// rows commit atomically with the state change they describe.
func (r *AuditEventRepo) WithTx(tx *sql.Tx) *AuditEventRepo {
	return &AuditEventRepo{db: tx}
}

func (r *AuditEventRepo) Insert(ctx context.Context, event *models.AuditEvent) error {
	metadata, err := event.Metadata.Value()
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, tenant_id, case_id, event_type, actor_user_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.TenantID, event.CaseID, event.EventType, event.ActorUserID, metadata, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", event.EventType, err)
	}
	return nil
}

func (r *AuditEventRepo) ListByCase(ctx context.Context, caseID int64) ([]*models.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, tenant_id, case_id, event_type, actor_user_id, metadata, created_at
		 FROM audit_events WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.EventID, &e.TenantID, &e.CaseID, &e.EventType, &e.ActorUserID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if metadata.Valid {
			if err := e.Metadata.Scan(metadata.String); err != nil {
				return nil, err
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *AuditEventRepo) CountByCaseAndType(ctx context.Context, caseID int64, eventType string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE case_id = ? AND event_type = ?`,
		caseID, eventType).Scan(&count)
	return count, err
}
