// Package audit defines the append-only audit capability the plan engine
// writes through. The engine calls the sink but does not own its storage;
// tests substitute an in-memory recorder.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"caseflow/internal/db/repositories"
	"caseflow/pkg/models"
)

// Sink records one immutable audit event. When tx is non-nil the write joins
// that transaction so the event commits atomically with the state change it
// describes; with a nil tx the write goes straight to the store (used for
// best-effort access-denied records).
type Sink interface {
	Record(ctx context.Context, tx *sql.Tx, event *models.AuditEvent) error
}

// NewEvent builds an audit event with a fresh ULID and timestamp.
func NewEvent(tenantID, caseID int64, eventType string, actorUserID int64, metadata models.JSONMap) *models.AuditEvent {
	return &models.AuditEvent{
		EventID:     ulid.Make().String(),
		TenantID:    tenantID,
		CaseID:      caseID,
		EventType:   eventType,
		ActorUserID: actorUserID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

// Recorder is the sqlite-backed sink.
type Recorder struct {
	events *repositories.AuditEventRepo
}

func NewRecorder(events *repositories.AuditEventRepo) *Recorder {
	return &Recorder{events: events}
}

func (r *Recorder) Record(ctx context.Context, tx *sql.Tx, event *models.AuditEvent) error {
	repo := r.events
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	return repo.Insert(ctx, event)
}

var _ Sink = (*Recorder)(nil)
