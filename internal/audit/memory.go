package audit

import (
	"context"
	"database/sql"
	"sync"

	"caseflow/pkg/models"
)

// Memory is an in-memory sink for tests. It ignores the transaction and keeps
// events in order of arrival.
type Memory struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, _ *sql.Tx, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (m *Memory) Events() []*models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// ByType filters recorded events by event type.
func (m *Memory) ByType(eventType string) []*models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ Sink = (*Memory)(nil)
