package repositories

import (
	"context"
	"database/sql"

	"caseflow/internal/db"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repositories struct {
	Tenants           *TenantRepo
	Users             *UserRepo
	Cases             *CaseRepo
	CaseMembers       *CaseMemberRepo
	Steps             *StepRepo
	StepDependencies  *StepDependencyRepo
	AuditEvents       *AuditEventRepo
	Playbooks         *PlaybookRepo
	Webhooks          *WebhookRepo
	WebhookDeliveries *WebhookDeliveryRepo
	Settings          *SettingsRepo
	db                db.Database // kept for transactions
}

func New(database db.Database) *Repositories {
	conn := database.Conn()

	return &Repositories{
		Tenants:           NewTenantRepo(conn),
		Users:             NewUserRepo(conn),
		Cases:             NewCaseRepo(conn),
		CaseMembers:       NewCaseMemberRepo(conn),
		Steps:             NewStepRepo(conn),
		StepDependencies:  NewStepDependencyRepo(conn),
		AuditEvents:       NewAuditEventRepo(conn),
		Playbooks:         NewPlaybookRepo(conn),
		Webhooks:          NewWebhookRepo(conn),
		WebhookDeliveries: NewWebhookDeliveryRepo(conn),
		Settings:          NewSettingsRepo(conn),
		db:                database,
	}
}

// BeginTx starts a database transaction
func (r *Repositories) BeginTx() (*sql.Tx, error) {
	return r.db.Conn().Begin()
}
