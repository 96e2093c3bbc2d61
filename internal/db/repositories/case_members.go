package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/pkg/models"
)

type CaseMemberRepo struct {
	db DBTX
}

func NewCaseMemberRepo(db *sql.DB) *CaseMemberRepo {
	return &CaseMemberRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *CaseMemberRepo) WithTx(tx *sql.Tx) *CaseMemberRepo {
	return &CaseMemberRepo{db: tx}
}

// Upsert assigns or replaces a user's role on a case.
func (r *CaseMemberRepo) Upsert(ctx context.Context, caseID, userID int64, role models.CaseRole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO case_members (case_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(case_id, user_id) DO UPDATE SET role = excluded.role`,
		caseID, userID, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert case member: %w", err)
	}
	return nil
}

func (r *CaseMemberRepo) GetByCaseAndUser(ctx context.Context, caseID, userID int64) (*models.CaseMember, error) {
	var m models.CaseMember
	err := r.db.QueryRowContext(ctx,
		`SELECT id, case_id, user_id, role, created_at FROM case_members WHERE case_id = ? AND user_id = ?`,
		caseID, userID).Scan(&m.ID, &m.CaseID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CaseMemberRepo) ListByCase(ctx context.Context, caseID int64) ([]*models.CaseMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, case_id, user_id, role, created_at FROM case_members WHERE case_id = ? ORDER BY user_id`,
		caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case members: %w", err)
	}
	defer rows.Close()

	var members []*models.CaseMember
	for rows.Next() {
		var m models.CaseMember
		if err := rows.Scan(&m.ID, &m.CaseID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *CaseMemberRepo) Remove(ctx context.Context, caseID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM case_members WHERE case_id = ? AND user_id = ?`, caseID, userID)
	return err
}
