package auth

import (
	"context"
	"database/sql"
	"errors"

	"caseflow/internal/db/repositories"
	"caseflow/pkg/models"
)

// Resolver computes a caller's effective role on a case from tenant
// membership and case membership rows. Tenant admins are equivalent to
// Manager on every case of their tenant.
type Resolver struct {
	repos *repositories.Repositories
}

func NewResolver(repos *repositories.Repositories) *Resolver {
	return &Resolver{repos: repos}
}

// EffectiveRole returns the caller's role on the case, or RoleNone when the
// caller has no access (wrong tenant or no membership).
func (r *Resolver) EffectiveRole(ctx context.Context, user *models.User, c *models.Case) (models.CaseRole, error) {
	if user.TenantID != c.TenantID {
		return models.RoleNone, nil
	}
	if user.IsTenantAdmin {
		return models.RoleManager, nil
	}

	member, err := r.repos.CaseMembers.GetByCaseAndUser(ctx, c.ID, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoleNone, nil
		}
		return models.RoleNone, err
	}
	return member.Role, nil
}

// Require resolves the caller's effective role and checks it against the role
// the action demands. On insufficient access it returns a CaseAccessError
// carrying the attempted action and both roles.
func (r *Resolver) Require(ctx context.Context, user *models.User, c *models.Case, action string, required models.CaseRole) (models.CaseRole, error) {
	actual, err := r.EffectiveRole(ctx, user, c)
	if err != nil {
		return models.RoleNone, err
	}
	if HasSufficientRole(actual, required) {
		return actual, nil
	}

	reason := ReasonRoleInsufficient
	if actual == models.RoleNone {
		reason = ReasonNoCaseAccess
	}
	return actual, &CaseAccessError{
		CaseID:          c.ID,
		ActorUserID:     user.ID,
		AttemptedAction: action,
		RequiredRole:    required,
		ActualRole:      actual,
		ReasonCode:      reason,
	}
}
