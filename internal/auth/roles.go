package auth

import (
	"fmt"

	"caseflow/pkg/models"
)

// Access denial reason codes carried on CaseAccessError.
const (
	ReasonRoleInsufficient = "ROLE_INSUFFICIENT"
	ReasonNoCaseAccess     = "NO_CASE_ACCESS"
)

// CaseAccessError is returned when a caller's effective role on a case is not
// sufficient for the attempted action. A CaseAccessDenied audit event is
// always recorded before this error propagates.
type CaseAccessError struct {
	CaseID          int64
	ActorUserID     int64
	AttemptedAction string
	RequiredRole    models.CaseRole
	ActualRole      models.CaseRole
	ReasonCode      string
}

func (e *CaseAccessError) Error() string {
	return fmt.Sprintf("access denied for %s on case %d: %s (required %s, actual %s)",
		e.AttemptedAction, e.CaseID, e.ReasonCode, e.RequiredRole, e.ActualRole)
}

// HasSufficientRole reports whether actual satisfies required under the total
// order Reader < Editor < Manager.
func HasSufficientRole(actual, required models.CaseRole) bool {
	return actual.Rank() >= required.Rank()
}
