package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"caseflow/internal/auth"
	"caseflow/internal/db/repositories"
	"caseflow/internal/services"
	"caseflow/internal/workflow"
)

// APIHandlers exposes the plan engine over HTTP.
type APIHandlers struct {
	repos           *repositories.Repositories
	planService     *services.PlanService
	playbookService *services.PlaybookService
}

func NewAPIHandlers(repos *repositories.Repositories, planService *services.PlanService, playbookService *services.PlaybookService) *APIHandlers {
	return &APIHandlers{
		repos:           repos,
		planService:     planService,
		playbookService: playbookService,
	}
}

// RegisterRoutes wires all v1 routes onto the router group.
func (h *APIHandlers) RegisterRoutes(group *gin.RouterGroup) {
	h.registerCaseRoutes(group.Group("/cases"))
	h.registerStepRoutes(group.Group("/steps"))
	h.registerWebhookRoutes(group.Group("/webhooks"))
	h.registerPlaybookRoutes(group.Group("/playbooks"))
}

// respondError translates engine errors into structured HTTP responses. The
// engine itself is transport-agnostic; this is the only place status codes
// are assigned.
func respondError(c *gin.Context, err error) {
	var accessErr *auth.CaseAccessError
	switch {
	case errors.As(err, &accessErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "access denied",
			"attempted_action": accessErr.AttemptedAction,
			"required_role":    string(accessErr.RequiredRole),
			"actual_role":      string(accessErr.ActualRole),
			"reason_code":      accessErr.ReasonCode,
		})
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
