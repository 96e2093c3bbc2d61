package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"caseflow/internal/auth"
	"caseflow/pkg/models"
)

func (h *APIHandlers) registerCaseRoutes(group *gin.RouterGroup) {
	group.POST("", h.createCase)
	group.GET("/:id", h.getCase)
	group.POST("/:id/intake", h.completeIntake)
	group.POST("/:id/members", h.addCaseMember)
	group.POST("/:id/plan", h.generatePlan)
	group.GET("/:id/plan", h.getPlanSteps)
	group.POST("/:id/plan/recalculate", h.recalculateReadiness)
	group.GET("/:id/workspace", h.getTaskWorkspace)
	group.GET("/:id/audit", h.listAuditEvents)
}

// CreateCaseRequest represents the request body for creating a case
type CreateCaseRequest struct {
	Title string `json:"title" binding:"required"`
}

// AddCaseMemberRequest assigns a role to a user on a case
type AddCaseMemberRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

func (h *APIHandlers) createCase(c *gin.Context) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.repos.Cases.Create(c.Request.Context(), user.TenantID, req.Title, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create case"})
		return
	}

	// The creator manages their own case.
	if err := h.repos.CaseMembers.Upsert(c.Request.Context(), created.ID, user.ID, models.RoleManager); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign case manager"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *APIHandlers) getCase(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	record, err := h.repos.Cases.GetByID(c.Request.Context(), caseID)
	if err != nil || record.TenantID != user.TenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *APIHandlers) completeIntake(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	var intake models.IntakeRecord
	if err := c.ShouldBindJSON(&intake); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.planService.CompleteIntake(c.Request.Context(), user, caseID, &intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *APIHandlers) addCaseMember(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	var req AddCaseMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.CaseRole(req.Role)
	if err := h.planService.AssignCaseRole(c.Request.Context(), user, caseID, req.UserID, role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": caseID, "user_id": req.UserID, "role": role})
}

func (h *APIHandlers) generatePlan(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	steps, err := h.planService.GeneratePlan(c.Request.Context(), user, caseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"steps": steps, "count": len(steps)})
}

func (h *APIHandlers) getPlanSteps(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	steps, err := h.planService.GetPlanSteps(c.Request.Context(), user, caseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps, "count": len(steps)})
}

func (h *APIHandlers) recalculateReadiness(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	steps, err := h.planService.RecalculateReadiness(c.Request.Context(), user, caseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps, "count": len(steps)})
}

func (h *APIHandlers) getTaskWorkspace(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	includeComplete := c.Query("include_complete") == "true"
	items, err := h.planService.GetTaskWorkspace(c.Request.Context(), user, caseID, includeComplete)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *APIHandlers) listAuditEvents(c *gin.Context) {
	user, caseID, ok := h.caseRequest(c)
	if !ok {
		return
	}

	// Visibility follows plan read access.
	if _, err := h.planService.GetPlanSteps(c.Request.Context(), user, caseID); err != nil {
		respondError(c, err)
		return
	}

	events, err := h.repos.AuditEvents.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// caseRequest extracts the authenticated user and the case id path param.
func (h *APIHandlers) caseRequest(c *gin.Context) (*models.User, int64, bool) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, 0, false
	}

	caseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case ID"})
		return nil, 0, false
	}
	return user, caseID, true
}
