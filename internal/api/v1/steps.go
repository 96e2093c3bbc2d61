package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"caseflow/internal/auth"
	"caseflow/pkg/models"
)

func (h *APIHandlers) registerStepRoutes(group *gin.RouterGroup) {
	group.PUT("/:id/status", h.updateTaskStatus)
	group.POST("/:id/override", h.overrideReadiness)
	group.PUT("/:id/due-date", h.setDueDate)
}

// UpdateTaskStatusRequest represents the request body for a status transition
type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OverrideReadinessRequest represents the request body for a manager override
type OverrideReadinessRequest struct {
	Status    string `json:"status" binding:"required"`
	Rationale string `json:"rationale" binding:"required"`
}

// SetDueDateRequest assigns or clears a step due date
type SetDueDateRequest struct {
	DueDate *time.Time `json:"due_date"`
}

func (h *APIHandlers) updateTaskStatus(c *gin.Context) {
	user, stepID, ok := h.stepRequest(c)
	if !ok {
		return
	}

	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.planService.UpdateTaskStatus(c.Request.Context(), user, stepID, models.StepStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *APIHandlers) overrideReadiness(c *gin.Context) {
	user, stepID, ok := h.stepRequest(c)
	if !ok {
		return
	}

	var req OverrideReadinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.planService.OverrideReadiness(c.Request.Context(), user, stepID, models.StepStatus(req.Status), req.Rationale)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *APIHandlers) setDueDate(c *gin.Context) {
	user, stepID, ok := h.stepRequest(c)
	if !ok {
		return
	}

	var req SetDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.planService.SetTaskDueDate(c.Request.Context(), user, stepID, req.DueDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *APIHandlers) stepRequest(c *gin.Context) (*models.User, int64, bool) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, 0, false
	}

	stepID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step ID"})
		return nil, 0, false
	}
	return user, stepID, true
}
