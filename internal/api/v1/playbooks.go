package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"caseflow/internal/auth"
)

func (h *APIHandlers) registerPlaybookRoutes(group *gin.RouterGroup) {
	group.GET("", h.listPlaybooks)
	group.POST("/:id/activate", h.activatePlaybook)
}

func (h *APIHandlers) listPlaybooks(c *gin.Context) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	playbooks, err := h.playbookService.List(c.Request.Context(), user.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list playbooks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playbooks": playbooks, "count": len(playbooks)})
}

func (h *APIHandlers) activatePlaybook(c *gin.Context) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if !user.IsTenantAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "tenant admin required"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid playbook ID"})
		return
	}

	if err := h.playbookService.Activate(c.Request.Context(), user.TenantID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activated": id})
}
