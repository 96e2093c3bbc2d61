package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"caseflow/internal/auth"
	"caseflow/pkg/models"
)

func (h *APIHandlers) registerWebhookRoutes(group *gin.RouterGroup) {
	group.GET("", h.listWebhooks)
	group.POST("", h.createWebhook)
	group.POST("/:id/enable", h.enableWebhook)
	group.POST("/:id/disable", h.disableWebhook)
	group.DELETE("/:id", h.deleteWebhook)
}

// CreateWebhookRequest represents the request body for creating a webhook
type CreateWebhookRequest struct {
	Name           string   `json:"name" binding:"required"`
	URL            string   `json:"url" binding:"required,url"`
	Secret         string   `json:"secret"`
	Events         []string `json:"events" binding:"required"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	RetryAttempts  int      `json:"retry_attempts"`
}

func (h *APIHandlers) createWebhook(c *gin.Context) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventsJSON, err := json.Marshal(req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid events format"})
		return
	}

	if req.TimeoutSeconds <= 0 {
		req.TimeoutSeconds = 30
	}
	if req.RetryAttempts <= 0 {
		req.RetryAttempts = 3
	}

	webhook := &models.Webhook{
		TenantID:       user.TenantID,
		Name:           req.Name,
		URL:            req.URL,
		Secret:         req.Secret,
		Enabled:        true,
		Events:         string(eventsJSON),
		TimeoutSeconds: req.TimeoutSeconds,
		RetryAttempts:  req.RetryAttempts,
		CreatedBy:      user.ID,
	}

	created, err := h.repos.Webhooks.Create(c.Request.Context(), webhook)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *APIHandlers) listWebhooks(c *gin.Context) {
	user, exists := auth.GetUserFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	webhooks, err := h.repos.Webhooks.ListByTenant(c.Request.Context(), user.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks, "count": len(webhooks)})
}

func (h *APIHandlers) enableWebhook(c *gin.Context) {
	h.setWebhookEnabled(c, true)
}

func (h *APIHandlers) disableWebhook(c *gin.Context) {
	h.setWebhookEnabled(c, false)
}

func (h *APIHandlers) setWebhookEnabled(c *gin.Context, enabled bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook ID"})
		return
	}

	if err := h.repos.Webhooks.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}

func (h *APIHandlers) deleteWebhook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook ID"})
		return
	}

	if err := h.repos.Webhooks.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
