package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neovalpox/backupControl/internal/services"
)

type SettingsHandler struct {
	settingsService  *services.SettingsService
	schedulerService *services.SchedulerService
}

func NewSettingsHandler(settingsService *services.SettingsService, schedulerService *services.SchedulerService) *SettingsHandler {
	return &SettingsHandler{
		settingsService:  settingsService,
		schedulerService: schedulerService,
	}
}

// List handles listing all settings with secrets masked
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.settingsService.List(false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// Update handles bulk setting updates. Blank values for secret keys are
// ignored by the store, so masked round-trips are safe.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req struct {
		Settings map[string]string `json:"settings" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rescheduleNeeded := false
	for key, value := range req.Settings {
		if err := h.settingsService.Set(key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if key == "check_hour" {
			rescheduleNeeded = true
		}
	}

	if rescheduleNeeded && h.schedulerService != nil {
		if err := h.schedulerService.Restart(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	settings, err := h.settingsService.List(false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// TestAI handles verifying the configured AI provider credentials
func (h *SettingsHandler) TestAI(c *gin.Context) {
	rc, err := h.settingsService.LoadRunConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	provider, err := services.NewAIProvider(rc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := provider.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":  false,
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"provider": provider.Name(),
	})
}

// TestEmail handles verifying the configured mailbox credentials
func (h *SettingsHandler) TestEmail(c *gin.Context) {
	rc, err := h.settingsService.LoadRunConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	provider, err := services.NewMailProvider(rc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := provider.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":  false,
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"provider": provider.Name(),
	})
}
