package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neovalpox/backupControl/internal/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Summary handles the fleet overview counters
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboardService.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Attention handles listing backups that need operator attention
func (h *DashboardHandler) Attention(c *gin.Context) {
	backups, err := h.dashboardService.Attention()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": backups,
		"total":   len(backups),
	})
}
