package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neovalpox/backupControl/internal/services"
)

type SchedulerHandler struct {
	schedulerService *services.SchedulerService
	statusService    *services.StatusService
}

func NewSchedulerHandler(schedulerService *services.SchedulerService, statusService *services.StatusService) *SchedulerHandler {
	return &SchedulerHandler{
		schedulerService: schedulerService,
		statusService:    statusService,
	}
}

// Jobs handles listing the scheduled jobs with next and previous run times
func (h *SchedulerHandler) Jobs(c *gin.Context) {
	jobs := h.schedulerService.Jobs()

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// RecomputeStatuses handles an on-demand status sweep outside the hourly tick
func (h *SchedulerHandler) RecomputeStatuses(c *gin.Context) {
	changes, err := h.statusService.RecomputeAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": changes,
		"total":   len(changes),
	})
}
