package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/neovalpox/backupControl/internal/services"
)

type BackupHandler struct {
	backupService *services.BackupService
}

func NewBackupHandler(backupService *services.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// List handles listing backups with optional filters
func (h *BackupHandler) List(c *gin.Context) {
	filters := services.BackupFilters{
		Status:     c.Query("status"),
		BackupType: c.Query("backup_type"),
		SourceNAS:  c.Query("source_nas"),
		Search:     c.Query("search"),
	}

	if clientID := c.Query("client_id"); clientID != "" {
		id, err := uuid.Parse(clientID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
			return
		}
		filters.ClientID = &id
	}
	if isActive := c.Query("is_active"); isActive != "" {
		active := isActive == "true"
		filters.IsActive = &active
	}

	backups, err := h.backupService.List(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": backups,
		"total":   len(backups),
	})
}

// Get handles fetching one backup
func (h *BackupHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	backup, err := h.backupService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, backup)
}

// Create handles manual backup creation
func (h *BackupHandler) Create(c *gin.Context) {
	var req struct {
		ClientID         string `json:"client_id" binding:"required"`
		Name             string `json:"name" binding:"required"`
		BackupType       string `json:"backup_type"`
		SourceNAS        string `json:"source_nas"`
		SourceDevice     string `json:"source_device"`
		Destination      string `json:"destination"`
		DestinationNAS   string `json:"destination_nas"`
		ExpectedSchedule string `json:"expected_schedule"`
		ExpectedHour     *int   `json:"expected_hour"`
		Description      string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	backup, err := h.backupService.Create(services.BackupInput{
		ClientID:         clientID,
		Name:             req.Name,
		BackupType:       req.BackupType,
		SourceNAS:        req.SourceNAS,
		SourceDevice:     req.SourceDevice,
		Destination:      req.Destination,
		DestinationNAS:   req.DestinationNAS,
		ExpectedSchedule: req.ExpectedSchedule,
		ExpectedHour:     req.ExpectedHour,
		Description:      req.Description,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, backup)
}

// Update handles partial backup updates
func (h *BackupHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	var req struct {
		Name             *string `json:"name"`
		BackupType       *string `json:"backup_type"`
		SourceNAS        *string `json:"source_nas"`
		SourceDevice     *string `json:"source_device"`
		Destination      *string `json:"destination"`
		DestinationNAS   *string `json:"destination_nas"`
		ExpectedSchedule *string `json:"expected_schedule"`
		ExpectedHour     *int    `json:"expected_hour"`
		Description      *string `json:"description"`
		IsActive         *bool   `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backup, err := h.backupService.Update(id, services.BackupUpdate{
		Name:             req.Name,
		BackupType:       req.BackupType,
		SourceNAS:        req.SourceNAS,
		SourceDevice:     req.SourceDevice,
		Destination:      req.Destination,
		DestinationNAS:   req.DestinationNAS,
		ExpectedSchedule: req.ExpectedSchedule,
		ExpectedHour:     req.ExpectedHour,
		Description:      req.Description,
		IsActive:         req.IsActive,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, backup)
}

// Delete handles backup deletion
func (h *BackupHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	if err := h.backupService.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backup deleted"})
}

// SetMaintenance handles opening or closing a maintenance window
func (h *BackupHandler) SetMaintenance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	var req struct {
		Enabled bool       `json:"enabled"`
		Until   *time.Time `json:"until"`
		Reason  string     `json:"reason"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backup, err := h.backupService.SetMaintenance(id, req.Enabled, req.Until, req.Reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, backup)
}

// History handles listing the recent events of one backup
func (h *BackupHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.backupService.History(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}
