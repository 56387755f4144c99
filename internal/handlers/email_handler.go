package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/neovalpox/backupControl/internal/services"
)

type EmailHandler struct {
	emailService    *services.EmailService
	pipelineService *services.PipelineService
}

func NewEmailHandler(emailService *services.EmailService, pipelineService *services.PipelineService) *EmailHandler {
	return &EmailHandler{
		emailService:    emailService,
		pipelineService: pipelineService,
	}
}

// List handles listing stored emails with optional filters
func (h *EmailHandler) List(c *gin.Context) {
	filters := services.EmailFilters{
		DetectedStatus: c.Query("detected_status"),
		DetectedType:   c.Query("detected_type"),
		Sender:         c.Query("sender"),
		Search:         c.Query("search"),
	}

	if v := c.Query("is_backup_notification"); v != "" {
		b := v == "true"
		filters.IsBackupNotification = &b
	}
	if v := c.Query("is_processed"); v != "" {
		b := v == "true"
		filters.IsProcessed = &b
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since date, expected RFC3339"})
			return
		}
		filters.Since = &t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid until date, expected RFC3339"})
			return
		}
		filters.Until = &t
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	emails, total, err := h.emailService.List(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails":    emails,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// Get handles fetching one stored email including its body
func (h *EmailHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email ID"})
		return
	}

	email, err := h.emailService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, email)
}

// Delete handles email deletion
func (h *EmailHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email ID"})
		return
	}

	if err := h.emailService.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email deleted"})
}

// Analyze handles launching a batch analysis run. The run executes in the
// background; the response carries the run id to poll via Progress.
func (h *EmailHandler) Analyze(c *gin.Context) {
	var req struct {
		Limit  int    `json:"limit"`
		Folder string `json:"folder"`
	}
	// The body is optional; defaults come from the stored settings.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	runID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		h.pipelineService.RunWithID(ctx, runID, req.Limit, req.Folder)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  runID,
		"message": "Analysis started",
	})
}

// Progress handles polling the state of a batch run
func (h *EmailHandler) Progress(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing run ID"})
		return
	}

	progress, ok := h.pipelineService.Progress(c.Request.Context(), runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Reprocess handles re-running classification on one stored email
func (h *EmailHandler) Reprocess(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email ID"})
		return
	}

	email, report, err := h.pipelineService.Reprocess(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":  email,
		"report": report,
	})
}

// Stats handles summarizing the email archive
func (h *EmailHandler) Stats(c *gin.Context) {
	stats, err := h.emailService.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
