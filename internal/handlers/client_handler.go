package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/neovalpox/backupControl/internal/services"
)

type ClientHandler struct {
	clientService *services.ClientService
}

func NewClientHandler(clientService *services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// List handles listing clients
func (h *ClientHandler) List(c *gin.Context) {
	includeInactive := c.DefaultQuery("include_inactive", "false") == "true"
	search := c.Query("search")

	clients, err := h.clientService.List(includeInactive, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"total":   len(clients),
	})
}

// Get handles fetching one client
func (h *ClientHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	client, err := h.clientService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, client)
}

// Create handles client creation
func (h *ClientHandler) Create(c *gin.Context) {
	var req struct {
		Name           string   `json:"name"`
		ShortName      string   `json:"short_name" binding:"required"`
		ContactEmail   string   `json:"contact_email"`
		ContractType   string   `json:"contract_type"`
		SLAHours       int      `json:"sla_hours"`
		EmailPatterns  []string `json:"email_patterns"`
		NASIdentifiers []string `json:"nas_identifiers"`
		Notes          string   `json:"notes"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clientService.Create(services.ClientInput{
		Name:           req.Name,
		ShortName:      req.ShortName,
		ContactEmail:   req.ContactEmail,
		ContractType:   req.ContractType,
		SLAHours:       req.SLAHours,
		EmailPatterns:  req.EmailPatterns,
		NASIdentifiers: req.NASIdentifiers,
		Notes:          req.Notes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, client)
}

// Update handles partial client updates
func (h *ClientHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	var req struct {
		Name           *string   `json:"name"`
		ShortName      *string   `json:"short_name"`
		ContactEmail   *string   `json:"contact_email"`
		ContractType   *string   `json:"contract_type"`
		SLAHours       *int      `json:"sla_hours"`
		EmailPatterns  *[]string `json:"email_patterns"`
		NASIdentifiers *[]string `json:"nas_identifiers"`
		Notes          *string   `json:"notes"`
		IsActive       *bool     `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clientService.Update(id, services.ClientUpdate{
		Name:           req.Name,
		ShortName:      req.ShortName,
		ContactEmail:   req.ContactEmail,
		ContractType:   req.ContractType,
		SLAHours:       req.SLAHours,
		EmailPatterns:  req.EmailPatterns,
		NASIdentifiers: req.NASIdentifiers,
		Notes:          req.Notes,
		IsActive:       req.IsActive,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, client)
}

// Delete handles client deletion
func (h *ClientHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	if err := h.clientService.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}
