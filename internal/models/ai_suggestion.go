package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AISuggestion is a generated optimisation recommendation over the fleet.
type AISuggestion struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	Category        string                      `gorm:"not null" json:"category"` // reliability, availability, fleet_health
	Priority        string                      `gorm:"not null;default:'medium'" json:"priority"` // low, medium, high
	Title           string                      `gorm:"not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description,omitempty"`
	Recommendation  string                      `gorm:"type:text" json:"recommendation,omitempty"`
	AffectedClients datatypes.JSONSlice[string] `json:"affected_clients,omitempty"`
	AffectedBackups datatypes.JSONSlice[string] `json:"affected_backups,omitempty"`
	AnalysisData    datatypes.JSON              `json:"analysis_data,omitempty"`
	IsDismissed     bool                        `gorm:"default:false" json:"is_dismissed"`
	IsImplemented   bool                        `gorm:"default:false" json:"is_implemented"`
	ExpiresAt       *time.Time                  `json:"expires_at,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (s *AISuggestion) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
