package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Client struct {
	ID                    uuid.UUID                  `gorm:"type:uuid;primary_key" json:"id"`
	Name                  string                     `gorm:"not null" json:"name"`
	ShortName             string                     `gorm:"uniqueIndex;not null" json:"short_name"`
	ContactEmail          string                     `json:"contact_email,omitempty"`
	ContractType          string                     `json:"contract_type,omitempty"` // standard, premium
	SLAHours              int                        `gorm:"default:48" json:"sla_hours"`
	EmailPatterns         datatypes.JSONSlice[string] `json:"email_patterns,omitempty"`
	NASIdentifiers        datatypes.JSONSlice[string] `json:"nas_identifiers,omitempty"`
	CustomAlertThresholds datatypes.JSON             `json:"custom_alert_thresholds,omitempty"`
	IsActive              bool                       `gorm:"default:true" json:"is_active"`
	Notes                 string                     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt             time.Time                  `json:"created_at"`
	UpdatedAt             time.Time                  `json:"updated_at"`

	// Relations
	Backups []Backup `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"backups,omitempty"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// HasNASIdentifier reports whether the identifier is already recorded on this
// client (case-insensitive).
func (c *Client) HasNASIdentifier(identifier string) bool {
	needle := strings.ToUpper(strings.TrimSpace(identifier))
	for _, id := range c.NASIdentifiers {
		if strings.ToUpper(id) == needle {
			return true
		}
	}
	return false
}

// AddNASIdentifier records an identifier on this client, upper-cased.
func (c *Client) AddNASIdentifier(identifier string) {
	c.NASIdentifiers = append(c.NASIdentifiers, strings.ToUpper(strings.TrimSpace(identifier)))
}
