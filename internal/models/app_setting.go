package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppSetting is one runtime-tunable key/value. Secret values are masked when
// read through the API.
type AppSetting struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Key         string    `gorm:"uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Category    string    `gorm:"not null;default:'general'" json:"category"` // ai, email, alerts, general
	IsSecret    bool      `gorm:"default:false" json:"is_secret"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *AppSetting) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
