package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
	"github.com/neovalpox/backupControl/pkg/validation"
)

// ClientService manages the client registry. Most clients are auto-created
// by the resolver; these operations cover manual curation.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

// ClientInput carries the fields accepted on client creation.
type ClientInput struct {
	Name           string
	ShortName      string
	ContactEmail   string
	ContractType   string
	SLAHours       int
	EmailPatterns  []string
	NASIdentifiers []string
	Notes          string
}

// ClientUpdate carries partial updates; nil fields are left untouched.
type ClientUpdate struct {
	Name           *string
	ShortName      *string
	ContactEmail   *string
	ContractType   *string
	SLAHours       *int
	EmailPatterns  *[]string
	NASIdentifiers *[]string
	Notes          *string
	IsActive       *bool
}

// List returns clients ordered by short name.
func (s *ClientService) List(includeInactive bool, search string) ([]models.Client, error) {
	query := s.db.Model(&models.Client{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if search != "" {
		needle := "%" + search + "%"
		query = query.Where("name LIKE ? OR short_name LIKE ?", needle, needle)
	}

	var clients []models.Client
	if err := query.Order("short_name").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// GetByID returns one client with its backups.
func (s *ClientService) GetByID(id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := s.db.Preload("Backups").First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("client not found")
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

func (s *ClientService) Create(input ClientInput) (*models.Client, error) {
	shortName := strings.ToUpper(strings.TrimSpace(input.ShortName))
	if !validation.ValidateShortName(shortName) {
		return nil, fmt.Errorf("invalid short name: must be 2-10 uppercase letters or digits")
	}
	if input.ContactEmail != "" && !validation.ValidateEmail(input.ContactEmail) {
		return nil, fmt.Errorf("invalid contact email")
	}

	var existing models.Client
	if err := s.db.Where("short_name = ?", shortName).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("short name %s is already taken", shortName)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Client " + shortName
	}
	slaHours := input.SLAHours
	if slaHours <= 0 {
		slaHours = 48
	}

	identifiers := make([]string, 0, len(input.NASIdentifiers))
	for _, id := range input.NASIdentifiers {
		identifiers = append(identifiers, strings.ToUpper(strings.TrimSpace(id)))
	}

	client := models.Client{
		Name:           validation.SanitizeString(name),
		ShortName:      shortName,
		ContactEmail:   input.ContactEmail,
		ContractType:   input.ContractType,
		SLAHours:       slaHours,
		EmailPatterns:  datatypes.NewJSONSlice(input.EmailPatterns),
		NASIdentifiers: datatypes.NewJSONSlice(identifiers),
		Notes:          input.Notes,
		IsActive:       true,
	}
	if err := s.db.Create(&client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &client, nil
}

func (s *ClientService) Update(id uuid.UUID, update ClientUpdate) (*models.Client, error) {
	client, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = validation.SanitizeString(*update.Name)
	}
	if update.ShortName != nil {
		shortName := strings.ToUpper(strings.TrimSpace(*update.ShortName))
		if !validation.ValidateShortName(shortName) {
			return nil, fmt.Errorf("invalid short name: must be 2-10 uppercase letters or digits")
		}
		if shortName != client.ShortName {
			var existing models.Client
			if err := s.db.Where("short_name = ? AND id <> ?", shortName, id).First(&existing).Error; err == nil {
				return nil, fmt.Errorf("short name %s is already taken", shortName)
			}
			updates["short_name"] = shortName
		}
	}
	if update.ContactEmail != nil {
		if *update.ContactEmail != "" && !validation.ValidateEmail(*update.ContactEmail) {
			return nil, fmt.Errorf("invalid contact email")
		}
		updates["contact_email"] = *update.ContactEmail
	}
	if update.ContractType != nil {
		updates["contract_type"] = *update.ContractType
	}
	if update.SLAHours != nil {
		updates["sla_hours"] = *update.SLAHours
	}
	if update.EmailPatterns != nil {
		updates["email_patterns"] = datatypes.NewJSONSlice(*update.EmailPatterns)
	}
	if update.NASIdentifiers != nil {
		identifiers := make([]string, 0, len(*update.NASIdentifiers))
		for _, nasID := range *update.NASIdentifiers {
			identifiers = append(identifiers, strings.ToUpper(strings.TrimSpace(nasID)))
		}
		updates["nas_identifiers"] = datatypes.NewJSONSlice(identifiers)
	}
	if update.Notes != nil {
		updates["notes"] = *update.Notes
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	if len(updates) == 0 {
		return client, nil
	}
	if err := s.db.Model(client).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a client and, through the cascade, its backups and events.
func (s *ClientService) Delete(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("client not found")
			}
			return fmt.Errorf("failed to get client: %w", err)
		}

		if err := tx.Where("client_id = ?", id).Delete(&models.Alert{}).Error; err != nil {
			return fmt.Errorf("failed to delete client alerts: %w", err)
		}

		var backupIDs []uuid.UUID
		if err := tx.Model(&models.Backup{}).Where("client_id = ?", id).Pluck("id", &backupIDs).Error; err != nil {
			return fmt.Errorf("failed to list client backups: %w", err)
		}
		if len(backupIDs) > 0 {
			if err := tx.Where("backup_id IN ?", backupIDs).Delete(&models.BackupEvent{}).Error; err != nil {
				return fmt.Errorf("failed to delete backup events: %w", err)
			}
			if err := tx.Where("client_id = ?", id).Delete(&models.Backup{}).Error; err != nil {
				return fmt.Errorf("failed to delete backups: %w", err)
			}
		}

		return tx.Delete(&client).Error
	})
}
