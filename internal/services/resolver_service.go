package services

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neovalpox/backupControl/internal/models"
)

// ErrNoSourceNAS marks signals that carry no source identifier and therefore
// cannot be attributed to any client.
var ErrNoSourceNAS = errors.New("signal has no source NAS identifier")

// clientPrefixRegex extracts the client short name from a NAS identifier,
// e.g. NABO03 yields NABO.
var clientPrefixRegex = regexp.MustCompile(`^(N[A-Z]{2,4})\d*$`)

// ResolverService attaches classified signals to Client and Backup rows,
// creating them on first sight of a new NAS or task.
type ResolverService struct {
	db *gorm.DB
}

func NewResolverService(db *gorm.DB) *ResolverService {
	return &ResolverService{db: db}
}

// Resolution is the outcome of attributing one signal.
type Resolution struct {
	Client        *models.Client
	Backup        *models.Backup
	ClientCreated bool
	BackupCreated bool
}

// Resolve finds or creates the Client and Backup a signal belongs to. All
// reads and writes go through tx so the caller owns the transaction.
func (s *ResolverService) Resolve(tx *gorm.DB, signal *BackupSignal) (*Resolution, error) {
	identifier := strings.ToUpper(strings.TrimSpace(signal.SourceNAS))
	if identifier == "" {
		return nil, ErrNoSourceNAS
	}

	client, clientCreated, err := s.resolveClient(tx, identifier)
	if err != nil {
		return nil, err
	}

	backup, backupCreated, err := s.resolveBackup(tx, client, identifier, signal)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Client:        client,
		Backup:        backup,
		ClientCreated: clientCreated,
		BackupCreated: backupCreated,
	}, nil
}

func (s *ResolverService) resolveClient(tx *gorm.DB, identifier string) (*models.Client, bool, error) {
	prefix := identifier
	if match := clientPrefixRegex.FindStringSubmatch(identifier); match != nil {
		prefix = match[1]
	}

	var client models.Client
	err := tx.Where("short_name = ?", prefix).First(&client).Error
	if err == nil {
		if err := s.recordIdentifier(tx, &client, identifier); err != nil {
			return nil, false, err
		}
		return &client, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up client %s: %w", prefix, err)
	}

	// The identifier may be registered on a client under another short
	// name. Identifier lists are small, so the containment check runs in
	// Go rather than in driver-specific JSON SQL.
	var clients []models.Client
	if err := tx.Find(&clients).Error; err != nil {
		return nil, false, fmt.Errorf("failed to scan client identifiers: %w", err)
	}
	for i := range clients {
		if clients[i].HasNASIdentifier(identifier) {
			return &clients[i], false, nil
		}
	}

	created := models.Client{
		Name:           "Client " + prefix,
		ShortName:      prefix,
		NASIdentifiers: []string{identifier},
		SLAHours:       48,
		IsActive:       true,
	}
	// DO NOTHING on conflict rather than letting the INSERT fail: on
	// postgres a failed statement aborts the whole transaction, which
	// would poison the re-query too.
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create client %s: %w", prefix, result.Error)
	}
	if result.RowsAffected == 0 {
		// A concurrent batch created the same short name first.
		var existing models.Client
		if err := tx.Where("short_name = ?", prefix).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load client %s after insert conflict: %w", prefix, err)
		}
		if err := s.recordIdentifier(tx, &existing, identifier); err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	log.Printf("Created client %s for NAS %s", prefix, identifier)
	return &created, true, nil
}

// recordIdentifier appends a newly seen NAS identifier to a client. Losing
// the append on a write conflict only delays identifier discovery, so a
// failure is logged rather than aborting resolution.
func (s *ResolverService) recordIdentifier(tx *gorm.DB, client *models.Client, identifier string) error {
	if client.HasNASIdentifier(identifier) {
		return nil
	}
	client.AddNASIdentifier(identifier)
	if err := tx.Model(client).Update("nas_identifiers", client.NASIdentifiers).Error; err != nil {
		log.Printf("WARN: failed to record NAS %s on client %s: %v", identifier, client.ShortName, err)
	}
	return nil
}

func (s *ResolverService) resolveBackup(tx *gorm.DB, client *models.Client, identifier string, signal *BackupSignal) (*models.Backup, bool, error) {
	backupType := signal.BackupType
	if backupType == "" {
		backupType = models.BackupTypeOther
	}
	name := buildBackupName(signal, backupType)

	var candidates []models.Backup
	err := tx.Where("client_id = ? AND source_nas = ? AND backup_type = ?", client.ID, identifier, backupType).
		Find(&candidates).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to search backups for %s: %w", client.ShortName, err)
	}

	if signal.TaskName != "" {
		candidates = filterByName(candidates, name)
	}

	switch len(candidates) {
	case 0:
		// fall through to creation
	case 1:
		return &candidates[0], false, nil
	default:
		log.Printf("WARN: %d backups match %q on %s, using most recently active", len(candidates), name, identifier)
		return mostRecentlyActive(candidates), false, nil
	}

	created := models.Backup{
		ClientID:       client.ID,
		Name:           name,
		BackupType:     backupType,
		SourceNAS:      identifier,
		Destination:    signal.Destination,
		DestinationNAS: signal.DestinationNAS,
		CurrentStatus:  models.StatusUnknown,
		IsActive:       true,
	}
	if len(signal.Devices) > 0 {
		created.SourceDevice = signal.Devices[0]
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create backup %q: %w", name, err)
	}
	log.Printf("Created backup %q (%s) for client %s", name, backupType, client.ShortName)
	return &created, true, nil
}

// buildBackupName prefers the explicit task name, then a device-qualified
// name, then the bare type label.
func buildBackupName(signal *BackupSignal, backupType string) string {
	if signal.TaskName != "" {
		return signal.TaskName
	}
	label := models.BackupTypeLabel(backupType)
	if len(signal.Devices) > 0 {
		devices := signal.Devices
		if len(devices) > 3 {
			devices = devices[:3]
		}
		return fmt.Sprintf("%s - %s", label, strings.Join(devices, ", "))
	}
	return label
}

// filterByName keeps candidates whose name matches exactly, or failing that,
// candidates where one name contains the other.
func filterByName(candidates []models.Backup, name string) []models.Backup {
	needle := strings.ToLower(strings.TrimSpace(name))

	var exact []models.Backup
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.Name)) == needle {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var fuzzy []models.Backup
	for _, c := range candidates {
		candidateName := strings.ToLower(strings.TrimSpace(c.Name))
		if strings.Contains(candidateName, needle) || strings.Contains(needle, candidateName) {
			fuzzy = append(fuzzy, c)
		}
	}
	return fuzzy
}

// mostRecentlyActive picks the candidate with the greatest last_event_at,
// treating never-active backups as oldest, then the newest row.
func mostRecentlyActive(candidates []models.Backup) *models.Backup {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if moreRecentlyActive(&candidates[i], &candidates[best]) {
			best = i
		}
	}
	return &candidates[best]
}

func moreRecentlyActive(a, b *models.Backup) bool {
	switch {
	case a.LastEventAt != nil && b.LastEventAt != nil:
		if !a.LastEventAt.Equal(*b.LastEventAt) {
			return a.LastEventAt.After(*b.LastEventAt)
		}
	case a.LastEventAt != nil:
		return true
	case b.LastEventAt != nil:
		return false
	}
	return a.CreatedAt.After(b.CreatedAt)
}
