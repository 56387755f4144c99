package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

// ReportService renders fleet exports: a CSV of all backup jobs and a PDF
// fleet health report.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// BackupsCSV streams every backup with its client and aggregates.
func (s *ReportService) BackupsCSV(w io.Writer) error {
	var backups []models.Backup
	err := s.db.Preload("Client").
		Joins("JOIN clients ON clients.id = backups.client_id").
		Order("clients.short_name, backups.name").
		Find(&backups).Error
	if err != nil {
		return fmt.Errorf("failed to load backups: %w", err)
	}

	writer := csv.NewWriter(w)
	header := []string{
		"client", "client_short_name", "backup", "type", "source_nas", "destination",
		"status", "last_success_at", "last_failure_at", "success_count", "failure_count",
		"last_size_bytes", "is_active", "is_maintenance",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}
	for i := range backups {
		b := &backups[i]
		size := ""
		if b.LastSizeBytes != nil {
			size = strconv.FormatInt(*b.LastSizeBytes, 10)
		}
		record := []string{
			b.Client.Name,
			b.Client.ShortName,
			b.Name,
			b.BackupType,
			b.SourceNAS,
			b.Destination,
			b.CurrentStatus,
			formatTime(b.LastSuccessAt),
			formatTime(b.LastFailureAt),
			strconv.Itoa(b.TotalSuccessCount),
			strconv.Itoa(b.TotalFailureCount),
			size,
			strconv.FormatBool(b.IsActive),
			strconv.FormatBool(b.IsMaintenance),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// FleetPDF renders the fleet health report. Core fonts are cp1252, so all
// text goes through the unicode translator to keep the French accents.
func (s *ReportService) FleetPDF() ([]byte, error) {
	var backups []models.Backup
	err := s.db.Preload("Client").
		Joins("JOIN clients ON clients.id = backups.client_id").
		Where("backups.is_active = ?", true).
		Order("clients.short_name, backups.name").
		Find(&backups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load backups: %w", err)
	}

	byStatus := map[string]int{}
	for i := range backups {
		byStatus[backups[i].CurrentStatus]++
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Rapport de santé des sauvegardes"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Rapport de santé des sauvegardes"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Généré le %s", time.Now().UTC().Format("02/01/2006 15:04 UTC"))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%d sauvegardes actives", len(backups))), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, status := range []string{models.StatusOK, models.StatusWarning, models.StatusAlert, models.StatusCritical, models.StatusFailed, models.StatusUnknown} {
		if byStatus[status] == 0 {
			continue
		}
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("  %s: %d", status, byStatus[status])), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	colWidths := []float64{28, 62, 26, 24, 30, 20}
	headers := []string{"Client", "Sauvegarde", "Type", "Statut", tr("Dernière réussite"), tr("Échecs")}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for i := range backups {
		b := &backups[i]
		lastSuccess := "jamais"
		if b.LastSuccessAt != nil {
			lastSuccess = b.LastSuccessAt.UTC().Format("02/01/2006 15:04")
		}
		critical := b.CurrentStatus == models.StatusCritical || b.CurrentStatus == models.StatusFailed
		if critical {
			pdf.SetTextColor(200, 30, 30)
		}
		cells := []string{
			b.Client.ShortName,
			b.Name,
			models.BackupTypeLabel(b.BackupType),
			b.CurrentStatus,
			lastSuccess,
			strconv.Itoa(b.TotalFailureCount),
		}
		for j, cell := range cells {
			pdf.CellFormat(colWidths[j], 6, tr(truncateCell(cell, 38)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		if critical {
			pdf.SetTextColor(0, 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func truncateCell(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
