// Package ledger aggregates transfer usage counters. It is consulted for
// reporting only; the file store works the same with or without it.
package ledger

import (
	"time"

	"gorm.io/gorm"

	"github.com/cppla/quicktransfer/models"
)

// Ledger persists and aggregates per-upload usage rows.
type Ledger struct {
	db *gorm.DB
}

// New creates a Ledger on an initialized database handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// TypeCount is one entry of the per-MIME-type breakdown.
type TypeCount struct {
	MimeType string `json:"mime_type"`
	Count    int64  `json:"count"`
}

// Stats is the on-demand aggregate over all recorded rows.
type Stats struct {
	TotalFiles         int64       `json:"total_files"`
	TotalOriginalBytes int64       `json:"total_original_bytes"`
	TotalStoredBytes   int64       `json:"total_stored_bytes"`
	UploadsToday       int64       `json:"uploads_today"`
	TopTypes           []TypeCount `json:"top_types"`
	CompressionRatio   float64     `json:"compression_ratio"`
}

// RecordUpload appends one row for a stored upload.
func (l *Ledger) RecordUpload(name string, originalSize, storedSize int64, mimeType, origin string) error {
	return l.db.Create(&models.TransferStat{
		Name:         name,
		OriginalSize: originalSize,
		StoredSize:   storedSize,
		MimeType:     mimeType,
		Origin:       origin,
	}).Error
}

// IncrementDownload bumps the download counter for name. The update is a
// single SQL expression so concurrent downloads never lose counts.
func (l *Ledger) IncrementDownload(name string) error {
	return l.db.Model(&models.TransferStat{}).
		Where("name = ?", name).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}

// Aggregate computes the usage report from all rows. Individual query
// failures degrade to zero values instead of failing the whole report.
func (l *Ledger) Aggregate() Stats {
	var stats Stats

	if err := l.db.Model(&models.TransferStat{}).Count(&stats.TotalFiles).Error; err != nil {
		stats.TotalFiles = 0
	}
	if err := l.db.Model(&models.TransferStat{}).
		Select("COALESCE(SUM(original_size),0)").
		Scan(&stats.TotalOriginalBytes).Error; err != nil {
		stats.TotalOriginalBytes = 0
	}
	if err := l.db.Model(&models.TransferStat{}).
		Select("COALESCE(SUM(stored_size),0)").
		Scan(&stats.TotalStoredBytes).Error; err != nil {
		stats.TotalStoredBytes = 0
	}

	// Local midnight keeps "today" aligned with what the uploader sees.
	now := time.Now().In(time.Local)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := l.db.Model(&models.TransferStat{}).
		Where("created_at >= ?", midnight).
		Count(&stats.UploadsToday).Error; err != nil {
		stats.UploadsToday = 0
	}

	var topTypes []TypeCount
	if err := l.db.Model(&models.TransferStat{}).
		Select("mime_type, COUNT(*) as count").
		Group("mime_type").
		Order("count DESC").
		Limit(5).
		Scan(&topTypes).Error; err == nil {
		stats.TopTypes = topTypes
	}

	if stats.TotalOriginalBytes > 0 {
		stats.CompressionRatio = 1 - float64(stats.TotalStoredBytes)/float64(stats.TotalOriginalBytes)
	}
	return stats
}
