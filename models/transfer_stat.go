package models

import "time"

// TransferStat records one upload for usage reporting. Rows have their own
// lifecycle: they survive record deletion as historical statistics, and a
// record uploaded before the ledger existed simply has no row.
type TransferStat struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:512;index;not null" json:"name"`
	OriginalSize int64     `json:"original_size"`
	StoredSize   int64     `json:"stored_size"` // encrypted envelope size on disk
	MimeType     string    `gorm:"size:128;index" json:"mime_type"`
	Origin       string    `gorm:"size:64" json:"origin"` // uploader's client IP
	Downloads    int64     `gorm:"default:0" json:"downloads"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
