package models

import "time"

// FileRecord is one queued attachment. FormID is the owning record and
// FileID the DescriptorID of the field it belongs to.
type FileRecord struct {
	ID       uint   `gorm:"primaryKey"`
	FormID   string `gorm:"type:text;not null;index:idx_form_file"`
	FileID   string `gorm:"type:text;not null;index:idx_form_file"`
	MimeType string `gorm:"type:text"`
	URL      string `gorm:"type:text"`
	Name     string `gorm:"type:text"`
	Size     int64  `gorm:"default:0"`
	Storage  string `gorm:"type:text"`

	CreatedAt time.Time
}
