package models

import "time"

// Descriptor is one file-capable form field registered for a record. Rows
// are write-once; they are only ever created or deleted.
type Descriptor struct {
	ID           uint   `gorm:"primaryKey"`
	DescriptorID string `gorm:"type:text;not null;uniqueIndex"`
	RecordID     string `gorm:"type:text;not null;index:idx_record_key"`
	FieldKey     string `gorm:"type:text;not null;index:idx_record_key"`

	Label             string `gorm:"type:text"`
	GridKey           string `gorm:"type:text;index"`
	RowIndex          int    `gorm:"default:0"`
	Count             int    `gorm:"default:0"`
	IsMultiple        bool   `gorm:"default:false"`
	IsDataGrid        bool   `gorm:"default:false"`
	Condition         string `gorm:"type:text"`
	IsCustomCondition bool   `gorm:"default:false"`
	ValidateRequired  bool   `gorm:"default:false"`
	FilePattern       string `gorm:"type:text"`

	CreatedAt time.Time

	// Relationships
	Files []FileRecord `gorm:"foreignKey:FileID;references:DescriptorID;constraint:OnDelete:CASCADE"`
}
