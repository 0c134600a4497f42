package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is an append-only snapshot of a record's submission document,
// written after every reconciliation. The latest snapshot is the "prior"
// document of the next session.
type Submission struct {
	ID       uint           `gorm:"primaryKey"`
	RecordID string         `gorm:"type:text;not null;index"`
	Draft    bool           `gorm:"default:false"`
	Data     datatypes.JSON `gorm:"not null"`

	CreatedAt time.Time
}
