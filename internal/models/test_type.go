package models

import (
	"time"

	"gorm.io/gorm"
)

// Test kinds supported by the platform.
const (
	// TestKindIELTS identifies the IELTS exam family.
	TestKindIELTS = "IELTS"
	// TestKindTOEFL identifies the TOEFL exam family.
	TestKindTOEFL = "TOEFL"
)

// TestType is a master catalog row for one skill/section of a test kind.
type TestType struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TestKind   string `gorm:"type:text;not null;index:idx_test_types_kind_type"` // Exam family.
	TestTypeID int    `gorm:"not null;index:idx_test_types_kind_type"`           // Type id within the kind.
	Label      string `gorm:"type:text;not null"`                                // Human-readable label.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (TestType) TableName() string {
	return "m_test_types"
}
