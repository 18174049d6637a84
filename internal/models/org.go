package models

import (
	"time"

	"gorm.io/gorm"
)

// Org represents a B2B customer organization.
type Org struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"` // Organization display name.
	Logo string `gorm:"type:text"`          // Logo URL, if any.

	Status bool `gorm:"not null;default:true"` // Whether the org is active.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (Org) TableName() string {
	return "b2b_orgs"
}
