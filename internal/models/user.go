package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an end-user account (a test taker).
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`             // Full name.
	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;not null;index"`       // Contact email.
	Phone    string `gorm:"type:text"`                      // Contact phone, if any.
	Password string `gorm:"type:text"`                      // Hashed password, empty until set.

	ReferralCode string `gorm:"type:text"`              // Referral code assigned at creation.
	Status       bool   `gorm:"not null;default:true"`  // Whether the user can sign in.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}
