package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberQuotaBalance is the current entitlement of one user for one test type.
//
// One logical row exists per (user, test kind, test type); the allocation
// engine looks the row up before creating it so duplicates cannot appear.
type MemberQuotaBalance struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID     uint64 `gorm:"not null;index:idx_member_quota_key"`           // Owning user ID.
	TestKind   string `gorm:"type:text;not null;index:idx_member_quota_key"` // Exam family.
	TestTypeID int    `gorm:"not null;index:idx_member_quota_key"`           // Test type within the kind.

	Quantity int    `gorm:"not null;default:0"`               // Granted attempts, >= 0.
	Currency string `gorm:"type:text;not null;default:'IDR'"` // Currency of the sourcing purchase.

	ExpiredAt *time.Time // Entitlement expiry, if any.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (MemberQuotaBalance) TableName() string {
	return "user_quota_balances"
}
