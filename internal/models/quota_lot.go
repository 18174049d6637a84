package models

import (
	"time"

	"gorm.io/gorm"
)

// QuotaLot is one purchased batch of test attempts owned by an organization.
//
// InitialQuantity is the topup basis and never changes after the purchase is
// recorded; RemainingQuantity is decremented by allocation and incremented by
// revocation and must never go negative. Inactive or soft-deleted lots are
// excluded from consumption and aggregation.
type QuotaLot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID      uint64 `gorm:"not null;index:idx_quota_lots_key"` // Owning organization ID.
	TestKind   string `gorm:"type:text;not null;index:idx_quota_lots_key"` // Exam family.
	TestTypeID int    `gorm:"not null;index:idx_quota_lots_key"`           // Test type within the kind.

	InitialQuantity   int `gorm:"not null"`           // Purchased quantity, immutable.
	RemainingQuantity int `gorm:"not null;default:0"` // Unallocated quantity, >= 0.

	Status    bool       `gorm:"not null;default:true"` // Whether the lot is consumable.
	ExpiredAt *time.Time `gorm:"index"`                 // Lot expiry, if any.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (QuotaLot) TableName() string {
	return "b2b_org_quota_lots"
}
