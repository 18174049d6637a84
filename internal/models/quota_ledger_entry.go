package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuotaLedgerEntry is the immutable audit record of one allocation or
// revocation. Quantity is positive for allocations and negative for
// revocations; OrgRemainingAfter snapshots the organization's aggregate
// remaining quantity for the test type inside the producing transaction.
//
// Entries are append-only. Soft deletion exists for compliance redaction
// only; corrections are new entries.
type QuotaLedgerEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID   uint64 `gorm:"not null;index:idx_quota_ledger_key"` // Organization the quota belongs to.
	AdminID uint64 `gorm:"not null;index"`                      // Acting administrator.
	UserID  uint64 `gorm:"not null;index"`                      // Subject user.

	TestKind   string `gorm:"type:text;not null;index:idx_quota_ledger_key"` // Exam family.
	TestTypeID int    `gorm:"not null;index:idx_quota_ledger_key"`           // Test type within the kind.

	Quantity          int `gorm:"not null"` // Signed quantity moved, never zero.
	OrgRemainingAfter int `gorm:"not null"` // Org remaining snapshot after the event.

	Note datatypes.JSON `gorm:"type:jsonb"` // Optional structured context.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Redaction marker, never a correction.
}

// TableName overrides the default table name.
func (QuotaLedgerEntry) TableName() string {
	return "b2b_org_quota_ledger"
}
