package models

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles within an organization.
const (
	// MemberRoleAdmin marks an organization administrator.
	MemberRoleAdmin = "Admin"
	// MemberRoleUser marks a regular member.
	MemberRoleUser = "User"
)

// OrgMember links a user to an organization with a role.
type OrgMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID  uint64 `gorm:"not null;index"` // Owning organization ID.
	UserID uint64 `gorm:"not null;index"` // Member user ID.

	Role   string `gorm:"type:text;not null;default:'User'"` // Membership role.
	Status bool   `gorm:"not null;default:true"`             // Whether the membership is active.

	User *User `gorm:"foreignKey:UserID"` // Member user record.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (OrgMember) TableName() string {
	return "b2b_org_members"
}
