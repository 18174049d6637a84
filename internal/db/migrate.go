package db

import (
	"fmt"

	"github.com/prepdesk/b2bquota/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Org{},
		&models.User{},
		&models.OrgMember{},
		&models.Admin{},
		&models.TestType{},
		&models.QuotaLot{},
		&models.MemberQuotaBalance{},
		&models.QuotaLedgerEntry{},
		&models.Setting{},
	)
}
