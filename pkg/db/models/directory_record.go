package models

import (
	"time"

	"github.com/leftcoastfs/bridge-backend/pkg/enums"
)

// DirectoryRecord keys one (user, company) onboarding pair. The company ID is
// the accounting ledger's realm identifier; the two credential columns are
// opaque tokens rotated in place.
type DirectoryRecord struct {
	UserID    string `gorm:"column:user_id;primaryKey"`
	CompanyID string `gorm:"column:company_id;primaryKey"`

	AccountingRefreshToken string `gorm:"column:accounting_refresh_token;not null"`
	LedgerToken            string `gorm:"column:ledger_token;not null"`

	Status enums.ProvisioningStatus `gorm:"column:status;type:provisioning_status;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by migrations.
func (DirectoryRecord) TableName() string { return "directory_records" }
