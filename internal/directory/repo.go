package directory

import (
	"context"

	"gorm.io/gorm"

	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
)

// Repository handles directory record persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.DirectoryRecord) error
	Find(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.DirectoryRecord, error)
	ListAll(ctx context.Context) ([]models.DirectoryRecord, error)
	UpdateStatus(ctx context.Context, userID, companyID string, status enums.ProvisioningStatus) error
	UpdateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a directory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.DirectoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Find(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
	var record models.DirectoryRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]models.DirectoryRecord, error) {
	var records []models.DirectoryRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.DirectoryRecord, error) {
	var records []models.DirectoryRecord
	if err := r.db.WithContext(ctx).
		Order("user_id ASC, company_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) UpdateStatus(ctx context.Context, userID, companyID string, status enums.ProvisioningStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.DirectoryRecord{}).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error {
	result := r.db.WithContext(ctx).
		Model(&models.DirectoryRecord{}).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Update("accounting_refresh_token", refreshToken)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
