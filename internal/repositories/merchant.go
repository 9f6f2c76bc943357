package repositories

import (
	"context"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type MerchantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
	Create(ctx context.Context, merchant *models.Merchant) error
	UpdateRates(ctx context.Context, id string, earnBps, redeemLimitBps int64) error
	SetAPIKeyHash(ctx context.Context, id, hash string) error
}

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	if db == nil {
		panic("db is required")
	}
	return &merchantRepository{db: db}
}

// GetByID always reads through to the database; merchant settings change
// at runtime and are never cached.
func (r *merchantRepository) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperrors.ErrMerchantNotFound, "get merchant")
	}
	return &merchant, nil
}

func (r *merchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(merchant).Error, "create merchant")
}

// UpdateRates changes the merchant's flat rates and, in the same
// transaction, the auto-created Base tier that mirrors them.
func (r *merchantRepository) UpdateRates(ctx context.Context, id string, earnBps, redeemLimitBps int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Merchant{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"earn_bps": earnBps, "redeem_limit_bps": redeemLimitBps})
		if result.Error != nil {
			return errors.Wrap(result.Error, "update merchant rates")
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrMerchantNotFound
		}
		err := tx.Model(&models.LoyaltyTier{}).
			Where("merchant_id = ? AND auto_created = ?", id, true).
			Updates(map[string]interface{}{"earn_rate_bps": nonNegative(earnBps), "redeem_rate_bps": nonNegative(redeemLimitBps)}).Error
		return errors.Wrap(err, "update base tier rates")
	})
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func (r *merchantRepository) SetAPIKeyHash(ctx context.Context, id, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Merchant{}).
		Where("id = ?", id).
		Update("api_key_hash", hash)
	if result.Error != nil {
		return errors.Wrap(result.Error, "set merchant api key")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrMerchantNotFound
	}
	return nil
}
