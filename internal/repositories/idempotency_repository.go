package repositories

import (
	"context"
	"time"

	"loyalty/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// IdempotencyRepository stores replayable responses keyed by (merchant, key).
type IdempotencyRepository interface {
	Get(ctx context.Context, merchantID, key string) (*models.IdempotencyKey, error)
	// Insert stores entry unless the key exists, in which case entry is
	// replaced by the stored row and created is false.
	Insert(ctx context.Context, entry *models.IdempotencyKey) (bool, error)
	// Replace overwrites an expired entry in place. It reports false when the
	// stored row was no longer expired at now.
	Replace(ctx context.Context, entry *models.IdempotencyKey, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, merchantID, key string, now time.Time) error
	// PurgeExpired deletes every entry expired at now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type idempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	if db == nil {
		panic("db is required")
	}
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) Get(ctx context.Context, merchantID, key string) (*models.IdempotencyKey, error) {
	var entry models.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND idempotency_key = ?", merchantID, key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get idempotency key")
	}
	return &entry, nil
}

func (r *idempotencyRepository) Insert(ctx context.Context, entry *models.IdempotencyKey) (bool, error) {
	merchantID, key := entry.MerchantID, entry.Key
	created, err := InsertOrGetExisting(ctx, r.db, entry, func(tx *gorm.DB, dest *models.IdempotencyKey) error {
		return tx.Where("merchant_id = ? AND idempotency_key = ?", merchantID, key).First(dest).Error
	})
	return created, errors.Wrap(err, "insert idempotency key")
}

func (r *idempotencyRepository) Replace(ctx context.Context, entry *models.IdempotencyKey, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.IdempotencyKey{}).
		Where("merchant_id = ? AND idempotency_key = ? AND expires_at <= ?", entry.MerchantID, entry.Key, now).
		Updates(map[string]interface{}{
			"operation":  entry.Operation,
			"response":   entry.Response,
			"expires_at": entry.ExpiresAt,
			"created_at": now,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "replace idempotency key")
	}
	return res.RowsAffected == 1, nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, merchantID, key string, now time.Time) error {
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND idempotency_key = ? AND expires_at <= ?", merchantID, key, now).
		Delete(&models.IdempotencyKey{}).Error
	return errors.Wrap(err, "delete expired idempotency key")
}

func (r *idempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, errors.Wrap(res.Error, "purge expired idempotency keys")
}
