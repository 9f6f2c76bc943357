package repositories

import (
	"context"
	"time"

	"loyalty/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TierRepository reads and maintains loyalty tiers and customer assignments.
type TierRepository interface {
	// ActiveAssignment returns the most recently assigned, unexpired
	// assignment together with its tier, or nil when there is none.
	ActiveAssignment(ctx context.Context, merchantID, customerID string, now time.Time) (*models.TierAssignment, *models.LoyaltyTier, error)
	InitialTier(ctx context.Context, merchantID string) (*models.LoyaltyTier, error)
	CountTiers(ctx context.Context, merchantID string) (int64, error)
	// CreateInitialTier stores tier as the merchant's initial tier, or loads
	// the one a concurrent caller created first.
	CreateInitialTier(ctx context.Context, tier *models.LoyaltyTier) (bool, error)
	CreateTier(ctx context.Context, tier *models.LoyaltyTier) error
	Assign(ctx context.Context, assignment *models.TierAssignment) error
}

type tierRepository struct {
	db *gorm.DB
}

func NewTierRepository(db *gorm.DB) TierRepository {
	if db == nil {
		panic("db is required")
	}
	return &tierRepository{db: db}
}

func (r *tierRepository) ActiveAssignment(ctx context.Context, merchantID, customerID string, now time.Time) (*models.TierAssignment, *models.LoyaltyTier, error) {
	var assignment models.TierAssignment
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "get tier assignment")
	}

	var tier models.LoyaltyTier
	err = r.db.WithContext(ctx).
		Where("id = ? AND merchant_id = ?", assignment.TierID, merchantID).
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// assignment points at a deleted tier
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "get assigned tier")
	}
	return &assignment, &tier, nil
}

func (r *tierRepository) InitialTier(ctx context.Context, merchantID string) (*models.LoyaltyTier, error) {
	var tier models.LoyaltyTier
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND is_initial = ?", merchantID, true).
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get initial tier")
	}
	return &tier, nil
}

func (r *tierRepository) CountTiers(ctx context.Context, merchantID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LoyaltyTier{}).Where("merchant_id = ?", merchantID).Count(&count).Error
	return count, errors.Wrap(err, "count tiers")
}

func (r *tierRepository) CreateInitialTier(ctx context.Context, tier *models.LoyaltyTier) (bool, error) {
	tier.IsInitial = true
	merchantID := tier.MerchantID
	created, err := InsertOrGetExisting(ctx, r.db, tier, func(tx *gorm.DB, dest *models.LoyaltyTier) error {
		return tx.Where("initial_for = ?", merchantID).First(dest).Error
	})
	return created, errors.Wrap(err, "create initial tier")
}

func (r *tierRepository) CreateTier(ctx context.Context, tier *models.LoyaltyTier) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(tier).Error, "create tier")
}

func (r *tierRepository) Assign(ctx context.Context, assignment *models.TierAssignment) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(assignment).Error, "assign tier")
}
