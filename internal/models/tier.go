package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const BaseTierName = "Base"

// LoyaltyTier is a rate bracket. InitialFor holds the merchant id on the
// merchant's initial tier and NULL elsewhere, so its unique index allows at
// most one initial tier per merchant. AutoCreated marks the Base tier built
// from merchant settings; its rates follow the merchant's rates.
type LoyaltyTier struct {
	ID               string  `gorm:"primaryKey;size:36"`
	MerchantID       string  `gorm:"size:36;not null;index"`
	Name             string  `gorm:"size:64;not null"`
	EarnRateBps      int64   `gorm:"not null;default:0"`
	RedeemRateBps    int64   `gorm:"not null;default:0"`
	ThresholdAmount  float64 `gorm:"not null;default:0"`
	MinPaymentAmount *float64
	IsInitial        bool    `gorm:"not null;default:false"`
	InitialFor       *string `gorm:"size:36;uniqueIndex"`
	AutoCreated      bool    `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t *LoyaltyTier) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.IsInitial && t.InitialFor == nil {
		merchantID := t.MerchantID
		t.InitialFor = &merchantID
	}
	return nil
}

// TierAssignment binds a customer to a tier, optionally until ExpiresAt.
type TierAssignment struct {
	ID         string    `gorm:"primaryKey;size:36"`
	MerchantID string    `gorm:"size:36;not null;index:idx_tier_assignment"`
	CustomerID string    `gorm:"size:64;not null;index:idx_tier_assignment"`
	TierID     string    `gorm:"size:36;not null"`
	AssignedAt time.Time `gorm:"not null"`
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

func (a *TierAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return nil
}
