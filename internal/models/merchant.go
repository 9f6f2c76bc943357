package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MerchantStatusActive    = "active"
	MerchantStatusSuspended = "suspended"
)

// Merchant carries the merchant-level flat rates used when no tier applies.
// Settings are mutated at runtime by the portal, so callers load them fresh
// for every quote.
type Merchant struct {
	ID             string `gorm:"primaryKey;size:36"`
	Name           string `gorm:"not null"`
	APIKeyHash     string `gorm:"column:api_key_hash" json:"-"`
	EarnBps        int64  `gorm:"not null;default:0"`
	RedeemLimitBps int64  `gorm:"not null;default:0"`
	Status         string `gorm:"not null;default:'active'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MerchantStatusActive
	}
	return nil
}

// MerchantSettings is the per-call snapshot of a merchant's rate defaults.
type MerchantSettings struct {
	MerchantID     string
	EarnBps        int64
	RedeemLimitBps int64
}

func (m *Merchant) Settings() MerchantSettings {
	return MerchantSettings{
		MerchantID:     m.ID,
		EarnBps:        m.EarnBps,
		RedeemLimitBps: m.RedeemLimitBps,
	}
}
