package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyKey caches the response of a completed commit or refund.
type IdempotencyKey struct {
	ID         string    `gorm:"primaryKey;size:36"`
	MerchantID string    `gorm:"size:36;not null;uniqueIndex:idx_idem_key"`
	Key        string    `gorm:"column:idempotency_key;size:128;not null;uniqueIndex:idx_idem_key"`
	Operation  string    `gorm:"size:32;not null"`
	Response   string    `gorm:"type:text;not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}

func (k *IdempotencyKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

func (k *IdempotencyKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
