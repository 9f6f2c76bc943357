package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const WalletTypePoints = "POINTS"

// Wallet is the balance projection backed by the transaction log.
type Wallet struct {
	ID         string `gorm:"primaryKey;size:36"`
	MerchantID string `gorm:"size:36;not null;uniqueIndex:idx_wallet_owner"`
	CustomerID string `gorm:"size:64;not null;uniqueIndex:idx_wallet_owner"`
	Type       string `gorm:"size:16;not null;default:'POINTS';uniqueIndex:idx_wallet_owner"`
	Balance    int64  `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Type == "" {
		w.Type = WalletTypePoints
	}
	// Balance only moves through ledger entries
	w.Balance = 0
	return nil
}
