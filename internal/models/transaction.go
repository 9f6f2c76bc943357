package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType classifies a ledger line.
type TransactionType string

const (
	TransactionTypeEarn     TransactionType = "EARN"
	TransactionTypeRedeem   TransactionType = "REDEEM"
	TransactionTypeRefund   TransactionType = "REFUND"
	TransactionTypeCampaign TransactionType = "CAMPAIGN"
	TransactionTypeAdjust   TransactionType = "ADJUST"
	TransactionTypeReferral TransactionType = "REFERRAL"
)

// Transaction is an immutable ledger line. Amount is signed: credits are
// positive, debits negative. Rows are only ever inserted alongside the
// matching wallet balance change.
type Transaction struct {
	ID         string          `gorm:"primaryKey;size:36"`
	MerchantID string          `gorm:"size:36;not null;index:idx_tx_order"`
	CustomerID string          `gorm:"size:64;not null;index"`
	WalletID   string          `gorm:"size:36;not null;index"`
	Type       TransactionType `gorm:"size:16;not null"`
	Amount     int64           `gorm:"not null"`
	OrderID    string          `gorm:"size:128;index:idx_tx_order"`
	HoldID     *string         `gorm:"size:36;index"`
	ReceiptID  *string         `gorm:"size:36;index"`
	OutletID   *string         `gorm:"size:64"`
	StaffID    *string         `gorm:"size:64"`
	Metadata   JSON            `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
