package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt records a completed sale. The (merchant, order) uniqueness doubles
// as the commit idempotency backstop.
type Receipt struct {
	ID            string  `gorm:"primaryKey;size:36"`
	MerchantID    string  `gorm:"size:36;not null;uniqueIndex:idx_receipt_order;index:idx_receipt_number"`
	OrderID       string  `gorm:"size:128;not null;uniqueIndex:idx_receipt_order"`
	ReceiptNumber *string `gorm:"size:128;index:idx_receipt_number"`
	HoldID        string  `gorm:"size:36;not null;index"`
	CustomerID    string  `gorm:"size:64;not null;index"`
	Total         float64 `gorm:"not null;default:0"`
	EligibleTotal float64 `gorm:"not null;default:0"`
	RedeemApplied int64   `gorm:"not null;default:0"`
	EarnApplied   int64   `gorm:"not null;default:0"`
	OutletID      *string `gorm:"size:64"`
	StaffID       *string `gorm:"size:64"`
	CanceledAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
