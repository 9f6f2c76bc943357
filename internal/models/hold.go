package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mode is the direction a hold moves the wallet.
type Mode string

const (
	ModeEarn   Mode = "EARN"
	ModeRedeem Mode = "REDEEM"
)

// HoldStatus is the lifecycle state of a hold. COMMITTED and CANCELED are
// terminal.
type HoldStatus string

const (
	HoldStatusPending   HoldStatus = "PENDING"
	HoldStatusCommitted HoldStatus = "COMMITTED"
	HoldStatusCanceled  HoldStatus = "CANCELED"
)

// Hold is the intent produced by a quote. Total and EligibleTotal are
// snapshotted so commit never depends on caller-supplied values.
type Hold struct {
	ID            string     `gorm:"primaryKey;size:36"`
	MerchantID    string     `gorm:"size:36;not null;index"`
	CustomerID    string     `gorm:"size:64;not null;index"`
	Mode          Mode       `gorm:"size:8;not null"`
	EarnPoints    int64      `gorm:"not null;default:0"`
	RedeemAmount  int64      `gorm:"not null;default:0"`
	OrderID       string     `gorm:"size:128"`
	Total         float64    `gorm:"not null;default:0"`
	EligibleTotal float64    `gorm:"not null;default:0"`
	QrJti         *string    `gorm:"size:64;uniqueIndex"`
	OutletID      *string    `gorm:"size:64"`
	StaffID       *string    `gorm:"size:64"`
	Status        HoldStatus `gorm:"size:16;not null;default:'PENDING';index"`
	CommittedAt   *time.Time
	CanceledAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HoldStatusPending
	}
	return nil
}

// IsTerminal reports whether no further transition is allowed.
func (h *Hold) IsTerminal() bool {
	return h.Status == HoldStatusCommitted || h.Status == HoldStatusCanceled
}
