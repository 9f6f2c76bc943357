package models

import "time"

// QrNonce marks a QR token id as consumed. Rows are written outside the
// quote's own transaction and are never deleted.
type QrNonce struct {
	Jti        string `gorm:"primaryKey;size:64"`
	MerchantID string `gorm:"size:36;not null;index"`
	CustomerID string `gorm:"size:64;not null"`
	IssuedAt   *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}
