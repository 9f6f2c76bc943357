package loyalty

import (
	"loyalty/internal/models"
	"loyalty/internal/services/redeemcap"
)

// QuoteRequest asks for a hold. Mode must already be one of the Mode
// constants; transports parse it with validation.ParseMode.
type QuoteRequest struct {
	Mode          models.Mode
	MerchantID    string
	CustomerToken string
	OrderID       string
	Total         float64
	EligibleTotal float64
	Items         []redeemcap.Item
	OutletID      *string
	StaffID       *string
	// QrToken is a signed single-use token presented separately from
	// CustomerToken. Its subject must match the customer.
	QrToken string
}

type QuoteResult struct {
	HoldID          string                `json:"holdId"`
	Mode            models.Mode           `json:"mode"`
	CustomerID      string                `json:"customerId"`
	DiscountToApply int64                 `json:"discountToApply"`
	PointsToEarn    int64                 `json:"pointsToEarn"`
	FinalPayable    *float64              `json:"finalPayable,omitempty"`
	Balance         *int64                `json:"balance,omitempty"`
	Allocation      *redeemcap.Allocation `json:"allocation,omitempty"`
	Replayed        bool                  `json:"replayed,omitempty"`
	Message         string                `json:"message"`
}

type CommitRequest struct {
	MerchantID     string
	HoldID         string
	OrderID        string
	ReceiptNumber  *string
	IdempotencyKey string
}

type CommitResult struct {
	HoldID           string `json:"holdId"`
	ReceiptID        string `json:"receiptId"`
	OrderID          string `json:"orderId"`
	CustomerID       string `json:"customerId"`
	RedeemApplied    int64  `json:"redeemApplied"`
	EarnApplied      int64  `json:"earnApplied"`
	Balance          *int64 `json:"balance,omitempty"`
	AlreadyCommitted bool   `json:"alreadyCommitted"`
}

type CancelResult struct {
	HoldID string            `json:"holdId"`
	Status models.HoldStatus `json:"status"`
	OK     bool              `json:"ok"`
}

// RefundRequest identifies the receipt by OrderID, or by ReceiptNumber
// when OrderID is empty.
type RefundRequest struct {
	MerchantID          string
	OrderID             string
	ReceiptNumber       string
	RefundTotal         float64
	RefundEligibleTotal *float64
	StaffID             *string
	IdempotencyKey      string
}

type RefundResult struct {
	ReceiptID       string  `json:"receiptId"`
	OrderID         string  `json:"orderId"`
	CustomerID      string  `json:"customerId"`
	Share           float64 `json:"share"`
	PointsRestored  int64   `json:"pointsRestored"`
	PointsRevoked   int64   `json:"pointsRevoked"`
	Balance         int64   `json:"balance"`
	ReceiptCanceled bool    `json:"receiptCanceled"`
}
