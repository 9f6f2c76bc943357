package wallet

import (
	"time"

	"loyalty/internal/models"
)

// Entry is one ledger line to post. Amount is signed.
type Entry struct {
	Type      models.TransactionType
	Amount    int64
	OrderID   string
	HoldID    *string
	ReceiptID *string
	OutletID  *string
	StaffID   *string
	Metadata  models.JSON
}

// AdjustRequest is a manual balance change outside the quote flow.
type AdjustRequest struct {
	MerchantID string
	CustomerID string
	Type       models.TransactionType
	Amount     int64
	Reason     string
	StaffID    *string
}

// BalanceSnapshot is what balance reads return.
type BalanceSnapshot struct {
	MerchantID string    `json:"merchantId"`
	CustomerID string    `json:"customerId"`
	WalletID   string    `json:"walletId"`
	Balance    int64     `json:"balance"`
	AsOf       time.Time `json:"asOf"`
}

// Mismatch is a wallet whose stored balance differs from its log.
type Mismatch struct {
	WalletID   string `json:"walletId"`
	MerchantID string `json:"merchantId"`
	CustomerID string `json:"customerId"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledgerSum"`
}

// ReconcileReport summarises a Reconcile run.
type ReconcileReport struct {
	WalletsChecked int        `json:"walletsChecked"`
	Mismatches     []Mismatch `json:"mismatches"`
	Repaired       int        `json:"repaired"`
}
