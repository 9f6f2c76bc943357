package repositories

import (
	"context"
	"time"

	"loyalty/internal/models"
)

// LedgerRepository is the unit of work behind every balance mutation. All
// methods called on the repository handed to ExecuteInTransaction's callback
// share one database transaction.
type LedgerRepository interface {
	ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error

	// Wallets
	GetOrCreateWallet(ctx context.Context, merchantID, customerID, walletType string) (*models.Wallet, error)
	GetWallet(ctx context.Context, merchantID, customerID, walletType string) (*models.Wallet, error)
	LockWallet(ctx context.Context, walletID string) (*models.Wallet, error)
	AddToBalance(ctx context.Context, walletID string, delta int64) error
	ListWallets(ctx context.Context, merchantID string) ([]models.Wallet, error)

	// Transactions (append-only)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	SumTransactions(ctx context.Context, walletID string) (int64, error)
	SumTransactionsByWallet(ctx context.Context, merchantID string) (map[string]int64, error)
	SumRefunds(ctx context.Context, receiptID string) (RefundTotals, error)
	CountTransactionsByHold(ctx context.Context, holdID string) (int64, error)
	// ListTransactions pages through a customer's ledger, newest first, and
	// reports the total number of lines.
	ListTransactions(ctx context.Context, merchantID, customerID string, offset, limit int) ([]models.Transaction, int64, error)

	// Holds
	CreateHold(ctx context.Context, hold *models.Hold) error
	GetHold(ctx context.Context, merchantID, holdID string) (*models.Hold, error)
	GetHoldByQrJti(ctx context.Context, jti string) (*models.Hold, error)
	TransitionHold(ctx context.Context, merchantID, holdID string, to models.HoldStatus, at time.Time) (bool, error)

	// Receipts
	InsertReceipt(ctx context.Context, receipt *models.Receipt) (bool, error)
	GetReceiptByOrder(ctx context.Context, merchantID, orderID string) (*models.Receipt, error)
	GetReceiptByNumber(ctx context.Context, merchantID, receiptNumber string) (*models.Receipt, error)
	GetReceiptByHold(ctx context.Context, holdID string) (*models.Receipt, error)
	LockReceipt(ctx context.Context, receiptID string) (*models.Receipt, error)
	MarkReceiptCanceled(ctx context.Context, receiptID string, at time.Time) error
}

// RefundTotals is what earlier refunds of one receipt already moved.
// Restored is the credited redeem share, Revoked the clawed back earn share,
// both as positive point counts.
type RefundTotals struct {
	Restored int64
	Revoked  int64
}
