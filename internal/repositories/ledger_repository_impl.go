package repositories

import (
	"context"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	if db == nil {
		panic("db is required")
	}
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}

func (r *ledgerRepository) GetOrCreateWallet(ctx context.Context, merchantID, customerID, walletType string) (*models.Wallet, error) {
	wallet := &models.Wallet{MerchantID: merchantID, CustomerID: customerID, Type: walletType}
	_, err := InsertOrGetExisting(ctx, r.db, wallet, func(tx *gorm.DB, dest *models.Wallet) error {
		return tx.Where("merchant_id = ? AND customer_id = ? AND type = ?", merchantID, customerID, walletType).
			First(dest).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "get or create wallet")
	}
	return wallet, nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, merchantID, customerID, walletType string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_id = ? AND type = ?", merchantID, customerID, walletType).
		First(&wallet).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrWalletNotFound, "get wallet")
	}
	return &wallet, nil
}

func (r *ledgerRepository) LockWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "id = ?", walletID).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrWalletNotFound, "lock wallet")
	}
	return &wallet, nil
}

func (r *ledgerRepository) AddToBalance(ctx context.Context, walletID string, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update wallet balance")
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrWalletNotFound
	}
	return nil
}

func (r *ledgerRepository) ListWallets(ctx context.Context, merchantID string) ([]models.Wallet, error) {
	var wallets []models.Wallet
	query := r.db.WithContext(ctx).Order("merchant_id, customer_id")
	if merchantID != "" {
		query = query.Where("merchant_id = ?", merchantID)
	}
	if err := query.Find(&wallets).Error; err != nil {
		return nil, errors.Wrap(err, "list wallets")
	}
	return wallets, nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, merchantID, customerID string, offset, limit int) ([]models.Transaction, int64, error) {
	owner := func(db *gorm.DB) *gorm.DB {
		return db.Where("merchant_id = ? AND customer_id = ?", merchantID, customerID)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Scopes(owner).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count transactions")
	}
	var lines []models.Transaction
	err := r.db.WithContext(ctx).
		Scopes(owner).
		Order("created_at DESC, id").
		Offset(offset).
		Limit(limit).
		Find(&lines).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list transactions")
	}
	return lines, total, nil
}

func (r *ledgerRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(tx).Error, "create transaction")
}

func (r *ledgerRepository) SumTransactions(ctx context.Context, walletID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("wallet_id = ?", walletID).
		Select("CAST(COALESCE(SUM(amount), 0) AS BIGINT)").
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrap(err, "sum transactions")
	}
	return total, nil
}

func (r *ledgerRepository) SumTransactionsByWallet(ctx context.Context, merchantID string) (map[string]int64, error) {
	var rows []struct {
		WalletID string
		Total    int64
	}
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("wallet_id, CAST(COALESCE(SUM(amount), 0) AS BIGINT) AS total").
		Group("wallet_id")
	if merchantID != "" {
		query = query.Where("merchant_id = ?", merchantID)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "sum transactions by wallet")
	}
	sums := make(map[string]int64, len(rows))
	for _, row := range rows {
		sums[row.WalletID] = row.Total
	}
	return sums, nil
}

func (r *ledgerRepository) SumRefunds(ctx context.Context, receiptID string) (RefundTotals, error) {
	var row struct {
		Restored int64
		Revoked  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("receipt_id = ? AND type = ?", receiptID, models.TransactionTypeRefund).
		Select(`CAST(COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS BIGINT) AS restored,
			CAST(COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS BIGINT) AS revoked`).
		Scan(&row).Error
	if err != nil {
		return RefundTotals{}, errors.Wrap(err, "sum refunds")
	}
	return RefundTotals{Restored: row.Restored, Revoked: row.Revoked}, nil
}

func (r *ledgerRepository) CountTransactionsByHold(ctx context.Context, holdID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("hold_id = ?", holdID).Count(&count).Error
	return count, errors.Wrap(err, "count hold transactions")
}

func (r *ledgerRepository) CreateHold(ctx context.Context, hold *models.Hold) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(hold).Error, "create hold")
}

func (r *ledgerRepository) GetHold(ctx context.Context, merchantID, holdID string) (*models.Hold, error) {
	var hold models.Hold
	err := r.db.WithContext(ctx).
		Where("id = ? AND merchant_id = ?", holdID, merchantID).
		First(&hold).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrHoldNotFound, "get hold")
	}
	return &hold, nil
}

func (r *ledgerRepository) GetHoldByQrJti(ctx context.Context, jti string) (*models.Hold, error) {
	var hold models.Hold
	if err := r.db.WithContext(ctx).Where("qr_jti = ?", jti).First(&hold).Error; err != nil {
		return nil, notFound(err, apperrors.ErrHoldNotFound, "get hold by qr token")
	}
	return &hold, nil
}

// TransitionHold moves a PENDING hold to the given terminal status. It
// reports false, without error, when the hold was no longer PENDING.
func (r *ledgerRepository) TransitionHold(ctx context.Context, merchantID, holdID string, to models.HoldStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	switch to {
	case models.HoldStatusCommitted:
		updates["committed_at"] = at
	case models.HoldStatusCanceled:
		updates["canceled_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Hold{}).
		Where("id = ? AND merchant_id = ? AND status = ?", holdID, merchantID, models.HoldStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "transition hold")
	}
	return res.RowsAffected == 1, nil
}

func (r *ledgerRepository) InsertReceipt(ctx context.Context, receipt *models.Receipt) (bool, error) {
	merchantID, orderID := receipt.MerchantID, receipt.OrderID
	created, err := InsertOrGetExisting(ctx, r.db, receipt, func(tx *gorm.DB, dest *models.Receipt) error {
		return tx.Where("merchant_id = ? AND order_id = ?", merchantID, orderID).First(dest).Error
	})
	return created, errors.Wrap(err, "insert receipt")
}

func (r *ledgerRepository) GetReceiptByOrder(ctx context.Context, merchantID, orderID string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND order_id = ?", merchantID, orderID).
		First(&receipt).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrReceiptNotFound, "get receipt by order")
	}
	return &receipt, nil
}

func (r *ledgerRepository) GetReceiptByNumber(ctx context.Context, merchantID, receiptNumber string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND receipt_number = ?", merchantID, receiptNumber).
		Order("created_at DESC").
		First(&receipt).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrReceiptNotFound, "get receipt by number")
	}
	return &receipt, nil
}

func (r *ledgerRepository) GetReceiptByHold(ctx context.Context, holdID string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.WithContext(ctx).Where("hold_id = ?", holdID).First(&receipt).Error; err != nil {
		return nil, notFound(err, apperrors.ErrReceiptNotFound, "get receipt by hold")
	}
	return &receipt, nil
}

func (r *ledgerRepository) LockReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&receipt, "id = ?", receiptID).Error
	if err != nil {
		return nil, notFound(err, apperrors.ErrReceiptNotFound, "lock receipt")
	}
	return &receipt, nil
}

func (r *ledgerRepository) MarkReceiptCanceled(ctx context.Context, receiptID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id = ? AND canceled_at IS NULL", receiptID).
		Updates(map[string]interface{}{"canceled_at": at, "updated_at": at}).Error
	return errors.Wrap(err, "cancel receipt")
}

// notFound maps gorm's missing-row error onto the given domain error and
// wraps anything else with op.
func notFound(err error, missing *apperrors.DomainError, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return missing
	}
	return errors.Wrap(err, op)
}
