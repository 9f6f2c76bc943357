// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"loyalty/internal/models"
	"loyalty/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated, private in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repositories.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateMerchant stores a merchant with the given flat rates.
func CreateMerchant(t testing.TB, db *gorm.DB, earnBps, redeemLimitBps int64) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{Name: "Test Coffee", EarnBps: earnBps, RedeemLimitBps: redeemLimitBps}
	require.NoError(t, db.Create(merchant).Error)
	return merchant
}

// CreateTier stores a tier for merchantID.
func CreateTier(t testing.TB, db *gorm.DB, tier *models.LoyaltyTier) *models.LoyaltyTier {
	t.Helper()
	require.NoError(t, db.Create(tier).Error)
	return tier
}

// Fund credits a customer wallet through the ledger so the balance stays
// equal to the sum of its transactions.
func Fund(t testing.TB, db *gorm.DB, merchantID, customerID string, points int64) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	repo := repositories.NewLedgerRepository(db)
	var wallet *models.Wallet
	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		w, err := tx.GetOrCreateWallet(ctx, merchantID, customerID, models.WalletTypePoints)
		if err != nil {
			return err
		}
		if err := tx.AddToBalance(ctx, w.ID, points); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &models.Transaction{
			MerchantID: merchantID,
			CustomerID: customerID,
			WalletID:   w.ID,
			Type:       models.TransactionTypeAdjust,
			Amount:     points,
		}); err != nil {
			return err
		}
		wallet, err = tx.LockWallet(ctx, w.ID)
		return err
	})
	require.NoError(t, err)
	return wallet
}

// Balance reads a wallet balance straight from the table.
func Balance(t testing.TB, db *gorm.DB, merchantID, customerID string) int64 {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, db.Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).First(&wallet).Error)
	return wallet.Balance
}

// TransactionCount counts ledger lines matching the optional condition.
func TransactionCount(t testing.TB, db *gorm.DB, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := db.Model(&models.Transaction{})
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}
