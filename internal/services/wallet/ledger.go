package wallet

import (
	"context"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/metrics"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/repositories/cache"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultBalanceTTL bounds the staleness of balance display reads.
const DefaultBalanceTTL = 30 * time.Second

// Ledger owns wallet balances.
type Ledger struct {
	repo       repositories.LedgerRepository
	cache      cache.Cache
	metrics    metrics.Collector
	balanceTTL time.Duration
	now        func() time.Time
}

func NewLedger(repo repositories.LedgerRepository, c cache.Cache, collector metrics.Collector, balanceTTL time.Duration) *Ledger {
	if repo == nil {
		panic("repo is required")
	}
	if c == nil {
		c = cache.NopCache{}
	}
	if balanceTTL <= 0 {
		balanceTTL = DefaultBalanceTTL
	}
	return &Ledger{
		repo:       repo,
		cache:      c,
		metrics:    metrics.OrNoop(collector),
		balanceTTL: balanceTTL,
		now:        time.Now,
	}
}

// LockWallet returns the customer's points wallet, created if needed, read
// fresh under a row lock held until tx ends.
func (l *Ledger) LockWallet(ctx context.Context, tx repositories.LedgerRepository, merchantID, customerID string) (*models.Wallet, error) {
	w, err := tx.GetOrCreateWallet(ctx, merchantID, customerID, models.WalletTypePoints)
	if err != nil {
		return nil, err
	}
	return tx.LockWallet(ctx, w.ID)
}

// Post appends entries to the log and moves the balance by their sum in the
// caller's transaction. wallet must have been locked in tx. Zero amount
// entries are skipped. It returns the new balance.
func (l *Ledger) Post(ctx context.Context, tx repositories.LedgerRepository, wallet *models.Wallet, entries ...Entry) (int64, error) {
	var delta int64
	for _, e := range entries {
		if e.Amount == 0 {
			continue
		}
		row := &models.Transaction{
			MerchantID: wallet.MerchantID,
			CustomerID: wallet.CustomerID,
			WalletID:   wallet.ID,
			Type:       e.Type,
			Amount:     e.Amount,
			OrderID:    e.OrderID,
			HoldID:     e.HoldID,
			ReceiptID:  e.ReceiptID,
			OutletID:   e.OutletID,
			StaffID:    e.StaffID,
			Metadata:   e.Metadata,
		}
		if err := tx.CreateTransaction(ctx, row); err != nil {
			return 0, err
		}
		delta += e.Amount
	}
	if delta != 0 {
		if err := tx.AddToBalance(ctx, wallet.ID, delta); err != nil {
			return 0, err
		}
	}

	balance := wallet.Balance + delta
	wallet.Balance = balance
	for _, e := range entries {
		if e.Amount != 0 {
			l.metrics.RecordPoints(string(e.Type), e.Amount)
		}
	}
	if balance < 0 {
		l.metrics.RecordNegativeBalance()
		log.Warn().
			Str("merchant_id", wallet.MerchantID).
			Str("customer_id", wallet.CustomerID).
			Int64("balance", balance).
			Msg("wallet balance below zero after clawback")
	}
	return balance, nil
}

// Adjust applies a manual credit or debit in its own transaction. Debits
// may not take the balance below zero.
func (l *Ledger) Adjust(ctx context.Context, req AdjustRequest) (int64, error) {
	switch req.Type {
	case models.TransactionTypeAdjust, models.TransactionTypeCampaign, models.TransactionTypeReferral:
	default:
		return 0, apperrors.ErrInvalidRequest.WithDetail("type %q cannot be posted manually", req.Type)
	}
	if req.MerchantID == "" || req.CustomerID == "" {
		return 0, apperrors.ErrInvalidRequest.WithDetail("merchant and customer are required")
	}
	if req.Amount == 0 {
		return 0, apperrors.ErrInvalidAmount.WithDetail("amount must not be zero")
	}

	var balance int64
	err := l.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		w, err := l.LockWallet(ctx, tx, req.MerchantID, req.CustomerID)
		if err != nil {
			return err
		}
		if w.Balance+req.Amount < 0 {
			return apperrors.ErrInsufficientPoints.WithDetail("balance %d, adjustment %d", w.Balance, req.Amount)
		}
		var meta models.JSON
		if req.Reason != "" {
			meta = models.NewJSON(map[string]interface{}{"reason": req.Reason})
		}
		balance, err = l.Post(ctx, tx, w, Entry{
			Type:     req.Type,
			Amount:   req.Amount,
			StaffID:  req.StaffID,
			Metadata: meta,
		})
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "adjust balance")
	}
	l.Invalidate(ctx, req.MerchantID, req.CustomerID)
	return balance, nil
}

// Balance returns an eventually consistent snapshot for display.
func (l *Ledger) Balance(ctx context.Context, merchantID, customerID string) (*BalanceSnapshot, error) {
	key := balanceKey(merchantID, customerID)
	var snap BalanceSnapshot
	found, err := l.cache.Get(ctx, key, &snap)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("balance cache read failed")
	}
	if found {
		l.metrics.RecordCacheHit("balance")
		return &snap, nil
	}
	l.metrics.RecordCacheMiss("balance")

	w, err := l.repo.GetWallet(ctx, merchantID, customerID, models.WalletTypePoints)
	if err != nil {
		return nil, err
	}
	snap = BalanceSnapshot{
		MerchantID: merchantID,
		CustomerID: customerID,
		WalletID:   w.ID,
		Balance:    w.Balance,
		AsOf:       l.now().UTC(),
	}
	if err := l.cache.SetWithTTL(ctx, key, snap, l.balanceTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("balance cache write failed")
	}
	return &snap, nil
}

// History pages through a customer's ledger lines, newest first.
func (l *Ledger) History(ctx context.Context, merchantID, customerID string, offset, limit int) ([]models.Transaction, int64, error) {
	return l.repo.ListTransactions(ctx, merchantID, customerID, offset, limit)
}

// Invalidate drops the cached balance snapshot. Call it after every
// committed mutation.
func (l *Ledger) Invalidate(ctx context.Context, merchantID, customerID string) {
	if err := l.cache.Delete(ctx, balanceKey(merchantID, customerID)); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Str("customer_id", customerID).Msg("balance cache invalidation failed")
	}
}

func balanceKey(merchantID, customerID string) string {
	return cache.GenerateKey("wallet", "balance", merchantID+":"+customerID)
}
