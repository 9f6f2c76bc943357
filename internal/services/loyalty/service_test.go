package loyalty

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories/cache"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/idempotency"
	"loyalty/internal/services/redeemcap"
	"loyalty/internal/services/wallet"
	"loyalty/internal/testutil"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	c        *Components
	merchant *models.Merchant
}

func newHarness(t *testing.T, earnBps, redeemLimitBps int64) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := auth.NewTokenService("test-secret", time.Minute)
	return &harness{
		db:       db,
		c:        Build(db, cache.NewMemoryCache(), nil, tokens, Options{}),
		merchant: testutil.CreateMerchant(t, db, earnBps, redeemLimitBps),
	}
}

func (h *harness) quote(t *testing.T, mode models.Mode, customer string, total, eligible float64) *QuoteResult {
	t.Helper()
	res, err := h.c.Service.Quote(context.Background(), QuoteRequest{
		Mode:          mode,
		MerchantID:    h.merchant.ID,
		CustomerToken: customer,
		Total:         total,
		EligibleTotal: eligible,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) commit(t *testing.T, holdID, orderID, key string) *CommitResult {
	t.Helper()
	res, err := h.c.Service.Commit(context.Background(), CommitRequest{
		MerchantID:     h.merchant.ID,
		HoldID:         holdID,
		OrderID:        orderID,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) holdTransactions(t *testing.T, holdID string) int64 {
	t.Helper()
	n, err := h.c.Ledger.CountTransactionsByHold(context.Background(), holdID)
	require.NoError(t, err)
	return n
}

func TestQuote_RedeemCappedByOrderLimit(t *testing.T) {
	h := newHarness(t, 0, 5000)
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 500)

	res := h.quote(t, models.ModeRedeem, "c1", 1200, 1000)

	assert.Equal(t, int64(500), res.DiscountToApply)
	require.NotNil(t, res.FinalPayable)
	assert.Equal(t, 700.0, *res.FinalPayable)
	assert.NotEmpty(t, res.HoldID)
	assert.Equal(t, int64(500), testutil.Balance(t, h.db, h.merchant.ID, "c1"), "quote never moves the balance")

	var stored models.Hold
	require.NoError(t, h.db.First(&stored, "id = ?", res.HoldID).Error)
	assert.Equal(t, models.HoldStatusPending, stored.Status)
	assert.Equal(t, int64(500), stored.RedeemAmount)
	assert.Equal(t, 1200.0, stored.Total)
	assert.Equal(t, 1000.0, stored.EligibleTotal)
}

func TestQuote_RedeemClampedToBalance(t *testing.T) {
	h := newHarness(t, 0, 5000)
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 120)

	res := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)
	assert.Equal(t, int64(120), res.DiscountToApply)

	empty := h.quote(t, models.ModeRedeem, "new-customer", 1000, 1000)
	assert.Zero(t, empty.DiscountToApply)
	assert.Equal(t, 1000.0, *empty.FinalPayable)
}

func TestQuote_EarnBelowMinimumPayment(t *testing.T) {
	h := newHarness(t, 0, 0)
	minPayment := 2000.0
	testutil.CreateTier(t, h.db, &models.LoyaltyTier{
		MerchantID:       h.merchant.ID,
		Name:             "Silver",
		EarnRateBps:      300,
		MinPaymentAmount: &minPayment,
		IsInitial:        true,
	})

	res := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	assert.Zero(t, res.PointsToEarn)

	res = h.quote(t, models.ModeEarn, "c1", 2500, 1000)
	assert.Equal(t, int64(30), res.PointsToEarn)
}

func TestQuote_RedeemKeepsMinimumPayment(t *testing.T) {
	h := newHarness(t, 0, 0)
	minPayment := 900.0
	testutil.CreateTier(t, h.db, &models.LoyaltyTier{
		MerchantID:       h.merchant.ID,
		Name:             "Base",
		RedeemRateBps:    5000,
		MinPaymentAmount: &minPayment,
		IsInitial:        true,
	})
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 500)

	res := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)
	assert.Equal(t, int64(100), res.DiscountToApply)
	assert.Equal(t, 900.0, *res.FinalPayable)
}

func TestQuote_ItemsLimitEligibleTotal(t *testing.T) {
	h := newHarness(t, 1000, 0)

	res, err := h.c.Service.Quote(context.Background(), QuoteRequest{
		Mode:          models.ModeEarn,
		MerchantID:    h.merchant.ID,
		CustomerToken: "c1",
		Total:         1500,
		EligibleTotal: 1500,
		Items: []redeemcap.Item{
			{ID: "coffee", Amount: 1000, AccruePoints: true},
			{ID: "gift-card", Amount: 500},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsToEarn)
}

func TestQuote_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t, 100, 100)
	ctx := context.Background()

	_, err := h.c.Service.Quote(ctx, QuoteRequest{Mode: "GIFT", MerchantID: h.merchant.ID, CustomerToken: "c1"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidMode))

	_, err = h.c.Service.Quote(ctx, QuoteRequest{Mode: models.ModeEarn, MerchantID: h.merchant.ID, CustomerToken: "c1", Total: -5})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAmount))

	_, err = h.c.Service.Quote(ctx, QuoteRequest{Mode: models.ModeEarn, MerchantID: "missing", CustomerToken: "c1"})
	assert.True(t, errors.Is(err, apperrors.ErrMerchantNotFound))

	var holds int64
	require.NoError(t, h.db.Model(&models.Hold{}).Count(&holds).Error)
	assert.Zero(t, holds)
}

func TestQuote_QrTokenBacksOneHold(t *testing.T) {
	h := newHarness(t, 500, 0)
	ctx := context.Background()
	token, _, err := h.c.Tokens.Issue(h.merchant.ID, "c1")
	require.NoError(t, err)

	req := QuoteRequest{Mode: models.ModeEarn, MerchantID: h.merchant.ID, CustomerToken: token, Total: 400, EligibleTotal: 400}
	first, err := h.c.Service.Quote(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "c1", first.CustomerID)
	assert.Equal(t, int64(20), first.PointsToEarn)

	second, err := h.c.Service.Quote(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.HoldID, second.HoldID)
	assert.Equal(t, first.PointsToEarn, second.PointsToEarn)

	h.commit(t, first.HoldID, "order-qr", "")

	_, err = h.c.Service.Quote(ctx, req)
	assert.True(t, errors.Is(err, apperrors.ErrTokenAlreadyUsed))
	assert.Equal(t, apperrors.KindTokenAlreadyUsed, apperrors.KindOf(err))

	var holds int64
	require.NoError(t, h.db.Model(&models.Hold{}).Count(&holds).Error)
	assert.Equal(t, int64(1), holds)
}

func TestQuote_QrTokenStaysConsumedWhenHoldWriteFails(t *testing.T) {
	h := newHarness(t, 500, 0)
	ctx := context.Background()
	token, _, err := h.c.Tokens.Issue(h.merchant.ID, "c1")
	require.NoError(t, err)
	req := QuoteRequest{Mode: models.ModeEarn, MerchantID: h.merchant.ID, CustomerToken: token, Total: 400, EligibleTotal: 400}

	require.NoError(t, h.db.Migrator().DropTable(&models.Hold{}))
	_, err = h.c.Service.Quote(ctx, req)
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "create hold"))
	require.NoError(t, h.db.AutoMigrate(&models.Hold{}))

	var nonces int64
	require.NoError(t, h.db.Model(&models.QrNonce{}).Count(&nonces).Error)
	assert.Equal(t, int64(1), nonces)

	_, err = h.c.Service.Quote(ctx, req)
	assert.True(t, errors.Is(err, apperrors.ErrTokenAlreadyUsed))

	var holds int64
	require.NoError(t, h.db.Model(&models.Hold{}).Count(&holds).Error)
	assert.Zero(t, holds)
}

func TestQuote_QrTokenOfCanceledHold(t *testing.T) {
	h := newHarness(t, 500, 0)
	ctx := context.Background()
	token, _, err := h.c.Tokens.Issue(h.merchant.ID, "c1")
	require.NoError(t, err)
	req := QuoteRequest{Mode: models.ModeEarn, MerchantID: h.merchant.ID, CustomerToken: token, Total: 400, EligibleTotal: 400}

	first, err := h.c.Service.Quote(ctx, req)
	require.NoError(t, err)
	_, err = h.c.Service.Cancel(ctx, h.merchant.ID, first.HoldID)
	require.NoError(t, err)

	_, err = h.c.Service.Quote(ctx, req)
	assert.True(t, errors.Is(err, apperrors.ErrTokenAlreadyUsed))
	assert.Equal(t, apperrors.KindTokenAlreadyUsed, apperrors.KindOf(err))
}

func TestQuote_MerchantRateChangeAppliesToNextQuote(t *testing.T) {
	h := newHarness(t, 100, 0)

	before := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	assert.Equal(t, int64(10), before.PointsToEarn)

	require.NoError(t, h.c.Merchants.UpdateRates(context.Background(), h.merchant.ID, 500, 0))

	after := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	assert.Equal(t, int64(50), after.PointsToEarn)
}

func TestQuote_QrTokenMustMatchCustomer(t *testing.T) {
	h := newHarness(t, 500, 0)
	token, _, err := h.c.Tokens.Issue(h.merchant.ID, "someone-else")
	require.NoError(t, err)

	_, err = h.c.Service.Quote(context.Background(), QuoteRequest{
		Mode:          models.ModeEarn,
		MerchantID:    h.merchant.ID,
		CustomerToken: "c1",
		QrToken:       token,
		Total:         100,
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestQuote_TokenForAnotherMerchant(t *testing.T) {
	h := newHarness(t, 500, 0)
	token, _, err := h.c.Tokens.Issue("other-merchant", "c1")
	require.NoError(t, err)

	_, err = h.c.Service.Quote(context.Background(), QuoteRequest{
		Mode:          models.ModeEarn,
		MerchantID:    h.merchant.ID,
		CustomerToken: token,
		Total:         100,
	})
	assert.True(t, errors.Is(err, apperrors.ErrTokenAudience))
}

func TestCommit_Redeem(t *testing.T) {
	h := newHarness(t, 0, 5000)
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 500)
	q := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)

	res := h.commit(t, q.HoldID, "order-1", "")

	assert.False(t, res.AlreadyCommitted)
	assert.Equal(t, int64(500), res.RedeemApplied)
	require.NotNil(t, res.Balance)
	assert.Zero(t, *res.Balance)
	assert.Zero(t, testutil.Balance(t, h.db, h.merchant.ID, "c1"))
	assert.Equal(t, int64(1), testutil.TransactionCount(t, h.db, "type = ? AND hold_id = ?", models.TransactionTypeRedeem, q.HoldID))

	var receipt models.Receipt
	require.NoError(t, h.db.First(&receipt, "id = ?", res.ReceiptID).Error)
	assert.Equal(t, "order-1", receipt.OrderID)
	assert.Equal(t, int64(500), receipt.RedeemApplied)
	assert.Equal(t, 1000.0, receipt.EligibleTotal)
}

func TestCommit_RedeemUsesBalanceAtCommit(t *testing.T) {
	h := newHarness(t, 0, 5000)
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 500)
	q := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)
	require.Equal(t, int64(500), q.DiscountToApply)

	_, err := h.c.Wallets.Adjust(context.Background(), wallet.AdjustRequest{
		MerchantID: h.merchant.ID,
		CustomerID: "c1",
		Type:       models.TransactionTypeAdjust,
		Amount:     -400,
	})
	require.NoError(t, err)

	res := h.commit(t, q.HoldID, "order-1", "")
	assert.Equal(t, int64(100), res.RedeemApplied)
	assert.Zero(t, testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}

func TestCommit_TwiceWithoutKeyIsAlreadyCommitted(t *testing.T) {
	h := newHarness(t, 300, 0)
	q := h.quote(t, models.ModeEarn, "c1", 1000, 1000)

	first := h.commit(t, q.HoldID, "order-1", "")
	second := h.commit(t, q.HoldID, "order-1", "")

	assert.False(t, first.AlreadyCommitted)
	assert.True(t, second.AlreadyCommitted)
	assert.Equal(t, first.ReceiptID, second.ReceiptID)
	assert.Equal(t, int64(30), second.EarnApplied)
	assert.Equal(t, int64(1), h.holdTransactions(t, q.HoldID))
	assert.Equal(t, int64(30), testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}

func TestCommit_OrderIDFallsBackToQuoteThenHold(t *testing.T) {
	h := newHarness(t, 300, 0)
	ctx := context.Background()

	quoted, err := h.c.Service.Quote(ctx, QuoteRequest{
		Mode:          models.ModeEarn,
		MerchantID:    h.merchant.ID,
		CustomerToken: "c1",
		OrderID:       "pos-77",
		Total:         100,
		EligibleTotal: 100,
	})
	require.NoError(t, err)
	bare := h.quote(t, models.ModeEarn, "c1", 100, 100)

	first := h.commit(t, quoted.HoldID, "", "")
	second := h.commit(t, bare.HoldID, "", "")

	assert.Equal(t, "pos-77", first.OrderID)
	assert.Equal(t, bare.HoldID, second.OrderID)
	assert.NotEqual(t, first.ReceiptID, second.ReceiptID)
}

func TestCommit_SameOrderFromSecondHold(t *testing.T) {
	h := newHarness(t, 300, 0)
	first := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	second := h.quote(t, models.ModeEarn, "c1", 1000, 1000)

	committed := h.commit(t, first.HoldID, "order-1", "")
	replay := h.commit(t, second.HoldID, "order-1", "")

	assert.True(t, replay.AlreadyCommitted)
	assert.Equal(t, committed.ReceiptID, replay.ReceiptID)
	assert.Equal(t, int64(1), testutil.TransactionCount(t, h.db, "type = ?", models.TransactionTypeEarn))

	var stored models.Hold
	require.NoError(t, h.db.First(&stored, "id = ?", second.HoldID).Error)
	assert.Equal(t, models.HoldStatusPending, stored.Status, "the losing unit rolls back")
}

func TestCommit_IdempotencyKeyReturnsIdenticalResponse(t *testing.T) {
	h := newHarness(t, 300, 0)
	q := h.quote(t, models.ModeEarn, "c1", 1000, 1000)

	first := h.commit(t, q.HoldID, "order-1", "commit-key")
	second := h.commit(t, q.HoldID, "order-1", "commit-key")

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.False(t, second.AlreadyCommitted)
	assert.Equal(t, int64(1), h.holdTransactions(t, q.HoldID))
}

func TestRemember_ReturnsOnlyTheStoredResponse(t *testing.T) {
	h := newHarness(t, 300, 0)
	ctx := context.Background()
	winner, err := json.Marshal(CommitResult{HoldID: "h1", ReceiptID: "r1", OrderID: "order-1", EarnApplied: 30})
	require.NoError(t, err)
	_, err = h.c.Service.idempotency.Put(ctx, h.merchant.ID, "key-1", idempotency.OperationCommit, winner, time.Hour)
	require.NoError(t, err)

	balance := int64(99)
	loser := &CommitResult{HoldID: "h1", ReceiptID: "r2", OrderID: "order-1", EarnApplied: 30, Balance: &balance}
	got, err := remember(ctx, h.c.Service, h.merchant.ID, "key-1", idempotency.OperationCommit, loser)
	require.NoError(t, err)

	assert.Equal(t, "r1", got.ReceiptID)
	assert.Nil(t, got.Balance)
	encoded, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(winner), string(encoded))
	assert.Equal(t, "r2", loser.ReceiptID)
}

func TestCommit_ConcurrentCallsPostOnce(t *testing.T) {
	h := newHarness(t, 0, 5000)
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 800)
	q := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)

	const workers = 8
	results := make([]*CommitResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.c.Service.Commit(context.Background(), CommitRequest{
				MerchantID: h.merchant.ID,
				HoldID:     q.HoldID,
				OrderID:    "order-1",
			})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].ReceiptID, res.ReceiptID)
		assert.Equal(t, int64(500), res.RedeemApplied)
		if !res.AlreadyCommitted {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(1), h.holdTransactions(t, q.HoldID))
	assert.Equal(t, int64(300), testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}

func TestCommit_UnknownHold(t *testing.T) {
	h := newHarness(t, 300, 0)
	_, err := h.c.Service.Commit(context.Background(), CommitRequest{MerchantID: h.merchant.ID, HoldID: "nope"})
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotFound))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCommit_HoldOfAnotherMerchant(t *testing.T) {
	h := newHarness(t, 300, 0)
	q := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	other := testutil.CreateMerchant(t, h.db, 300, 0)

	_, err := h.c.Service.Commit(context.Background(), CommitRequest{MerchantID: other.ID, HoldID: q.HoldID})
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotFound))
}

func TestCancel(t *testing.T) {
	h := newHarness(t, 300, 0)
	ctx := context.Background()
	q := h.quote(t, models.ModeEarn, "c1", 1000, 1000)

	res, err := h.c.Service.Cancel(ctx, h.merchant.ID, q.HoldID)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, models.HoldStatusCanceled, res.Status)

	_, err = h.c.Service.Cancel(ctx, h.merchant.ID, q.HoldID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = h.c.Service.Commit(ctx, CommitRequest{MerchantID: h.merchant.ID, HoldID: q.HoldID, OrderID: "order-1"})
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotPending))

	_, err = h.c.Service.Cancel(ctx, h.merchant.ID, "nope")
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotFound))

	assert.Zero(t, testutil.TransactionCount(t, h.db, ""))
}

func TestCancel_CommittedHoldConflicts(t *testing.T) {
	h := newHarness(t, 300, 0)
	q := h.quote(t, models.ModeEarn, "c1", 1000, 1000)
	h.commit(t, q.HoldID, "order-1", "")

	_, err := h.c.Service.Cancel(context.Background(), h.merchant.ID, q.HoldID)
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotPending))
	assert.Equal(t, int64(30), testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}

func TestRefund_HalfOfReceipt(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	_, err := h.c.Ledger.InsertReceipt(ctx, &models.Receipt{
		MerchantID:    h.merchant.ID,
		OrderID:       "order-1",
		HoldID:        "hold-1",
		CustomerID:    "c1",
		Total:         1000,
		EligibleTotal: 1000,
		RedeemApplied: 200,
		EarnApplied:   100,
	})
	require.NoError(t, err)

	half := 500.0
	res, err := h.c.Service.Refund(ctx, RefundRequest{
		MerchantID:          h.merchant.ID,
		OrderID:             "order-1",
		RefundTotal:         500,
		RefundEligibleTotal: &half,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.Share)
	assert.Equal(t, int64(100), res.PointsRestored)
	assert.Equal(t, int64(50), res.PointsRevoked)
	assert.Equal(t, int64(50), res.Balance)
	assert.False(t, res.ReceiptCanceled)
	assert.Equal(t, int64(2), testutil.TransactionCount(t, h.db, "type = ?", models.TransactionTypeRefund))
}

func TestRefund_FullAfterEarnCommit(t *testing.T) {
	h := newHarness(t, 1000, 0)
	ctx := context.Background()
	q := h.quote(t, models.ModeEarn, "c1", 800, 800)
	h.commit(t, q.HoldID, "order-1", "")
	require.Equal(t, int64(80), testutil.Balance(t, h.db, h.merchant.ID, "c1"))

	_, err := h.c.Wallets.Adjust(ctx, wallet.AdjustRequest{
		MerchantID: h.merchant.ID, CustomerID: "c1", Type: models.TransactionTypeAdjust, Amount: -60,
	})
	require.NoError(t, err)

	req := RefundRequest{MerchantID: h.merchant.ID, OrderID: "order-1", RefundTotal: 800, IdempotencyKey: "refund-1"}
	res, err := h.c.Service.Refund(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Share)
	assert.Equal(t, int64(80), res.PointsRevoked)
	assert.Equal(t, int64(-60), res.Balance)
	assert.True(t, res.ReceiptCanceled)

	again, err := h.c.Service.Refund(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Equal(t, int64(1), testutil.TransactionCount(t, h.db, "type = ?", models.TransactionTypeRefund))
	assert.Equal(t, int64(-60), testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}

func TestRefund_ByReceiptNumber(t *testing.T) {
	h := newHarness(t, 1000, 0)
	ctx := context.Background()
	q := h.quote(t, models.ModeEarn, "c1", 500, 500)
	number := "R-0042"
	_, err := h.c.Service.Commit(ctx, CommitRequest{MerchantID: h.merchant.ID, HoldID: q.HoldID, OrderID: "order-1", ReceiptNumber: &number})
	require.NoError(t, err)

	res, err := h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, ReceiptNumber: number, RefundTotal: 250})
	require.NoError(t, err)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, int64(25), res.PointsRevoked)

	_, err = h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, OrderID: "missing", RefundTotal: 10})
	assert.True(t, errors.Is(err, apperrors.ErrReceiptNotFound))

	_, err = h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, RefundTotal: 10})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
}

func TestIdempotencyKeyScopedToOperation(t *testing.T) {
	h := newHarness(t, 1000, 0)
	ctx := context.Background()
	q := h.quote(t, models.ModeEarn, "c1", 500, 500)
	h.commit(t, q.HoldID, "order-1", "shared-key")

	_, err := h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, OrderID: "order-1", RefundTotal: 500, IdempotencyKey: "shared-key"})
	assert.True(t, errors.Is(err, apperrors.ErrIdempotencyKeyReused))
	assert.Zero(t, testutil.TransactionCount(t, h.db, "type = ?", models.TransactionTypeRefund))
}

func TestBalanceMatchesLedgerAfterMixedTraffic(t *testing.T) {
	h := newHarness(t, 500, 5000)
	ctx := context.Background()
	testutil.Fund(t, h.db, h.merchant.ID, "c1", 300)

	earn := h.quote(t, models.ModeEarn, "c1", 2000, 2000)
	h.commit(t, earn.HoldID, "order-1", "")
	redeem := h.quote(t, models.ModeRedeem, "c1", 1000, 1000)
	h.commit(t, redeem.HoldID, "order-2", "k-2")
	canceled := h.quote(t, models.ModeEarn, "c2", 100, 100)
	_, err := h.c.Service.Cancel(ctx, h.merchant.ID, canceled.HoldID)
	require.NoError(t, err)
	_, err = h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, OrderID: "order-1", RefundTotal: 1000})
	require.NoError(t, err)
	_, err = h.c.Service.Refund(ctx, RefundRequest{MerchantID: h.merchant.ID, OrderID: "order-2", RefundTotal: 1000})
	require.NoError(t, err)

	report, err := h.c.Wallets.Reconcile(ctx, h.merchant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.WalletsChecked)
	assert.Empty(t, report.Mismatches)

	// 300 + 100 earned - 200 redeemed - 50 revoked + 200 restored
	assert.Equal(t, int64(350), testutil.Balance(t, h.db, h.merchant.ID, "c1"))
}
