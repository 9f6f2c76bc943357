package loyalty

import (
	"context"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/metrics"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/services/hold"
	"loyalty/internal/services/idempotency"
	"loyalty/internal/services/wallet"
	"loyalty/internal/validation"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// errHoldFinalized rolls the commit unit back when a concurrent commit or
// cancel moved the hold first.
var errHoldFinalized = errors.New("hold finalized concurrently")

// receiptExistsError rolls the commit unit back when the order already has
// a receipt.
type receiptExistsError struct {
	receipt *models.Receipt
}

func (e *receiptExistsError) Error() string {
	return "receipt already exists for order " + e.receipt.OrderID
}

// Commit finalizes a PENDING hold: the hold, the wallet balance, the ledger
// line and the receipt change together or not at all. Repeating a commit is
// safe and answers alreadyCommitted with the original receipt's values.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (res *CommitResult, err error) {
	defer s.observe("commit", time.Now(), &err)

	v := validation.New()
	v.Required("merchantId", req.MerchantID)
	v.Required("holdId", req.HoldID)
	v.MaxLength("orderId", req.OrderID, validation.MaxOrderIDLength)
	v.Optional("receiptNumber", req.ReceiptNumber, validation.MaxReceiptNumberLength)
	v.MaxLength("idempotencyKey", req.IdempotencyKey, validation.MaxIdempotencyKeyLen)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var cached CommitResult
	if ok, err := s.replayed(ctx, req.MerchantID, req.IdempotencyKey, idempotency.OperationCommit, &cached); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	h, err := s.holds.Get(ctx, req.MerchantID, req.HoldID)
	if err != nil {
		return nil, err
	}
	orderID := firstNonEmpty(req.OrderID, h.OrderID, h.ID)

	if hold.CanTransition(h, models.HoldStatusCommitted) {
		res, err = s.commitHold(ctx, h, orderID, req.ReceiptNumber)
	} else {
		res, err = s.alreadyCommitted(ctx, h, orderID)
	}
	if err != nil {
		return nil, err
	}

	res, err = remember(ctx, s, req.MerchantID, req.IdempotencyKey, idempotency.OperationCommit, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) commitHold(ctx context.Context, h *models.Hold, orderID string, receiptNumber *string) (*CommitResult, error) {
	var res *CommitResult
	err := s.ledger.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		ok, err := s.holds.MarkCommitted(ctx, tx, h)
		if err != nil {
			return err
		}
		if !ok {
			return errHoldFinalized
		}

		w, err := s.wallets.LockWallet(ctx, tx, h.MerchantID, h.CustomerID)
		if err != nil {
			return err
		}

		receipt := &models.Receipt{
			MerchantID:    h.MerchantID,
			OrderID:       orderID,
			ReceiptNumber: receiptNumber,
			HoldID:        h.ID,
			CustomerID:    h.CustomerID,
			Total:         h.Total,
			EligibleTotal: h.EligibleTotal,
			OutletID:      h.OutletID,
			StaffID:       h.StaffID,
		}
		entry := wallet.Entry{
			OrderID:  orderID,
			HoldID:   &h.ID,
			OutletID: h.OutletID,
			StaffID:  h.StaffID,
		}
		switch h.Mode {
		case models.ModeRedeem:
			// The balance may have moved since the quote; redeem what is
			// still there.
			applied := h.RedeemAmount
			if w.Balance < applied {
				applied = w.Balance
			}
			if applied < 0 {
				applied = 0
			}
			receipt.RedeemApplied = applied
			entry.Type = models.TransactionTypeRedeem
			entry.Amount = -applied
		case models.ModeEarn:
			receipt.EarnApplied = h.EarnPoints
			entry.Type = models.TransactionTypeEarn
			entry.Amount = h.EarnPoints
		default:
			return apperrors.ErrInvalidMode.WithDetail("hold %s has mode %q", h.ID, h.Mode)
		}

		created, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		if !created {
			return &receiptExistsError{receipt: receipt}
		}
		entry.ReceiptID = &receipt.ID

		balance, err := s.wallets.Post(ctx, tx, w, entry)
		if err != nil {
			return err
		}
		res = resultFromReceipt(receipt, false)
		res.Balance = &balance
		return nil
	})

	var exists *receiptExistsError
	switch {
	case errors.Is(err, errHoldFinalized):
		fresh, err := s.holds.Get(ctx, h.MerchantID, h.ID)
		if err != nil {
			return nil, err
		}
		return s.alreadyCommitted(ctx, fresh, orderID)
	case errors.As(err, &exists):
		s.metrics.RecordReplay(metrics.ReplayReceipt)
		log.Warn().
			Str("merchant_id", h.MerchantID).
			Str("hold_id", h.ID).
			Str("order_id", orderID).
			Str("receipt_id", exists.receipt.ID).
			Msg("order already has a receipt")
		return resultFromReceipt(exists.receipt, true), nil
	case err != nil:
		return nil, errors.Wrap(err, "commit hold")
	}

	s.wallets.Invalidate(ctx, h.MerchantID, h.CustomerID)
	log.Info().
		Str("merchant_id", h.MerchantID).
		Str("customer_id", h.CustomerID).
		Str("hold_id", h.ID).
		Str("receipt_id", res.ReceiptID).
		Int64("redeem_applied", res.RedeemApplied).
		Int64("earn_applied", res.EarnApplied).
		Msg("hold committed")
	return res, nil
}

// alreadyCommitted answers a commit against a hold that is no longer
// PENDING.
func (s *Service) alreadyCommitted(ctx context.Context, h *models.Hold, orderID string) (*CommitResult, error) {
	if h.Status == models.HoldStatusCanceled {
		return nil, apperrors.ErrHoldNotPending.WithDetail("hold %s is %s", h.ID, h.Status)
	}

	receipt, err := s.ledger.GetReceiptByHold(ctx, h.ID)
	if errors.Is(err, apperrors.ErrReceiptNotFound) {
		receipt, err = s.ledger.GetReceiptByOrder(ctx, h.MerchantID, orderID)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReplay(metrics.ReplayReceipt)
	return resultFromReceipt(receipt, true), nil
}

func resultFromReceipt(r *models.Receipt, already bool) *CommitResult {
	return &CommitResult{
		HoldID:           r.HoldID,
		ReceiptID:        r.ID,
		OrderID:          r.OrderID,
		CustomerID:       r.CustomerID,
		RedeemApplied:    r.RedeemApplied,
		EarnApplied:      r.EarnApplied,
		AlreadyCommitted: already,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
