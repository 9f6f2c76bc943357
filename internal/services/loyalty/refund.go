package loyalty

import (
	"context"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/services/idempotency"
	"loyalty/internal/services/refund"
	"loyalty/internal/validation"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Refund prorates a (partial) refund of a committed order and posts the
// redeemed points back and the earned points out. The customer balance may
// end up negative.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (res *RefundResult, err error) {
	defer s.observe("refund", time.Now(), &err)

	v := validation.New()
	v.Required("merchantId", req.MerchantID)
	v.Check(req.OrderID != "" || req.ReceiptNumber != "", "orderId", "orderId or receiptNumber is required")
	v.MaxLength("orderId", req.OrderID, validation.MaxOrderIDLength)
	v.MaxLength("receiptNumber", req.ReceiptNumber, validation.MaxReceiptNumberLength)
	v.MaxLength("idempotencyKey", req.IdempotencyKey, validation.MaxIdempotencyKeyLen)
	v.Optional("staffId", req.StaffID, validation.MaxAttributionLength)
	v.Amount("refundTotal", req.RefundTotal)
	if req.RefundEligibleTotal != nil {
		v.Amount("refundEligibleTotal", *req.RefundEligibleTotal)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var cached RefundResult
	if ok, err := s.replayed(ctx, req.MerchantID, req.IdempotencyKey, idempotency.OperationRefund, &cached); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	receipt, err := s.findReceipt(ctx, req.MerchantID, req.OrderID, req.ReceiptNumber)
	if err != nil {
		return nil, err
	}

	var (
		updated *models.Receipt
		result  refund.Result
	)
	err = s.ledger.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		var err error
		updated, result, err = s.refunds.Apply(ctx, tx, receipt.ID, refund.Request{
			RefundTotal:         req.RefundTotal,
			RefundEligibleTotal: req.RefundEligibleTotal,
			StaffID:             req.StaffID,
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "apply refund")
	}
	s.wallets.Invalidate(ctx, updated.MerchantID, updated.CustomerID)

	res = &RefundResult{
		ReceiptID:       updated.ID,
		OrderID:         updated.OrderID,
		CustomerID:      updated.CustomerID,
		Share:           result.Share,
		PointsRestored:  result.PointsRestored,
		PointsRevoked:   result.PointsRevoked,
		Balance:         result.Balance,
		ReceiptCanceled: result.Canceled,
	}
	log.Info().
		Str("merchant_id", updated.MerchantID).
		Str("receipt_id", updated.ID).
		Float64("share", result.Share).
		Int64("restored", result.PointsRestored).
		Int64("revoked", result.PointsRevoked).
		Int64("balance", result.Balance).
		Msg("refund applied")

	res, err = remember(ctx, s, req.MerchantID, req.IdempotencyKey, idempotency.OperationRefund, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) findReceipt(ctx context.Context, merchantID, orderID, receiptNumber string) (*models.Receipt, error) {
	if orderID != "" {
		receipt, err := s.ledger.GetReceiptByOrder(ctx, merchantID, orderID)
		if err == nil || receiptNumber == "" || !errors.Is(err, apperrors.ErrReceiptNotFound) {
			return receipt, err
		}
	}
	return s.ledger.GetReceiptByNumber(ctx, merchantID, receiptNumber)
}
