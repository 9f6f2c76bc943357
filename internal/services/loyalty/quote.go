package loyalty

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/metrics"
	"loyalty/internal/models"
	"loyalty/internal/services/antireplay"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/rates"
	"loyalty/internal/services/redeemcap"
	"loyalty/internal/validation"

	"github.com/rs/zerolog/log"
)

// Quote computes the discount or the points for an order and records them
// in a PENDING hold. Nothing is posted to the wallet until Commit.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (res *QuoteResult, err error) {
	defer s.observe("quote", time.Now(), &err)

	if err := validateQuote(req); err != nil {
		return nil, err
	}

	merchant, err := s.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	customer, qr, err := s.identify(req)
	if err != nil {
		return nil, err
	}

	var qrJti *string
	if qr != nil {
		outcome, err := s.antiReplay.MarkConsumed(ctx, antireplay.Token{
			Jti:        qr.Jti,
			MerchantID: merchant.ID,
			CustomerID: qr.ID,
			IssuedAt:   qr.IssuedAt,
			ExpiresAt:  qr.ExpiresAt,
		})
		if err != nil {
			return nil, err
		}
		if outcome == antireplay.Replayed {
			s.metrics.RecordReplay(metrics.ReplayQrToken)
			return s.replayQuote(ctx, merchant.ID, qr.Jti)
		}
		jti := qr.Jti
		qrJti = &jti
	}

	r, err := s.rates.Resolve(ctx, merchant.Settings(), customer.ID)
	if err != nil {
		return nil, err
	}

	h := &models.Hold{
		MerchantID: merchant.ID,
		CustomerID: customer.ID,
		Mode:       req.Mode,
		OrderID:    req.OrderID,
		Total:      req.Total,
		QrJti:      qrJti,
		OutletID:   req.OutletID,
		StaffID:    req.StaffID,
	}

	res = &QuoteResult{Mode: req.Mode, CustomerID: customer.ID}
	switch req.Mode {
	case models.ModeRedeem:
		w, err := s.ledger.GetOrCreateWallet(ctx, merchant.ID, customer.ID, models.WalletTypePoints)
		if err != nil {
			return nil, err
		}
		alloc := redeemcap.Allocate(r.RedeemLimitBps, req.EligibleTotal, req.Items)
		discount := redeemDiscount(w.Balance, alloc.Allowance, req.Total, r.MinPaymentAmount)
		payable := math.Max(0, req.Total-float64(discount))

		h.EligibleTotal = alloc.EligibleTotal
		h.RedeemAmount = discount
		res.DiscountToApply = discount
		res.FinalPayable = &payable
		res.Balance = &w.Balance
		res.Allocation = &alloc
	case models.ModeEarn:
		eligible := redeemcap.EligibleTotal(req.Items, req.EligibleTotal)
		points := earnPoints(eligible, req.Total, r)

		h.EligibleTotal = eligible
		h.EarnPoints = points
		res.PointsToEarn = points
	default:
		return nil, apperrors.ErrInvalidMode.WithDetail("got %q", req.Mode)
	}

	if err := s.holds.Create(ctx, h); err != nil {
		return nil, err
	}
	res.HoldID = h.ID
	res.Message = quoteMessage(h)

	log.Info().
		Str("merchant_id", merchant.ID).
		Str("customer_id", customer.ID).
		Str("hold_id", h.ID).
		Str("mode", string(h.Mode)).
		Str("rate_source", string(r.Source)).
		Int64("redeem_amount", h.RedeemAmount).
		Int64("earn_points", h.EarnPoints).
		Msg("quote created")

	return res, nil
}

func validateQuote(req QuoteRequest) error {
	v := validation.New()
	v.Required("merchantId", req.MerchantID)
	v.Required("customerToken", req.CustomerToken)
	v.MaxLength("orderId", req.OrderID, validation.MaxOrderIDLength)
	v.Amount("total", req.Total)
	v.Amount("eligibleTotal", req.EligibleTotal)
	v.Optional("outletId", req.OutletID, validation.MaxAttributionLength)
	v.Optional("staffId", req.StaffID, validation.MaxAttributionLength)
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		v.Amount(field+".amount", item.Amount)
		v.RedeemPercent(field+".redeemPercent", item.RedeemPercent)
	}
	if err := v.Err(); err != nil {
		return err
	}
	if req.Mode != models.ModeEarn && req.Mode != models.ModeRedeem {
		return apperrors.ErrInvalidMode.WithDetail("got %q", req.Mode)
	}
	return nil
}

// identify resolves the customer and, when one was presented, the single-use
// QR token. A signed customer token doubles as the QR token.
func (s *Service) identify(req QuoteRequest) (*auth.Customer, *auth.Customer, error) {
	customer, err := s.tokens.Resolve(req.CustomerToken, req.MerchantID)
	if err != nil {
		return nil, nil, err
	}
	var qr *auth.Customer
	if customer.Signed() {
		qr = customer
	}
	if req.QrToken == "" {
		return customer, qr, nil
	}

	presented, err := s.tokens.Resolve(req.QrToken, req.MerchantID)
	if err != nil {
		return nil, nil, err
	}
	if !presented.Signed() {
		return nil, nil, apperrors.ErrInvalidToken.WithDetail("qr token must be signed")
	}
	if presented.ID != customer.ID {
		return nil, nil, apperrors.ErrInvalidToken.WithDetail("qr token belongs to another customer")
	}
	return customer, presented, nil
}

// replayQuote answers a second presentation of a QR token. Only a hold that
// is still PENDING can be handed back.
func (s *Service) replayQuote(ctx context.Context, merchantID, jti string) (*QuoteResult, error) {
	h, err := s.holds.FindByQrJti(ctx, jti)
	if err != nil {
		return nil, err
	}
	if h == nil || h.MerchantID != merchantID || h.Status != models.HoldStatusPending {
		log.Warn().Str("merchant_id", merchantID).Str("jti", jti).Msg("qr token replayed")
		return nil, apperrors.ErrTokenAlreadyUsed
	}

	res := &QuoteResult{
		HoldID:     h.ID,
		Mode:       h.Mode,
		CustomerID: h.CustomerID,
		Replayed:   true,
		Message:    quoteMessage(h),
	}
	switch h.Mode {
	case models.ModeRedeem:
		payable := math.Max(0, h.Total-float64(h.RedeemAmount))
		res.DiscountToApply = h.RedeemAmount
		res.FinalPayable = &payable
	case models.ModeEarn:
		res.PointsToEarn = h.EarnPoints
	}
	return res, nil
}

// redeemDiscount is min(balance, allowance), never negative, and never so
// large that the payable drops below minPayment.
func redeemDiscount(balance, allowance int64, total float64, minPayment *float64) int64 {
	discount := allowance
	if balance < discount {
		discount = balance
	}
	if minPayment != nil {
		if room := redeemcap.Floor(total - *minPayment); discount > room {
			discount = room
		}
	}
	if discount < 0 {
		return 0
	}
	return discount
}

func earnPoints(eligible, total float64, r rates.Rates) int64 {
	if r.MinPaymentAmount != nil && total < *r.MinPaymentAmount {
		return 0
	}
	return redeemcap.Floor(eligible * float64(r.EarnBps) / 10000)
}

func quoteMessage(h *models.Hold) string {
	switch h.Mode {
	case models.ModeRedeem:
		if h.RedeemAmount == 0 {
			return "No points available to redeem on this order"
		}
		return fmt.Sprintf("Apply %d points as a discount", h.RedeemAmount)
	default:
		if h.EarnPoints == 0 {
			return "This order does not earn points"
		}
		return fmt.Sprintf("Customer will earn %d points", h.EarnPoints)
	}
}
