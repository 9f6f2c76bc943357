// Package refund reverses the point effects of a refunded sale in
// proportion to the refunded share.
package refund

import "math"

// Input is what proration needs from the receipt and the refund request.
type Input struct {
	Total               float64
	EligibleTotal       float64
	RedeemApplied       int64
	EarnApplied         int64
	RefundTotal         float64
	RefundEligibleTotal *float64

	// Points already moved by earlier refunds of the same receipt.
	AlreadyRestored int64
	AlreadyRevoked  int64
}

// Proration is the outcome for one refund.
type Proration struct {
	Share   float64
	Restore int64
	Revoke  int64
}

// Full reports whether the refund covers the whole eligible amount.
func (p Proration) Full() bool {
	return p.Share >= 1
}

// Prorate computes share = clamp01(base / eligible) where base is the
// refund's eligible total when given, else its total, and eligible is the
// receipt's eligible total when positive, else its total. Restore and revoke
// are the rounded shares of the applied redeem and earn amounts, reduced by
// what earlier refunds already moved so the cumulative effect never exceeds
// the receipt.
func Prorate(in Input) Proration {
	eligible := in.EligibleTotal
	if eligible <= 0 {
		eligible = in.Total
	}
	base := in.RefundTotal
	if in.RefundEligibleTotal != nil {
		base = *in.RefundEligibleTotal
	}

	var share float64
	switch {
	case base <= 0 || math.IsNaN(base):
		share = 0
	case eligible <= 0:
		share = 1
	default:
		share = clamp01(base / eligible)
	}

	return Proration{
		Share:   share,
		Restore: portion(in.RedeemApplied, share, in.AlreadyRestored),
		Revoke:  portion(in.EarnApplied, share, in.AlreadyRevoked),
	}
}

func portion(applied int64, share float64, already int64) int64 {
	if applied <= 0 {
		return 0
	}
	want := int64(math.Round(float64(applied) * share))
	remaining := applied - already
	if remaining < 0 {
		remaining = 0
	}
	if want > remaining {
		return remaining
	}
	return want
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
