// Package rates resolves the earn and redeem rates that apply to one
// customer at one merchant.
package rates

import (
	"context"
	"time"

	"loyalty/internal/models"
	"loyalty/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Source says which rule produced a Rates value.
type Source string

const (
	SourceAssignment Source = "assignment"
	SourceInitial    Source = "initial_tier"
	SourceSettings   Source = "merchant_settings"
)

// Rates are basis-point rates; 10000 bps is 100%.
type Rates struct {
	EarnBps          int64
	RedeemLimitBps   int64
	MinPaymentAmount *float64
	TierID           string
	Source           Source
}

// Resolver resolves rates. It keeps no state between calls: merchant
// settings are passed in fresh for every request.
type Resolver struct {
	tiers repositories.TierRepository
	now   func() time.Time
}

func NewResolver(tiers repositories.TierRepository) *Resolver {
	if tiers == nil {
		panic("tier repository is required")
	}
	return &Resolver{tiers: tiers, now: time.Now}
}

// Resolve picks the customer's most recent unexpired tier assignment, then
// the merchant's initial tier, then the flat merchant settings. A merchant
// without any tier gets a Base tier built from its settings on first use.
func (r *Resolver) Resolve(ctx context.Context, settings models.MerchantSettings, customerID string) (Rates, error) {
	_, tier, err := r.tiers.ActiveAssignment(ctx, settings.MerchantID, customerID, r.now())
	if err != nil {
		return Rates{}, errors.Wrap(err, "resolve tier assignment")
	}
	if tier != nil {
		return fromTier(tier, SourceAssignment), nil
	}

	initial, err := r.tiers.InitialTier(ctx, settings.MerchantID)
	if err != nil {
		return Rates{}, errors.Wrap(err, "resolve initial tier")
	}
	if initial != nil {
		return fromTier(initial, SourceInitial), nil
	}

	count, err := r.tiers.CountTiers(ctx, settings.MerchantID)
	if err != nil {
		return Rates{}, errors.Wrap(err, "count tiers")
	}
	if count > 0 {
		return fromSettings(settings), nil
	}

	base, err := r.ensureBaseTier(ctx, settings)
	if err != nil {
		return Rates{}, err
	}
	return fromTier(base, SourceInitial), nil
}

// ensureBaseTier creates the Base tier. Concurrent callers race on the
// one-initial-tier-per-merchant constraint and the losers read the winner.
func (r *Resolver) ensureBaseTier(ctx context.Context, settings models.MerchantSettings) (*models.LoyaltyTier, error) {
	tier := &models.LoyaltyTier{
		MerchantID:    settings.MerchantID,
		Name:          models.BaseTierName,
		EarnRateBps:   clampBps(settings.EarnBps),
		RedeemRateBps: clampBps(settings.RedeemLimitBps),
		AutoCreated:   true,
	}
	created, err := r.tiers.CreateInitialTier(ctx, tier)
	if err != nil {
		return nil, errors.Wrap(err, "create base tier")
	}
	if created {
		log.Info().Str("merchant_id", settings.MerchantID).Str("tier_id", tier.ID).Msg("base tier created")
	}
	return tier, nil
}

func fromTier(tier *models.LoyaltyTier, source Source) Rates {
	return Rates{
		EarnBps:          clampBps(tier.EarnRateBps),
		RedeemLimitBps:   clampBps(tier.RedeemRateBps),
		MinPaymentAmount: tier.MinPaymentAmount,
		TierID:           tier.ID,
		Source:           source,
	}
}

func fromSettings(settings models.MerchantSettings) Rates {
	return Rates{
		EarnBps:        clampBps(settings.EarnBps),
		RedeemLimitBps: clampBps(settings.RedeemLimitBps),
		Source:         SourceSettings,
	}
}

// clampBps keeps rates non-negative. There is no upper bound.
func clampBps(bps int64) int64 {
	if bps < 0 {
		return 0
	}
	return bps
}
