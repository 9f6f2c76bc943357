// Package loyalty composes rate resolution, redeem caps, anti-replay,
// holds, the wallet ledger, refunds and idempotency into the four ledger
// operations: Quote, Commit, Cancel and Refund.
package loyalty

import (
	"context"
	"encoding/json"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/metrics"
	"loyalty/internal/repositories"
	"loyalty/internal/services/antireplay"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/hold"
	"loyalty/internal/services/idempotency"
	"loyalty/internal/services/rates"
	"loyalty/internal/services/refund"
	"loyalty/internal/services/wallet"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config wires the service. Metrics is optional.
type Config struct {
	Merchants      repositories.MerchantRepository
	Ledger         repositories.LedgerRepository
	Rates          *rates.Resolver
	AntiReplay     *antireplay.Store
	Idempotency    *idempotency.Cache
	Holds          *hold.Service
	Wallets        *wallet.Ledger
	Refunds        *refund.Engine
	Tokens         *auth.TokenService
	Metrics        metrics.Collector
	IdempotencyTTL time.Duration
}

type Service struct {
	merchants      repositories.MerchantRepository
	ledger         repositories.LedgerRepository
	rates          *rates.Resolver
	antiReplay     *antireplay.Store
	idempotency    *idempotency.Cache
	holds          *hold.Service
	wallets        *wallet.Ledger
	refunds        *refund.Engine
	tokens         *auth.TokenService
	metrics        metrics.Collector
	idempotencyTTL time.Duration
}

func NewService(cfg Config) *Service {
	switch {
	case cfg.Merchants == nil:
		panic("merchant repository is required")
	case cfg.Ledger == nil:
		panic("ledger repository is required")
	case cfg.Rates == nil:
		panic("rate resolver is required")
	case cfg.AntiReplay == nil:
		panic("anti-replay store is required")
	case cfg.Idempotency == nil:
		panic("idempotency cache is required")
	case cfg.Holds == nil:
		panic("hold service is required")
	case cfg.Wallets == nil:
		panic("wallet ledger is required")
	case cfg.Refunds == nil:
		panic("refund engine is required")
	case cfg.Tokens == nil:
		panic("token service is required")
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = idempotency.DefaultTTL
	}
	return &Service{
		merchants:      cfg.Merchants,
		ledger:         cfg.Ledger,
		rates:          cfg.Rates,
		antiReplay:     cfg.AntiReplay,
		idempotency:    cfg.Idempotency,
		holds:          cfg.Holds,
		wallets:        cfg.Wallets,
		refunds:        cfg.Refunds,
		tokens:         cfg.Tokens,
		metrics:        metrics.OrNoop(cfg.Metrics),
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

// Cancel releases a PENDING hold. Holds never touch the wallet before
// commit, so nothing is posted.
func (s *Service) Cancel(ctx context.Context, merchantID, holdID string) (res *CancelResult, err error) {
	defer s.observe("cancel", time.Now(), &err)

	if merchantID == "" || holdID == "" {
		return nil, apperrors.ErrInvalidRequest.WithDetail("merchantId and holdId are required")
	}
	h, err := s.holds.Cancel(ctx, merchantID, holdID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("merchant_id", merchantID).Str("hold_id", holdID).Msg("hold canceled")
	return &CancelResult{HoldID: h.ID, Status: h.Status, OK: true}, nil
}

// replayed loads a stored response for key into dest.
func (s *Service) replayed(ctx context.Context, merchantID, key, operation string, dest interface{}) (bool, error) {
	if key == "" {
		return false, nil
	}
	stored, found, err := s.idempotency.Get(ctx, merchantID, key, operation)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(stored, dest); err != nil {
		return false, errors.Wrap(err, "decode stored response")
	}
	s.metrics.RecordReplay(metrics.ReplayIdempotency)
	return true, nil
}

// remember stores result under key and returns whatever is stored
// afterwards, so concurrent retries all answer with the first response.
// The stored bytes decode into a fresh value and never overlay result.
func remember[T any](ctx context.Context, s *Service, merchantID, key, operation string, result *T) (*T, error) {
	if key == "" {
		return result, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encode response")
	}
	stored, err := s.idempotency.Put(ctx, merchantID, key, operation, data, s.idempotencyTTL)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(stored, &out); err != nil {
		return nil, errors.Wrap(err, "decode stored response")
	}
	return &out, nil
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordOperationDuration(operation, time.Since(start))
	result := "ok"
	if *err != nil {
		result = "error"
		if kind := apperrors.KindOf(*err); kind != "" {
			result = string(kind)
		}
	}
	s.metrics.RecordOperationResult(operation, result)
}
