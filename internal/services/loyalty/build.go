package loyalty

import (
	"time"

	"loyalty/internal/metrics"
	"loyalty/internal/repositories"
	"loyalty/internal/repositories/cache"
	"loyalty/internal/services/antireplay"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/hold"
	"loyalty/internal/services/idempotency"
	"loyalty/internal/services/rates"
	"loyalty/internal/services/refund"
	"loyalty/internal/services/wallet"

	"gorm.io/gorm"
)

// Options tunes Build.
type Options struct {
	BalanceTTL     time.Duration
	IdempotencyTTL time.Duration
	APIKeyTTL      time.Duration
}

// Components is the wired object graph. Transports reach past Service for
// balance reads, API key checks and tier administration.
type Components struct {
	Merchants   repositories.MerchantRepository
	Tiers       repositories.TierRepository
	Ledger      repositories.LedgerRepository
	Idempotency repositories.IdempotencyRepository
	Wallets     *wallet.Ledger
	Tokens      *auth.TokenService
	APIKeys     *auth.APIKeyService
	Service     *Service
}

// Build wires every repository and service on top of db. front may be nil,
// in which case nothing is cached in front of the database.
func Build(db *gorm.DB, front cache.Cache, collector metrics.Collector, tokens *auth.TokenService, opts Options) *Components {
	if front == nil {
		front = cache.NopCache{}
	}
	collector = metrics.OrNoop(collector)

	merchants := repositories.NewMerchantRepository(db)
	tiers := repositories.NewTierRepository(db)
	ledger := repositories.NewLedgerRepository(db)
	idempotencyKeys := repositories.NewIdempotencyRepository(db)
	wallets := wallet.NewLedger(ledger, front, collector, opts.BalanceTTL)

	svc := NewService(Config{
		Merchants:      merchants,
		Ledger:         ledger,
		Rates:          rates.NewResolver(tiers),
		AntiReplay:     antireplay.NewStore(repositories.NewNonceRepository(db)),
		Idempotency:    idempotency.NewCache(idempotencyKeys, front, collector),
		Holds:          hold.NewService(ledger),
		Wallets:        wallets,
		Refunds:        refund.NewEngine(wallets),
		Tokens:         tokens,
		Metrics:        collector,
		IdempotencyTTL: opts.IdempotencyTTL,
	})

	return &Components{
		Merchants:   merchants,
		Tiers:       tiers,
		Ledger:      ledger,
		Idempotency: idempotencyKeys,
		Wallets:     wallets,
		Tokens:      tokens,
		APIKeys:     auth.NewAPIKeyService(merchants, front, opts.APIKeyTTL),
		Service:     svc,
	}
}
