// Package antireplay enforces single use of customer QR tokens.
package antireplay

import (
	"context"
	"strings"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Outcome of MarkConsumed.
type Outcome int

const (
	// Consumed means this call consumed the token.
	Consumed Outcome = iota + 1
	// Replayed means the token had been consumed before.
	Replayed
)

func (o Outcome) String() string {
	switch o {
	case Consumed:
		return "consumed"
	case Replayed:
		return "replayed"
	default:
		return "unknown"
	}
}

// Token identifies one QR token.
type Token struct {
	Jti        string
	MerchantID string
	CustomerID string
	IssuedAt   *time.Time
	ExpiresAt  *time.Time
}

// Store records consumed tokens.
//
// MarkConsumed writes through its own repository handle and must never be
// handed a transaction-scoped one. The mark has to be durable before the
// hold is written: if both shared one transaction, a failure later in the
// quote would roll the mark back and the same token could be used again.
type Store struct {
	nonces repositories.NonceRepository
}

func NewStore(nonces repositories.NonceRepository) *Store {
	if nonces == nil {
		panic("nonce repository is required")
	}
	return &Store{nonces: nonces}
}

// MarkConsumed consumes token.Jti, or reports Replayed when it was consumed
// already.
func (s *Store) MarkConsumed(ctx context.Context, token Token) (Outcome, error) {
	jti := strings.TrimSpace(token.Jti)
	if jti == "" {
		return 0, apperrors.ErrInvalidToken.WithDetail("missing token id")
	}
	created, err := s.nonces.Insert(ctx, &models.QrNonce{
		Jti:        jti,
		MerchantID: token.MerchantID,
		CustomerID: token.CustomerID,
		IssuedAt:   token.IssuedAt,
		ExpiresAt:  token.ExpiresAt,
	})
	if err != nil {
		return 0, errors.Wrap(err, "mark qr token consumed")
	}
	if !created {
		log.Debug().Str("jti", jti).Str("merchant_id", token.MerchantID).Msg("qr token replayed")
		return Replayed, nil
	}
	return Consumed, nil
}
