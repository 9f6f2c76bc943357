package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/repositories/cache"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "mk_"

// APIKeyService issues and verifies merchant API keys of the form
// mk_<merchantID>_<secret>. Only a bcrypt hash of the secret is stored.
// A successful verification is remembered in the front cache for ttl,
// keyed by a sha256 of the presented key, so repeat requests skip bcrypt.
type APIKeyService struct {
	merchants repositories.MerchantRepository
	front     cache.Cache
	ttl       time.Duration
	cost      int
	compare   func(hash, secret []byte) error
}

// verifiedKey is the cached proof of a past bcrypt match. It is only valid
// while the merchant still carries the same hash.
type verifiedKey struct {
	MerchantID string `json:"merchant_id"`
	KeyHash    string `json:"key_hash"`
}

// NewAPIKeyService builds the verifier. A nil front or a non-positive ttl
// disables the verified-key cache.
func NewAPIKeyService(merchants repositories.MerchantRepository, front cache.Cache, ttl time.Duration) *APIKeyService {
	if merchants == nil {
		panic("merchant repository is required")
	}
	if front == nil || ttl <= 0 {
		front = cache.NopCache{}
	}
	return &APIKeyService{
		merchants: merchants,
		front:     front,
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		compare:   bcrypt.CompareHashAndPassword,
	}
}

// Generate creates a new key for merchantID and stores its hash. The plain
// key is only ever returned here.
func (s *APIKeyService) Generate(ctx context.Context, merchantID string) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate api key")
	}
	secret := hex.EncodeToString(b)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", errors.Wrap(err, "hash api key")
	}
	if err := s.merchants.SetAPIKeyHash(ctx, merchantID, string(hash)); err != nil {
		return "", err
	}
	return apiKeyPrefix + merchantID + "_" + secret, nil
}

// Verify returns the active merchant owning key. The merchant row is read
// on every call so that rotation and suspension apply immediately.
func (s *APIKeyService) Verify(ctx context.Context, key string) (*models.Merchant, error) {
	merchantID, secret, ok := splitAPIKey(key)
	if !ok {
		return nil, apperrors.ErrInvalidAPIKey
	}
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMerchantNotFound) {
			return nil, apperrors.ErrInvalidAPIKey
		}
		return nil, err
	}
	if merchant.APIKeyHash == "" || merchant.Status != models.MerchantStatusActive {
		return nil, apperrors.ErrInvalidAPIKey
	}

	cacheKey := verifiedCacheKey(key)
	var cached verifiedKey
	if hit, err := s.front.Get(ctx, cacheKey, &cached); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Msg("api key cache read failed")
	} else if hit && cached.MerchantID == merchant.ID && cached.KeyHash == merchant.APIKeyHash {
		return merchant, nil
	}

	if err := s.compare([]byte(merchant.APIKeyHash), []byte(secret)); err != nil {
		return nil, apperrors.ErrInvalidAPIKey
	}
	entry := verifiedKey{MerchantID: merchant.ID, KeyHash: merchant.APIKeyHash}
	if err := s.front.SetWithTTL(ctx, cacheKey, entry, s.ttl); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Msg("api key cache write failed")
	}
	return merchant, nil
}

func verifiedCacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return cache.GenerateKey("apikey", "verified", hex.EncodeToString(sum[:]))
}

func splitAPIKey(key string) (string, string, bool) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, apiKeyPrefix)
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
