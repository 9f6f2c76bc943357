// Package idempotency replays stored responses for retried commit and refund
// calls.
package idempotency

import (
	"context"
	"strings"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/metrics"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/repositories/cache"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Operations that store responses.
const (
	OperationCommit = "commit"
	OperationRefund = "refund"
)

const metricsCache = "idempotency"

// DefaultTTL applies when Put is called without a TTL.
const DefaultTTL = 72 * time.Hour

// Entry is a stored response.
type Entry struct {
	Operation string    `json:"operation"`
	Response  []byte    `json:"response"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Cache keeps (merchant, key) -> response. The database row is the source
// of truth; redis only fronts reads. An expired entry is never returned.
type Cache struct {
	repo    repositories.IdempotencyRepository
	front   cache.Cache
	metrics metrics.Collector
	now     func() time.Time
}

func NewCache(repo repositories.IdempotencyRepository, front cache.Cache, collector metrics.Collector) *Cache {
	if repo == nil {
		panic("idempotency repository is required")
	}
	if front == nil {
		front = cache.NopCache{}
	}
	return &Cache{repo: repo, front: front, metrics: metrics.OrNoop(collector), now: time.Now}
}

func frontKey(merchantID, key string) string {
	return cache.GenerateKey("idempotency", merchantID, key)
}

// Get returns the stored response for (merchantID, key). A key stored by a
// different operation is rejected rather than replayed.
func (c *Cache) Get(ctx context.Context, merchantID, key, operation string) ([]byte, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, nil
	}
	now := c.now()

	var cached Entry
	found, err := c.front.Get(ctx, frontKey(merchantID, key), &cached)
	if err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Msg("idempotency front cache read failed")
	}
	if found && now.Before(cached.ExpiresAt) {
		c.metrics.RecordCacheHit(metricsCache)
		return checkOperation(cached, operation)
	}
	c.metrics.RecordCacheMiss(metricsCache)

	row, err := c.repo.Get(ctx, merchantID, key)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	if row.Expired(now) {
		if err := c.repo.DeleteExpired(ctx, merchantID, key, now); err != nil {
			log.Warn().Err(err).Str("merchant_id", merchantID).Msg("purge expired idempotency key failed")
		}
		c.evict(ctx, merchantID, key)
		return nil, false, nil
	}

	entry := entryFromRow(row)
	c.warm(ctx, merchantID, key, entry, now)
	return checkOperation(entry, operation)
}

// Put stores response under (merchantID, key) and returns the response that
// is stored afterwards. When a concurrent caller stored first, that earlier
// response wins and is returned instead.
func (c *Cache) Put(ctx context.Context, merchantID, key, operation string, response []byte, ttl time.Duration) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return response, nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := c.now()
	row := &models.IdempotencyKey{
		MerchantID: merchantID,
		Key:        key,
		Operation:  operation,
		Response:   string(response),
		ExpiresAt:  now.Add(ttl),
	}

	created, err := c.repo.Insert(ctx, row)
	if err != nil {
		return nil, err
	}
	if !created && row.Expired(now) {
		fresh := &models.IdempotencyKey{
			MerchantID: merchantID,
			Key:        key,
			Operation:  operation,
			Response:   string(response),
			ExpiresAt:  now.Add(ttl),
		}
		replaced, err := c.repo.Replace(ctx, fresh, now)
		if err != nil {
			return nil, err
		}
		if replaced {
			row = fresh
		} else if row, err = c.repo.Get(ctx, merchantID, key); err != nil {
			return nil, err
		} else if row == nil {
			return nil, errors.New("idempotency key vanished during replace")
		}
	}

	entry := entryFromRow(row)
	c.warm(ctx, merchantID, key, entry, now)
	if entry.Operation != operation {
		return nil, apperrors.ErrIdempotencyKeyReused
	}
	return entry.Response, nil
}

func (c *Cache) warm(ctx context.Context, merchantID, key string, entry Entry, now time.Time) {
	ttl := entry.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := c.front.SetWithTTL(ctx, frontKey(merchantID, key), entry, ttl); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Msg("idempotency front cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context, merchantID, key string) {
	if err := c.front.Delete(ctx, frontKey(merchantID, key)); err != nil {
		log.Warn().Err(err).Str("merchant_id", merchantID).Msg("idempotency front cache delete failed")
	}
}

func entryFromRow(row *models.IdempotencyKey) Entry {
	return Entry{Operation: row.Operation, Response: []byte(row.Response), ExpiresAt: row.ExpiresAt}
}

func checkOperation(entry Entry, operation string) ([]byte, bool, error) {
	if operation != "" && entry.Operation != operation {
		return nil, false, apperrors.ErrIdempotencyKeyReused
	}
	return entry.Response, true, nil
}
