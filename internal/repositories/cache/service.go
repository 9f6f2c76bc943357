// Package cache fronts read-heavy lookups with redis. Nothing stored here is
// authoritative: every entry can be dropped and rebuilt from the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is the subset of CacheService the services depend on.
type Cache interface {
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// SetWithTTL stores value under key. A non-positive ttl means the default TTL.
func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal cache value")
	}
	return errors.Wrap(s.client.Set(ctx, key, data, ttl).Err(), "set cache value")
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "get cache value")
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, "unmarshal cache value")
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "delete cache value")
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}

// GenerateKey builds keys of the form entity:type:value.
func GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// NopCache never stores anything. It stands in when redis is not configured.
type NopCache struct{}

func (NopCache) SetWithTTL(context.Context, string, interface{}, time.Duration) error { return nil }
func (NopCache) Get(context.Context, string, interface{}) (bool, error)               { return false, nil }
func (NopCache) Delete(context.Context, ...string) error                              { return nil }

var (
	_ Cache = (*CacheService)(nil)
	_ Cache = NopCache{}
)
