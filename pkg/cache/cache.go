package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL defaults
const (
	TTLCatalog = 1 * time.Minute
	TTLDataset = 5 * time.Minute
)

// Key prefixes
const (
	PrefixCatalog = "clouseau:catalog"
	PrefixDataset = "clouseau:dataset:"
)

// ErrUnavailable is returned by lookups when no Redis client is configured
var ErrUnavailable = errors.New("redis not available")

// Service caches upstream responses shared by all sessions
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Catalog
	GetCatalog(ctx context.Context, dest interface{}) error
	SetCatalog(ctx context.Context, data interface{}, ttl time.Duration) error

	// Datasets, keyed by channel, product and date
	GetDataset(ctx context.Context, channel, product, date string, dest interface{}) error
	SetDataset(ctx context.Context, channel, product, date string, data interface{}, ttl time.Duration) error
	InvalidateDatasets(ctx context.Context) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a Redis backed cache; a nil client yields a cache
// that always misses and never stores
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsMiss reports whether err means the key was absent or the cache is off
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil) || errors.Is(err, ErrUnavailable)
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return ErrUnavailable
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrUnavailable
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// ========================================
// Catalog
// ========================================

func (c *redisCache) GetCatalog(ctx context.Context, dest interface{}) error {
	return c.Get(ctx, PrefixCatalog, dest)
}

func (c *redisCache) SetCatalog(ctx context.Context, data interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	return c.Set(ctx, PrefixCatalog, data, ttl)
}

// ========================================
// Datasets
// ========================================

func DatasetKey(channel, product, date string) string {
	return fmt.Sprintf("%s%s:%s:%s", PrefixDataset, channel, product, date)
}

func (c *redisCache) GetDataset(ctx context.Context, channel, product, date string, dest interface{}) error {
	return c.Get(ctx, DatasetKey(channel, product, date), dest)
}

func (c *redisCache) SetDataset(ctx context.Context, channel, product, date string, data interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLDataset
	}
	return c.Set(ctx, DatasetKey(channel, product, date), data, ttl)
}

func (c *redisCache) InvalidateDatasets(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixDataset+"*")
}

func (c *redisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
