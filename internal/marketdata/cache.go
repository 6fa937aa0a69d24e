package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tradesim/internal/domain"
	"tradesim/internal/telemetry"
)

var _ Provider = (*CachingProvider)(nil)

// CachingProvider decorates a Provider with a Redis cache of the fetched bars.
// A nil Redis client bypasses the cache.
type CachingProvider struct {
	inner     Provider
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	metrics   *telemetry.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewCachingProvider wraps inner. If ttl is 0 it defaults to 24 hours; if
// namespace is empty it uses "bars".
func NewCachingProvider(rdb *redis.Client, ttl time.Duration, inner Provider, namespace string, metrics *telemetry.Metrics) *CachingProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "bars"
	}
	return &CachingProvider{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		metrics:   metrics,
		log:       slog.Default().With("component", "bar-cache"),
		now:       time.Now,
	}
}

// Fetch checks the cache first, then falls back to the inner provider and
// stores its result. Unavailable ranges are not cached, and neither are
// ranges reaching today, which may still gain a bar.
func (c *CachingProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error) {
	if c.rdb == nil {
		return c.inner.Fetch(ctx, ticker, start, end)
	}
	if err := checkRange(ticker, start, end); err != nil {
		return nil, err
	}
	ticker = NormalizeTicker(ticker)
	start, end = DayRange(start, end)
	key := c.cacheKey(ticker, start, end)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var bars []domain.Bar
		if err := json.Unmarshal(b, &bars); err == nil {
			if table, err := domain.NewPriceTable(ticker, bars); err == nil {
				c.metrics.CacheLookup("redis", true)
				return table, nil
			}
		}
		// Delete corrupted cache entry
		c.log.Warn("dropping corrupt cache entry", "key", key)
		_ = c.rdb.Del(ctx, key).Err()
	} else if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("cache read failed", "key", key, "err", err)
	}
	c.metrics.CacheLookup("redis", false)

	// 2) Fall back to the inner provider
	table, err := c.inner.Fetch(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if !end.Before(dayStart(c.now())) {
		return table, nil
	}
	if b, err := json.Marshal(table.Bars()); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", "key", key, "err", err)
		}
	}
	return table, nil
}

// Invalidate deletes every cached range of ticker.
func (c *CachingProvider) Invalidate(ctx context.Context, ticker string) error {
	if c.rdb == nil {
		return nil
	}
	return c.deleteByPattern(ctx, c.cacheKeyPrefix(NormalizeTicker(ticker))+"*")
}

func (c *CachingProvider) cacheKey(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.cacheKeyPrefix(ticker), start.Format(time.DateOnly), end.Format(time.DateOnly))
}

func (c *CachingProvider) cacheKeyPrefix(ticker string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(ticker))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingProvider) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
