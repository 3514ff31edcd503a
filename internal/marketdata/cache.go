package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// DefaultCacheTTL bounds how stale a cached quote can get
const DefaultCacheTTL = 15 * time.Minute

// Cache is a read-through Redis cache in front of another Provider.
// Only successful responses are cached; Redis failures fall through to the
// wrapped provider.
type Cache struct {
	next   Provider
	client redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewCache wraps next with a Redis cache
func NewCache(next Provider, client redis.Cmdable, ttl time.Duration, logger *logging.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	return &Cache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Cache) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	return readThrough(ctx, c, cacheKey("quote", ticker), func() (*models.Quote, error) {
		return c.next.GetQuote(ctx, ticker)
	})
}

func (c *Cache) GetDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]models.PricePoint, error) {
	key := cacheKey("history", ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return readThrough(ctx, c, key, func() ([]models.PricePoint, error) {
		return c.next.GetDailyHistory(ctx, ticker, start, end)
	})
}

func (c *Cache) GetAdjustedCloseHistory(ctx context.Context, ticker, period string) ([]models.PricePoint, error) {
	// trailing windows move daily
	key := cacheKey("adjclose", ticker, period, c.now().UTC().Format(time.DateOnly))
	return readThrough(ctx, c, key, func() ([]models.PricePoint, error) {
		return c.next.GetAdjustedCloseHistory(ctx, ticker, period)
	})
}

func (c *Cache) GetDividendEvents(ctx context.Context, ticker string) ([]models.DividendEvent, error) {
	return readThrough(ctx, c, cacheKey("dividends", ticker), func() ([]models.DividendEvent, error) {
		return c.next.GetDividendEvents(ctx, ticker)
	})
}

func readThrough[T any](ctx context.Context, c *Cache, key string, fetch func() (T, error)) (T, error) {
	var cached T
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	value, err := fetch()
	if err != nil {
		return value, err
	}

	data, err = json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return value, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return value, nil
}

var _ Provider = (*Cache)(nil)
