package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCache_ReadThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := setupRedis(t)
	ctx := context.Background()

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	static := NewStatic().
		SetQuote("AAPL", 212.49, 0.97).
		SetDailyHistory("AAPL", []models.PricePoint{{Date: day, Price: decimal.RequireFromString("190.25")}}).
		SetDividends("AAPL", []models.DividendEvent{{Date: day, Amount: decimal.RequireFromString("0.25")}})
	cache := NewCache(static, client, time.Minute, nil)

	t.Run("quotes are fetched once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			q, err := cache.GetQuote(ctx, "AAPL")
			require.NoError(t, err)
			assert.True(t, q.CurrentPrice.Equal(decimal.RequireFromString("212.49")))
		}
		assert.Equal(t, 1, static.Calls("GetQuote", "AAPL"))

		ttl, err := client.TTL(ctx, cacheKey("quote", "AAPL")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("history round trips", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			points, err := cache.GetDailyHistory(ctx, "AAPL", day, day)
			require.NoError(t, err)
			require.Len(t, points, 1)
			assert.True(t, points[0].Date.Equal(day))
			assert.True(t, points[0].Price.Equal(decimal.RequireFromString("190.25")))
		}
		assert.Equal(t, 1, static.Calls("GetDailyHistory", "AAPL"))
	})

	t.Run("missing data is not cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := cache.GetQuote(ctx, "NOPE")
			assert.True(t, apperr.IsDataUnavailable(err))
		}
		assert.Equal(t, 2, static.Calls("GetQuote", "NOPE"))
	})
}

func TestCache_FallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	static := NewStatic().SetQuote("MSFT", 420, 3)
	cache := NewCache(static, client, time.Minute, nil)

	q, err := cache.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, q.TrailingAnnualDividendRate.Equal(decimal.NewFromInt(3)))

	_, err = cache.GetDividendEvents(context.Background(), "MSFT")
	assert.True(t, apperr.IsDataUnavailable(err))
}
