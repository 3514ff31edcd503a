package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/portfolio-service/internal/analytics"
	"github.com/trogers1052/portfolio-service/internal/api"
	"github.com/trogers1052/portfolio-service/internal/config"
	"github.com/trogers1052/portfolio-service/internal/database"
	"github.com/trogers1052/portfolio-service/internal/kafka"
	"github.com/trogers1052/portfolio-service/internal/ledger"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.NewLogger(cfg.Logging.Level)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service failed")
	}
}

// run wires the service and blocks until shutdown; deferred cleanup runs
// before it returns
func run(cfg *config.Config, logger *logging.Logger) error {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info().Str("database", cfg.Database.DBName).Msg("database ready")

	provider, closeProvider := newProvider(cfg, logger)
	defer closeProvider()

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger.With("ledger"))}
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(producer))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing transaction events")
	}
	ledgerSvc := ledger.NewService(db, ledgerOpts...)

	analyticsSvc := analytics.NewService(ledgerSvc, provider,
		analytics.WithLogger(logger.With("analytics")),
		analytics.WithMaxConcurrency(cfg.MarketData.MaxConcurrency),
		analytics.WithBenchmark(cfg.MarketData.BenchmarkTicker),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	if cfg.Kafka.ConsumerEnabled && len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, cfg.Kafka.GroupID,
			cfg.Kafka.DefaultPortfolioID, ledgerSvc, logger.With("trade-consumer"))
		go func() {
			defer close(consumerDone)
			if err := consumer.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("trade consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	handler := api.NewHandler(ledgerSvc, analyticsSvc, db, logger.With("http"))
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := serve(ctx, srv, logger)
	// a failed listener still has to stop the consumer
	stop()
	<-consumerDone
	if serveErr != nil {
		return serveErr
	}
	logger.Info().Msg("server stopped")
	return nil
}

// serve runs srv until ctx is done or the listener fails, then shuts it down
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

// newProvider builds the market data stack: EODHD behind an optional Redis
// cache, or an empty static provider when no API key is configured
func newProvider(cfg *config.Config, logger *logging.Logger) (marketdata.Provider, func()) {
	if cfg.MarketData.APIKey == "" {
		logger.Warn().Msg("EODHD_API_KEY not set, market data analytics will report insufficient data")
		return marketdata.NewStatic(), func() {}
	}

	var provider marketdata.Provider = marketdata.NewEODHD(cfg.MarketData.APIKey,
		marketdata.WithBaseURL(cfg.MarketData.BaseURL),
		marketdata.WithRateLimit(cfg.MarketData.RateLimit),
		marketdata.WithTimeout(cfg.MarketData.GetTimeout()),
		marketdata.WithLogger(logger.With("eodhd")),
	)

	if cfg.Redis.Addr == "" {
		return provider, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ttl := cfg.Redis.GetTTL()
	logger.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", ttl).Msg("caching market data in redis")
	return marketdata.NewCache(provider, client, ttl, logger.With("cache")), func() { client.Close() }
}
