package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/models"
)

const defaultSource = "broker"

// TradeApplier records broker trades in the ledger
type TradeApplier interface {
	TransactionExists(ctx context.Context, source, externalID string) (bool, error)
	ApplyTransaction(ctx context.Context, portfolioID int, in models.TransactionInput) (*models.Transaction, *models.Holding, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer applies TRADE_DETECTED events from a broker feed to the ledger.
// Trades without a portfolio_id go to the default portfolio.
type Consumer struct {
	reader           messageReader
	ledger           TradeApplier
	logger           *logging.Logger
	defaultPortfolio int
	now              func() time.Time
}

// NewConsumer creates a new Kafka consumer for trade events
func NewConsumer(brokers []string, topic, groupID string, defaultPortfolio int, applier TradeApplier, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return newConsumer(reader, defaultPortfolio, applier, logger)
}

func newConsumer(reader messageReader, defaultPortfolio int, applier TradeApplier, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	return &Consumer{
		reader:           reader,
		ledger:           applier,
		logger:           logger,
		defaultPortfolio: defaultPortfolio,
		now:              time.Now,
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("starting trade consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("trade consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.logger.Error().Err(err).Msg("failed to read message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("failed to process trade")
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != models.EventTradeDetected {
		c.logger.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}
	if event.Source == "" {
		event.Source = defaultSource
	}
	if event.Data.OrderID == "" {
		return fmt.Errorf("trade event from %q has no order_id", event.Source)
	}

	exists, err := c.ledger.TransactionExists(ctx, event.Source, event.Data.OrderID)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate trade: %w", err)
	}
	if exists {
		c.logger.Debug().Str("order_id", event.Data.OrderID).Str("source", event.Source).Msg("trade already recorded")
		return nil
	}

	portfolioID, in, err := c.toInput(event)
	if err != nil {
		return fmt.Errorf("failed to convert trade event: %w", err)
	}

	txn, holding, err := c.ledger.ApplyTransaction(ctx, portfolioID, in)
	if err != nil {
		if apperr.IsValidation(err) || apperr.IsNotFound(err) {
			c.logger.Warn().Err(err).
				Str("order_id", event.Data.OrderID).
				Str("ticker", in.Ticker).
				Msg("trade rejected by ledger")
			return nil
		}
		return fmt.Errorf("failed to apply trade %s: %w", event.Data.OrderID, err)
	}

	units := decimal.Zero
	if holding != nil {
		units = holding.Units
	}
	c.logger.Info().
		Str("order_id", event.Data.OrderID).
		Int("transaction_id", txn.ID).
		Str("ticker", txn.Ticker).
		Str("kind", txn.Kind).
		Str("units_held", units.String()).
		Msg("trade applied")
	return nil
}

// toInput maps a broker trade onto a ledger transaction
func (c *Consumer) toInput(event models.TradeEvent) (int, models.TransactionInput, error) {
	data := event.Data

	portfolioID := data.PortfolioID
	if portfolioID == 0 {
		portfolioID = c.defaultPortfolio
	}
	if portfolioID <= 0 {
		return 0, models.TransactionInput{}, fmt.Errorf("trade %s has no portfolio and no default is configured", data.OrderID)
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return 0, models.TransactionInput{}, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}
	price, err := decimal.NewFromString(data.AveragePrice)
	if err != nil {
		return 0, models.TransactionInput{}, fmt.Errorf("invalid price %s: %w", data.AveragePrice, err)
	}
	fees := decimal.Zero
	if data.Fees != "" {
		if fees, err = decimal.NewFromString(data.Fees); err != nil {
			return 0, models.TransactionInput{}, fmt.Errorf("invalid fees %s: %w", data.Fees, err)
		}
	}

	var kind string
	switch strings.ToUpper(strings.TrimSpace(data.Side)) {
	case "BUY":
		kind = models.TransactionBuy
	case "SELL":
		kind = models.TransactionSell
	default:
		return 0, models.TransactionInput{}, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	executedAt := c.executedAt(data.ExecutedAt)
	return portfolioID, models.TransactionInput{
		Kind:       kind,
		Ticker:     data.Symbol,
		Name:       data.Name,
		Type:       data.AssetType,
		Sector:     data.Sector,
		Units:      quantity,
		Price:      price,
		Fee:        fees,
		ExecutedAt: &executedAt,
		Source:     event.Source,
		ExternalID: data.OrderID,
	}, nil
}

// executedAt parses RFC 3339 or a bare UTC timestamp, falling back to now
func (c *Consumer) executedAt(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return c.now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, *raw); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05", *raw); err == nil {
		return t
	}
	c.logger.Warn().Str("executed_at", *raw).Msg("unparseable trade timestamp, using now")
	return c.now().UTC()
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
