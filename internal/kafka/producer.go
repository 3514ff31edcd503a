// Package kafka publishes ledger change events and ingests broker trades
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/portfolio-service/internal/ledger"
	"github.com/trogers1052/portfolio-service/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing transaction events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

var _ ledger.EventPublisher = (*Producer)(nil)

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishTransactionApplied publishes a transaction applied event
func (p *Producer) PublishTransactionApplied(ctx context.Context, t *models.Transaction, h *models.Holding) error {
	return p.publish(ctx, models.EventTransactionApplied, t, h)
}

// PublishTransactionReversed publishes a transaction reversed event
func (p *Producer) PublishTransactionReversed(ctx context.Context, t *models.Transaction, h *models.Holding) error {
	return p.publish(ctx, models.EventTransactionReversed, t, h)
}

func (p *Producer) publish(ctx context.Context, eventType string, t *models.Transaction, h *models.Holding) error {
	event := models.TransactionEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		PortfolioID: t.PortfolioID,
		Ticker:      t.Ticker,
		Transaction: t,
		Holding:     h,
		Timestamp:   p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// one key per holding keeps its events ordered on a single partition
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(t.PortfolioID) + ":" + t.Ticker),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
