package models

import "time"

// Transaction event type constants
const (
	EventTransactionApplied  = "TRANSACTION_APPLIED"
	EventTransactionReversed = "TRANSACTION_REVERSED"
	EventTradeDetected       = "TRADE_DETECTED"
)

// TransactionEvent represents a Kafka event for ledger changes.
// Holding is nil when the transaction removed it.
type TransactionEvent struct {
	EventID     string       `json:"event_id"`
	EventType   string       `json:"event_type"`
	PortfolioID int          `json:"portfolio_id"`
	Ticker      string       `json:"ticker"`
	Transaction *Transaction `json:"transaction"`
	Holding     *Holding     `json:"holding,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TradeEvent is a broker trade notification consumed from Kafka
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData holds the trade fields; numbers arrive as strings
type TradeEventData struct {
	PortfolioID  int     `json:"portfolio_id"`
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name,omitempty"`
	AssetType    string  `json:"asset_type,omitempty"`
	Sector       string  `json:"sector,omitempty"`
	Side         string  `json:"side"`
	Quantity     string  `json:"quantity"`
	AveragePrice string  `json:"average_price"`
	Fees         string  `json:"fees,omitempty"`
	ExecutedAt   *string `json:"executed_at,omitempty"`
}
