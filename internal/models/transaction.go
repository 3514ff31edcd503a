package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kind constants
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

// Transaction is an immutable buy or sell event against a holding.
// Asset fields are a snapshot taken when the transaction was applied.
type Transaction struct {
	ID          int             `json:"id"`
	PortfolioID int             `json:"portfolio_id"`
	HoldingID   *int            `json:"holding_id,omitempty"`
	Kind        string          `json:"transaction_type"`
	AssetName   string          `json:"asset_name"`
	Ticker      string          `json:"ticker"`
	AssetType   string          `json:"asset_type"`
	AssetSector string          `json:"asset_sector"`
	Units       decimal.Decimal `json:"units"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
	Source      string          `json:"source,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	ExecutedAt  time.Time       `json:"transaction_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsSell reports whether the transaction disposes of units
func (t *Transaction) IsSell() bool {
	return t.Kind == TransactionSell
}

// Sign returns -1 for sells and +1 for buys
func (t *Transaction) Sign() decimal.Decimal {
	if t.IsSell() {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// TransactionInput carries the fields a caller supplies to apply a transaction
type TransactionInput struct {
	Kind       string          `json:"transaction_type"`
	Ticker     string          `json:"asset_ticker"`
	Name       string          `json:"asset_name"`
	Type       string          `json:"asset_type"`
	Sector     string          `json:"asset_sector"`
	Units      decimal.Decimal `json:"units"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt *time.Time      `json:"transaction_date,omitempty"`
	Source     string          `json:"source,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
}
