package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultClassification is used for asset type and sector when none is given
const DefaultClassification = "Others"

// Portfolio is a named collection of holdings and transactions owned by a user
type Portfolio struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PortfolioSummary is a portfolio with its cost-basis value
type PortfolioSummary struct {
	Portfolio
	Value decimal.Decimal `json:"value"`
}

// Holding is the current aggregate position in one ticker within one portfolio
type Holding struct {
	ID          int             `json:"id"`
	PortfolioID int             `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Sector      string          `json:"sector"`
	Units       decimal.Decimal `json:"units"`
	AverageCost decimal.Decimal `json:"average_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CostBasis returns units times average cost
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Units.Mul(h.AverageCost)
}

// NormalizeTicker uppercases and trims a ticker symbol for lookups
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
