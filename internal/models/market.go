package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot for a ticker
type Quote struct {
	Ticker                     string          `json:"ticker"`
	CurrentPrice               decimal.Decimal `json:"current_price"`
	TrailingAnnualDividendRate decimal.Decimal `json:"trailing_annual_dividend_rate"`
	AsOf                       time.Time       `json:"as_of"`
}

// PricePoint is one dated price in a daily series
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// DividendEvent is a per-share dividend paid on its ex-date
type DividendEvent struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}
