package models

import "github.com/shopspring/decimal"

// HoldingValuation is a holding priced at its live quote.
// Valuation fields are null when no quote was available.
type HoldingValuation struct {
	Holding
	CurrentPrice     decimal.NullDecimal `json:"current_price"`
	CurrentValue     decimal.NullDecimal `json:"current_value"`
	Profit           decimal.NullDecimal `json:"profit"`
	PercentageChange decimal.NullDecimal `json:"percentage_change"`
}

// PortfolioValue aggregates live valuation, cost basis, fees and dividends
type PortfolioValue struct {
	Value                  decimal.Decimal `json:"value"`
	Invested               decimal.Decimal `json:"invested"`
	PercentageChange       decimal.Decimal `json:"percentage_change"`
	RealizedPnl            decimal.Decimal `json:"realized_pnl"`
	Fees                   decimal.Decimal `json:"fees"`
	Profit                 decimal.Decimal `json:"profit"`
	ProfitPercentageChange decimal.Decimal `json:"profit_percentage_change"`
	AnnualDividends        decimal.Decimal `json:"annual_dividends"`
	MonthlyDividends       decimal.Decimal `json:"monthly_dividends"`
	UnpricedTickers        []string        `json:"unpriced_tickers,omitempty"`
}

// RiskMetrics are annualized return statistics of a daily return series.
// Sortino is nil when there are too few downside observations.
type RiskMetrics struct {
	Sharpe         float64  `json:"sharpe_ratio"`
	Sortino        *float64 `json:"sortino_ratio"`
	ExpectedReturn float64  `json:"expected_annual_return"`
	Volatility     float64  `json:"annual_volatility"`
	Observations   int      `json:"observations"`
}

// PortfolioMetrics are the risk metrics of the allocation-weighted portfolio
type PortfolioMetrics struct {
	Allocation        map[string]float64             `json:"allocation"`
	CorrelationMatrix map[string]map[string]*float64 `json:"correlation_matrix"`
	SkippedTickers    []string                       `json:"skipped_tickers,omitempty"`
	RiskMetrics
}

// BenchmarkMetrics are the risk metrics of a single reference series
type BenchmarkMetrics struct {
	Ticker string `json:"ticker"`
	RiskMetrics
}

// PriceMatrix is the aligned price history an allocation optimizer consumes.
// Prices[i][j] is the price of Tickers[j] on Dates[i].
type PriceMatrix struct {
	Tickers        []string        `json:"tickers"`
	Dates          []string        `json:"dates"`
	Prices         [][]float64     `json:"prices"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// PortfolioReport bundles every read-only view of a portfolio.
// Sections that could not be computed are listed in Errors.
type PortfolioReport struct {
	Portfolio *Portfolio          `json:"portfolio"`
	Value     *PortfolioValue     `json:"value,omitempty"`
	Holdings  []*HoldingValuation `json:"holdings,omitempty"`
	Dividends map[string]string   `json:"dividends,omitempty"`
	Metrics   *PortfolioMetrics   `json:"metrics,omitempty"`
	Benchmark *BenchmarkMetrics   `json:"benchmark,omitempty"`
	Errors    map[string]string   `json:"errors,omitempty"`
}
