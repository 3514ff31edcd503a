package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/calendar"
	"github.com/trogers1052/portfolio-service/internal/models"
)

type pricedSeries struct {
	quote   *models.Quote
	history []models.PricePoint
}

// universe is the set of held tickers that have both a live quote and an
// adjusted close history, aligned on the dates every one of them traded
type universe struct {
	tickers []string
	dates   []time.Time
	prices  map[string][]float64
	values  map[string]decimal.Decimal
	skipped []string
}

func (u *universe) totalValue() decimal.Decimal {
	total := decimal.Zero
	for _, v := range u.values {
		total = total.Add(v)
	}
	return total
}

func (s *Service) loadUniverse(ctx context.Context, op string, holdings []*models.Holding) (*universe, error) {
	tickers := holdingTickers(holdings)
	if len(tickers) == 0 {
		return nil, apperr.ErrInsufficientData
	}

	series, errs := fetchAll(ctx, s.maxConcurrency, tickers, func(ctx context.Context, ticker string) (pricedSeries, error) {
		q, err := s.provider.GetQuote(ctx, ticker)
		if err != nil {
			return pricedSeries{}, err
		}
		history, err := s.provider.GetAdjustedCloseHistory(ctx, ticker, s.period)
		if err != nil {
			return pricedSeries{}, err
		}
		return pricedSeries{quote: q, history: history}, nil
	})
	s.logSkipped(op, errs)
	if len(series) == 0 {
		return nil, allFailed(errs)
	}

	u := &universe{
		tickers: sortedKeys(series),
		prices:  make(map[string][]float64, len(series)),
		values:  make(map[string]decimal.Decimal, len(series)),
		skipped: sortedKeys(errs),
	}
	for _, h := range holdings {
		if ps, ok := series[h.Ticker]; ok {
			u.values[h.Ticker] = u.values[h.Ticker].Add(ps.quote.CurrentPrice.Mul(h.Units))
		}
	}

	// inner join on dates
	byTicker := make(map[string]map[time.Time]float64, len(series))
	counts := make(map[time.Time]int)
	for ticker, ps := range series {
		prices := make(map[time.Time]float64, len(ps.history))
		for _, p := range ps.history {
			date := calendar.Truncate(p.Date)
			if _, dup := prices[date]; !dup {
				counts[date]++
			}
			prices[date] = p.Price.InexactFloat64()
		}
		byTicker[ticker] = prices
	}
	for date, n := range counts {
		if n == len(series) {
			u.dates = append(u.dates, date)
		}
	}
	sort.Slice(u.dates, func(i, j int) bool { return u.dates[i].Before(u.dates[j]) })

	for _, ticker := range u.tickers {
		aligned := make([]float64, len(u.dates))
		for i, date := range u.dates {
			aligned[i] = byTicker[ticker][date]
		}
		u.prices[ticker] = aligned
	}
	return u, nil
}

// GetPortfolioMetrics computes allocation weights, risk statistics of the
// allocation-weighted daily returns and the correlation of ticker returns
func (s *Service) GetPortfolioMetrics(ctx context.Context, portfolioID int) (*models.PortfolioMetrics, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	u, err := s.loadUniverse(ctx, "metrics", snap.Holdings)
	if err != nil {
		return nil, err
	}

	total := u.totalValue()
	if !total.IsPositive() || len(u.dates) < 2 {
		return nil, apperr.ErrInsufficientData
	}

	allocation := make(map[string]float64, len(u.tickers))
	returns := make(map[string][]float64, len(u.tickers))
	for _, ticker := range u.tickers {
		allocation[ticker] = round(u.values[ticker].Div(total).InexactFloat64(), 3)
		returns[ticker] = dailyReturns(u.prices[ticker])
	}

	portfolioReturns := make([]float64, len(u.dates)-1)
	for i := range portfolioReturns {
		for _, ticker := range u.tickers {
			portfolioReturns[i] += allocation[ticker] * returns[ticker][i]
		}
	}

	return &models.PortfolioMetrics{
		Allocation:        allocation,
		CorrelationMatrix: correlationMatrix(u.tickers, returns),
		SkippedTickers:    u.skipped,
		RiskMetrics:       riskMetrics(portfolioReturns),
	}, nil
}

func correlationMatrix(tickers []string, returns map[string][]float64) map[string]map[string]*float64 {
	matrix := make(map[string]map[string]*float64, len(tickers))
	for _, a := range tickers {
		matrix[a] = make(map[string]*float64, len(tickers))
	}
	for i, a := range tickers {
		for _, b := range tickers[i:] {
			r, ok := pearson(returns[a], returns[b])
			if !ok {
				matrix[a][b], matrix[b][a] = nil, nil
				continue
			}
			r = round(r, 4)
			matrix[a][b], matrix[b][a] = &r, &r
		}
	}
	return matrix
}

// GetBenchmarkMetrics computes the same risk statistics for one reference
// series, the configured benchmark when ticker is empty
func (s *Service) GetBenchmarkMetrics(ctx context.Context, ticker string) (*models.BenchmarkMetrics, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		ticker = s.benchmark
	}

	history, err := s.provider.GetAdjustedCloseHistory(ctx, ticker, s.period)
	if err != nil {
		if apperr.IsValidation(err) {
			return nil, err
		}
		s.logSkipped("benchmark", map[string]error{ticker: err})
		return nil, allFailed(map[string]error{ticker: err})
	}

	prices := make([]float64, len(history))
	for i, p := range history {
		prices[i] = p.Price.InexactFloat64()
	}
	returns := dailyReturns(prices)
	if len(returns) == 0 {
		return nil, apperr.ErrInsufficientData
	}
	return &models.BenchmarkMetrics{Ticker: ticker, RiskMetrics: riskMetrics(returns)}, nil
}

// PriceMatrix projects the aligned adjusted close history and the live value
// of the tickers it covers, the input of a mean-variance optimizer
func (s *Service) PriceMatrix(ctx context.Context, portfolioID int) (*models.PriceMatrix, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	u, err := s.loadUniverse(ctx, "price_matrix", snap.Holdings)
	if err != nil {
		return nil, err
	}
	if len(u.dates) == 0 {
		return nil, apperr.ErrInsufficientData
	}

	matrix := &models.PriceMatrix{
		Tickers:        u.tickers,
		Dates:          make([]string, len(u.dates)),
		Prices:         make([][]float64, len(u.dates)),
		PortfolioValue: u.totalValue().Round(2),
	}
	for i, date := range u.dates {
		matrix.Dates[i] = date.Format(time.DateOnly)
		row := make([]float64, len(u.tickers))
		for j, ticker := range u.tickers {
			row[j] = u.prices[ticker][i]
		}
		matrix.Prices[i] = row
	}
	return matrix, nil
}
