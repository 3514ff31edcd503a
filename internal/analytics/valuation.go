package analytics

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

func holdingTickers(holdings []*models.Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.Ticker]; ok {
			continue
		}
		seen[h.Ticker] = struct{}{}
		tickers = append(tickers, h.Ticker)
	}
	return tickers
}

func (s *Service) quotes(ctx context.Context, tickers []string) (map[string]*models.Quote, map[string]error) {
	return fetchAll(ctx, s.maxConcurrency, tickers, s.provider.GetQuote)
}

// percentChange is (to-from)/from*100, zero when from is zero
func percentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred)
}

func value(h *models.Holding, q *models.Quote) *models.HoldingValuation {
	v := &models.HoldingValuation{Holding: *h}
	if q == nil {
		return v
	}
	current := q.CurrentPrice.Mul(h.Units)
	v.CurrentPrice = decimal.NewNullDecimal(q.CurrentPrice)
	v.CurrentValue = decimal.NewNullDecimal(current.Round(2))
	v.Profit = decimal.NewNullDecimal(q.CurrentPrice.Sub(h.AverageCost).Mul(h.Units).Round(2))
	v.PercentageChange = decimal.NewNullDecimal(percentChange(h.AverageCost, q.CurrentPrice).Round(2))
	return v
}

// GetHoldingsWithLiveValuation prices every holding at its live quote.
// Holdings without a quote keep null valuation fields.
func (s *Service) GetHoldingsWithLiveValuation(ctx context.Context, portfolioID int) ([]*models.HoldingValuation, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	quotes, errs := s.quotes(ctx, holdingTickers(snap.Holdings))
	s.logSkipped("holdings", errs)
	if len(snap.Holdings) > 0 && len(quotes) == 0 {
		// the holdings themselves are still worth listing unless the provider is down
		if err := allFailed(errs); apperr.IsProviderError(err) {
			return nil, err
		}
	}

	valuations := make([]*models.HoldingValuation, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		valuations = append(valuations, value(h, quotes[h.Ticker]))
	}
	return valuations, nil
}

// GetPortfolioValue aggregates live value, cost basis, realized P/L, fees and
// expected dividend income
func (s *Service) GetPortfolioValue(ctx context.Context, portfolioID int) (*models.PortfolioValue, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	quotes, errs := s.quotes(ctx, holdingTickers(snap.Holdings))
	s.logSkipped("value", errs)
	if len(snap.Holdings) > 0 && len(quotes) == 0 {
		return nil, allFailed(errs)
	}

	total := decimal.Zero
	annual := decimal.Zero
	for _, h := range snap.Holdings {
		q, ok := quotes[h.Ticker]
		if !ok {
			continue
		}
		total = total.Add(q.CurrentPrice.Mul(h.Units))
		annual = annual.Add(q.TrailingAnnualDividendRate.Mul(h.Units))
	}

	invested := snap.CostBasis()
	realized := snap.RealizedPnl()
	fees := snap.Fees()
	profit := total.Sub(invested).Add(realized).Sub(fees)

	return &models.PortfolioValue{
		Value:                  total.Round(2),
		Invested:               invested.Round(2),
		PercentageChange:       percentChange(invested, total).Round(2),
		RealizedPnl:            realized.Round(2),
		Fees:                   fees.Round(2),
		Profit:                 profit.Round(2),
		ProfitPercentageChange: ratioPercent(profit, invested.Add(fees)).Round(2),
		AnnualDividends:        annual.Round(2),
		MonthlyDividends:       annual.Div(decimal.NewFromInt(12)).Round(2),
		UnpricedTickers:        sortedKeys(errs),
	}, nil
}

// ratioPercent is num/den*100, zero when den is zero
func ratioPercent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}
