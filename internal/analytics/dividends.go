package analytics

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

func transactionTickers(transactions []*models.Transaction) []string {
	seen := make(map[string]struct{}, len(transactions))
	tickers := make([]string, 0, len(transactions))
	for _, t := range transactions {
		if _, ok := seen[t.Ticker]; ok {
			continue
		}
		seen[t.Ticker] = struct{}{}
		tickers = append(tickers, t.Ticker)
	}
	return tickers
}

// GetDividendsReceived attributes dividends to the units held on each
// ex-date: every transaction contributes the dividends paid between its
// execution and now, added for buys and subtracted for sells. Only tickers
// with a positive net are returned, formatted to 2 dp.
func (s *Service) GetDividendsReceived(ctx context.Context, portfolioID int) (map[string]string, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	tickers := transactionTickers(snap.Transactions)
	events, errs := fetchAll(ctx, s.maxConcurrency, tickers, s.provider.GetDividendEvents)

	failed := map[string]error{}
	for ticker, err := range errs {
		// no dividend history just means nothing was paid
		if !apperr.IsDataUnavailable(err) {
			failed[ticker] = err
		}
	}
	s.logSkipped("dividends", failed)
	if len(tickers) > 0 && len(failed) == len(tickers) {
		return nil, allFailed(failed)
	}

	now := s.now().UTC()
	net := make(map[string]decimal.Decimal)
	for _, t := range snap.Transactions {
		paid := decimal.Zero
		from := t.ExecutedAt.UTC()
		for _, e := range events[t.Ticker] {
			date := e.Date.UTC()
			if date.Before(from) || date.After(now) {
				continue
			}
			paid = paid.Add(e.Amount)
		}
		net[t.Ticker] = net[t.Ticker].Add(paid.Mul(t.Units).Mul(t.Sign()))
	}

	dividends := make(map[string]string, len(net))
	for ticker, amount := range net {
		if amount.IsPositive() {
			dividends[models.NormalizeTicker(ticker)] = amount.StringFixed(2)
		}
	}
	return dividends, nil
}
