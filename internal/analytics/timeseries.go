package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/calendar"
	"github.com/trogers1052/portfolio-service/internal/models"
)

type historyWindow struct {
	start, end time.Time
}

// GetValueOverTime reconstructs the portfolio's daily value from its
// transactions: each transaction contributes units times the day's open
// price on every trading day from its execution date through yesterday,
// negated for sells. Dates are keyed YYYY-MM-DD.
func (s *Service) GetValueOverTime(ctx context.Context, portfolioID int) (map[string]decimal.Decimal, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	series := make(map[string]decimal.Decimal)
	yesterday := calendar.Truncate(s.now()).AddDate(0, 0, -1)

	// one history request per ticker, spanning its earliest transaction
	windows := make(map[string]historyWindow)
	for _, t := range snap.Transactions {
		start := calendar.Truncate(t.ExecutedAt)
		if start.After(yesterday) {
			continue
		}
		w, ok := windows[t.Ticker]
		if !ok || start.Before(w.start) {
			windows[t.Ticker] = historyWindow{start: start, end: yesterday}
		}
	}
	if len(windows) == 0 {
		return series, nil
	}

	histories, errs := fetchAll(ctx, s.maxConcurrency, sortedKeys(windows), func(ctx context.Context, ticker string) ([]models.PricePoint, error) {
		w := windows[ticker]
		return s.provider.GetDailyHistory(ctx, ticker, w.start, w.end)
	})
	s.logSkipped("value_over_time", errs)
	if len(histories) == 0 {
		return nil, allFailed(errs)
	}

	for _, t := range snap.Transactions {
		points, ok := histories[t.Ticker]
		if !ok {
			continue
		}
		start := calendar.Truncate(t.ExecutedAt)
		signedUnits := t.Units.Mul(t.Sign())
		for _, p := range points {
			day := calendar.Truncate(p.Date)
			if day.Before(start) || day.After(yesterday) || !s.calendar.IsTradingDay(day) {
				continue
			}
			key := day.Format(time.DateOnly)
			series[key] = series[key].Add(p.Price.Mul(signedUnits))
		}
	}

	for key, v := range series {
		series[key] = v.Round(2)
	}
	return series, nil
}
