// Package marketdata fetches quotes, price history and dividends for tickers.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// Provider is a source of market data.
//
// A ticker the provider has no data for yields an apperr.DataUnavailableError;
// an unreachable, failing or rate-limiting provider yields an apperr.ProviderError.
type Provider interface {
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)
	// GetDailyHistory returns daily open prices between start and end inclusive, oldest first
	GetDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]models.PricePoint, error)
	// GetAdjustedCloseHistory returns daily adjusted closes over a trailing period such as "5y", oldest first
	GetAdjustedCloseHistory(ctx context.Context, ticker, period string) ([]models.PricePoint, error)
	// GetDividendEvents returns the full dividend history, oldest first
	GetDividendEvents(ctx context.Context, ticker string) ([]models.DividendEvent, error)
}

// PeriodStart returns the start of a trailing period ending at end.
// Periods are a positive count followed by d, w, m or y.
func PeriodStart(period string, end time.Time) (time.Time, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if len(period) < 2 {
		return time.Time{}, apperr.Invalid("period", "must look like 5y, 6m, 2w or 30d, got %q", period)
	}
	n, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || n <= 0 {
		return time.Time{}, apperr.Invalid("period", "must look like 5y, 6m, 2w or 30d, got %q", period)
	}

	switch period[len(period)-1] {
	case 'd':
		return end.AddDate(0, 0, -n), nil
	case 'w':
		return end.AddDate(0, 0, -7*n), nil
	case 'm':
		return end.AddDate(0, -n, 0), nil
	case 'y':
		return end.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, apperr.Invalid("period", "unknown unit in %q", period)
}

func sliceRange(points []models.PricePoint, start, end time.Time) []models.PricePoint {
	out := []models.PricePoint{}
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func cacheKey(parts ...string) string {
	return fmt.Sprintf("marketdata:%s", strings.Join(parts, ":"))
}
