package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// Static is an in-memory Provider with fixed data. Tickers without data yield
// DataUnavailableError. It backs tests and runs without an API key.
type Static struct {
	mu            sync.Mutex
	quotes        map[string]models.Quote
	daily         map[string][]models.PricePoint
	adjustedClose map[string][]models.PricePoint
	dividends     map[string][]models.DividendEvent
	errs          map[string]error
	calls         map[string]int
}

// NewStatic returns an empty static provider
func NewStatic() *Static {
	return &Static{
		quotes:        map[string]models.Quote{},
		daily:         map[string][]models.PricePoint{},
		adjustedClose: map[string][]models.PricePoint{},
		dividends:     map[string][]models.DividendEvent{},
		errs:          map[string]error{},
		calls:         map[string]int{},
	}
}

// SetQuote sets the quote for ticker
func (s *Static) SetQuote(ticker string, price, annualDividend float64) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker = models.NormalizeTicker(ticker)
	s.quotes[ticker] = models.Quote{
		Ticker:                     ticker,
		CurrentPrice:               decimal.NewFromFloat(price),
		TrailingAnnualDividendRate: decimal.NewFromFloat(annualDividend),
	}
	return s
}

// SetDailyHistory sets the daily open series for ticker
func (s *Static) SetDailyHistory(ticker string, points []models.PricePoint) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[models.NormalizeTicker(ticker)] = points
	return s
}

// SetAdjustedCloseHistory sets the adjusted close series for ticker
func (s *Static) SetAdjustedCloseHistory(ticker string, points []models.PricePoint) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustedClose[models.NormalizeTicker(ticker)] = points
	return s
}

// SetDividends sets the dividend events for ticker
func (s *Static) SetDividends(ticker string, events []models.DividendEvent) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dividends[models.NormalizeTicker(ticker)] = events
	return s
}

// SetError makes every call for ticker fail with err
func (s *Static) SetError(ticker string, err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[models.NormalizeTicker(ticker)] = err
	return s
}

// Calls reports how often method was called for ticker
func (s *Static) Calls(method, ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+":"+models.NormalizeTicker(ticker)]
}

func (s *Static) record(method, ticker string) (string, error) {
	ticker = models.NormalizeTicker(ticker)
	s.calls[method+":"+ticker]++
	return ticker, s.errs[ticker]
}

func (s *Static) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker, err := s.record("GetQuote", ticker)
	if err != nil {
		return nil, err
	}
	q, ok := s.quotes[ticker]
	if !ok {
		return nil, apperr.NoData(ticker, "quote")
	}
	return &q, nil
}

func (s *Static) GetDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]models.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker, err := s.record("GetDailyHistory", ticker)
	if err != nil {
		return nil, err
	}
	points := sliceRange(s.daily[ticker], start, end)
	if len(points) == 0 {
		return nil, apperr.NoData(ticker, "price history")
	}
	return points, nil
}

func (s *Static) GetAdjustedCloseHistory(ctx context.Context, ticker, period string) ([]models.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker, err := s.record("GetAdjustedCloseHistory", ticker)
	if err != nil {
		return nil, err
	}
	if _, err := PeriodStart(period, time.Now()); err != nil {
		return nil, err
	}
	points, ok := s.adjustedClose[ticker]
	if !ok || len(points) == 0 {
		return nil, apperr.NoData(ticker, "adjusted close history")
	}
	return append([]models.PricePoint(nil), points...), nil
}

func (s *Static) GetDividendEvents(ctx context.Context, ticker string) ([]models.DividendEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker, err := s.record("GetDividendEvents", ticker)
	if err != nil {
		return nil, err
	}
	events, ok := s.dividends[ticker]
	if !ok || len(events) == 0 {
		return nil, apperr.NoData(ticker, "dividends")
	}
	return append([]models.DividendEvent(nil), events...), nil
}

var _ Provider = (*Static)(nil)
