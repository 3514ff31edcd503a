// Package analytics derives valuations, dividend income, value history and
// risk statistics from a portfolio's ledger and live market data.
//
// Market data failures are soft per ticker: the affected contribution is
// skipped and logged. An operation fails only when every ticker it needed
// failed, with the provider's error if one was hit and
// apperr.ErrInsufficientData otherwise.
package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/calendar"
	"github.com/trogers1052/portfolio-service/internal/ledger"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/marketdata"
)

const (
	DefaultMaxConcurrency = 5
	DefaultBenchmark      = "GSPC.INDX"
	DefaultHistoryPeriod  = "5y"
)

// SnapshotReader reads a consistent view of a portfolio's ledger
type SnapshotReader interface {
	Snapshot(ctx context.Context, portfolioID int) (*ledger.Snapshot, error)
}

// TradingCalendar decides which dates carry a market price
type TradingCalendar interface {
	IsTradingDay(t time.Time) bool
}

// Service computes read-only portfolio analytics
type Service struct {
	ledger         SnapshotReader
	provider       marketdata.Provider
	calendar       TradingCalendar
	logger         *logging.Logger
	maxConcurrency int
	benchmark      string
	period         string
	now            func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithCalendar sets the trading calendar
func WithCalendar(cal TradingCalendar) Option {
	return func(s *Service) {
		s.calendar = cal
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaxConcurrency bounds concurrent provider calls per operation
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithBenchmark sets the default benchmark ticker
func WithBenchmark(ticker string) Option {
	return func(s *Service) {
		if ticker != "" {
			s.benchmark = ticker
		}
	}
}

// WithHistoryPeriod sets the trailing window used for risk statistics
func WithHistoryPeriod(period string) Option {
	return func(s *Service) {
		if period != "" {
			s.period = period
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an analytics service
func NewService(reader SnapshotReader, provider marketdata.Provider, opts ...Option) *Service {
	s := &Service{
		ledger:         reader,
		provider:       provider,
		calendar:       calendar.New(),
		logger:         logging.NewSilentLogger(),
		maxConcurrency: DefaultMaxConcurrency,
		benchmark:      DefaultBenchmark,
		period:         DefaultHistoryPeriod,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fetchAll calls fetch once per ticker with at most limit calls in flight
func fetchAll[T any](ctx context.Context, limit int, tickers []string, fetch func(context.Context, string) (T, error)) (map[string]T, map[string]error) {
	values := make(map[string]T, len(tickers))
	errs := make(map[string]error)

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, limit)

	for _, ticker := range tickers {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			v, err := fetch(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[t] = err
				return
			}
			values[t] = v
		}(ticker)
	}
	wg.Wait()

	return values, errs
}

func (s *Service) logSkipped(op string, errs map[string]error) {
	for _, ticker := range sortedKeys(errs) {
		s.logger.Warn().Err(errs[ticker]).Str("ticker", ticker).Str("operation", op).Msg("skipping ticker")
	}
}

// allFailed returns the error for an operation whose inputs all failed
func allFailed(errs map[string]error) error {
	list := make([]error, 0, len(errs))
	for _, ticker := range sortedKeys(errs) {
		list = append(list, errs[ticker])
	}
	return apperr.Collapse(list)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
