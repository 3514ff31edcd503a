package analytics

import (
	"context"
	"sync"

	"github.com/trogers1052/portfolio-service/internal/models"
)

// Report gathers every read-only view of a portfolio concurrently. A section
// that fails is left empty and its error recorded; only an unknown portfolio
// fails the report.
func (s *Service) Report(ctx context.Context, portfolioID int) (*models.PortfolioReport, error) {
	snap, err := s.ledger.Snapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	report := &models.PortfolioReport{
		Portfolio: snap.Portfolio,
		Errors:    map[string]string{},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	section := func(name string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(); err != nil {
				s.logger.Warn().Err(err).Int("portfolio_id", portfolioID).Str("section", name).Msg("report section unavailable")
				mu.Lock()
				report.Errors[name] = err.Error()
				mu.Unlock()
			}
		}()
	}

	section("value", func() error {
		v, err := s.GetPortfolioValue(ctx, portfolioID)
		mu.Lock()
		report.Value = v
		mu.Unlock()
		return err
	})
	section("holdings", func() error {
		h, err := s.GetHoldingsWithLiveValuation(ctx, portfolioID)
		mu.Lock()
		report.Holdings = h
		mu.Unlock()
		return err
	})
	section("dividends", func() error {
		d, err := s.GetDividendsReceived(ctx, portfolioID)
		mu.Lock()
		report.Dividends = d
		mu.Unlock()
		return err
	})
	section("metrics", func() error {
		m, err := s.GetPortfolioMetrics(ctx, portfolioID)
		mu.Lock()
		report.Metrics = m
		mu.Unlock()
		return err
	})
	section("benchmark", func() error {
		b, err := s.GetBenchmarkMetrics(ctx, "")
		mu.Lock()
		report.Benchmark = b
		mu.Unlock()
		return err
	})
	wg.Wait()

	return report, nil
}
