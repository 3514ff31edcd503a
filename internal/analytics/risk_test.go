package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/ledger"
	"github.com/trogers1052/portfolio-service/internal/marketdata"
	"github.com/trogers1052/portfolio-service/internal/models"
)

func TestGetPortfolioMetrics(t *testing.T) {
	snap := &ledger.Snapshot{Holdings: []*models.Holding{
		holding("AAA", "10", "8"),
		holding("BBB", "10", "25"),
		holding("CCC", "1", "1"),
	}}
	provider := marketdata.NewStatic().
		SetQuote("AAA", 10, 0).
		SetQuote("BBB", 30, 0).
		SetAdjustedCloseHistory("AAA", opens(map[string]string{
			"2024-07-01": "100",
			"2024-07-02": "110",
			"2024-07-03": "99",
			"2024-07-05": "108.9",
		})).
		SetAdjustedCloseHistory("BBB", opens(map[string]string{
			"2024-07-01": "50",
			"2024-07-03": "55",
			"2024-07-05": "49.5",
			"2024-07-08": "60",
		}))
	svc := newService(snap, provider)

	m, err := svc.GetPortfolioMetrics(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"AAA": 0.25, "BBB": 0.75}, m.Allocation)
	assert.Equal(t, []string{"CCC"}, m.SkippedTickers)

	// aligned on 07-01, 07-03 and 07-05: portfolio returns 0.0725 and -0.05
	assert.Equal(t, 2, m.Observations)
	assert.InDelta(t, 2.07, m.Sharpe, 0.005)
	assert.InDelta(t, 286.88, m.ExpectedReturn, 0.011)
	assert.InDelta(t, 138.32, m.Volatility, 0.005)
	assert.Nil(t, m.Sortino)

	require.NotNil(t, m.CorrelationMatrix["AAA"]["BBB"])
	assert.InDelta(t, -1.0, *m.CorrelationMatrix["AAA"]["BBB"], 1e-9)
	assert.InDelta(t, -1.0, *m.CorrelationMatrix["BBB"]["AAA"], 1e-9)
	assert.InDelta(t, 1.0, *m.CorrelationMatrix["AAA"]["AAA"], 1e-9)
}

func TestGetPortfolioMetrics_ZeroVarianceCorrelationIsNull(t *testing.T) {
	snap := &ledger.Snapshot{Holdings: []*models.Holding{
		holding("CASH", "100", "1"),
		holding("AAA", "1", "100"),
	}}
	provider := marketdata.NewStatic().
		SetQuote("CASH", 1, 0).
		SetQuote("AAA", 100, 0).
		SetAdjustedCloseHistory("CASH", opens(map[string]string{"2024-07-01": "1", "2024-07-02": "1", "2024-07-03": "1"})).
		SetAdjustedCloseHistory("AAA", opens(map[string]string{"2024-07-01": "100", "2024-07-02": "101", "2024-07-03": "99"}))
	svc := newService(snap, provider)

	m, err := svc.GetPortfolioMetrics(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, m.CorrelationMatrix["CASH"]["AAA"])
	assert.Nil(t, m.CorrelationMatrix["CASH"]["CASH"])
	assert.NotNil(t, m.CorrelationMatrix["AAA"]["AAA"])
}

func TestGetPortfolioMetrics_InsufficientData(t *testing.T) {
	t.Run("empty portfolio", func(t *testing.T) {
		svc := newService(&ledger.Snapshot{}, marketdata.NewStatic())
		_, err := svc.GetPortfolioMetrics(context.Background(), 1)
		assert.ErrorIs(t, err, apperr.ErrInsufficientData)
	})

	t.Run("no history", func(t *testing.T) {
		snap := &ledger.Snapshot{Holdings: []*models.Holding{holding("AAA", "1", "1")}}
		svc := newService(snap, marketdata.NewStatic().SetQuote("AAA", 1, 0))
		_, err := svc.GetPortfolioMetrics(context.Background(), 1)
		assert.ErrorIs(t, err, apperr.ErrInsufficientData)
	})

	t.Run("single aligned date", func(t *testing.T) {
		snap := &ledger.Snapshot{Holdings: []*models.Holding{holding("AAA", "1", "1")}}
		provider := marketdata.NewStatic().
			SetQuote("AAA", 1, 0).
			SetAdjustedCloseHistory("AAA", opens(map[string]string{"2024-07-01": "1"}))
		svc := newService(snap, provider)
		_, err := svc.GetPortfolioMetrics(context.Background(), 1)
		assert.ErrorIs(t, err, apperr.ErrInsufficientData)
	})

	t.Run("provider down", func(t *testing.T) {
		snap := &ledger.Snapshot{Holdings: []*models.Holding{holding("AAA", "1", "1")}}
		down := &apperr.ProviderError{Provider: "static", StatusCode: 503, Err: errors.New("down")}
		svc := newService(snap, marketdata.NewStatic().SetError("AAA", down))
		_, err := svc.GetPortfolioMetrics(context.Background(), 1)
		assert.True(t, apperr.IsProviderError(err))
	})
}

func TestGetBenchmarkMetrics(t *testing.T) {
	provider := marketdata.NewStatic().
		SetAdjustedCloseHistory("GSPC.INDX", opens(map[string]string{
			"2024-07-01": "100",
			"2024-07-02": "102",
			"2024-07-03": "99.96",
			"2024-07-05": "101.9592",
			"2024-07-08": "100.939608",
		}))
	svc := newService(&ledger.Snapshot{}, provider)

	m, err := svc.GetBenchmarkMetrics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "GSPC.INDX", m.Ticker)
	assert.Equal(t, 4, m.Observations)
	assert.InDelta(t, 1.94, m.Sharpe, 0.005)
	require.NotNil(t, m.Sortino)
	assert.InDelta(t, 5.65, *m.Sortino, 0.005)
	assert.InDelta(t, 63.75, m.ExpectedReturn, 0.011)
	assert.InDelta(t, 32.92, m.Volatility, 0.005)

	_, err = svc.GetBenchmarkMetrics(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperr.ErrInsufficientData)
}

func TestGetBenchmarkMetrics_CustomDefault(t *testing.T) {
	provider := marketdata.NewStatic().
		SetAdjustedCloseHistory("SPY", opens(map[string]string{"2024-07-01": "500", "2024-07-02": "505"}))
	svc := newService(&ledger.Snapshot{}, provider, WithBenchmark("SPY"))

	m, err := svc.GetBenchmarkMetrics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "SPY", m.Ticker)
	assert.Equal(t, 1, m.Observations)
}

func TestPriceMatrix(t *testing.T) {
	snap := &ledger.Snapshot{Holdings: []*models.Holding{
		holding("BBB", "2", "25"),
		holding("AAA", "10", "8"),
	}}
	provider := marketdata.NewStatic().
		SetQuote("AAA", 10, 0).
		SetQuote("BBB", 30.125, 0).
		SetAdjustedCloseHistory("AAA", opens(map[string]string{"2024-07-01": "9.5", "2024-07-02": "9.75", "2024-07-03": "10"})).
		SetAdjustedCloseHistory("BBB", opens(map[string]string{"2024-07-02": "29", "2024-07-03": "30"}))
	svc := newService(snap, provider)

	m, err := svc.PriceMatrix(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, m.Tickers)
	assert.Equal(t, []string{"2024-07-02", "2024-07-03"}, m.Dates)
	assert.Equal(t, [][]float64{{9.75, 29}, {10, 30}}, m.Prices)
	assert.Equal(t, "160.25", m.PortfolioValue.String())
}
