package analytics

import (
	"math"

	"github.com/trogers1052/portfolio-service/internal/models"
)

const (
	// tradingDaysPerYear annualizes daily statistics
	tradingDaysPerYear = 255
	// deviations below epsilon are treated as no variance
	epsilon = 1e-12
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator)
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// pearson returns the correlation of two equal-length series, false when
// either has no variance
func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx < epsilon*epsilon || syy < epsilon*epsilon {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), true
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// dailyReturns are the percentage changes between consecutive prices
func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, prices[i]/prev-1)
	}
	return returns
}

// riskMetrics annualizes a daily return series with a zero risk-free rate
func riskMetrics(returns []float64) models.RiskMetrics {
	m := mean(returns)
	sd := stddev(returns)
	annualizer := math.Sqrt(tradingDaysPerYear)

	metrics := models.RiskMetrics{
		ExpectedReturn: round(m*tradingDaysPerYear*100, 2),
		Volatility:     round(sd*annualizer*100, 2),
		Observations:   len(returns),
	}
	if sd > epsilon {
		metrics.Sharpe = round(m/sd*annualizer, 2)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dsd := stddev(downside); dsd > epsilon {
		sortino := round(m/dsd*annualizer, 2)
		metrics.Sortino = &sortino
	}
	return metrics
}
