package audit

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear annualizes daily statistics
	TradingDaysPerYear = 252
	// DefaultRiskFreeRate is the annual risk-free rate used when none is configured
	DefaultRiskFreeRate = 0.03 // 3% 무위험 수익률
)

// TotalReturn is (final - initial) / initial, or 0 without initial capital
func TotalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial
}

// DailyReturns computes fractional returns between consecutive samples,
// skipping pairs whose prior value is not positive
func DailyReturns(equities []float64) []float64 {
	if len(equities) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equities)-1)
	for i := 1; i < len(equities); i++ {
		prev := equities[i-1]
		if prev <= 0 {
			continue
		}
		returns = append(returns, (equities[i]-prev)/prev)
	}
	return returns
}

// SharpeRatio annualizes the mean and sample standard deviation (n-1) of daily returns.
// Fewer than two returns or zero volatility yields 0.
func SharpeRatio(equities []float64, riskFreeRate float64) float64 {
	returns := DailyReturns(equities)
	if len(returns) < 2 {
		return 0
	}

	annualReturn := stat.Mean(returns, nil) * TradingDaysPerYear
	volatility := stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
	if volatility == 0 || math.IsNaN(volatility) {
		return 0
	}

	return (annualReturn - riskFreeRate) / volatility
}

// MaxDrawdown is the largest (peak - value) / peak over a single pass, as a positive fraction
func MaxDrawdown(equities []float64) float64 {
	if len(equities) == 0 {
		return 0
	}

	peak := equities[0]
	maxDD := 0.0

	for _, v := range equities {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
