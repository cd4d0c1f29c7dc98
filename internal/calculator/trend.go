package calculator

import (
	"errors"
	"fmt"

	"PairSentinel/internal/model"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientHistory is returned when a series is shorter than the
// longest period an indicator needs.
var ErrInsufficientHistory = errors.New("insufficient history")

// CalculateEMA returns the last value of the exponential moving average of
// prices over period.
func CalculateEMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("ema(%d) over %d prices: %w", period, len(prices), ErrInsufficientHistory)
	}
	ema := talib.Ema(prices, period)
	return ema[len(ema)-1], nil
}

// TrendLabel compares the last close with its EMA: UP above, DOWN below,
// NEUTRAL when equal.
func TrendLabel(series model.Series, period int) (model.Trend, error) {
	closes := series.Closes()
	ema, err := CalculateEMA(closes, period)
	if err != nil {
		return model.TrendNeutral, err
	}
	last := closes[len(closes)-1]
	switch {
	case last > ema:
		return model.TrendUp, nil
	case last < ema:
		return model.TrendDown, nil
	default:
		return model.TrendNeutral, nil
	}
}
