package model

import "time"

// Timeframe identifies a candle resolution supported by the data source.
type Timeframe string

const (
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	H1  Timeframe = "H1"
)

// Duration returns the length of a single bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	default:
		return 0
	}
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series holds chronologically ordered bars for one symbol and timeframe.
// An empty series is the "no data" result of a failed fetch.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []OHLCV
}

// Empty reports whether the series carries no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Columns extracts open, high, low and close columns in one pass.
func (s Series) Columns() (open, high, low, close []float64) {
	n := len(s.Bars)
	open = make([]float64, n)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	for i, b := range s.Bars {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		close[i] = b.Close
	}
	return open, high, low, close
}
