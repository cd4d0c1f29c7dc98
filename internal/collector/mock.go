package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"PairSentinel/internal/model"
)

// MockFetcher returns controllable data for development and testing. Series
// set for a symbol and timeframe are returned as-is; otherwise bars are
// generated around Price.
type MockFetcher struct {
	Price float64
	Err   error
	Now   func() time.Time

	mu     sync.Mutex
	series map[string]model.Series
	calls  int
}

func (m *MockFetcher) Name() string { return "mock" }

// Set fixes the bars returned for symbol and tf.
func (m *MockFetcher) Set(symbol string, tf model.Timeframe, bars []model.OHLCV) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.series == nil {
		m.series = make(map[string]model.Series)
	}
	m.series[symbol+"|"+string(tf)] = model.Series{Symbol: symbol, Timeframe: tf, Bars: bars}
}

// Calls returns how many fetches were made.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) Fetch(ctx context.Context, symbol string, tf model.Timeframe, lookback int) (model.Series, error) {
	m.mu.Lock()
	m.calls++
	s, ok := m.series[symbol+"|"+string(tf)]
	m.mu.Unlock()

	out := model.Series{Symbol: symbol, Timeframe: tf}
	if err := ctx.Err(); err != nil {
		return out, unavailable("mock", err)
	}
	if m.Err != nil {
		return out, m.Err
	}
	if ok {
		out.Bars = trimTail(s.Bars, lookback)
		return out, nil
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	out.Bars = generateMockBars(m.Price, lookback, tf, now)
	return out, nil
}

// generateMockBars draws a gentle sine wave around basePrice.
func generateMockBars(basePrice float64, count int, tf model.Timeframe, now time.Time) []model.OHLCV {
	if basePrice == 0 {
		basePrice = 1.1
	}
	step := tf.Duration()
	if step == 0 {
		step = time.Minute
	}
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.002*math.Sin(float64(i)/7))
		bars[i] = model.OHLCV{
			Time:   now.Add(-step * time.Duration(count-i)),
			Open:   p * 0.9998,
			High:   p * 1.0005,
			Low:    p * 0.9995,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}
