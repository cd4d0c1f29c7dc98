package strategy

import (
	"fmt"

	"PairSentinel/internal/calculator"
	"PairSentinel/internal/model"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientHistory is returned when the series is too short for the
// configured periods.
var ErrInsufficientHistory = calculator.ErrInsufficientHistory

// gateSentinel is the score a trend-gated side starts from; no realistic
// sum of conditions can lift it above zero.
const gateSentinel = -99

// Options bundles everything the engine reads from the runtime settings.
type Options struct {
	Params      model.IndicatorParams
	MACD        model.MACDStrategy
	TrendFilter model.TrendFilter
}

// OptionsFrom extracts scoring options from settings.
func OptionsFrom(s model.Settings) Options {
	return Options{Params: s.Indicators, MACD: s.MACDStrategy, TrendFilter: s.TrendFilter}
}

// PatternScorer returns independent buy and sell pattern counts for the
// last bars of a series.
type PatternScorer interface {
	Score(series model.Series) (buy, sell int)
}

// Engine scores a candle series into buy and sell strengths.
type Engine struct {
	Patterns PatternScorer
}

// NewEngine creates an Engine using the built-in candlestick patterns.
func NewEngine() *Engine {
	return &Engine{Patterns: CandlePatterns{}}
}

// RequiredBars returns the minimum series length Score accepts for p.
func RequiredBars(p model.IndicatorParams) int {
	need := p.MaxPeriod()
	for _, v := range []int{
		p.RSIPeriod + 1,
		p.MACDSlow + p.MACDSignal,
		2 * p.ADXPeriod,
		p.StochasticPeriod + 2,
	} {
		if v > need {
			need = v
		}
	}
	// one extra bar so the previous row is fully warmed up
	return need + 1
}

// Score evaluates the last bar of series. Trend labels m15 and h1 gate the
// result according to opts.TrendFilter; pass NEUTRAL for both to disable gating.
// Both scores are floored at zero.
func (e *Engine) Score(series model.Series, opts Options, m15, h1 model.Trend) (model.Scores, error) {
	need := RequiredBars(opts.Params)
	if series.Len() < need {
		return model.Scores{}, fmt.Errorf("score %s: %d bars, need %d: %w",
			series.Symbol, series.Len(), need, ErrInsufficientHistory)
	}

	snap := e.snapshot(series, opts.Params)

	buy, sell := 0, 0
	buyBlocked, sellBlocked := trendGate(opts.TrendFilter, m15, h1)
	if buyBlocked {
		buy = gateSentinel
	}
	if sellBlocked {
		sell = gateSentinel
	}

	b, s := evaluate(snap, opts.MACD)
	buy += b
	sell += s

	if e.Patterns != nil {
		pb, ps := e.Patterns.Score(series)
		buy += pb
		sell += ps
	}

	return model.Scores{Buy: max(0, buy), Sell: max(0, sell)}, nil
}

// snapshot computes every indicator over the series and keeps the values
// the conditions read.
func (e *Engine) snapshot(series model.Series, p model.IndicatorParams) snapshot {
	_, high, low, closes := series.Columns()
	last := len(closes) - 1
	prev := last - 1

	rsi := talib.Rsi(closes, p.RSIPeriod)
	macd, macdSignal, _ := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	upper, _, lower := talib.BBands(closes, p.BollingerPeriod, 2, 2, talib.SMA)
	stochK, stochD := talib.Stoch(high, low, closes, p.StochasticPeriod, 1, talib.SMA, 3, talib.SMA)
	adx := talib.Adx(high, low, closes, p.ADXPeriod)
	plusDI := talib.PlusDI(high, low, closes, p.ADXPeriod)
	minusDI := talib.MinusDI(high, low, closes, p.ADXPeriod)

	return snapshot{
		Close:          closes[last],
		RSI:            rsi[last],
		MACD:           macd[last],
		MACDSignal:     macdSignal[last],
		PrevMACD:       macd[prev],
		PrevMACDSignal: macdSignal[prev],
		BBUpper:        upper[last],
		BBLower:        lower[last],
		StochK:         stochK[last],
		StochD:         stochD[last],
		ADX:            adx[last],
		PlusDI:         plusDI[last],
		MinusDI:        minusDI[last],
	}
}

// trendGate reports which directions the trend filter forbids.
func trendGate(mode model.TrendFilter, m15, h1 model.Trend) (buyBlocked, sellBlocked bool) {
	switch mode {
	case model.TrendFilterM15:
		return m15 == model.TrendDown, m15 == model.TrendUp
	case model.TrendFilterH1:
		return h1 == model.TrendDown, h1 == model.TrendUp
	case model.TrendFilterM15H1:
		return m15 == model.TrendDown || h1 == model.TrendDown,
			m15 == model.TrendUp || h1 == model.TrendUp
	default:
		return false, false
	}
}
