package strategy

import "PairSentinel/internal/model"

// snapshot holds the indicator values of the last (and previous) bar.
type snapshot struct {
	Close          float64
	RSI            float64
	MACD           float64
	MACDSignal     float64
	PrevMACD       float64
	PrevMACDSignal float64
	BBUpper        float64
	BBLower        float64
	StochK         float64
	StochD         float64
	ADX            float64
	PlusDI         float64
	MinusDI        float64
}

const (
	rsiOversold     = 30
	rsiOverbought   = 70
	stochOversold   = 30
	stochOverbought = 70
	adxTrending     = 25
)

// evaluate sums the independent boolean conditions for each side.
func evaluate(s snapshot, macd model.MACDStrategy) (buy, sell int) {
	for _, c := range []func(snapshot) (bool, bool){
		scoreRSI,
		func(s snapshot) (bool, bool) { return scoreMACD(s, macd) },
		scoreBollinger,
		scoreStochastic,
		scoreADX,
	} {
		b, sl := c(s)
		if b {
			buy++
		}
		if sl {
			sell++
		}
	}
	return buy, sell
}

// scoreRSI: oversold buys, overbought sells.
func scoreRSI(s snapshot) (buy, sell bool) {
	return s.RSI < rsiOversold, s.RSI > rsiOverbought
}

// scoreMACD detects a MACD/signal crossover on the last bar. The gated
// strategy only counts a bullish cross below zero and a bearish cross
// above zero.
func scoreMACD(s snapshot, strategy model.MACDStrategy) (buy, sell bool) {
	crossUp := s.MACD > s.MACDSignal && s.PrevMACD <= s.PrevMACDSignal
	crossDown := s.MACD < s.MACDSignal && s.PrevMACD >= s.PrevMACDSignal
	if strategy == model.MACDUngated {
		return crossUp, crossDown
	}
	return crossUp && s.MACD < 0, crossDown && s.MACD > 0
}

// scoreBollinger: close outside the band.
func scoreBollinger(s snapshot) (buy, sell bool) {
	return s.Close < s.BBLower, s.Close > s.BBUpper
}

// scoreStochastic: %K crossing %D inside the extreme zone.
func scoreStochastic(s snapshot) (buy, sell bool) {
	return s.StochK > s.StochD && s.StochK < stochOversold,
		s.StochK < s.StochD && s.StochK > stochOverbought
}

// scoreADX: a trending market in the direction of the dominant DI.
func scoreADX(s snapshot) (buy, sell bool) {
	if s.ADX <= adxTrending {
		return false, false
	}
	return s.PlusDI > s.MinusDI, s.MinusDI > s.PlusDI
}
