package strategy

import (
	"math"

	"PairSentinel/internal/model"
)

// CandlePatterns recognises a fixed set of reversal patterns on the most
// recent bars. Each bullish pattern adds one to buy, each bearish pattern one
// to sell.
type CandlePatterns struct{}

// Score implements PatternScorer.
func (CandlePatterns) Score(series model.Series) (buy, sell int) {
	bars := series.Bars
	for _, ok := range []bool{isHammer(bars), isMorningStar(bars), isThreeWhiteSoldiers(bars)} {
		if ok {
			buy++
		}
	}
	for _, ok := range []bool{isHangingMan(bars), isEveningStar(bars), isThreeBlackCrows(bars)} {
		if ok {
			sell++
		}
	}
	return buy, sell
}

func bodySize(b model.OHLCV) float64    { return math.Abs(b.Close - b.Open) }
func candleRange(b model.OHLCV) float64 { return b.High - b.Low }
func upperShadow(b model.OHLCV) float64 { return b.High - math.Max(b.Open, b.Close) }
func lowerShadow(b model.OHLCV) float64 { return math.Min(b.Open, b.Close) - b.Low }
func isBullish(b model.OHLCV) bool      { return b.Close > b.Open }
func isBearish(b model.OHLCV) bool      { return b.Close < b.Open }

// hammerShape: small body at the top of the range with a long lower shadow.
func hammerShape(b model.OHLCV) bool {
	r := candleRange(b)
	if r <= 0 {
		return false
	}
	body := bodySize(b)
	return body <= 0.35*r &&
		lowerShadow(b) >= 2*body &&
		upperShadow(b) <= 0.1*r
}

// priorMove returns the close-to-close change of the three bars before the last.
func priorMove(bars []model.OHLCV) (float64, bool) {
	n := len(bars)
	if n < 4 {
		return 0, false
	}
	return bars[n-2].Close - bars[n-4].Close, true
}

// isHammer: hammer shape after a decline.
func isHammer(bars []model.OHLCV) bool {
	move, ok := priorMove(bars)
	return ok && move < 0 && hammerShape(bars[len(bars)-1])
}

// isHangingMan: hammer shape after an advance.
func isHangingMan(bars []model.OHLCV) bool {
	move, ok := priorMove(bars)
	return ok && move > 0 && hammerShape(bars[len(bars)-1])
}

func isLongBody(b model.OHLCV) bool {
	r := candleRange(b)
	return r > 0 && bodySize(b) >= 0.6*r
}

// isMorningStar: long bearish bar, small star gapping below it, bullish bar
// closing above the first body's midpoint.
func isMorningStar(bars []model.OHLCV) bool {
	n := len(bars)
	if n < 3 {
		return false
	}
	first, star, last := bars[n-3], bars[n-2], bars[n-1]
	return isBearish(first) && isLongBody(first) &&
		bodySize(star) <= 0.3*bodySize(first) &&
		math.Max(star.Open, star.Close) < first.Close &&
		isBullish(last) &&
		last.Close > (first.Open+first.Close)/2
}

// isEveningStar mirrors isMorningStar.
func isEveningStar(bars []model.OHLCV) bool {
	n := len(bars)
	if n < 3 {
		return false
	}
	first, star, last := bars[n-3], bars[n-2], bars[n-1]
	return isBullish(first) && isLongBody(first) &&
		bodySize(star) <= 0.3*bodySize(first) &&
		math.Min(star.Open, star.Close) > first.Close &&
		isBearish(last) &&
		last.Close < (first.Open+first.Close)/2
}

// isThreeWhiteSoldiers: three rising bullish bars, each opening inside the
// previous body and closing near its high.
func isThreeWhiteSoldiers(bars []model.OHLCV) bool {
	n := len(bars)
	if n < 3 {
		return false
	}
	for i := n - 3; i < n; i++ {
		b := bars[i]
		if !isBullish(b) || upperShadow(b) > 0.3*bodySize(b) {
			return false
		}
		if i > n-3 {
			p := bars[i-1]
			if b.Close <= p.Close || b.Open < p.Open || b.Open > p.Close {
				return false
			}
		}
	}
	return true
}

// isThreeBlackCrows mirrors isThreeWhiteSoldiers.
func isThreeBlackCrows(bars []model.OHLCV) bool {
	n := len(bars)
	if n < 3 {
		return false
	}
	for i := n - 3; i < n; i++ {
		b := bars[i]
		if !isBearish(b) || lowerShadow(b) > 0.3*bodySize(b) {
			return false
		}
		if i > n-3 {
			p := bars[i-1]
			if b.Close >= p.Close || b.Open > p.Open || b.Open < p.Close {
				return false
			}
		}
	}
	return true
}
