package pipeline

import "PairSentinel/internal/model"

// Decide returns the signal direction for scores against threshold. The
// winning side must strictly beat the other and reach threshold; ties never
// signal.
func Decide(s model.Scores, threshold int) (model.Direction, int, bool) {
	switch {
	case s.Buy > s.Sell && s.Buy >= threshold:
		return model.Buy, s.Buy, true
	case s.Sell > s.Buy && s.Sell >= threshold:
		return model.Sell, s.Sell, true
	}
	return "", 0, false
}

// Confirms reports whether rescored values hold dir at threshold.
func Confirms(dir model.Direction, s model.Scores, threshold int) bool {
	got, _, ok := Decide(s, threshold)
	return ok && got == dir
}
