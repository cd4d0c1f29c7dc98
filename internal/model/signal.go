package model

import (
	"time"

	"github.com/google/uuid"
)

// Trend is a higher-timeframe trend label.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// Direction is the side of a signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Stage identifies what a queued fetch is for and therefore which
// continuation handles its result.
type Stage int

const (
	StageTrendM15 Stage = iota + 1
	StageTrendH1
	StageSignalM5
	StageConfirm
)

func (s Stage) String() string {
	switch s {
	case StageTrendM15:
		return "trend_m15"
	case StageTrendH1:
		return "trend_h1"
	case StageSignalM5:
		return "signal_m5"
	case StageConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Scores is the output of the indicator engine.
type Scores struct {
	Buy  int
	Sell int
}

// PendingSignal is a detected but not yet confirmed directional call.
type PendingSignal struct {
	ID         uuid.UUID
	Symbol     string
	Direction  Direction
	Confidence int
	TrendM15   Trend
	TrendH1    Trend
	CreatedAt  time.Time
}

// Age returns how long the signal has been waiting at now.
func (p PendingSignal) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// SignalKind classifies a recorded signal outcome.
type SignalKind string

const (
	SignalDetected  SignalKind = "DETECTED"
	SignalConfirmed SignalKind = "CONFIRMED"
	SignalFailed    SignalKind = "FAILED"
)
