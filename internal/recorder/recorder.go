package recorder

import (
	"time"

	"PairSentinel/internal/model"

	"github.com/google/uuid"
)

// SignalEvent records a detection or a confirmation outcome.
type SignalEvent struct {
	Kind       model.SignalKind
	SignalID   uuid.UUID
	Symbol     string
	Direction  model.Direction
	Confidence int // detection confidence
	Scores     model.Scores
	TrendM15   model.Trend
	TrendH1    model.Trend
	At         time.Time
}

// FetchEvent records the outcome of one governed data-source call.
type FetchEvent struct {
	RequestID uuid.UUID
	Symbol    string
	Timeframe model.Timeframe
	Stage     model.Stage
	Bars      int
	Duration  time.Duration
	Err       string // empty on success
	At        time.Time
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSignal(evt *SignalEvent) error
	RecordFetch(evt *FetchEvent) error
	Close() error
}
