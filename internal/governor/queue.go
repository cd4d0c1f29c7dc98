package governor

import (
	"time"

	"PairSentinel/internal/model"

	"github.com/google/uuid"
)

// Request is one pending fetch plus what to do with its result.
type Request struct {
	ID        uuid.UUID
	Symbol    string
	Timeframe model.Timeframe
	Lookback  int
	Stage     model.Stage
	// Tag marks the request as part of a symbol's analysis pipeline; empty
	// for requests that are not subject to dedup.
	Tag string
	// Origin is the pending signal a confirmation request re-checks.
	Origin     *model.PendingSignal
	EnqueuedAt time.Time
}

// Result is the outcome of a dispatched request. Series is empty on any
// failure; Err carries the reason.
type Result struct {
	Request Request
	Series  model.Series
	Err     error
}

// AnalysisTag returns the dedup tag for a symbol's pipeline.
func AnalysisTag(symbol string) string { return "analysis_" + symbol }

// Queue is a strict FIFO of requests with an index of tags currently queued.
type Queue struct {
	items []Request
	head  int
	tags  map[string]int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{tags: make(map[string]int)}
}

// Enqueue appends r to the tail, assigning an ID if it has none.
func (q *Queue) Enqueue(r Request) Request {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	q.items = append(q.items, r)
	if r.Tag != "" {
		q.tags[r.Tag]++
	}
	return r
}

// Pop removes and returns the head.
func (q *Queue) Pop() (Request, bool) {
	if q.head >= len(q.items) {
		return Request{}, false
	}
	r := q.items[q.head]
	q.items[q.head] = Request{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	if r.Tag != "" {
		if q.tags[r.Tag] <= 1 {
			delete(q.tags, r.Tag)
		} else {
			q.tags[r.Tag]--
		}
	}
	return r, true
}

// HasTag reports whether any queued request carries tag.
func (q *Queue) HasTag(tag string) bool { return q.tags[tag] > 0 }

// Len returns the number of queued requests.
func (q *Queue) Len() int { return len(q.items) - q.head }

// Snapshot returns the queued requests in order.
func (q *Queue) Snapshot() []Request {
	return append([]Request(nil), q.items[q.head:]...)
}
