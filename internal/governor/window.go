package governor

import (
	"errors"
	"time"
)

// ErrWindowFull is returned when recording a dispatch would exceed the budget.
var ErrWindowFull = errors.New("rate window full")

// RateWindow records the timestamps of the last dispatches inside a trailing
// window. It is not safe for concurrent use; the Governor owns it.
type RateWindow struct {
	limit  int
	span   time.Duration
	stamps []time.Time
}

// NewRateWindow creates a window allowing limit dispatches per span.
func NewRateWindow(limit int, span time.Duration) *RateWindow {
	return &RateWindow{limit: limit, span: span, stamps: make([]time.Time, 0, limit)}
}

// Prune drops every timestamp that is at least span old at now.
func (w *RateWindow) Prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Available reports whether another dispatch fits. Call Prune first.
func (w *RateWindow) Available() bool { return len(w.stamps) < w.limit }

// Record stores a dispatch at now.
func (w *RateWindow) Record(now time.Time) error {
	if !w.Available() {
		return ErrWindowFull
	}
	w.stamps = append(w.stamps, now)
	return nil
}

// Len returns the number of dispatches currently inside the window.
func (w *RateWindow) Len() int { return len(w.stamps) }

// Limit returns the configured budget.
func (w *RateWindow) Limit() int { return w.limit }
