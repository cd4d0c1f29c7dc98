package pipeline

import (
	"errors"
	"sort"
	"time"

	"PairSentinel/internal/model"
)

// ErrAlreadyPending means a second pending signal was offered for a symbol.
var ErrAlreadyPending = errors.New("signal already pending for symbol")

// PendingStore holds at most one unconfirmed signal per symbol.
type PendingStore struct {
	items map[string]model.PendingSignal
}

func NewPendingStore() *PendingStore {
	return &PendingStore{items: make(map[string]model.PendingSignal)}
}

// Add stores sig, refusing a second one for the same symbol.
func (s *PendingStore) Add(sig model.PendingSignal) error {
	if _, ok := s.items[sig.Symbol]; ok {
		return ErrAlreadyPending
	}
	s.items[sig.Symbol] = sig
	return nil
}

// Has reports whether symbol has a pending signal.
func (s *PendingStore) Has(symbol string) bool {
	_, ok := s.items[symbol]
	return ok
}

// TakeDue removes and returns the oldest signal whose age has reached delay.
func (s *PendingStore) TakeDue(now time.Time, delay time.Duration) (model.PendingSignal, bool) {
	var (
		due   model.PendingSignal
		found bool
	)
	for _, sig := range s.items {
		if sig.Age(now) < delay {
			continue
		}
		if !found || sig.CreatedAt.Before(due.CreatedAt) ||
			(sig.CreatedAt.Equal(due.CreatedAt) && sig.Symbol < due.Symbol) {
			due, found = sig, true
		}
	}
	if found {
		delete(s.items, due.Symbol)
	}
	return due, found
}

func (s *PendingStore) Len() int { return len(s.items) }

// List returns pending signals oldest first.
func (s *PendingStore) List() []model.PendingSignal {
	out := make([]model.PendingSignal, 0, len(s.items))
	for _, sig := range s.items {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
