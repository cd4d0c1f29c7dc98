package state

import (
	"sort"
	"sync"

	"PairSentinel/internal/model"
)

// Statistics holds per-symbol signal outcome counters. Counters only grow;
// readers get copies.
type Statistics struct {
	mu     sync.RWMutex
	counts map[string]model.SymbolStatistics
}

// NewStatistics creates an empty store.
func NewStatistics() *Statistics {
	return &Statistics{counts: make(map[string]model.SymbolStatistics)}
}

// IncInitial counts a detection.
func (s *Statistics) IncInitial(symbol string) {
	s.update(symbol, func(c *model.SymbolStatistics) { c.Initial++ })
}

// IncConfirmed counts a successful confirmation.
func (s *Statistics) IncConfirmed(symbol string) {
	s.update(symbol, func(c *model.SymbolStatistics) { c.Confirmed++ })
}

// IncFailed counts a failed confirmation.
func (s *Statistics) IncFailed(symbol string) {
	s.update(symbol, func(c *model.SymbolStatistics) { c.FailedConfirmation++ })
}

func (s *Statistics) update(symbol string, fn func(*model.SymbolStatistics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counts[symbol]
	fn(&c)
	s.counts[symbol] = c
}

// Get returns the counters for one symbol.
func (s *Statistics) Get(symbol string) model.SymbolStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[symbol]
}

// Snapshot returns a copy of all counters.
func (s *Statistics) Snapshot() map[string]model.SymbolStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.SymbolStatistics, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Symbols returns the symbols with counters, sorted.
func (s *Statistics) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.counts))
	for k := range s.counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Restore replaces the counters with a persisted snapshot. Used once at startup.
func (s *Statistics) Restore(counts map[string]model.SymbolStatistics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]model.SymbolStatistics, len(counts))
	for k, v := range counts {
		s.counts[k] = v
	}
}

// Totals sums the counters across symbols.
func Totals(counts map[string]model.SymbolStatistics) model.SymbolStatistics {
	var t model.SymbolStatistics
	for _, c := range counts {
		t.Initial += c.Initial
		t.Confirmed += c.Confirmed
		t.FailedConfirmation += c.FailedConfirmation
	}
	return t
}

// SuccessRate is confirmed signals over detections, in percent. Zero when
// nothing has been detected.
func SuccessRate(c model.SymbolStatistics) float64 {
	if c.Initial == 0 {
		return 0
	}
	return float64(c.Confirmed) / float64(c.Initial) * 100
}
