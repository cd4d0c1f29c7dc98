package state

import (
	"context"
	"time"

	"PairSentinel/internal/model"

	"github.com/rs/zerolog/log"
)

// SettingsSource provides the current runtime settings.
type SettingsSource interface {
	Get() model.Settings
}

// Persister writes the combined settings and statistics snapshot. Failures
// are logged; in-memory state stays authoritative.
type Persister struct {
	store    Store
	settings SettingsSource
	stats    *Statistics
	timeout  time.Duration
	now      func() time.Time
}

// NewPersister composes a store with the live settings and statistics.
func NewPersister(store Store, settings SettingsSource, stats *Statistics) *Persister {
	return &Persister{
		store:    store,
		settings: settings,
		stats:    stats,
		timeout:  5 * time.Second,
		now:      time.Now,
	}
}

// Persist saves the snapshot and reports whether it succeeded.
func (p *Persister) Persist() bool {
	return p.save(p.snapshot())
}

func (p *Persister) snapshot() *model.State {
	return &model.State{
		Settings:   p.settings.Get(),
		Statistics: p.stats.Snapshot(),
		UpdatedAt:  p.now(),
	}
}

func (p *Persister) save(st *model.State) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.store.Save(ctx, st); err != nil {
		log.Warn().Err(err).Msg("persist state failed")
		return false
	}
	return true
}

// AsyncPersister takes the snapshot on the caller's goroutine and writes it
// from a single background worker. Only the latest unsaved snapshot is kept.
type AsyncPersister struct {
	p      *Persister
	latest chan *model.State
}

// NewAsyncPersister wraps p. Run must be started for anything to be written.
func NewAsyncPersister(p *Persister) *AsyncPersister {
	return &AsyncPersister{p: p, latest: make(chan *model.State, 1)}
}

// Persist hands over a snapshot without waiting for the store. It reports
// whether the snapshot was accepted, which is always the case.
func (a *AsyncPersister) Persist() bool {
	st := a.p.snapshot()
	for {
		select {
		case a.latest <- st:
			return true
		default:
		}
		// replace an older snapshot the worker has not picked up yet
		select {
		case <-a.latest:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled, then writes the one still
// waiting, if any.
func (a *AsyncPersister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case st := <-a.latest:
				a.p.save(st)
			default:
			}
			return
		case st := <-a.latest:
			a.p.save(st)
		}
	}
}
