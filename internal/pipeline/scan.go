package pipeline

import (
	"time"

	"PairSentinel/internal/governor"
	"PairSentinel/internal/model"

	"github.com/rs/zerolog/log"
)

// Tick runs one scheduling step. A due confirmation takes priority; otherwise
// the next symbol in round-robin order starts an analysis chain unless one is
// already in flight for it. At most one request is enqueued per call.
func (p *Pipeline) Tick(now time.Time) {
	settings := p.settings.Get()
	if !settings.Running {
		return
	}
	if p.confirmDue(now, settings) {
		return
	}
	p.scanNext(now, settings)
}

func (p *Pipeline) confirmDue(now time.Time, settings model.Settings) bool {
	sig, ok := p.pending.TakeDue(now, settings.ConfirmationDelay)
	if !ok {
		return false
	}
	p.confirming[sig.Symbol] = sig
	origin := sig
	p.queue.Enqueue(governor.Request{
		Symbol:     sig.Symbol,
		Timeframe:  model.M5,
		Lookback:   p.cfg.SignalLookback,
		Stage:      model.StageConfirm,
		Origin:     &origin,
		EnqueuedAt: now,
	})
	p.metrics.Pending(p.pending.Len())
	log.Info().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).
		Dur("age", sig.Age(now)).Msg("confirmation enqueued")
	return true
}

func (p *Pipeline) scanNext(now time.Time, settings model.Settings) {
	symbols := settings.Symbols
	if len(symbols) == 0 {
		return
	}
	if p.cursor >= len(symbols) || p.cursor < 0 {
		p.cursor = 0
	}
	sym := symbols[p.cursor]
	p.cursor = (p.cursor + 1) % len(symbols)

	if p.analysing(sym, now) {
		log.Debug().Str("symbol", sym).Msg("analysis in flight, skipping")
		return
	}
	sc := &scratch{m15: model.TrendNeutral, h1: model.TrendNeutral, touched: now}
	p.scratch[sym] = sc
	sc.id = p.queue.Enqueue(governor.Request{
		Symbol:     sym,
		Timeframe:  model.M15,
		Lookback:   p.cfg.TrendLookback,
		Stage:      model.StageTrendM15,
		Tag:        governor.AnalysisTag(sym),
		EnqueuedAt: now,
	}).ID
	log.Debug().Str("symbol", sym).Msg("analysis enqueued")
}

// analysing reports whether sym has a chain between stage 1 and stage 3,
// either queued or being fetched. A chain with nothing queued that has not
// advanced within StaleAfter lost its result and is dropped.
func (p *Pipeline) analysing(sym string, now time.Time) bool {
	if p.queue.HasTag(governor.AnalysisTag(sym)) {
		return true
	}
	sc, ok := p.scratch[sym]
	if !ok {
		return false
	}
	if now.Sub(sc.touched) > p.cfg.StaleAfter {
		log.Warn().Str("symbol", sym).Time("touched", sc.touched).Msg("dropping stale analysis chain")
		delete(p.scratch, sym)
		return false
	}
	return true
}
