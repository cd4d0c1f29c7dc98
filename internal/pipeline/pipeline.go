package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"PairSentinel/internal/calculator"
	"PairSentinel/internal/collector"
	"PairSentinel/internal/governor"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/state"
	"PairSentinel/internal/strategy"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTrendLookback  = 150
	DefaultSignalLookback = 200
	DefaultStaleAfter     = 2 * time.Minute
)

// Queue is the producer side of the governor's request queue.
type Queue interface {
	Enqueue(r governor.Request) governor.Request
	HasTag(tag string) bool
}

// SettingsSource provides the current runtime settings.
type SettingsSource interface {
	Get() model.Settings
}

// Scorer computes buy and sell scores for a signal-timeframe series.
type Scorer interface {
	Score(series model.Series, opts strategy.Options, m15, h1 model.Trend) (model.Scores, error)
}

// Poster accepts a notification for best-effort delivery.
type Poster interface {
	Post(text string)
}

// Persister saves settings and statistics after each counter change.
type Persister interface {
	Persist() bool
}

// Config holds the static knobs of the pipeline.
type Config struct {
	TrendLookback  int
	SignalLookback int
	// StaleAfter bounds how long a chain may wait on a fetch result.
	StaleAfter time.Duration
	// NotifyErrors surfaces data-source failures to the operator channel.
	NotifyErrors bool
}

// Deps wires the pipeline's collaborators. Recorder and Metrics may be nil.
type Deps struct {
	Queue     Queue
	Settings  SettingsSource
	Scorer    Scorer
	Stats     *state.Statistics
	Persister Persister
	Notifier  Poster
	Recorder  recorder.Recorder
	Metrics   *metrics.Recorder
}

// scratch carries trend labels between stage 1 and stage 3. id is the
// chain's outstanding request; results for any other ID are stale.
type scratch struct {
	id      uuid.UUID
	m15, h1 model.Trend
	touched time.Time
}

// Pipeline owns the per-symbol analysis state machine, the pending signal
// store and the round-robin cursor. It is not safe for concurrent use: the
// engine loop is its only caller.
type Pipeline struct {
	cfg      Config
	queue    Queue
	settings SettingsSource
	scorer   Scorer
	stats    *state.Statistics
	persist  Persister
	notify   Poster
	rec      recorder.Recorder
	metrics  *metrics.Recorder

	pending    *PendingStore
	scratch    map[string]*scratch
	confirming map[string]model.PendingSignal
	cursor     int
}

// New creates a pipeline.
func New(cfg Config, d Deps) *Pipeline {
	if cfg.TrendLookback <= 0 {
		cfg.TrendLookback = DefaultTrendLookback
	}
	if cfg.SignalLookback <= 0 {
		cfg.SignalLookback = DefaultSignalLookback
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	return &Pipeline{
		cfg:        cfg,
		queue:      d.Queue,
		settings:   d.Settings,
		scorer:     d.Scorer,
		stats:      d.Stats,
		persist:    d.Persister,
		notify:     d.Notifier,
		rec:        d.Recorder,
		metrics:    d.Metrics,
		pending:    NewPendingStore(),
		scratch:    make(map[string]*scratch),
		confirming: make(map[string]model.PendingSignal),
	}
}

// Handle routes a completed fetch to the continuation for its stage.
func (p *Pipeline) Handle(now time.Time, res governor.Result) {
	switch res.Request.Stage {
	case model.StageTrendM15:
		p.handleTrend(now, res, model.H1, model.StageTrendH1, p.cfg.TrendLookback)
	case model.StageTrendH1:
		p.handleTrend(now, res, model.M5, model.StageSignalM5, p.cfg.SignalLookback)
	case model.StageSignalM5:
		p.handleSignal(now, res)
	case model.StageConfirm:
		p.handleConfirm(now, res)
	default:
		log.Error().Int("stage", int(res.Request.Stage)).Str("symbol", res.Request.Symbol).Msg("result for unknown stage")
	}
}

// handleTrend labels the trend for stage 1 or 2 and enqueues the next stage.
func (p *Pipeline) handleTrend(now time.Time, res governor.Result, nextTF model.Timeframe, next model.Stage, lookback int) {
	req := res.Request
	sym := req.Symbol
	sc, ok := p.chainFor(res)
	if !ok {
		return
	}
	if !p.usable(res) {
		return
	}

	params := p.settings.Get().Indicators
	period := params.M15EMAPeriod
	if req.Stage == model.StageTrendH1 {
		period = params.H1EMAPeriod
	}
	label, err := calculator.TrendLabel(res.Series, period)
	if err != nil {
		p.abort(sym, req.Stage, "insufficient_history", err)
		return
	}
	if req.Stage == model.StageTrendM15 {
		sc.m15 = label
	} else {
		sc.h1 = label
	}
	sc.touched = now
	log.Debug().Str("symbol", sym).Str("stage", req.Stage.String()).Str("trend", string(label)).Msg("trend labelled")

	sc.id = p.queue.Enqueue(governor.Request{
		Symbol:     sym,
		Timeframe:  nextTF,
		Lookback:   lookback,
		Stage:      next,
		Tag:        governor.AnalysisTag(sym),
		EnqueuedAt: now,
	}).ID
}

func (p *Pipeline) handleSignal(now time.Time, res governor.Result) {
	sym := res.Request.Symbol
	sc, ok := p.chainFor(res)
	if !ok {
		return
	}
	if !p.usable(res) {
		return
	}
	// Stage 3 ends the chain whatever the outcome.
	delete(p.scratch, sym)

	settings := p.settings.Get()
	scores, err := p.scorer.Score(res.Series, strategy.OptionsFrom(settings), sc.m15, sc.h1)
	if err != nil {
		p.countAbort(sym, model.StageSignalM5, "insufficient_history", err)
		return
	}

	dir, conf, ok := Decide(scores, settings.InitialConfidence)
	logger := log.With().Str("symbol", sym).Int("buy", scores.Buy).Int("sell", scores.Sell).Logger()
	if !ok {
		logger.Debug().Msg("no signal")
		return
	}
	if p.pending.Has(sym) {
		logger.Info().Str("direction", string(dir)).Msg("signal suppressed: already pending")
		return
	}
	if _, busy := p.confirming[sym]; busy {
		logger.Info().Str("direction", string(dir)).Msg("signal suppressed: confirmation in flight")
		return
	}

	sig := model.PendingSignal{
		ID:         uuid.New(),
		Symbol:     sym,
		Direction:  dir,
		Confidence: conf,
		TrendM15:   sc.m15,
		TrendH1:    sc.h1,
		CreatedAt:  now,
	}
	if err := p.pending.Add(sig); err != nil {
		// Has was checked above.
		panic(fmt.Errorf("%s: %w", sym, err))
	}
	p.stats.IncInitial(sym)
	p.persist.Persist()
	p.record(model.SignalDetected, sig, scores, now)
	p.notify.Post(notifier.FormatDetected(sig, settings.ConfirmationDelay))
	p.metrics.Signal(sym, string(model.SignalDetected), string(dir))
	p.metrics.Pending(p.pending.Len())
	logger.Info().Str("direction", string(dir)).Int("confidence", conf).Msg("signal detected")
}

func (p *Pipeline) handleConfirm(now time.Time, res governor.Result) {
	req := res.Request
	if req.Origin == nil {
		log.Error().Str("symbol", req.Symbol).Msg("confirmation result without origin signal")
		return
	}
	sig := *req.Origin
	defer delete(p.confirming, sig.Symbol)

	settings := p.settings.Get()
	var (
		scores    model.Scores
		confirmed bool
	)
	if p.usable(res) {
		s, err := p.scorer.Score(res.Series, strategy.OptionsFrom(settings), model.TrendNeutral, model.TrendNeutral)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("confirmation scoring failed")
		} else {
			scores = s
			confirmed = Confirms(sig.Direction, s, settings.ConfirmationConfidence)
		}
	}

	logger := log.With().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).
		Int("buy", scores.Buy).Int("sell", scores.Sell).Logger()
	kind := model.SignalFailed
	if confirmed {
		kind = model.SignalConfirmed
		p.stats.IncConfirmed(sig.Symbol)
	} else {
		p.stats.IncFailed(sig.Symbol)
	}
	p.persist.Persist()
	p.record(kind, sig, scores, now)
	p.metrics.Signal(sig.Symbol, string(kind), string(sig.Direction))
	if confirmed {
		p.notify.Post(notifier.FormatConfirmed(sig, scores, now))
		logger.Info().Msg("signal confirmed")
		return
	}
	logger.Info().Msg("signal failed confirmation")
}

// usable reports whether res carries data. On failure the chain is aborted.
func (p *Pipeline) usable(res governor.Result) bool {
	if res.Err == nil && !res.Series.Empty() {
		return true
	}
	req := res.Request
	err := res.Err
	if err == nil {
		err = collector.ErrNoData
	}
	if req.Stage != model.StageConfirm {
		p.abort(req.Symbol, req.Stage, "no_data", err)
	}
	if p.cfg.NotifyErrors && (errors.Is(err, collector.ErrSourceUnavailable) || errors.Is(err, collector.ErrConfigurationMissing)) {
		p.notify.Post(notifier.FormatFetchError(req.Symbol, req.Timeframe, err))
	}
	return false
}

// abort drops a symbol's analysis chain.
func (p *Pipeline) abort(sym string, stage model.Stage, reason string, err error) {
	delete(p.scratch, sym)
	p.countAbort(sym, stage, reason, err)
}

func (p *Pipeline) countAbort(sym string, stage model.Stage, reason string, err error) {
	p.metrics.Abort(stage.String(), reason)
	ev := log.Warn()
	if errors.Is(err, calculator.ErrInsufficientHistory) {
		ev = log.Info()
	}
	ev.Err(err).Str("symbol", sym).Str("stage", stage.String()).Str("reason", reason).Msg("analysis aborted")
}

// chainFor returns the live chain res belongs to. A result from a chain that
// was dropped as stale, or already replaced, is logged and ignored.
func (p *Pipeline) chainFor(res governor.Result) (*scratch, bool) {
	req := res.Request
	sc, ok := p.scratch[req.Symbol]
	if !ok || sc.id != req.ID {
		log.Warn().Str("symbol", req.Symbol).Str("stage", req.Stage.String()).
			Str("request", req.ID.String()).Msg("ignoring result of a dropped analysis chain")
		return nil, false
	}
	return sc, true
}

func (p *Pipeline) record(kind model.SignalKind, sig model.PendingSignal, scores model.Scores, now time.Time) {
	err := p.rec.RecordSignal(&recorder.SignalEvent{
		Kind:       kind,
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Confidence: sig.Confidence,
		Scores:     scores,
		TrendM15:   sig.TrendM15,
		TrendH1:    sig.TrendH1,
		At:         now,
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("record signal failed")
	}
}

// Dispatched notes that the governor handed req to a fetch worker.
func (p *Pipeline) Dispatched(req governor.Request, now time.Time) {
	if sc, ok := p.scratch[req.Symbol]; ok && req.Tag != "" {
		sc.touched = now
	}
}

// InFlight returns the symbols with an analysis chain or confirmation in progress.
func (p *Pipeline) InFlight() []string {
	seen := make(map[string]struct{}, len(p.scratch)+len(p.confirming))
	for sym := range p.scratch {
		seen[sym] = struct{}{}
	}
	for sym := range p.confirming {
		seen[sym] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Pending exposes the pending signal store.
func (p *Pipeline) Pending() *PendingStore { return p.pending }

// Cursor returns the round-robin position.
func (p *Pipeline) Cursor() int { return p.cursor }

// ResetCursor moves the round-robin back to the first symbol.
func (p *Pipeline) ResetCursor() { p.cursor = 0 }

// PendingCount returns the number of signals awaiting confirmation.
func (p *Pipeline) PendingCount() int { return p.pending.Len() }
