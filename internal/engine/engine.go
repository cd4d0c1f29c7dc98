package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"PairSentinel/internal/collector"
	"PairSentinel/internal/governor"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
	"PairSentinel/internal/recorder"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type sent struct {
	req governor.Request
	at  time.Time
}

// Handler is the analysis side driven by the loop.
type Handler interface {
	Tick(now time.Time)
	Handle(now time.Time, res governor.Result)
	Dispatched(req governor.Request, now time.Time)
	InFlight() []string
	PendingCount() int
	ResetCursor()
}

// SettingsSource provides the current runtime settings.
type SettingsSource interface {
	Get() model.Settings
}

// Config holds the loop's static knobs.
type Config struct {
	FetchTimeout time.Duration
	Workers      int
}

// Engine is the single event loop owning the governor and the pipeline.
// Ticks and fetch results are serialized onto one goroutine; only the data
// source calls run concurrently, bounded by Workers.
type Engine struct {
	cfg      Config
	gov      *governor.Governor
	handler  Handler
	fetcher  collector.Fetcher
	settings SettingsSource
	rec      recorder.Recorder
	metrics  *metrics.Recorder
	sem      *semaphore.Weighted
	now      func() time.Time

	govTick   chan time.Time
	logicTick chan time.Time
	results   chan governor.Result
	calls     chan func()

	// inflight holds dispatched requests whose result has not been handled.
	inflight map[uuid.UUID]sent
	workers  sync.WaitGroup

	mu         sync.RWMutex
	status     model.Status
	dispatched uint64
	lastSent   time.Time
	started    time.Time
}

// New creates an engine. rec and m may be nil.
func New(cfg Config, gov *governor.Governor, h Handler, f collector.Fetcher, s SettingsSource, rec recorder.Recorder, m *metrics.Recorder) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Engine{
		cfg:       cfg,
		gov:       gov,
		handler:   h,
		fetcher:   f,
		settings:  s,
		rec:       rec,
		metrics:   m,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		now:       time.Now,
		govTick:   make(chan time.Time, 1),
		logicTick: make(chan time.Time, 1),
		results:   make(chan governor.Result, 16),
		calls:     make(chan func()),
		inflight:  make(map[uuid.UUID]sent),
	}
}

// GovernorTick asks the loop to run one governor step. Ticks arriving while
// one is still waiting are dropped.
func (e *Engine) GovernorTick(now time.Time) { offer(e.govTick, now) }

// LogicTick asks the loop to run one scheduling step.
func (e *Engine) LogicTick(now time.Time) { offer(e.logicTick, now) }

func offer(ch chan time.Time, now time.Time) {
	select {
	case ch <- now:
	default:
	}
}

// Run processes ticks and results until ctx is cancelled, then waits for
// outstanding fetches to return.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.started = e.now()
	e.mu.Unlock()
	e.publish()
	log.Info().Int("workers", e.cfg.Workers).Dur("fetch_timeout", e.cfg.FetchTimeout).Msg("engine started")

	defer func() {
		e.workers.Wait()
		log.Info().Int("abandoned", len(e.inflight)).Msg("engine stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-e.govTick:
			e.governorStep(ctx, now)
		case now := <-e.logicTick:
			e.guard("logic tick", func() { e.handler.Tick(now) })
		case res := <-e.results:
			e.complete(e.now(), res)
		case fn := <-e.calls:
			e.guard("call", fn)
		}
		e.publish()
	}
}

// Do runs fn on the loop goroutine and waits for it.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case e.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetCursor restarts the round-robin at the first symbol.
func (e *Engine) ResetCursor(ctx context.Context) error {
	return e.Do(ctx, e.handler.ResetCursor)
}

func (e *Engine) governorStep(ctx context.Context, now time.Time) {
	req, ok := e.gov.Tick(now)
	if ok {
		e.dispatch(ctx, req, now)
	}
	e.metrics.Governor(e.gov.Queue().Len(), e.gov.Window().Len())
}

func (e *Engine) dispatch(ctx context.Context, req governor.Request, now time.Time) {
	e.inflight[req.ID] = sent{req: req, at: now}
	e.handler.Dispatched(req, now)
	e.metrics.Dispatch(req.Stage.String())
	e.mu.Lock()
	e.dispatched++
	e.lastSent = now
	e.mu.Unlock()

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		res := e.fetch(ctx, req)
		select {
		case e.results <- res:
		case <-ctx.Done():
		}
	}()
}

// fetch performs the data source call for req. Any failure yields an empty
// series and a non-nil error.
func (e *Engine) fetch(ctx context.Context, req governor.Request) (res governor.Result) {
	res = governor.Result{Request: req, Series: model.Series{Symbol: req.Symbol, Timeframe: req.Timeframe}}
	defer func() {
		if r := recover(); r != nil {
			res.Series.Bars = nil
			res.Err = fmt.Errorf("%w: fetch panic: %v", collector.ErrSourceUnavailable, r)
		}
	}()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		res.Err = err
		return res
	}
	defer e.sem.Release(1)

	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	start := time.Now()
	s, err := e.fetcher.Fetch(fctx, req.Symbol, req.Timeframe, req.Lookback)
	e.metrics.FetchDuration(string(req.Timeframe), time.Since(start).Seconds())
	if err != nil {
		res.Err = err
		return res
	}
	res.Series = s
	return res
}

// complete routes a fetch result to its continuation exactly once.
func (e *Engine) complete(now time.Time, res governor.Result) {
	s, ok := e.inflight[res.Request.ID]
	if !ok {
		log.Error().Str("request_id", res.Request.ID.String()).Str("symbol", res.Request.Symbol).
			Msg("result for unknown or completed request dropped")
		return
	}
	req := s.req
	delete(e.inflight, req.ID)
	res.Request = req
	if res.Err == nil && res.Series.Empty() {
		res.Err = collector.ErrNoData
	}

	evt := &recorder.FetchEvent{
		RequestID: req.ID,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Stage:     req.Stage,
		Bars:      res.Series.Len(),
		Duration:  now.Sub(s.at),
		At:        now,
	}
	if res.Err != nil {
		evt.Err = res.Err.Error()
		e.metrics.FetchFailure(req.Stage.String(), failureReason(res.Err))
		log.Warn().Err(res.Err).Str("symbol", req.Symbol).Str("timeframe", string(req.Timeframe)).
			Str("stage", req.Stage.String()).Msg("fetch failed")
	}
	if err := e.rec.RecordFetch(evt); err != nil {
		log.Warn().Err(err).Msg("record fetch failed")
	}

	e.guard("continuation", func() { e.handler.Handle(now, res) })
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, collector.ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, collector.ErrNoData):
		return "no_data"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}

// guard runs fn, logging and swallowing any panic so the loop keeps ticking.
func (e *Engine) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("in", what).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered panic")
		}
	}()
	fn()
}

func (e *Engine) publish() {
	settings := e.settings.Get()
	st := model.Status{
		Running:     settings.Running,
		Profile:     settings.ProfileName,
		Symbols:     settings.Symbols,
		QueueDepth:  e.gov.Queue().Len(),
		WindowUsed:  e.gov.Window().Len(),
		WindowLimit: e.gov.Window().Limit(),
		Pending:     e.handler.PendingCount(),
		InFlight:    e.handler.InFlight(),
	}
	e.metrics.Pending(st.Pending)
	e.mu.Lock()
	st.Dispatched = e.dispatched
	st.LastDispatch = e.lastSent
	st.StartedAt = e.started
	e.status = st
	e.mu.Unlock()
}

// Status returns the latest published snapshot. Safe for any goroutine.
func (e *Engine) Status() model.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.Symbols = append([]string(nil), st.Symbols...)
	st.InFlight = append([]string(nil), st.InFlight...)
	return st
}
