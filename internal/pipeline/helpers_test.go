package pipeline

import (
	"errors"
	"testing"
	"time"

	"PairSentinel/internal/governor"
	"PairSentinel/internal/model"
	"PairSentinel/internal/state"
	"PairSentinel/internal/strategy"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type fakeSettings struct{ s model.Settings }

func (f *fakeSettings) Get() model.Settings { return f.s.Clone() }

type scoreCall struct{ m15, h1 model.Trend }

// scriptedScorer returns queued scores in order, then zeros.
type scriptedScorer struct {
	scores []model.Scores
	err    error
	calls  []scoreCall
}

func (s *scriptedScorer) Score(_ model.Series, _ strategy.Options, m15, h1 model.Trend) (model.Scores, error) {
	s.calls = append(s.calls, scoreCall{m15, h1})
	if s.err != nil {
		return model.Scores{}, s.err
	}
	if len(s.scores) == 0 {
		return model.Scores{}, nil
	}
	out := s.scores[0]
	s.scores = s.scores[1:]
	return out, nil
}

type postBox struct{ msgs []string }

func (p *postBox) Post(text string) { p.msgs = append(p.msgs, text) }

type persistCounter struct{ n int }

func (p *persistCounter) Persist() bool { p.n++; return true }

type harness struct {
	p        *Pipeline
	q        *governor.Queue
	settings *fakeSettings
	scorer   *scriptedScorer
	posts    *postBox
	persist  *persistCounter
	stats    *state.Statistics
}

func newHarness(t *testing.T, symbols ...string) *harness {
	t.Helper()
	s := model.DefaultSettings()
	s.Running = true
	s.Symbols = symbols
	h := &harness{
		q:        governor.NewQueue(),
		settings: &fakeSettings{s: s},
		scorer:   &scriptedScorer{},
		posts:    &postBox{},
		persist:  &persistCounter{},
		stats:    state.NewStatistics(),
	}
	h.p = New(Config{NotifyErrors: true}, Deps{
		Queue:     h.q,
		Settings:  h.settings,
		Scorer:    h.scorer,
		Stats:     h.stats,
		Persister: h.persist,
		Notifier:  h.posts,
	})
	return h
}

// series builds n flat bars at 100 with the last close at last.
func series(sym string, tf model.Timeframe, n int, last float64) model.Series {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		bars[i] = model.OHLCV{Open: 100, High: 100, Low: 100, Close: 100}
	}
	if n > 0 {
		bars[n-1].Close = last
	}
	return model.Series{Symbol: sym, Timeframe: tf, Bars: bars}
}

// pop removes the next queued request, failing the test if there is none.
func (h *harness) pop(t *testing.T) governor.Request {
	t.Helper()
	r, ok := h.q.Pop()
	if !ok {
		t.Fatal("expected a queued request")
	}
	return r
}

func fetched(req governor.Request, s model.Series) governor.Result {
	return governor.Result{Request: req, Series: s}
}

func failed(req governor.Request, err error) governor.Result {
	return governor.Result{Request: req, Series: model.Series{Symbol: req.Symbol, Timeframe: req.Timeframe}, Err: err}
}

// detect runs a full stage 1-3 chain for the first configured symbol and
// returns once stage 3 has been handled.
func (h *harness) detect(t *testing.T, now time.Time, scores model.Scores) {
	t.Helper()
	h.scorer.scores = append(h.scorer.scores, scores)
	h.p.Tick(now)
	r1 := h.pop(t)
	h.p.Handle(now, fetched(r1, series(r1.Symbol, model.M15, 60, 110)))
	r2 := h.pop(t)
	h.p.Handle(now, fetched(r2, series(r2.Symbol, model.H1, 60, 90)))
	r3 := h.pop(t)
	h.p.Handle(now, fetched(r3, series(r3.Symbol, model.M5, 60, 100)))
}

var errDown = errors.New("down")
