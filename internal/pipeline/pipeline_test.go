package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"PairSentinel/internal/collector"
	"PairSentinel/internal/governor"
	"PairSentinel/internal/model"
)

func TestPipeline_FullChain(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.scorer.scores = []model.Scores{{Buy: 3, Sell: 0}}

	h.p.Tick(t0)
	r1 := h.pop(t)
	if r1.Stage != model.StageTrendM15 || r1.Timeframe != model.M15 || r1.Lookback != 150 || r1.Tag != "analysis_EUR/USD" {
		t.Fatalf("unexpected stage 1 request %+v", r1)
	}
	h.p.Handle(t0, fetched(r1, series("EUR/USD", model.M15, 60, 110)))

	r2 := h.pop(t)
	if r2.Stage != model.StageTrendH1 || r2.Timeframe != model.H1 || r2.Lookback != 150 || r2.Tag == "" {
		t.Fatalf("unexpected stage 2 request %+v", r2)
	}
	h.p.Handle(t0, fetched(r2, series("EUR/USD", model.H1, 60, 90)))

	r3 := h.pop(t)
	if r3.Stage != model.StageSignalM5 || r3.Timeframe != model.M5 || r3.Lookback != 200 || r3.Tag == "" {
		t.Fatalf("unexpected stage 3 request %+v", r3)
	}
	if got := h.p.InFlight(); len(got) != 1 || got[0] != "EUR/USD" {
		t.Errorf("expected EUR/USD in flight, got %v", got)
	}
	h.p.Handle(t0, fetched(r3, series("EUR/USD", model.M5, 60, 100)))

	if len(h.scorer.calls) != 1 || h.scorer.calls[0] != (scoreCall{model.TrendUp, model.TrendDown}) {
		t.Errorf("scorer must see the stage 1 and 2 labels, got %+v", h.scorer.calls)
	}
	pend := h.p.Pending().List()
	if len(pend) != 1 || pend[0].Direction != model.Buy || pend[0].Confidence != 3 || !pend[0].CreatedAt.Equal(t0) {
		t.Fatalf("expected BUY/3 pending signal, got %+v", pend)
	}
	if h.stats.Get("EUR/USD").Initial != 1 || h.persist.n != 1 || len(h.posts.msgs) != 1 {
		t.Errorf("detection side effects: stats=%+v persist=%d posts=%d", h.stats.Get("EUR/USD"), h.persist.n, len(h.posts.msgs))
	}
	if len(h.p.InFlight()) != 0 {
		t.Errorf("scratch must be cleared after stage 3, got %v", h.p.InFlight())
	}
	if h.q.Len() != 0 {
		t.Errorf("chain must end after stage 3, queue=%d", h.q.Len())
	}
}

func TestPipeline_Thresholds(t *testing.T) {
	tests := []struct {
		scores    model.Scores
		threshold int
		want      model.Direction
		conf      int
	}{
		{model.Scores{Buy: 3, Sell: 0}, 3, model.Buy, 3},
		{model.Scores{Buy: 2, Sell: 0}, 3, "", 0},
		{model.Scores{Buy: 3, Sell: 3}, 3, "", 0},
		{model.Scores{Buy: 0, Sell: 0}, 0, "", 0},
		{model.Scores{Buy: 1, Sell: 5}, 4, model.Sell, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d/%d", tt.scores.Buy, tt.scores.Sell, tt.threshold), func(t *testing.T) {
			h := newHarness(t, "EUR/USD")
			h.settings.s.InitialConfidence = tt.threshold
			h.detect(t, t0, tt.scores)

			pend := h.p.Pending().List()
			if tt.want == "" {
				if len(pend) != 0 || h.stats.Get("EUR/USD").Initial != 0 {
					t.Fatalf("expected no signal, got %+v", pend)
				}
				return
			}
			if len(pend) != 1 || pend[0].Direction != tt.want || pend[0].Confidence != tt.conf {
				t.Fatalf("expected %s/%d, got %+v", tt.want, tt.conf, pend)
			}
		})
	}
}

func TestPipeline_DedupAdvancesCursor(t *testing.T) {
	h := newHarness(t, "EUR/USD", "USD/JPY")

	h.p.Tick(t0)                      // EUR/USD
	h.p.Tick(t0.Add(5 * time.Second)) // USD/JPY
	if h.q.Len() != 2 || h.p.Cursor() != 0 {
		t.Fatalf("expected two chains and cursor 0, queue=%d cursor=%d", h.q.Len(), h.p.Cursor())
	}

	h.p.Tick(t0.Add(10 * time.Second)) // EUR/USD again, still queued
	if h.q.Len() != 2 {
		t.Errorf("duplicate chain must not be enqueued, queue=%d", h.q.Len())
	}
	if h.p.Cursor() != 1 {
		t.Errorf("cursor must advance past the skipped symbol, got %d", h.p.Cursor())
	}

	// Stage 1 is being fetched: nothing tagged in the queue for EUR/USD, but
	// the chain is still in flight.
	r := h.pop(t)
	h.p.Dispatched(r, t0.Add(11*time.Second))
	if h.q.HasTag(governor.AnalysisTag("EUR/USD")) {
		t.Fatal("expected no queued tag for EUR/USD")
	}
	h.p.Tick(t0.Add(15 * time.Second)) // USD/JPY, queued
	h.p.Tick(t0.Add(20 * time.Second)) // EUR/USD, fetching
	if h.q.Len() != 1 {
		t.Errorf("in-flight chains must not be duplicated, queue=%d", h.q.Len())
	}
}

func TestPipeline_StaleChainDropped(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.p.Tick(t0)
	r := h.pop(t)
	h.p.Dispatched(r, t0.Add(time.Second))

	h.p.Tick(t0.Add(time.Minute))
	if h.q.Len() != 0 {
		t.Fatal("chain awaiting its result must not be restarted")
	}
	h.p.Tick(t0.Add(DefaultStaleAfter + 2*time.Second))
	if h.q.Len() != 1 {
		t.Fatal("stale chain should be replaced by a new one")
	}
}

func TestPipeline_LateResultOfDroppedChain(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.p.Tick(t0)
	old := h.pop(t)
	h.p.Dispatched(old, t0)

	later := t0.Add(DefaultStaleAfter + 2*time.Second)
	h.p.Tick(later)
	if h.q.Len() != 1 {
		t.Fatal("stale chain should be replaced by a new one")
	}

	h.p.Handle(later, fetched(old, series("EUR/USD", model.M15, 60, 110)))
	h.p.Handle(later, failed(old, fmt.Errorf("%w: timeout", collector.ErrSourceUnavailable)))
	if h.q.Len() != 1 {
		t.Fatalf("late result advanced a dropped chain, queue = %d", h.q.Len())
	}
	if len(h.posts.msgs) != 0 || len(h.p.InFlight()) != 1 {
		t.Fatalf("late failure touched the live chain: posts %v in flight %v", h.posts.msgs, h.p.InFlight())
	}

	cur := h.pop(t)
	if cur.ID == old.ID || cur.Stage != model.StageTrendM15 {
		t.Fatalf("unexpected live request %+v", cur)
	}
	h.p.Handle(later, fetched(cur, series("EUR/USD", model.M15, 60, 110)))
	if next := h.pop(t); next.Stage != model.StageTrendH1 {
		t.Errorf("live chain stage = %s, want %s", next.Stage, model.StageTrendH1)
	}
	if h.q.Len() != 0 {
		t.Errorf("one chain per symbol, queue = %d", h.q.Len())
	}
}

func TestPipeline_AtMostOnePending(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.detect(t, t0, model.Scores{Buy: 4})
	h.detect(t, t0.Add(time.Minute), model.Scores{Sell: 5})

	if h.p.Pending().Len() != 1 {
		t.Fatalf("expected one pending signal, got %d", h.p.Pending().Len())
	}
	if sig := h.p.Pending().List()[0]; sig.Direction != model.Buy || !sig.CreatedAt.Equal(t0) {
		t.Errorf("first signal must be kept, got %+v", sig)
	}
	if h.stats.Get("EUR/USD").Initial != 1 {
		t.Errorf("suppressed detection must not count, got %+v", h.stats.Get("EUR/USD"))
	}
}

func TestPipeline_Confirmation(t *testing.T) {
	tests := []struct {
		name      string
		rescore   model.Scores
		empty     bool
		confirmed bool
	}{
		{"confirmed", model.Scores{Buy: 4}, false, true},
		{"below threshold", model.Scores{Buy: 3}, false, false},
		{"direction flipped", model.Scores{Buy: 1, Sell: 6}, false, false},
		{"empty fetch", model.Scores{}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "EUR/USD")
			h.detect(t, t0, model.Scores{Buy: 3})
			postsBefore := len(h.posts.msgs)

			h.p.Tick(t0.Add(4 * time.Minute)) // not yet due: scan branch
			if r := h.pop(t); r.Stage != model.StageTrendM15 {
				t.Fatalf("expected a scan before the delay elapses, got %s", r.Stage)
			}
			h.p.ResetCursor()
			delete(h.p.scratch, "EUR/USD")

			h.p.Tick(t0.Add(5 * time.Minute))
			if h.p.Pending().Len() != 0 {
				t.Fatal("pending signal must be removed when its confirmation is enqueued")
			}
			r := h.pop(t)
			if r.Stage != model.StageConfirm || r.Timeframe != model.M5 || r.Lookback != 200 || r.Tag != "" || r.Origin == nil {
				t.Fatalf("unexpected confirmation request %+v", r)
			}

			h.scorer.scores = []model.Scores{tt.rescore}
			res := fetched(r, series("EUR/USD", model.M5, 60, 100))
			if tt.empty {
				res = failed(r, collector.ErrNoData)
			}
			h.p.Handle(t0.Add(5*time.Minute+3*time.Second), res)

			st := h.stats.Get("EUR/USD")
			if tt.confirmed {
				if st.Confirmed != 1 || st.FailedConfirmation != 0 {
					t.Errorf("expected confirmation, got %+v", st)
				}
				if !strings.Contains(h.posts.msgs[len(h.posts.msgs)-1], "Confirmed signal") {
					t.Errorf("expected confirmed notification, got %v", h.posts.msgs)
				}
			} else {
				if st.Confirmed != 0 || st.FailedConfirmation != 1 {
					t.Errorf("expected failed confirmation, got %+v", st)
				}
				for _, m := range h.posts.msgs[postsBefore:] {
					if strings.Contains(m, "Confirmed signal") {
						t.Errorf("failed confirmation must not be announced")
					}
				}
			}
			if !tt.empty {
				last := h.scorer.calls[len(h.scorer.calls)-1]
				if last != (scoreCall{model.TrendNeutral, model.TrendNeutral}) {
					t.Errorf("confirmation must score without trend gating, got %+v", last)
				}
			}
			if len(h.p.InFlight()) != 0 {
				t.Errorf("confirmation must clear its in-flight mark, got %v", h.p.InFlight())
			}
			if h.persist.n != 2 {
				t.Errorf("expected persist after detection and confirmation, got %d", h.persist.n)
			}
		})
	}
}

func TestPipeline_ConfirmationPriority(t *testing.T) {
	h := newHarness(t, "EUR/USD", "USD/JPY")
	h.detect(t, t0, model.Scores{Sell: 3})
	cursor := h.p.Cursor()

	h.p.Tick(t0.Add(6 * time.Minute))
	if h.q.Len() != 1 {
		t.Fatalf("expected exactly one request, queue=%d", h.q.Len())
	}
	if r := h.pop(t); r.Stage != model.StageConfirm {
		t.Fatalf("confirmation must take priority over the scan, got %s", r.Stage)
	}
	if h.p.Cursor() != cursor {
		t.Errorf("cursor must not move on a confirmation tick")
	}
}

func TestPipeline_OldestConfirmationFirst(t *testing.T) {
	h := newHarness(t, "EUR/USD", "USD/JPY")
	h.p.pending.Add(model.PendingSignal{Symbol: "USD/JPY", Direction: model.Sell, CreatedAt: t0.Add(time.Minute)})
	h.p.pending.Add(model.PendingSignal{Symbol: "EUR/USD", Direction: model.Buy, CreatedAt: t0})

	h.p.Tick(t0.Add(10 * time.Minute))
	if r := h.pop(t); r.Symbol != "EUR/USD" {
		t.Errorf("expected oldest signal first, got %s", r.Symbol)
	}
	h.p.Tick(t0.Add(10*time.Minute + 5*time.Second))
	if r := h.pop(t); r.Symbol != "USD/JPY" || r.Stage != model.StageConfirm {
		t.Errorf("expected second confirmation, got %s/%s", r.Symbol, r.Stage)
	}
}

func TestPipeline_SuppressedWhileConfirming(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.detect(t, t0, model.Scores{Buy: 3})
	h.p.Tick(t0.Add(5 * time.Minute))
	confirm := h.pop(t)

	// A new chain completes before the confirmation result arrives.
	h.detect(t, t0.Add(5*time.Minute+5*time.Second), model.Scores{Buy: 5})
	if h.p.Pending().Len() != 0 {
		t.Fatal("detection during confirmation must be suppressed")
	}

	h.scorer.scores = []model.Scores{{Buy: 4}}
	h.p.Handle(t0.Add(6*time.Minute), fetched(confirm, series("EUR/USD", model.M5, 60, 100)))
	h.detect(t, t0.Add(7*time.Minute), model.Scores{Buy: 5})
	if h.p.Pending().Len() != 1 {
		t.Fatal("detection after the confirmation resolved must be accepted")
	}
}

func TestPipeline_AbortOnEmptyData(t *testing.T) {
	for _, stage := range []model.Stage{model.StageTrendM15, model.StageTrendH1, model.StageSignalM5} {
		t.Run(stage.String(), func(t *testing.T) {
			h := newHarness(t, "EUR/USD")
			h.scorer.scores = []model.Scores{{Buy: 9}}
			h.p.Tick(t0)
			for {
				r := h.pop(t)
				if r.Stage == stage {
					h.p.Handle(t0, failed(r, fmt.Errorf("%w: timeout", collector.ErrSourceUnavailable)))
					break
				}
				h.p.Handle(t0, fetched(r, series("EUR/USD", r.Timeframe, 60, 110)))
			}
			if h.q.Len() != 0 {
				t.Errorf("aborted chain must not enqueue further stages")
			}
			if len(h.p.InFlight()) != 0 {
				t.Errorf("scratch must be cleared, got %v", h.p.InFlight())
			}
			if h.p.Pending().Len() != 0 || len(h.scorer.calls) != 0 {
				t.Errorf("no scoring or signal on abort")
			}
			if len(h.posts.msgs) != 1 || !strings.Contains(h.posts.msgs[0], "Data source error") {
				t.Errorf("expected an operator alert, got %v", h.posts.msgs)
			}

			h.p.Tick(t0.Add(5 * time.Second))
			if h.q.Len() != 1 {
				t.Errorf("symbol must be scannable again after an abort")
			}
		})
	}
}

func TestPipeline_AbortOnInsufficientHistory(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.p.Tick(t0)
	r := h.pop(t)
	h.p.Handle(t0, fetched(r, series("EUR/USD", model.M15, 10, 110)))
	if h.q.Len() != 0 || len(h.p.InFlight()) != 0 {
		t.Fatal("short history must abort the chain")
	}
	if len(h.posts.msgs) != 0 {
		t.Errorf("insufficient history is not an operator error, got %v", h.posts.msgs)
	}
}

func TestPipeline_ScorerError(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.scorer.err = errDown
	h.detect(t, t0, model.Scores{})
	if h.p.Pending().Len() != 0 || len(h.p.InFlight()) != 0 {
		t.Fatal("scoring failure must end the chain without a signal")
	}
}

func TestPipeline_IdleWhenStopped(t *testing.T) {
	h := newHarness(t, "EUR/USD")
	h.settings.s.Running = false
	h.p.Tick(t0)
	if h.q.Len() != 0 {
		t.Fatal("stopped scheduler must not enqueue")
	}

	h.settings.s.Running = true
	h.settings.s.Symbols = nil
	h.p.Tick(t0)
	if h.q.Len() != 0 || h.p.Cursor() != 0 {
		t.Fatal("empty symbol list must be a no-op")
	}
}

func TestPipeline_CursorWrapsWhenSymbolsShrink(t *testing.T) {
	h := newHarness(t, "EUR/USD", "USD/JPY", "GBP/USD")
	h.p.Tick(t0)
	h.p.Tick(t0.Add(5 * time.Second))
	h.q.Pop()
	h.q.Pop()
	delete(h.p.scratch, "EUR/USD")
	delete(h.p.scratch, "USD/JPY")

	h.settings.s.Symbols = []string{"EUR/USD"}
	h.p.Tick(t0.Add(10 * time.Second))
	if r := h.pop(t); r.Symbol != "EUR/USD" {
		t.Errorf("expected wrap to EUR/USD, got %s", r.Symbol)
	}
}

func TestPipeline_QueueGrowsWhenDispatchStalls(t *testing.T) {
	// The scheduler keeps producing while nothing is dispatched; only dedup
	// bounds the backlog, to one chain per symbol plus confirmations.
	symbols := make([]string, 20)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%02d/USD", i)
	}
	h := newHarness(t, symbols...)
	for i := 0; i < 100; i++ {
		h.p.Tick(t0.Add(time.Duration(i) * 5 * time.Second))
	}
	if h.q.Len() != len(symbols) {
		t.Errorf("expected one queued chain per symbol, got %d", h.q.Len())
	}
}
