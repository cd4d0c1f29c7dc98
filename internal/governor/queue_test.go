package governor

import (
	"testing"

	"PairSentinel/internal/model"

	"github.com/google/uuid"
)

func TestQueue_FIFOAndTags(t *testing.T) {
	q := NewQueue()
	a := q.Enqueue(Request{Symbol: "EUR/USD", Stage: model.StageTrendM15, Tag: AnalysisTag("EUR/USD")})
	q.Enqueue(Request{Symbol: "USD/JPY", Stage: model.StageConfirm})
	q.Enqueue(Request{Symbol: "EUR/USD", Stage: model.StageTrendH1, Tag: AnalysisTag("EUR/USD")})

	if a.ID == uuid.Nil {
		t.Fatal("expected an assigned request ID")
	}
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", q.Len())
	}
	if !q.HasTag(AnalysisTag("EUR/USD")) || q.HasTag(AnalysisTag("USD/JPY")) {
		t.Fatal("unexpected tag index state")
	}

	want := []model.Stage{model.StageTrendM15, model.StageConfirm, model.StageTrendH1}
	for i, st := range want {
		r, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if r.Stage != st {
			t.Errorf("pop %d: expected stage %s, got %s", i, st, r.Stage)
		}
		if i == 0 && !q.HasTag(AnalysisTag("EUR/USD")) {
			t.Error("tag must remain while a second tagged entry is queued")
		}
	}
	if q.HasTag(AnalysisTag("EUR/USD")) {
		t.Error("tag must be cleared once no tagged entry is queued")
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueue_CompactsAfterManyPops(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 500; i++ {
		q.Enqueue(Request{Lookback: i})
	}
	for i := 0; i < 400; i++ {
		r, _ := q.Pop()
		if r.Lookback != i {
			t.Fatalf("pop %d: got lookback %d", i, r.Lookback)
		}
	}
	q.Enqueue(Request{Lookback: 500})
	snap := q.Snapshot()
	if len(snap) != 101 || snap[0].Lookback != 400 || snap[100].Lookback != 500 {
		t.Fatalf("unexpected snapshot: len=%d", len(snap))
	}
}
