package governor

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func TestRateWindow_CapacityAndPrune(t *testing.T) {
	w := NewRateWindow(2, time.Minute)
	if err := w.Record(at(0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Record(at(10)); err != nil {
		t.Fatal(err)
	}
	if w.Available() {
		t.Fatal("window should be full")
	}
	if err := w.Record(at(11)); !errors.Is(err, ErrWindowFull) {
		t.Fatalf("expected ErrWindowFull, got %v", err)
	}

	w.Prune(at(59))
	if w.Len() != 2 {
		t.Fatalf("nothing should age out before 60s, len=%d", w.Len())
	}
	w.Prune(at(60))
	if w.Len() != 1 {
		t.Fatalf("entry recorded at 0 must age out at 60, len=%d", w.Len())
	}
	w.Prune(at(200))
	if w.Len() != 0 {
		t.Fatalf("expected empty window, len=%d", w.Len())
	}
}
