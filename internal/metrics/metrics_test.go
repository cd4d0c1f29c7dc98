package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Dispatch("trend_m15")
	r.Dispatch("trend_m15")
	r.Signal("EUR/USD", "DETECTED", "BUY")
	r.Governor(7, 3)

	if got := testutil.ToFloat64(r.dispatches.WithLabelValues("trend_m15")); got != 2 {
		t.Errorf("expected 2 dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(r.queueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %v", got)
	}
	if got := testutil.ToFloat64(r.windowUsed); got != 3 {
		t.Errorf("expected window 3, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "pairsentinel_signals_total"); err != nil || n != 1 {
		t.Errorf("expected one signal series, got %d (%v)", n, err)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Dispatch("confirm")
	r.FetchFailure("confirm", "timeout")
	r.FetchDuration("M5", 0.2)
	r.Governor(1, 1)
	r.Pending(1)
	r.Signal("EUR/USD", "FAILED", "SELL")
	r.Abort("trend_h1", "no_data")
}
