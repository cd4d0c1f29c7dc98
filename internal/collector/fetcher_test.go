package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"PairSentinel/internal/model"
)

func TestSplitPair(t *testing.T) {
	tests := []struct {
		in          string
		base, quote string
		ok          bool
	}{
		{"EUR/USD", "EUR", "USD", true},
		{"usdjpy", "USD", "JPY", true},
		{" GBP/USD ", "GBP", "USD", true},
		{"BTC", "", "", false},
		{"/USD", "", "USD", false},
	}
	for _, tt := range tests {
		base, quote, ok := splitPair(tt.in)
		if ok != tt.ok || (ok && (base != tt.base || quote != tt.quote)) {
			t.Errorf("splitPair(%q) = %q, %q, %v", tt.in, base, quote, ok)
		}
	}
}

func TestPolygonTicker(t *testing.T) {
	got, err := PolygonTicker("EUR/USD")
	if err != nil || got != "C:EURUSD" {
		t.Errorf("expected C:EURUSD, got %q (%v)", got, err)
	}
	if _, err := PolygonTicker("SPX500"); err == nil {
		t.Error("expected error for non-pair symbol")
	}
}

func TestPolygonFetcher_MissingKey(t *testing.T) {
	f := NewPolygonFetcher("", time.Second)
	_, err := f.Fetch(context.Background(), "EUR/USD", model.M5, 200)
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestPolygonFetcher_SingleRequestOnFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		// drop the connection so the client sees a transport error
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	f := NewPolygonFetcher("KEY", 5*time.Second)
	f.rest.AggsClient.HTTP.SetBaseURL(srv.URL)
	f.now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }

	_, err := f.Fetch(context.Background(), "EUR/USD", model.M15, 150)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
}

func TestPolygonFetcher_Bars(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","resultsCount":3,"results":[
			{"o":1.08,"h":1.09,"l":1.07,"c":1.085,"v":10,"t":1740992400000},
			{"o":1.085,"h":1.1,"l":1.08,"c":1.09,"v":12,"t":1740993300000},
			{"o":1.09,"h":1.095,"l":1.085,"c":1.088,"v":9,"t":1740994200000}]}`))
	}))
	defer srv.Close()

	f := NewPolygonFetcher("KEY", 5*time.Second)
	f.rest.AggsClient.HTTP.SetBaseURL(srv.URL)

	s, err := f.Fetch(context.Background(), "EUR/USD", model.M15, 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if s.Len() != 2 || s.Bars[1].Close != 1.088 {
		t.Errorf("bars = %+v", s.Bars)
	}
	if !strings.HasPrefix(path, "/v2/aggs/ticker/C:EURUSD/range/15/minute/") {
		t.Errorf("path = %s", path)
	}
}

func TestPolygonSpan(t *testing.T) {
	if _, mult, _, err := polygonSpan(model.M15); err != nil || mult != 15 {
		t.Errorf("M15: mult=%d err=%v", mult, err)
	}
	if span, mult, _, err := polygonSpan(model.H1); err != nil || mult != 1 || span != "hour" {
		t.Errorf("H1: span=%s mult=%d err=%v", span, mult, err)
	}
	if _, _, _, err := polygonSpan("D1"); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
}

func TestYahooFetcher(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[3,1,2,4],
			"indicators":{"quote":[{
				"open":[1.3,1.1,1.2,null],"high":[1.4,1.2,1.3,null],
				"low":[1.2,1.0,1.1,null],"close":[1.35,1.15,1.25,null],"volume":[0,0,0,null]}]}}]}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL
	s, err := f.Fetch(context.Background(), "EUR/USD", model.M15, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/v8/finance/chart/EURUSD=X" || gotQuery != "interval=15m&range=5d" {
		t.Errorf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if s.Len() != 2 || s.Bars[0].Close != 1.25 || s.Bars[1].Close != 1.35 {
		t.Errorf("expected the two most recent bars in order, got %+v", s.Bars)
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v8/finance/chart/USDJPY=X" {
			w.Write([]byte(`{"chart":{"result":[]}}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL
	if _, err := f.Fetch(context.Background(), "EUR/USD", model.M5, 200); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), "USD/JPY", model.M5, 200); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("timeframe") != "H1" || r.URL.Query().Get("limit") != "150" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"timestamp":20,"open":1,"high":2,"low":0.5,"close":1.5},
			{"timestamp":10,"open":1,"high":2,"low":0.5,"close":1.2}]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "key", "", time.Second)
	s, err := f.Fetch(context.Background(), "EUR/USD", model.H1, 150)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Len() != 2 || s.Bars[0].Close != 1.2 {
		t.Errorf("expected chronological bars, got %+v", s.Bars)
	}

	bad := NewRESTFetcher(srv.URL, "", "", time.Second)
	if _, err := bad.Fetch(context.Background(), "EUR/USD", model.H1, 150); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if _, err := NewRESTFetcher("", "", "", time.Second).Fetch(context.Background(), "EUR/USD", model.H1, 1); !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestMockFetcher(t *testing.T) {
	m := &MockFetcher{Price: 1.1}
	s, err := m.Fetch(context.Background(), "EUR/USD", model.M5, 200)
	if err != nil || s.Len() != 200 {
		t.Fatalf("expected 200 generated bars, got %d (%v)", s.Len(), err)
	}

	m.Set("EUR/USD", model.H1, []model.OHLCV{{Close: 1}, {Close: 2}, {Close: 3}})
	s, _ = m.Fetch(context.Background(), "EUR/USD", model.H1, 2)
	if s.Len() != 2 || s.Bars[0].Close != 2 {
		t.Errorf("expected trailing bars, got %+v", s.Bars)
	}

	m.Err = ErrNoData
	if _, err := m.Fetch(context.Background(), "EUR/USD", model.M5, 10); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected configured error, got %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", m.Calls())
	}
}
