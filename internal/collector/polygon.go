package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"PairSentinel/internal/model"

	polygonrest "github.com/polygon-io/client-go/rest"
	rmodels "github.com/polygon-io/client-go/rest/models"
)

// PolygonFetcher implements Fetcher using Polygon forex aggregates.
type PolygonFetcher struct {
	apiKey string
	rest   *polygonrest.Client
	now    func() time.Time
}

// NewPolygonFetcher creates a fetcher. An empty key yields a fetcher that
// fails every call with ErrConfigurationMissing.
func NewPolygonFetcher(apiKey string, timeout time.Duration) *PolygonFetcher {
	f := &PolygonFetcher{apiKey: apiKey, now: time.Now}
	if apiKey != "" {
		f.rest = polygonrest.NewWithClient(apiKey, &http.Client{Timeout: timeout})
		// One dispatch is one request: the client's own retries would spend
		// budget the governor never counted.
		f.rest.AggsClient.HTTP.SetRetryCount(0)
		f.rest.AggsClient.HTTP.SetTimeout(timeout)
	}
	return f
}

func (f *PolygonFetcher) Name() string { return "polygon" }

// PolygonTicker maps "EUR/USD" to "C:EURUSD".
func PolygonTicker(symbol string) (string, error) {
	base, quote, ok := splitPair(symbol)
	if !ok {
		return "", fmt.Errorf("unsupported symbol %q", symbol)
	}
	return "C:" + base + quote, nil
}

// polygonSpan returns the aggregate unit for tf and the calendar slack added
// to the lookback window to cover weekends and holidays.
func polygonSpan(tf model.Timeframe) (rmodels.Timespan, int, time.Duration, error) {
	switch tf {
	case model.M5:
		return rmodels.Minute, 5, 5 * 24 * time.Hour, nil
	case model.M15:
		return rmodels.Minute, 15, 5 * 24 * time.Hour, nil
	case model.H1:
		return rmodels.Hour, 1, 10 * 24 * time.Hour, nil
	}
	return "", 0, 0, fmt.Errorf("unsupported timeframe %q", tf)
}

func (f *PolygonFetcher) Fetch(ctx context.Context, symbol string, tf model.Timeframe, lookback int) (model.Series, error) {
	out := model.Series{Symbol: symbol, Timeframe: tf}
	if f.rest == nil {
		return out, ErrConfigurationMissing
	}
	ticker, err := PolygonTicker(symbol)
	if err != nil {
		return out, unavailable("polygon", err)
	}
	span, mult, slack, err := polygonSpan(tf)
	if err != nil {
		return out, unavailable("polygon", err)
	}

	to := f.now().UTC()
	from := to.Add(-tf.Duration()*time.Duration(lookback) - slack)
	params := &rmodels.ListAggsParams{
		Ticker:     ticker,
		Timespan:   span,
		Multiplier: mult,
		From:       rmodels.Millis(from),
		To:         rmodels.Millis(to),
	}
	lim := 50000
	asc := rmodels.Asc
	adj := true
	params.Limit = &lim
	params.Order = &asc
	params.Adjusted = &adj

	iter := f.rest.ListAggs(ctx, params)
	var bars []model.OHLCV
	for iter.Next() {
		a := iter.Item()
		bars = append(bars, model.OHLCV{
			Time:   time.Time(a.Timestamp).UTC(),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return out, unavailable("polygon", err)
	}
	if len(bars) == 0 {
		return out, ErrNoData
	}
	out.Bars = trimTail(bars, lookback)
	return out, nil
}
