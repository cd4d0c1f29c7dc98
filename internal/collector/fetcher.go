package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"PairSentinel/internal/model"
)

var (
	// ErrSourceUnavailable covers network, HTTP status and decode failures.
	ErrSourceUnavailable = errors.New("market data source unavailable")
	// ErrNoData is an otherwise successful call that returned no bars.
	ErrNoData = fmt.Errorf("%w: no data returned", ErrSourceUnavailable)
	// ErrConfigurationMissing means the source has no credential.
	ErrConfigurationMissing = errors.New("market data source not configured")
)

// Fetcher retrieves the trailing lookback bars for a symbol. Implementations
// must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, tf model.Timeframe, lookback int) (model.Series, error)
	Name() string
}

// unavailable wraps err as ErrSourceUnavailable.
func unavailable(source string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
}

// splitPair splits "EUR/USD" or "EURUSD" into base and quote.
func splitPair(symbol string) (string, string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if base, quote, ok := strings.Cut(s, "/"); ok {
		return base, quote, base != "" && quote != ""
	}
	if len(s) == 6 {
		return s[:3], s[3:], true
	}
	return "", "", false
}

// trimTail keeps the last n bars.
func trimTail(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
