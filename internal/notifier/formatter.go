package notifier

import (
	"fmt"
	"strings"
	"time"

	"PairSentinel/internal/model"
	"PairSentinel/internal/state"
)

const timeLayout = "2006-01-02 15:04:05"

func directionIcon(d model.Direction) string {
	if d == model.Buy {
		return "🟢"
	}
	return "🔴"
}

// FormatDetected formats an initial signal.
func FormatDetected(sig model.PendingSignal, delay time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>Initial signal: %s %s</b>\n\n", directionIcon(sig.Direction), sig.Direction, sig.Symbol))
	b.WriteString(fmt.Sprintf("Confidence: %d\n", sig.Confidence))
	b.WriteString(fmt.Sprintf("Trend M15: %s | H1: %s\n", sig.TrendM15, sig.TrendH1))
	b.WriteString(fmt.Sprintf("Detected: %s\n", sig.CreatedAt.UTC().Format(timeLayout)))
	b.WriteString(fmt.Sprintf("\n⏳ Confirmation in %s.", delay))
	return b.String()
}

// FormatConfirmed formats a confirmed signal.
func FormatConfirmed(sig model.PendingSignal, scores model.Scores, now time.Time) string {
	winner := scores.Buy
	if sig.Direction == model.Sell {
		winner = scores.Sell
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ <b>Confirmed signal: %s %s</b>\n\n", sig.Direction, sig.Symbol))
	b.WriteString(fmt.Sprintf("Confidence: %d (initial %d)\n", winner, sig.Confidence))
	b.WriteString(fmt.Sprintf("Scores: buy %d / sell %d\n", scores.Buy, scores.Sell))
	b.WriteString(fmt.Sprintf("Waited: %s\n", sig.Age(now).Round(time.Second)))
	return b.String()
}

// FormatStatistics formats the per-symbol signal report.
func FormatStatistics(counts map[string]model.SymbolStatistics, symbols []string) string {
	var b strings.Builder
	b.WriteString("📊 <b>Signal statistics</b>\n\n")
	if len(symbols) == 0 {
		b.WriteString("No signals recorded yet.\n")
		return b.String()
	}
	for _, sym := range symbols {
		c := counts[sym]
		b.WriteString(fmt.Sprintf("🔹 <b>%s</b>: initial %d, confirmed %d, failed %d\n",
			sym, c.Initial, c.Confirmed, c.FailedConfirmation))
	}
	t := state.Totals(counts)
	b.WriteString("\n<b>Totals</b>\n")
	b.WriteString(fmt.Sprintf("Initial: %d\nConfirmed: %d\nFailed: %d\n", t.Initial, t.Confirmed, t.FailedConfirmation))
	if t.Initial > 0 {
		b.WriteString(fmt.Sprintf("Success rate: %.1f%%\n", state.SuccessRate(t)))
	}
	return b.String()
}

// FormatSettings renders every runtime knob.
func FormatSettings(s model.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Settings</b>\n\n")
	running := "stopped"
	if s.Running {
		running = "running"
	}
	b.WriteString(fmt.Sprintf("State: %s\n", running))
	b.WriteString(fmt.Sprintf("Profile: %s\n", s.ProfileName))
	symbols := "none"
	if len(s.Symbols) > 0 {
		symbols = strings.Join(s.Symbols, ", ")
	}
	b.WriteString(fmt.Sprintf("Symbols: %s\n", symbols))
	b.WriteString(fmt.Sprintf("Scan interval: %s\n", s.ScanInterval))
	b.WriteString(fmt.Sprintf("Confirmation delay: %s\n", s.ConfirmationDelay))
	b.WriteString(fmt.Sprintf("Confidence: initial %d / confirm %d\n", s.InitialConfidence, s.ConfirmationConfidence))
	b.WriteString(fmt.Sprintf("Trend filter: %s\n", s.TrendFilter))
	b.WriteString(fmt.Sprintf("MACD strategy: %s\n", s.MACDStrategy))
	b.WriteString("\n<b>Indicator parameters</b>\n")
	for _, p := range s.Indicators.Named() {
		b.WriteString(fmt.Sprintf("  %s: %d\n", p.Name, *p.Value))
	}
	return b.String()
}

// FormatStatus formats the scheduler status.
func FormatStatus(st model.Status, now time.Time) string {
	var b strings.Builder
	running := "⏸ stopped"
	if st.Running {
		running = "▶️ running"
	}
	b.WriteString(fmt.Sprintf("🤖 <b>Status</b>: %s\n\n", running))
	b.WriteString(fmt.Sprintf("Profile: %s\n", st.Profile))
	b.WriteString(fmt.Sprintf("Symbols: %d\n", len(st.Symbols)))
	b.WriteString(fmt.Sprintf("Queue: %d | Rate window: %d/%d\n", st.QueueDepth, st.WindowUsed, st.WindowLimit))
	b.WriteString(fmt.Sprintf("Pending signals: %d\n", st.Pending))
	if len(st.InFlight) > 0 {
		b.WriteString(fmt.Sprintf("In flight: %s\n", strings.Join(st.InFlight, ", ")))
	}
	b.WriteString(fmt.Sprintf("Dispatched: %d\n", st.Dispatched))
	if !st.StartedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Uptime: %s\n", now.Sub(st.StartedAt).Round(time.Second)))
	}
	return b.String()
}

// FormatFetchError formats an operator alert for a failed data-source call.
func FormatFetchError(symbol string, tf model.Timeframe, err error) string {
	return fmt.Sprintf("⚠️ <b>Data source error</b>\n%s %s: %v", symbol, tf, err)
}
