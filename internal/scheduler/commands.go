package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PairSentinel/internal/model"
	"PairSentinel/internal/notifier"

	"github.com/rs/zerolog/log"
)

const helpText = `Available commands:
/status - scheduler status
/stats - signal statistics
/settings - current settings
/run - start scanning
/stop - stop scanning
/pair SYMBOL - add or remove a pair
/trend NONE|M15|H1|M15_H1 - trend filter
/macd gated|ungated - MACD strategy
/confidence initial|confirm N - score thresholds
/param NAME N - indicator parameter
/profile [NAME] - list or load strategy profiles`

var errNoSymbols = errors.New("no pairs selected, add one with /pair first")

// HandleCommand processes an operator command and returns the reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name := strings.ToLower(fields[0])
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	args := fields[1:]
	log.Debug().Str("command", name).Strs("args", args).Msg("operator command")

	switch name {
	case "/status":
		return notifier.FormatStatus(s.Engine.Status(), s.now())
	case "/stats":
		return s.statistics()
	case "/settings":
		return notifier.FormatSettings(s.Settings.Get())
	case "/run":
		return s.mutate("▶️ Scanning started.", func(cur *model.Settings) error {
			if len(cur.Symbols) == 0 {
				return errNoSymbols
			}
			cur.Running = true
			return nil
		})
	case "/stop":
		reply := s.mutate("⏸ Scanning stopped.", func(cur *model.Settings) error {
			cur.Running = false
			return nil
		})
		s.resetCursor()
		return reply
	case "/pair":
		return s.togglePair(args)
	case "/trend":
		if len(args) != 1 {
			return "Usage: /trend NONE|M15|H1|M15_H1"
		}
		mode := model.TrendFilter(strings.ToUpper(args[0]))
		if !mode.Valid() {
			return fmt.Sprintf("Unknown trend filter %q.", args[0])
		}
		return s.mutate("Trend filter set to "+string(mode)+".", func(cur *model.Settings) error {
			cur.TrendFilter = mode
			return nil
		})
	case "/macd":
		if len(args) != 1 {
			return "Usage: /macd gated|ungated"
		}
		strategy := model.MACDStrategy(strings.ToLower(args[0]))
		if !strategy.Valid() {
			return fmt.Sprintf("Unknown MACD strategy %q.", args[0])
		}
		return s.mutate("MACD strategy set to "+string(strategy)+".", func(cur *model.Settings) error {
			cur.MACDStrategy = strategy
			return nil
		})
	case "/confidence":
		return s.setConfidence(args)
	case "/param":
		return s.setParam(args)
	case "/profile":
		return s.profile(args)
	default:
		return helpText
	}
}

// mutate applies fn, persists on success and returns ok or the error text.
func (s *Scheduler) mutate(ok string, fn func(*model.Settings) error) string {
	if err := s.Settings.Update(fn); err != nil {
		return "❌ " + err.Error()
	}
	s.Persist.Persist()
	return ok
}

func (s *Scheduler) resetCursor() {
	ctx, cancel := context.WithTimeout(s.Ctx, 5*time.Second)
	defer cancel()
	if err := s.Engine.ResetCursor(ctx); err != nil {
		log.Warn().Err(err).Msg("reset cursor failed")
	}
}

func (s *Scheduler) togglePair(args []string) string {
	if len(args) != 1 {
		cur := s.Settings.Get().Symbols
		if len(cur) == 0 {
			return "Usage: /pair SYMBOL (no pairs selected)"
		}
		return "Usage: /pair SYMBOL\nSelected: " + strings.Join(cur, ", ")
	}
	sym := strings.ToUpper(args[0])
	var added bool
	reply := s.mutate("", func(cur *model.Settings) error {
		for i, v := range cur.Symbols {
			if v == sym {
				cur.Symbols = append(cur.Symbols[:i], cur.Symbols[i+1:]...)
				return nil
			}
		}
		cur.Symbols = append(cur.Symbols, sym)
		added = true
		return nil
	})
	if reply != "" {
		return reply
	}
	s.resetCursor()
	if added {
		return fmt.Sprintf("✅ %s added.", sym)
	}
	return fmt.Sprintf("➖ %s removed.", sym)
}

func (s *Scheduler) setConfidence(args []string) string {
	const usage = "Usage: /confidence initial|confirm N"
	if len(args) != 2 {
		return usage
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return usage
	}
	switch strings.ToLower(args[0]) {
	case "initial":
		return s.mutate(fmt.Sprintf("Initial confidence set to %d.", n), func(cur *model.Settings) error {
			cur.InitialConfidence = n
			return nil
		})
	case "confirm", "confirmation":
		return s.mutate(fmt.Sprintf("Confirmation confidence set to %d.", n), func(cur *model.Settings) error {
			cur.ConfirmationConfidence = n
			return nil
		})
	default:
		return usage
	}
}

func (s *Scheduler) setParam(args []string) string {
	if len(args) != 2 {
		return "Usage: /param NAME N"
	}
	name := strings.ToLower(args[0])
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Sprintf("%q is not a number.", args[1])
	}
	return s.mutate(fmt.Sprintf("%s set to %d.", name, n), func(cur *model.Settings) error {
		for _, p := range cur.Indicators.Named() {
			if p.Name == name {
				*p.Value = n
				return nil
			}
		}
		return fmt.Errorf("unknown parameter %q", name)
	})
}

func (s *Scheduler) profile(args []string) string {
	if len(args) == 0 {
		names, err := s.Settings.Profiles()
		if err != nil {
			return "❌ " + err.Error()
		}
		if len(names) == 0 {
			return "No strategy profiles found."
		}
		cur := s.Settings.Get().ProfileName
		var b strings.Builder
		b.WriteString("📁 <b>Strategy profiles</b>\n")
		for _, n := range names {
			mark := ""
			if n == cur {
				mark = " ✅"
			}
			b.WriteString("• " + n + mark + "\n")
		}
		b.WriteString("\nLoad one with /profile NAME")
		return b.String()
	}

	if err := s.Settings.LoadProfile(args[0]); err != nil {
		return "❌ " + err.Error()
	}
	s.Persist.Persist()
	settings := s.Settings.Get()
	if err := s.scheduleLogic(settings.ScanInterval); err != nil {
		log.Error().Err(err).Msg("reschedule logic tick failed")
	}
	return fmt.Sprintf("✅ Profile %s loaded.", settings.ProfileName)
}
