package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairSentinel/internal/model"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/state"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Engine is the event loop driven by the cron jobs.
type Engine interface {
	GovernorTick(now time.Time)
	LogicTick(now time.Time)
	ResetCursor(ctx context.Context) error
	Status() model.Status
}

// SettingsStore owns the runtime settings.
type SettingsStore interface {
	Get() model.Settings
	Update(fn func(*model.Settings) error) error
	LoadProfile(name string) error
	Profiles() ([]string, error)
}

// Poster accepts a message for best-effort delivery.
type Poster interface {
	Post(text string)
}

// Persister saves settings and statistics.
type Persister interface {
	Persist() bool
}

// Scheduler manages the cron jobs and the operator commands.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   Engine
	Settings SettingsStore
	Stats    *state.Statistics
	Persist  Persister
	Notifier Poster
	Ctx      context.Context

	mu       sync.Mutex
	logicID  cron.EntryID
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, eng Engine, settings SettingsStore, stats *state.Statistics, p Persister, n Poster) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{}))),
		Engine:   eng,
		Settings: settings,
		Stats:    stats,
		Persist:  p,
		Notifier: n,
		Ctx:      ctx,
		now:      time.Now,
	}
}

// RegisterAll registers the governor tick, the logic tick and the statistics
// report. An empty reportCron disables the report.
func (s *Scheduler) RegisterAll(governorTick time.Duration, reportCron string) error {
	if _, err := s.Cron.AddFunc(every(governorTick), func() {
		s.Engine.GovernorTick(s.now())
	}); err != nil {
		return fmt.Errorf("register governor tick: %w", err)
	}
	if err := s.scheduleLogic(s.Settings.Get().ScanInterval); err != nil {
		return err
	}
	if reportCron != "" {
		if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
			return fmt.Errorf("register report task: %w", err)
		}
	}
	return nil
}

// scheduleLogic (re)registers the logic tick when the scan interval changed.
func (s *Scheduler) scheduleLogic(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logicID != 0 && interval == s.interval {
		return nil
	}
	id, err := s.Cron.AddFunc(every(interval), func() {
		s.Engine.LogicTick(s.now())
	})
	if err != nil {
		return fmt.Errorf("register logic tick: %w", err)
	}
	if s.logicID != 0 {
		s.Cron.Remove(s.logicID)
	}
	s.logicID = id
	s.interval = interval
	log.Info().Dur("interval", interval).Msg("logic tick scheduled")
	return nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) reportTask() {
	log.Info().Msg("running statistics report")
	s.Notifier.Post(s.statistics())
}

func (s *Scheduler) statistics() string {
	return notifier.FormatStatistics(s.Stats.Snapshot(), s.Stats.Symbols())
}

// cronLogger routes cron's recovered panics to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
