package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PairSentinel/internal/collector"
	"PairSentinel/internal/config"
	"PairSentinel/internal/engine"
	"PairSentinel/internal/governor"
	"PairSentinel/internal/health"
	"PairSentinel/internal/logger"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/pipeline"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/scheduler"
	"PairSentinel/internal/state"
	"PairSentinel/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	closer, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}
	defer closer.Close()
	log.Info().Str("config", cfgPath).Msg("PairSentinel starting")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// State: persisted snapshot, then the initial profile, then built-in defaults
	store := openStateStore(cfg)
	defer store.Close()
	lookbacks := config.Lookbacks{Trend: cfg.Pipeline.TrendLookback, Signal: cfg.Pipeline.SignalLookback}
	initial, counts := restoreState(ctx, store, cfg.State.ProfilesDir, cfg.State.InitialProfile, lookbacks)

	settings := config.NewStore(initial, cfg.State.ProfilesDir)
	settings.SetLookbacks(lookbacks)
	stats := state.NewStatistics()
	stats.Restore(counts)
	persister := state.NewPersister(store, settings, stats)
	persister.Persist()
	saver := state.NewAsyncPersister(persister)
	saverDone := make(chan struct{})
	go func() {
		saver.Run(ctx)
		close(saverDone)
	}()

	// Data source
	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mr := metrics.New(reg)

	// Notifications
	var (
		sender notifier.Sender = notifier.LogSender{}
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Warn().Msg("telegram.bot_token not set, notifications go to the log")
	}
	outbox := notifier.NewOutbox(sender, cfg.Telegram.OutboxSize, cfg.Telegram.Retries)
	go outbox.Run(ctx)

	// Core: governor, pipeline, engine
	gov := governor.New(cfg.Governor.MaxCalls, cfg.Governor.Window)
	pipe := pipeline.New(pipeline.Config{
		TrendLookback:  cfg.Pipeline.TrendLookback,
		SignalLookback: cfg.Pipeline.SignalLookback,
		StaleAfter:     cfg.Pipeline.StaleAfter,
		NotifyErrors:   cfg.Telegram.NotifyErrors,
	}, pipeline.Deps{
		Queue:     gov.Queue(),
		Settings:  settings,
		Scorer:    strategy.NewEngine(),
		Stats:     stats,
		Persister: saver,
		Notifier:  outbox,
		Recorder:  rec,
		Metrics:   mr,
	})
	eng := engine.New(engine.Config{
		FetchTimeout: cfg.DataSource.Timeout,
		Workers:      cfg.DataSource.Workers,
	}, gov, pipe, fetcher, settings, rec, mr)

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, settings, stats, saver, outbox)
	if err := sched.RegisterAll(cfg.Governor.Tick, cfg.Schedule.ReportCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	srv := health.NewServer(cfg.HTTP.Addr, eng, reg)
	srv.Start()

	log.Info().
		Bool("running", initial.Running).
		Strs("symbols", initial.Symbols).
		Str("profile", initial.ProfileName).
		Msg("PairSentinel is running, press Ctrl+C to stop")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	sched.Stop()
	cancel()
	<-engineDone
	<-saverDone

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	persister.Persist()
	log.Info().Msg("PairSentinel stopped")
}

func openStateStore(cfg *config.Config) state.Store {
	if cfg.State.Backend == "redis" {
		rs, err := state.NewRedisStore(state.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err == nil {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("state stored in redis")
			return rs
		}
		log.Warn().Err(err).Str("file", cfg.State.File).Msg("redis unavailable, falling back to state file")
	}
	return state.NewFileStore(cfg.State.File)
}

func restoreState(ctx context.Context, store state.Store, profilesDir, profile string, lb config.Lookbacks) (model.Settings, map[string]model.SymbolStatistics) {
	st, err := store.Load(ctx)
	switch {
	case err == nil:
		verr := config.ValidateSettingsFor(st.Settings, lb)
		if verr == nil {
			log.Info().Time("saved_at", st.UpdatedAt).Msg("state restored")
			return st.Settings, st.Statistics
		}
		log.Warn().Err(verr).Msg("saved settings invalid, loading profile")
	case errors.Is(err, state.ErrNoState):
		log.Warn().Str("profile", profile).Msg("no saved state, loading profile")
	default:
		log.Warn().Err(err).Str("profile", profile).Msg("load state failed, loading profile")
	}

	var counts map[string]model.SymbolStatistics
	if st != nil {
		counts = st.Statistics
	}
	s, err := config.ReadProfile(profilesDir, profile, lb)
	if err != nil {
		log.Error().Err(err).Msg("load profile failed, using built-in defaults")
		return model.DefaultSettings(), counts
	}
	return s, counts
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	ds := cfg.DataSource
	switch ds.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy, ds.Timeout)
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, ds.Timeout)
	case "mock":
		return &collector.MockFetcher{Price: 1.085}
	default:
		if ds.APIKey == "" {
			log.Warn().Msg("data_source.api_key not set, every polygon fetch will fail until it is configured")
		}
		return collector.NewPolygonFetcher(ds.APIKey, ds.Timeout)
	}
}
