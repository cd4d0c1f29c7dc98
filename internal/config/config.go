package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"PairSentinel/internal/model"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config holds all static application configuration.
type Config struct {
	Telegram struct {
		BotToken     string `yaml:"bot_token"`
		ChatID       string `yaml:"chat_id" validate:"required_with=BotToken"`
		NotifyErrors bool   `yaml:"notify_errors"`
		Retries      int    `yaml:"retries" default:"3" validate:"gte=1,lte=10"`
		OutboxSize   int    `yaml:"outbox_size" default:"64" validate:"gte=1"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider string        `yaml:"provider" default:"polygon" validate:"oneof=polygon yahoo rest mock"`
		APIKey   string        `yaml:"api_key"`
		BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
		Timeout  time.Duration `yaml:"timeout" default:"20s" validate:"gte=1s"`
		Workers  int           `yaml:"workers" default:"4" validate:"gte=1,lte=32"`
	} `yaml:"data_source"`
	Governor struct {
		MaxCalls int           `yaml:"max_calls" default:"4" validate:"gte=1"`
		Window   time.Duration `yaml:"window" default:"60s" validate:"gte=1s"`
		Tick     time.Duration `yaml:"tick" default:"1s" validate:"gte=1s"`
	} `yaml:"governor"`
	Pipeline struct {
		TrendLookback  int           `yaml:"trend_lookback" default:"150" validate:"gte=1"`
		SignalLookback int           `yaml:"signal_lookback" default:"200" validate:"gte=1"`
		StaleAfter     time.Duration `yaml:"stale_after" default:"2m" validate:"gte=1s"`
	} `yaml:"pipeline"`
	Schedule struct {
		ReportCron string `yaml:"report_cron" default:"0 0 21 * * 1-5"`
	} `yaml:"schedule"`
	State struct {
		Backend        string `yaml:"backend" default:"file" validate:"oneof=file redis"`
		File           string `yaml:"file" default:"data/state.json"`
		ProfilesDir    string `yaml:"profiles_dir" default:"strategies"`
		InitialProfile string `yaml:"initial_profile" default:"default"`
	} `yaml:"state"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		Prefix   string `yaml:"prefix" default:"pairsentinel"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/pair_sentinel.db"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr" default:":10000"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env and the YAML file, applies environment overrides and
// defaults, then validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Addr = ":" + v
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// A missing polygon key is not fatal: every fetch reports it until set.
	if c.DataSource.Provider == "rest" && c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required for rest")
	}
	if c.Governor.Tick >= c.Governor.Window {
		return fmt.Errorf("governor.tick must be shorter than governor.window")
	}
	lb := Lookbacks{Trend: c.Pipeline.TrendLookback, Signal: c.Pipeline.SignalLookback}
	if err := ValidateSettingsFor(model.DefaultSettings(), lb); err != nil {
		return fmt.Errorf("pipeline lookbacks too short for the default indicators: %w", err)
	}
	if c.State.Backend == "file" && c.State.File == "" {
		return fmt.Errorf("state.file is required for the file backend")
	}
	return nil
}
