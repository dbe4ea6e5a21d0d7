// Package config loads bot settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix   = "STOCKBOT"
	pathEnv     = "STOCKBOT_CONFIG"
	defaultPath = "config.yaml"
	redacted    = "********"
)

// Config holds application configuration
type Config struct {
	Log            LogConfig     `yaml:"log" envconfig:"LOG"`
	DataDir        string        `yaml:"data_dir" envconfig:"DATA_DIR"`
	HTTPPort       int           `yaml:"http_port" envconfig:"HTTP_PORT"`
	Provider       string        `yaml:"provider" envconfig:"PROVIDER"`         // yahoo, yfinance, alpaca
	QuoteSource    string        `yaml:"quote_source" envconfig:"QUOTE_SOURCE"` // "" or sina
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	CommandTimeout time.Duration `yaml:"command_timeout" envconfig:"COMMAND_TIMEOUT"`
	DefaultDays    int           `yaml:"default_days" envconfig:"DEFAULT_DAYS"`
	Yahoo          YahooConfig   `yaml:"yahoo" envconfig:"YAHOO"`
	Alpaca         AlpacaConfig  `yaml:"alpaca" envconfig:"ALPACA"`
	Alert          AlertConfig   `yaml:"alert" envconfig:"ALERT"`
	Dedup          DedupConfig   `yaml:"dedup" envconfig:"DEDUP"`
	Bot            BotConfig     `yaml:"bot" envconfig:"BOT"`
	Backup         BackupConfig  `yaml:"backup" envconfig:"BACKUP"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Pretty bool   `yaml:"pretty" envconfig:"PRETTY"`
}

type YahooConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
}

type AlpacaConfig struct {
	Key     string `yaml:"key" envconfig:"KEY"`
	Secret  string `yaml:"secret" envconfig:"SECRET"`
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
}

type AlertConfig struct {
	Enabled   bool          `yaml:"enabled" envconfig:"ENABLED"`
	Interval  time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Threshold float64       `yaml:"threshold" envconfig:"THRESHOLD"`
}

type DedupConfig struct {
	Cooldown time.Duration `yaml:"cooldown" envconfig:"COOLDOWN"`
}

// BotConfig chat transport settings
type BotConfig struct {
	HotLoginFile string `yaml:"hot_login_file" envconfig:"HOT_LOGIN_FILE"`
	Desktop      bool   `yaml:"desktop" envconfig:"DESKTOP"`
	ChromeRender bool   `yaml:"chrome_render" envconfig:"CHROME_RENDER"`
}

// BackupConfig nightly database upload to S3 compatible storage
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED"`
	Schedule  string `yaml:"schedule" envconfig:"SCHEDULE"`
	Bucket    string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
	Region    string `yaml:"region" envconfig:"REGION"`
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Log:            LogConfig{Level: "info"},
		DataDir:        "./data",
		HTTPPort:       8080,
		Provider:       "yahoo",
		RequestTimeout: 10 * time.Second,
		CommandTimeout: 20 * time.Second,
		DefaultDays:    5,
		Alert: AlertConfig{
			Enabled:   true,
			Interval:  5 * time.Minute,
			Threshold: 0.05,
		},
		Dedup: DedupConfig{Cooldown: 300 * time.Second},
		Bot: BotConfig{
			HotLoginFile: "storage.json",
			Desktop:      true,
			ChromeRender: true,
		},
		Backup: BackupConfig{
			Schedule: "0 0 3 * * *",
			Prefix:   "stockbot/",
			Region:   "us-east-1",
		},
	}
}

// Load reads configuration. A missing default YAML file is fine; a missing
// file named by STOCKBOT_CONFIG is not.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	path, explicit := os.LookupEnv(pathEnv)
	if !explicit || path == "" {
		path, explicit = defaultPath, false
	}
	return load(path, explicit)
}

func load(path string, required bool) (*Config, error) {
	cfg := Default()

	if err := loadYAML(path, cfg); err != nil {
		if required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.QuoteSource = strings.ToLower(strings.TrimSpace(cfg.QuoteSource))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Provider {
	case "yahoo", "yfinance":
	case "alpaca":
		if c.Alpaca.Key == "" || c.Alpaca.Secret == "" {
			return fmt.Errorf("alpaca provider needs %s_ALPACA_KEY and %s_ALPACA_SECRET", envPrefix, envPrefix)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.QuoteSource != "" && c.QuoteSource != "sina" {
		return fmt.Errorf("unknown quote source %q", c.QuoteSource)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if c.DefaultDays <= 0 {
		return fmt.Errorf("default_days must be positive")
	}
	if c.Alert.Enabled && (c.Alert.Interval <= 0 || c.Alert.Threshold <= 0) {
		return fmt.Errorf("alert interval and threshold must be positive")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup is enabled without a bucket")
	}
	return nil
}

// DatabasePath location of the SQLite watchlist database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "stockbot.db")
}

// AlertSchedule cron schedule for the alert job
func (c *Config) AlertSchedule() string {
	return "@every " + c.Alert.Interval.String()
}

// Redacted copy safe to log
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	out.Alpaca.Key = mask(out.Alpaca.Key)
	out.Alpaca.Secret = mask(out.Alpaca.Secret)
	out.Backup.AccessKey = mask(out.Backup.AccessKey)
	out.Backup.SecretKey = mask(out.Backup.SecretKey)
	return out
}
