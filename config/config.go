package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Poller     PollerConfig     `yaml:"poller"`
	Samp       SampConfig       `yaml:"samp"`
	WorldsAPI  WorldsAPIConfig  `yaml:"worlds_api"`
	Roster     RosterConfig     `yaml:"roster"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
// The DSN decides the driver: "postgres://" or "host=" selects Postgres,
// anything else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PollerConfig drives the presence polling cadence for both entity kinds.
type PollerConfig struct {
	DelaySeconds        int           `yaml:"delay_seconds"`
	QueryTimeoutSeconds int           `yaml:"query_timeout_seconds"`
	Delay               time.Duration `yaml:"-"`
	QueryTimeout        time.Duration `yaml:"-"`
}

// SampConfig points at the game server queried for player presence.
type SampConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WorldsAPIConfig points at the worlds HTTP API.
type WorldsAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Login   string `yaml:"login"`
	Token   string `yaml:"token"`
}

// RosterConfig points at the player roster API. The roster is a full
// paginated account dump (registration dates, last logins, warns) refreshed
// on a slow cadence, unlike the per-minute presence polls.
type RosterConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	Timezone     string        `yaml:"timezone"`
	IntervalDays int           `yaml:"interval_days"`
	Interval     time.Duration `yaml:"-"`
}

// SessionsConfig holds the suspension thresholds per entity kind.
type SessionsConfig struct {
	PlayerThresholdSeconds int           `yaml:"player_threshold_seconds"`
	WorldThresholdSeconds  int           `yaml:"world_threshold_seconds"`
	PlayerThreshold        time.Duration `yaml:"-"`
	WorldThreshold         time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// TelegramConfig holds the digest delivery settings.
type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
	Timezone  string `yaml:"timezone"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "data/presence.db"
	}

	if cfg.Poller.DelaySeconds <= 0 {
		cfg.Poller.DelaySeconds = 60
	}
	if cfg.Poller.QueryTimeoutSeconds <= 0 {
		cfg.Poller.QueryTimeoutSeconds = 10
	}
	cfg.Poller.Delay = time.Duration(cfg.Poller.DelaySeconds) * time.Second
	cfg.Poller.QueryTimeout = time.Duration(cfg.Poller.QueryTimeoutSeconds) * time.Second

	if cfg.Samp.Port <= 0 {
		cfg.Samp.Port = 7777
	}

	if cfg.Roster.Timezone == "" {
		// The roster API reports wall-clock timestamps in the game server's
		// local zone.
		cfg.Roster.Timezone = "Europe/Moscow"
	}
	if cfg.Roster.IntervalDays <= 0 {
		cfg.Roster.IntervalDays = 7
	}
	cfg.Roster.Interval = time.Duration(cfg.Roster.IntervalDays) * 24 * time.Hour
	if cfg.Roster.Enabled && cfg.Roster.BaseURL == "" {
		return nil, fmt.Errorf("roster collection is enabled but base_url is missing")
	}

	if cfg.Sessions.PlayerThresholdSeconds <= 0 {
		cfg.Sessions.PlayerThresholdSeconds = 2700
	}
	if cfg.Sessions.WorldThresholdSeconds <= 0 {
		cfg.Sessions.WorldThresholdSeconds = 1800
	}
	cfg.Sessions.PlayerThreshold = time.Duration(cfg.Sessions.PlayerThresholdSeconds) * time.Second
	cfg.Sessions.WorldThreshold = time.Duration(cfg.Sessions.WorldThresholdSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Telegram.Timezone == "" {
		cfg.Telegram.Timezone = "UTC"
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChannelID == "") {
		return nil, fmt.Errorf("telegram is enabled but bot_token or channel_id is missing")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}
