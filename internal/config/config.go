// Package config loads application configuration from an optional YAML
// file and DK_-prefixed environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/plantops/downtime-keeper/internal/domain"
)

const envPrefix = "DK_"

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// StoreConfig contains spreadsheet record store configuration.
type StoreConfig struct {
	SpreadsheetID     string `koanf:"spreadsheet_id" validate:"required"`
	Worksheet         string `koanf:"worksheet" validate:"required"`
	CredentialsFile   string `koanf:"credentials_file"`
	RequestsPerMinute int    `koanf:"requests_per_minute" validate:"gt=0"`
}

// CacheConfig contains record cache configuration.
type CacheConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"required"`
	MaxAge          time.Duration `koanf:"max_age" validate:"required"`
}

// ReminderConfig contains reminder scanner configuration.
type ReminderConfig struct {
	Interval          time.Duration `koanf:"interval" validate:"required"`
	GroupDelay        time.Duration `koanf:"group_delay" validate:"required"`
	InitiatorDelay    time.Duration `koanf:"initiator_delay" validate:"required"`
	PerRequestTimeout time.Duration `koanf:"per_request_timeout"`
}

// TelegramConfig contains the chat sender configuration.
type TelegramConfig struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token"`
	RateLimit float64 `koanf:"rate_limit"`
	BaseURL   string  `koanf:"base_url"`
}

// BroadcastConfig contains shift-boundary broadcast configuration.
type BroadcastConfig struct {
	Enabled       bool          `koanf:"enabled"`
	AdminChatIDs  []string      `koanf:"admin_chat_ids"`
	ReportChatIDs []string      `koanf:"report_chat_ids"`
	StatusLead    time.Duration `koanf:"status_lead"`
	SummaryLag    time.Duration `koanf:"summary_lag"`
}

// ReportConfig contains report builder configuration.
type ReportConfig struct {
	TopReasons int             `koanf:"top_reasons" validate:"gt=0"`
	Broadcast  BroadcastConfig `koanf:"broadcast"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Log      LogConfig       `koanf:"log"`
	Timezone string          `koanf:"timezone" validate:"required"`
	Store    StoreConfig     `koanf:"store"`
	Cache    CacheConfig     `koanf:"cache"`
	Reminder ReminderConfig  `koanf:"reminder"`
	Telegram TelegramConfig  `koanf:"telegram"`
	Report   ReportConfig    `koanf:"report"`
	CORS     CORSConfig      `koanf:"cors"`
	Topology domain.Topology `koanf:"topology"`
}

// Default returns the configuration the service runs with when nothing is
// overridden. The topology defaults to the built-in plant layout.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Timezone: "Europe/Moscow",
		Store: StoreConfig{
			Worksheet:         "Downtime",
			RequestsPerMinute: 50,
		},
		Cache: CacheConfig{
			RefreshInterval: 5 * time.Minute,
			MaxAge:          15 * time.Minute,
		},
		Reminder: ReminderConfig{
			Interval:          5 * time.Minute,
			GroupDelay:        30 * time.Minute,
			InitiatorDelay:    2 * time.Hour,
			PerRequestTimeout: 10 * time.Second,
		},
		Telegram: TelegramConfig{
			RateLimit: 20,
		},
		Report: ReportConfig{
			TopReasons: 3,
			Broadcast: BroadcastConfig{
				StatusLead: 5 * time.Minute,
				SummaryLag: 5 * time.Minute,
			},
		},
		Topology: domain.DefaultTopology(),
	}
}

// Load reads configuration from path (optional, "" skips the file) and
// the environment, overlaying both onto the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// DK_SERVER__METRICS_PORT maps to server.metrics_port: double
	// underscores nest, single underscores stay inside a key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
