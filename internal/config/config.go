// Package config loads the notifier configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/worker"
)

// Telegram update modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
	ModeOff     = "off"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete notifier configuration.
type Config struct {
	App       AppConfig
	IQAir     IQAirConfig
	Telegram  TelegramConfig
	Broadcast BroadcastConfig
	Redis     RedisConfig
	PubSub    PubSubConfig
	Telemetry TelemetryConfig
}

// AppConfig holds configuration for the process and the ops server.
type AppConfig struct {
	Port        int    `envconfig:"APP_PORT" default:"8080"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	OpsToken    string `envconfig:"OPS_TOKEN"`
}

// IQAirConfig holds configuration for the IQAir AirVisual client.
type IQAirConfig struct {
	APIKey  string `envconfig:"IQAIR_API_KEY"`
	BaseURL string `envconfig:"IQAIR_BASE_URL" default:"https://api.airvisual.com/v2"`
}

// TelegramConfig holds configuration for the Telegram bot and channel.
type TelegramConfig struct {
	Token         string        `envconfig:"TELEGRAM_TOKEN"`
	Channel       string        `envconfig:"TELEGRAM_CHANNEL"`
	Mode          string        `envconfig:"TELEGRAM_MODE" default:"polling"`
	WebhookSecret string        `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	WebhookURL    string        `envconfig:"TELEGRAM_WEBHOOK_URL"`
	PollTimeout   time.Duration `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"30s"`
	BotName       string        `envconfig:"TELEGRAM_BOT_NAME"`
}

// BroadcastConfig holds configuration for the scheduled broadcast.
type BroadcastConfig struct {
	Cities   []string `envconfig:"CITIES" default:"Ban Suan"`
	State    string   `envconfig:"STATE" default:"Chon Buri"`
	Country  string   `envconfig:"COUNTRY" default:"Thailand"`
	Schedule string   `envconfig:"CRON_SCHEDULE" default:"0 0 8,12,18 * * *"`
	Timezone string   `envconfig:"TIMEZONE" default:"Asia/Bangkok"`
	OnStart  bool     `envconfig:"BROADCAST_ON_START" default:"false"`
}

// RedisConfig holds configuration for the optional measurement cache.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`
}

// Enabled reports whether the measurement cache is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// PubSubConfig holds configuration for the optional Pub/Sub trigger.
type PubSubConfig struct {
	ProjectID    string `envconfig:"PUBSUB_PROJECT_ID"`
	Subscription string `envconfig:"PUBSUB_SUBSCRIPTION"`
}

// Enabled reports whether the Pub/Sub trigger is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// TelemetryConfig holds configuration for OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	Secure       bool    `envconfig:"OTEL_EXPORTER_OTLP_SECURE" default:"false"`
	SampleRatio  float64 `envconfig:"OTEL_TRACE_SAMPLE_RATIO" default:"1"`
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required values and the formats envconfig cannot.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.IQAir.APIKey == "" {
		invalid("IQAIR_API_KEY is required")
	}
	if c.Telegram.Token == "" {
		invalid("TELEGRAM_TOKEN is required")
	}
	if c.Telegram.Channel == "" {
		invalid("TELEGRAM_CHANNEL is required")
	}

	switch c.Telegram.Mode {
	case ModePolling, ModeOff:
	case ModeWebhook:
		if c.Telegram.WebhookSecret == "" {
			invalid("TELEGRAM_WEBHOOK_SECRET is required in webhook mode")
		}
	default:
		invalid("TELEGRAM_MODE must be %s, %s or %s, got %q", ModePolling, ModeWebhook, ModeOff, c.Telegram.Mode)
	}

	if len(c.Locations()) == 0 {
		invalid("CITIES must name at least one city")
	}
	if err := worker.ValidateSchedule(c.Broadcast.Schedule); err != nil {
		invalid("CRON_SCHEDULE: %v", err)
	}
	if _, err := time.LoadLocation(c.Broadcast.Timezone); err != nil {
		invalid("TIMEZONE %q: %v", c.Broadcast.Timezone, err)
	}
	if _, err := zerolog.ParseLevel(c.App.LogLevel); err != nil {
		invalid("LOG_LEVEL %q: %v", c.App.LogLevel, err)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		invalid("APP_PORT %d out of range", c.App.Port)
	}

	return errors.Join(errs...)
}

// Locations returns the broadcast cities, in order, as city locations in
// the configured state and country. Blank entries are skipped.
func (c *Config) Locations() []airquality.Location {
	locations := make([]airquality.Location, 0, len(c.Broadcast.Cities))
	for _, city := range c.Broadcast.Cities {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		locations = append(locations, airquality.NewCityLocation(city, c.Broadcast.State, c.Broadcast.Country))
	}
	return locations
}

// Timezone returns the broadcast timezone. UTC if it fails to load, which
// Validate rules out.
func (c *Config) Timezone() *time.Location {
	loc, err := time.LoadLocation(c.Broadcast.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.App.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// IsProduction reports whether APP_ENV is production. Outside production
// logs are written for a console.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
