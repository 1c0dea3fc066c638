package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IQAIR_API_KEY", "iqair-key")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHANNEL", "@airalert")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "https://api.airvisual.com/v2", cfg.IQAir.BaseURL)
	assert.Equal(t, config.ModePolling, cfg.Telegram.Mode)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, "0 0 8,12,18 * * *", cfg.Broadcast.Schedule)
	assert.Equal(t, "Asia/Bangkok", cfg.Broadcast.Timezone)
	assert.False(t, cfg.Broadcast.OnStart)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.PubSub.Enabled())
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, []airquality.Location{
		airquality.NewCityLocation("Ban Suan", "Chon Buri", "Thailand"),
	}, cfg.Locations())
	assert.Equal(t, "Asia/Bangkok", cfg.Timezone().String())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CITIES", "Ban Suan, Bang Saen,,Si Racha")
	t.Setenv("STATE", "")
	t.Setenv("TELEGRAM_MODE", "webhook")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "s3cret")
	t.Setenv("CRON_SCHEDULE", "0 7 * * *")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("PUBSUB_PROJECT_ID", "proj")
	t.Setenv("PUBSUB_SUBSCRIPTION", "airalert-jobs")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "production")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	locations := cfg.Locations()
	require.Len(t, locations, 3)
	assert.Equal(t, "Bang Saen", locations[1].Name)
	assert.Equal(t, "Bang Saen, Thailand", locations[1].String(), "empty state is dropped")
	assert.Equal(t, "Si Racha", locations[2].Name)

	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	assert.True(t, cfg.PubSub.Enabled())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.UTC, cfg.Timezone())
}

func TestFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("IQAIR_API_KEY", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_CHANNEL", "")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "IQAIR_API_KEY")
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
	assert.Contains(t, err.Error(), "TELEGRAM_CHANNEL")
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{"unknown mode", map[string]string{"TELEGRAM_MODE": "push"}, "TELEGRAM_MODE"},
		{"webhook without secret", map[string]string{"TELEGRAM_MODE": "webhook"}, "TELEGRAM_WEBHOOK_SECRET"},
		{"four field schedule", map[string]string{"CRON_SCHEDULE": "0 8 * *"}, "CRON_SCHEDULE"},
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"no cities", map[string]string{"CITIES": " , "}, "CITIES"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"port out of range", map[string]string{"APP_PORT": "70000"}, "APP_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.FromEnv()
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFromEnv_UnparseableValue(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_POLL_TIMEOUT", "soon")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalidConfig)
}
