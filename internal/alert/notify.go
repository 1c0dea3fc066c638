package alert

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/airalert/airalert/internal/airquality"
)

// TimestampLayout is how broadcast messages print the reading time.
const TimestampLayout = "02/01/2006 15:04"

// NotifyConfig holds configuration for NotifyAirQuality.
type NotifyConfig struct {
	// Gateway delivers messages.
	Gateway Gateway

	// Clock provides the broadcast timestamp (default: real clock).
	Clock clockwork.Clock

	// Timezone for the broadcast timestamp (default: UTC).
	Timezone *time.Location
}

// NotifyAirQuality formats readings and hands them to a Gateway.
// It holds no mutable state and may be shared between goroutines.
type NotifyAirQuality struct {
	gateway  Gateway
	clock    clockwork.Clock
	timezone *time.Location
}

// NewNotifyAirQuality creates the notify use case.
func NewNotifyAirQuality(cfg NotifyConfig) *NotifyAirQuality {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}

	return &NotifyAirQuality{
		gateway:  cfg.Gateway,
		clock:    clock,
		timezone: tz,
	}
}

// Execute sends the reading to channelID. Gateway errors are returned as is.
func (n *NotifyAirQuality) Execute(ctx context.Context, channelID string, data *airquality.AirQualityData) error {
	return n.gateway.Send(ctx, channelID, FormatMessage(data))
}

// Broadcast is Execute with a timestamp line appended.
func (n *NotifyAirQuality) Broadcast(ctx context.Context, channelID string, data *airquality.AirQualityData) error {
	text := FormatMessage(data) + "\n\n🕐 " + n.clock.Now().In(n.timezone).Format(TimestampLayout)
	return n.gateway.Send(ctx, channelID, text)
}

// FormatMessage renders a reading as Telegram HTML.
func FormatMessage(data *airquality.AirQualityData) string {
	level := data.Level()

	return fmt.Sprintf(
		"%s <b>%s</b>\n\n📍 %s\nAQI <b>%d</b> · PM2.5 %d µg/m³\n🌡️ %d°C · 💧 %d%%\n\n%s",
		level.Emoji(),
		html.EscapeString(level.Description()),
		html.EscapeString(data.Location.DisplayName()),
		data.AQI,
		data.PM25,
		data.Temperature,
		data.Humidity,
		html.EscapeString(level.HealthWarning()),
	)
}
