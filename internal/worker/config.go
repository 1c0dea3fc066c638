// Package worker runs the scheduled air quality broadcast and its triggers.
package worker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/alert"
	"github.com/airalert/airalert/internal/telemetry"
)

// ErrInvalidSchedule is returned for a cron expression that is not 5 or 6 fields.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// BroadcastConfig holds configuration for a BroadcastJob.
type BroadcastConfig struct {
	// Check and Notify are the pipeline shared with the chat commands.
	Check  *alert.CheckAirQuality
	Notify *alert.NotifyAirQuality

	// ChannelID receives every broadcast.
	ChannelID string

	// Locations are broadcast in order.
	Locations []airquality.Location

	// Metrics is optional.
	Metrics *telemetry.PipelineMetrics

	// Clock for run timings (default: real clock).
	Clock clockwork.Clock

	Logger zerolog.Logger
}

// SchedulerConfig holds configuration for a Scheduler.
type SchedulerConfig struct {
	// Timezone cron expressions are evaluated in (default: UTC).
	Timezone *time.Location

	Logger zerolog.Logger
}

// ValidateSchedule checks that expr has 5 fields, or 6 with leading seconds.
func ValidateSchedule(expr string) error {
	if _, err := scheduleFields(expr); err != nil {
		return err
	}
	return nil
}

func scheduleFields(expr string) (int, error) {
	n := len(strings.Fields(expr))
	if n != 5 && n != 6 {
		return 0, fmt.Errorf("%w: %q has %d fields, want 5 or 6", ErrInvalidSchedule, expr, n)
	}
	return n, nil
}
