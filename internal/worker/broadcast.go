package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/alert"
	"github.com/airalert/airalert/internal/telemetry"
)

// Broadcast stages.
const (
	StageCheck  = "check"
	StageNotify = "notify"
)

// BroadcastJob checks every configured location and posts the readings to
// the broadcast channel.
type BroadcastJob struct {
	check     *alert.CheckAirQuality
	notify    *alert.NotifyAirQuality
	channelID string
	locations []airquality.Location
	metrics   *telemetry.PipelineMetrics
	clock     clockwork.Clock
	logger    zerolog.Logger

	stats *BroadcastStats
}

// BroadcastStats tracks broadcast runs for the ops status endpoint.
type BroadcastStats struct {
	mu sync.RWMutex

	TotalRuns     int64
	Delivered     int64
	Failed        int64
	LastRunAt     time.Time
	LastResult    *BroadcastResult
	LastReadings  map[string]LocationReading
	readingsOrder []string
}

// LocationReading is the latest outcome for one location.
type LocationReading struct {
	Location  string
	AQI       int
	PM25      int
	Level     airquality.Level
	CheckedAt time.Time
	Error     string
}

// BroadcastResult contains the result of one run.
type BroadcastResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Failed    int
	Errors    []BroadcastError

	// Cancelled is set when the run stopped before the last location.
	Cancelled bool
}

// BroadcastError records a location that was not delivered.
type BroadcastError struct {
	Location string
	Stage    string
	Error    string
}

// NewBroadcastJob creates a broadcast job.
func NewBroadcastJob(cfg BroadcastConfig) *BroadcastJob {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &BroadcastJob{
		check:     cfg.Check,
		notify:    cfg.Notify,
		channelID: cfg.ChannelID,
		locations: append([]airquality.Location(nil), cfg.Locations...),
		metrics:   cfg.Metrics,
		clock:     clock,
		logger:    cfg.Logger,
		stats:     &BroadcastStats{LastReadings: make(map[string]LocationReading)},
	}
}

// Run broadcasts every location in order. A failing location is logged and
// the batch continues. Cancelling ctx stops the batch before the next
// location; a location already in progress is finished.
func (j *BroadcastJob) Run(ctx context.Context) *BroadcastResult {
	result := &BroadcastResult{
		StartTime: j.clock.Now(),
		Total:     len(j.locations),
	}

	j.logger.Info().
		Int("locations", result.Total).
		Str("channel_id", j.channelID).
		Msg("starting broadcast")

	for _, loc := range j.locations {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		if stage, err := j.broadcastLocation(context.WithoutCancel(ctx), loc); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BroadcastError{
				Location: loc.Name,
				Stage:    stage,
				Error:    err.Error(),
			})
			continue
		}
		result.Succeeded++
	}

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateStats(result)
	j.metrics.RecordBroadcast(ctx, result.Succeeded, result.Failed)

	event := j.logger.Info()
	if result.Failed > 0 || result.Cancelled {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Bool("cancelled", result.Cancelled).
		Msg("broadcast completed")

	return result
}

func (j *BroadcastJob) broadcastLocation(ctx context.Context, loc airquality.Location) (string, error) {
	log := j.logger.With().Str("location", loc.String()).Logger()

	start := j.clock.Now()
	data, err := j.check.Execute(ctx, loc)
	j.metrics.RecordCheck(ctx, telemetry.TriggerBroadcast, j.clock.Since(start), err)
	if err != nil {
		log.Error().Err(err).Msg("air quality check failed")
		j.recordReading(loc, nil, err)
		return StageCheck, err
	}
	j.recordReading(loc, data, nil)

	err = j.notify.Broadcast(ctx, j.channelID, data)
	j.metrics.RecordNotification(ctx, telemetry.TriggerBroadcast, err)
	if err != nil {
		log.Error().Err(err).Msg("failed to broadcast reading")
		return StageNotify, err
	}

	log.Debug().
		Int("aqi", data.AQI).
		Int("pm25", data.PM25).
		Msg("reading broadcast")
	return "", nil
}

// HealthCheck checks the first location without notifying anyone.
func (j *BroadcastJob) HealthCheck(ctx context.Context) error {
	if len(j.locations) == 0 {
		return fmt.Errorf("health check: no locations configured")
	}

	loc := j.locations[0]
	start := j.clock.Now()
	data, err := j.check.Execute(ctx, loc)
	j.metrics.RecordCheck(ctx, telemetry.TriggerPubSub, j.clock.Since(start), err)
	j.recordReading(loc, data, err)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

func (j *BroadcastJob) recordReading(loc airquality.Location, data *airquality.AirQualityData, err error) {
	reading := LocationReading{Location: loc.Name, CheckedAt: j.clock.Now()}
	if err != nil {
		reading.Error = err.Error()
	} else {
		reading.AQI = data.AQI
		reading.PM25 = data.PM25
		reading.Level = data.Level()
	}

	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	if _, seen := j.stats.LastReadings[loc.Name]; !seen {
		j.stats.readingsOrder = append(j.stats.readingsOrder, loc.Name)
	}
	j.stats.LastReadings[loc.Name] = reading
}

func (j *BroadcastJob) updateStats(result *BroadcastResult) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.Delivered += int64(result.Succeeded)
	j.stats.Failed += int64(result.Failed)
	j.stats.LastRunAt = result.EndTime

	last := *result
	last.Errors = append([]BroadcastError(nil), result.Errors...)
	j.stats.LastResult = &last
}

// StatsSnapshot is a point-in-time copy of BroadcastStats.
type StatsSnapshot struct {
	TotalRuns  int64
	Delivered  int64
	Failed     int64
	LastRunAt  time.Time
	LastResult *BroadcastResult

	// Readings are ordered by first appearance.
	Readings []LocationReading
}

// Stats returns a copy of the current statistics.
func (j *BroadcastJob) Stats() StatsSnapshot {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	snap := StatsSnapshot{
		TotalRuns: j.stats.TotalRuns,
		Delivered: j.stats.Delivered,
		Failed:    j.stats.Failed,
		LastRunAt: j.stats.LastRunAt,
	}
	if j.stats.LastResult != nil {
		last := *j.stats.LastResult
		last.Errors = append([]BroadcastError(nil), j.stats.LastResult.Errors...)
		snap.LastResult = &last
	}
	for _, name := range j.stats.readingsOrder {
		snap.Readings = append(snap.Readings, j.stats.LastReadings[name])
	}
	return snap
}

// Locations returns the configured locations in broadcast order.
func (j *BroadcastJob) Locations() []airquality.Location {
	return append([]airquality.Location(nil), j.locations...)
}
