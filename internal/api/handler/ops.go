// Package handler provides HTTP handlers for the ops server.
package handler

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/api/models"
	"github.com/airalert/airalert/internal/api/response"
	"github.com/airalert/airalert/internal/provider/resilience"
	"github.com/airalert/airalert/internal/worker"
)

// BroadcastSource reports broadcast statistics.
type BroadcastSource interface {
	Stats() worker.StatsSnapshot
	Locations() []airquality.Location
}

// ProviderSource reports upstream client health.
type ProviderSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// ScheduleSource reports the next scheduled run.
type ScheduleSource interface {
	NextRun() time.Time
}

// OpsConfig holds configuration for an OpsHandler. Every source is optional.
type OpsConfig struct {
	Version   string
	BuildTime string

	Broadcast BroadcastSource
	Providers ProviderSource
	Scheduler ScheduleSource
	Schedule  string

	// Clock for response timestamps (default: real clock).
	Clock clockwork.Clock
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	broadcast BroadcastSource
	providers ProviderSource
	scheduler ScheduleSource
	schedule  string
	clock     clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		broadcast: cfg.Broadcast,
		providers: cfg.Providers,
		scheduler: cfg.Scheduler,
		schedule:  cfg.Schedule,
		clock:     clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails while any upstream
// circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	for _, p := range providers {
		if p.Status == models.HealthStatusFail {
			response.ServiceUnavailable(w, r, "provider "+p.Provider+" is unavailable")
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - broadcast, location and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Time:      models.Timestamp(h.clock.Now()),
		Broadcast: models.BroadcastStatus{Schedule: h.schedule},
		Locations: []models.LocationStatus{},
		Providers: h.providerStatuses(),
	}

	if h.scheduler != nil {
		status.Broadcast.NextRunAt = models.TimestampPtr(h.scheduler.NextRun())
	}

	if h.broadcast != nil {
		stats := h.broadcast.Stats()
		status.Broadcast.TotalRuns = stats.TotalRuns
		status.Broadcast.Delivered = stats.Delivered
		status.Broadcast.Failed = stats.Failed
		status.Broadcast.LastRun = runResult(stats.LastResult)
		status.Locations = locationStatuses(h.broadcast.Locations(), stats.Readings)
	}

	status.Status = overallStatus(status)
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.providers == nil {
		return []models.ProviderStatus{}
	}

	health := h.providers.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(health))
	for _, p := range health {
		ps := models.ProviderStatus{
			Provider:            p.Name,
			Status:              models.HealthStatusOK,
			CircuitState:        p.CircuitState.String(),
			ConsecutiveFailures: p.Counts.ConsecutiveFailures,
			LastSuccessAt:       optionalTimestamp(p.LastSuccessAt),
			LastFailureAt:       optionalTimestamp(p.LastFailureAt),
		}
		switch {
		case p.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case p.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func runResult(r *worker.BroadcastResult) *models.RunResult {
	if r == nil {
		return nil
	}

	out := &models.RunResult{
		StartedAt:  models.Timestamp(r.StartTime),
		DurationMs: r.Duration.Milliseconds(),
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Cancelled:  r.Cancelled,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, models.RunResultFailure{
			Location: e.Location,
			Stage:    e.Stage,
			Error:    e.Error,
		})
	}
	return out
}

// locationStatuses lists configured locations in order, then any other
// location that has a reading.
func locationStatuses(locations []airquality.Location, readings []worker.LocationReading) []models.LocationStatus {
	byName := make(map[string]worker.LocationReading, len(readings))
	for _, rd := range readings {
		byName[rd.Location] = rd
	}

	out := make([]models.LocationStatus, 0, len(locations))
	listed := make(map[string]bool, len(locations))
	for _, loc := range locations {
		listed[loc.Name] = true
		out = append(out, locationStatus(loc.Name, byName))
	}
	for _, rd := range readings {
		if !listed[rd.Location] {
			out = append(out, locationStatus(rd.Location, byName))
		}
	}
	return out
}

func locationStatus(name string, readings map[string]worker.LocationReading) models.LocationStatus {
	ls := models.LocationStatus{Name: name}

	rd, ok := readings[name]
	if !ok {
		return ls
	}

	ls.CheckedAt = models.TimestampPtr(rd.CheckedAt)
	if rd.Error != "" {
		ls.Error = rd.Error
		return ls
	}

	aqi, pm25 := rd.AQI, rd.PM25
	ls.AQI = &aqi
	ls.PM25 = &pm25
	ls.AQILevel = airquality.LevelFromAQI(aqi).String()
	ls.PM25Level = airquality.LevelFromPM25(pm25).String()
	return ls
}

func overallStatus(s models.SystemStatus) models.HealthStatus {
	status := models.HealthStatusOK
	for _, p := range s.Providers {
		if p.Status != models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}
	if last := s.Broadcast.LastRun; last != nil && last.Failed > 0 {
		if last.Succeeded == 0 {
			return models.HealthStatusFail
		}
		status = models.HealthStatusDegraded
	}
	return status
}

func optionalTimestamp(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	return models.TimestampPtr(*t)
}
