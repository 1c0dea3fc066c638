package models

// Health represents the liveness of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the response of GET /v1/ops/status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Broadcast BroadcastStatus  `json:"broadcast"`
	Locations []LocationStatus `json:"locations"`
	Providers []ProviderStatus `json:"providers"`
}

// BroadcastStatus summarises scheduled broadcasts.
type BroadcastStatus struct {
	Schedule  string     `json:"schedule,omitempty"`
	NextRunAt *Timestamp `json:"nextRunAt,omitempty"`
	TotalRuns int64      `json:"totalRuns"`
	Delivered int64      `json:"delivered"`
	Failed    int64      `json:"failed"`
	LastRun   *RunResult `json:"lastRun,omitempty"`
}

// RunResult is the outcome of one broadcast run.
type RunResult struct {
	StartedAt  Timestamp          `json:"startedAt"`
	DurationMs int64              `json:"durationMs"`
	Total      int                `json:"total"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Cancelled  bool               `json:"cancelled,omitempty"`
	Errors     []RunResultFailure `json:"errors,omitempty"`
}

// RunResultFailure is a location that was not delivered.
type RunResultFailure struct {
	Location string `json:"location"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// LocationStatus is the latest reading for a location.
type LocationStatus struct {
	Name      string     `json:"name"`
	CheckedAt *Timestamp `json:"checkedAt,omitempty"`
	AQI       *int       `json:"aqi,omitempty"`
	PM25      *int       `json:"pm25,omitempty"`
	AQILevel  string     `json:"aqiLevel,omitempty"`
	PM25Level string     `json:"pm25Level,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
