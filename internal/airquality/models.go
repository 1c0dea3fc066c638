// Package airquality provides the air quality domain: locations, readings,
// AQI to PM2.5 conversion, severity levels and the repository contract.
package airquality

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrLookupFailed matches any *LookupError.
	ErrLookupFailed = errors.New("air quality lookup failed")

	// ErrNegativeAQI is returned when a negative AQI reaches the converter.
	ErrNegativeAQI = errors.New("aqi must not be negative")

	// ErrInvalidCoordinates is returned for latitude/longitude outside the valid range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// LookupError is returned when no measurement can be produced for a location.
type LookupError struct {
	// Location identifies what was queried.
	Location string

	// Status is the upstream status, e.g. "city_not_found" or "http 503".
	Status string

	// Err is the underlying cause, if any.
	Err error
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("lookup %q failed", e.Location)
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLookupFailed.
func (e *LookupError) Is(target error) bool { return target == ErrLookupFailed }

// RawMeasurement is what a data source reports for a location.
// City and State are as resolved by the source and may differ from the query.
type RawMeasurement struct {
	City        string `json:"city"`
	State       string `json:"state"`
	AQI         int    `json:"aqi"`
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
}

// AirQualityData is a fully formed reading.
// Use NewAirQualityData so PM25 always follows from AQI.
type AirQualityData struct {
	Location    Location
	AQI         int
	PM25        int
	Temperature int
	Humidity    int
}

// NewAirQualityData builds a reading, deriving PM25 from aqi.
func NewAirQualityData(loc Location, aqi, temperature, humidity int) (*AirQualityData, error) {
	pm25, err := EstimatePM25FromAQI(aqi)
	if err != nil {
		return nil, err
	}
	return &AirQualityData{
		Location:    loc,
		AQI:         aqi,
		PM25:        pm25,
		Temperature: temperature,
		Humidity:    humidity,
	}, nil
}

// Level returns the severity of the reading, classified by AQI.
func (d *AirQualityData) Level() Level {
	return LevelFromAQI(d.AQI)
}
