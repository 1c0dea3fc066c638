package alert

import (
	"context"

	"github.com/airalert/airalert/internal/airquality"
)

// CheckAirQuality fetches a measurement and turns it into a reading.
// It holds no mutable state and may be shared between goroutines.
type CheckAirQuality struct {
	repo    airquality.Repository
	country string
}

// NewCheckAirQuality creates the check use case. country is used for the
// location of every returned reading.
func NewCheckAirQuality(repo airquality.Repository, country string) *CheckAirQuality {
	return &CheckAirQuality{repo: repo, country: country}
}

// Execute returns the current reading for loc. Repository errors are
// returned as is. The reading's location is rebuilt from the city and state
// the repository reports.
func (c *CheckAirQuality) Execute(ctx context.Context, loc airquality.Location) (*airquality.AirQualityData, error) {
	raw, err := c.repo.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}

	resolved := airquality.NewCityLocation(raw.City, raw.State, c.country)
	return airquality.NewAirQualityData(resolved, raw.AQI, raw.Temperature, raw.Humidity)
}
