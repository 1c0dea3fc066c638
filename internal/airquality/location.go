package airquality

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is how a Location is looked up: CityQuery or CoordinatesQuery.
type Query interface {
	isQuery()
}

// CityQuery looks a place up by name.
type CityQuery struct {
	City    string
	State   string
	Country string
}

// CoordinatesQuery looks a place up by position.
type CoordinatesQuery struct {
	Latitude  float64
	Longitude float64
}

func (CityQuery) isQuery()        {}
func (CoordinatesQuery) isQuery() {}

// Location is a place to query. It is an immutable value.
type Location struct {
	Name  string
	Query Query
}

// NewCityLocation returns a name-based location.
func NewCityLocation(city, state, country string) Location {
	return Location{
		Name:  city,
		Query: CityQuery{City: city, State: state, Country: country},
	}
}

// NewCoordinatesLocation returns a coordinate location named "lat,lon" with
// two decimals. Out-of-range values return ErrInvalidCoordinates.
func NewCoordinatesLocation(lat, lon float64) (Location, error) {
	if !validCoordinates(lat, lon) {
		return Location{}, fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lat, lon)
	}
	return Location{
		Name:  fmt.Sprintf("%.2f,%.2f", lat, lon),
		Query: CoordinatesQuery{Latitude: lat, Longitude: lon},
	}, nil
}

// ResolveLocation turns free text into a Location. A "lat,lon" pair within
// range becomes a coordinate location; any other text is taken as a city
// name in defaultState/defaultCountry. It never fails.
func ResolveLocation(input, defaultState, defaultCountry string) Location {
	input = strings.TrimSpace(input)

	if parts := strings.SplitN(input, ",", 2); len(parts) == 2 {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if latErr == nil && lonErr == nil {
			if loc, err := NewCoordinatesLocation(lat, lon); err == nil {
				return loc
			}
		}
	}

	return NewCityLocation(input, defaultState, defaultCountry)
}

// CityState returns the city and state of a city location. Coordinate
// locations return their name and an empty state.
func (l Location) CityState() (string, string) {
	if q, ok := l.Query.(CityQuery); ok {
		return q.City, q.State
	}
	return l.Name, ""
}

// DisplayName is "city, state", or just the city/name when state is empty.
func (l Location) DisplayName() string {
	city, state := l.CityState()
	if state == "" {
		return city
	}
	return city + ", " + state
}

// String identifies the location in logs and errors.
func (l Location) String() string {
	switch q := l.Query.(type) {
	case CityQuery:
		return strings.Join(nonEmpty(q.City, q.State, q.Country), ", ")
	case CoordinatesQuery:
		return fmt.Sprintf("%.4f,%.4f", q.Latitude, q.Longitude)
	default:
		return l.Name
	}
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
