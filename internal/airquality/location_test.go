package airquality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airalert/airalert/internal/airquality"
)

func TestResolveLocation_Coordinates(t *testing.T) {
	loc := airquality.ResolveLocation("13.46,101.09", "Chon Buri", "Thailand")

	q, ok := loc.Query.(airquality.CoordinatesQuery)
	require.True(t, ok, "expected coordinates query, got %T", loc.Query)
	assert.Equal(t, 13.46, q.Latitude)
	assert.Equal(t, 101.09, q.Longitude)
	assert.Equal(t, "13.46,101.09", loc.Name)
}

func TestResolveLocation_CoordinatesWithSpaces(t *testing.T) {
	loc := airquality.ResolveLocation("  13.4567 , 101.0912 ", "Chon Buri", "Thailand")

	_, ok := loc.Query.(airquality.CoordinatesQuery)
	require.True(t, ok)
	assert.Equal(t, "13.46,101.09", loc.Name)
}

func TestResolveLocation_City(t *testing.T) {
	loc := airquality.ResolveLocation("Ban Suan", "Chon Buri", "Thailand")

	assert.Equal(t, airquality.CityQuery{City: "Ban Suan", State: "Chon Buri", Country: "Thailand"}, loc.Query)
	assert.Equal(t, "Ban Suan", loc.Name)
}

func TestResolveLocation_FallsBackToCity(t *testing.T) {
	tests := []string{
		"200,50",       // latitude out of range
		"13.46,190",    // longitude out of range
		"Chon Buri,TH", // not numbers
		"1,2,3",        // second part is not a number
		"13.46",
	}

	for _, input := range tests {
		loc := airquality.ResolveLocation(input, "Chon Buri", "Thailand")
		q, ok := loc.Query.(airquality.CityQuery)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, input, q.City)
		assert.Equal(t, "Chon Buri", q.State)
	}
}

func TestNewCoordinatesLocation_OutOfRange(t *testing.T) {
	_, err := airquality.NewCoordinatesLocation(91, 0)
	assert.ErrorIs(t, err, airquality.ErrInvalidCoordinates)

	_, err = airquality.NewCoordinatesLocation(0, -181)
	assert.ErrorIs(t, err, airquality.ErrInvalidCoordinates)

	loc, err := airquality.NewCoordinatesLocation(-90, 180)
	require.NoError(t, err)
	assert.Equal(t, "-90.00,180.00", loc.Name)
}

func TestLocation_DisplayName(t *testing.T) {
	assert.Equal(t, "Ban Suan, Chon Buri", airquality.NewCityLocation("Ban Suan", "Chon Buri", "Thailand").DisplayName())
	assert.Equal(t, "Ban Suan", airquality.NewCityLocation("Ban Suan", "", "Thailand").DisplayName())

	loc, err := airquality.NewCoordinatesLocation(13.46, 101.09)
	require.NoError(t, err)
	assert.Equal(t, "13.46,101.09", loc.DisplayName())
	assert.Equal(t, "13.4600,101.0900", loc.String())
}

func TestLocation_String(t *testing.T) {
	loc := airquality.NewCityLocation("Ban Suan", "Chon Buri", "Thailand")
	assert.Equal(t, "Ban Suan, Chon Buri, Thailand", loc.String())

	loc = airquality.NewCityLocation("Ban Suan", "", "")
	assert.Equal(t, "Ban Suan", loc.String())
}
