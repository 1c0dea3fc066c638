package airquality

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Repository returns the current measurement for a location.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Fetch returns a measurement or an error matching ErrLookupFailed.
	Fetch(ctx context.Context, loc Location) (*RawMeasurement, error)
}

// Source is an upstream that can look places up by name or by position.
type Source interface {
	FetchByCity(ctx context.Context, q CityQuery) (*RawMeasurement, error)
	FetchByCoordinates(ctx context.Context, q CoordinatesQuery) (*RawMeasurement, error)
}

// DefaultAliases returns coordinates for place names the upstream does not
// index by name. Keys are lower-case.
func DefaultAliases() map[string]CoordinatesQuery {
	return map[string]CoordinatesQuery{
		"phan thong": {Latitude: 13.46, Longitude: 101.09},
		"ban suan":   {Latitude: 13.3575, Longitude: 100.9810},
		"bang saen":  {Latitude: 13.2838, Longitude: 100.9266},
		"nong mon":   {Latitude: 13.3013, Longitude: 100.9369},
	}
}

// FallbackConfig holds configuration for a FallbackRepository.
type FallbackConfig struct {
	// Source is the upstream data source.
	Source Source

	// Aliases maps lower-case city names to coordinates.
	// If nil, DefaultAliases is used.
	Aliases map[string]CoordinatesQuery

	// Logger for fallback decisions.
	Logger zerolog.Logger
}

// FallbackRepository looks cities up by name and, when that fails, retries
// once by coordinates if the city has a known alias.
type FallbackRepository struct {
	source  Source
	aliases map[string]CoordinatesQuery
	logger  zerolog.Logger
}

// NewFallbackRepository creates a FallbackRepository.
func NewFallbackRepository(cfg FallbackConfig) *FallbackRepository {
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = DefaultAliases()
	}

	normalized := make(map[string]CoordinatesQuery, len(aliases))
	for name, q := range aliases {
		normalized[aliasKey(name)] = q
	}

	return &FallbackRepository{
		source:  cfg.Source,
		aliases: normalized,
		logger:  cfg.Logger,
	}
}

// Fetch implements Repository.
func (r *FallbackRepository) Fetch(ctx context.Context, loc Location) (*RawMeasurement, error) {
	switch q := loc.Query.(type) {
	case CoordinatesQuery:
		return r.source.FetchByCoordinates(ctx, q)
	case CityQuery:
		return r.fetchCity(ctx, q)
	default:
		return nil, &LookupError{Location: loc.String(), Status: "unsupported query"}
	}
}

func (r *FallbackRepository) fetchCity(ctx context.Context, q CityQuery) (*RawMeasurement, error) {
	m, err := r.source.FetchByCity(ctx, q)
	if err == nil {
		return m, nil
	}

	alias, ok := r.aliases[aliasKey(q.City)]
	if !ok {
		return nil, err
	}

	r.logger.Debug().
		Err(err).
		Str("city", q.City).
		Float64("lat", alias.Latitude).
		Float64("lon", alias.Longitude).
		Msg("city lookup failed, retrying by coordinates")

	return r.source.FetchByCoordinates(ctx, alias)
}

func aliasKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
