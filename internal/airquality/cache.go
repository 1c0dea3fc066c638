package airquality

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheConfig holds configuration for a CachedRepository.
type CacheConfig struct {
	// Repository is the wrapped repository.
	Repository Repository

	// Client is the redis client.
	Client redis.Cmdable

	// TTL is how long a measurement is served from cache (default: 10 minutes).
	TTL time.Duration

	// KeyPrefix namespaces cache keys (default: "airalert:aq:").
	KeyPrefix string

	// Logger for cache operations.
	Logger zerolog.Logger
}

// CachedRepository serves recent measurements from redis. Redis failures
// are logged and fall through to the wrapped repository.
type CachedRepository struct {
	next      Repository
	client    redis.Cmdable
	ttl       time.Duration
	keyPrefix string
	logger    zerolog.Logger
}

// NewCachedRepository creates a CachedRepository.
func NewCachedRepository(cfg CacheConfig) *CachedRepository {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "airalert:aq:"
	}

	return &CachedRepository{
		next:      cfg.Repository,
		client:    cfg.Client,
		ttl:       ttl,
		keyPrefix: prefix,
		logger:    cfg.Logger,
	}
}

// Fetch implements Repository.
func (c *CachedRepository) Fetch(ctx context.Context, loc Location) (*RawMeasurement, error) {
	key := c.key(loc)

	if m, ok := c.get(ctx, key); ok {
		return m, nil
	}

	m, err := c.next.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, m)
	return m, nil
}

func (c *CachedRepository) key(loc Location) string {
	if q, ok := loc.Query.(CityQuery); ok {
		return c.keyPrefix + "city:" + aliasKey(q.City) + "|" + aliasKey(q.State) + "|" + aliasKey(q.Country)
	}
	return c.keyPrefix + "geo:" + loc.String()
}

func (c *CachedRepository) get(ctx context.Context, key string) (*RawMeasurement, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}

	var m RawMeasurement
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache entry")
		return nil, false
	}
	return &m, true
}

func (c *CachedRepository) set(ctx context.Context, key string, m *RawMeasurement) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
