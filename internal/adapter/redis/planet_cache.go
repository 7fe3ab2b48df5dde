package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// PlanetCache is a read-through Redis cache in front of the planet repository.
// Redis failures are logged and fall through to the repository.
type PlanetCache struct {
	rdb     goredis.Cmdable
	planets domain.PlanetRepository
	ttl     time.Duration
	metrics *metrics.CacheMetrics
}

var _ domain.PlanetCache = (*PlanetCache)(nil)

func NewPlanetCache(rdb goredis.Cmdable, planets domain.PlanetRepository, ttl time.Duration, m *metrics.CacheMetrics) *PlanetCache {
	return &PlanetCache{rdb: rdb, planets: planets, ttl: ttl, metrics: m}
}

func (c *PlanetCache) GetPlanet(ctx context.Context, id int64) (*domain.Planet, error) {
	if planet, ok := c.getCached(ctx, id); ok {
		if c.metrics != nil {
			c.metrics.Hits.Inc()
		}
		return planet, nil
	}
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}

	planet, err := c.planets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("planet lookup failed: %w", err)
	}

	c.writeCache(ctx, planet)
	return planet, nil
}

func (c *PlanetCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, planetCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate planet cache: %w", err)
	}
	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
	return nil
}

func (c *PlanetCache) writeCache(ctx context.Context, planet *domain.Planet) {
	encoded, err := json.Marshal(planet)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal planet for Redis cache", "planet_id", planet.ID, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, planetCacheKey(planet.ID), encoded, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to populate Redis planet cache", "planet_id", planet.ID, "error", err)
	}
}

func (c *PlanetCache) getCached(ctx context.Context, id int64) (*domain.Planet, bool) {
	data, err := c.rdb.Get(ctx, planetCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "Redis planet cache GET failed", "planet_id", id, "error", err)
		}
		return nil, false
	}

	var planet domain.Planet
	if err := json.Unmarshal(data, &planet); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached planet", "planet_id", id, "error", err)
		return nil, false
	}
	return &planet, true
}

func planetCacheKey(id int64) string {
	return "planet_cache:" + strconv.FormatInt(id, 10)
}
