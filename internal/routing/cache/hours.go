// Package cache keeps the business-hours window in Redis so intake does not
// hit Postgres for every submission.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const businessHoursKey = "routing:business_hours"

// BusinessHours is a read-through cache in front of a BusinessHoursSource.
// Redis failures fall through to the source.
type BusinessHours struct {
	rdb    redis.UniversalClient
	source ports.BusinessHoursSource
	ttl    time.Duration
	log    *logger.Logger
	group  singleflight.Group
}

var _ ports.BusinessHoursSource = (*BusinessHours)(nil)

// NewBusinessHours wraps source. A nil client disables caching.
func NewBusinessHours(rdb redis.UniversalClient, source ports.BusinessHoursSource, ttl time.Duration, log *logger.Logger) *BusinessHours {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BusinessHours{rdb: rdb, source: source, ttl: ttl, log: log}
}

type cachedHours struct {
	StartHour int    `json:"startHour"`
	EndHour   int    `json:"endHour"`
	Timezone  string `json:"timezone"`
}

// GetBusinessHours returns the cached window, loading it on a miss.
func (c *BusinessHours) GetBusinessHours(ctx context.Context) (domain.BusinessHours, error) {
	if c.rdb == nil {
		return c.source.GetBusinessHours(ctx)
	}

	raw, err := c.rdb.Get(ctx, businessHoursKey).Bytes()
	switch {
	case err == nil:
		var cached cachedHours
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return domain.BusinessHours(cached), nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("business hours cache read failed", "error", err)
	}

	v, err, _ := c.group.Do(businessHoursKey, func() (any, error) {
		hours, err := c.source.GetBusinessHours(ctx)
		if err != nil {
			return domain.BusinessHours{}, err
		}
		c.store(ctx, hours)
		return hours, nil
	})
	if err != nil {
		return domain.BusinessHours{}, err
	}
	return v.(domain.BusinessHours), nil
}

// Invalidate drops the cached window so the next read reloads it.
func (c *BusinessHours) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, businessHoursKey).Err()
}

func (c *BusinessHours) store(ctx context.Context, hours domain.BusinessHours) {
	payload, err := json.Marshal(cachedHours(hours))
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, businessHoursKey, payload, c.ttl).Err(); err != nil {
		c.log.Warn("business hours cache write failed", "error", err)
	}
}
