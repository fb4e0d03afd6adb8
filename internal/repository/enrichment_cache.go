package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

// EnrichmentCache stores resolved places keyed by the coordinate rounded to
// four decimals (about 11 m).
type EnrichmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEnrichmentCache(client *redis.Client, ttl time.Duration) *EnrichmentCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &EnrichmentCache{client: client, ttl: ttl}
}

func enrichmentKey(c models.Coordinate) string {
	return fmt.Sprintf("sos:geocode:%.4f:%.4f", c.Lat, c.Lng)
}

func (e *EnrichmentCache) GetEnrichment(ctx context.Context, coord models.Coordinate) (*models.LocationEnrichment, error) {
	raw, err := e.client.Get(ctx, enrichmentKey(coord)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out models.LocationEnrichment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *EnrichmentCache) SetEnrichment(ctx context.Context, coord models.Coordinate, value models.LocationEnrichment) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return e.client.SetEX(ctx, enrichmentKey(coord), payload, e.ttl).Err()
}
