package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/logger"
)

type countingEnricher struct {
	calls  int
	result *models.LocationEnrichment
	err    error
}

func (e *countingEnricher) Enrich(context.Context, models.Coordinate) (*models.LocationEnrichment, error) {
	e.calls++
	return e.result, e.err
}

type mapCache struct {
	data    map[models.Coordinate]models.LocationEnrichment
	readErr error
}

func (m *mapCache) GetEnrichment(_ context.Context, c models.Coordinate) (*models.LocationEnrichment, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if e, ok := m.data[c]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *mapCache) SetEnrichment(_ context.Context, c models.Coordinate, e models.LocationEnrichment) error {
	m.data[c] = e
	return nil
}

func TestCachedEnricher_UsesCache(t *testing.T) {
	next := &countingEnricher{result: &models.LocationEnrichment{PlaceName: "Park"}}
	cache := &mapCache{data: map[models.Coordinate]models.LocationEnrichment{}}
	c := NewCachedEnricher(next, cache, logger.Discard())

	for i := 0; i < 3; i++ {
		e, err := c.Enrich(context.Background(), sodepur)
		require.NoError(t, err)
		assert.Equal(t, "Park", e.PlaceName)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedEnricher_CacheErrorFallsThrough(t *testing.T) {
	next := &countingEnricher{result: &models.LocationEnrichment{PlaceName: "Park"}}
	cache := &mapCache{data: map[models.Coordinate]models.LocationEnrichment{}, readErr: errors.New("redis down")}
	c := NewCachedEnricher(next, cache, logger.Discard())

	e, err := c.Enrich(context.Background(), sodepur)
	require.NoError(t, err)
	assert.Equal(t, "Park", e.PlaceName)
	assert.Equal(t, 1, next.calls)
}

func TestCachedEnricher_ErrorsNotCached(t *testing.T) {
	next := &countingEnricher{err: errors.New("geocoder down")}
	cache := &mapCache{data: map[models.Coordinate]models.LocationEnrichment{}}
	c := NewCachedEnricher(next, cache, logger.Discard())

	_, err := c.Enrich(context.Background(), sodepur)
	assert.Error(t, err)
	assert.Empty(t, cache.data)
}
