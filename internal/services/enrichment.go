package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

// Enricher resolves a coordinate to a human readable place.
type Enricher interface {
	Enrich(ctx context.Context, coord models.Coordinate) (*models.LocationEnrichment, error)
}

// EnrichmentCacher stores resolved places by coordinate.
type EnrichmentCacher interface {
	GetEnrichment(ctx context.Context, coord models.Coordinate) (*models.LocationEnrichment, error)
	SetEnrichment(ctx context.Context, coord models.Coordinate, e models.LocationEnrichment) error
}

// CachedEnricher consults the cache before the next Enricher. Cache errors are
// logged and otherwise ignored.
type CachedEnricher struct {
	next   Enricher
	cache  EnrichmentCacher
	logger *slog.Logger
}

func NewCachedEnricher(next Enricher, cache EnrichmentCacher, logger *slog.Logger) *CachedEnricher {
	return &CachedEnricher{next: next, cache: cache, logger: logger}
}

func (c *CachedEnricher) Enrich(ctx context.Context, coord models.Coordinate) (*models.LocationEnrichment, error) {
	cached, err := c.cache.GetEnrichment(ctx, coord)
	if err != nil {
		c.logger.Warn("enrichment cache read failed", slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	e, err := c.next.Enrich(ctx, coord)
	if err != nil || e == nil {
		return e, err
	}
	if err := c.cache.SetEnrichment(ctx, coord, *e); err != nil {
		c.logger.Warn("enrichment cache write failed", slog.Any("error", err))
	}
	return e, nil
}
