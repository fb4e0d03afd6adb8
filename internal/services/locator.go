package services

import (
	"context"
	"errors"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

// ErrLocationUnavailable means no fix can be produced for the user.
var ErrLocationUnavailable = errors.New("location unavailable")

// LocateOptions carries the caller's accuracy hint.
type LocateOptions struct {
	HighAccuracy bool
}

// Locator produces a one-shot position fix for a user.
type Locator interface {
	Locate(ctx context.Context, userID string, opts LocateOptions) (models.Coordinate, error)
}

// LocationReader reads the last position a device reported.
type LocationReader interface {
	GetLocation(ctx context.Context, userID string) (*models.LiveLocation, error)
}

// LastKnownLocator answers with the most recent live location, as long as it
// is not older than MaxAge. With HighAccuracy set it also rejects fixes whose
// reported accuracy is worse than MaxAccuracy meters.
type LastKnownLocator struct {
	Store       LocationReader
	MaxAge      time.Duration
	MaxAccuracy float64
	Now         func() time.Time
}

func (l LastKnownLocator) Locate(ctx context.Context, userID string, opts LocateOptions) (models.Coordinate, error) {
	if l.Store == nil || userID == "" {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	loc, err := l.Store.GetLocation(ctx, userID)
	if err != nil {
		return models.Coordinate{}, err
	}
	if loc == nil {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	if l.MaxAge > 0 && now().Sub(loc.UpdatedAt) > l.MaxAge {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	if opts.HighAccuracy && l.MaxAccuracy > 0 && loc.Accuracy > l.MaxAccuracy {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	if err := loc.Coordinate.Validate(); err != nil {
		return models.Coordinate{}, err
	}
	return loc.Coordinate, nil
}
