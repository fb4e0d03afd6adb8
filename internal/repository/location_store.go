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

// LocationStore keeps the latest position reported by each user's device so
// guardians can poll it and the SOS flow can fall back to it.
type LocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocationStore(client *redis.Client, ttl time.Duration) *LocationStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LocationStore{
		client: client,
		ttl:    ttl,
	}
}

func locationKey(userID string) string {
	return "sos:location:" + userID
}

// SaveLocation overwrites the user's live location.
func (s *LocationStore) SaveLocation(ctx context.Context, loc models.LiveLocation) error {
	if loc.UserID == "" {
		return errors.New("location: user id required")
	}
	if err := loc.Coordinate.Validate(); err != nil {
		return err
	}
	if loc.UpdatedAt.IsZero() {
		loc.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, locationKey(loc.UserID), payload, s.ttl).Err()
}

// GetLocation returns nil, nil when no location is known.
func (s *LocationStore) GetLocation(ctx context.Context, userID string) (*models.LiveLocation, error) {
	raw, err := s.client.Get(ctx, locationKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loc models.LiveLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("location: corrupt entry for %s: %w", userID, err)
	}
	return &loc, nil
}

// DeleteLocation forgets the user's live location, e.g. on logout.
func (s *LocationStore) DeleteLocation(ctx context.Context, userID string) error {
	return s.client.Del(ctx, locationKey(userID)).Err()
}
