package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCoordinate is returned when a coordinate is NaN or out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects NaN, infinities and out-of-range values.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: lat %f out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: lng %f out of range", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// MapLink returns a Google Maps link pointing at the coordinate.
func (c Coordinate) MapLink() string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", c.Lat, c.Lng)
}

// MaxLandmarks caps how many nearby landmarks an enrichment carries.
const MaxLandmarks = 3

// LocationEnrichment is the human readable place data resolved for a coordinate.
type LocationEnrichment struct {
	PlaceName       string   `json:"place_name"`
	Address         string   `json:"address"`
	NearbyLandmarks []string `json:"nearby_landmarks,omitempty"`
}

// Trimmed returns a copy holding at most MaxLandmarks non-empty landmarks.
func (e LocationEnrichment) Trimmed() LocationEnrichment {
	landmarks := make([]string, 0, MaxLandmarks)
	for _, l := range e.NearbyLandmarks {
		if l == "" {
			continue
		}
		landmarks = append(landmarks, l)
		if len(landmarks) == MaxLandmarks {
			break
		}
	}
	e.NearbyLandmarks = landmarks
	return e
}

// Empty reports whether the enrichment carries nothing worth showing.
func (e LocationEnrichment) Empty() bool {
	return e.PlaceName == "" && e.Address == "" && len(e.NearbyLandmarks) == 0
}

// LiveLocation is the last fix reported by a user's device.
type LiveLocation struct {
	UserID     string     `json:"user_id"`
	Coordinate Coordinate `json:"coordinate"`
	Accuracy   float64    `json:"accuracy,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
