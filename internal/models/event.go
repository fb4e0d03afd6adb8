package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the person raising the alert.
type Identity struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// EmergencyEvent is the immutable record of one SOS trigger.
type EmergencyEvent struct {
	ID                  string
	Identity            Identity
	Coordinate          Coordinate
	Enrichment          *LocationEnrichment
	Timestamp           time.Time
	BatteryLevel        *int
	ApproximateLocation bool
}

// NewEmergencyEvent builds an event with a fresh ID. The enrichment and battery
// values are copied so later changes by the caller do not leak into the event.
func NewEmergencyEvent(identity Identity, coord Coordinate, enrichment *LocationEnrichment, at time.Time, battery *int) EmergencyEvent {
	ev := EmergencyEvent{
		ID:         uuid.NewString(),
		Identity:   identity,
		Coordinate: coord,
		Timestamp:  at,
	}
	if enrichment != nil {
		trimmed := enrichment.Trimmed()
		ev.Enrichment = &trimmed
	}
	if battery != nil {
		level := clampPercent(*battery)
		ev.BatteryLevel = &level
	}
	return ev
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
