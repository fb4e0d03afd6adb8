package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

// ErrInvalidEvent is returned when an event cannot produce a coherent alert.
var ErrInvalidEvent = errors.New("invalid emergency event")

// TimeLayout is used for every timestamp printed in an alert.
const TimeLayout = "Jan 2, 2006 3:04:05 PM MST"

const alertFooter = "This is an automated emergency alert from Shakti Smart Safety. Please respond immediately!"

// ComposeMessage renders the SOS text for an event. It only reads the event,
// so the same event always yields the same text.
func ComposeMessage(event models.EmergencyEvent) (string, error) {
	name := strings.TrimSpace(event.Identity.Name)
	if name == "" {
		return "", fmt.Errorf("%w: missing sender name", ErrInvalidEvent)
	}
	if err := event.Coordinate.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.Timestamp.IsZero() {
		return "", fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}

	var b strings.Builder
	b.WriteString("🚨 SOS ALERT 🚨\n")
	fmt.Fprintf(&b, "%s needs immediate help!\n\n", name)
	b.WriteString("📍 LOCATION DETAILS:\n")

	if e := event.Enrichment; e != nil {
		if e.PlaceName != "" {
			fmt.Fprintf(&b, "🏢 Place: %s\n", e.PlaceName)
		}
		if e.Address != "" {
			fmt.Fprintf(&b, "📮 Address: %s\n", e.Address)
		}
		if len(e.NearbyLandmarks) > 0 {
			fmt.Fprintf(&b, "🗺️ Nearby: %s\n", strings.Join(e.NearbyLandmarks, ", "))
		}
	}

	fmt.Fprintf(&b, "🌐 GPS: %.6f, %.6f\n", event.Coordinate.Lat, event.Coordinate.Lng)
	fmt.Fprintf(&b, "🔗 Map Link: %s\n", event.Coordinate.MapLink())
	fmt.Fprintf(&b, "🕐 Time: %s\n", event.Timestamp.Format(TimeLayout))

	if event.BatteryLevel != nil {
		fmt.Fprintf(&b, "🔋 Battery: %d%%\n", *event.BatteryLevel)
	}
	if phone := strings.TrimSpace(event.Identity.Phone); phone != "" {
		fmt.Fprintf(&b, "📱 Phone: %s\n", phone)
	}
	if event.ApproximateLocation {
		b.WriteString("⚠️ Location is approximate (last known position).\n")
	}

	b.WriteString("\n")
	b.WriteString(alertFooter)
	return b.String(), nil
}

// ComposeLocationUpdate renders a plain position update for a guardian.
func ComposeLocationUpdate(coord models.Coordinate, at time.Time) (string, error) {
	if err := coord.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("📍 Location Update\nLatitude: %.6f\nLongitude: %.6f\nGoogle Maps: %s\nTime: %s",
		coord.Lat, coord.Lng, coord.MapLink(), at.Format(TimeLayout)), nil
}
