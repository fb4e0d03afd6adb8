package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

func testEvent() models.EmergencyEvent {
	battery := 76
	return models.EmergencyEvent{
		ID:         "evt-1",
		Identity:   models.Identity{Name: "Priya Sharma", Phone: "+91 98765 43200"},
		Coordinate: models.Coordinate{Lat: 22.706213, Lng: 88.394997},
		Enrichment: &models.LocationEnrichment{
			PlaceName:       "Sodepur Station",
			Address:         "Station Road, Sodepur, West Bengal 700110",
			NearbyLandmarks: []string{"Sodepur Market", "Panihati Hospital"},
		},
		Timestamp:    fixedTime,
		BatteryLevel: &battery,
	}
}

func TestComposeMessage_WithEnrichment(t *testing.T) {
	msg, err := ComposeMessage(testEvent())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg, "🚨 SOS ALERT 🚨\nPriya Sharma needs immediate help!"))
	assert.Contains(t, msg, "🏢 Place: Sodepur Station")
	assert.Contains(t, msg, "📮 Address: Station Road, Sodepur, West Bengal 700110")
	assert.Contains(t, msg, "🗺️ Nearby: Sodepur Market, Panihati Hospital")
	assert.Contains(t, msg, "🔋 Battery: 76%")
	assert.Contains(t, msg, "📱 Phone: +91 98765 43200")
	assert.Contains(t, msg, "🕐 Time: Nov 5, 2024 6:30:00 PM UTC")
	assert.True(t, strings.HasSuffix(msg, alertFooter))
}

func TestComposeMessage_SectionOrder(t *testing.T) {
	msg, err := ComposeMessage(testEvent())
	require.NoError(t, err)

	markers := []string{"🚨 SOS ALERT", "📍 LOCATION DETAILS:", "🏢 Place:", "📮 Address:", "🗺️ Nearby:",
		"🌐 GPS:", "🔗 Map Link:", "🕐 Time:", "🔋 Battery:", "📱 Phone:", alertFooter}
	last := -1
	for _, m := range markers {
		idx := strings.Index(msg, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q out of order", m)
		last = idx
	}
}

func TestComposeMessage_CoordinatesOnly(t *testing.T) {
	ev := testEvent()
	ev.Enrichment = nil
	ev.BatteryLevel = nil
	ev.Identity.Phone = ""

	msg, err := ComposeMessage(ev)
	require.NoError(t, err)

	assert.NotContains(t, msg, "Place:")
	assert.NotContains(t, msg, "Address:")
	assert.NotContains(t, msg, "Nearby:")
	assert.NotContains(t, msg, "Battery:")
	assert.NotContains(t, msg, "Phone:")
	assert.NotContains(t, msg, "undefined")
	assert.NotContains(t, msg, "<nil>")
	assert.Contains(t, msg, "🌐 GPS: 22.706213, 88.394997")
}

func TestComposeMessage_NoLandmarksLine(t *testing.T) {
	ev := testEvent()
	ev.Enrichment.NearbyLandmarks = nil

	msg, err := ComposeMessage(ev)
	require.NoError(t, err)
	assert.Contains(t, msg, "🏢 Place:")
	assert.NotContains(t, msg, "Nearby:")
}

func TestComposeMessage_CoordinateFormatting(t *testing.T) {
	msg, err := ComposeMessage(testEvent())
	require.NoError(t, err)

	assert.Contains(t, msg, "🌐 GPS: 22.706213, 88.394997\n")
	assert.Contains(t, msg, "🔗 Map Link: https://maps.google.com/?q=22.706213,88.394997\n")
}

func TestComposeMessage_Deterministic(t *testing.T) {
	ev := testEvent()
	first, err := ComposeMessage(ev)
	require.NoError(t, err)
	second, err := ComposeMessage(ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComposeMessage_ZeroBatteryIsShown(t *testing.T) {
	ev := testEvent()
	zero := 0
	ev.BatteryLevel = &zero

	msg, err := ComposeMessage(ev)
	require.NoError(t, err)
	assert.Contains(t, msg, "🔋 Battery: 0%")
}

func TestComposeMessage_Approximate(t *testing.T) {
	ev := testEvent()
	ev.ApproximateLocation = true

	msg, err := ComposeMessage(ev)
	require.NoError(t, err)
	assert.Contains(t, msg, "Location is approximate")
}

func TestComposeMessage_InvalidEvent(t *testing.T) {
	ev := testEvent()
	ev.Identity.Name = "  "
	_, err := ComposeMessage(ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev = testEvent()
	ev.Coordinate.Lat = 123
	_, err = ComposeMessage(ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestComposeLocationUpdate(t *testing.T) {
	msg, err := ComposeLocationUpdate(models.Coordinate{Lat: 28.6139, Lng: 77.209}, fixedTime)
	require.NoError(t, err)
	assert.Contains(t, msg, "Latitude: 28.613900")
	assert.Contains(t, msg, "Longitude: 77.209000")
	assert.Contains(t, msg, "https://maps.google.com/?q=28.613900,77.209000")
}
