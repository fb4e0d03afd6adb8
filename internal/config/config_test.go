package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/sos")
	t.Setenv("REDIS_URL", "localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSatellite, cfg.ChannelDriver)
	assert.Equal(t, 10*time.Second, cfg.LocateTimeout)
	assert.Equal(t, 2*time.Second, cfg.EnrichTimeout)
	assert.Equal(t, time.Second, cfg.EscalationDelay)
	assert.InDelta(t, 22.706213, cfg.FallbackLat, 1e-9)
	assert.InDelta(t, 88.394997, cfg.FallbackLng, 1e-9)
	assert.Equal(t, "sos.queue", cfg.SOSQueue)
	assert.Equal(t, 2*time.Minute, cfg.TriggerTimeout)
	assert.Empty(t, cfg.RabbitURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_GatewayRequiresCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("CHANNEL_DRIVER", "Gateway")
	t.Setenv("GATEWAY_URL", "")
	t.Setenv("GATEWAY_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_URL")
	assert.Contains(t, err.Error(), "GATEWAY_API_KEY")

	t.Setenv("GATEWAY_URL", "https://sms.example.com")
	t.Setenv("GATEWAY_API_KEY", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverGateway, cfg.ChannelDriver)
}

func TestLoad_UnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("CHANNEL_DRIVER", "pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("SOS_TEST_INT", "nope")
	t.Setenv("SOS_TEST_FLOAT", "north")
	t.Setenv("SOS_TEST_DURATION", "soon")

	assert.Equal(t, 7, getEnvAsInt("SOS_TEST_INT", 7))
	assert.InDelta(t, 1.5, getEnvAsFloat("SOS_TEST_FLOAT", 1.5), 1e-9)
	assert.Equal(t, time.Minute, getEnvAsDuration("SOS_TEST_DURATION", time.Minute))

	t.Setenv("SOS_TEST_FLOAT", "-33.5")
	assert.InDelta(t, -33.5, getEnvAsFloat("SOS_TEST_FLOAT", 0), 1e-9)
}

func TestLoad_FallbackOutOfRange(t *testing.T) {
	setRequired(t)
	t.Setenv("FALLBACK_LAT", "123")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FallbackNaN(t *testing.T) {
	setRequired(t)
	t.Setenv("FALLBACK_LNG", "NaN")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidCoordinate)
}
