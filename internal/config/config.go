package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

const (
	DriverSatellite = "satellite"
	DriverGateway   = "gateway"
)

// Config holds SOS service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	DatabaseURL   string
	ContactsTable string

	RedisURL           string
	LocationTTL        time.Duration
	LocationMaxAge     time.Duration
	EnrichmentCacheTTL time.Duration

	RabbitURL       string
	SOSExchange     string
	SOSRoutingKey   string
	SOSQueue        string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int

	ChannelDriver         string
	GatewayURL            string
	GatewayAPIKey         string
	ProviderTimeout       time.Duration
	SatelliteConnectDelay time.Duration
	SatelliteSendDelay    time.Duration
	SatelliteCallDelay    time.Duration

	ConnectMaxAttempts    int
	ConnectInitialBackoff time.Duration
	ConnectMaxBackoff     time.Duration

	TriggerTimeout  time.Duration
	LocateTimeout   time.Duration
	EnrichTimeout   time.Duration
	EscalationDelay time.Duration
	FallbackLat     float64
	FallbackLng     float64

	GeocoderURL       string
	LandmarksURL      string
	GeocoderUserAgent string
	GeocoderRPS       float64
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "sos_service"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		HTTPPort:  getEnv("HTTP_PORT", "8085"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ContactsTable: getEnv("CONTACTS_TABLE", "emergency_contacts"),

		RedisURL:           getEnv("REDIS_URL", ""),
		LocationTTL:        getEnvAsDuration("LOCATION_TTL", 24*time.Hour),
		LocationMaxAge:     getEnvAsDuration("LOCATION_MAX_AGE", 15*time.Minute),
		EnrichmentCacheTTL: getEnvAsDuration("ENRICHMENT_CACHE_TTL", 6*time.Hour),

		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		SOSExchange:     getEnv("SOS_EXCHANGE", "alerts.direct"),
		SOSRoutingKey:   getEnv("SOS_ROUTING_KEY", "sos"),
		SOSQueue:        getEnv("SOS_QUEUE", "sos.queue"),
		DeadLetterQueue: getEnv("SOS_DLQ", "sos.failed"),
		PrefetchCount:   getEnvAsInt("SOS_PREFETCH", 10),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 5),

		ChannelDriver:         strings.ToLower(getEnv("CHANNEL_DRIVER", DriverSatellite)),
		GatewayURL:            getEnv("GATEWAY_URL", ""),
		GatewayAPIKey:         getEnv("GATEWAY_API_KEY", ""),
		ProviderTimeout:       getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SatelliteConnectDelay: getEnvAsDuration("SATELLITE_CONNECT_DELAY", time.Second),
		SatelliteSendDelay:    getEnvAsDuration("SATELLITE_SEND_DELAY", 2*time.Second),
		SatelliteCallDelay:    getEnvAsDuration("SATELLITE_CALL_DELAY", 1500*time.Millisecond),

		ConnectMaxAttempts:    getEnvAsInt("CONNECT_MAX_ATTEMPTS", 3),
		ConnectInitialBackoff: getEnvAsDuration("CONNECT_INITIAL_BACKOFF", 500*time.Millisecond),
		ConnectMaxBackoff:     getEnvAsDuration("CONNECT_MAX_BACKOFF", 5*time.Second),

		TriggerTimeout:  getEnvAsDuration("TRIGGER_TIMEOUT", 2*time.Minute),
		LocateTimeout:   getEnvAsDuration("LOCATE_TIMEOUT", 10*time.Second),
		EnrichTimeout:   getEnvAsDuration("ENRICH_TIMEOUT", 2*time.Second),
		EscalationDelay: getEnvAsDuration("ESCALATION_DELAY", time.Second),
		FallbackLat:     getEnvAsFloat("FALLBACK_LAT", 22.706213),
		FallbackLng:     getEnvAsFloat("FALLBACK_LNG", 88.394997),

		GeocoderURL:       getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		LandmarksURL:      getEnv("LANDMARKS_URL", "https://overpass-api.de/api/interpreter"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "sos_service/1.0"),
		GeocoderRPS:       getEnvAsFloat("GEOCODER_RPS", 1),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	switch c.ChannelDriver {
	case DriverSatellite:
	case DriverGateway:
		if c.GatewayURL == "" {
			missing = append(missing, "GATEWAY_URL")
		}
		if c.GatewayAPIKey == "" {
			missing = append(missing, "GATEWAY_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported CHANNEL_DRIVER %q", c.ChannelDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if err := c.Fallback().Validate(); err != nil {
		return fmt.Errorf("FALLBACK_LAT/FALLBACK_LNG: %w", err)
	}
	return nil
}

// Fallback is the coordinate used when no fix can be obtained.
func (c *Config) Fallback() models.Coordinate {
	return models.Coordinate{Lat: c.FallbackLat, Lng: c.FallbackLng}
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("invalid float for %s, using default %f: %v", key, def, err)
			return def
		}
		return f
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
