package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/config"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/consumer"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/routes"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting sos service", slog.String("app", cfg.AppName), slog.String("channel", cfg.ChannelDriver))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}
	contactStore, err := repository.NewContactStore(db, cfg.ContactsTable)
	if err != nil {
		logr.Error("failed to prepare contact store", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logr.Error("invalid redis url", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	locationStore := repository.NewLocationStore(rdb, cfg.LocationTTL)
	enrichmentCache := repository.NewEnrichmentCache(rdb, cfg.EnrichmentCacheTTL)

	metricsCollector := metrics.New()
	connectRetry := retry.Config{
		MaxAttempts:    cfg.ConnectMaxAttempts,
		InitialBackoff: cfg.ConnectInitialBackoff,
		MaxBackoff:     cfg.ConnectMaxBackoff,
	}

	var channel services.Channel
	switch cfg.ChannelDriver {
	case config.DriverGateway:
		channel = services.NewGatewayChannel(cfg.GatewayAPIKey, cfg.GatewayURL, cfg.ProviderTimeout, connectRetry, logr)
	default:
		satCfg := services.DefaultSatelliteConfig()
		satCfg.ConnectDelay = cfg.SatelliteConnectDelay
		satCfg.SendDelay = cfg.SatelliteSendDelay
		satCfg.CallDelay = cfg.SatelliteCallDelay
		satCfg.Retry = connectRetry
		channel = services.NewSatelliteChannel(satCfg, nil, logr)
	}

	dispatcher := services.NewDispatcher(channel, metricsCollector, logr, cfg.EscalationDelay)
	geocoder := services.NewGeocodeClient(
		cfg.GeocoderURL,
		cfg.LandmarksURL,
		cfg.GeocoderUserAgent,
		cfg.GeocoderRPS,
		cfg.ProviderTimeout,
		logr,
	)
	enricher := services.NewCachedEnricher(geocoder, enrichmentCache, logr)
	locator := services.LastKnownLocator{
		Store:  locationStore,
		MaxAge: cfg.LocationMaxAge,
	}
	orchestrator := services.NewOrchestrator(
		dispatcher,
		locator,
		enricher,
		contactStore,
		metricsCollector,
		logr,
		services.OrchestratorConfig{
			LocateTimeout: cfg.LocateTimeout,
			EnrichTimeout: cfg.EnrichTimeout,
			Fallback:      cfg.Fallback(),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	httpSrv := startHTTPServer(cfg.HTTPPort, routes.Deps{
		SOS:       orchestrator,
		Messenger: dispatcher,
		Locations: locationStore,
		Contacts:  contactStore,
		Metrics:   metricsCollector,
		Logger:    logr,
		Started:   started,

		TriggerTimeout: cfg.TriggerTimeout,
	}, logr)

	done := make(chan struct{})
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logr.Error("failed to connect rabbitmq", slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Close()

		base := consumer.NewBaseConsumer(
			conn,
			consumer.Topology{
				Exchange:   cfg.SOSExchange,
				RoutingKey: cfg.SOSRoutingKey,
				Queue:      cfg.SOSQueue,
				DeadLetter: cfg.DeadLetterQueue,
			},
			cfg.PrefetchCount,
			cfg.WorkerCount,
			cfg.TriggerTimeout,
			logr,
		)
		sosConsumer := consumer.NewSOSConsumer(base, orchestrator, logr)
		go func() {
			defer close(done)
			if err := sosConsumer.Start(ctx); err != nil {
				logr.Error("sos consumer exited", slog.Any("error", err))
				stop()
			}
		}()
	} else {
		logr.Info("RABBITMQ_URL not set, queue consumer disabled")
		close(done)
	}

	<-ctx.Done()
	shutdownHTTP(httpSrv, cfg.TriggerTimeout, logr)
	<-done
	logr.Info("sos service stopped")
}

func newRedisClient(raw string) (*redis.Client, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: raw}), nil
}

func startHTTPServer(port string, deps routes.Deps, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "8085"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

// shutdownHTTP waits up to grace for running SOS requests to finish.
func shutdownHTTP(srv *http.Server, grace time.Duration, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
