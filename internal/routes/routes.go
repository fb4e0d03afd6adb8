package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

// Triggerer runs one SOS workflow.
type Triggerer interface {
	Trigger(ctx context.Context, req models.SOSRequest) (services.Summary, error)
}

// Messenger is the ad hoc surface of the dispatcher.
type Messenger interface {
	SendSMS(ctx context.Context, phone, message string) bool
	MakeCall(ctx context.Context, phone string) bool
	SendLocationUpdate(ctx context.Context, phone string, coord models.Coordinate) bool
	BatteryLevel() int
	SignalStrength(ctx context.Context) int
}

type LocationStore interface {
	SaveLocation(ctx context.Context, loc models.LiveLocation) error
	GetLocation(ctx context.Context, userID string) (*models.LiveLocation, error)
}

type ContactStore interface {
	ListContacts(ctx context.Context, userID string) ([]models.Recipient, error)
	ReplaceContacts(ctx context.Context, userID string, contacts []models.Recipient) error
}

// Deps groups what the HTTP API needs.
type Deps struct {
	SOS       Triggerer
	Messenger Messenger
	Locations LocationStore
	Contacts  ContactStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Started   time.Time
	// TriggerTimeout bounds one SOS run once it is detached from the request.
	TriggerTimeout time.Duration
}

const defaultTriggerTimeout = 2 * time.Minute

// NewRouter wires the SOS API along with health and metrics endpoints.
func NewRouter(d Deps) http.Handler {
	h := &handler{
		sos:       d.SOS,
		messenger: d.Messenger,
		locations: d.Locations,
		contacts:  d.Contacts,
		logger:    d.Logger,
		timeout:   d.TriggerTimeout,
		now:       time.Now,
	}
	if h.timeout <= 0 {
		h.timeout = defaultTriggerTimeout
	}

	router := mux.NewRouter()
	router.Use(h.requestID)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Message: "sos service healthy",
			Meta: map[string]interface{}{
				"uptime_seconds": int(time.Since(d.Started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sos", h.triggerSOS).Methods(http.MethodPost)
	api.HandleFunc("/sms", h.sendSMS).Methods(http.MethodPost)
	api.HandleFunc("/calls", h.placeCall).Methods(http.MethodPost)
	api.HandleFunc("/device/status", h.deviceStatus).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/location", h.putLocation).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}/location", h.getLocation).Methods(http.MethodGet)
	api.HandleFunc("/guardian/users/{id}/location", h.guardianLocation).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/contacts", h.listContacts).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/contacts", h.replaceContacts).Methods(http.MethodPut)
	return router
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", id),
			slog.Duration("took", time.Since(start)))
	})
}
