package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/metrics"
)

// ErrSuperseded is the cancellation cause of a trigger replaced by a newer
// trigger for the same user.
var ErrSuperseded = errors.New("sos superseded by a newer trigger")

// State is a step of one SOS invocation.
type State string

const (
	StateIdle           State = "idle"
	StateLocatingFix    State = "locating_fix"
	StateFixAcquired    State = "fix_acquired"
	StateFixFallback    State = "fix_fallback"
	StateDispatching    State = "dispatching"
	StateDelivered      State = "delivered"
	StateDeliveryFailed State = "delivery_failed"
)

// Outcome is what the user is told after a trigger.
type Outcome string

const (
	OutcomeDetailed    Outcome = "delivered_detailed"
	OutcomeCoordinates Outcome = "delivered_coordinates"
	OutcomeFailed      Outcome = "failed"
	OutcomeSuperseded  Outcome = "superseded"
)

const (
	warnFixFailed   = "Unable to fetch device GPS. Approximate location used."
	warnUnsupported = "Location not available for this device. Approximate location used."
	manualFallback  = "SOS may not have been delivered. Please call your emergency contacts manually."
)

// SOSSender is the fan-out step used by the orchestrator.
type SOSSender interface {
	SendSOS(ctx context.Context, event models.EmergencyEvent, recipients []models.Recipient) (models.DispatchReport, error)
}

// ContactLister loads a user's stored emergency contacts, primary first.
type ContactLister interface {
	ListContacts(ctx context.Context, userID string) ([]models.Recipient, error)
}

type batteryReader interface {
	BatteryLevel() int
}

// OrchestratorConfig bounds each suspension point of a trigger.
type OrchestratorConfig struct {
	LocateTimeout time.Duration
	EnrichTimeout time.Duration
	Fallback      models.Coordinate
}

// Summary is the user-facing result of one trigger.
type Summary struct {
	RequestID  string                     `json:"request_id"`
	EventID    string                     `json:"event_id,omitempty"`
	Outcome    Outcome                    `json:"outcome"`
	Message    string                     `json:"message"`
	Warning    string                     `json:"warning,omitempty"`
	Coordinate models.Coordinate          `json:"coordinate"`
	Enrichment *models.LocationEnrichment `json:"enrichment,omitempty"`
	Report     models.DispatchReport      `json:"report"`
	States     []State                    `json:"states"`
}

// Orchestrator runs the SOS workflow: locate, enrich, dispatch, report.
type Orchestrator struct {
	sender   SOSSender
	locator  Locator
	enricher Enricher
	contacts ContactLister
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      OrchestratorConfig
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]*trigger
}

type trigger struct {
	cancel context.CancelCauseFunc
}

// NewOrchestrator wires the workflow. locator, enricher and contacts may be nil.
func NewOrchestrator(
	sender SOSSender,
	locator Locator,
	enricher Enricher,
	contacts ContactLister,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = 10 * time.Second
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 2 * time.Second
	}
	return &Orchestrator{
		sender:   sender,
		locator:  locator,
		enricher: enricher,
		contacts: contacts,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		inflight: make(map[string]*trigger),
	}
}

// Trigger runs one SOS. A non-nil error comes with an OutcomeFailed or
// OutcomeSuperseded summary that is still safe to show to the user.
func (o *Orchestrator) Trigger(ctx context.Context, req models.SOSRequest) (Summary, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	o.metrics.IncTriggered()

	ctx, finish := o.begin(ctx, req.User.ID)
	defer finish()

	log := o.logger.With(slog.String("request_id", req.RequestID), slog.String("user_id", req.User.ID))
	s := Summary{RequestID: req.RequestID}
	move := func(st State) {
		s.States = append(s.States, st)
		log.Debug("sos state", slog.String("state", string(st)))
	}
	move(StateIdle)

	move(StateLocatingFix)
	coord, warning := o.locate(ctx, req)
	approximate := warning != ""
	if approximate {
		o.metrics.IncFallback()
		log.Warn("using fallback coordinate", slog.String("warning", warning))
		move(StateFixFallback)
	} else {
		move(StateFixAcquired)
	}
	s.Coordinate = coord
	s.Warning = warning

	enrichment := o.enrich(ctx, coord, log)
	recipients := o.recipients(ctx, req, log)

	battery := req.BatteryLevel
	if battery == nil {
		if b, ok := o.sender.(batteryReader); ok {
			if level := b.BatteryLevel(); level >= 0 {
				battery = &level
			}
		}
	}

	event := models.NewEmergencyEvent(req.User.Identity(), coord, enrichment, o.now(), battery)
	event.ApproximateLocation = approximate
	s.EventID = event.ID
	s.Enrichment = event.Enrichment

	move(StateDispatching)
	report, err := o.sender.SendSOS(ctx, event, recipients)
	s.Report = report

	if err == nil && report.SentCount() == 0 && len(report.Outcomes) > 0 && context.Cause(ctx) != nil {
		err = context.Cause(ctx)
	}
	if err != nil {
		move(StateDeliveryFailed)
		move(StateIdle)
		if errors.Is(context.Cause(ctx), ErrSuperseded) {
			s.Outcome = OutcomeSuperseded
			s.Message = "This SOS was replaced by a newer alert."
			log.Warn("sos superseded", slog.String("event_id", event.ID))
			return s, ErrSuperseded
		}
		s.Outcome = OutcomeFailed
		s.Message = manualFallback
		log.Error("sos dispatch failed", slog.String("event_id", event.ID), slog.Any("error", err))
		return s, err
	}

	move(StateDelivered)
	move(StateIdle)
	s.Outcome, s.Message = deliveredSummary(event, report)
	log.Info("sos delivered",
		slog.String("event_id", event.ID),
		slog.Int("sent", report.SentCount()),
		slog.Int("recipients", len(report.Outcomes)),
		slog.Bool("primary_call", report.PrimaryCallPlaced))
	return s, nil
}

// begin registers the trigger for userID and cancels the one it replaces.
func (o *Orchestrator) begin(parent context.Context, userID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if userID == "" {
		return ctx, func() { cancel(nil) }
	}

	t := &trigger{cancel: cancel}
	o.mu.Lock()
	if prev, ok := o.inflight[userID]; ok {
		prev.cancel(ErrSuperseded)
		o.metrics.IncSuperseded()
	}
	o.inflight[userID] = t
	o.mu.Unlock()

	return ctx, func() {
		o.mu.Lock()
		if o.inflight[userID] == t {
			delete(o.inflight, userID)
		}
		o.mu.Unlock()
		cancel(nil)
	}
}

func (o *Orchestrator) locate(ctx context.Context, req models.SOSRequest) (models.Coordinate, string) {
	if req.Location != nil {
		if err := req.Location.Validate(); err == nil {
			return *req.Location, ""
		}
		o.logger.Warn("ignoring invalid request coordinate", slog.String("request_id", req.RequestID))
	}
	if o.locator == nil {
		return o.cfg.Fallback, warnUnsupported
	}

	locCtx, cancel := context.WithTimeout(ctx, o.cfg.LocateTimeout)
	defer cancel()

	type fix struct {
		coord models.Coordinate
		err   error
	}
	ch := make(chan fix, 1)
	go func() {
		c, err := o.locator.Locate(locCtx, req.User.ID, LocateOptions{HighAccuracy: true})
		ch <- fix{c, err}
	}()

	select {
	case f := <-ch:
		switch {
		case errors.Is(f.err, ErrLocationUnavailable):
			return o.cfg.Fallback, warnUnsupported
		case f.err != nil:
			o.logger.Warn("location fix failed", slog.Any("error", f.err))
			return o.cfg.Fallback, warnFixFailed
		case f.coord.Validate() != nil:
			return o.cfg.Fallback, warnFixFailed
		}
		return f.coord, ""
	case <-locCtx.Done():
		o.logger.Warn("location fix timed out", slog.Duration("timeout", o.cfg.LocateTimeout))
		return o.cfg.Fallback, warnFixFailed
	}
}

func (o *Orchestrator) enrich(ctx context.Context, coord models.Coordinate, log *slog.Logger) *models.LocationEnrichment {
	if o.enricher == nil {
		return nil
	}
	enrichCtx, cancel := context.WithTimeout(ctx, o.cfg.EnrichTimeout)
	defer cancel()

	type result struct {
		e   *models.LocationEnrichment
		err error
	}
	ch := make(chan result, 1)
	go func() {
		e, err := o.enricher.Enrich(enrichCtx, coord)
		ch <- result{e, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			o.metrics.IncEnrichment("error")
			log.Warn("location enrichment failed", slog.Any("error", r.err))
			return nil
		}
		if r.e == nil || r.e.Empty() {
			o.metrics.IncEnrichment("empty")
			return nil
		}
		o.metrics.IncEnrichment("success")
		return r.e
	case <-enrichCtx.Done():
		o.metrics.IncEnrichment("timeout")
		log.Warn("location enrichment timed out", slog.Duration("timeout", o.cfg.EnrichTimeout))
		return nil
	}
}

func (o *Orchestrator) recipients(ctx context.Context, req models.SOSRequest, log *slog.Logger) []models.Recipient {
	if len(req.Recipients) > 0 || o.contacts == nil || req.User.ID == "" {
		return req.Recipients
	}
	contacts, err := o.contacts.ListContacts(ctx, req.User.ID)
	if err != nil {
		log.Error("failed to load emergency contacts", slog.Any("error", err))
		return nil
	}
	return contacts
}

func deliveredSummary(event models.EmergencyEvent, report models.DispatchReport) (Outcome, string) {
	total := len(report.Outcomes)
	sent := report.SentCount()

	var b strings.Builder
	switch {
	case total == 0:
		b.WriteString("SOS recorded, but you have no emergency contacts to notify.")
	case sent == 0:
		fmt.Fprintf(&b, "SOS could not reach any of your %d contacts. Please call them manually.", total)
	default:
		fmt.Fprintf(&b, "SOS sent to %d of %d contacts.", sent, total)
		if report.PrimaryCallPlaced {
			fmt.Fprintf(&b, " Calling %s.", report.Outcomes[0].Recipient.Name)
		}
	}

	if e := event.Enrichment; e != nil {
		place := strings.Join(nonEmpty(e.PlaceName, e.Address), ", ")
		if place != "" {
			fmt.Fprintf(&b, " Location: %s.", place)
		}
		if len(e.NearbyLandmarks) > 0 {
			fmt.Fprintf(&b, " Nearby: %s.", strings.Join(e.NearbyLandmarks, ", "))
		}
		return OutcomeDetailed, b.String()
	}
	fmt.Fprintf(&b, " Location: %.6f, %.6f (%s).", event.Coordinate.Lat, event.Coordinate.Lng, event.Coordinate.MapLink())
	return OutcomeCoordinates, b.String()
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
