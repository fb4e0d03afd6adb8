package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/metrics"
)

// Dispatcher fans an SOS out over a Channel.
type Dispatcher struct {
	channel         Channel
	metrics         *metrics.Metrics
	logger          *slog.Logger
	escalationDelay time.Duration
	now             func() time.Time
}

func NewDispatcher(channel Channel, metrics *metrics.Metrics, logger *slog.Logger, escalationDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		channel:         channel,
		metrics:         metrics,
		logger:          logger,
		escalationDelay: escalationDelay,
		now:             time.Now,
	}
}

// SendSOS texts every recipient concurrently, waits for the whole batch and
// then calls recipients[0]. An error means the channel was unreachable, the
// event could not be composed, or ctx was cancelled before the fan-out and
// call finished; in the last case the report holds what did go out.
// Per-recipient failures alone are only reported in the returned report.
func (d *Dispatcher) SendSOS(ctx context.Context, event models.EmergencyEvent, recipients []models.Recipient) (models.DispatchReport, error) {
	report := models.DispatchReport{EventID: event.ID}

	if err := d.channel.Connect(ctx); err != nil {
		d.metrics.IncDispatched(false)
		d.logger.Error("sos channel unreachable", slog.String("event_id", event.ID), slog.Any("error", err))
		return report, fmt.Errorf("sos %s: %w", event.ID, err)
	}

	message, err := ComposeMessage(event)
	if err != nil {
		d.metrics.IncDispatched(false)
		d.logger.Error("failed to compose sos", slog.String("event_id", event.ID), slog.Any("error", err))
		return report, fmt.Errorf("sos %s: %w", event.ID, err)
	}

	d.logger.Info("sending sos alert",
		slog.String("event_id", event.ID),
		slog.String("channel", d.channel.Name()),
		slog.Int("recipients", len(recipients)))

	report.Outcomes = make([]models.DeliveryOutcome, len(recipients))
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r models.Recipient) {
			defer wg.Done()
			report.Outcomes[i] = d.sendOne(ctx, event.ID, r, message)
		}(i, r)
	}
	wg.Wait()

	d.logger.Info("sos texts settled",
		slog.String("event_id", event.ID),
		slog.Int("sent", report.SentCount()),
		slog.Int("total", len(recipients)))

	if len(recipients) > 0 {
		primary := recipients[0]
		if err := sleep(ctx, d.escalationDelay); err != nil {
			report.CallReason = string(ReasonOf(err))
		} else if err := d.channel.PlaceCall(ctx, primary.Phone); err != nil {
			report.CallReason = string(ReasonOf(err))
			d.metrics.IncCall(false, report.CallReason)
			d.logger.Error("escalation call failed",
				slog.String("event_id", event.ID),
				slog.String("phone", primary.Phone),
				slog.Any("error", err))
		} else {
			report.PrimaryCallPlaced = true
			d.metrics.IncCall(true, "")
		}
	}

	if ctx.Err() != nil {
		d.metrics.IncDispatched(false)
		d.logger.Warn("sos dispatch interrupted",
			slog.String("event_id", event.ID),
			slog.Int("sent", report.SentCount()),
			slog.Any("cause", context.Cause(ctx)))
		return report, fmt.Errorf("sos %s interrupted: %w", event.ID, context.Cause(ctx))
	}

	d.metrics.IncDispatched(true)
	return report, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, eventID string, r models.Recipient, message string) models.DeliveryOutcome {
	outcome := models.DeliveryOutcome{Recipient: r}
	if err := d.channel.SendText(ctx, r.Phone, message); err != nil {
		outcome.Reason = string(ReasonOf(err))
		outcome.Error = err.Error()
		d.metrics.IncText(false, outcome.Reason)
		d.logger.Warn("sos text failed",
			slog.String("event_id", eventID),
			slog.String("recipient", r.Name),
			slog.String("phone", r.Phone),
			slog.Any("error", err))
		return outcome
	}
	outcome.SMSSent = true
	d.metrics.IncText(true, "")
	return outcome
}

// SendSMS sends an ad-hoc text. Failures are logged and reported as false.
func (d *Dispatcher) SendSMS(ctx context.Context, phone, message string) bool {
	if err := d.channel.SendText(ctx, phone, message); err != nil {
		d.metrics.IncText(false, string(ReasonOf(err)))
		d.logger.Error("failed to send sms", slog.String("phone", phone), slog.Any("error", err))
		return false
	}
	d.metrics.IncText(true, "")
	return true
}

// MakeCall places an ad-hoc call. Failures are logged and reported as false.
func (d *Dispatcher) MakeCall(ctx context.Context, phone string) bool {
	if err := d.channel.PlaceCall(ctx, phone); err != nil {
		d.metrics.IncCall(false, string(ReasonOf(err)))
		d.logger.Error("failed to make call", slog.String("phone", phone), slog.Any("error", err))
		return false
	}
	d.metrics.IncCall(true, "")
	return true
}

// SendLocationUpdate texts the current position to one phone.
func (d *Dispatcher) SendLocationUpdate(ctx context.Context, phone string, coord models.Coordinate) bool {
	message, err := ComposeLocationUpdate(coord, d.now())
	if err != nil {
		d.logger.Error("failed to compose location update", slog.Any("error", err))
		return false
	}
	return d.SendSMS(ctx, phone, message)
}

// BatteryLevel returns the device battery percentage, or -1 when the channel
// cannot report it.
func (d *Dispatcher) BatteryLevel() int {
	if p, ok := d.channel.(StatusProbe); ok {
		return p.BatteryLevel()
	}
	return -1
}

// SignalStrength returns the link signal percentage, or -1 when unknown.
func (d *Dispatcher) SignalStrength(ctx context.Context) int {
	if p, ok := d.channel.(StatusProbe); ok {
		return p.SignalStrength(ctx)
	}
	return -1
}
