package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/services"
)

// Triggerer runs one SOS workflow.
type Triggerer interface {
	Trigger(ctx context.Context, req models.SOSRequest) (services.Summary, error)
}

// SOSConsumer turns queued SOS requests into triggers. Failed triggers are
// dead-lettered rather than requeued: a trigger is never retried
// automatically, a new one has to be raised.
type SOSConsumer struct {
	base         *BaseConsumer
	orchestrator Triggerer
	logger       *slog.Logger
}

func NewSOSConsumer(base *BaseConsumer, orchestrator Triggerer, logger *slog.Logger) *SOSConsumer {
	return &SOSConsumer{
		base:         base,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (s *SOSConsumer) Start(ctx context.Context) error {
	return s.base.Start(ctx, s.handleDelivery)
}

func (s *SOSConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var req models.SOSRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		s.logger.Error("failed to unmarshal sos request", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}
	if strings.TrimSpace(req.User.Name) == "" {
		err := errors.New("sos request without user name")
		s.logger.Error("rejecting sos request", slog.String("request_id", req.RequestID), slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}
	if req.RequestID == "" {
		req.RequestID = msg.MessageId
	}
	if msg.Redelivered {
		s.logger.Warn("sos request redelivered", slog.String("request_id", req.RequestID))
	}

	summary, err := s.orchestrator.Trigger(ctx, req)
	switch {
	case errors.Is(err, services.ErrSuperseded):
		s.logger.Info("sos request superseded", slog.String("request_id", summary.RequestID))
		return msg.Ack(false)
	case err != nil:
		s.logger.Error("sos request failed, message dead-lettered",
			slog.String("request_id", summary.RequestID),
			slog.String("outcome", string(summary.Outcome)),
			slog.Any("error", err))
		_ = msg.Nack(false, false)
		return err
	}

	s.logger.Info("sos request processed",
		slog.String("request_id", summary.RequestID),
		slog.String("event_id", summary.EventID),
		slog.String("outcome", string(summary.Outcome)))
	return msg.Ack(false)
}
