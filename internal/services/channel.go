package services

import (
	"context"
	"errors"
	"fmt"
)

// Reason classifies why a delivery attempt failed.
type Reason string

const (
	ReasonUnavailable   Reason = "unavailable"
	ReasonInvalidNumber Reason = "invalid_number"
	ReasonTimeout       Reason = "timeout"
	ReasonCanceled      Reason = "canceled"
	ReasonRejected      Reason = "rejected"
)

// Channel is a transport able to send a text and place a voice call to a
// phone number (SMS gateway, VoIP, satellite modem, ...).
type Channel interface {
	Name() string
	Connect(ctx context.Context) error
	SendText(ctx context.Context, phone, message string) error
	PlaceCall(ctx context.Context, phone string) error
}

// StatusProbe reports auxiliary device status for UI widgets.
type StatusProbe interface {
	BatteryLevel() int
	SignalStrength(ctx context.Context) int
}

// DeliveryError is the failure returned by a Channel.
type DeliveryError struct {
	Op     string
	Phone  string
	Reason Reason
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Phone == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Phone, e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ReasonOf classifies any error returned by a channel.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonUnavailable
	}
}

func deliveryError(op, phone string, err error) error {
	var de *DeliveryError
	if errors.As(err, &de) {
		if de.Op != "" && de.Phone != "" {
			return err
		}
		filled := *de
		if filled.Op == "" {
			filled.Op = op
		}
		if filled.Phone == "" {
			filled.Phone = phone
		}
		return &filled
	}
	return &DeliveryError{Op: op, Phone: phone, Reason: ReasonOf(err), Err: err}
}
