package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/retry"
)

// GatewayChannel sends texts and places calls through an HTTP SMS/voice gateway.
type GatewayChannel struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	session  *Session
}

func NewGatewayChannel(apiKey, endpoint string, timeout time.Duration, retryCfg retry.Config, logger *slog.Logger) *GatewayChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	g := &GatewayChannel{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	g.session = NewSession(g.ping, retryCfg, 0, logger)
	return g
}

func (g *GatewayChannel) Name() string {
	return "gateway"
}

func (g *GatewayChannel) Connect(ctx context.Context) error {
	return g.session.Ensure(ctx)
}

func (g *GatewayChannel) SendText(ctx context.Context, phone, message string) error {
	if err := g.session.Ensure(ctx); err != nil {
		return err
	}
	var resp gatewayResponse
	err := g.post(ctx, "/v1/messages", map[string]string{
		"to":   phone,
		"body": message,
	}, &resp)
	if err != nil {
		return deliveryError("send_text", phone, err)
	}
	g.logger.Info("gateway text accepted", slog.String("phone", phone), slog.String("message_id", resp.ID))
	return nil
}

func (g *GatewayChannel) PlaceCall(ctx context.Context, phone string) error {
	if err := g.session.Ensure(ctx); err != nil {
		return err
	}
	var resp gatewayResponse
	if err := g.post(ctx, "/v1/calls", map[string]string{"to": phone}, &resp); err != nil {
		return deliveryError("place_call", phone, err)
	}
	g.logger.Info("gateway call initiated", slog.String("phone", phone), slog.String("call_id", resp.ID))
	return nil
}

// BatteryLevel returns -1: the gateway cannot see the handset's battery.
func (g *GatewayChannel) BatteryLevel() int { return -1 }

func (g *GatewayChannel) SignalStrength(context.Context) int {
	if g.session.Connected() {
		return 100
	}
	return 0
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (g *GatewayChannel) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/v1/health", nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return retry.Permanent(statusError(resp.StatusCode, "gateway rejected credentials"))
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, "gateway unhealthy")
	}
	return nil
}

func (g *GatewayChannel) post(ctx context.Context, path string, payload interface{}, out *gatewayResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		g.logger.Warn("undecodable gateway response",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Any("error", err))
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, out.Error)
	}
	return nil
}

func statusError(code int, detail string) error {
	if detail == "" {
		detail = http.StatusText(code)
	}
	return &DeliveryError{
		Reason: reasonForStatus(code),
		Err:    fmt.Errorf("gateway: received status %d: %s", code, detail),
	}
}

func reasonForStatus(code int) Reason {
	switch {
	case code == http.StatusBadRequest, code == http.StatusNotFound, code == http.StatusUnprocessableEntity:
		return ReasonInvalidNumber
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return ReasonTimeout
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return ReasonRejected
	default:
		return ReasonUnavailable
	}
}
