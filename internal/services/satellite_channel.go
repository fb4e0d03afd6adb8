package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/retry"
)

var errSimulatedFailure = errors.New("simulated transport failure")

// Dialer hands a call off to a native dialer, e.g. by opening a tel: URI.
type Dialer interface {
	Dial(ctx context.Context, uri string) error
}

// LogDialer only logs the tel: URI. It stands in for the handset dialer.
type LogDialer struct {
	Logger *slog.Logger
}

func (d LogDialer) Dial(_ context.Context, uri string) error {
	d.Logger.Info("dialer handoff", slog.String("uri", uri))
	return nil
}

// SatelliteConfig tunes the simulated satellite link.
type SatelliteConfig struct {
	ConnectDelay time.Duration
	SendDelay    time.Duration
	CallDelay    time.Duration
	ProbeDelay   time.Duration
	Retry        retry.Config
	// ConnectFailures makes the first N dial attempts fail.
	ConnectFailures int
	// FailNumbers makes sends and calls to these numbers fail with the given reason.
	FailNumbers map[string]Reason
}

// DefaultSatelliteConfig mirrors the timings of the handset simulation.
func DefaultSatelliteConfig() SatelliteConfig {
	return SatelliteConfig{
		ConnectDelay: time.Second,
		SendDelay:    2 * time.Second,
		CallDelay:    1500 * time.Millisecond,
		ProbeDelay:   500 * time.Millisecond,
	}
}

// SatelliteChannel simulates satellite SMS and calling with fixed latencies.
type SatelliteChannel struct {
	cfg      SatelliteConfig
	session  *Session
	dialer   Dialer
	logger   *slog.Logger
	dials    atomic.Int32
	mu       sync.Mutex
	failures map[string]Reason
	rnd      *rand.Rand
}

func NewSatelliteChannel(cfg SatelliteConfig, dialer Dialer, logger *slog.Logger) *SatelliteChannel {
	if dialer == nil {
		dialer = LogDialer{Logger: logger}
	}
	c := &SatelliteChannel{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		failures: make(map[string]Reason, len(cfg.FailNumbers)),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for phone, reason := range cfg.FailNumbers {
		c.failures[normalizePhone(phone)] = reason
	}
	c.session = NewSession(c.dial, cfg.Retry, 0, logger)
	return c
}

func (c *SatelliteChannel) Name() string {
	return "satellite"
}

// Session exposes the connection state, mainly for status reporting.
func (c *SatelliteChannel) Session() *Session {
	return c.session
}

// DialAttempts returns how many times the link was dialed.
func (c *SatelliteChannel) DialAttempts() int {
	return int(c.dials.Load())
}

func (c *SatelliteChannel) dial(ctx context.Context) error {
	n := c.dials.Add(1)
	c.logger.Info("connecting to satellite network", slog.Int("attempt", int(n)))
	if err := sleep(ctx, c.cfg.ConnectDelay); err != nil {
		return err
	}
	if int(n) <= c.cfg.ConnectFailures {
		return fmt.Errorf("satellite: no link: %w", errSimulatedFailure)
	}
	c.logger.Info("connected to satellite network")
	return nil
}

func (c *SatelliteChannel) Connect(ctx context.Context) error {
	return c.session.Ensure(ctx)
}

func (c *SatelliteChannel) SendText(ctx context.Context, phone, message string) error {
	if err := c.session.Ensure(ctx); err != nil {
		return err
	}
	c.logger.Debug("sending text", slog.String("phone", phone), slog.Int("length", len(message)))
	if err := sleep(ctx, c.cfg.SendDelay); err != nil {
		return deliveryError("send_text", phone, err)
	}
	if err := c.injected("send_text", phone); err != nil {
		return err
	}
	c.logger.Info("text sent", slog.String("phone", phone))
	return nil
}

func (c *SatelliteChannel) PlaceCall(ctx context.Context, phone string) error {
	if err := c.session.Ensure(ctx); err != nil {
		return err
	}
	c.logger.Info("initiating satellite call", slog.String("phone", phone))
	if err := sleep(ctx, c.cfg.CallDelay); err != nil {
		return deliveryError("place_call", phone, err)
	}
	if err := c.injected("place_call", phone); err != nil {
		return err
	}
	if err := c.dialer.Dial(ctx, "tel:"+normalizePhone(phone)); err != nil {
		// The satellite call is already up; the handset dialer is a visible fallback only.
		c.logger.Warn("dialer handoff failed", slog.String("phone", phone), slog.Any("error", err))
	}
	return nil
}

// BatteryLevel returns a simulated battery percentage in [80,100].
func (c *SatelliteChannel) BatteryLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 80 + c.rnd.Intn(21)
}

// SignalStrength returns a simulated signal percentage in [70,100], or 0
// when the probe is cancelled.
func (c *SatelliteChannel) SignalStrength(ctx context.Context) int {
	if err := sleep(ctx, c.cfg.ProbeDelay); err != nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return 70 + c.rnd.Intn(31)
}

func (c *SatelliteChannel) injected(op, phone string) error {
	c.mu.Lock()
	reason, ok := c.failures[normalizePhone(phone)]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return &DeliveryError{Op: op, Phone: phone, Reason: reason, Err: errSimulatedFailure}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalizePhone strips formatting so "+91 98765-43210" and "+919876543210" match.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
