package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/retry"
)

// ErrConnectFailed is wrapped by every connection failure.
var ErrConnectFailed = errors.New("channel connect failed")

// Session tracks whether one channel instance is connected. Concurrent
// callers share a single connect attempt; only success is remembered.
type Session struct {
	dial      func(ctx context.Context) error
	retryCfg  retry.Config
	timeout   time.Duration
	logger    *slog.Logger
	connected atomic.Bool
	group     singleflight.Group
}

func NewSession(dial func(ctx context.Context) error, retryCfg retry.Config, timeout time.Duration, logger *slog.Logger) *Session {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Session{
		dial:     dial,
		retryCfg: retryCfg,
		timeout:  timeout,
		logger:   logger,
	}
	if s.retryCfg.OnRetry == nil {
		s.retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
			logger.Warn("connect attempt failed",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.Any("error", err))
		}
	}
	return s
}

// Connected reports the cached state.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Ensure connects if needed. The shared attempt is not tied to ctx, so a
// caller giving up does not abort the connect for the other waiters.
func (s *Session) Ensure(ctx context.Context) error {
	if s.connected.Load() {
		return nil
	}
	ch := s.group.DoChan("connect", func() (interface{}, error) {
		if s.connected.Load() {
			return nil, nil
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := retry.Do(dialCtx, s.retryCfg, s.dial); err != nil {
			return nil, err
		}
		s.connected.Store(true)
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return &DeliveryError{Op: "connect", Reason: ReasonOf(res.Err), Err: errors.Join(ErrConnectFailed, res.Err)}
		}
		return nil
	case <-ctx.Done():
		return &DeliveryError{Op: "connect", Reason: ReasonOf(ctx.Err()), Err: ctx.Err()}
	}
}

// Reset forgets the connection so the next Ensure dials again.
func (s *Session) Reset() {
	s.connected.Store(false)
}
