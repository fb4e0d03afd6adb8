package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/retry"
)

func newGatewayServer(t *testing.T, health int, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var pings atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(health)
	})
	mux.HandleFunc("/v1/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &pings
}

func TestGatewayChannel_SendText(t *testing.T) {
	var got map[string]string
	srv, pings := newGatewayServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-1", "status": "queued"})
	})
	g := NewGatewayChannel("secret", srv.URL+"/", time.Second, retry.Config{MaxAttempts: 1}, logger.Discard())

	require.NoError(t, g.SendText(context.Background(), "+15550001", "help"))
	require.NoError(t, g.SendText(context.Background(), "+15550001", "help again"))

	assert.Equal(t, "+15550001", got["to"])
	assert.Equal(t, "help again", got["body"])
	assert.Equal(t, int32(1), pings.Load())
	assert.Equal(t, 100, g.SignalStrength(context.Background()))
}

func TestGatewayChannel_StatusReasons(t *testing.T) {
	cases := map[int]Reason{
		http.StatusUnprocessableEntity: ReasonInvalidNumber,
		http.StatusTooManyRequests:     ReasonRejected,
		http.StatusGatewayTimeout:      ReasonTimeout,
		http.StatusBadGateway:          ReasonUnavailable,
	}
	for code, want := range cases {
		code, want := code, want
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv, _ := newGatewayServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			})
			g := NewGatewayChannel("secret", srv.URL, time.Second, retry.Config{MaxAttempts: 1}, logger.Discard())

			err := g.PlaceCall(context.Background(), "+15550001")
			var de *DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, want, de.Reason)
			assert.Equal(t, "place_call", de.Op)
			assert.Equal(t, "+15550001", de.Phone)
		})
	}
}

func TestGatewayChannel_BadCredentialsNotRetried(t *testing.T) {
	srv, pings := newGatewayServer(t, http.StatusUnauthorized, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("send must not be attempted without a connection")
	})
	g := NewGatewayChannel("secret", srv.URL, time.Second,
		retry.Config{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, logger.Discard())

	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, ReasonRejected, ReasonOf(err))
	assert.Equal(t, int32(1), pings.Load())
}

func TestGatewayChannel_UndecodableResponseIsLogged(t *testing.T) {
	srv, _ := newGatewayServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>accepted</html>"))
	})
	var buf bytes.Buffer
	g := NewGatewayChannel("secret", srv.URL, time.Second, retry.Config{MaxAttempts: 1}, logger.NewWithWriter(&buf, "debug", "text"))

	require.NoError(t, g.SendText(context.Background(), "+15550001", "help"))
	assert.Contains(t, buf.String(), "undecodable gateway response")
	assert.Equal(t, -1, g.BatteryLevel())
}
