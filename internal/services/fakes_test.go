package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type channelCall struct {
	op    string
	phone string
	seq   int64
}

// recordingChannel is a Channel double that records the order of every
// operation. Sends block until release is closed, when set.
type recordingChannel struct {
	mu         sync.Mutex
	calls      []channelCall
	seq        atomic.Int64
	connectErr error
	failPhones map[string]error
	release    chan struct{}
	started    chan string
	battery    int
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{failPhones: map[string]error{}, battery: 87}
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Connect(context.Context) error {
	c.record("connect", "")
	return c.connectErr
}

func (c *recordingChannel) SendText(ctx context.Context, phone, message string) error {
	c.record("send", phone)
	if c.started != nil {
		c.started <- phone
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return deliveryError("send_text", phone, ctx.Err())
		}
	}
	if err, ok := c.failPhones[phone]; ok {
		return err
	}
	return nil
}

func (c *recordingChannel) PlaceCall(ctx context.Context, phone string) error {
	c.record("call", phone)
	if err, ok := c.failPhones["call:"+phone]; ok {
		return err
	}
	return ctx.Err()
}

func (c *recordingChannel) BatteryLevel() int { return c.battery }

func (c *recordingChannel) SignalStrength(context.Context) int { return 90 }

func (c *recordingChannel) record(op, phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, channelCall{op: op, phone: phone, seq: c.seq.Add(1)})
}

func (c *recordingChannel) ops(op string) []channelCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []channelCall
	for _, call := range c.calls {
		if call.op == op {
			out = append(out, call)
		}
	}
	return out
}

var fixedTime = time.Date(2024, 11, 5, 18, 30, 0, 0, time.UTC)
