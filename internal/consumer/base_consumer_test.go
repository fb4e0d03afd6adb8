package consumer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/pkg/logger"
)

func newTestBase(workers int, timeout time.Duration) *BaseConsumer {
	return NewBaseConsumer(nil, Topology{}, 1, workers, timeout, logger.Discard())
}

func TestTopologyDefaults(t *testing.T) {
	c := newTestBase(1, 0)
	assert.Equal(t, "alerts.direct", c.topology.Exchange)
	assert.Equal(t, "sos", c.topology.RoutingKey)
	assert.Equal(t, "sos.queue", c.topology.Queue)
	assert.Equal(t, 2*time.Minute, c.handlerTimeout)
}

func TestRun_HandlesUntilChannelCloses(t *testing.T) {
	c := newTestBase(3, time.Second)
	deliveries := make(chan amqp.Delivery, 5)
	for i := 1; i <= 5; i++ {
		deliveries <- amqp.Delivery{Acknowledger: &fakeAck{}, DeliveryTag: uint64(i)}
	}
	close(deliveries)

	var mu sync.Mutex
	var tags []uint64
	c.run(context.Background(), deliveries, func(_ context.Context, msg amqp.Delivery) error {
		mu.Lock()
		tags = append(tags, msg.DeliveryTag)
		mu.Unlock()
		return msg.Ack(false)
	})

	assert.ElementsMatch(t, []uint64{1, 2, 3, 4, 5}, tags)
}

func TestRun_ShutdownDrainsInFlightHandler(t *testing.T) {
	c := newTestBase(1, time.Second)
	deliveries := make(chan amqp.Delivery, 1)
	ack := &fakeAck{}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr atomic.Value

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ctx, deliveries, func(hctx context.Context, msg amqp.Delivery) error {
			close(started)
			<-release
			if err := hctx.Err(); err != nil {
				handlerErr.Store(err)
			}
			return msg.Ack(false)
		})
	}()

	<-started
	cancel()
	select {
	case <-done:
		t.Fatal("run returned before the in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after the handler finished")
	}
	assert.Nil(t, handlerErr.Load(), "handler context was cancelled by shutdown")
	assert.Equal(t, 1, ack.acked)
}

func TestRun_HandlerTimeout(t *testing.T) {
	c := newTestBase(1, 20*time.Millisecond)
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: &fakeAck{}, DeliveryTag: 1}
	close(deliveries)

	var got error
	c.run(context.Background(), deliveries, func(hctx context.Context, _ amqp.Delivery) error {
		<-hctx.Done()
		got = hctx.Err()
		return got
	})
	require.Error(t, got)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestRun_NoNewWorkAfterShutdown(t *testing.T) {
	c := newTestBase(2, time.Second)
	deliveries := make(chan amqp.Delivery, 1)
	ack := &fakeAck{}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	c.run(ctx, deliveries, func(context.Context, amqp.Delivery) error {
		calls.Add(1)
		return nil
	})

	assert.Zero(t, calls.Load())
	assert.Zero(t, ack.acked)
	if ack.nacked > 0 {
		assert.True(t, ack.requeue)
	}
}
