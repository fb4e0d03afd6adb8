package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Handler processes one delivery and is responsible for acking it.
type Handler func(ctx context.Context, msg amqp.Delivery) error

// Topology names where SOS triggers are published and where failed ones end up.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
	DeadLetter string
}

func (t Topology) withDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = "alerts.direct"
	}
	if t.RoutingKey == "" {
		t.RoutingKey = "sos"
	}
	if t.Queue == "" {
		t.Queue = "sos.queue"
	}
	return t
}

// BaseConsumer owns the AMQP channel and a fixed pool of workers. Each
// delivery is handled on its own context, detached from the consumer's
// lifetime and bounded by the handler timeout, so shutting down stops intake
// but lets running SOS triggers finish.
type BaseConsumer struct {
	conn           *amqp.Connection
	topology       Topology
	prefetch       int
	workerCount    int
	handlerTimeout time.Duration
	logger         *slog.Logger
}

func NewBaseConsumer(conn *amqp.Connection, topology Topology, prefetch, workerCount int, handlerTimeout time.Duration, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 10
	}
	if workerCount <= 0 {
		workerCount = 5
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 2 * time.Minute
	}
	return &BaseConsumer{
		conn:           conn,
		topology:       topology.withDefaults(),
		prefetch:       prefetch,
		workerCount:    workerCount,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}
}

// Start consumes until ctx is cancelled or the broker closes the channel.
// It returns once every in-flight handler has finished.
func (c *BaseConsumer) Start(ctx context.Context, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.declare(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consuming sos triggers",
		slog.String("queue", c.topology.Queue),
		slog.Int("workers", c.workerCount))
	c.run(ctx, deliveries, handler)

	if ctx.Err() == nil {
		return errors.New("amqp delivery channel closed")
	}
	c.logger.Info("sos consumer drained", slog.String("queue", c.topology.Queue))
	return nil
}

func (c *BaseConsumer) run(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) {
	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						// Picked up during shutdown; hand it back untouched.
						_ = msg.Nack(false, true)
						return
					}
					c.handle(ctx, id, msg, handler)
				}
			}
		}(i)
	}
	wg.Wait()
}

func (c *BaseConsumer) handle(ctx context.Context, worker int, msg amqp.Delivery, handler Handler) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.handlerTimeout)
	defer cancel()

	start := time.Now()
	if err := handler(hctx, msg); err != nil {
		c.logger.Error("handler returned error",
			slog.Int("worker", worker),
			slog.Uint64("delivery_tag", msg.DeliveryTag),
			slog.Any("error", err))
		return
	}
	c.logger.Debug("delivery handled",
		slog.Int("worker", worker),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
		slog.Duration("took", time.Since(start)))
}

func (c *BaseConsumer) declare(ch *amqp.Channel) error {
	t := c.topology
	args := amqp.Table{}
	if t.DeadLetter != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = t.DeadLetter
		if _, err := ch.QueueDeclare(t.DeadLetter, true, false, false, false, nil); err != nil {
			return err
		}
	}
	if err := ch.ExchangeDeclare(t.Exchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return err
	}
	return ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil)
}
