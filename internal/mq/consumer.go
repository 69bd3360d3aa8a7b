package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery. A returned error means the message cannot
// be processed and is dropped (nack without requeue); transient failures
// must be retried inside the handler, not by redelivery.
type Handler func(ctx context.Context, d amqp.Delivery) error

type Consumer struct {
	conn     *amqp.Connection
	exchange string
	queue    string
	keys     []string
	log      *zap.SugaredLogger
}

func NewConsumer(conn *amqp.Connection, exchange, queue string, keys []string, log *zap.SugaredLogger) *Consumer {
	return &Consumer{conn: conn, exchange: exchange, queue: queue, keys: keys, log: log}
}

// Run declares the queue, binds it to its routing keys, and consumes with
// manual acknowledgement until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := DeclareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return err
	}
	for _, key := range c.keys {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Infow("consumer started", "queue", c.queue, "keys", c.keys)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			if err := handle(ctx, d); err != nil {
				// Poison messages must not loop forever: drop, log,
				// move on.
				c.log.Warnw("dropping unprocessable message", "queue", c.queue, "routing_key", d.RoutingKey, "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
