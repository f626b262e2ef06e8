package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	applog "financetracker/internal/log"
)

// EventHandler processes one decoded event. Returning an error requeues the
// delivery.
type EventHandler func(ctx context.Context, evt *TransactionEvent) error

// ErrPermanent marks a handler error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// outcome is what a delivery ends up as
type outcome int

const (
	outcomeAck outcome = iota
	outcomeReject
	outcomeRequeue
)

// ConsumeTransactionEvents delivers events from the queue to handler one at
// a time until ctx is cancelled or the channel closes.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handler EventHandler) error {
	deliveries, err := c.startConsuming()
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var ackErr error
			switch c.handle(ctx, d.Body, handler) {
			case outcomeAck:
				ackErr = d.Ack(false)
			case outcomeReject:
				ackErr = d.Nack(false, false)
			case outcomeRequeue:
				ackErr = d.Nack(false, true)
			}
			if ackErr != nil {
				c.logger.WarnContext(ctx, "Failed to acknowledge delivery", applog.FieldError, ackErr)
			}
		}
	}
}

func (c *Client) startConsuming() (<-chan amqp091.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		c.closeLocked()
		if err := c.connect(); err != nil {
			return nil, err
		}
	}

	// One unacknowledged event at a time keeps sheet rows in publish order.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return deliveries, nil
}

// handle decodes body and runs handler, deciding how to settle the delivery.
// Undecodable bodies and permanent failures are dropped; anything else is
// retried.
func (c *Client) handle(ctx context.Context, body []byte, handler EventHandler) outcome {
	evt, err := TransactionEventFromJSON(body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode event", applog.FieldError, err)
		return outcomeReject
	}

	if err := handler(ctx, evt); err != nil {
		fields := applog.NewFields().
			WithOperation(applog.OpConsume).
			WithError(err).
			WithEntity("transaction", evt.ID).
			ToSlice()
		if errors.Is(err, ErrPermanent) {
			c.logger.ErrorContext(ctx, "Dropping event", fields...)
			return outcomeReject
		}
		c.logger.WarnContext(ctx, "Event handling failed, requeueing", fields...)
		return outcomeRequeue
	}

	c.logger.DebugContext(ctx, "Event processed", "type", evt.Type, applog.FieldEntityID, evt.ID)
	return outcomeAck
}
