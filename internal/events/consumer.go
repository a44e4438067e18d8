package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/order"
)

// OrderUpdater applies a server-driven status change to the local mirror.
type OrderUpdater interface {
	ApplyStatus(ctx context.Context, orderID string, next order.Status) error
}

// StartOrderStatusConsumer binds a durable queue to the events exchange and
// applies order.status.v1 messages to the local mirror. Redeliveries of an
// already-processed event id are acked without a second apply.
func StartOrderStatusConsumer(ctx context.Context, conn *amqp.Connection, updater OrderUpdater, processed ProcessedStore, log *logrus.Entry) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	queue := serviceQueue(OrderStatusRoutingKey)
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue, OrderStatusRoutingKey, EventsExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		syncServiceName, // consumer tag
		false,           // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("stopping order status consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Warn("messages channel closed")
					return
				}

				requeue, err := handleOrderStatus(ctx, updater, processed, msg.Body, log)
				if err != nil {
					log.WithError(err).WithField("requeue", requeue).Error("handle order status event")
					_ = msg.Nack(false, requeue)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return nil
}

// handleOrderStatus returns (requeue, err). Malformed, duplicate-resistant,
// and stale messages are dropped; transient store failures are requeued.
func handleOrderStatus(ctx context.Context, updater OrderUpdater, processed ProcessedStore, body []byte, log *logrus.Entry) (bool, error) {
	var env EventEnvelope[OrderStatusChanged]
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	if err := env.Validate(OrderStatusChangedName, OrderStatusChangedVersion); err != nil {
		return false, err
	}

	done, err := processed.WasProcessed(ctx, env.EventID)
	if err != nil {
		return true, err
	}
	if done {
		log.WithField("event_id", env.EventID).Debug("skipping already-processed event")
		return false, nil
	}

	status, err := order.ParseStatus(env.Payload.Status)
	if err != nil {
		return false, err
	}

	if err := updater.ApplyStatus(ctx, env.Payload.OrderID, status); err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			// The order was never mirrored here; the next orders sync will
			// pick up the new status anyway.
			return false, err
		case apperr.IsKind(err, apperr.Validation):
			// Stale or out-of-order event.
			return false, err
		default:
			return true, err
		}
	}

	if err := processed.MarkProcessed(ctx, env.EventID); err != nil {
		// The apply went through; a redelivery turns into a rejected
		// transition and gets dropped, so losing the mark is tolerable.
		log.WithError(err).WithField("event_id", env.EventID).Warn("failed to mark event processed")
	}

	log.WithFields(logrus.Fields{
		"event_id": env.EventID,
		"order_id": env.Payload.OrderID,
		"status":   env.Payload.Status,
	}).Info("applied order status event")
	return false, nil
}
