package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer sets QoS and starts consuming with manual acknowledgment
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// prefetch 0 leaves the number of unacknowledged deliveries unbounded, so
	// skipped deliveries never stall the consumer
	if err := w.broker.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.broker.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher forwards deliveries to the worker pool in the order
// they arrive
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}

			msg := domain.Delivery{
				Body:        delivery.Body,
				DeliveryTag: delivery.DeliveryTag,
			}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Delivery dispatched to worker pool",
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching delivery")
				// hand the delivery back so another consumer can take it
				if err := w.broker.Nack(delivery.DeliveryTag, true); err != nil {
					w.logger.Error("Failed to NACK delivery on shutdown",
						slog.Uint64("delivery_tag", delivery.DeliveryTag),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}
		}
	}
}
