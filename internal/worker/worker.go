package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Start when the broker closes the
// delivery channel, typically because the connection was lost.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Broker is the consuming side of the message bus
type Broker interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Nack(deliveryTag uint64, requeue bool) error
}

// DeliveryHandler handles a single delivery
type DeliveryHandler interface {
	Handle(ctx context.Context, delivery domain.Delivery) (Outcome, error)
}

// Config holds worker configuration
type Config struct {
	Logger  *slog.Logger
	Broker  Broker
	Handler DeliveryHandler

	// WorkerID doubles as the consumer tag. Generated when empty.
	WorkerID string
	// QueueName is informational, used in logs
	QueueName string

	Concurrency   int
	Prefetch      int
	JobTimeout    time.Duration
	NackOnFailure bool
}

// Worker consumes deliveries and runs them through the handler on a pool of
// goroutines. With a concurrency of 1 deliveries are handled strictly one at
// a time, in the order the broker presents them.
type Worker struct {
	logger        *slog.Logger
	broker        Broker
	handler       DeliveryHandler
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	nackOnFailure bool

	jobsChan chan domain.Delivery
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = NewWorkerID()
	}

	return &Worker{
		logger:        cfg.Logger,
		broker:        cfg.Broker,
		handler:       cfg.Handler,
		workerID:      workerID,
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: cfg.Prefetch,
		jobTimeout:    cfg.JobTimeout,
		nackOnFailure: cfg.NackOnFailure,
		jobsChan:      make(chan domain.Delivery),
		stopChan:      make(chan struct{}),
	}
}

// NewWorkerID returns "<hostname>-<8 hex chars>"
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.workerID
}

// Start subscribes to the queue and processes deliveries until ctx is
// canceled (returns nil) or the broker closes the delivery channel (returns
// ErrDeliveriesClosed).
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Bool("nack_on_failure", w.nackOnFailure),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	return w.startMessageDispatcher(ctx, deliveries)
}

// Stop signals the pool to stop and waits for in-flight deliveries
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
