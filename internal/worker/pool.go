package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.jobsChan:
			w.handleDelivery(ctx, workerName, msg)
		}
	}
}

// handleDelivery runs one delivery through the handler. Failures are logged
// and never escape: one bad message must not stop the consume loop.
func (w *Worker) handleDelivery(ctx context.Context, workerName string, msg domain.Delivery) {
	// in-flight deliveries finish during shutdown, bounded by the job timeout
	jobCtx := context.WithoutCancel(ctx)
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancel()
	}

	outcome, err := w.safeHandle(jobCtx, msg)
	if err == nil {
		w.logger.Info("Delivery handled",
			slog.String("worker_name", workerName),
			slog.Uint64("delivery_tag", msg.DeliveryTag),
			slog.String("outcome", outcome.String()),
		)
		return
	}

	w.logger.Error("Error occurred while processing job",
		slog.String("worker_name", workerName),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
		slog.String("error_kind", domain.Kind(err)),
		slog.String("error", err.Error()),
	)

	if w.nackOnFailure {
		w.nackFailed(workerName, msg, err)
	}
}

func (w *Worker) safeHandle(ctx context.Context, msg domain.Delivery) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return w.handler.Handle(ctx, msg)
}

// nackFailed negatively acknowledges a failed delivery according to its error kind
func (w *Worker) nackFailed(workerName string, msg domain.Delivery, err error) {
	nack, requeue := domain.Requeue(err)
	if !nack {
		return
	}

	if nackErr := w.broker.Nack(msg.DeliveryTag, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.Uint64("delivery_tag", msg.DeliveryTag),
			slog.String("error", nackErr.Error()),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("worker_name", workerName),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
		slog.Bool("requeue", requeue),
	)
}
