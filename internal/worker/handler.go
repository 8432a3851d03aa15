package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
)

// lockReleaseTimeout bounds the lock release issued after a delivery, which
// runs even when the job context has already expired.
const lockReleaseTimeout = 5 * time.Second

// JobStore reads job records
type JobStore interface {
	GetRecord(ctx context.Context, jobID string) (domain.JobRecord, error)
}

// JobLocker provides per-job-id mutual exclusion across workers
type JobLocker interface {
	AcquireLock(ctx context.Context, jobID string) (domain.ReleaseFunc, error)
}

// MessageBus publishes completion messages and acknowledges deliveries
type MessageBus interface {
	Publish(ctx context.Context, destination string, body []byte) error
	Ack(deliveryTag uint64) error
}

// Processor performs the job-specific work for a receipt
type Processor interface {
	Process(ctx context.Context, receipt *domain.JobReceipt) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, receipt *domain.JobReceipt) error

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, receipt *domain.JobReceipt) error {
	return f(ctx, receipt)
}

// NoopProcessor accepts every job without doing any work
type NoopProcessor struct{}

// Process always succeeds
func (NoopProcessor) Process(context.Context, *domain.JobReceipt) error {
	return nil
}

// Outcome is the terminal state of one delivery
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSkipped
	OutcomeAcknowledged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAcknowledged:
		return "acknowledged"
	default:
		return "failed"
	}
}

// HandlerConfig holds the job handler dependencies
type HandlerConfig struct {
	Logger    *slog.Logger
	Store     JobStore
	Bus       MessageBus
	Processor Processor
	// Locker is optional; without it no per-job lock is taken
	Locker JobLocker
}

// Handler runs the parse, lookup, process, publish, acknowledge sequence for
// a single delivery
type Handler struct {
	logger    *slog.Logger
	store     JobStore
	bus       MessageBus
	processor Processor
	locker    JobLocker
}

// NewHandler creates a new job handler
func NewHandler(cfg *HandlerConfig) *Handler {
	processor := cfg.Processor
	if processor == nil {
		processor = NoopProcessor{}
	}

	return &Handler{
		logger:    cfg.Logger,
		store:     cfg.Store,
		bus:       cfg.Bus,
		processor: processor,
		locker:    cfg.Locker,
	}
}

// Handle processes one delivery. A job whose record is explicitly pending is
// skipped and left unacknowledged. Every failure is returned wrapping one of
// the domain error kinds; the delivery is never acknowledged on failure.
func (h *Handler) Handle(ctx context.Context, delivery domain.Delivery) (Outcome, error) {
	receipt, err := domain.ParseJobReceipt(delivery.Body)
	if err != nil {
		return OutcomeFailed, err
	}

	logger := h.logger.With(
		slog.String("job_id", receipt.JobID),
		slog.Uint64("delivery_tag", delivery.DeliveryTag),
	)

	logger.Info("Processing job")
	logger.Debug("Received job context", slog.String("job_context", string(receipt.JobContext)))

	if h.locker != nil {
		release, err := h.locker.AcquireLock(ctx, receipt.JobID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("job %s: %w", receipt.JobID, err)
		}
		defer h.releaseLock(ctx, logger, release)
	}

	record, err := h.store.GetRecord(ctx, receipt.JobID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("job %s: %w", receipt.JobID, err)
	}

	logger.Debug("Job record checked", slog.Bool("record_found", !record.Empty()))

	// A record explicitly marked pending blocks processing; an empty record
	// or any other status lets it proceed.
	// NOTE: the Python demo worker compares the other way (it returns early
	// when status != "pending"). Which one is intended is still open with the
	// product owner.
	if record.Pending() {
		logger.Info("Job already pending, skipping")
		return OutcomeSkipped, nil
	}

	logger.Info("Job still needs processing")

	if err := h.processor.Process(ctx, receipt); err != nil {
		return OutcomeFailed, fmt.Errorf("job %s: %w: %w", receipt.JobID, domain.ErrProcessingFailure, err)
	}

	body, err := json.Marshal(domain.NewCompletionMessage(receipt.JobID))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("job %s: %w: %w", receipt.JobID, domain.ErrPublishFailure, err)
	}

	if err := h.bus.Publish(ctx, domain.CompletionDestination, body); err != nil {
		return OutcomeFailed, fmt.Errorf("job %s: %w: %w", receipt.JobID, domain.ErrPublishFailure, err)
	}

	logger.Info("Completion message published",
		slog.String("destination", domain.CompletionDestination),
	)

	if err := h.bus.Ack(delivery.DeliveryTag); err != nil {
		return OutcomeFailed, fmt.Errorf("job %s: %w: %w", receipt.JobID, domain.ErrAckFailure, err)
	}

	return OutcomeAcknowledged, nil
}

func (h *Handler) releaseLock(ctx context.Context, logger *slog.Logger, release domain.ReleaseFunc) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := release(releaseCtx); err != nil {
		logger.Warn("Failed to release job lock", slog.String("error", err.Error()))
	}
}
