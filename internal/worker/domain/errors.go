package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload is returned when a delivery body cannot be decoded or
	// lacks job_id / job_context
	ErrMalformedPayload = errors.New("malformed job payload")

	// ErrStoreUnavailable is returned when the job record lookup cannot complete
	ErrStoreUnavailable = errors.New("job store unavailable")

	// ErrProcessingFailure is returned when the job processor reports an error
	ErrProcessingFailure = errors.New("job processing failed")

	// ErrPublishFailure is returned when the completion message cannot be published
	ErrPublishFailure = errors.New("completion publish failed")

	// ErrAckFailure is returned when the delivery acknowledgment cannot be confirmed
	ErrAckFailure = errors.New("delivery acknowledgment failed")

	// ErrJobLocked is returned when another worker holds the job's processing lock
	ErrJobLocked = errors.New("job locked by another worker")
)

// Kind returns a short label for the per-message error kind err wraps, for
// log attributes. Unknown errors are labelled "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrProcessingFailure):
		return "processing_failure"
	case errors.Is(err, ErrPublishFailure):
		return "publish_failure"
	case errors.Is(err, ErrAckFailure):
		return "ack_failure"
	case errors.Is(err, ErrJobLocked):
		return "job_locked"
	default:
		return "unknown"
	}
}

// Requeue reports how a failed delivery should be negatively acknowledged.
// nack is false when the delivery must be left alone.
func Requeue(err error) (nack bool, requeue bool) {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		// redelivery cannot fix the body
		return true, false
	case errors.Is(err, ErrAckFailure):
		return false, false
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrProcessingFailure),
		errors.Is(err, ErrPublishFailure),
		errors.Is(err, ErrJobLocked):
		return true, true
	default:
		return false, false
	}
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
