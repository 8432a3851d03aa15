package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"unicode/utf8"
)

// JobReceipt is the inbound message announcing a job to process
type JobReceipt struct {
	JobID      string          `json:"job_id"`
	JobContext json.RawMessage `json:"job_context"`
}

// ParseJobReceipt decodes a delivery body. Both job_id and job_context must be
// present. job_id must be a JSON string, possibly empty; job_context may hold
// any JSON value, null included.
func ParseJobReceipt(body []byte) (*JobReceipt, error) {
	// the decoder would otherwise substitute U+FFFD and change the job id
	if !utf8.Valid(body) {
		return nil, wrap(ErrMalformedPayload, "invalid UTF-8")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrap(ErrMalformedPayload, "invalid JSON: %v", err)
	}

	rawID, ok := raw["job_id"]
	if !ok {
		return nil, wrap(ErrMalformedPayload, "missing job_id")
	}

	var receipt JobReceipt
	// null decodes into a string without error
	if isNull(rawID) || json.Unmarshal(rawID, &receipt.JobID) != nil {
		return nil, wrap(ErrMalformedPayload, "job_id is not a string")
	}

	rawContext, ok := raw["job_context"]
	if !ok {
		return nil, wrap(ErrMalformedPayload, "missing job_context")
	}
	receipt.JobContext = rawContext

	return &receipt, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// JobRecord is the status hash kept for a job in the job store. An empty
// record means no status has been recorded yet.
type JobRecord map[string]string

// Empty reports whether the record holds no fields
func (r JobRecord) Empty() bool {
	return len(r) == 0
}

// Status returns the status field, if any
func (r JobRecord) Status() (string, bool) {
	status, ok := r["status"]
	return status, ok
}

// Pending reports whether the record explicitly marks the job pending
func (r JobRecord) Pending() bool {
	status, ok := r.Status()
	return ok && status == JobStatusPending
}

// CompletionMessage is published once a job has been processed
type CompletionMessage struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewCompletionMessage builds the success completion for jobID
func NewCompletionMessage(jobID string) CompletionMessage {
	return CompletionMessage{
		JobID:   jobID,
		Message: CompletionMessageText,
		Status:  CompletionStatusOK,
	}
}

// Delivery is a broker delivery as seen by the job handler
type Delivery struct {
	Body        []byte
	DeliveryTag uint64
}

// ReleaseFunc releases a job processing lock
type ReleaseFunc func(ctx context.Context) error
