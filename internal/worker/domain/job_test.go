package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobReceipt(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantJobID   string
		wantContext string
		wantErr     string
	}{
		{
			name:        "object context",
			body:        `{"job_id": "42", "job_context": {"image": "a.png"}}`,
			wantJobID:   "42",
			wantContext: `{"image": "a.png"}`,
		},
		{
			name:        "empty object context",
			body:        `{"job_id": "42", "job_context": {}}`,
			wantJobID:   "42",
			wantContext: `{}`,
		},
		{
			name:        "scalar context",
			body:        `{"job_id": "abc123", "job_context": "resize"}`,
			wantJobID:   "abc123",
			wantContext: `"resize"`,
		},
		{name: "not json", body: `job 42`, wantErr: "invalid JSON"},
		{name: "json array", body: `[1, 2]`, wantErr: "invalid JSON"},
		{name: "missing job_id", body: `{"job_context": {}}`, wantErr: "missing job_id"},
		{name: "numeric job_id", body: `{"job_id": 42, "job_context": {}}`, wantErr: "job_id is not a string"},
		{name: "null job_id", body: `{"job_id": null, "job_context": {}}`, wantErr: "job_id is not a string"},
		{
			name:        "empty job_id",
			body:        `{"job_id": "", "job_context": {}}`,
			wantJobID:   "",
			wantContext: `{}`,
		},
		{name: "missing job_context", body: `{"job_id": "42"}`, wantErr: "missing job_context"},
		{
			name:        "null job_context",
			body:        `{"job_id": "42", "job_context": null}`,
			wantJobID:   "42",
			wantContext: `null`,
		},
		{name: "invalid utf-8 in job_id", body: "{\"job_id\": \"4\xff2\", \"job_context\": {}}", wantErr: "invalid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := ParseJobReceipt([]byte(tt.body))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedPayload)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, receipt)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantJobID, receipt.JobID)
			assert.JSONEq(t, tt.wantContext, string(receipt.JobContext))
		})
	}
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "jobsabc123", JobKey("abc123"))
	assert.Equal(t, "jobs42", JobKey("42"))
	assert.Equal(t, "lock:jobs42", LockKey("42"))
}

func TestJobRecord(t *testing.T) {
	tests := []struct {
		name        string
		record      JobRecord
		wantEmpty   bool
		wantPending bool
	}{
		{name: "nil record", record: nil, wantEmpty: true},
		{name: "empty record", record: JobRecord{}, wantEmpty: true},
		{name: "pending", record: JobRecord{"status": "pending"}, wantPending: true},
		{name: "ok", record: JobRecord{"status": "ok"}},
		{name: "uppercase pending is not pending", record: JobRecord{"status": "PENDING"}},
		{name: "no status field", record: JobRecord{"message": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEmpty, tt.record.Empty())
			assert.Equal(t, tt.wantPending, tt.record.Pending())
		})
	}
}

func TestNewCompletionMessage(t *testing.T) {
	body, err := json.Marshal(NewCompletionMessage("42"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"job_id": "42", "message": "job successfully processed", "status": 0}`, string(body))
}

func TestKindAndRequeue(t *testing.T) {
	tests := []struct {
		err         error
		wantKind    string
		wantNack    bool
		wantRequeue bool
	}{
		{ErrMalformedPayload, "malformed_payload", true, false},
		{ErrStoreUnavailable, "store_unavailable", true, true},
		{ErrProcessingFailure, "processing_failure", true, true},
		{ErrPublishFailure, "publish_failure", true, true},
		{ErrJobLocked, "job_locked", true, true},
		{ErrAckFailure, "ack_failure", false, false},
		{fmt.Errorf("boom"), "unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			wrapped := fmt.Errorf("job 42: %w", tt.err)

			assert.Equal(t, tt.wantKind, Kind(wrapped))

			nack, requeue := Requeue(wrapped)
			assert.Equal(t, tt.wantNack, nack)
			assert.Equal(t, tt.wantRequeue, requeue)
		})
	}

	assert.Equal(t, "", Kind(nil))
}
