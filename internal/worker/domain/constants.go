package domain

const (
	// JobKeyPrefix is concatenated with the job id, without a separator, to
	// form the job record key. Other services share this key format.
	JobKeyPrefix = "jobs"

	// LockKeyPrefix namespaces the per-job processing locks.
	LockKeyPrefix = "lock:" + JobKeyPrefix

	// CompletionDestination is the queue completion messages are routed to.
	CompletionDestination = "jobs-finished"

	// CompletionMessageText is the message carried by every completion.
	CompletionMessageText = "job successfully processed"
)

// Job record status values
const (
	JobStatusPending = "pending"
)

// Completion status codes
const (
	CompletionStatusOK = iota
	CompletionStatusError
)

// JobKey returns the job store key for jobID.
func JobKey(jobID string) string {
	return JobKeyPrefix + jobID
}

// LockKey returns the processing lock key for jobID.
func LockKey(jobID string) string {
	return LockKeyPrefix + jobID
}
