package domain

import "time"

// JobState is the lifecycle state of a SearchIndexJob.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateClaimed    JobState = "claimed"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
	JobStateDeadLetter JobState = "dead_letter"
)

// MaxJobAttempts bounds the retry budget of a SearchIndexJob before it is
// moved to the dead letter state (C7).
const MaxJobAttempts = 5

// SearchIndexJob is one unit of work produced from an OutboxEvent, claimed by
// at most one worker at a time via SELECT ... FOR UPDATE SKIP LOCKED.
type SearchIndexJob struct {
	JobID       string
	TenantID    string
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	State       JobState
	Attempts    int
	NextAttempt time.Time
	ClaimedBy   string
	ClaimedAt   *time.Time
	LastError   string
	CreatedAt   time.Time
}

// Exhausted reports whether j has used its full retry budget and must move
// to the dead letter state rather than be retried again.
func (j SearchIndexJob) Exhausted() bool {
	return j.Attempts >= MaxJobAttempts
}

// NextBackoff returns the delay before retry attempt number nextAttempts
// (1-indexed) may run again: backoffSeconds = baseDelay * 2^min(nextAttempts-1,
// maxExponent), base 30s, maxExponent 5 (so it caps at 30*32=960s). Strictly
// monotonic in attempts and deterministic given attempts alone.
func NextBackoff(nextAttempts int) time.Duration {
	const (
		base        = 30 * time.Second
		maxExponent = 5
	)

	exp := nextAttempts - 1
	if exp > maxExponent {
		exp = maxExponent
	}

	if exp < 0 {
		exp = 0
	}

	return base * time.Duration(1<<uint(exp))
}
