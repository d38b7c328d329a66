package domain

import "time"

// OutboxEvent is a durable record of a fact (a version publish, a
// tombstone) written in the same transaction as the fact itself, later
// drained by the outbox sweep into SearchIndexJobs. This is what makes the
// publish→index pipeline transactional: the event either commits with its
// fact or not at all.
type OutboxEvent struct {
	EventID      string
	TenantID     string
	AggregateID  string
	EventType    string
	Payload      []byte
	CreatedAt    time.Time
	AvailableAt  time.Time
	DispatchedAt *time.Time
}

// Dispatched reports whether the outbox sweep has already turned e into a
// SearchIndexJob.
func (e OutboxEvent) Dispatched() bool {
	return e.DispatchedAt != nil
}
