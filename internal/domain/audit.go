package domain

import "time"

// AuditRecord is an append-only log entry for a state-changing operation,
// written in the same transaction as the operation it describes.
type AuditRecord struct {
	AuditID     string
	TenantID    string
	Subject     string
	Action      string
	AggregateID string
	Detail      string
	CreatedAt   time.Time
}
