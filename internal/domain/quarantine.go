package domain

import "time"

// QuarantineReason classifies why a PolicyEvaluation quarantined a version.
type QuarantineReason string

const (
	QuarantineReasonPolicyDenied  QuarantineReason = "policy_denied"
	QuarantineReasonPolicyTimeout QuarantineReason = "policy_timeout"
	QuarantineReasonPolicyError   QuarantineReason = "policy_error"
)

// QuarantineStatus is the lifecycle status of a QuarantineItem.
type QuarantineStatus string

const (
	QuarantineStatusQuarantined QuarantineStatus = "quarantined"
	QuarantineStatusReleased    QuarantineStatus = "released"
	QuarantineStatusRejected    QuarantineStatus = "rejected"
)

// QuarantineItem records one version held back from publish by policy
// gating (C6), scoped to the repo it was evaluated against.
type QuarantineItem struct {
	QuarantineID string
	TenantID     string
	RepoID       string
	VersionID    string
	Status       QuarantineStatus
	Reason       QuarantineReason
	Detail       string
	CreatedAt    time.Time
	ReleasedAt   *time.Time
	ReleasedBy   string
}

// Blocking reports whether q's status still gates a read per spec §4.6:
// quarantined and rejected block; released does not.
func (q QuarantineItem) Blocking() bool {
	return q.Status == QuarantineStatusQuarantined || q.Status == QuarantineStatusRejected
}
