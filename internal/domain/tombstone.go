package domain

import "time"

// Tombstone marks a PackageVersion as scheduled for removal. GC only
// reclaims blobs belonging to versions whose tombstone's retention window
// has lapsed, ordered stably by (retention_until, version_id) so a GC sweep
// that's interrupted resumes without skipping or reprocessing entries.
type Tombstone struct {
	TombstoneID    string
	TenantID       string
	VersionID      string
	Reason         string
	CreatedAt      time.Time
	RetentionUntil time.Time
	ReconciledAt   *time.Time
}

// Reclaimable reports whether t's retention window has lapsed as of now and
// it has not already been reconciled by a GC sweep.
func (t Tombstone) Reclaimable(now time.Time) bool {
	return t.ReconciledAt == nil && !now.Before(t.RetentionUntil)
}
