package domain

import "time"

// Blob is one content-addressed object. The same digest is never stored
// twice within a tenant; multiple PackageVersions may reference one Blob.
type Blob struct {
	BlobID      string
	TenantID    string
	Digest      string // sha256, lowercase hex
	Length      int64
	ObjectKey   string
	RefCount    int64
	CreatedAt   time.Time
}

// ReadyForGC reports whether b has no remaining references and is eligible
// for reclaiming from the object store.
func (b Blob) ReadyForGC() bool {
	return b.RefCount <= 0
}
