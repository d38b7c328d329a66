package domain

import "time"

// UploadState is the lifecycle state of a multi-party upload session (C4).
type UploadState string

const (
	UploadStateOpen           UploadState = "open"
	UploadStatePartsUploading UploadState = "parts_uploading"
	UploadStatePendingCommit  UploadState = "pending_commit"
	UploadStateCommitted      UploadState = "committed"
	UploadStateAborted        UploadState = "aborted"
	UploadStateExpired        UploadState = "expired"
)

// UploadSession tracks one in-flight multipart upload against the object
// store, keyed by an object key that is never reused across sessions.
type UploadSession struct {
	SessionID      string
	TenantID       string
	RepoID         string
	ObjectKey      string
	UploadID       string
	State          UploadState
	ExpectedDigest string
	ExpectedLength int64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	CompletedAt    *time.Time
}

// Expired reports whether the session's TTL has lapsed as of now, regardless
// of its persisted State — callers use this to fail-closed on stale opens.
func (s UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Terminal reports whether s has reached a state from which it can no
// longer transition: committed, aborted, or expired.
func (s UploadSession) Terminal() bool {
	switch s.State {
	case UploadStateCommitted, UploadStateAborted, UploadStateExpired:
		return true
	default:
		return false
	}
}

// UploadedPart is one part of a multipart upload, reported back by the
// object store after a client PUTs to a presigned URL.
type UploadedPart struct {
	PartNumber int32
	ETag       string
}
