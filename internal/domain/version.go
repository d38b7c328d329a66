package domain

import (
	"strings"
	"time"
)

// VersionState is the lifecycle state of a PackageVersion (C5/C8).
type VersionState string

const (
	VersionStateDraft       VersionState = "draft"
	VersionStatePublished   VersionState = "published"
	VersionStateQuarantined VersionState = "quarantined"
	VersionStateTombstoned  VersionState = "tombstoned"
)

// PackageVersion is one immutable-once-published release of a package within
// a repo.
type PackageVersion struct {
	VersionID        string
	TenantID         string
	RepoID           string
	PackageType      string
	Namespace        string
	PackageName      string
	VersionLabel     string
	State            VersionState
	ManifestDigest   string
	CreatedBySubject string
	CreatedAt        time.Time
	PublishedAt      *time.Time
	TombstonedAt     *time.Time
	RetentionUntil   *time.Time
}

// NormalizeIdentity lowercases and trims the fields that make up a
// PackageVersion's identity tuple, per spec §4.5: type, namespace, and name
// are lowercased; version is trimmed only.
func NormalizeIdentity(pkgType, namespace, name, version string) (string, string, string, string) {
	return strings.ToLower(strings.TrimSpace(pkgType)),
		strings.ToLower(strings.TrimSpace(namespace)),
		strings.ToLower(strings.TrimSpace(name)),
		strings.TrimSpace(version)
}

// Mutable reports whether v's entries and manifest may still be edited.
// Once a version leaves draft, every later transition is one-way.
func (v PackageVersion) Mutable() bool {
	return v.State == VersionStateDraft
}

// ArtifactEntry is one named file within a PackageVersion's manifest,
// pointing at the Blob holding its bytes.
type ArtifactEntry struct {
	EntryID   string
	VersionID string
	Path      string
	BlobID    string
	Digest    string
	Length    int64
}

// Manifest is the published, content-addressed description of every entry in
// a PackageVersion, digested as ManifestDigest. JSON carries the raw
// per-package-type manifest document (`id`/`version` for nuget, etc.).
type Manifest struct {
	VersionID string
	Digest    string
	JSON      map[string]any
	Entries   []ArtifactEntry
}
