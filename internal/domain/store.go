package domain

import (
	"context"
	"time"
)

// Store is the Truth Store adapter (C1): a single transactional port over
// the data model. Cross-entity operations that spec §4 requires to commit
// atomically — publish touching version+entries+manifest+outbox+audit,
// outbox sweep touching events+jobs, GC touching versions+blobs+tombstones
// — are named methods here rather than spread across one repository per
// entity, so the implementation can run each as one *sql.Tx.
type Store interface {
	// Tenants & repos

	GetTenantByID(ctx context.Context, tenantID string) (Tenant, error)
	CreateRepo(ctx context.Context, repo Repo) (Repo, error)
	GetRepoByKey(ctx context.Context, tenantID, repoKey string) (Repo, error)
	GetRepoByID(ctx context.Context, tenantID, repoID string) (Repo, error)
	ListRepos(ctx context.Context, tenantID string) ([]Repo, error)
	UpdateRepo(ctx context.Context, repo Repo) (Repo, error)
	DeleteRepo(ctx context.Context, tenantID, repoID string) error
	ListRepoBindings(ctx context.Context, tenantID, repoID string) ([]RoleBinding, error)
	UpsertRoleBinding(ctx context.Context, b RoleBinding) (RoleBinding, error)
	DeleteRoleBinding(ctx context.Context, tenantID, repoID, subject string) error

	// Tokens (C3)

	CreateToken(ctx context.Context, t Token) (Token, error)
	GetTokenByHash(ctx context.Context, tokenHash string) (Token, error)
	TouchTokenLastUsed(ctx context.Context, tokenID string, at time.Time) error
	RevokeToken(ctx context.Context, tenantID, tokenID string, at time.Time) error

	// Upload sessions (C4)

	FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (Blob, bool, error)
	GetBlobByDigest(ctx context.Context, tenantID, digest string) (Blob, bool, error)
	CreateUploadSession(ctx context.Context, s UploadSession) (UploadSession, error)
	GetUploadSession(ctx context.Context, tenantID, sessionID string) (UploadSession, error)
	TransitionUploadSession(ctx context.Context, tenantID, sessionID string, from []UploadState, to UploadState) (UploadSession, error)
	// CommitUploadSession atomically upserts the Blob addressed by digest,
	// marks the session committed, and writes the commit audit record.
	CommitUploadSession(ctx context.Context, tenantID, sessionID, digest string, length int64, objectKey string) (UploadSession, Blob, error)
	BlobVisibleInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error)
	BlobQuarantinedInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error)

	// Publish workflow (C5)

	FindDraftByIdentity(ctx context.Context, tenantID, repoID, pkgType, namespace, name, version string) (PackageVersion, bool, error)
	CreateDraftVersion(ctx context.Context, v PackageVersion) (PackageVersion, error)
	GetVersion(ctx context.Context, tenantID, versionID string) (PackageVersion, error)
	UpsertEntries(ctx context.Context, tenantID, versionID string, entries []ArtifactEntry) error
	UpsertManifest(ctx context.Context, tenantID string, m Manifest) error
	GetManifest(ctx context.Context, tenantID, versionID string) (Manifest, error)
	// PublishVersion asserts preconditions, flips state to published, emits
	// exactly one version.published OutboxEvent, and writes the publish
	// audit record, all in one transaction.
	PublishVersion(ctx context.Context, tenantID, versionID string) (PackageVersion, bool, error)

	// Policy & quarantine (C6)

	RecordPolicyEvaluation(ctx context.Context, e PolicyEvaluation, quarantine *QuarantineItem) (PolicyEvaluation, *QuarantineItem, error)
	RecordPolicyTimeout(ctx context.Context, tenantID, repoID, versionID, action string, timeoutMS int64) error
	ListQuarantine(ctx context.Context, tenantID, repoID string, status string) ([]QuarantineItem, error)
	GetQuarantine(ctx context.Context, tenantID, quarantineID string) (QuarantineItem, error)
	TransitionQuarantine(ctx context.Context, tenantID, quarantineID string, from, to string, actor string) (QuarantineItem, error)

	// Outbox → search job pipeline (C7)

	SweepOutbox(ctx context.Context, batchSize int, now time.Time) (OutboxSweepResult, error)
	SweepSearchJobs(ctx context.Context, batchSize, maxAttempts int, now time.Time) (JobSweepResult, error)

	// Lifecycle & GC (C8)

	TombstoneVersion(ctx context.Context, tenantID, versionID, reason string, retentionDays int, now time.Time) (PackageVersion, Tombstone, bool, error)
	ExpiredTombstones(ctx context.Context, batchSize int, now time.Time) ([]Tombstone, error)
	OrphanBlobs(ctx context.Context, batchSize int, graceCutoff time.Time) ([]Blob, error)
	CountOrphanBlobs(ctx context.Context, graceCutoff time.Time) (int64, error)
	DeleteTombstonedVersion(ctx context.Context, tenantID, versionID string) ([]string, error)
	DeleteBlob(ctx context.Context, tenantID, blobID string) error

	// Audit, readiness, ops (C9)

	WriteAudit(ctx context.Context, a AuditRecord) error
	ListAudit(ctx context.Context, tenantID string, limit int) ([]AuditRecord, error)
	Ping(ctx context.Context) error
	OpsSummary(ctx context.Context, now time.Time) (OpsSummary, error)
}

// OutboxSweepResult is the outcome of one outbox producer sweep.
type OutboxSweepResult struct {
	ClaimedCount   int
	EnqueuedCount  int
	DeliveredCount int
	RequeuedCount  int
}

// JobSweepResult is the outcome of one search job consumer sweep.
type JobSweepResult struct {
	ClaimedCount    int
	CompletedCount  int
	FailedCount     int
	DeadLetterCount int
}

// OpsSummary is the backlog posture returned by GET /admin/ops/summary.
type OpsSummary struct {
	PendingOutboxEvents          int64
	AvailableOutboxEvents        int64
	OldestPendingOutboxAgeSeconds int64
	PendingSearchJobs            int64
	FailedSearchJobs             int64
	IncompleteGCRuns             int64
	RecentPolicyTimeouts24h      int64
}
