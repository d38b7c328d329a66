// Package lifecycle implements the Lifecycle & GC engine (C8): tombstone,
// batched dry-run/execute garbage collection, and a read-only orphan-blob
// reconcile scan. Grounded on spec.md §4.8.
package lifecycle

import (
	"context"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

const defaultGCBatchSize = 100

// Store is the subset of domain.Store this service needs.
type Store interface {
	TombstoneVersion(ctx context.Context, tenantID, versionID, reason string, retentionDays int, now time.Time) (domain.PackageVersion, domain.Tombstone, bool, error)
	ExpiredTombstones(ctx context.Context, batchSize int, now time.Time) ([]domain.Tombstone, error)
	OrphanBlobs(ctx context.Context, batchSize int, graceCutoff time.Time) ([]domain.Blob, error)
	CountOrphanBlobs(ctx context.Context, graceCutoff time.Time) (int64, error)
	DeleteTombstonedVersion(ctx context.Context, tenantID, versionID string) ([]string, error)
	DeleteBlob(ctx context.Context, tenantID, blobID string) error
}

// ObjectStore is the subset of the C2 client this service needs.
type ObjectStore interface {
	Delete(ctx context.Context, objectKey string) error
}

// GCRunRecorder tracks gc_run bookkeeping for ops reporting. It is optional;
// a nil recorder simply skips the record.
type GCRunRecorder interface {
	StartGCRun(ctx context.Context, dryRun bool) (string, error)
	CompleteGCRun(ctx context.Context, gcRunID string, deletedVersions, deletedBlobs int64) error
}

// Service implements tombstone + GC + reconcile.
type Service struct {
	store  Store
	objs   ObjectStore
	runs   GCRunRecorder
	logger mlog.Logger
}

// NewService builds a lifecycle Service. runs may be nil to skip gc_run
// bookkeeping.
func NewService(store Store, objs ObjectStore, runs GCRunRecorder, logger mlog.Logger) *Service {
	return &Service{store: store, objs: objs, runs: runs, logger: logger}
}

// Tombstone implements spec §4.8's tombstone step.
func (s *Service) Tombstone(ctx context.Context, tenantID, versionID, reason string, retentionDays int) (domain.PackageVersion, domain.Tombstone, bool, error) {
	if retentionDays < 0 {
		return domain.PackageVersion{}, domain.Tombstone{}, false, merrors.NewValidationError("retentionDays must be non-negative")
	}

	return s.store.TombstoneVersion(ctx, tenantID, versionID, reason, retentionDays, time.Now())
}

// GCRequest is the input to Run.
type GCRequest struct {
	DryRun              bool
	RetentionGraceHours int
	BatchSize           int
}

// GCResult is the outcome of a GC run, covering both dry-run and execute
// shapes; fields not relevant to the mode are left zero.
type GCResult struct {
	Mode                  string
	CandidateVersionCount int
	CandidateBlobCount    int
	DeletedVersionCount   int
	DeletedBlobCount      int
}

// Run implements spec §4.8's GC computation and, in execute mode, the
// bounded transactional deletes.
func (s *Service) Run(ctx context.Context, tenantID string, req GCRequest) (GCResult, error) {
	if req.RetentionGraceHours < 0 {
		return GCResult{}, merrors.NewValidationError("retentionGraceHours must be non-negative")
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = defaultGCBatchSize
	}

	now := time.Now()
	graceCutoff := now.Add(-time.Duration(req.RetentionGraceHours) * time.Hour)

	tombstones, err := s.store.ExpiredTombstones(ctx, batchSize, now)
	if err != nil {
		return GCResult{}, err
	}

	blobs, err := s.store.OrphanBlobs(ctx, batchSize, graceCutoff)
	if err != nil {
		return GCResult{}, err
	}

	if req.DryRun {
		return GCResult{
			Mode:                  "dry_run",
			CandidateVersionCount: len(tombstones),
			CandidateBlobCount:    len(blobs),
		}, nil
	}

	var gcRunID string

	if s.runs != nil {
		if id, err := s.runs.StartGCRun(ctx, false); err == nil {
			gcRunID = id
		}
	}

	result := GCResult{Mode: "execute"}

	for _, t := range tombstones {
		orphanedKeys, err := s.store.DeleteTombstonedVersion(ctx, t.TenantID, t.VersionID)
		if err != nil {
			s.logger.Errorf("gc: delete tombstoned version %s failed: %v", t.VersionID, err)
			continue
		}

		for _, key := range orphanedKeys {
			if err := s.objs.Delete(ctx, key); err != nil {
				s.logger.Errorf("gc: object delete %s failed: %v", key, err)
			}
		}

		result.DeletedVersionCount++
	}

	for _, b := range blobs {
		if err := s.objs.Delete(ctx, b.ObjectKey); err != nil {
			s.logger.Errorf("gc: object delete %s failed: %v", b.ObjectKey, err)
			continue
		}

		if err := s.store.DeleteBlob(ctx, b.TenantID, b.BlobID); err != nil {
			s.logger.Errorf("gc: delete blob row %s failed: %v", b.BlobID, err)
			continue
		}

		result.DeletedBlobCount++
	}

	if s.runs != nil && gcRunID != "" {
		_ = s.runs.CompleteGCRun(ctx, gcRunID, int64(result.DeletedVersionCount), int64(result.DeletedBlobCount))
	}

	return result, nil
}

// ReconcileBlobs implements the read-only orphan-blob scan of spec §4.8:
// orphanBlobCount is the unbounded total, orphanBlobSamples is capped at
// limit.
func (s *Service) ReconcileBlobs(ctx context.Context, limit int) (int64, []domain.Blob, error) {
	if limit <= 0 {
		limit = 20
	}

	now := time.Now()

	count, err := s.store.CountOrphanBlobs(ctx, now)
	if err != nil {
		return 0, nil, err
	}

	samples, err := s.store.OrphanBlobs(ctx, limit, now)
	if err != nil {
		return 0, nil, err
	}

	return count, samples, nil
}
