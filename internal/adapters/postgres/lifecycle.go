package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// TombstoneVersion asserts the version is published, transitions it to
// tombstoned, and inserts a Tombstone with the given retention window — one
// transaction, per spec §4.8. Repeating the call on an already-tombstoned
// version is idempotent.
func (s *Store) TombstoneVersion(ctx context.Context, tenantID, versionID, reason string, retentionDays int, now time.Time) (domain.PackageVersion, domain.Tombstone, bool, error) {
	var (
		v          domain.PackageVersion
		t          domain.Tombstone
		idempotent bool
	)

	err := s.withRetryTx(ctx, func(tx *sql.Tx) error {
		var state string
		if err := tx.QueryRowContext(ctx, `SELECT state FROM package_version WHERE tenant_id = $1 AND version_id = $2 FOR UPDATE`,
			tenantID, versionID).Scan(&state); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return merrors.NewEntityNotFoundError("packageVersion", "version not found")
			}

			return err
		}

		if domain.VersionState(state) == domain.VersionStateTombstoned {
			idempotent = true

			var err error
			v, err = scanVersionTx(ctx, tx, tenantID, versionID)
			if err != nil {
				return err
			}

			return tx.QueryRowContext(ctx, `
				SELECT tombstone_id, tenant_id, version_id, reason, created_at, retention_until, reconciled_at
				FROM tombstone WHERE tenant_id = $1 AND version_id = $2`, tenantID, versionID).
				Scan(&t.TombstoneID, &t.TenantID, &t.VersionID, &t.Reason, &t.CreatedAt, &t.RetentionUntil, &t.ReconciledAt)
		}

		if domain.VersionState(state) != domain.VersionStatePublished {
			return merrors.NewConflictError("version_not_published", "version is not published")
		}

		if _, err := tx.ExecContext(ctx, `UPDATE package_version SET state = 'tombstoned', tombstoned_at = $1 WHERE version_id = $2`, now, versionID); err != nil {
			return err
		}

		retentionUntil := now.Add(time.Duration(retentionDays) * 24 * time.Hour)

		t = domain.Tombstone{
			TombstoneID:    uuid.NewString(),
			TenantID:       tenantID,
			VersionID:      versionID,
			Reason:         reason,
			CreatedAt:      now,
			RetentionUntil: retentionUntil,
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tombstone (tombstone_id, tenant_id, version_id, reason, created_at, retention_until)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.TombstoneID, t.TenantID, t.VersionID, t.Reason, t.CreatedAt, t.RetentionUntil); err != nil {
			return err
		}

		var err error
		v, err = scanVersionTx(ctx, tx, tenantID, versionID)
		v.RetentionUntil = &retentionUntil

		return err
	})
	if err != nil {
		return domain.PackageVersion{}, domain.Tombstone{}, false, err
	}

	return v, t, idempotent, nil
}

// ExpiredTombstones lists unreconciled tombstones whose retention window has
// lapsed, ordered stably by (retention_until, version_id) per spec §4.8.
func (s *Store) ExpiredTombstones(ctx context.Context, batchSize int, now time.Time) ([]domain.Tombstone, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tombstone_id, tenant_id, version_id, reason, created_at, retention_until, reconciled_at
		FROM tombstone
		WHERE reconciled_at IS NULL AND retention_until <= $1
		ORDER BY retention_until ASC, version_id ASC
		LIMIT $2`, now, batchSize)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var out []domain.Tombstone

	for rows.Next() {
		var t domain.Tombstone
		if err := rows.Scan(&t.TombstoneID, &t.TenantID, &t.VersionID, &t.Reason, &t.CreatedAt, &t.RetentionUntil, &t.ReconciledAt); err != nil {
			return nil, merrors.AsInternal(err)
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

// OrphanBlobs lists blobs with zero ArtifactEntry and zero committed
// UploadSession references, created before graceCutoff, ordered stably by
// digest so a batchSize=1 drain is deterministic.
func (s *Store) OrphanBlobs(ctx context.Context, batchSize int, graceCutoff time.Time) ([]domain.Blob, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT b.blob_id, b.tenant_id, b.digest, b.length, b.object_key, b.ref_count, b.created_at
		FROM blob b
		WHERE b.created_at <= $1
		  AND NOT EXISTS (SELECT 1 FROM artifact_entry ae WHERE ae.blob_id = b.blob_id)
		  AND NOT EXISTS (
		        SELECT 1 FROM upload_session us
		        WHERE us.tenant_id = b.tenant_id AND us.object_key = b.object_key AND us.state = 'committed'
		  )
		ORDER BY b.digest ASC
		LIMIT $2`, graceCutoff, batchSize)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var out []domain.Blob

	for rows.Next() {
		var b domain.Blob
		if err := rows.Scan(&b.BlobID, &b.TenantID, &b.Digest, &b.Length, &b.ObjectKey, &b.RefCount, &b.CreatedAt); err != nil {
			return nil, merrors.AsInternal(err)
		}

		out = append(out, b)
	}

	return out, rows.Err()
}

// StartGCRun inserts a gc_run row marking the start of an execute-mode GC
// pass, the bookkeeping GET /admin/ops/summary's incompleteGcRuns counts
// against.
func (s *Store) StartGCRun(ctx context.Context, dryRun bool) (string, error) {
	db, err := s.db(ctx)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	_, err = db.ExecContext(ctx, `
		INSERT INTO gc_run (gc_run_id, dry_run, started_at) VALUES ($1, $2, $3)`,
		id, dryRun, time.Now())
	if err != nil {
		return "", merrors.AsInternal(err)
	}

	return id, nil
}

// CompleteGCRun marks a gc_run row completed with its final counts.
func (s *Store) CompleteGCRun(ctx context.Context, gcRunID string, deletedVersions, deletedBlobs int64) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		UPDATE gc_run SET completed_at = $1, deleted_version_count = $2, deleted_blob_count = $3 WHERE gc_run_id = $4`,
		time.Now(), deletedVersions, deletedBlobs, gcRunID)

	return err
}

// CountOrphanBlobs returns the total count of blobs matching OrphanBlobs'
// predicate, unbounded by batchSize — the denominator behind
// GET /admin/reconcile/blobs's orphanBlobCount.
func (s *Store) CountOrphanBlobs(ctx context.Context, graceCutoff time.Time) (int64, error) {
	db, err := s.db(ctx)
	if err != nil {
		return 0, err
	}

	var count int64

	err = db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM blob b
		WHERE b.created_at <= $1
		  AND NOT EXISTS (SELECT 1 FROM artifact_entry ae WHERE ae.blob_id = b.blob_id)
		  AND NOT EXISTS (
		        SELECT 1 FROM upload_session us
		        WHERE us.tenant_id = b.tenant_id AND us.object_key = b.object_key AND us.state = 'committed'
		  )`, graceCutoff).Scan(&count)
	if err != nil {
		return 0, merrors.AsInternal(err)
	}

	return count, nil
}

// DeleteTombstonedVersion deletes a tombstoned version's entries, manifest,
// version row, and tombstone row, returning the object keys of any blobs
// that became uniquely unreferenced as a result (so the caller can reclaim
// them from the object store).
func (s *Store) DeleteTombstonedVersion(ctx context.Context, tenantID, versionID string) ([]string, error) {
	var orphanedKeys []string

	err := s.withRetryTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT b.object_key
			FROM artifact_entry ae
			JOIN blob b ON b.blob_id = ae.blob_id
			WHERE ae.version_id = $1
			  AND (SELECT count(*) FROM artifact_entry ae2 WHERE ae2.blob_id = b.blob_id) = 1`, versionID)
		if err != nil {
			return err
		}

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return err
			}

			orphanedKeys = append(orphanedKeys, key)
		}

		if err := rows.Err(); err != nil {
			return err
		}

		rows.Close()

		if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_entry WHERE version_id = $1`, versionID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tombstone WHERE tenant_id = $1 AND version_id = $2`, tenantID, versionID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM package_version WHERE tenant_id = $1 AND version_id = $2`, tenantID, versionID)

		return err
	})

	return orphanedKeys, err
}

// DeleteBlob deletes a Blob row. The caller is responsible for the matching
// object-store delete (C2).
func (s *Store) DeleteBlob(ctx context.Context, tenantID, blobID string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM blob WHERE tenant_id = $1 AND blob_id = $2`, tenantID, blobID)

	return err
}
