package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// FindBlobByDigest looks up a Blob by its exact (digest, length) pair within
// a tenant, the dedupe check behind upload session create (spec §4.4).
func (s *Store) FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (domain.Blob, bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Blob{}, false, err
	}

	var b domain.Blob

	err = db.QueryRowContext(ctx, `
		SELECT blob_id, tenant_id, digest, length, object_key, ref_count, created_at
		FROM blob WHERE tenant_id = $1 AND digest = $2 AND length = $3`,
		tenantID, digest, length).
		Scan(&b.BlobID, &b.TenantID, &b.Digest, &b.Length, &b.ObjectKey, &b.RefCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Blob{}, false, nil
	}

	if err != nil {
		return domain.Blob{}, false, merrors.AsInternal(err)
	}

	return b, true, nil
}

// GetBlobByDigest looks up a Blob by digest alone, within a tenant — the
// lookup behind repo-scoped blob download (spec §4.4), where the digest
// comes from the URL and the length is not yet known to the caller.
func (s *Store) GetBlobByDigest(ctx context.Context, tenantID, digest string) (domain.Blob, bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Blob{}, false, err
	}

	var b domain.Blob

	err = db.QueryRowContext(ctx, `
		SELECT blob_id, tenant_id, digest, length, object_key, ref_count, created_at
		FROM blob WHERE tenant_id = $1 AND digest = $2`,
		tenantID, digest).
		Scan(&b.BlobID, &b.TenantID, &b.Digest, &b.Length, &b.ObjectKey, &b.RefCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Blob{}, false, nil
	}

	if err != nil {
		return domain.Blob{}, false, merrors.AsInternal(err)
	}

	return b, true, nil
}

// CreateUploadSession inserts a new upload session row.
func (s *Store) CreateUploadSession(ctx context.Context, sess domain.UploadSession) (domain.UploadSession, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.UploadSession{}, err
	}

	if sess.SessionID == "" {
		sess.SessionID = uuid.NewString()
	}

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO upload_session
			(session_id, tenant_id, repo_id, object_key, upload_id, state, expected_digest, expected_length, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.SessionID, sess.TenantID, sess.RepoID, sess.ObjectKey, sess.UploadID, string(sess.State),
		sess.ExpectedDigest, sess.ExpectedLength, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return domain.UploadSession{}, translatePGError("uploadSession", err)
	}

	return sess, nil
}

// GetUploadSession loads an upload session by ID, scoped to the tenant.
func (s *Store) GetUploadSession(ctx context.Context, tenantID, sessionID string) (domain.UploadSession, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.UploadSession{}, err
	}

	return scanUploadSession(db.QueryRowContext(ctx, `
		SELECT session_id, tenant_id, repo_id, object_key, upload_id, state,
		       expected_digest, expected_length, created_at, expires_at, completed_at
		FROM upload_session WHERE tenant_id = $1 AND session_id = $2`, tenantID, sessionID))
}

func scanUploadSession(row *sql.Row) (domain.UploadSession, error) {
	var (
		sess  domain.UploadSession
		state string
	)

	err := row.Scan(&sess.SessionID, &sess.TenantID, &sess.RepoID, &sess.ObjectKey, &sess.UploadID, &state,
		&sess.ExpectedDigest, &sess.ExpectedLength, &sess.CreatedAt, &sess.ExpiresAt, &sess.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UploadSession{}, merrors.NewEntityNotFoundError("uploadSession", "upload session not found")
	}

	if err != nil {
		return domain.UploadSession{}, merrors.AsInternal(err)
	}

	sess.State = domain.UploadState(state)

	return sess, nil
}

// TransitionUploadSession moves a session's state to `to`, rejecting the
// update if its current state isn't one of `from` — the expired-check and
// state-machine guard of spec §4.4 enforced as one conditional UPDATE.
func (s *Store) TransitionUploadSession(ctx context.Context, tenantID, sessionID string, from []domain.UploadState, to domain.UploadState) (domain.UploadSession, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.UploadSession{}, err
	}

	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}

	row := db.QueryRowContext(ctx, `
		UPDATE upload_session SET state = $1
		WHERE tenant_id = $2 AND session_id = $3 AND state = ANY($4) AND expires_at > now()
		RETURNING session_id, tenant_id, repo_id, object_key, upload_id, state,
		          expected_digest, expected_length, created_at, expires_at, completed_at`,
		string(to), tenantID, sessionID, pq.Array(fromStrs))

	sess, err := scanUploadSession(row)
	if _, ok := err.(merrors.EntityNotFoundError); ok {
		return domain.UploadSession{}, merrors.NewConflictError("upload_session_conflict", "upload session is not in a valid state for this operation")
	}

	return sess, err
}

// CommitUploadSession atomically upserts the Blob for (digest,length),
// marks the session committed, and writes the commit audit record — the
// one transaction spec §4.4 step 3 requires.
func (s *Store) CommitUploadSession(ctx context.Context, tenantID, sessionID, digest string, length int64, objectKey string) (domain.UploadSession, domain.Blob, error) {
	var (
		sess domain.UploadSession
		blob domain.Blob
	)

	err := s.withRetryTx(ctx, func(tx *sql.Tx) error {
		blob = domain.Blob{BlobID: uuid.NewString(), TenantID: tenantID, Digest: digest, Length: length, ObjectKey: objectKey, RefCount: 0, CreatedAt: time.Now()}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO blob (blob_id, tenant_id, digest, length, object_key, ref_count, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
			ON CONFLICT (tenant_id, digest, length) DO UPDATE SET digest = EXCLUDED.digest
			RETURNING blob_id, ref_count, created_at`)
		if err := row.Scan(&blob.BlobID, &blob.RefCount, &blob.CreatedAt); err != nil {
			return err
		}

		now := time.Now()

		row = tx.QueryRowContext(ctx, `
			UPDATE upload_session
			SET state = 'committed', completed_at = $1
			WHERE tenant_id = $2 AND session_id = $3 AND state = 'pending_commit'
			RETURNING session_id, tenant_id, repo_id, object_key, upload_id, state,
			          expected_digest, expected_length, created_at, expires_at, completed_at`,
			now, tenantID, sessionID)

		var state string

		if err := row.Scan(&sess.SessionID, &sess.TenantID, &sess.RepoID, &sess.ObjectKey, &sess.UploadID, &state,
			&sess.ExpectedDigest, &sess.ExpectedLength, &sess.CreatedAt, &sess.ExpiresAt, &sess.CompletedAt); err != nil {
			return err
		}

		sess.State = domain.UploadState(state)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_record (audit_id, tenant_id, subject, action, aggregate_id, detail, created_at)
			VALUES ($1, $2, 'system', 'upload.commit.verified', $3, $4, $5)`,
			uuid.NewString(), tenantID, sessionID, digest, now)

		return err
	})
	if err != nil {
		return domain.UploadSession{}, domain.Blob{}, translatePGError("uploadSession", err)
	}

	return sess, blob, nil
}

// BlobVisibleInRepo reports whether digest is reachable from repoID, either
// via a committed upload session in that repo or an ArtifactEntry of one of
// its versions (spec §4.4 repo-scoped visibility).
func (s *Store) BlobVisibleInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}

	var visible bool

	err = db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM upload_session us
			JOIN blob b ON b.tenant_id = us.tenant_id AND b.digest = $3 AND b.object_key = us.object_key
			WHERE us.tenant_id = $1 AND us.repo_id = $2 AND us.state = 'committed'
		) OR EXISTS (
			SELECT 1 FROM artifact_entry ae
			JOIN package_version pv ON pv.version_id = ae.version_id
			JOIN blob b ON b.blob_id = ae.blob_id
			WHERE pv.tenant_id = $1 AND pv.repo_id = $2 AND b.digest = $3
		)`, tenantID, repoID, digest).Scan(&visible)
	if err != nil {
		return false, merrors.AsInternal(err)
	}

	return visible, nil
}

// BlobQuarantinedInRepo implements the read-path gating of spec §4.6: true
// when digest is referenced by a version in repoID that has an active
// (quarantined or rejected) QuarantineItem.
func (s *Store) BlobQuarantinedInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}

	var quarantined bool

	err = db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM artifact_entry ae
			JOIN blob b ON b.blob_id = ae.blob_id
			JOIN quarantine_item qi ON qi.version_id = ae.version_id
			WHERE qi.tenant_id = $1 AND qi.repo_id = $2 AND b.digest = $3
			  AND qi.status IN ('quarantined', 'rejected')
		)`, tenantID, repoID, digest).Scan(&quarantined)
	if err != nil {
		return false, merrors.AsInternal(err)
	}

	return quarantined, nil
}
