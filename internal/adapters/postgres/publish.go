package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// FindDraftByIdentity looks up an existing version by its normalized
// identity tuple, the idempotency check behind draft create (spec §4.5).
func (s *Store) FindDraftByIdentity(ctx context.Context, tenantID, repoID, pkgType, namespace, name, version string) (domain.PackageVersion, bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.PackageVersion{}, false, err
	}

	v, err := scanVersion(db.QueryRowContext(ctx, `
		SELECT version_id, tenant_id, repo_id, package_type, namespace, package_name, version_label, state,
		       manifest_digest, created_by_subject, created_at, published_at, tombstoned_at, retention_until
		FROM package_version
		WHERE tenant_id = $1 AND repo_id = $2 AND package_type = $3
		  AND COALESCE(namespace, '') = $4 AND package_name = $5 AND version_label = $6`,
		tenantID, repoID, pkgType, namespace, name, version))
	if _, ok := err.(merrors.EntityNotFoundError); ok {
		return domain.PackageVersion{}, false, nil
	}

	if err != nil {
		return domain.PackageVersion{}, false, err
	}

	return v, true, nil
}

func scanVersion(row *sql.Row) (domain.PackageVersion, error) {
	var (
		v                domain.PackageVersion
		state            string
		namespace        sql.NullString
		manifestDigest   sql.NullString
		createdBySubject sql.NullString
	)

	err := row.Scan(&v.VersionID, &v.TenantID, &v.RepoID, &v.PackageType, &namespace, &v.PackageName, &v.VersionLabel, &state,
		&manifestDigest, &createdBySubject, &v.CreatedAt, &v.PublishedAt, &v.TombstonedAt, &v.RetentionUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PackageVersion{}, merrors.NewEntityNotFoundError("packageVersion", "version not found")
	}

	if err != nil {
		return domain.PackageVersion{}, merrors.AsInternal(err)
	}

	v.State = domain.VersionState(state)
	v.Namespace = namespace.String
	v.ManifestDigest = manifestDigest.String
	v.CreatedBySubject = createdBySubject.String

	return v, nil
}

// CreateDraftVersion inserts a new draft PackageVersion row.
func (s *Store) CreateDraftVersion(ctx context.Context, v domain.PackageVersion) (domain.PackageVersion, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.PackageVersion{}, err
	}

	if v.VersionID == "" {
		v.VersionID = uuid.NewString()
	}

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	v.State = domain.VersionStateDraft

	_, err = db.ExecContext(ctx, `
		INSERT INTO package_version (version_id, tenant_id, repo_id, package_type, namespace, package_name, version_label, state, created_by_subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.VersionID, v.TenantID, v.RepoID, v.PackageType, nullIfEmpty(v.Namespace), v.PackageName, v.VersionLabel,
		string(v.State), v.CreatedBySubject, v.CreatedAt)
	if err != nil {
		return domain.PackageVersion{}, translatePGError("packageVersion", err)
	}

	return v, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}

// GetVersion loads a PackageVersion by ID.
func (s *Store) GetVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.PackageVersion{}, err
	}

	return scanVersion(db.QueryRowContext(ctx, `
		SELECT version_id, tenant_id, repo_id, package_type, namespace, package_name, version_label, state,
		       manifest_digest, created_by_subject, created_at, published_at, tombstoned_at, retention_until
		FROM package_version WHERE tenant_id = $1 AND version_id = $2`, tenantID, versionID))
}

// UpsertEntries replaces a draft version's ArtifactEntries, rejecting the
// write outright if the version is no longer draft (immutability, §4.5).
func (s *Store) UpsertEntries(ctx context.Context, tenantID, versionID string, entries []domain.ArtifactEntry) error {
	return s.withRetryTx(ctx, func(tx *sql.Tx) error {
		var state string
		if err := tx.QueryRowContext(ctx, `SELECT state FROM package_version WHERE tenant_id = $1 AND version_id = $2 FOR UPDATE`,
			tenantID, versionID).Scan(&state); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return merrors.NewEntityNotFoundError("packageVersion", "version not found")
			}

			return err
		}

		if domain.VersionState(state) != domain.VersionStateDraft {
			return merrors.NewConflictError("version_immutable", "entries cannot be modified on a published version")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_entry WHERE version_id = $1`, versionID); err != nil {
			return err
		}

		for _, e := range entries {
			if e.EntryID == "" {
				e.EntryID = uuid.NewString()
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO artifact_entry (entry_id, version_id, relative_path, blob_id, digest, length)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				e.EntryID, versionID, e.Path, e.BlobID, e.Digest, e.Length); err != nil {
				return err
			}
		}

		return nil
	})
}

// UpsertManifest replaces a draft version's manifest row, storing both the
// digest and the raw manifest document.
func (s *Store) UpsertManifest(ctx context.Context, tenantID string, m domain.Manifest) error {
	jsonBytes, err := json.Marshal(m.JSON)
	if err != nil {
		return merrors.AsInternal(err)
	}

	return s.withRetryTx(ctx, func(tx *sql.Tx) error {
		var state string
		if err := tx.QueryRowContext(ctx, `SELECT state FROM package_version WHERE tenant_id = $1 AND version_id = $2 FOR UPDATE`,
			tenantID, m.VersionID).Scan(&state); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return merrors.NewEntityNotFoundError("packageVersion", "version not found")
			}

			return err
		}

		if domain.VersionState(state) != domain.VersionStateDraft {
			return merrors.NewConflictError("version_immutable", "manifest cannot be modified on a published version")
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE package_version SET manifest_digest = $1, manifest_json = $2 WHERE version_id = $3`,
			m.Digest, jsonBytes, m.VersionID)

		return err
	})
}

// GetManifest loads the manifest document and digest for versionID.
func (s *Store) GetManifest(ctx context.Context, tenantID, versionID string) (domain.Manifest, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}

	var digest sql.NullString

	var jsonBytes []byte

	err = db.QueryRowContext(ctx, `
		SELECT manifest_digest, manifest_json FROM package_version WHERE tenant_id = $1 AND version_id = $2`,
		tenantID, versionID).Scan(&digest, &jsonBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Manifest{}, merrors.NewEntityNotFoundError("packageVersion", "version not found")
	}

	if err != nil {
		return domain.Manifest{}, err
	}

	m := domain.Manifest{VersionID: versionID, Digest: digest.String}

	if len(jsonBytes) > 0 {
		if err := json.Unmarshal(jsonBytes, &m.JSON); err != nil {
			return domain.Manifest{}, merrors.AsInternal(err)
		}
	}

	return m, nil
}

// PublishVersion performs spec §4.5's publish transaction: asserts draft
// state with >=1 entry and a manifest, flips to published, emits exactly
// one version.published outbox event, and writes the audit record. Calling
// it on an already-published version is a no-op (idempotent=true,
// eventEmitted=false).
func (s *Store) PublishVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, bool, error) {
	var (
		v          domain.PackageVersion
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

		if domain.VersionState(state) == domain.VersionStatePublished {
			idempotent = true

			var err error
			v, err = scanVersionTx(ctx, tx, tenantID, versionID)

			return err
		}

		if domain.VersionState(state) != domain.VersionStateDraft {
			return merrors.NewConflictError("version_not_draft", "version is not in draft state")
		}

		var entryCount int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM artifact_entry WHERE version_id = $1`, versionID).Scan(&entryCount); err != nil {
			return err
		}

		if entryCount == 0 {
			return merrors.NewConflictError("no_entries", "version has no artifact entries")
		}

		var manifestDigest sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT manifest_digest FROM package_version WHERE version_id = $1`, versionID).Scan(&manifestDigest); err != nil {
			return err
		}

		if !manifestDigest.Valid || manifestDigest.String == "" {
			return merrors.NewConflictError("no_manifest", "version has no manifest")
		}

		now := time.Now()

		if _, err := tx.ExecContext(ctx, `
			UPDATE package_version SET state = 'published', published_at = $1 WHERE version_id = $2`, now, versionID); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{"versionId": versionID})
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_event (event_id, tenant_id, aggregate_id, event_type, payload, created_at, available_at)
			VALUES ($1, $2, $3, 'version.published', $4, $5, $5)`,
			uuid.NewString(), tenantID, versionID, payload, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_record (audit_id, tenant_id, subject, action, aggregate_id, detail, created_at)
			VALUES ($1, $2, 'system', 'package.version.published', $3, $4, $5)`,
			uuid.NewString(), tenantID, versionID, versionID, now); err != nil {
			return err
		}

		v, err = scanVersionTx(ctx, tx, tenantID, versionID)

		return err
	})
	if err != nil {
		return domain.PackageVersion{}, false, err
	}

	return v, idempotent, nil
}

func scanVersionTx(ctx context.Context, tx *sql.Tx, tenantID, versionID string) (domain.PackageVersion, error) {
	var (
		v                domain.PackageVersion
		state            string
		namespace        sql.NullString
		manifestDigest   sql.NullString
		createdBySubject sql.NullString
	)

	err := tx.QueryRowContext(ctx, `
		SELECT version_id, tenant_id, repo_id, package_type, namespace, package_name, version_label, state,
		       manifest_digest, created_by_subject, created_at, published_at, tombstoned_at, retention_until
		FROM package_version WHERE tenant_id = $1 AND version_id = $2`, tenantID, versionID).
		Scan(&v.VersionID, &v.TenantID, &v.RepoID, &v.PackageType, &namespace, &v.PackageName, &v.VersionLabel, &state,
			&manifestDigest, &createdBySubject, &v.CreatedAt, &v.PublishedAt, &v.TombstonedAt, &v.RetentionUntil)
	if err != nil {
		return domain.PackageVersion{}, err
	}

	v.State = domain.VersionState(state)
	v.Namespace = namespace.String
	v.ManifestDigest = manifestDigest.String
	v.CreatedBySubject = createdBySubject.String

	return v, nil
}
