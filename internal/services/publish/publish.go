// Package publish implements the Publish Workflow (C5): idempotent draft
// creation, entries/manifest upsert with per-package-type validation, and
// the one-shot publish transaction. Grounded on spec.md §4.5, structured in
// the teacher's use-case-struct idiom
// (components/ledger/internal/services/command/create-ledger.go).
package publish

import (
	"context"
	"fmt"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mtrace"
)

// Store is the subset of domain.Store this service needs.
type Store interface {
	FindDraftByIdentity(ctx context.Context, tenantID, repoID, pkgType, namespace, name, version string) (domain.PackageVersion, bool, error)
	CreateDraftVersion(ctx context.Context, v domain.PackageVersion) (domain.PackageVersion, error)
	GetVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, error)
	UpsertEntries(ctx context.Context, tenantID, versionID string, entries []domain.ArtifactEntry) error
	UpsertManifest(ctx context.Context, tenantID string, m domain.Manifest) error
	GetManifest(ctx context.Context, tenantID, versionID string) (domain.Manifest, error)
	PublishVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, bool, error)
	FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (domain.Blob, bool, error)
}

// Service implements the publish workflow.
type Service struct {
	store  Store
	logger mlog.Logger
}

// NewService builds a publish Service.
func NewService(store Store, logger mlog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateDraftRequest is the input to CreateDraft.
type CreateDraftRequest struct {
	TenantID         string
	RepoID           string
	PackageType      string
	Namespace        string
	PackageName      string
	VersionLabel     string
	CreatedBySubject string
}

// CreateDraft implements spec §4.5's idempotent draft create: identity is
// normalized, an existing draft is returned with reused=true, and an
// existing published/tombstoned row is a Conflict.
func (s *Service) CreateDraft(ctx context.Context, req CreateDraftRequest) (domain.PackageVersion, bool, error) {
	ctx, span := mtrace.Start(ctx, "publish.create_draft")
	defer span.End()

	pkgType, namespace, name, version := domain.NormalizeIdentity(req.PackageType, req.Namespace, req.PackageName, req.VersionLabel)

	if pkgType == "" || name == "" || version == "" {
		return domain.PackageVersion{}, false, merrors.NewValidationError("type, name, and version are required")
	}

	existing, found, err := s.store.FindDraftByIdentity(ctx, req.TenantID, req.RepoID, pkgType, namespace, name, version)
	if err != nil {
		mtrace.RecordError(span, "find draft by identity", err)
		return domain.PackageVersion{}, false, err
	}

	if found {
		if existing.State != domain.VersionStateDraft {
			return domain.PackageVersion{}, false, merrors.NewConflictError("version_exists", "version cannot be reused as a draft")
		}

		return existing, true, nil
	}

	v, err := s.store.CreateDraftVersion(ctx, domain.PackageVersion{
		TenantID:         req.TenantID,
		RepoID:           req.RepoID,
		PackageType:      pkgType,
		Namespace:        namespace,
		PackageName:      name,
		VersionLabel:     version,
		CreatedBySubject: req.CreatedBySubject,
	})
	if err != nil {
		mtrace.RecordError(span, "create draft version", err)
	}

	return v, false, err
}

// EntryRequest is one entry in an UpsertEntries call.
type EntryRequest struct {
	Path   string
	Digest string
	Length int64
}

// UpsertEntries implements spec §4.5's entries validation: non-empty paths,
// no duplicates, every digest must resolve to an existing Blob of the
// claimed length.
func (s *Service) UpsertEntries(ctx context.Context, tenantID, versionID string, reqs []EntryRequest) error {
	ctx, span := mtrace.Start(ctx, "publish.upsert_entries")
	defer span.End()

	v, err := s.store.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return err
	}

	if !v.Mutable() {
		return merrors.NewConflictError("version_immutable", "entries cannot be modified on a published version")
	}

	if len(reqs) == 0 {
		return merrors.NewValidationError("at least one entry is required")
	}

	seen := make(map[string]struct{}, len(reqs))
	entries := make([]domain.ArtifactEntry, 0, len(reqs))

	for _, r := range reqs {
		if r.Path == "" {
			return merrors.NewValidationError("entry relative_path must not be empty")
		}

		if _, dup := seen[r.Path]; dup {
			return merrors.NewValidationError(fmt.Sprintf("duplicate entry path %q", r.Path))
		}

		seen[r.Path] = struct{}{}

		blob, found, err := s.store.FindBlobByDigest(ctx, tenantID, r.Digest, r.Length)
		if err != nil {
			return err
		}

		if !found {
			return merrors.NewValidationError(fmt.Sprintf("entry %q references an unknown blob digest", r.Path))
		}

		entries = append(entries, domain.ArtifactEntry{
			VersionID: versionID,
			Path:      r.Path,
			BlobID:    blob.BlobID,
			Digest:    blob.Digest,
			Length:    blob.Length,
		})
	}

	if err := s.store.UpsertEntries(ctx, tenantID, versionID, entries); err != nil {
		mtrace.RecordError(span, "upsert entries", err)
		return err
	}

	return nil
}

// UpsertManifest implements spec §4.5's manifest validation: per-type
// required fields (nuget requires id+version), rejected on a published
// version.
func (s *Service) UpsertManifest(ctx context.Context, tenantID, versionID string, manifestJSON map[string]any, digest string) error {
	v, err := s.store.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return err
	}

	if !v.Mutable() {
		return merrors.NewConflictError("version_immutable", "manifest cannot be modified on a published version")
	}

	if err := validateManifestShape(v.PackageType, manifestJSON); err != nil {
		return err
	}

	return s.store.UpsertManifest(ctx, tenantID, domain.Manifest{VersionID: versionID, Digest: digest, JSON: manifestJSON})
}

// GetManifest returns versionID's manifest document and digest.
func (s *Service) GetManifest(ctx context.Context, tenantID, versionID string) (domain.Manifest, error) {
	return s.store.GetManifest(ctx, tenantID, versionID)
}

// validateManifestShape enforces the per-package-type required fields spec
// §4.5 calls out; nuget is the worked example (id + version required).
func validateManifestShape(pkgType string, manifest map[string]any) error {
	if pkgType != "nuget" {
		return nil
	}

	for _, field := range []string{"id", "version"} {
		v, ok := manifest[field]
		if !ok || v == "" {
			return merrors.NewValidationError(fmt.Sprintf("nuget manifest requires %q", field))
		}
	}

	return nil
}

// PublishResult is the outcome of a Publish call.
type PublishResult struct {
	Version      domain.PackageVersion
	Idempotent   bool
	EventEmitted bool
}

// Publish implements spec §4.5's publish transaction, delegating the
// atomic precondition checks to the store and reporting idempotency so the
// handler can set eventEmitted=false on a repeat call.
func (s *Service) Publish(ctx context.Context, tenantID, versionID string) (PublishResult, error) {
	ctx, span := mtrace.Start(ctx, "publish.publish_version")
	defer span.End()

	v, idempotent, err := s.store.PublishVersion(ctx, tenantID, versionID)
	if err != nil {
		mtrace.RecordError(span, "publish version", err)
		return PublishResult{}, err
	}

	return PublishResult{Version: v, Idempotent: idempotent, EventEmitted: !idempotent}, nil
}
