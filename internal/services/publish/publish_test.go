package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

const testDigest = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

// fakeStore is a hand-written stand-in for Store, following the upload
// package's fake rather than gomock since the toolchain never runs here.
type fakeStore struct {
	draftsByIdentity map[string]domain.PackageVersion
	versions         map[string]domain.PackageVersion
	blobs            map[string]domain.Blob
	entries          map[string][]domain.ArtifactEntry
	manifests        map[string]domain.Manifest
	publishResult    domain.PackageVersion
	publishIdempo    bool
	publishErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		draftsByIdentity: map[string]domain.PackageVersion{},
		versions:         map[string]domain.PackageVersion{},
		blobs:            map[string]domain.Blob{},
		entries:          map[string][]domain.ArtifactEntry{},
		manifests:        map[string]domain.Manifest{},
	}
}

func identityKey(repoID, pkgType, namespace, name, version string) string {
	return repoID + "/" + pkgType + "/" + namespace + "/" + name + "/" + version
}

func (f *fakeStore) FindDraftByIdentity(ctx context.Context, tenantID, repoID, pkgType, namespace, name, version string) (domain.PackageVersion, bool, error) {
	v, ok := f.draftsByIdentity[identityKey(repoID, pkgType, namespace, name, version)]
	return v, ok, nil
}

func (f *fakeStore) CreateDraftVersion(ctx context.Context, v domain.PackageVersion) (domain.PackageVersion, error) {
	v.VersionID = "ver-" + v.PackageName
	v.State = domain.VersionStateDraft
	f.versions[v.VersionID] = v
	f.draftsByIdentity[identityKey(v.RepoID, v.PackageType, v.Namespace, v.PackageName, v.VersionLabel)] = v
	return v, nil
}

func (f *fakeStore) GetVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, error) {
	v, ok := f.versions[versionID]
	if !ok {
		return domain.PackageVersion{}, merrors.NewEntityNotFoundError("package_version", "not found")
	}
	return v, nil
}

func (f *fakeStore) UpsertEntries(ctx context.Context, tenantID, versionID string, entries []domain.ArtifactEntry) error {
	f.entries[versionID] = entries
	return nil
}

func (f *fakeStore) UpsertManifest(ctx context.Context, tenantID string, m domain.Manifest) error {
	f.manifests[m.VersionID] = m
	return nil
}

func (f *fakeStore) GetManifest(ctx context.Context, tenantID, versionID string) (domain.Manifest, error) {
	m, ok := f.manifests[versionID]
	if !ok {
		return domain.Manifest{}, merrors.NewEntityNotFoundError("manifest", "not found")
	}
	return m, nil
}

func (f *fakeStore) PublishVersion(ctx context.Context, tenantID, versionID string) (domain.PackageVersion, bool, error) {
	if f.publishErr != nil {
		return domain.PackageVersion{}, false, f.publishErr
	}
	return f.publishResult, f.publishIdempo, nil
}

func (f *fakeStore) FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (domain.Blob, bool, error) {
	b, ok := f.blobs[digest]
	return b, ok, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, &mlog.NoneLogger{})
}

func TestCreateDraft_RequiresIdentityFields(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, _, err := svc.CreateDraft(context.Background(), CreateDraftRequest{TenantID: "t1"})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestCreateDraft_ReusesExistingDraft(t *testing.T) {
	store := newFakeStore()
	store.draftsByIdentity[identityKey("r1", "npm", "acme", "widget", "1.0.0")] = domain.PackageVersion{
		VersionID: "ver-1", State: domain.VersionStateDraft,
	}
	svc := newTestService(store)

	v, reused, err := svc.CreateDraft(context.Background(), CreateDraftRequest{
		TenantID: "t1", RepoID: "r1", PackageType: "NPM", Namespace: "ACME", PackageName: "Widget", VersionLabel: "1.0.0",
	})

	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "ver-1", v.VersionID)
}

func TestCreateDraft_ConflictsOnPublishedIdentity(t *testing.T) {
	store := newFakeStore()
	store.draftsByIdentity[identityKey("r1", "npm", "", "widget", "1.0.0")] = domain.PackageVersion{
		VersionID: "ver-1", State: domain.VersionStatePublished,
	}
	svc := newTestService(store)

	_, _, err := svc.CreateDraft(context.Background(), CreateDraftRequest{
		TenantID: "t1", RepoID: "r1", PackageType: "npm", PackageName: "widget", VersionLabel: "1.0.0",
	})

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "version_exists", conflict.Code)
}

func TestCreateDraft_CreatesNewDraft(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	v, reused, err := svc.CreateDraft(context.Background(), CreateDraftRequest{
		TenantID: "t1", RepoID: "r1", PackageType: "npm", PackageName: "widget", VersionLabel: "1.0.0",
	})

	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, domain.VersionStateDraft, v.State)
}

func TestUpsertEntries_RejectsImmutableVersion(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStatePublished}
	svc := newTestService(store)

	err := svc.UpsertEntries(context.Background(), "t1", "ver-1", []EntryRequest{{Path: "a", Digest: testDigest, Length: 1}})

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "version_immutable", conflict.Code)
}

func TestUpsertEntries_RejectsDuplicatePaths(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft}
	store.blobs[testDigest] = domain.Blob{BlobID: "b1", Digest: testDigest, Length: 1}
	svc := newTestService(store)

	err := svc.UpsertEntries(context.Background(), "t1", "ver-1", []EntryRequest{
		{Path: "a", Digest: testDigest, Length: 1},
		{Path: "a", Digest: testDigest, Length: 1},
	})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestUpsertEntries_RejectsUnknownBlob(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft}
	svc := newTestService(store)

	err := svc.UpsertEntries(context.Background(), "t1", "ver-1", []EntryRequest{{Path: "a", Digest: testDigest, Length: 1}})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestUpsertEntries_Succeeds(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft}
	store.blobs[testDigest] = domain.Blob{BlobID: "b1", Digest: testDigest, Length: 1}
	svc := newTestService(store)

	err := svc.UpsertEntries(context.Background(), "t1", "ver-1", []EntryRequest{{Path: "a", Digest: testDigest, Length: 1}})

	require.NoError(t, err)
	assert.Len(t, store.entries["ver-1"], 1)
}

func TestUpsertManifest_NugetRequiresIDAndVersion(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft, PackageType: "nuget"}
	svc := newTestService(store)

	err := svc.UpsertManifest(context.Background(), "t1", "ver-1", map[string]any{"id": "Widget"}, "digest")

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestUpsertManifest_NonNugetHasNoRequiredFields(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft, PackageType: "npm"}
	svc := newTestService(store)

	err := svc.UpsertManifest(context.Background(), "t1", "ver-1", map[string]any{}, "digest")

	require.NoError(t, err)
}

func TestUpsertManifest_PersistsJSONForLaterRead(t *testing.T) {
	store := newFakeStore()
	store.versions["ver-1"] = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStateDraft, PackageType: "npm"}
	svc := newTestService(store)

	body := map[string]any{"name": "widget"}
	require.NoError(t, svc.UpsertManifest(context.Background(), "t1", "ver-1", body, "digest-1"))

	m, err := svc.GetManifest(context.Background(), "t1", "ver-1")
	require.NoError(t, err)
	assert.Equal(t, "digest-1", m.Digest)
	assert.Equal(t, body, m.JSON)
}

func TestGetManifest_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.GetManifest(context.Background(), "t1", "missing")

	var notFound merrors.EntityNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestPublish_ReportsIdempotency(t *testing.T) {
	store := newFakeStore()
	store.publishResult = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStatePublished}
	store.publishIdempo = true
	svc := newTestService(store)

	result, err := svc.Publish(context.Background(), "t1", "ver-1")

	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.False(t, result.EventEmitted)
}

func TestPublish_EmitsEventOnFirstPublish(t *testing.T) {
	store := newFakeStore()
	store.publishResult = domain.PackageVersion{VersionID: "ver-1", State: domain.VersionStatePublished}
	svc := newTestService(store)

	result, err := svc.Publish(context.Background(), "t1", "ver-1")

	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	assert.True(t, result.EventEmitted)
}
