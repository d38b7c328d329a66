package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mobjectstore"
)

const validDigest = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// fakeStore is a hand-written stand-in for Store, playing the role the
// teacher's gomock-generated mocks play in components/crm/internal/services
// tests — this module never runs the toolchain, so there is no mockgen step.
type fakeStore struct {
	blobByDigest   map[string]domain.Blob
	sessions       map[string]domain.UploadSession
	visibleInRepo  map[string]bool
	quarantined    map[string]bool
	audits         []domain.AuditRecord
	commitDigest   string
	commitLength   int64
	commitErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobByDigest:  map[string]domain.Blob{},
		sessions:      map[string]domain.UploadSession{},
		visibleInRepo: map[string]bool{},
		quarantined:   map[string]bool{},
	}
}

func (f *fakeStore) FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (domain.Blob, bool, error) {
	b, ok := f.blobByDigest[digest]
	return b, ok, nil
}

func (f *fakeStore) GetBlobByDigest(ctx context.Context, tenantID, digest string) (domain.Blob, bool, error) {
	b, ok := f.blobByDigest[digest]
	return b, ok, nil
}

func (f *fakeStore) CreateUploadSession(ctx context.Context, s domain.UploadSession) (domain.UploadSession, error) {
	s.SessionID = "sess-" + s.ObjectKey
	f.sessions[s.SessionID] = s
	return s, nil
}

func (f *fakeStore) GetUploadSession(ctx context.Context, tenantID, sessionID string) (domain.UploadSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return domain.UploadSession{}, merrors.NewEntityNotFoundError("upload_session", "not found")
	}
	return s, nil
}

func (f *fakeStore) TransitionUploadSession(ctx context.Context, tenantID, sessionID string, from []domain.UploadState, to domain.UploadState) (domain.UploadSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return domain.UploadSession{}, merrors.NewEntityNotFoundError("upload_session", "not found")
	}

	var allowed bool
	for _, st := range from {
		if s.State == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.UploadSession{}, merrors.NewConflictError("upload_session_conflict", "bad transition")
	}

	s.State = to
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeStore) CommitUploadSession(ctx context.Context, tenantID, sessionID, digest string, length int64, objectKey string) (domain.UploadSession, domain.Blob, error) {
	if f.commitErr != nil {
		return domain.UploadSession{}, domain.Blob{}, f.commitErr
	}

	s := f.sessions[sessionID]
	s.State = domain.UploadStateCommitted
	f.sessions[sessionID] = s

	blob := domain.Blob{Digest: digest, Length: length, ObjectKey: objectKey}
	f.blobByDigest[digest] = blob

	return s, blob, nil
}

func (f *fakeStore) BlobVisibleInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error) {
	return f.visibleInRepo[digest], nil
}

func (f *fakeStore) BlobQuarantinedInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error) {
	return f.quarantined[digest], nil
}

func (f *fakeStore) WriteAudit(ctx context.Context, a domain.AuditRecord) error {
	f.audits = append(f.audits, a)
	return nil
}

// fakeObjectStore is a hand-written stand-in for ObjectStore.
type fakeObjectStore struct {
	body         string
	startErr     error
	completeErr  error
	aborted      []string
	uploadIDSeq  int
}

func (f *fakeObjectStore) StartMultipart(ctx context.Context, objectKey string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.uploadIDSeq++
	return "upload-id", nil
}

func (f *fakeObjectStore) PresignPart(ctx context.Context, objectKey, uploadID string, partNumber int32) (string, error) {
	return "https://example.com/presigned", nil
}

func (f *fakeObjectStore) Complete(ctx context.Context, objectKey, uploadID string, parts []mobjectstore.Part) error {
	return f.completeErr
}

func (f *fakeObjectStore) AbortMultipart(ctx context.Context, objectKey, uploadID string) error {
	f.aborted = append(f.aborted, objectKey)
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, objectKey string, byteRange string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, objectKey string) error {
	return nil
}

func newTestService(store *fakeStore, objs *fakeObjectStore) *Service {
	return NewService(store, objs, &mlog.NoneLogger{}, time.Hour)
}

func TestCreate_RejectsMalformedDigest(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeObjectStore{})

	_, _, err := svc.Create(context.Background(), CreateRequest{
		TenantID:       "t1",
		ExpectedDigest: "not-hex",
		ExpectedLength: 10,
	})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestCreate_RejectsNonPositiveLength(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeObjectStore{})

	_, _, err := svc.Create(context.Background(), CreateRequest{
		TenantID:       "t1",
		ExpectedDigest: validDigest,
		ExpectedLength: 0,
	})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestCreate_DedupesAgainstExistingBlob(t *testing.T) {
	store := newFakeStore()
	store.blobByDigest[validDigest] = domain.Blob{Digest: validDigest, Length: 42, ObjectKey: "blobs/existing"}
	svc := newTestService(store, &fakeObjectStore{})

	sess, dedup, err := svc.Create(context.Background(), CreateRequest{
		TenantID:       "t1",
		RepoID:         "r1",
		ExpectedDigest: validDigest,
		ExpectedLength: 42,
	})

	require.NoError(t, err)
	assert.True(t, dedup)
	assert.Equal(t, domain.UploadStateCommitted, sess.State)
	assert.Equal(t, "blobs/existing", sess.ObjectKey)
}

func TestCreate_StartsMultipartWhenNoExistingBlob(t *testing.T) {
	store := newFakeStore()
	objs := &fakeObjectStore{}
	svc := newTestService(store, objs)

	sess, dedup, err := svc.Create(context.Background(), CreateRequest{
		TenantID:       "t1",
		RepoID:         "r1",
		RepoKey:        "libs-release",
		ExpectedDigest: validDigest,
		ExpectedLength: 42,
	})

	require.NoError(t, err)
	assert.False(t, dedup)
	assert.Equal(t, domain.UploadStateOpen, sess.State)
	assert.Equal(t, "upload-id", sess.UploadID)
	assert.Equal(t, 1, objs.uploadIDSeq)
}

func TestGuardUploading_RejectsTerminalSession(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{SessionID: "sess-1", State: domain.UploadStateCommitted, ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestService(store, &fakeObjectStore{})

	_, err := svc.PresignPart(context.Background(), "t1", "sess-1", 1)

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestGuardUploading_RejectsExpiredSession(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{SessionID: "sess-1", State: domain.UploadStateOpen, ExpiresAt: time.Now().Add(-time.Hour)}
	svc := newTestService(store, &fakeObjectStore{})

	_, err := svc.PresignPart(context.Background(), "t1", "sess-1", 1)

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, conflict.Code, "expired")
}

func TestComplete_ValidatesPartOrdering(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{SessionID: "sess-1", State: domain.UploadStatePartsUploading, ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestService(store, &fakeObjectStore{})

	_, err := svc.Complete(context.Background(), CompleteRequest{
		TenantID:  "t1",
		SessionID: "sess-1",
		Parts: []domain.UploadedPart{
			{PartNumber: 2, ETag: "a"},
			{PartNumber: 1, ETag: "b"},
		},
	})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestComplete_TransitionsToPendingCommit(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{SessionID: "sess-1", State: domain.UploadStatePartsUploading, ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestService(store, &fakeObjectStore{})

	sess, err := svc.Complete(context.Background(), CompleteRequest{
		TenantID:  "t1",
		SessionID: "sess-1",
		Parts:     []domain.UploadedPart{{PartNumber: 1, ETag: `"etag1"`}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatePendingCommit, sess.State)
}

func TestCommit_RejectsDigestMismatch(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{
		SessionID:      "sess-1",
		State:          domain.UploadStatePendingCommit,
		ExpectedDigest: validDigest,
		ExpectedLength: 4,
		ExpiresAt:      time.Now().Add(time.Hour),
		ObjectKey:      "staging/obj",
	}
	objs := &fakeObjectStore{body: "nope"}
	svc := newTestService(store, objs)

	_, _, err := svc.Commit(context.Background(), "t1", "sess-1")

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "upload_verification_failed", conflict.Code)
	assert.Len(t, objs.aborted, 1)
}

func TestCommit_RejectsExpiredSession(t *testing.T) {
	store := newFakeStore()
	store.sessions["sess-1"] = domain.UploadSession{
		SessionID: "sess-1",
		State:     domain.UploadStatePendingCommit,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc := newTestService(store, &fakeObjectStore{})

	_, _, err := svc.Commit(context.Background(), "t1", "sess-1")

	var conflict merrors.EntityConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestDownload_NotFoundWhenNotVisible(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeObjectStore{})

	_, err := svc.Download(context.Background(), "t1", "r1", validDigest, "")

	var notFound merrors.EntityNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestDownload_LockedWhenQuarantined(t *testing.T) {
	store := newFakeStore()
	store.visibleInRepo[validDigest] = true
	store.quarantined[validDigest] = true
	svc := newTestService(store, &fakeObjectStore{})

	_, err := svc.Download(context.Background(), "t1", "r1", validDigest, "")

	var locked merrors.LockedError
	require.True(t, errors.As(err, &locked))
}

func TestDownload_FullBody(t *testing.T) {
	store := newFakeStore()
	store.visibleInRepo[validDigest] = true
	store.blobByDigest[validDigest] = domain.Blob{Digest: validDigest, Length: 5, ObjectKey: "blobs/x"}
	objs := &fakeObjectStore{body: "hello"}
	svc := newTestService(store, objs)

	result, err := svc.Download(context.Background(), "t1", "r1", validDigest, "")

	require.NoError(t, err)
	assert.False(t, result.Ranged)
	assert.Equal(t, int64(5), result.Length)
}

func TestParseByteRange(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		length  int64
		wantErr bool
		wantRNG ByteRange
	}{
		{"simple range", "bytes=0-3", 10, false, ByteRange{Start: 0, End: 3}},
		{"open-ended range", "bytes=5-", 10, false, ByteRange{Start: 5, End: 9}},
		{"multi-range rejected", "bytes=0-1,2-3", 10, true, ByteRange{}},
		{"suffix range rejected", "bytes=-5", 10, true, ByteRange{}},
		{"out of bounds rejected", "bytes=8-20", 10, true, ByteRange{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rng, err := parseByteRange(c.header, c.length)
			if c.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, c.wantRNG, rng)
		})
	}
}
