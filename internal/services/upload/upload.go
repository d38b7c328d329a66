// Package upload implements the Upload Session Engine (C4): the
// initiated → parts_uploading → pending_commit → committed state machine,
// content-addressed dedupe, and repo-scoped range downloads. Grounded on
// spec.md §4.4, structured as a use-case struct wrapping the truth store and
// object store ports in the teacher's command-package idiom
// (components/ledger/internal/services/command).
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mobjectstore"
	"github.com/sremani/Artifortress-sub001/internal/platform/mtrace"
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is the subset of domain.Store this service needs.
type Store interface {
	FindBlobByDigest(ctx context.Context, tenantID, digest string, length int64) (domain.Blob, bool, error)
	GetBlobByDigest(ctx context.Context, tenantID, digest string) (domain.Blob, bool, error)
	CreateUploadSession(ctx context.Context, s domain.UploadSession) (domain.UploadSession, error)
	GetUploadSession(ctx context.Context, tenantID, sessionID string) (domain.UploadSession, error)
	TransitionUploadSession(ctx context.Context, tenantID, sessionID string, from []domain.UploadState, to domain.UploadState) (domain.UploadSession, error)
	CommitUploadSession(ctx context.Context, tenantID, sessionID, digest string, length int64, objectKey string) (domain.UploadSession, domain.Blob, error)
	BlobVisibleInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error)
	BlobQuarantinedInRepo(ctx context.Context, tenantID, repoID, digest string) (bool, error)
	WriteAudit(ctx context.Context, a domain.AuditRecord) error
}

// ObjectStore is the subset of the C2 client this service needs.
type ObjectStore interface {
	StartMultipart(ctx context.Context, objectKey string) (string, error)
	PresignPart(ctx context.Context, objectKey, uploadID string, partNumber int32) (string, error)
	Complete(ctx context.Context, objectKey, uploadID string, parts []mobjectstore.Part) error
	AbortMultipart(ctx context.Context, objectKey, uploadID string) error
	Get(ctx context.Context, objectKey string, byteRange string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectKey string) error
}

// Service implements the upload session engine.
type Service struct {
	store  Store
	objs   ObjectStore
	logger mlog.Logger
	ttl    time.Duration
}

// NewService builds an upload Service. ttl is the session expiry window.
func NewService(store Store, objs ObjectStore, logger mlog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Service{store: store, objs: objs, logger: logger, ttl: ttl}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	TenantID       string
	RepoID         string
	RepoKey        string
	ExpectedDigest string
	ExpectedLength int64
}

// Create implements spec §4.4's create step: validate, dedupe against an
// existing Blob, or start a new multipart upload.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.UploadSession, bool, error) {
	ctx, span := mtrace.Start(ctx, "upload.create")
	defer span.End()

	digest := strings.ToLower(strings.TrimSpace(req.ExpectedDigest))
	if !digestPattern.MatchString(digest) {
		return domain.UploadSession{}, false, merrors.NewValidationError("digest must be 64 lowercase hex characters")
	}

	if req.ExpectedLength < 1 {
		return domain.UploadSession{}, false, merrors.NewValidationError("length must be >= 1")
	}

	if blob, found, err := s.store.FindBlobByDigest(ctx, req.TenantID, digest, req.ExpectedLength); err != nil {
		mtrace.RecordError(span, "find blob by digest", err)
		return domain.UploadSession{}, false, err
	} else if found {
		now := time.Now()
		sess, err := s.store.CreateUploadSession(ctx, domain.UploadSession{
			TenantID:       req.TenantID,
			RepoID:         req.RepoID,
			ObjectKey:      blob.ObjectKey,
			State:          domain.UploadStateCommitted,
			ExpectedDigest: digest,
			ExpectedLength: req.ExpectedLength,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.ttl),
			CompletedAt:    &now,
		})

		return sess, true, err
	}

	now := time.Now()
	objectKey := fmt.Sprintf("staging/%s/%s/%s", req.TenantID, req.RepoKey, randomSuffix())

	uploadID, err := s.objs.StartMultipart(ctx, objectKey)
	if err != nil {
		mtrace.RecordError(span, "start multipart", err)
		return domain.UploadSession{}, false, err
	}

	sess, err := s.store.CreateUploadSession(ctx, domain.UploadSession{
		TenantID:       req.TenantID,
		RepoID:         req.RepoID,
		ObjectKey:      objectKey,
		UploadID:       uploadID,
		State:          domain.UploadStateOpen,
		ExpectedDigest: digest,
		ExpectedLength: req.ExpectedLength,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	})
	if err != nil {
		_ = s.objs.AbortMultipart(ctx, objectKey, uploadID)
		mtrace.RecordError(span, "persist session", err)

		return domain.UploadSession{}, false, err
	}

	return sess, false, nil
}

// PresignPart implements the presign-part step: requires an open or
// already-uploading session, transitions it to parts_uploading, and returns
// a presigned PUT URL.
func (s *Service) PresignPart(ctx context.Context, tenantID, sessionID string, partNumber int32) (string, error) {
	sess, err := s.guardUploading(ctx, tenantID, sessionID)
	if err != nil {
		return "", err
	}

	if sess.State == domain.UploadStateOpen {
		sess, err = s.store.TransitionUploadSession(ctx, tenantID, sessionID,
			[]domain.UploadState{domain.UploadStateOpen}, domain.UploadStatePartsUploading)
		if err != nil {
			return "", err
		}
	}

	return s.objs.PresignPart(ctx, sess.ObjectKey, sess.UploadID, partNumber)
}

// CompleteRequest is the input to Complete.
type CompleteRequest struct {
	TenantID  string
	SessionID string
	Parts     []domain.UploadedPart
}

// Complete implements spec §4.4's complete step: validates the parts list,
// invokes the object store Complete, and transitions to pending_commit.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (domain.UploadSession, error) {
	sess, err := s.guardUploading(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return domain.UploadSession{}, err
	}

	parts, err := validateParts(req.Parts)
	if err != nil {
		return domain.UploadSession{}, err
	}

	if err := s.objs.Complete(ctx, sess.ObjectKey, sess.UploadID, parts); err != nil {
		return domain.UploadSession{}, err
	}

	return s.store.TransitionUploadSession(ctx, req.TenantID, req.SessionID,
		[]domain.UploadState{domain.UploadStateOpen, domain.UploadStatePartsUploading}, domain.UploadStatePendingCommit)
}

// Abort implements spec §4.4's abort step: best-effort AbortMultipart then
// transition to aborted. reason defaults to "client_abort".
func (s *Service) Abort(ctx context.Context, tenantID, sessionID, reason string) (domain.UploadSession, error) {
	if reason == "" {
		reason = "client_abort"
	}

	sess, err := s.store.GetUploadSession(ctx, tenantID, sessionID)
	if err != nil {
		return domain.UploadSession{}, err
	}

	_ = s.objs.AbortMultipart(ctx, sess.ObjectKey, sess.UploadID)

	updated, err := s.store.TransitionUploadSession(ctx, tenantID, sessionID,
		[]domain.UploadState{domain.UploadStateOpen, domain.UploadStatePartsUploading, domain.UploadStatePendingCommit},
		domain.UploadStateAborted)
	if err != nil {
		return domain.UploadSession{}, err
	}

	_ = s.store.WriteAudit(ctx, domain.AuditRecord{TenantID: tenantID, Subject: "system", Action: "upload.abort", AggregateID: sessionID, Detail: reason})

	return updated, nil
}

// Commit implements spec §4.4's commit step: stream the staging object,
// verify its digest and length, and on match upsert the Blob and mark the
// session committed.
func (s *Service) Commit(ctx context.Context, tenantID, sessionID string) (domain.UploadSession, domain.Blob, error) {
	sess, err := s.store.GetUploadSession(ctx, tenantID, sessionID)
	if err != nil {
		return domain.UploadSession{}, domain.Blob{}, err
	}

	if sess.Expired(time.Now()) {
		return domain.UploadSession{}, domain.Blob{}, merrors.NewConflictError("upload_session_expired", "upload session has expired")
	}

	if sess.State != domain.UploadStatePendingCommit {
		return domain.UploadSession{}, domain.Blob{}, merrors.NewConflictError("upload_session_conflict", "upload session is not pending commit")
	}

	reader, err := s.objs.Get(ctx, sess.ObjectKey, "")
	if err != nil {
		return domain.UploadSession{}, domain.Blob{}, err
	}
	defer reader.Close()

	h := sha256.New()

	n, err := io.Copy(h, reader)
	if err != nil {
		return domain.UploadSession{}, domain.Blob{}, merrors.AsInternal(err)
	}

	digest := hex.EncodeToString(h.Sum(nil))

	if digest != sess.ExpectedDigest || n != sess.ExpectedLength {
		_, _ = s.store.TransitionUploadSession(ctx, tenantID, sessionID,
			[]domain.UploadState{domain.UploadStatePendingCommit}, domain.UploadStateAborted)
		_ = s.objs.AbortMultipart(ctx, sess.ObjectKey, sess.UploadID)
		_ = s.store.WriteAudit(ctx, domain.AuditRecord{TenantID: tenantID, Subject: "system", Action: "upload.commit.verification_failed", AggregateID: sessionID})

		return domain.UploadSession{}, domain.Blob{}, merrors.NewConflictError("upload_verification_failed", "committed bytes did not match expected digest/length")
	}

	committed, blob, err := s.store.CommitUploadSession(ctx, tenantID, sessionID, digest, n, sess.ObjectKey)

	return committed, blob, err
}

// guardUploading loads a session and rejects it if expired or already past
// the parts-uploading phase (pending_commit, committed, aborted, expired).
func (s *Service) guardUploading(ctx context.Context, tenantID, sessionID string) (domain.UploadSession, error) {
	sess, err := s.store.GetUploadSession(ctx, tenantID, sessionID)
	if err != nil {
		return domain.UploadSession{}, err
	}

	if sess.Expired(time.Now()) {
		return domain.UploadSession{}, merrors.NewConflictError("upload_session_expired", "upload session has expired")
	}

	if sess.State != domain.UploadStateOpen && sess.State != domain.UploadStatePartsUploading {
		return domain.UploadSession{}, merrors.NewConflictError("upload_session_conflict", "upload session is not accepting parts")
	}

	return sess, nil
}

func validateParts(parts []domain.UploadedPart) ([]mobjectstore.Part, error) {
	if len(parts) == 0 {
		return nil, merrors.NewValidationError("parts must not be empty")
	}

	out := make([]mobjectstore.Part, 0, len(parts))

	var prev int32

	for _, p := range parts {
		if p.PartNumber <= 0 || p.PartNumber <= prev {
			return nil, merrors.NewValidationError("part numbers must be unique, positive, and ascending")
		}

		etag := strings.Trim(p.ETag, `"`)
		if etag == "" {
			return nil, merrors.NewValidationError("part ETag must not be blank")
		}

		prev = p.PartNumber

		out = append(out, mobjectstore.Part{PartNumber: p.PartNumber, ETag: etag})
	}

	return out, nil
}

func randomSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

// ByteRange is a single, closed-or-open byte range as parsed from a Range
// header.
type ByteRange struct {
	Start int64
	End   int64 // -1 means "to end of object"
}

// DownloadResult carries the stream and framing info a handler needs to
// write either a 200 or a 206 response.
type DownloadResult struct {
	Body    io.ReadCloser
	Length  int64
	Ranged  bool
	Start   int64
	End     int64
}

// ErrRangeNotSatisfiable signals the request's range lies outside the blob.
var ErrRangeNotSatisfiable = merrors.NewRangeNotSatisfiableError("requested range is outside the blob")

// Download implements spec §4.4's repo-scoped range download: a digest is
// downloadable from repoID only if BlobVisibleInRepo, then gated closed by
// BlobQuarantinedInRepo. rangeHeader is the raw `Range` request header value,
// or empty for a full read.
func (s *Service) Download(ctx context.Context, tenantID, repoID, digest, rangeHeader string) (DownloadResult, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))

	visible, err := s.store.BlobVisibleInRepo(ctx, tenantID, repoID, digest)
	if err != nil {
		return DownloadResult{}, err
	}

	if !visible {
		return DownloadResult{}, merrors.NewEntityNotFoundError("blob", "blob not found in repo")
	}

	quarantined, err := s.store.BlobQuarantinedInRepo(ctx, tenantID, repoID, digest)
	if err != nil {
		return DownloadResult{}, err
	}

	if quarantined {
		return DownloadResult{}, merrors.NewLockedError("quarantined_blob", "blob is quarantined in this repo")
	}

	blob, found, err := s.store.GetBlobByDigest(ctx, tenantID, digest)
	if err != nil {
		return DownloadResult{}, err
	}

	if !found {
		return DownloadResult{}, merrors.NewEntityNotFoundError("blob", "blob not found")
	}

	if rangeHeader == "" {
		body, err := s.objs.Get(ctx, blob.ObjectKey, "")
		if err != nil {
			return DownloadResult{}, err
		}

		return DownloadResult{Body: body, Length: blob.Length}, nil
	}

	rng, err := parseByteRange(rangeHeader, blob.Length)
	if err != nil {
		return DownloadResult{}, err
	}

	s3Range := fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)

	body, err := s.objs.Get(ctx, blob.ObjectKey, s3Range)
	if err != nil {
		return DownloadResult{}, err
	}

	return DownloadResult{Body: body, Length: rng.End - rng.Start + 1, Ranged: true, Start: rng.Start, End: rng.End}, nil
}

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// parseByteRange accepts exactly one `bytes=<a>-[<b>]` range, per spec §4.4:
// suffix ranges (`bytes=-N`), multi-ranges, and non-numeric tokens are
// rejected outright; an out-of-bounds range is ErrRangeNotSatisfiable.
func parseByteRange(header string, length int64) (ByteRange, error) {
	if strings.Contains(header, ",") {
		return ByteRange{}, merrors.NewValidationError("multi-range requests are not supported")
	}

	m := rangePattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return ByteRange{}, merrors.NewValidationError("unsupported range header")
	}

	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ByteRange{}, merrors.NewValidationError("malformed range start")
	}

	end := length - 1

	if m[2] != "" {
		end, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return ByteRange{}, merrors.NewValidationError("malformed range end")
		}
	}

	if end < start || start < 0 || start >= length || end >= length {
		return ByteRange{}, ErrRangeNotSatisfiable
	}

	return ByteRange{Start: start, End: end}, nil
}
