package in

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/services/upload"
)

// UploadHandler implements the C4 routes: multipart upload lifecycle and
// ranged blob download.
type UploadHandler struct {
	repos  RepoResolver
	upload *upload.Service
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(repos RepoResolver, uploadSvc *upload.Service) *UploadHandler {
	return &UploadHandler{repos: repos, upload: uploadSvc}
}

type createUploadRequest struct {
	Digest string `json:"digest"`
	Length int64  `json:"length"`
}

// Create handles POST /v1/repos/{key}/uploads.
func (h *UploadHandler) Create(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	var req createUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	sess, reused, err := h.upload.Create(c.UserContext(), upload.CreateRequest{
		TenantID:       p.TenantID,
		RepoID:         repo.RepoID,
		RepoKey:        repo.RepoKey,
		ExpectedDigest: req.Digest,
		ExpectedLength: req.Length,
	})
	if err != nil {
		return WithError(c, err)
	}

	status := fiber.StatusCreated
	if reused {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(fiber.Map{"session": sess, "reused": reused})
}

// PresignPart handles POST /v1/repos/{key}/uploads/{id}/parts?partNumber=N.
func (h *UploadHandler) PresignPart(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	partNumber, err := strconv.Atoi(c.Query("partNumber"))
	if err != nil || partNumber <= 0 {
		return WithError(c, errBadJSON(err))
	}

	url, err := h.upload.PresignPart(c.UserContext(), p.TenantID, c.Params("id"), int32(partNumber))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"url": url})
}

type completePart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeUploadRequest struct {
	Parts []completePart `json:"parts"`
}

// Complete handles POST /v1/repos/{key}/uploads/{id}/complete.
func (h *UploadHandler) Complete(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req completeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	parts := make([]domain.UploadedPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		parts = append(parts, domain.UploadedPart{PartNumber: part.PartNumber, ETag: part.ETag})
	}

	sess, err := h.upload.Complete(c.UserContext(), upload.CompleteRequest{
		TenantID:  p.TenantID,
		SessionID: c.Params("id"),
		Parts:     parts,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(sess)
}

// Abort handles POST /v1/repos/{key}/uploads/{id}/abort.
func (h *UploadHandler) Abort(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	sess, err := h.upload.Abort(c.UserContext(), p.TenantID, c.Params("id"), "client_abort")
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(sess)
}

// Commit handles POST /v1/repos/{key}/uploads/{id}/commit.
func (h *UploadHandler) Commit(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	sess, blob, err := h.upload.Commit(c.UserContext(), p.TenantID, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"session": sess, "blob": blob})
}

// Download handles GET /v1/repos/{key}/blobs/{digest}, honoring the Range
// header for partial content.
func (h *UploadHandler) Download(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	result, err := h.upload.Download(c.UserContext(), p.TenantID, repo.RepoID, c.Params("digest"), c.Get(fiber.HeaderRange))
	if err != nil {
		return WithError(c, err)
	}
	defer result.Body.Close()

	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(result.Length, 10))

	if result.Ranged {
		c.Set(fiber.HeaderContentRange, "bytes "+strconv.FormatInt(result.Start, 10)+"-"+strconv.FormatInt(result.End, 10)+"/*")
		c.Status(fiber.StatusPartialContent)
	}

	return c.SendStream(result.Body)
}
