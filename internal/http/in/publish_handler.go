package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/services/publish"
)

// PublishHandler implements the C5 routes: draft creation, entries/manifest
// upsert, and publish.
type PublishHandler struct {
	repos   RepoResolver
	publish *publish.Service
}

// NewPublishHandler builds a PublishHandler.
func NewPublishHandler(repos RepoResolver, publishSvc *publish.Service) *PublishHandler {
	return &PublishHandler{repos: repos, publish: publishSvc}
}

type createDraftRequest struct {
	PackageType  string `json:"type"`
	Namespace    string `json:"namespace"`
	PackageName  string `json:"name"`
	VersionLabel string `json:"version"`
}

// CreateDraft handles POST /v1/repos/{key}/packages/versions.
func (h *PublishHandler) CreateDraft(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	var req createDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	v, reused, err := h.publish.CreateDraft(c.UserContext(), publish.CreateDraftRequest{
		TenantID:         p.TenantID,
		RepoID:           repo.RepoID,
		PackageType:      req.PackageType,
		Namespace:        req.Namespace,
		PackageName:      req.PackageName,
		VersionLabel:     req.VersionLabel,
		CreatedBySubject: p.Subject,
	})
	if err != nil {
		return WithError(c, err)
	}

	status := fiber.StatusCreated
	if reused {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(fiber.Map{"version": v, "reused": reused})
}

type entryRequest struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Length int64  `json:"length"`
}

type upsertEntriesRequest struct {
	Entries []entryRequest `json:"entries"`
}

// UpsertEntries handles PUT /v1/repos/{key}/packages/versions/{v}/entries.
func (h *PublishHandler) UpsertEntries(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req upsertEntriesRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	entries := make([]publish.EntryRequest, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, publish.EntryRequest{Path: e.Path, Digest: e.Digest, Length: e.Length})
	}

	if err := h.publish.UpsertEntries(c.UserContext(), p.TenantID, c.Params("version"), entries); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type upsertManifestRequest struct {
	Digest   string         `json:"digest"`
	Manifest map[string]any `json:"manifest"`
}

// UpsertManifest handles PUT /v1/repos/{key}/packages/versions/{v}/manifest.
func (h *PublishHandler) UpsertManifest(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req upsertManifestRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	if err := h.publish.UpsertManifest(c.UserContext(), p.TenantID, c.Params("version"), req.Manifest, req.Digest); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetManifest handles GET /v1/repos/{key}/packages/versions/{v}/manifest.
func (h *PublishHandler) GetManifest(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	m, err := h.publish.GetManifest(c.UserContext(), p.TenantID, c.Params("version"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"versionId": m.VersionID, "digest": m.Digest, "manifest": m.JSON})
}

// Publish handles POST /v1/repos/{key}/packages/versions/{v}/publish.
func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	result, err := h.publish.Publish(c.UserContext(), p.TenantID, c.Params("version"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(result)
}
