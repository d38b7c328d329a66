package in

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/services/admin"
	"github.com/sremani/Artifortress-sub001/internal/services/ops"
)

// AdminHandler implements the repo/binding/PAT provisioning routes and the
// ops summary/audit routes, both gated by RequireAdmin.
type AdminHandler struct {
	admin *admin.Service
	ops   *ops.Service
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(adminSvc *admin.Service, opsSvc *ops.Service) *AdminHandler {
	return &AdminHandler{admin: adminSvc, ops: opsSvc}
}

type createRepoRequest struct {
	RepoKey        string          `json:"repoKey"`
	RepoType       domain.RepoType `json:"repoType"`
	UpstreamURL    string          `json:"upstreamUrl"`
	MemberRepoKeys []string        `json:"memberRepoKeys"`
}

// CreateRepo handles POST /v1/repos.
func (h *AdminHandler) CreateRepo(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req createRepoRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	repo, err := h.admin.CreateRepo(c.UserContext(), admin.CreateRepoRequest{
		TenantID:       p.TenantID,
		RepoKey:        req.RepoKey,
		RepoType:       req.RepoType,
		UpstreamURL:    req.UpstreamURL,
		MemberRepoKeys: req.MemberRepoKeys,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(repo)
}

// GetRepo handles GET /v1/repos/{key}.
func (h *AdminHandler) GetRepo(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.admin.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(repo)
}

// ListRepos handles GET /v1/repos.
func (h *AdminHandler) ListRepos(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repos, err := h.admin.ListRepos(c.UserContext(), p.TenantID)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"repos": repos})
}

type updateRepoRequest struct {
	UpstreamURL    *string  `json:"upstreamUrl"`
	MemberRepoKeys []string `json:"memberRepoKeys"`
}

// UpdateRepo handles PATCH /v1/repos/{key}.
func (h *AdminHandler) UpdateRepo(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req updateRepoRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	repo, err := h.admin.UpdateRepo(c.UserContext(), admin.UpdateRepoRequest{
		TenantID:       p.TenantID,
		RepoKey:        c.Params("key"),
		UpstreamURL:    req.UpstreamURL,
		MemberRepoKeys: req.MemberRepoKeys,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(repo)
}

// DeleteRepo handles DELETE /v1/repos/{key}.
func (h *AdminHandler) DeleteRepo(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	if err := h.admin.DeleteRepo(c.UserContext(), p.TenantID, c.Params("key")); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ListBindings handles GET /v1/repos/{key}/bindings.
func (h *AdminHandler) ListBindings(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	bindings, err := h.admin.ListBindings(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"bindings": bindings})
}

type setBindingRequest struct {
	Roles []domain.Role `json:"roles"`
}

// SetBinding handles PUT /v1/repos/{key}/bindings/{subject}.
func (h *AdminHandler) SetBinding(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req setBindingRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	binding, err := h.admin.SetBinding(c.UserContext(), p.TenantID, c.Params("key"), c.Params("subject"), req.Roles)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(binding)
}

// DeleteBinding handles DELETE /v1/repos/{key}/bindings/{subject}.
func (h *AdminHandler) DeleteBinding(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	if err := h.admin.DeleteBinding(c.UserContext(), p.TenantID, c.Params("key"), c.Params("subject")); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type issuePATRequest struct {
	Subject  string             `json:"subject"`
	Scopes   []domain.RepoScope `json:"scopes"`
	TTLHours int                `json:"ttlHours"`
}

// IssuePAT handles POST /v1/auth/pats.
func (h *AdminHandler) IssuePAT(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req issuePATRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	var ttl time.Duration
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	result, err := h.admin.IssuePAT(c.UserContext(), admin.IssuePATRequest{
		TenantID: p.TenantID,
		Subject:  req.Subject,
		Scopes:   req.Scopes,
		TTL:      ttl,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": result.Token, "plaintext": result.Plaintext})
}

type revokePATRequest struct {
	TokenID string `json:"tokenId"`
}

// RevokePAT handles POST /v1/auth/pats/revoke.
func (h *AdminHandler) RevokePAT(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req revokePATRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	if err := h.admin.RevokePAT(c.UserContext(), p.TenantID, req.TokenID); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// OpsSummary handles GET /v1/admin/ops/summary.
func (h *AdminHandler) OpsSummary(c *fiber.Ctx) error {
	summary, err := h.ops.Summary(c.UserContext())
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(summary)
}

// Audit handles GET /v1/admin/audit?limit=N.
func (h *AdminHandler) Audit(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	records, err := h.ops.Audit(c.UserContext(), p.TenantID, c.QueryInt("limit", 0))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"records": records})
}
