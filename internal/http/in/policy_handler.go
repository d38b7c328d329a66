package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/services/policy"
)

// PolicyHandler implements the C6 routes: policy evaluation and repo-scoped
// quarantine list/release/reject.
type PolicyHandler struct {
	repos  RepoResolver
	policy *policy.Service
}

// NewPolicyHandler builds a PolicyHandler.
func NewPolicyHandler(repos RepoResolver, policySvc *policy.Service) *PolicyHandler {
	return &PolicyHandler{repos: repos, policy: policySvc}
}

type evaluateRequest struct {
	VersionID     string `json:"versionId"`
	Action        string `json:"action"`
	Reason        string `json:"reason"`
	DecisionHint  string `json:"decisionHint"`
	EngineVersion string `json:"engineVersion"`
}

// Evaluate handles POST /v1/repos/{key}/policy/evaluations.
func (h *PolicyHandler) Evaluate(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	result, err := h.policy.Evaluate(c.UserContext(), policy.EvaluateRequest{
		TenantID:      p.TenantID,
		RepoID:        repo.RepoID,
		VersionID:     req.VersionID,
		Action:        req.Action,
		Reason:        req.Reason,
		DecisionHint:  req.DecisionHint,
		EngineVersion: req.EngineVersion,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListQuarantine handles GET /v1/repos/{key}/quarantine?status=.
func (h *PolicyHandler) ListQuarantine(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	items, err := h.policy.ListQuarantine(c.UserContext(), p.TenantID, repo.RepoID, c.Query("status"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"items": items})
}

// Release handles POST /v1/repos/{key}/quarantine/{id}/release.
func (h *PolicyHandler) Release(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	item, err := h.policy.Release(c.UserContext(), p.TenantID, repo.RepoID, c.Params("id"), p.Subject)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(item)
}

// Reject handles POST /v1/repos/{key}/quarantine/{id}/reject.
func (h *PolicyHandler) Reject(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	repo, err := h.repos.GetRepo(c.UserContext(), p.TenantID, c.Params("key"))
	if err != nil {
		return WithError(c, err)
	}

	item, err := h.policy.Reject(c.UserContext(), p.TenantID, repo.RepoID, c.Params("id"), p.Subject)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(item)
}
