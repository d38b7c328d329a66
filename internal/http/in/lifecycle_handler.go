package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/services/lifecycle"
)

// LifecycleHandler implements the tombstone route and the admin GC/reconcile
// routes of spec.md §6.
type LifecycleHandler struct {
	lifecycle *lifecycle.Service
}

// NewLifecycleHandler builds a LifecycleHandler.
func NewLifecycleHandler(lifecycleSvc *lifecycle.Service) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycleSvc}
}

type tombstoneRequest struct {
	Reason        string `json:"reason"`
	RetentionDays int    `json:"retentionDays"`
}

// Tombstone handles POST /v1/repos/{key}/packages/versions/{v}/tombstone.
func (h *LifecycleHandler) Tombstone(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req tombstoneRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	v, _, idempotent, err := h.lifecycle.Tombstone(c.UserContext(), p.TenantID, c.Params("version"), req.Reason, req.RetentionDays)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"version": v, "idempotent": idempotent})
}

type gcRunRequest struct {
	DryRun              bool `json:"dryRun"`
	RetentionGraceHours int  `json:"retentionGraceHours"`
	BatchSize           int  `json:"batchSize"`
}

// RunGC handles POST /v1/admin/gc/runs.
func (h *LifecycleHandler) RunGC(c *fiber.Ctx) error {
	p := PrincipalFromCtx(c)

	var req gcRunRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, errBadJSON(err))
	}

	result, err := h.lifecycle.Run(c.UserContext(), p.TenantID, lifecycle.GCRequest{
		DryRun:              req.DryRun,
		RetentionGraceHours: req.RetentionGraceHours,
		BatchSize:           req.BatchSize,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(result)
}

// ReconcileBlobs handles GET /v1/admin/reconcile/blobs?limit=N.
func (h *LifecycleHandler) ReconcileBlobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	count, samples, err := h.lifecycle.ReconcileBlobs(c.UserContext(), limit)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"orphanBlobCount": count, "orphanBlobSamples": samples})
}
