package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/services/ops"
)

// HealthHandler implements GET /health/live and GET /health/ready.
type HealthHandler struct {
	ops *ops.Service
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(opsSvc *ops.Service) *HealthHandler {
	return &HealthHandler{ops: opsSvc}
}

// Live always returns 200: the process is up and accepting connections.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

// Ready runs C1/C2 probes and returns 200 when every dependency is healthy,
// 503 otherwise.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	result := h.ops.Ready(c.UserContext())

	status := fiber.StatusOK
	if result.Status != "ready" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(result)
}
