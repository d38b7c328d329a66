// Package in is the HTTP edge (C10): Fiber routes, handlers, and
// middleware. Grounded on common/net/http's withError.go/handler.go idiom
// (error-kind switch → status code, correlation-id/logging middleware), the
// errors mapped to the taxonomy of spec.md §7 instead of midaz's.
package in

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/services/policy"
)

// errorResponse is the `{ "error": <code>, "message": <human>, … }` envelope
// spec.md §6 requires.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WithError maps a service/adapter error to the status+envelope spec.md §7's
// taxonomy names. Unrecognized errors are treated as internal.
func WithError(c *fiber.Ctx, err error) error {
	var (
		notFound    merrors.EntityNotFoundError
		conflict    merrors.EntityConflictError
		validation  merrors.ValidationError
		unauth      merrors.UnauthorizedError
		forbidden   merrors.ForbiddenError
		unprocess   merrors.UnprocessableOperationError
		rangeErr    merrors.RangeNotSatisfiableError
		locked      merrors.LockedError
		unavailable merrors.DependencyUnavailableError
	)

	var timeout policy.TimeoutError

	switch {
	case errors.As(err, &timeout):
		return respond(c, fiber.StatusServiceUnavailable, "policy_timeout", timeout.Error())
	case errors.As(err, &notFound):
		return respond(c, fiber.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &conflict):
		code := conflict.Code
		if code == "" {
			code = "conflict"
		}

		return respond(c, fiber.StatusConflict, code, conflict.Error())
	case errors.As(err, &validation):
		return respond(c, fiber.StatusBadRequest, "bad_request", validation.Error())
	case errors.As(err, &unauth):
		return respond(c, fiber.StatusUnauthorized, "unauthorized", unauth.Error())
	case errors.As(err, &forbidden):
		return respond(c, fiber.StatusForbidden, "forbidden", forbidden.Error())
	case errors.As(err, &unprocess):
		return respond(c, fiber.StatusUnprocessableEntity, "unprocessable", unprocess.Error())
	case errors.As(err, &rangeErr):
		return respond(c, fiber.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", rangeErr.Error())
	case errors.As(err, &locked):
		code := locked.Code
		if code == "" {
			code = "locked"
		}

		return respond(c, fiber.StatusLocked, code, locked.Error())
	case errors.As(err, &unavailable):
		code := unavailable.Code
		if code == "" {
			code = "dependency_unavailable"
		}

		return respond(c, fiber.StatusServiceUnavailable, code, unavailable.Error())
	default:
		internal := merrors.AsInternal(err)
		return respond(c, fiber.StatusInternalServerError, "internal", internal.Error())
	}
}

func respond(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorResponse{Error: code, Message: message})
}
