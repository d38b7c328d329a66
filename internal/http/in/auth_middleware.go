package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/auth"
	"github.com/sremani/Artifortress-sub001/internal/domain"
)

const principalLocalsKey = "principal"

// Authenticate resolves the bearer on every request through resolver and
// stashes the resulting Principal in fiber.Locals for downstream handlers
// and RequireRole to read.
func Authenticate(resolver *auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := resolver.Resolve(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return WithError(c, err)
		}

		c.Locals(principalLocalsKey, p)

		return c.Next()
	}
}

// PrincipalFromCtx reads the Principal stashed by Authenticate.
func PrincipalFromCtx(c *fiber.Ctx) domain.Principal {
	p, _ := c.Locals(principalLocalsKey).(domain.Principal)
	return p
}

// RequireRole enforces auth.Authorize against the :key path parameter
// (repoKey) for every route it guards.
func RequireRole(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFromCtx(c)

		if err := auth.Authorize(p, c.Params("key"), required); err != nil {
			return WithError(c, err)
		}

		return c.Next()
	}
}

// RequireAdmin enforces a tenant-wide (wildcard-repo) admin grant, for
// routes that aren't scoped to one repo (PAT issuance, ops, GC, audit).
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFromCtx(c)

		if err := auth.Authorize(p, "*", domain.RoleAdmin); err != nil {
			return WithError(c, err)
		}

		return c.Next()
	}
}
