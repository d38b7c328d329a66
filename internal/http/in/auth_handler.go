package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/auth"
)

// AuthHandler implements /v1/auth/whoami and the SAML metadata/ACS routes.
// PAT issuance/revocation live on AdminHandler since they're part of the
// same repo/binding/PAT administration surface.
type AuthHandler struct {
	samlACSURL string
	saml       *auth.SAMLResolver
}

// NewAuthHandler builds an AuthHandler. saml may be nil when SAML is not
// configured, in which case both SAML routes answer 404-equivalent errors.
func NewAuthHandler(saml *auth.SAMLResolver, samlACSURL string) *AuthHandler {
	return &AuthHandler{saml: saml, samlACSURL: samlACSURL}
}

// Whoami handles GET /v1/auth/whoami.
func (h *AuthHandler) Whoami(c *fiber.Ctx) error {
	return c.JSON(PrincipalFromCtx(c))
}

// SAMLMetadata handles GET /v1/auth/saml/metadata.
func (h *AuthHandler) SAMLMetadata(c *fiber.Ctx) error {
	if h.saml == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXML)

	return c.Send(h.saml.Metadata(h.samlACSURL))
}

// SAMLACS handles POST /v1/auth/saml/acs, the assertion-consumer-service
// endpoint IdPs POST the signed SAMLResponse form field to.
func (h *AuthHandler) SAMLACS(c *fiber.Ctx) error {
	if h.saml == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	samlResponse := c.FormValue("SAMLResponse")
	if samlResponse == "" {
		return WithError(c, errBadJSON(fiber.ErrBadRequest))
	}

	principal, plaintext, err := h.saml.Resolve(c.UserContext(), samlResponse)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"principal": principal, "token": plaintext})
}
