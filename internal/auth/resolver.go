package auth

import (
	"context"
	"strings"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// Resolver runs the bearer resolution order of spec §4.3: bootstrap header,
// then PAT by hashed lookup, then OIDC. A SAML ACS exchange mints a PAT
// first (see SAMLResolver) and so re-enters through the PAT path on its
// next request; it is not tried here directly.
type Resolver struct {
	bootstrap *BootstrapResolver
	pat       *PATResolver
	oidc      *OIDCResolver
}

// NewResolver wires the three resolvers into one bearer-resolution chain.
// Any of pat/oidc may be nil to disable that source.
func NewResolver(bootstrap *BootstrapResolver, pat *PATResolver, oidc *OIDCResolver) *Resolver {
	return &Resolver{bootstrap: bootstrap, pat: pat, oidc: oidc}
}

// Resolve extracts the bearer token from an Authorization header value
// ("Bearer <token>") and authenticates it against each configured source in
// order, returning the first Principal that validates.
func (r *Resolver) Resolve(ctx context.Context, authorizationHeader string) (domain.Principal, error) {
	bearer := bearerToken(authorizationHeader)
	if bearer == "" {
		return domain.Principal{}, merrors.NewUnauthorizedError("missing bearer token")
	}

	if r.bootstrap != nil {
		if p, ok := r.bootstrap.Resolve(bearer); ok {
			return p, nil
		}
	}

	if r.pat != nil {
		if p, err := r.pat.Resolve(ctx, bearer); err == nil {
			return p, nil
		}
	}

	if r.oidc != nil {
		if p, err := r.oidc.Resolve(ctx, bearer); err == nil {
			return p, nil
		}
	}

	return domain.Principal{}, merrors.NewUnauthorizedError("invalid credentials")
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}

// Authorize enforces hasRole(scopes, repoKey, requiredRole), mapping a
// failure to Forbidden (the caller already authenticated; this is purely an
// authorization decision).
func Authorize(p domain.Principal, repoKey string, required domain.Role) error {
	if domain.HasRole(p.Scopes, repoKey, required) {
		return nil
	}

	return merrors.NewForbiddenError("insufficient role")
}
