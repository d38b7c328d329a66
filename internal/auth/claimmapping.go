package auth

import (
	"strings"

	"github.com/sremani/Artifortress-sub001/internal/domain"
)

// ClaimMapping promotes a claim value present in a validated token (OIDC) or
// assertion (SAML) to a RepoScope, when no explicit scope claim is present.
// {claim:"groups", value:"af-admins", repoKeyPattern:"*", role:"admin"}.
type ClaimMapping struct {
	Claim          string
	Value          string
	RepoKeyPattern string
	Role           domain.Role
}

// ApplyClaimMappings evaluates every mapping against claims (a claim name to
// one-or-many string values map, as decoded from a JWT/SAML attribute set)
// and returns the union of matching scopes.
func ApplyClaimMappings(mappings []ClaimMapping, claims map[string][]string) []domain.RepoScope {
	var scopes []domain.RepoScope

	for _, m := range mappings {
		values, ok := claims[m.Claim]
		if !ok {
			continue
		}

		for _, v := range values {
			if v != m.Value {
				continue
			}

			pattern := m.RepoKeyPattern
			if pattern == "" {
				pattern = "*"
			}

			scopes = append(scopes, domain.RepoScope{RepoKey: strings.ToLower(pattern), Role: m.Role})

			break
		}
	}

	return scopes
}
