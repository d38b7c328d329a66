package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/sremani/Artifortress-sub001/internal/domain"
)

// BootstrapResolver authenticates the single configured bootstrap bearer
// token in constant time, so a wrong guess cannot be distinguished from a
// near-miss by timing.
type BootstrapResolver struct {
	tokenHash [sha256.Size]byte
	tenantID  string
	enabled   bool
}

// NewBootstrapResolver configures the resolver with the plaintext bootstrap
// token. An empty token disables bootstrap authentication entirely.
func NewBootstrapResolver(token, tenantID string) *BootstrapResolver {
	r := &BootstrapResolver{tenantID: tenantID}
	if token == "" {
		return r
	}

	r.tokenHash = sha256.Sum256([]byte(token))
	r.enabled = true

	return r
}

// Resolve returns the bootstrap Principal (a superuser, scoped "*":admin) if
// bearer matches the configured token, or ok=false otherwise.
func (r *BootstrapResolver) Resolve(bearer string) (domain.Principal, bool) {
	if !r.enabled || bearer == "" {
		return domain.Principal{}, false
	}

	presented := sha256.Sum256([]byte(bearer))
	if subtle.ConstantTimeCompare(presented[:], r.tokenHash[:]) != 1 {
		return domain.Principal{}, false
	}

	return domain.Principal{
		Subject:    "bootstrap",
		TenantID:   r.tenantID,
		Scopes:     []domain.RepoScope{{RepoKey: "*", Role: domain.RoleAdmin}},
		AuthSource: domain.AuthSourceBootstrap,
	}, true
}
