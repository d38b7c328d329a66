package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// TokenStore is the subset of domain.Store a PATResolver needs.
type TokenStore interface {
	GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error)
	TouchTokenLastUsed(ctx context.Context, tokenID string, at time.Time) error
}

// PATResolver authenticates Personal Access Tokens by hashed lookup.
type PATResolver struct {
	store TokenStore
	now   func() time.Time
}

// NewPATResolver builds a PATResolver backed by store.
func NewPATResolver(store TokenStore) *PATResolver {
	return &PATResolver{store: store, now: time.Now}
}

// HashToken returns the lowercase hex sha256 digest of a plaintext PAT, the
// form persisted in Token.TokenHash.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Resolve looks up bearer by its hash and returns the resulting Principal.
// A revoked or expired token, or one with no matching hash, is Unauthorized.
func (r *PATResolver) Resolve(ctx context.Context, bearer string) (domain.Principal, error) {
	tok, err := r.store.GetTokenByHash(ctx, HashToken(bearer))
	if err != nil {
		return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
	}

	now := r.now()
	if !tok.Active(now) {
		return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
	}

	_ = r.store.TouchTokenLastUsed(ctx, tok.TokenID, now)

	return domain.Principal{
		Subject:    tok.Subject,
		TenantID:   tok.TenantID,
		Scopes:     tok.Scopes,
		AuthSource: domain.AuthSourcePAT,
	}, nil
}
