package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/redis/go-redis/v9"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// OIDCConfig configures the OIDCResolver. Either HS256Secret or one of the
// JWKS sources (or both) may be set; whichever algorithm a presented token
// claims to use must have a matching configured source.
type OIDCConfig struct {
	Issuer          string
	Audience        string
	HS256Secret     string
	StaticJWKS      jwk.Set
	RemoteJWKSURI   string
	RemoteRefreshTTL time.Duration
	ClaimMappings   []ClaimMapping
}

// OIDCResolver validates compact JWS bearer tokens under HS256 and/or RS256.
type OIDCResolver struct {
	cfg       OIDCConfig
	refresher *jwksRefresher
}

// NewOIDCResolver builds a resolver from cfg. redisClient may be nil, in
// which case JWKS refresh coalescing is process-local only.
func NewOIDCResolver(cfg OIDCConfig, redisClient *redis.Client) *OIDCResolver {
	r := &OIDCResolver{cfg: cfg}

	if cfg.RemoteJWKSURI != "" {
		ttl := cfg.RemoteRefreshTTL
		if ttl <= 0 {
			ttl = time.Hour
		}

		r.refresher = newJWKSRefresher(cfg.RemoteJWKSURI, ttl, redisClient)
	}

	return r
}

// Resolve validates bearer as a compact JWS and returns the Principal it
// encodes. Any structural, signature, issuer, audience, or expiry failure
// is reported as Unauthorized — never as an internal error, so a malformed
// token never leaks parser internals.
func (r *OIDCResolver) Resolve(ctx context.Context, bearer string) (domain.Principal, error) {
	var claims jwt.MapClaims

	token, err := jwt.ParseWithClaims(bearer, &claims, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case "HS256":
			if r.cfg.HS256Secret == "" {
				return nil, fmt.Errorf("HS256 not configured")
			}

			return []byte(r.cfg.HS256Secret), nil
		case "RS256":
			return r.rsaKey(ctx, t)
		default:
			return nil, fmt.Errorf("unsupported alg %q", t.Method.Alg())
		}
	}, jwt.WithValidMethods([]string{"HS256", "RS256"}))

	if err != nil || !token.Valid {
		return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
	}

	if iss, _ := claims.GetIssuer(); r.cfg.Issuer != "" && iss != r.cfg.Issuer {
		return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
	}

	if r.cfg.Audience != "" {
		aud, _ := claims.GetAudience()
		if !containsString(aud, r.cfg.Audience) {
			return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
		}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return domain.Principal{}, merrors.NewUnauthorizedError("invalid token")
	}

	return domain.Principal{
		Subject:    sub,
		Scopes:     r.scopesFromClaims(claims),
		AuthSource: domain.AuthSourceOIDC,
	}, nil
}

func (r *OIDCResolver) rsaKey(ctx context.Context, t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("kid header not found")
	}

	if key, ok := lookupKID(r.cfg.StaticJWKS, kid); ok {
		return key, nil
	}

	if r.refresher != nil {
		if set := r.refresher.Get(ctx); set != nil {
			if key, ok := lookupKID(set, kid); ok {
				return key, nil
			}
		}
	}

	return nil, fmt.Errorf("kid %q not found in any configured key set", kid)
}

func lookupKID(set jwk.Set, kid string) (any, bool) {
	if set == nil {
		return nil, false
	}

	k, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, false
	}

	var raw any
	if err := k.Raw(&raw); err != nil {
		return nil, false
	}

	return raw, true
}

// scopesFromClaims derives RepoScopes from the space-delimited "scope"
// claim if present, else from the configured claim-to-role mappings.
func (r *OIDCResolver) scopesFromClaims(claims jwt.MapClaims) []domain.RepoScope {
	if raw, ok := claims["scope"].(string); ok && strings.TrimSpace(raw) != "" {
		return domain.ParseRepoScopes(strings.Fields(raw))
	}

	return ApplyClaimMappings(r.cfg.ClaimMappings, claimValues(claims))
}

func claimValues(claims jwt.MapClaims) map[string][]string {
	out := make(map[string][]string, len(claims))

	for k, v := range claims {
		switch t := v.(type) {
		case string:
			out[k] = []string{t}
		case []any:
			vals := make([]string, 0, len(t))
			for _, item := range t {
				if s, ok := item.(string); ok {
					vals = append(vals, s)
				}
			}

			out[k] = vals
		}
	}

	return out
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}

	return false
}
