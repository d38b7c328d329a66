package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// SAMLConfig configures the ACS validator: the IdP metadata it trusts and
// the SP identity it expects assertions to be addressed to.
type SAMLConfig struct {
	IdPIssuer       string
	SPAudience      string
	IdPCertificates []string // PEM-encoded
	ClaimMappings   []ClaimMapping
	IssuedPATTTL    time.Duration
}

// SAMLTokenIssuer mints the short-TTL PAT a validated SAML assertion is
// exchanged for.
type SAMLTokenIssuer interface {
	CreateToken(ctx context.Context, t domain.Token) (domain.Token, error)
}

// SAMLResolver validates base64-encoded SAML ACS responses and exchanges a
// valid assertion for an internal PAT.
type SAMLResolver struct {
	cfg     SAMLConfig
	sp      *saml2.SAMLServiceProvider
	tokens  SAMLTokenIssuer
}

// NewSAMLResolver builds a resolver from cfg, backed by tokens for minting
// the exchanged PAT.
func NewSAMLResolver(cfg SAMLConfig, tokens SAMLTokenIssuer) (*SAMLResolver, error) {
	store, err := certStore(cfg.IdPCertificates)
	if err != nil {
		return nil, err
	}

	return &SAMLResolver{
		cfg:    cfg,
		tokens: tokens,
		sp: &saml2.SAMLServiceProvider{
			IdentityProviderIssuer:      cfg.IdPIssuer,
			ServiceProviderIssuer:       cfg.SPAudience,
			AudienceURI:                 cfg.SPAudience,
			IDPCertificateStore:         store,
			SignAuthnRequests:           false,
			AllowMissingAttributeValue:  true,
		},
	}, nil
}

func certStore(pemCerts []string) (dsig.MemoryX509CertificateStore, error) {
	store := dsig.MemoryX509CertificateStore{Roots: nil}

	for _, pemCert := range pemCerts {
		cert, err := dsig.ParseX509Certificate([]byte(pemCert))
		if err != nil {
			return store, fmt.Errorf("parsing IdP certificate: %w", err)
		}

		store.Roots = append(store.Roots, cert)
	}

	return store, nil
}

// Resolve validates base64EncodedResponse (the raw SAMLResponse POST field)
// and mints an internal PAT for the asserted subject, returning the
// Principal associated with that new PAT.
func (r *SAMLResolver) Resolve(ctx context.Context, base64EncodedResponse string) (domain.Principal, string, error) {
	assertionInfo, err := r.sp.RetrieveAssertionInfo(base64EncodedResponse)
	if err != nil {
		return domain.Principal{}, "", merrors.NewUnauthorizedError("invalid SAML assertion")
	}

	if assertionInfo.WarningInfo.InvalidTime || assertionInfo.WarningInfo.NotInAudience {
		return domain.Principal{}, "", merrors.NewUnauthorizedError("invalid SAML assertion")
	}

	if assertionInfo.NameID == "" {
		return domain.Principal{}, "", merrors.NewUnauthorizedError("invalid SAML assertion")
	}

	scopes := ApplyClaimMappings(r.cfg.ClaimMappings, attributeValues(assertionInfo.Values))

	plaintext, err := randomToken()
	if err != nil {
		return domain.Principal{}, "", merrors.AsInternal(err)
	}

	ttl := r.cfg.IssuedPATTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	expiresAt := time.Now().Add(ttl)

	tok, err := r.tokens.CreateToken(ctx, domain.Token{
		Subject:   assertionInfo.NameID,
		TokenHash: HashToken(plaintext),
		Scopes:    scopes,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return domain.Principal{}, "", merrors.AsInternal(err)
	}

	return domain.Principal{
		Subject:    tok.Subject,
		TenantID:   tok.TenantID,
		Scopes:     tok.Scopes,
		AuthSource: domain.AuthSourceSAML,
	}, plaintext, nil
}

// Metadata renders the SP's minimal SAML metadata document, advertising
// SPAudience as both entityID and the ACS endpoint's audience. gosaml2 is an
// ACS-validation library only and has no SP metadata generator, so this is
// hand-built against the SAML2 metadata schema rather than grounded on a
// pack dependency.
func (r *SAMLResolver) Metadata(acsURL string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID=%q>
  <md:SPSSODescriptor AuthnRequestsSigned="false" WantAssertionsSigned="true" protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location=%q index="0" isDefault="true"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`, r.cfg.SPAudience, acsURL))
}

func attributeValues(values types.Values) map[string][]string {
	out := make(map[string][]string, len(values))

	for name, attr := range values {
		vals := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			vals = append(vals, v.Value)
		}

		out[name] = vals
	}

	return out
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
