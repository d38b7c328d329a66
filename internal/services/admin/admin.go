// Package admin implements repo provisioning, role bindings, and PAT
// issuance/revocation — the admin-only CRUD surface spec.md §6's routing
// table groups under "CRUD /v1/repos…" and "/v1/auth/pats". Grounded on
// spec.md §3 and §4.3, structured in the teacher's use-case-struct idiom
// (components/ledger/internal/services/command/create-ledger.go).
package admin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

const defaultIssuedPATTTL = 90 * 24 * time.Hour

// Store is the subset of domain.Store this service needs.
type Store interface {
	CreateRepo(ctx context.Context, repo domain.Repo) (domain.Repo, error)
	GetRepoByKey(ctx context.Context, tenantID, repoKey string) (domain.Repo, error)
	GetRepoByID(ctx context.Context, tenantID, repoID string) (domain.Repo, error)
	ListRepos(ctx context.Context, tenantID string) ([]domain.Repo, error)
	UpdateRepo(ctx context.Context, repo domain.Repo) (domain.Repo, error)
	DeleteRepo(ctx context.Context, tenantID, repoID string) error
	ListRepoBindings(ctx context.Context, tenantID, repoID string) ([]domain.RoleBinding, error)
	UpsertRoleBinding(ctx context.Context, b domain.RoleBinding) (domain.RoleBinding, error)
	DeleteRoleBinding(ctx context.Context, tenantID, repoID, subject string) error
	CreateToken(ctx context.Context, t domain.Token) (domain.Token, error)
	RevokeToken(ctx context.Context, tenantID, tokenID string, at time.Time) error
}

// TokenMinter generates the raw PAT secret and its persisted hash. Factored
// out so tests can substitute a deterministic generator.
type TokenMinter func() (plaintext, hash string, err error)

// Service implements repo/binding/PAT administration.
type Service struct {
	store  Store
	mint   TokenMinter
	logger mlog.Logger
}

// NewService builds an admin Service. mint defaults to auth.HashToken over a
// crypto/rand-generated secret when nil.
func NewService(store Store, mint TokenMinter, logger mlog.Logger) *Service {
	if mint == nil {
		mint = defaultMint
	}

	return &Service{store: store, mint: mint, logger: logger}
}

// CreateRepoRequest is the input to CreateRepo.
type CreateRepoRequest struct {
	TenantID       string
	RepoKey        string
	RepoType       domain.RepoType
	UpstreamURL    string
	MemberRepoKeys []string
}

// CreateRepo validates and inserts a new Repo, per spec §3's invariants.
func (s *Service) CreateRepo(ctx context.Context, req CreateRepoRequest) (domain.Repo, error) {
	repo := domain.Repo{
		RepoID:         uuid.NewString(),
		TenantID:       req.TenantID,
		RepoKey:        req.RepoKey,
		RepoType:       req.RepoType,
		UpstreamURL:    req.UpstreamURL,
		MemberRepoKeys: req.MemberRepoKeys,
	}

	if err := domain.ValidateRepo(&repo); err != nil {
		return domain.Repo{}, err
	}

	return s.store.CreateRepo(ctx, repo)
}

// GetRepo resolves a repo by its key.
func (s *Service) GetRepo(ctx context.Context, tenantID, repoKey string) (domain.Repo, error) {
	return s.store.GetRepoByKey(ctx, tenantID, repoKey)
}

// ListRepos lists every repo in a tenant.
func (s *Service) ListRepos(ctx context.Context, tenantID string) ([]domain.Repo, error) {
	return s.store.ListRepos(ctx, tenantID)
}

// UpdateRepoRequest is the input to UpdateRepo.
type UpdateRepoRequest struct {
	TenantID       string
	RepoKey        string
	UpstreamURL    *string
	MemberRepoKeys []string
}

// UpdateRepo updates a repo's mutable fields, re-validating the result
// against spec §3's per-type invariants.
func (s *Service) UpdateRepo(ctx context.Context, req UpdateRepoRequest) (domain.Repo, error) {
	existing, err := s.store.GetRepoByKey(ctx, req.TenantID, req.RepoKey)
	if err != nil {
		return domain.Repo{}, err
	}

	if req.UpstreamURL != nil {
		existing.UpstreamURL = *req.UpstreamURL
	}

	if req.MemberRepoKeys != nil {
		existing.MemberRepoKeys = req.MemberRepoKeys
	}

	if err := domain.ValidateRepo(&existing); err != nil {
		return domain.Repo{}, err
	}

	return s.store.UpdateRepo(ctx, existing)
}

// DeleteRepo removes a repo and its bindings.
func (s *Service) DeleteRepo(ctx context.Context, tenantID, repoKey string) error {
	repo, err := s.store.GetRepoByKey(ctx, tenantID, repoKey)
	if err != nil {
		return err
	}

	return s.store.DeleteRepo(ctx, tenantID, repo.RepoID)
}

// ListBindings lists every RoleBinding on a repo.
func (s *Service) ListBindings(ctx context.Context, tenantID, repoKey string) ([]domain.RoleBinding, error) {
	repo, err := s.store.GetRepoByKey(ctx, tenantID, repoKey)
	if err != nil {
		return nil, err
	}

	return s.store.ListRepoBindings(ctx, tenantID, repo.RepoID)
}

// SetBinding grants subject the given roles on repoKey, replacing any
// existing binding.
func (s *Service) SetBinding(ctx context.Context, tenantID, repoKey, subject string, roles []domain.Role) (domain.RoleBinding, error) {
	if subject == "" {
		return domain.RoleBinding{}, merrors.NewValidationError("subject is required")
	}

	if len(roles) == 0 {
		return domain.RoleBinding{}, merrors.NewValidationError("at least one role is required")
	}

	repo, err := s.store.GetRepoByKey(ctx, tenantID, repoKey)
	if err != nil {
		return domain.RoleBinding{}, err
	}

	roleSet := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return s.store.UpsertRoleBinding(ctx, domain.RoleBinding{
		TenantID: tenantID,
		RepoID:   repo.RepoID,
		Subject:  subject,
		Roles:    roleSet,
	})
}

// DeleteBinding removes subject's binding on repoKey.
func (s *Service) DeleteBinding(ctx context.Context, tenantID, repoKey, subject string) error {
	repo, err := s.store.GetRepoByKey(ctx, tenantID, repoKey)
	if err != nil {
		return err
	}

	return s.store.DeleteRoleBinding(ctx, tenantID, repo.RepoID, subject)
}

// IssuePATRequest is the input to IssuePAT.
type IssuePATRequest struct {
	TenantID string
	Subject  string
	Scopes   []domain.RepoScope
	TTL      time.Duration
}

// IssuePATResult carries the one-time plaintext secret alongside the
// persisted token metadata.
type IssuePATResult struct {
	Token     domain.Token
	Plaintext string
}

// IssuePAT mints a new Personal Access Token. The plaintext secret is
// returned exactly once; only its hash is ever persisted.
func (s *Service) IssuePAT(ctx context.Context, req IssuePATRequest) (IssuePATResult, error) {
	if req.Subject == "" {
		return IssuePATResult{}, merrors.NewValidationError("subject is required")
	}

	plaintext, hash, err := s.mint()
	if err != nil {
		return IssuePATResult{}, merrors.AsInternal(err)
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = defaultIssuedPATTTL
	}

	expiresAt := time.Now().Add(ttl)

	tok, err := s.store.CreateToken(ctx, domain.Token{
		TenantID:  req.TenantID,
		Subject:   req.Subject,
		TokenHash: hash,
		Scopes:    req.Scopes,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return IssuePATResult{}, err
	}

	return IssuePATResult{Token: tok, Plaintext: plaintext}, nil
}

// RevokePAT revokes a PAT by id, scoped to the issuing tenant.
func (s *Service) RevokePAT(ctx context.Context, tenantID, tokenID string) error {
	if tokenID == "" {
		return merrors.NewValidationError("tokenId is required")
	}

	return s.store.RevokeToken(ctx, tenantID, tokenID, time.Now())
}
