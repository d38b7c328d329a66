package domain

import (
	"net/url"
	"strings"

	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// RepoType is the kind of repository Artifortress stores or proxies.
type RepoType string

const (
	RepoTypeLocal   RepoType = "local"
	RepoTypeRemote  RepoType = "remote"
	RepoTypeVirtual RepoType = "virtual"
)

// Repo is a named collection of package versions within a tenant.
type Repo struct {
	RepoID          string
	TenantID        string
	RepoKey         string
	RepoType        RepoType
	UpstreamURL     string
	MemberRepoKeys  []string
}

// NormalizeRepoKey lowercases and trims a repo key, the canonical form every
// Repo.RepoKey and RepoScope.RepoKey comparison uses.
func NormalizeRepoKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ValidateRepo enforces the invariants of spec §3: repo_key is lowercase,
// trimmed, and must not contain ':'; remote repos require an absolute URI;
// virtual repos require at least one distinct member.
func ValidateRepo(r *Repo) error {
	key := NormalizeRepoKey(r.RepoKey)
	if key == "" {
		return merrors.NewValidationError("repoKey is required.")
	}

	if strings.Contains(key, ":") {
		return merrors.NewValidationError("repoKey cannot contain ':'.")
	}

	r.RepoKey = key

	switch r.RepoType {
	case RepoTypeLocal:
		return nil
	case RepoTypeRemote:
		u, err := url.Parse(r.UpstreamURL)
		if err != nil || !u.IsAbs() {
			return merrors.NewValidationError("remote repos require an absolute upstreamUrl.")
		}

		return nil
	case RepoTypeVirtual:
		distinct := make(map[string]struct{}, len(r.MemberRepoKeys))
		for _, m := range r.MemberRepoKeys {
			distinct[NormalizeRepoKey(m)] = struct{}{}
		}

		if len(distinct) == 0 {
			return merrors.NewValidationError("virtual repos require at least one distinct member.")
		}

		return nil
	default:
		return merrors.NewValidationError("repoType must be one of local, remote, virtual.")
	}
}

// RoleBinding grants a subject a set of roles on a repo, unique by
// (tenant, repo, subject).
type RoleBinding struct {
	TenantID string
	RepoID   string
	Subject  string
	Roles    map[Role]struct{}
}
