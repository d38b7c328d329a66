package in

import (
	"context"
	"fmt"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// RepoResolver resolves the :key path parameter to the Repo it names.
// Handlers need the numeric RepoID for store calls but URLs carry the
// human-readable RepoKey, so every repo-scoped route resolves through this
// first.
type RepoResolver interface {
	GetRepo(ctx context.Context, tenantID, repoKey string) (domain.Repo, error)
}

// errBadJSON wraps a body-parsing failure as a ValidationError so WithError
// reports 400 instead of falling through to the 500 default.
func errBadJSON(err error) error {
	return merrors.NewValidationError(fmt.Sprintf("malformed request body: %v", err))
}
