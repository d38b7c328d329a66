package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// CreateRepo inserts a new Repo row.
func (s *Store) CreateRepo(ctx context.Context, repo domain.Repo) (domain.Repo, error) {
	ctx, end := s.span(ctx, "create_repo")
	defer func() { end(nil) }()

	db, err := s.db(ctx)
	if err != nil {
		return domain.Repo{}, err
	}

	if repo.RepoID == "" {
		repo.RepoID = uuid.NewString()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO repo (repo_id, tenant_id, repo_key, repo_type, upstream_url, member_repo_keys)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		repo.RepoID, repo.TenantID, repo.RepoKey, string(repo.RepoType), repo.UpstreamURL, pq.Array(repo.MemberRepoKeys))
	if err != nil {
		return domain.Repo{}, translatePGError("repo", err)
	}

	return repo, nil
}

// GetRepoByKey looks up a Repo by its normalized key within a tenant.
func (s *Store) GetRepoByKey(ctx context.Context, tenantID, repoKey string) (domain.Repo, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Repo{}, err
	}

	var (
		r       domain.Repo
		repoTyp string
		members pq.StringArray
	)

	err = db.QueryRowContext(ctx, `
		SELECT repo_id, tenant_id, repo_key, repo_type, upstream_url, member_repo_keys
		FROM repo WHERE tenant_id = $1 AND repo_key = $2`,
		tenantID, domain.NormalizeRepoKey(repoKey)).
		Scan(&r.RepoID, &r.TenantID, &r.RepoKey, &repoTyp, &r.UpstreamURL, &members)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Repo{}, merrors.NewEntityNotFoundError("repo", "repo not found")
	}

	if err != nil {
		return domain.Repo{}, merrors.AsInternal(err)
	}

	r.RepoType = domain.RepoType(repoTyp)
	r.MemberRepoKeys = members

	return r, nil
}

// GetRepoByID looks up a Repo by its primary key within a tenant.
func (s *Store) GetRepoByID(ctx context.Context, tenantID, repoID string) (domain.Repo, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Repo{}, err
	}

	var (
		r       domain.Repo
		repoTyp string
		members pq.StringArray
	)

	err = db.QueryRowContext(ctx, `
		SELECT repo_id, tenant_id, repo_key, repo_type, upstream_url, member_repo_keys
		FROM repo WHERE tenant_id = $1 AND repo_id = $2`,
		tenantID, repoID).
		Scan(&r.RepoID, &r.TenantID, &r.RepoKey, &repoTyp, &r.UpstreamURL, &members)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Repo{}, merrors.NewEntityNotFoundError("repo", "repo not found")
	}

	if err != nil {
		return domain.Repo{}, merrors.AsInternal(err)
	}

	r.RepoType = domain.RepoType(repoTyp)
	r.MemberRepoKeys = members

	return r, nil
}

// ListRepos returns every Repo registered in a tenant, ordered by key.
func (s *Store) ListRepos(ctx context.Context, tenantID string) ([]domain.Repo, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT repo_id, tenant_id, repo_key, repo_type, upstream_url, member_repo_keys
		FROM repo WHERE tenant_id = $1
		ORDER BY repo_key ASC`, tenantID)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var out []domain.Repo

	for rows.Next() {
		var (
			r       domain.Repo
			repoTyp string
			members pq.StringArray
		)

		if err := rows.Scan(&r.RepoID, &r.TenantID, &r.RepoKey, &repoTyp, &r.UpstreamURL, &members); err != nil {
			return nil, merrors.AsInternal(err)
		}

		r.RepoType = domain.RepoType(repoTyp)
		r.MemberRepoKeys = members
		out = append(out, r)
	}

	return out, rows.Err()
}

// UpdateRepo overwrites a Repo's mutable fields (upstream URL, virtual
// membership). repo_key and repo_type are immutable after creation.
func (s *Store) UpdateRepo(ctx context.Context, repo domain.Repo) (domain.Repo, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Repo{}, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE repo SET upstream_url = $1, member_repo_keys = $2
		WHERE tenant_id = $3 AND repo_id = $4`,
		repo.UpstreamURL, pq.Array(repo.MemberRepoKeys), repo.TenantID, repo.RepoID)
	if err != nil {
		return domain.Repo{}, translatePGError("repo", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Repo{}, merrors.NewEntityNotFoundError("repo", "repo not found")
	}

	return s.GetRepoByID(ctx, repo.TenantID, repo.RepoID)
}

// DeleteRepo removes a Repo and its bindings.
func (s *Store) DeleteRepo(ctx context.Context, tenantID, repoID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_binding WHERE tenant_id = $1 AND repo_id = $2`, tenantID, repoID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM repo WHERE tenant_id = $1 AND repo_id = $2`, tenantID, repoID)

		return err
	})
}

// ListRepoBindings returns every RoleBinding on a repo.
func (s *Store) ListRepoBindings(ctx context.Context, tenantID, repoID string) ([]domain.RoleBinding, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT subject, roles FROM role_binding WHERE tenant_id = $1 AND repo_id = $2`,
		tenantID, repoID)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var bindings []domain.RoleBinding

	for rows.Next() {
		var (
			subject string
			roles   pq.StringArray
		)

		if err := rows.Scan(&subject, &roles); err != nil {
			return nil, merrors.AsInternal(err)
		}

		rb := domain.RoleBinding{TenantID: tenantID, RepoID: repoID, Subject: subject, Roles: map[domain.Role]struct{}{}}
		for _, r := range roles {
			if role, ok := domain.ParseRole(r); ok {
				rb.Roles[role] = struct{}{}
			}
		}

		bindings = append(bindings, rb)
	}

	return bindings, rows.Err()
}

// UpsertRoleBinding creates or replaces the role set a subject holds on a
// repo.
func (s *Store) UpsertRoleBinding(ctx context.Context, b domain.RoleBinding) (domain.RoleBinding, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.RoleBinding{}, err
	}

	roles := make([]string, 0, len(b.Roles))
	for r := range b.Roles {
		roles = append(roles, string(r))
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO role_binding (tenant_id, repo_id, subject, roles, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id, repo_id, subject)
		DO UPDATE SET roles = EXCLUDED.roles, updated_at = now()`,
		b.TenantID, b.RepoID, b.Subject, pq.Array(roles))
	if err != nil {
		return domain.RoleBinding{}, translatePGError("roleBinding", err)
	}

	return b, nil
}

// DeleteRoleBinding removes a subject's binding on a repo.
func (s *Store) DeleteRoleBinding(ctx context.Context, tenantID, repoID, subject string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM role_binding WHERE tenant_id = $1 AND repo_id = $2 AND subject = $3`,
		tenantID, repoID, subject)

	return err
}
