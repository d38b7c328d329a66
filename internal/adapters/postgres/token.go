package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// CreateToken inserts a new PAT row and returns it with its generated ID.
func (s *Store) CreateToken(ctx context.Context, t domain.Token) (domain.Token, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Token{}, err
	}

	if t.TokenID == "" {
		t.TokenID = uuid.NewString()
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	scopes := make([]string, 0, len(t.Scopes))
	for _, sc := range t.Scopes {
		scopes = append(scopes, sc.Serialize())
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO token (token_id, tenant_id, subject, token_hash, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.TokenID, t.TenantID, t.Subject, t.TokenHash, pq.Array(scopes), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return domain.Token{}, translatePGError("token", err)
	}

	return t, nil
}

// GetTokenByHash looks up a Token by its sha256 hash.
func (s *Store) GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Token{}, err
	}

	var (
		t      domain.Token
		scopes pq.StringArray
	)

	err = db.QueryRowContext(ctx, `
		SELECT token_id, tenant_id, subject, token_hash, scopes, expires_at, revoked_at, created_at, last_used_at
		FROM token WHERE token_hash = $1`, tokenHash).
		Scan(&t.TokenID, &t.TenantID, &t.Subject, &t.TokenHash, &scopes, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt, &t.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Token{}, merrors.NewEntityNotFoundError("token", "token not found")
	}

	if err != nil {
		return domain.Token{}, merrors.AsInternal(err)
	}

	t.Scopes = domain.ParseRepoScopes(scopes)

	return t, nil
}

// RevokeToken marks a token revoked, scoped to the issuing tenant so one
// tenant's admin cannot revoke another tenant's PAT by guessing an id.
func (s *Store) RevokeToken(ctx context.Context, tenantID, tokenID string, at time.Time) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE token SET revoked_at = $1 WHERE tenant_id = $2 AND token_id = $3 AND revoked_at IS NULL`,
		at, tenantID, tokenID)
	if err != nil {
		return merrors.AsInternal(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return merrors.NewEntityNotFoundError("token", "token not found")
	}

	return nil
}

// TouchTokenLastUsed updates the token's last-used timestamp, best effort —
// failing to record this never blocks the request it's authenticating.
func (s *Store) TouchTokenLastUsed(ctx context.Context, tokenID string, at time.Time) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE token SET last_used_at = $1 WHERE token_id = $2`, at, tokenID)

	return err
}
