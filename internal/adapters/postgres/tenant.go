package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// GetTenantByID loads a Tenant by its primary key.
func (s *Store) GetTenantByID(ctx context.Context, tenantID string) (domain.Tenant, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}

	var t domain.Tenant

	err = db.QueryRowContext(ctx, `SELECT tenant_id, slug FROM tenant WHERE tenant_id = $1`, tenantID).
		Scan(&t.TenantID, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tenant{}, merrors.NewEntityNotFoundError("tenant", "tenant not found")
	}

	if err != nil {
		return domain.Tenant{}, merrors.AsInternal(err)
	}

	return t, nil
}
