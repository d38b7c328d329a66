package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// WriteAudit inserts an append-only audit record. Callers that need the
// write to share a transaction with the mutation it describes (publish,
// tombstone, policy evaluation) write directly within their own tx instead
// of calling this method — it exists for the standalone audit writes C9
// describes (e.g. quarantine release/reject).
func (s *Store) WriteAudit(ctx context.Context, a domain.AuditRecord) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	if a.AuditID == "" {
		a.AuditID = uuid.NewString()
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_record (audit_id, tenant_id, subject, action, aggregate_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.AuditID, a.TenantID, a.Subject, a.Action, a.AggregateID, a.Detail, a.CreatedAt)

	return err
}

// ListAudit returns the most recent audit records for a tenant, newest
// first, capped at limit.
func (s *Store) ListAudit(ctx context.Context, tenantID string, limit int) ([]domain.AuditRecord, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT audit_id, tenant_id, subject, action, aggregate_id, detail, created_at
		FROM audit_record WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var out []domain.AuditRecord

	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.AuditID, &a.TenantID, &a.Subject, &a.Action, &a.AggregateID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, merrors.AsInternal(err)
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// OpsSummary computes the backlog posture of spec §4.9, each counter a
// direct synchronous read against the truth store.
func (s *Store) OpsSummary(ctx context.Context, now time.Time) (domain.OpsSummary, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.OpsSummary{}, err
	}

	var out domain.OpsSummary

	row := db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE dispatched_at IS NULL) AS pending,
			count(*) FILTER (WHERE dispatched_at IS NULL AND available_at <= $1) AS available,
			COALESCE(EXTRACT(EPOCH FROM ($1 - min(created_at) FILTER (WHERE dispatched_at IS NULL)))::bigint, 0) AS oldest_age
		FROM outbox_event`, now)
	if err := row.Scan(&out.PendingOutboxEvents, &out.AvailableOutboxEvents, &out.OldestPendingOutboxAgeSeconds); err != nil {
		return domain.OpsSummary{}, merrors.AsInternal(err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT count(*) FROM search_index_job WHERE status IN ('pending', 'failed')`).
		Scan(&out.PendingSearchJobs); err != nil {
		return domain.OpsSummary{}, merrors.AsInternal(err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT count(*) FROM search_index_job WHERE status = 'dead_letter'`).
		Scan(&out.FailedSearchJobs); err != nil {
		return domain.OpsSummary{}, merrors.AsInternal(err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT count(*) FROM gc_run WHERE completed_at IS NULL`).
		Scan(&out.IncompleteGCRuns); err != nil {
		return domain.OpsSummary{}, merrors.AsInternal(err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT count(*) FROM audit_record WHERE action = 'policy.timeout' AND created_at >= $1`,
		now.Add(-24*time.Hour)).Scan(&out.RecentPolicyTimeouts24h); err != nil {
		return domain.OpsSummary{}, merrors.AsInternal(err)
	}

	return out, nil
}
