package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// RecordPolicyEvaluation inserts a PolicyEvaluation and, if quarantine is
// non-nil, upserts the matching QuarantineItem — one transaction, per spec
// §4.6.
func (s *Store) RecordPolicyEvaluation(ctx context.Context, e domain.PolicyEvaluation, quarantine *domain.QuarantineItem) (domain.PolicyEvaluation, *domain.QuarantineItem, error) {
	var result *domain.QuarantineItem

	err := s.withRetryTx(ctx, func(tx *sql.Tx) error {
		if e.EvaluationID == "" {
			e.EvaluationID = uuid.NewString()
		}

		if e.EvaluatedAt.IsZero() {
			e.EvaluatedAt = time.Now()
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO policy_evaluation (evaluation_id, tenant_id, repo_id, version_id, action, decision, decision_source, reason, engine_version, evaluated_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.EvaluationID, e.TenantID, e.RepoID, e.VersionID, e.Action, string(e.Decision), e.DecisionSource, e.Reason, e.EngineVersion, e.EvaluatedAt, e.DurationMS)
		if err != nil {
			return err
		}

		var quarantineID string

		if quarantine != nil {
			q := *quarantine
			if q.QuarantineID == "" {
				q.QuarantineID = uuid.NewString()
			}

			if q.CreatedAt.IsZero() {
				q.CreatedAt = time.Now()
			}

			row := tx.QueryRowContext(ctx, `
				INSERT INTO quarantine_item (quarantine_id, tenant_id, repo_id, version_id, status, reason, detail, created_at)
				VALUES ($1, $2, $3, $4, 'quarantined', $5, $6, $7)
				ON CONFLICT (tenant_id, repo_id, version_id) DO UPDATE SET status = 'quarantined'
				RETURNING quarantine_id, created_at`,
				q.QuarantineID, q.TenantID, q.RepoID, q.VersionID, string(q.Reason), q.Detail, q.CreatedAt)
			if err := row.Scan(&q.QuarantineID, &q.CreatedAt); err != nil {
				return err
			}

			result = &q
			quarantineID = q.QuarantineID
		}

		var repoKey string
		if err := tx.QueryRowContext(ctx, `SELECT repo_key FROM repo WHERE tenant_id = $1 AND repo_id = $2`,
			e.TenantID, e.RepoID).Scan(&repoKey); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		detail := "repoKey=" + repoKey + " versionId=" + e.VersionID + " action=" + e.Action +
			" decision=" + string(e.Decision) + " decisionSource=" + e.DecisionSource + " quarantineId=" + quarantineID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_record (audit_id, tenant_id, subject, action, aggregate_id, detail, created_at)
			VALUES ($1, $2, 'system', 'policy.evaluated', $3, $4, $5)`,
			uuid.NewString(), e.TenantID, e.VersionID, detail, e.EvaluatedAt)

		return err
	})
	if err != nil {
		return domain.PolicyEvaluation{}, nil, translatePGError("policyEvaluation", err)
	}

	return e, result, nil
}

// RecordPolicyTimeout writes the policy.timeout audit record spec §4.6
// requires on a fail-closed evaluation. No policy_evaluations row and no
// quarantine mutation accompanies it.
func (s *Store) RecordPolicyTimeout(ctx context.Context, tenantID, repoID, versionID, action string, timeoutMS int64) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	detail := "repoId=" + repoID + " action=" + action + " timeoutMs=" + strconv.FormatInt(timeoutMS, 10)

	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_record (audit_id, tenant_id, subject, action, aggregate_id, detail, created_at)
		VALUES ($1, $2, 'system', 'policy.timeout', $3, $4, $5)`,
		uuid.NewString(), tenantID, versionID, detail, time.Now())

	return err
}

// ListQuarantine lists quarantine items for a repo, optionally filtered by
// status (case-insensitive).
func (s *Store) ListQuarantine(ctx context.Context, tenantID, repoID string, status string) ([]domain.QuarantineItem, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT quarantine_id, tenant_id, repo_id, version_id, status, reason, detail, created_at, released_at, released_by
		FROM quarantine_item WHERE tenant_id = $1 AND repo_id = $2`
	args := []any{tenantID, repoID}

	if status != "" {
		query += ` AND lower(status) = $3`
		args = append(args, strings.ToLower(status))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merrors.AsInternal(err)
	}
	defer rows.Close()

	var items []domain.QuarantineItem

	for rows.Next() {
		item, err := scanQuarantineRows(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func scanQuarantineRows(rows *sql.Rows) (domain.QuarantineItem, error) {
	var (
		q      domain.QuarantineItem
		status string
		reason string
	)

	if err := rows.Scan(&q.QuarantineID, &q.TenantID, &q.RepoID, &q.VersionID, &status, &reason, &q.Detail, &q.CreatedAt, &q.ReleasedAt, &q.ReleasedBy); err != nil {
		return domain.QuarantineItem{}, merrors.AsInternal(err)
	}

	q.Status = domain.QuarantineStatus(status)
	q.Reason = domain.QuarantineReason(reason)

	return q, nil
}

// GetQuarantine loads a QuarantineItem by ID, scoped to the tenant.
func (s *Store) GetQuarantine(ctx context.Context, tenantID, quarantineID string) (domain.QuarantineItem, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.QuarantineItem{}, err
	}

	var (
		q      domain.QuarantineItem
		status string
		reason string
	)

	err = db.QueryRowContext(ctx, `
		SELECT quarantine_id, tenant_id, repo_id, version_id, status, reason, detail, created_at, released_at, released_by
		FROM quarantine_item WHERE tenant_id = $1 AND quarantine_id = $2`, tenantID, quarantineID).
		Scan(&q.QuarantineID, &q.TenantID, &q.RepoID, &q.VersionID, &status, &reason, &q.Detail, &q.CreatedAt, &q.ReleasedAt, &q.ReleasedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuarantineItem{}, merrors.NewEntityNotFoundError("quarantineItem", "quarantine item not found")
	}

	if err != nil {
		return domain.QuarantineItem{}, merrors.AsInternal(err)
	}

	q.Status = domain.QuarantineStatus(status)
	q.Reason = domain.QuarantineReason(reason)

	return q, nil
}

// TransitionQuarantine moves a QuarantineItem from one status to another
// (quarantined→released, quarantined→rejected), failing as Conflict if the
// current status doesn't match.
func (s *Store) TransitionQuarantine(ctx context.Context, tenantID, quarantineID string, from, to string, actor string) (domain.QuarantineItem, error) {
	db, err := s.db(ctx)
	if err != nil {
		return domain.QuarantineItem{}, err
	}

	now := time.Now()

	res, err := db.ExecContext(ctx, `
		UPDATE quarantine_item SET status = $1, released_at = $2, released_by = $3
		WHERE tenant_id = $4 AND quarantine_id = $5 AND status = $6`,
		to, now, actor, tenantID, quarantineID, from)
	if err != nil {
		return domain.QuarantineItem{}, merrors.AsInternal(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.QuarantineItem{}, merrors.AsInternal(err)
	}

	if n == 0 {
		return domain.QuarantineItem{}, merrors.NewConflictError("quarantine_state_conflict", "quarantine item is not in the expected state")
	}

	return s.GetQuarantine(ctx, tenantID, quarantineID)
}
