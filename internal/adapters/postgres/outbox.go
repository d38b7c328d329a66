package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/domain"
)

// SweepOutbox is the outbox producer sweep of spec §4.7: claim up to
// batchSize undelivered version.published events with SKIP LOCKED, route
// each to a version_id (aggregate_id fast path, payload fallback, else
// requeue), upsert a pending SearchIndexJob, and mark the event delivered —
// all in one transaction so a crash mid-sweep releases every claim.
func (s *Store) SweepOutbox(ctx context.Context, batchSize int, now time.Time) (domain.OutboxSweepResult, error) {
	var result domain.OutboxSweepResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT event_id, tenant_id, aggregate_id, payload
			FROM outbox_event
			WHERE event_type = 'version.published' AND dispatched_at IS NULL AND available_at <= $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, now, batchSize)
		if err != nil {
			return err
		}

		type claimed struct {
			eventID, tenantID, aggregateID string
			payload                        []byte
		}

		var events []claimed

		for rows.Next() {
			var c claimed
			if err := rows.Scan(&c.eventID, &c.tenantID, &c.aggregateID, &c.payload); err != nil {
				rows.Close()
				return err
			}

			events = append(events, c)
		}

		if err := rows.Err(); err != nil {
			return err
		}

		rows.Close()

		result.ClaimedCount = len(events)

		for _, e := range events {
			versionID, ok := routeVersionID(e.aggregateID, e.payload)
			if !ok {
				result.RequeuedCount++
				continue
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO search_index_job (job_id, tenant_id, event_id, aggregate_id, event_type, payload, status, attempts, next_attempt, created_at)
				VALUES ($1, $2, $3, $4, 'version.published', $5, 'pending', 0, $6, $6)
				ON CONFLICT (tenant_id, aggregate_id) DO UPDATE SET event_id = EXCLUDED.event_id, payload = EXCLUDED.payload`,
				uuid.NewString(), e.tenantID, e.eventID, versionID, e.payload, now); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `UPDATE outbox_event SET dispatched_at = $1 WHERE event_id = $2`, now, e.eventID); err != nil {
				return err
			}

			result.EnqueuedCount++
			result.DeliveredCount++
		}

		return nil
	})

	return result, err
}

func routeVersionID(aggregateID string, payload []byte) (string, bool) {
	if _, err := uuid.Parse(aggregateID); err == nil {
		return aggregateID, true
	}

	var body struct {
		VersionID string `json:"versionId"`
	}

	if err := json.Unmarshal(payload, &body); err == nil {
		if _, err := uuid.Parse(body.VersionID); err == nil {
			return body.VersionID, true
		}
	}

	return "", false
}

// SweepSearchJobs is the consumer sweep of spec §4.7: claim pending/failed
// jobs under their retry budget with SKIP LOCKED, complete those whose
// version has since published, and reschedule the rest with exponential
// backoff.
func (s *Store) SweepSearchJobs(ctx context.Context, batchSize, maxAttempts int, now time.Time) (domain.JobSweepResult, error) {
	var result domain.JobSweepResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT job_id, tenant_id, aggregate_id, attempts
			FROM search_index_job
			WHERE status IN ('pending', 'failed') AND attempts < $1 AND next_attempt <= $2
			ORDER BY next_attempt
			LIMIT $3
			FOR UPDATE SKIP LOCKED`, maxAttempts, now, batchSize)
		if err != nil {
			return err
		}

		type claimed struct {
			jobID, tenantID, versionID string
			attempts                   int
		}

		var jobs []claimed

		for rows.Next() {
			var c claimed
			if err := rows.Scan(&c.jobID, &c.tenantID, &c.versionID, &c.attempts); err != nil {
				rows.Close()
				return err
			}

			jobs = append(jobs, c)
		}

		if err := rows.Err(); err != nil {
			return err
		}

		rows.Close()

		result.ClaimedCount = len(jobs)

		for _, j := range jobs {
			var state string

			err := tx.QueryRowContext(ctx, `SELECT state FROM package_version WHERE tenant_id = $1 AND version_id = $2`, j.tenantID, j.versionID).Scan(&state)
			if err != nil && err != sql.ErrNoRows {
				return err
			}

			if state == string(domain.VersionStatePublished) {
				if _, err := tx.ExecContext(ctx, `
					UPDATE search_index_job SET status = 'succeeded', last_error = NULL WHERE job_id = $1`, j.jobID); err != nil {
					return err
				}

				result.CompletedCount++

				continue
			}

			nextAttempts := j.attempts + 1

			backoff := domain.NextBackoff(nextAttempts)
			nextAvailable := now.Add(backoff)

			status := string(domain.JobStateFailed)
			if nextAttempts >= maxAttempts {
				status = string(domain.JobStateDeadLetter)
			}

			if _, err := tx.ExecContext(ctx, `
				UPDATE search_index_job
				SET status = $1, attempts = $2, next_attempt = $3, last_error = 'version_not_published'
				WHERE job_id = $4`, status, nextAttempts, nextAvailable, j.jobID); err != nil {
				return err
			}

			if status == string(domain.JobStateDeadLetter) {
				result.DeadLetterCount++
			} else {
				result.FailedCount++
			}
		}

		return nil
	})

	return result, err
}
