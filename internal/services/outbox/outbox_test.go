package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// fakeJobStore is a hand-written stand-in for Store that keeps exactly one
// SearchIndexJob and reproduces the claim/backoff gating of the real
// Postgres adapter (status/attempts/next_attempt), so SweepSearchJobs
// behaves like the production query without a live database.
type fakeJobStore struct {
	published bool

	status      domain.JobState
	attempts    int
	nextAttempt time.Time
}

func (f *fakeJobStore) SweepOutbox(ctx context.Context, batchSize int, now time.Time) (domain.OutboxSweepResult, error) {
	return domain.OutboxSweepResult{}, nil
}

func (f *fakeJobStore) SweepSearchJobs(ctx context.Context, batchSize, maxAttempts int, now time.Time) (domain.JobSweepResult, error) {
	var result domain.JobSweepResult

	claimable := (f.status == domain.JobStatePending || f.status == domain.JobStateFailed) &&
		f.attempts < maxAttempts && !f.nextAttempt.After(now)
	if !claimable {
		return result, nil
	}

	result.ClaimedCount = 1

	if f.published {
		f.status = domain.JobStateSucceeded
		result.CompletedCount = 1

		return result, nil
	}

	nextAttempts := f.attempts + 1
	f.attempts = nextAttempts
	f.nextAttempt = now.Add(domain.NextBackoff(nextAttempts))

	if nextAttempts >= maxAttempts {
		f.status = domain.JobStateDeadLetter
		result.DeadLetterCount = 1
	} else {
		f.status = domain.JobStateFailed
		result.FailedCount = 1
	}

	return result, nil
}

func newTestService(store Store, maxAttempts int) *Service {
	return NewService(store, nil, &mlog.NoneLogger{}, Config{MaxAttempts: maxAttempts, BatchSize: 10})
}

// TestSweepSearchJobs_BackoffProgression exercises spec S6: a job enqueued
// for a version that never publishes accrues attempts 1, 2, ... on a backoff
// schedule, an immediate re-sweep inside the backoff window claims nothing,
// and once attempts reach maxAttempts no further sweep claims the job.
func TestSweepSearchJobs_BackoffProgression(t *testing.T) {
	store := &fakeJobStore{status: domain.JobStatePending}
	svc := newTestService(store, 3)

	now := time.Now()

	_, jobResult, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, jobResult.ClaimedCount)
	assert.Equal(t, 1, jobResult.FailedCount)
	assert.Equal(t, 1, store.attempts)
	assert.Equal(t, domain.JobStateFailed, store.status)
	assert.True(t, store.nextAttempt.After(now))

	_, jobResult, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, jobResult.ClaimedCount, "immediate re-sweep must not claim a job still inside its backoff window")
	assert.Equal(t, 1, store.attempts)

	store.nextAttempt = time.Now().Add(-time.Second)

	_, jobResult, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, jobResult.ClaimedCount)
	assert.Equal(t, 1, jobResult.FailedCount)
	assert.Equal(t, 2, store.attempts)
	assert.Equal(t, domain.JobStateFailed, store.status)

	store.nextAttempt = time.Now().Add(-time.Second)

	_, jobResult, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, jobResult.ClaimedCount)
	assert.Equal(t, 1, jobResult.DeadLetterCount)
	assert.Equal(t, 0, jobResult.FailedCount)
	assert.Equal(t, 3, store.attempts)
	assert.Equal(t, domain.JobStateDeadLetter, store.status)

	store.nextAttempt = time.Now().Add(-time.Second)

	_, jobResult, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, jobResult.ClaimedCount, "a dead-lettered job must never be claimed again")
}

// TestSweepSearchJobs_CompletesOncePublished covers the happy path the same
// sweep takes once the version it was waiting on has published.
func TestSweepSearchJobs_CompletesOncePublished(t *testing.T) {
	store := &fakeJobStore{status: domain.JobStatePending, published: true}
	svc := newTestService(store, 3)

	_, jobResult, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, jobResult.ClaimedCount)
	assert.Equal(t, 1, jobResult.CompletedCount)
	assert.Equal(t, domain.JobStateSucceeded, store.status)
}
