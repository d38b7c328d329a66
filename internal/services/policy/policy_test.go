package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// fakeStore is a hand-written stand-in for Store.
type fakeStore struct {
	quarantineByID map[string]domain.QuarantineItem
	timeoutCalls   int
	recordErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{quarantineByID: map[string]domain.QuarantineItem{}}
}

func (f *fakeStore) RecordPolicyEvaluation(ctx context.Context, e domain.PolicyEvaluation, quarantine *domain.QuarantineItem) (domain.PolicyEvaluation, *domain.QuarantineItem, error) {
	if f.recordErr != nil {
		return domain.PolicyEvaluation{}, nil, f.recordErr
	}

	e.EvaluationID = "eval-1"

	if quarantine != nil {
		quarantine.QuarantineID = "qtn-1"
		f.quarantineByID[quarantine.QuarantineID] = *quarantine
	}

	return e, quarantine, nil
}

func (f *fakeStore) RecordPolicyTimeout(ctx context.Context, tenantID, repoID, versionID, action string, timeoutMS int64) error {
	f.timeoutCalls++
	return nil
}

func (f *fakeStore) ListQuarantine(ctx context.Context, tenantID, repoID, status string) ([]domain.QuarantineItem, error) {
	var out []domain.QuarantineItem
	for _, q := range f.quarantineByID {
		if q.RepoID == repoID && (status == "" || string(q.Status) == status) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeStore) GetQuarantine(ctx context.Context, tenantID, quarantineID string) (domain.QuarantineItem, error) {
	q, ok := f.quarantineByID[quarantineID]
	if !ok {
		return domain.QuarantineItem{}, merrors.NewEntityNotFoundError("quarantine_item", "not found")
	}
	return q, nil
}

func (f *fakeStore) TransitionQuarantine(ctx context.Context, tenantID, quarantineID string, from, to, actor string) (domain.QuarantineItem, error) {
	q, ok := f.quarantineByID[quarantineID]
	if !ok {
		return domain.QuarantineItem{}, merrors.NewEntityNotFoundError("quarantine_item", "not found")
	}

	if string(q.Status) != from {
		return domain.QuarantineItem{}, merrors.NewConflictError("quarantine_conflict", "not in expected state")
	}

	q.Status = domain.QuarantineStatus(to)
	f.quarantineByID[quarantineID] = q

	return q, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil, &mlog.NoneLogger{}, 1000)
}

func TestEvaluate_RejectsUnknownAction(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{Action: "delete", VersionID: "v1", Reason: "r"})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestEvaluate_RequiresVersionAndReason(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{Action: "publish"})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestEvaluate_DefaultHintAllows(t *testing.T) {
	svc := newTestService(newFakeStore())

	result, err := svc.Evaluate(context.Background(), EvaluateRequest{Action: "publish", VersionID: "v1", Reason: "ci"})

	require.NoError(t, err)
	assert.Equal(t, domain.PolicyDecisionAllow, result.Evaluation.Decision)
	assert.Equal(t, "default_allow", result.Evaluation.DecisionSource)
	assert.Equal(t, "publish", result.Evaluation.Action)
	assert.Nil(t, result.Quarantine)
}

func TestEvaluate_QuarantineHintCreatesQuarantineItem(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.Evaluate(context.Background(), EvaluateRequest{
		Action: "publish", VersionID: "v1", Reason: "flagged", DecisionHint: "quarantine",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Quarantine)
	assert.Equal(t, domain.QuarantineStatusQuarantined, result.Quarantine.Status)
	assert.Equal(t, domain.PolicyDecisionQuarantine, result.Evaluation.Decision)
	assert.Equal(t, "hint_quarantine", result.Evaluation.DecisionSource)
}

func TestEvaluate_UnknownHintIsValidationError(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{
		Action: "publish", VersionID: "v1", Reason: "r", DecisionHint: "bogus",
	})

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestEvaluate_SimulateTimeoutEngineFailsClosed(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{
		Action: "publish", VersionID: "v1", Reason: "r", EngineVersion: simulateTimeoutEngine,
	})

	var timeoutErr TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 1, store.timeoutCalls)
}

type erroringEngine struct{}

func (erroringEngine) Evaluate(ctx context.Context, req EvaluateEngineRequest) (EngineVerdict, error) {
	return EngineVerdict{}, errors.New("engine unreachable")
}

func TestEvaluate_EngineErrorFailsClosed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, erroringEngine{}, &mlog.NoneLogger{}, 1000)

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{Action: "publish", VersionID: "v1", Reason: "r"})

	var timeoutErr TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
}

func TestListQuarantine_RejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.ListQuarantine(context.Background(), "t1", "r1", "bogus")

	var valErr merrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestRelease_ForbiddenWhenRepoMismatch(t *testing.T) {
	store := newFakeStore()
	store.quarantineByID["qtn-1"] = domain.QuarantineItem{QuarantineID: "qtn-1", RepoID: "r1", Status: domain.QuarantineStatusQuarantined}
	svc := newTestService(store)

	_, err := svc.Release(context.Background(), "t1", "other-repo", "qtn-1", "alice")

	var forbidden merrors.ForbiddenError
	require.True(t, errors.As(err, &forbidden))
}

func TestRelease_TransitionsToReleased(t *testing.T) {
	store := newFakeStore()
	store.quarantineByID["qtn-1"] = domain.QuarantineItem{QuarantineID: "qtn-1", RepoID: "r1", Status: domain.QuarantineStatusQuarantined}
	svc := newTestService(store)

	q, err := svc.Release(context.Background(), "t1", "r1", "qtn-1", "alice")

	require.NoError(t, err)
	assert.Equal(t, domain.QuarantineStatusReleased, q.Status)
}

func TestReject_TransitionsToRejected(t *testing.T) {
	store := newFakeStore()
	store.quarantineByID["qtn-1"] = domain.QuarantineItem{QuarantineID: "qtn-1", RepoID: "r1", Status: domain.QuarantineStatusQuarantined}
	svc := newTestService(store)

	q, err := svc.Reject(context.Background(), "t1", "r1", "qtn-1", "alice")

	require.NoError(t, err)
	assert.Equal(t, domain.QuarantineStatusRejected, q.Status)
}
