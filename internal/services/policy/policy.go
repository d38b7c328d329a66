// Package policy implements the Policy & Quarantine Engine (C6):
// timeout-bounded evaluation, decision-hint selection, and repo-scoped
// quarantine list/release/reject. Grounded on spec.md §4.6, structured in
// the teacher's use-case-struct idiom
// (components/ledger/internal/services/command/create-ledger.go).
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// simulateTimeoutEngine is the test hook spec §4.6 requires: any evaluation
// request naming this engine version fails closed unconditionally.
const simulateTimeoutEngine = "simulate_timeout"

// Store is the subset of domain.Store this service needs.
type Store interface {
	RecordPolicyEvaluation(ctx context.Context, e domain.PolicyEvaluation, quarantine *domain.QuarantineItem) (domain.PolicyEvaluation, *domain.QuarantineItem, error)
	RecordPolicyTimeout(ctx context.Context, tenantID, repoID, versionID, action string, timeoutMS int64) error
	ListQuarantine(ctx context.Context, tenantID, repoID, status string) ([]domain.QuarantineItem, error)
	GetQuarantine(ctx context.Context, tenantID, quarantineID string) (domain.QuarantineItem, error)
	TransitionQuarantine(ctx context.Context, tenantID, quarantineID string, from, to, actor string) (domain.QuarantineItem, error)
}

// Engine evaluates one version against a repo's policy hooks. A real
// deployment wires an HTTP/gRPC call here; Evaluate blocks until the engine
// returns or ctx is done.
type Engine interface {
	Evaluate(ctx context.Context, req EvaluateEngineRequest) (EngineVerdict, error)
}

// EvaluateEngineRequest is what the engine sees for one evaluation.
type EvaluateEngineRequest struct {
	TenantID     string
	RepoID       string
	VersionID    string
	Action       string
	Reason       string
	DecisionHint string
}

// EngineVerdict is what an Engine returns on success.
type EngineVerdict struct {
	Decision       domain.PolicyDecision
	DecisionSource string
	Detail         string
}

// Service implements the policy & quarantine engine.
type Service struct {
	store     Store
	engine    Engine
	logger    mlog.Logger
	timeoutMS int64
}

// NewService builds a policy Service. timeoutMS bounds every Evaluate call.
func NewService(store Store, engine Engine, logger mlog.Logger, timeoutMS int64) *Service {
	if timeoutMS <= 0 {
		timeoutMS = 5000
	}

	return &Service{store: store, engine: engine, logger: logger, timeoutMS: timeoutMS}
}

// EvaluateRequest is the input to Evaluate.
type EvaluateRequest struct {
	TenantID      string
	RepoID        string
	VersionID     string
	Action        string
	Reason        string
	DecisionHint  string
	EngineVersion string
}

// EvaluateResult is the outcome of a successful Evaluate call.
type EvaluateResult struct {
	Evaluation domain.PolicyEvaluation
	Quarantine *domain.QuarantineItem
}

// TimeoutError is returned when an evaluation fails closed on timeout,
// carrying the fields spec §4.6's 503 response requires.
type TimeoutError struct {
	Action    string
	TimeoutMS int64
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("policy evaluation timed out after %dms", e.TimeoutMS)
}

// Evaluate implements spec §4.6's evaluation flow: validate, run the engine
// under a deadline, and on success persist the PolicyEvaluation (and any
// resulting QuarantineItem) atomically. A timeout or engine error fails
// closed and is recorded as an audit-only event, never as a policy row.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	if req.Action != "publish" && req.Action != "promote" {
		return EvaluateResult{}, merrors.NewValidationError("action must be publish or promote")
	}

	if req.VersionID == "" || req.Reason == "" {
		return EvaluateResult{}, merrors.NewValidationError("version_id and reason are required")
	}

	decision, source, err := resolveHint(req.DecisionHint)
	if err != nil {
		return EvaluateResult{}, err
	}

	if req.EngineVersion == simulateTimeoutEngine {
		return EvaluateResult{}, s.failClosed(ctx, req)
	}

	verdict := EngineVerdict{Decision: decision, DecisionSource: source}

	if s.engine != nil {
		evalCtx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutMS)*time.Millisecond)
		defer cancel()

		v, err := s.engine.Evaluate(evalCtx, EvaluateEngineRequest{
			TenantID: req.TenantID, RepoID: req.RepoID, VersionID: req.VersionID,
			Action: req.Action, Reason: req.Reason, DecisionHint: req.DecisionHint,
		})
		if err != nil {
			return EvaluateResult{}, s.failClosed(ctx, req)
		}

		verdict = v
	}

	eval := domain.PolicyEvaluation{
		TenantID:       req.TenantID,
		RepoID:         req.RepoID,
		VersionID:      req.VersionID,
		Action:         req.Action,
		Decision:       verdict.Decision,
		DecisionSource: verdict.DecisionSource,
		Reason:         req.Reason,
		EngineVersion:  req.EngineVersion,
	}

	var quarantine *domain.QuarantineItem

	if verdict.Decision == domain.PolicyDecisionQuarantine {
		quarantine = &domain.QuarantineItem{
			TenantID:  req.TenantID,
			RepoID:    req.RepoID,
			VersionID: req.VersionID,
			Status:    domain.QuarantineStatusQuarantined,
			Reason:    domain.QuarantineReasonPolicyDenied,
			Detail:    verdict.Detail,
		}
	}

	recorded, q, err := s.store.RecordPolicyEvaluation(ctx, eval, quarantine)
	if err != nil {
		return EvaluateResult{}, err
	}

	return EvaluateResult{Evaluation: recorded, Quarantine: q}, nil
}

func (s *Service) failClosed(ctx context.Context, req EvaluateRequest) error {
	_ = s.store.RecordPolicyTimeout(ctx, req.TenantID, req.RepoID, req.VersionID, req.Action, s.timeoutMS)
	return TimeoutError{Action: req.Action, TimeoutMS: s.timeoutMS}
}

// resolveHint implements spec §4.6's decisionHint ∈ {allow, deny, quarantine}
// selection; a blank hint defaults to (allow, default_allow).
func resolveHint(hint string) (domain.PolicyDecision, string, error) {
	switch hint {
	case "":
		return domain.PolicyDecisionAllow, "default_allow", nil
	case "allow":
		return domain.PolicyDecisionAllow, "hint_allow", nil
	case "deny":
		return domain.PolicyDecisionDeny, "hint_deny", nil
	case "quarantine":
		return domain.PolicyDecisionQuarantine, "hint_quarantine", nil
	default:
		return "", "", merrors.NewValidationError(fmt.Sprintf("unknown decisionHint %q", hint))
	}
}

// ListQuarantine returns a repo's quarantine items, optionally filtered by
// status.
func (s *Service) ListQuarantine(ctx context.Context, tenantID, repoID, status string) ([]domain.QuarantineItem, error) {
	status = strings.ToLower(status)

	switch status {
	case "", "quarantined", "released", "rejected":
	default:
		return nil, merrors.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	return s.store.ListQuarantine(ctx, tenantID, repoID, status)
}

// Release transitions a quarantine item from quarantined to released. The
// caller is responsible for the repo-ownership check (Forbidden, not
// NotFound, per spec §4.6) before calling this.
func (s *Service) Release(ctx context.Context, tenantID, repoID, quarantineID, actor string) (domain.QuarantineItem, error) {
	return s.transition(ctx, tenantID, repoID, quarantineID, domain.QuarantineStatusReleased, actor)
}

// Reject transitions a quarantine item from quarantined to rejected.
func (s *Service) Reject(ctx context.Context, tenantID, repoID, quarantineID, actor string) (domain.QuarantineItem, error) {
	return s.transition(ctx, tenantID, repoID, quarantineID, domain.QuarantineStatusRejected, actor)
}

func (s *Service) transition(ctx context.Context, tenantID, repoID, quarantineID string, to domain.QuarantineStatus, actor string) (domain.QuarantineItem, error) {
	existing, err := s.store.GetQuarantine(ctx, tenantID, quarantineID)
	if err != nil {
		return domain.QuarantineItem{}, err
	}

	if existing.RepoID != repoID {
		return domain.QuarantineItem{}, merrors.NewForbiddenError("quarantine item does not belong to this repo")
	}

	return s.store.TransitionQuarantine(ctx, tenantID, quarantineID, string(domain.QuarantineStatusQuarantined), string(to), actor)
}
