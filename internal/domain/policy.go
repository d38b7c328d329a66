package domain

import "time"

// PolicyDecision is the outcome of evaluating a version against a repo's
// policy hooks at publish time (C6). Evaluation fails closed: a timeout or
// an evaluator error is treated as PolicyDecisionDeny, never as an implicit
// allow.
type PolicyDecision string

const (
	PolicyDecisionAllow      PolicyDecision = "allow"
	PolicyDecisionDeny       PolicyDecision = "deny"
	PolicyDecisionQuarantine PolicyDecision = "quarantine"
)

// PolicyEvaluation is the durable record of one policy gating decision made
// during publish. DecisionSource records which branch of the hint/engine
// resolution produced Decision (hint_allow, hint_deny, hint_quarantine,
// default_allow, or an engine-reported source). EngineVersion is blank for a
// hint-only evaluation (no pluggable engine wired).
type PolicyEvaluation struct {
	EvaluationID   string
	TenantID       string
	RepoID         string
	VersionID      string
	Action         string
	Decision       PolicyDecision
	DecisionSource string
	Reason         string
	EngineVersion  string
	EvaluatedAt    time.Time
	DurationMS     int64
}

// Passed reports whether e allows the version to move to published.
func (e PolicyEvaluation) Passed() bool {
	return e.Decision == PolicyDecisionAllow
}
