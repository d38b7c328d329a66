// Package ops implements the Audit, Readiness, and Ops summary surface
// (C9). Grounded on spec.md §4.9; readiness probes mirror the teacher's
// PostgresConnection.Connect/Ping and ProducerRabbitMQRepository.
// CheckRabbitMQHealth liveness idiom.
package ops

import (
	"context"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

const defaultAuditLimit = 50

// Store is the subset of domain.Store this service needs.
type Store interface {
	WriteAudit(ctx context.Context, a domain.AuditRecord) error
	ListAudit(ctx context.Context, tenantID string, limit int) ([]domain.AuditRecord, error)
	Ping(ctx context.Context) error
	OpsSummary(ctx context.Context, now time.Time) (domain.OpsSummary, error)
}

// ObjectStore is the subset of the C2 client this service needs.
type ObjectStore interface {
	Ping(ctx context.Context) error
}

// Service implements audit listing, readiness, and ops summary.
type Service struct {
	store  Store
	objs   ObjectStore
	logger mlog.Logger
}

// NewService builds an ops Service.
func NewService(store Store, objs ObjectStore, logger mlog.Logger) *Service {
	return &Service{store: store, objs: objs, logger: logger}
}

// Audit lists the most recent audit records for a tenant.
func (s *Service) Audit(ctx context.Context, tenantID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	return s.store.ListAudit(ctx, tenantID, limit)
}

// DependencyStatus is one entry in a ReadyResult.
type DependencyStatus struct {
	Name    string
	Healthy bool
}

// ReadyResult is the outcome of a readiness probe, matching GET
// /health/ready's { status, dependencies } response shape.
type ReadyResult struct {
	Status       string
	Dependencies []DependencyStatus
}

// Ready runs live probes against the truth store (C1) and object store (C2)
// and rolls them up into one status. Any unhealthy dependency yields
// non-ready, per spec §4.9.
func (s *Service) Ready(ctx context.Context) ReadyResult {
	deps := []DependencyStatus{
		{Name: "postgres", Healthy: s.store.Ping(ctx) == nil},
		{Name: "object_store", Healthy: s.objs.Ping(ctx) == nil},
	}

	status := "ready"

	for _, d := range deps {
		if !d.Healthy {
			status = "not_ready"
			break
		}
	}

	return ReadyResult{Status: status, Dependencies: deps}
}

// Summary returns the backlog posture for GET /admin/ops/summary.
func (s *Service) Summary(ctx context.Context) (domain.OpsSummary, error) {
	return s.store.OpsSummary(ctx, time.Now())
}

// RecordAudit writes a standalone audit entry for operations that don't
// already share a transaction with the mutation they describe (e.g.
// quarantine release/reject handled outside the policy service).
func (s *Service) RecordAudit(ctx context.Context, tenantID, subject, action, aggregateID, detail string) error {
	if subject == "" || action == "" {
		return merrors.NewValidationError("subject and action are required")
	}

	return s.store.WriteAudit(ctx, domain.AuditRecord{
		TenantID:    tenantID,
		Subject:     subject,
		Action:      action,
		AggregateID: aggregateID,
		Detail:      detail,
		CreatedAt:   time.Now(),
	})
}
