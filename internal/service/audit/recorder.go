package audit

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

// Actor identifies who performed a mutation, as pre-granted by the gateway.
type Actor struct {
	UserID    string
	UserEmail string
	IPAddress string
	UserAgent string
}

// Recorder appends audit entries after successful mutations. Writes are
// best-effort: a failed write is logged and counted, never surfaced, so the
// primary mutation cannot be failed or rolled back by audit trouble.
type Recorder struct {
	repo     repository.AuditRepository
	logger   *slog.Logger
	failures prometheus.Counter
	now      func() time.Time
}

// NewRecorder returns an audit recorder registering its failure counter on
// the given registerer.
func NewRecorder(repo repository.AuditRepository, logger *slog.Logger, reg prometheus.Registerer) *Recorder {
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "codepush",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Count of audit log writes that failed and were dropped",
	})
	if reg != nil {
		if err := reg.Register(failures); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if c, ok := are.ExistingCollector.(prometheus.Counter); ok {
					failures = c
				}
			}
		}
	}
	if logger != nil {
		logger = logger.With("component", "audit_recorder")
	}
	return &Recorder{repo: repo, logger: logger, failures: failures, now: time.Now}
}

// Record appends one entry for a committed mutation.
func (r *Recorder) Record(ctx context.Context, actor Actor, action, entity, entityID, details string) {
	if r == nil || r.repo == nil {
		return
	}
	entry := &domain.AuditLogEntry{
		UserID:    actor.UserID,
		UserEmail: actor.UserEmail,
		Action:    strings.ToUpper(action),
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: r.now().UTC(),
	}
	if err := r.repo.InsertAuditLog(ctx, entry); err != nil {
		r.failures.Inc()
		if r.logger != nil {
			r.logger.Error("audit write failed", "action", action, "entity", entity, "entity_id", entityID, "error", err)
		}
	}
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return r.repo.ListAuditLogs(ctx, limit, offset)
}

// ListByUser returns one user's entries newest first.
func (r *Recorder) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AuditLogEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.InvalidArgumentf("user id required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.repo.ListAuditLogsByUser(ctx, userID, limit)
}

// ListByEntity returns entries for one entity newest first.
func (r *Recorder) ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]domain.AuditLogEntry, error) {
	if strings.TrimSpace(entity) == "" || strings.TrimSpace(entityID) == "" {
		return nil, domain.InvalidArgumentf("entity and entity id required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.repo.ListAuditLogsByEntity(ctx, entity, entityID, limit)
}

// Prune removes entries older than the retention window.
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return r.repo.PruneAuditLogsBefore(ctx, r.now().UTC().Add(-retention))
}
