package postgres

import (
	"context"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
)

const auditColumns = `id, user_id, user_email, action, entity, entity_id, details, ip_address, user_agent, created_at`

// InsertAuditLog appends an audit entry.
func (r *Repository) InsertAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `INSERT INTO audit_logs (user_id, user_email, action, entity, entity_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	return r.pool.QueryRow(ctx, query, entry.UserID, entry.UserEmail, entry.Action, entry.Entity, entry.EntityID,
		entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt).Scan(&entry.ID)
}

// ListAuditLogs returns entries newest first.
func (r *Repository) ListAuditLogs(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error) {
	const query = `SELECT ` + auditColumns + ` FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	return r.queryAuditLogs(ctx, query, limit, offset)
}

// ListAuditLogsByUser returns a user's entries newest first.
func (r *Repository) ListAuditLogsByUser(ctx context.Context, userID string, limit int) ([]domain.AuditLogEntry, error) {
	const query = `SELECT ` + auditColumns + ` FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	return r.queryAuditLogs(ctx, query, userID, limit)
}

// ListAuditLogsByEntity returns entries for one entity newest first.
func (r *Repository) ListAuditLogsByEntity(ctx context.Context, entity, entityID string, limit int) ([]domain.AuditLogEntry, error) {
	const query = `SELECT ` + auditColumns + ` FROM audit_logs WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3`
	return r.queryAuditLogs(ctx, query, entity, entityID, limit)
}

// PruneAuditLogsBefore deletes entries older than cutoff and reports how
// many rows were removed.
func (r *Repository) PruneAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) queryAuditLogs(ctx context.Context, query string, args ...any) ([]domain.AuditLogEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.Action, &e.Entity, &e.EntityID, &e.Details,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
