package domain

import "time"

// AuditLogEntry records a single administrative mutation. Entries are
// append-only and written best-effort after the primary mutation commits.
type AuditLogEntry struct {
	ID        int64
	UserID    string
	UserEmail string
	Action    string
	Entity    string
	EntityID  string
	Details   string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
