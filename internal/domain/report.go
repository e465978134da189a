package domain

import "time"

// ReportStatus enumerates device lifecycle events for a release.
type ReportStatus string

const (
	StatusDownloaded ReportStatus = "DOWNLOADED"
	StatusDeployed   ReportStatus = "DEPLOYED"
	StatusFailed     ReportStatus = "FAILED"
	StatusRolledBack ReportStatus = "ROLLED_BACK"
)

// ValidReportStatus reports whether s is a known lifecycle status.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case StatusDownloaded, StatusDeployed, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

// StatusReport is one device-reported lifecycle event. Reports are
// append-only and never mutated after ingestion; duplicates on
// (deployment, device, hash, status, reported_at) are dropped at insert.
type StatusReport struct {
	ID                        int64
	DeploymentID              string
	DeploymentKey             string
	ClientUniqueID            string
	PackageHash               string
	Label                     string
	AppVersion                string
	PreviousLabelOrAppVersion string
	Status                    ReportStatus
	ReportedAt                time.Time
}

// DeviceState is the per-(deployment, device) "current active package"
// pointer projected from the report log. It is a cache: rebuildable from
// reports alone. LastReportedAt guards against stale overwrites.
type DeviceState struct {
	DeploymentID        string
	ClientUniqueID      string
	PackageHash         string
	Label               string
	AppVersion          string
	PreviousPackageHash string
	PreviousLabel       string
	LastReportedAt      time.Time
	UpdatedAt           time.Time
}
