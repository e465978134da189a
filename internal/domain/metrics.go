package domain

import "time"

// PackageMetrics aggregates report counts for one release. AdoptionRate is
// nil when the deployment has never seen a device. IsDeleted marks metrics
// for packages whose row has been removed; their reports remain queryable.
type PackageMetrics struct {
	PackageID      string `json:"packageId"`
	Label          string `json:"label"`
	PackageHash    string `json:"packageHash"`
	AppVersion     string `json:"appVersion"`
	TotalDownloads int64  `json:"totalDownloads"`
	TotalInstalls  int64  `json:"totalInstalls"`
	TotalConfirmed int64  `json:"totalConfirmed"`
	TotalFailed    int64  `json:"totalFailed"`
	TotalRollbacks int64  `json:"totalRollbacks"`
	ActiveDevices  int64  `json:"activeDevices"`
	AdoptionRate   *int   `json:"adoptionRate,omitempty"`
	IsDeleted      bool   `json:"isDeleted,omitempty"`
}

// VersionDistribution is one (appVersion, label) slice of a deployment's
// active devices.
type VersionDistribution struct {
	AppVersion   string `json:"appVersion"`
	PackageLabel string `json:"packageLabel"`
	DeviceCount  int64  `json:"deviceCount"`
	Percentage   int    `json:"percentage"`
}

// DeploymentMetrics aggregates a whole channel, packages most recent first.
type DeploymentMetrics struct {
	DeploymentID        string                `json:"deploymentId"`
	DeploymentName      string                `json:"deploymentName"`
	DeploymentKey       string                `json:"deploymentKey"`
	TotalActiveDevices  int64                 `json:"totalActiveDevices"`
	Packages            []PackageMetrics      `json:"packages"`
	VersionDistribution []VersionDistribution `json:"versionDistribution"`
}

// MetricsSummary totals reports across an optional deployment or package
// filter. LastReportedAt is nil when no report matches.
type MetricsSummary struct {
	TotalDownloads int64      `json:"totalDownloads"`
	TotalInstalls  int64      `json:"totalInstalls"`
	TotalConfirmed int64      `json:"totalConfirmed"`
	TotalFailed    int64      `json:"totalFailed"`
	TotalRollbacks int64      `json:"totalRollbacks"`
	UniqueDevices  int64      `json:"uniqueDevices"`
	ActiveDevices  int64      `json:"activeDevices"`
	LastReportedAt *time.Time `json:"lastReportedAt,omitempty"`
}

// ReportCounts are raw per-package event tallies from the report log.
type ReportCounts struct {
	Downloads int64
	Installs  int64
	Failed    int64
	Rollbacks int64
}

// VersionCount is one (appVersion, label) bucket of currently active devices.
type VersionCount struct {
	AppVersion  string
	Label       string
	DeviceCount int64
}

// ActivityItem is one line of the dashboard's recent activity feed.
type ActivityItem struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardMetrics backs the console landing page.
type DashboardMetrics struct {
	TotalApps          int64          `json:"totalApps"`
	TotalDeployments   int64          `json:"totalDeployments"`
	TotalPackages      int64          `json:"totalPackages"`
	TotalActiveDevices int64          `json:"totalActiveDevices"`
	RecentActivity     []ActivityItem `json:"recentActivity"`
}
