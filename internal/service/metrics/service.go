package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"log/slog"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

// Service computes metrics views on demand. Every number is derived from
// the append-only report log and the device-state projection; nothing here
// maintains mutable counters, so recomputation cannot drift.
type Service struct {
	apps        repository.AppRepository
	deployments repository.DeploymentRepository
	packages    repository.PackageRepository
	reports     repository.ReportRepository
	audits      repository.AuditRepository
	logger      *slog.Logger
}

// New returns a metrics service.
func New(apps repository.AppRepository, deployments repository.DeploymentRepository, packages repository.PackageRepository, reports repository.ReportRepository, audits repository.AuditRepository, logger *slog.Logger) Service {
	if logger != nil {
		logger = logger.With("component", "metrics_aggregator")
	}
	return Service{apps: apps, deployments: deployments, packages: packages, reports: reports, audits: audits, logger: logger}
}

// PackageMetrics aggregates one release, addressed by package id or, for
// packages whose row has been deleted, by content hash. Deleting a package
// never deletes its reports, so history stays queryable either way.
func (s Service) PackageMetrics(ctx context.Context, identifier string) (*domain.PackageMetrics, error) {
	pkg, err := s.packages.GetPackageByID(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.deletedPackageMetrics(ctx, identifier)
		}
		return nil, domain.Internal("load package", err)
	}
	known, err := s.reports.DeploymentKnownDevices(ctx, pkg.DeploymentID)
	if err != nil {
		return nil, domain.Internal("count known devices", err)
	}
	m, err := s.packageMetricsByHash(ctx, pkg.DeploymentID, pkg.PackageHash, known)
	if err != nil {
		return nil, err
	}
	m.PackageID = pkg.ID
	m.Label = pkg.Label
	m.AppVersion = pkg.AppVersion
	return m, nil
}

// deletedPackageMetrics resolves the identifier as a content hash against
// the report log. Counts are summed across every deployment the hash was
// reported in and the result is flagged deleted, not NotFound.
func (s Service) deletedPackageMetrics(ctx context.Context, hash string) (*domain.PackageMetrics, error) {
	deploymentIDs, err := s.reports.DeploymentsForHash(ctx, hash)
	if err != nil {
		return nil, domain.Internal("locate reported hash", err)
	}
	if len(deploymentIDs) == 0 {
		return nil, domain.NotFoundf("package %s not found", hash)
	}
	out := &domain.PackageMetrics{PackageHash: hash, IsDeleted: true}
	var known int64
	for _, deploymentID := range deploymentIDs {
		counts, err := s.reports.PackageReportCounts(ctx, deploymentID, hash)
		if err != nil {
			return nil, domain.Internal("aggregate report counts", err)
		}
		active, err := s.reports.ActiveDeviceCount(ctx, deploymentID, hash)
		if err != nil {
			return nil, domain.Internal("count active devices", err)
		}
		seen, err := s.reports.DeploymentKnownDevices(ctx, deploymentID)
		if err != nil {
			return nil, domain.Internal("count known devices", err)
		}
		out.TotalDownloads += counts.Downloads
		out.TotalInstalls += counts.Installs
		out.TotalFailed += counts.Failed
		out.TotalRollbacks += counts.Rollbacks
		out.ActiveDevices += active
		known += seen
	}
	out.TotalConfirmed = out.ActiveDevices
	if known > 0 {
		rate := int(math.Round(float64(out.ActiveDevices) / float64(known) * 100))
		out.AdoptionRate = &rate
	}
	return out, nil
}

// DeploymentMetrics aggregates a whole channel: per-package metrics most
// recent first (including deleted packages still present in the report
// log), total active devices, and the active version distribution.
func (s Service) DeploymentMetrics(ctx context.Context, deploymentID string) (*domain.DeploymentMetrics, error) {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("deployment %s not found", deploymentID)
		}
		return nil, domain.Internal("load deployment", err)
	}
	packages, err := s.packages.ListPackagesByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("list packages", err)
	}
	known, err := s.reports.DeploymentKnownDevices(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("count known devices", err)
	}

	out := &domain.DeploymentMetrics{
		DeploymentID:   deployment.ID,
		DeploymentName: deployment.DeploymentName,
		DeploymentKey:  deployment.Key,
	}

	seen := make(map[string]struct{}, len(packages))
	for _, pkg := range packages {
		m, err := s.packageMetricsByHash(ctx, deploymentID, pkg.PackageHash, known)
		if err != nil {
			return nil, err
		}
		m.PackageID = pkg.ID
		m.Label = pkg.Label
		m.AppVersion = pkg.AppVersion
		out.Packages = append(out.Packages, *m)
		seen[pkg.PackageHash] = struct{}{}
	}

	// Hashes in the report log with no surviving package row belong to
	// deleted releases; their history stays visible, flagged as deleted.
	hashes, err := s.reports.DistinctReportedHashes(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("list reported hashes", err)
	}
	for _, hash := range hashes {
		if _, ok := seen[hash]; ok {
			continue
		}
		m, err := s.packageMetricsByHash(ctx, deploymentID, hash, known)
		if err != nil {
			return nil, err
		}
		m.IsDeleted = true
		out.Packages = append(out.Packages, *m)
	}

	active, err := s.reports.DeploymentActiveDevices(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("count active devices", err)
	}
	out.TotalActiveDevices = active

	dist, err := s.versionDistribution(ctx, deploymentID, active)
	if err != nil {
		return nil, err
	}
	out.VersionDistribution = dist
	return out, nil
}

// Summary totals reports under an optional deployment or package filter.
func (s Service) Summary(ctx context.Context, deploymentID, packageID string) (*domain.MetricsSummary, error) {
	packageHash := ""
	if strings.TrimSpace(packageID) != "" {
		pkg, err := s.packages.GetPackageByID(ctx, packageID)
		switch {
		case err == nil:
			packageHash = pkg.PackageHash
			if deploymentID == "" {
				deploymentID = pkg.DeploymentID
			}
		case errors.Is(err, repository.ErrNotFound):
			// Deleted packages are filtered by their content hash; their
			// reports outlive the row.
			packageHash = packageID
		default:
			return nil, domain.Internal("load package", err)
		}
	}
	if strings.TrimSpace(deploymentID) != "" {
		if _, err := s.deployments.GetDeploymentByID(ctx, deploymentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.NotFoundf("deployment %s not found", deploymentID)
			}
			return nil, domain.Internal("load deployment", err)
		}
	}
	summary, err := s.reports.SummaryCounts(ctx, deploymentID, packageHash)
	if err != nil {
		return nil, domain.Internal("aggregate summary", err)
	}
	return &summary, nil
}

// Dashboard backs the console landing page.
func (s Service) Dashboard(ctx context.Context) (*domain.DashboardMetrics, error) {
	out := &domain.DashboardMetrics{}
	var err error
	if out.TotalApps, err = s.apps.CountApps(ctx); err != nil {
		return nil, domain.Internal("count apps", err)
	}
	if out.TotalDeployments, err = s.deployments.CountDeployments(ctx); err != nil {
		return nil, domain.Internal("count deployments", err)
	}
	if out.TotalPackages, err = s.packages.CountPackages(ctx); err != nil {
		return nil, domain.Internal("count packages", err)
	}
	if out.TotalActiveDevices, err = s.reports.TotalActiveDevices(ctx); err != nil {
		return nil, domain.Internal("count active devices", err)
	}
	entries, err := s.audits.ListAuditLogs(ctx, 10, 0)
	if err != nil {
		return nil, domain.Internal("list recent activity", err)
	}
	for _, e := range entries {
		out.RecentActivity = append(out.RecentActivity, domain.ActivityItem{
			Type:      e.Entity,
			Message:   fmt.Sprintf("%s %s %s", e.UserEmail, strings.ToLower(e.Action), e.Entity),
			Timestamp: e.CreatedAt,
		})
	}
	return out, nil
}

func (s Service) packageMetricsByHash(ctx context.Context, deploymentID, hash string, knownDevices int64) (*domain.PackageMetrics, error) {
	counts, err := s.reports.PackageReportCounts(ctx, deploymentID, hash)
	if err != nil {
		return nil, domain.Internal("aggregate report counts", err)
	}
	active, err := s.reports.ActiveDeviceCount(ctx, deploymentID, hash)
	if err != nil {
		return nil, domain.Internal("count active devices", err)
	}
	m := &domain.PackageMetrics{
		PackageHash:    hash,
		TotalDownloads: counts.Downloads,
		TotalInstalls:  counts.Installs,
		TotalConfirmed: active,
		TotalFailed:    counts.Failed,
		TotalRollbacks: counts.Rollbacks,
		ActiveDevices:  active,
	}
	// Adoption rate is omitted, not zero, when no device was ever seen.
	if knownDevices > 0 {
		rate := int(math.Round(float64(active) / float64(knownDevices) * 100))
		m.AdoptionRate = &rate
	}
	return m, nil
}

// versionDistribution renders active (appVersion, label) buckets with
// rounded percentages. Every bucket is kept even when rounding makes the
// percentages sum slightly off 100.
func (s Service) versionDistribution(ctx context.Context, deploymentID string, totalActive int64) ([]domain.VersionDistribution, error) {
	counts, err := s.reports.VersionCounts(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("aggregate version counts", err)
	}
	var out []domain.VersionDistribution
	for _, vc := range counts {
		entry := domain.VersionDistribution{
			AppVersion:   vc.AppVersion,
			PackageLabel: vc.Label,
			DeviceCount:  vc.DeviceCount,
		}
		if totalActive > 0 {
			entry.Percentage = int(math.Round(float64(vc.DeviceCount) / float64(totalActive) * 100))
		}
		out = append(out, entry)
	}
	return out, nil
}
