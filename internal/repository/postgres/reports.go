package postgres

import (
	"context"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
)

// InsertStatusReport appends a lifecycle report. Exact duplicates on
// (deployment, device, hash, status, reported_at) are ignored; the bool
// result reports whether a row was actually written.
func (r *Repository) InsertStatusReport(ctx context.Context, report *domain.StatusReport) (bool, error) {
	const query = `INSERT INTO status_reports (deployment_id, deployment_key, client_unique_id, package_hash,
			label, app_version, previous_label_or_app_version, status, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (deployment_id, client_unique_id, package_hash, status, reported_at) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, report.DeploymentID, report.DeploymentKey, report.ClientUniqueID,
		report.PackageHash, report.Label, report.AppVersion, report.PreviousLabelOrAppVersion, report.Status,
		report.ReportedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetDeviceState fetches the current active package pointer for a device.
func (r *Repository) GetDeviceState(ctx context.Context, deploymentID, clientUniqueID string) (*domain.DeviceState, error) {
	const query = `SELECT deployment_id, client_unique_id, package_hash, label, app_version,
			previous_package_hash, previous_label, last_reported_at, updated_at
		FROM device_states WHERE deployment_id = $1 AND client_unique_id = $2`
	row := r.pool.QueryRow(ctx, query, deploymentID, clientUniqueID)
	var s domain.DeviceState
	if err := row.Scan(&s.DeploymentID, &s.ClientUniqueID, &s.PackageHash, &s.Label, &s.AppVersion,
		&s.PreviousPackageHash, &s.PreviousLabel, &s.LastReportedAt, &s.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// UpsertDeviceState writes the device pointer with a compare-and-swap on
// last_reported_at so concurrent reports from one device serialize to the
// newest report and a stale report never overwrites fresher state.
func (r *Repository) UpsertDeviceState(ctx context.Context, state *domain.DeviceState) error {
	const query = `INSERT INTO device_states (deployment_id, client_unique_id, package_hash, label, app_version,
			previous_package_hash, previous_label, last_reported_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (deployment_id, client_unique_id) DO UPDATE SET
			package_hash = EXCLUDED.package_hash,
			label = EXCLUDED.label,
			app_version = EXCLUDED.app_version,
			previous_package_hash = EXCLUDED.previous_package_hash,
			previous_label = EXCLUDED.previous_label,
			last_reported_at = EXCLUDED.last_reported_at,
			updated_at = EXCLUDED.updated_at
		WHERE device_states.last_reported_at <= EXCLUDED.last_reported_at`
	_, err := r.pool.Exec(ctx, query, state.DeploymentID, state.ClientUniqueID, state.PackageHash, state.Label,
		state.AppVersion, state.PreviousPackageHash, state.PreviousLabel, state.LastReportedAt, state.UpdatedAt)
	return err
}

// PackageReportCounts tallies lifecycle events for one content hash.
func (r *Repository) PackageReportCounts(ctx context.Context, deploymentID, packageHash string) (domain.ReportCounts, error) {
	const query = `SELECT
			COUNT(*) FILTER (WHERE status = 'DOWNLOADED'),
			COUNT(*) FILTER (WHERE status = 'DEPLOYED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'ROLLED_BACK')
		FROM status_reports WHERE deployment_id = $1 AND package_hash = $2`
	var c domain.ReportCounts
	if err := r.pool.QueryRow(ctx, query, deploymentID, packageHash).Scan(&c.Downloads, &c.Installs, &c.Failed, &c.Rollbacks); err != nil {
		return domain.ReportCounts{}, err
	}
	return c, nil
}

// ActiveDeviceCount counts devices currently pointing at the given hash.
func (r *Repository) ActiveDeviceCount(ctx context.Context, deploymentID, packageHash string) (int64, error) {
	const query = `SELECT COUNT(1) FROM device_states WHERE deployment_id = $1 AND package_hash = $2`
	var count int64
	if err := r.pool.QueryRow(ctx, query, deploymentID, packageHash).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeploymentActiveDevices counts devices with a current pointer anywhere in
// the deployment.
func (r *Repository) DeploymentActiveDevices(ctx context.Context, deploymentID string) (int64, error) {
	const query = `SELECT COUNT(1) FROM device_states WHERE deployment_id = $1 AND package_hash <> ''`
	var count int64
	if err := r.pool.QueryRow(ctx, query, deploymentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeploymentKnownDevices counts distinct devices ever seen in a deployment.
func (r *Repository) DeploymentKnownDevices(ctx context.Context, deploymentID string) (int64, error) {
	const query = `SELECT COUNT(DISTINCT client_unique_id) FROM status_reports WHERE deployment_id = $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, deploymentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// VersionCounts groups a deployment's active devices by (appVersion, label).
func (r *Repository) VersionCounts(ctx context.Context, deploymentID string) ([]domain.VersionCount, error) {
	const query = `SELECT app_version, label, COUNT(1)
		FROM device_states WHERE deployment_id = $1 AND package_hash <> ''
		GROUP BY app_version, label ORDER BY COUNT(1) DESC, label DESC`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []domain.VersionCount
	for rows.Next() {
		var vc domain.VersionCount
		if err := rows.Scan(&vc.AppVersion, &vc.Label, &vc.DeviceCount); err != nil {
			return nil, err
		}
		counts = append(counts, vc)
	}
	return counts, rows.Err()
}

// DistinctReportedHashes lists every content hash the deployment has ever
// received a report for, including hashes of deleted packages.
func (r *Repository) DistinctReportedHashes(ctx context.Context, deploymentID string) ([]string, error) {
	const query = `SELECT DISTINCT package_hash FROM status_reports WHERE deployment_id = $1 AND package_hash <> ''`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// DeploymentsForHash lists the deployments whose report log mentions the
// given content hash. Lets the aggregator locate history for packages whose
// rows were deleted.
func (r *Repository) DeploymentsForHash(ctx context.Context, packageHash string) ([]string, error) {
	const query = `SELECT DISTINCT deployment_id FROM status_reports WHERE package_hash = $1`
	rows, err := r.pool.Query(ctx, query, packageHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SummaryCounts totals the report log under an optional deployment and
// package-hash filter. Empty filter strings match everything.
func (r *Repository) SummaryCounts(ctx context.Context, deploymentID, packageHash string) (domain.MetricsSummary, error) {
	const query = `SELECT
			COUNT(*) FILTER (WHERE status = 'DOWNLOADED'),
			COUNT(*) FILTER (WHERE status = 'DEPLOYED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'ROLLED_BACK'),
			COUNT(DISTINCT client_unique_id),
			MAX(reported_at)
		FROM status_reports
		WHERE ($1 = '' OR deployment_id = $1) AND ($2 = '' OR package_hash = $2)`
	var summary domain.MetricsSummary
	var last *time.Time
	if err := r.pool.QueryRow(ctx, query, deploymentID, packageHash).Scan(&summary.TotalDownloads,
		&summary.TotalInstalls, &summary.TotalFailed, &summary.TotalRollbacks, &summary.UniqueDevices, &last); err != nil {
		return domain.MetricsSummary{}, err
	}
	summary.LastReportedAt = last

	const activeQuery = `SELECT COUNT(1) FROM device_states
		WHERE ($1 = '' OR deployment_id = $1) AND package_hash <> '' AND ($2 = '' OR package_hash = $2)`
	if err := r.pool.QueryRow(ctx, activeQuery, deploymentID, packageHash).Scan(&summary.ActiveDevices); err != nil {
		return domain.MetricsSummary{}, err
	}
	summary.TotalConfirmed = summary.ActiveDevices
	return summary, nil
}

// TotalActiveDevices counts active pointers across every deployment.
func (r *Repository) TotalActiveDevices(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(1) FROM device_states WHERE package_hash <> ''`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
