package repository

import (
	"context"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
)

// AppRepository persists apps.
type AppRepository interface {
	CreateApp(ctx context.Context, app *domain.App) error
	GetAppByID(ctx context.Context, id string) (*domain.App, error)
	ListApps(ctx context.Context, owner string) ([]domain.App, error)
	UpdateApp(ctx context.Context, app *domain.App) error
	DeleteApp(ctx context.Context, id string) error
	CountApps(ctx context.Context) (int64, error)
}

// DeploymentRepository manages release channels.
type DeploymentRepository interface {
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	GetDeploymentByID(ctx context.Context, id string) (*domain.Deployment, error)
	GetDeploymentByKey(ctx context.Context, key string) (*domain.Deployment, error)
	ListDeploymentsByApp(ctx context.Context, appID string) ([]domain.Deployment, error)
	ListDeployments(ctx context.Context) ([]domain.Deployment, error)
	UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error
	RotateDeploymentKey(ctx context.Context, id, newKey string) error
	DeleteDeployment(ctx context.Context, id string) error
	CountDeployments(ctx context.Context) (int64, error)
}

// PackageRepository stores releases. CreatePackage assigns the next label
// inside a transaction; a concurrent release to the same deployment
// surfaces as ErrConflict and the caller retries.
type PackageRepository interface {
	CreatePackage(ctx context.Context, pkg *domain.Package) error
	GetPackageByID(ctx context.Context, id string) (*domain.Package, error)
	GetPackageByLabel(ctx context.Context, deploymentID, label string) (*domain.Package, error)
	ListPackagesByDeployment(ctx context.Context, deploymentID string) ([]domain.Package, error)
	ListPackages(ctx context.Context) ([]domain.Package, error)
	SetPackageDisabled(ctx context.Context, id string, disabled bool) error
	UpdatePackage(ctx context.Context, pkg *domain.Package) error
	DeletePackage(ctx context.Context, id string) error
	CountPackages(ctx context.Context) (int64, error)
	CountPackagesByHash(ctx context.Context, deploymentID, packageHash string) (int64, error)
}

// ReportRepository handles the append-only status report log and the
// per-device active package projection.
type ReportRepository interface {
	InsertStatusReport(ctx context.Context, report *domain.StatusReport) (bool, error)
	GetDeviceState(ctx context.Context, deploymentID, clientUniqueID string) (*domain.DeviceState, error)
	UpsertDeviceState(ctx context.Context, state *domain.DeviceState) error

	PackageReportCounts(ctx context.Context, deploymentID, packageHash string) (domain.ReportCounts, error)
	ActiveDeviceCount(ctx context.Context, deploymentID, packageHash string) (int64, error)
	DeploymentActiveDevices(ctx context.Context, deploymentID string) (int64, error)
	DeploymentKnownDevices(ctx context.Context, deploymentID string) (int64, error)
	VersionCounts(ctx context.Context, deploymentID string) ([]domain.VersionCount, error)
	DistinctReportedHashes(ctx context.Context, deploymentID string) ([]string, error)
	DeploymentsForHash(ctx context.Context, packageHash string) ([]string, error)
	SummaryCounts(ctx context.Context, deploymentID, packageHash string) (domain.MetricsSummary, error)
	TotalActiveDevices(ctx context.Context) (int64, error)
}

// AuditRepository stores the append-only administrative audit trail.
type AuditRepository interface {
	InsertAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error)
	ListAuditLogsByUser(ctx context.Context, userID string, limit int) ([]domain.AuditLogEntry, error)
	ListAuditLogsByEntity(ctx context.Context, entity, entityID string, limit int) ([]domain.AuditLogEntry, error)
	PruneAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
