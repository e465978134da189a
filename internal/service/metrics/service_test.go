package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

type fakeAppRepo struct {
	count int64
}

func (f *fakeAppRepo) CreateApp(context.Context, *domain.App) error { return nil }
func (f *fakeAppRepo) GetAppByID(context.Context, string) (*domain.App, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeAppRepo) ListApps(context.Context, string) ([]domain.App, error) { return nil, nil }
func (f *fakeAppRepo) UpdateApp(context.Context, *domain.App) error           { return nil }
func (f *fakeAppRepo) DeleteApp(context.Context, string) error                { return nil }
func (f *fakeAppRepo) CountApps(context.Context) (int64, error)               { return f.count, nil }

type fakeDeploymentRepo struct {
	deployment *domain.Deployment
	count      int64
}

func (f *fakeDeploymentRepo) CreateDeployment(context.Context, *domain.Deployment) error { return nil }
func (f *fakeDeploymentRepo) GetDeploymentByID(_ context.Context, id string) (*domain.Deployment, error) {
	if f.deployment != nil && f.deployment.ID == id {
		return f.deployment, nil
	}
	return nil, repository.ErrNotFound
}
func (f *fakeDeploymentRepo) GetDeploymentByKey(context.Context, string) (*domain.Deployment, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeDeploymentRepo) ListDeploymentsByApp(context.Context, string) ([]domain.Deployment, error) {
	return nil, nil
}
func (f *fakeDeploymentRepo) ListDeployments(context.Context) ([]domain.Deployment, error) {
	return nil, nil
}
func (f *fakeDeploymentRepo) UpdateDeployment(context.Context, *domain.Deployment) error { return nil }
func (f *fakeDeploymentRepo) RotateDeploymentKey(context.Context, string, string) error  { return nil }
func (f *fakeDeploymentRepo) DeleteDeployment(context.Context, string) error             { return nil }
func (f *fakeDeploymentRepo) CountDeployments(context.Context) (int64, error) {
	return f.count, nil
}

type fakePackageRepo struct {
	byID  map[string]*domain.Package
	list  []domain.Package
	count int64
}

func (f *fakePackageRepo) CreatePackage(context.Context, *domain.Package) error { return nil }
func (f *fakePackageRepo) GetPackageByID(_ context.Context, id string) (*domain.Package, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}
func (f *fakePackageRepo) GetPackageByLabel(context.Context, string, string) (*domain.Package, error) {
	return nil, repository.ErrNotFound
}
func (f *fakePackageRepo) ListPackagesByDeployment(context.Context, string) ([]domain.Package, error) {
	return f.list, nil
}
func (f *fakePackageRepo) ListPackages(context.Context) ([]domain.Package, error) { return nil, nil }
func (f *fakePackageRepo) SetPackageDisabled(context.Context, string, bool) error { return nil }
func (f *fakePackageRepo) UpdatePackage(context.Context, *domain.Package) error   { return nil }
func (f *fakePackageRepo) DeletePackage(context.Context, string) error            { return nil }
func (f *fakePackageRepo) CountPackages(context.Context) (int64, error)           { return f.count, nil }
func (f *fakePackageRepo) CountPackagesByHash(context.Context, string, string) (int64, error) {
	return 0, nil
}

type fakeReportRepo struct {
	countsByHash map[string]domain.ReportCounts
	activeByHash map[string]int64
	knownDevices int64
	totalActive  int64
	versions     []domain.VersionCount
	hashes       []string
	hashDeps     map[string][]string
	summary      domain.MetricsSummary
}

func (f *fakeReportRepo) InsertStatusReport(context.Context, *domain.StatusReport) (bool, error) {
	return false, nil
}
func (f *fakeReportRepo) GetDeviceState(context.Context, string, string) (*domain.DeviceState, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeReportRepo) UpsertDeviceState(context.Context, *domain.DeviceState) error { return nil }
func (f *fakeReportRepo) PackageReportCounts(_ context.Context, _ string, hash string) (domain.ReportCounts, error) {
	return f.countsByHash[hash], nil
}
func (f *fakeReportRepo) ActiveDeviceCount(_ context.Context, _ string, hash string) (int64, error) {
	return f.activeByHash[hash], nil
}
func (f *fakeReportRepo) DeploymentActiveDevices(context.Context, string) (int64, error) {
	return f.totalActive, nil
}
func (f *fakeReportRepo) DeploymentKnownDevices(context.Context, string) (int64, error) {
	return f.knownDevices, nil
}
func (f *fakeReportRepo) VersionCounts(context.Context, string) ([]domain.VersionCount, error) {
	return f.versions, nil
}
func (f *fakeReportRepo) DistinctReportedHashes(context.Context, string) ([]string, error) {
	return f.hashes, nil
}
func (f *fakeReportRepo) DeploymentsForHash(_ context.Context, hash string) ([]string, error) {
	return f.hashDeps[hash], nil
}
func (f *fakeReportRepo) SummaryCounts(context.Context, string, string) (domain.MetricsSummary, error) {
	return f.summary, nil
}
func (f *fakeReportRepo) TotalActiveDevices(context.Context) (int64, error) {
	return f.totalActive, nil
}

type fakeAuditRepo struct {
	entries []domain.AuditLogEntry
}

func (f *fakeAuditRepo) InsertAuditLog(context.Context, *domain.AuditLogEntry) error { return nil }
func (f *fakeAuditRepo) ListAuditLogs(context.Context, int, int) ([]domain.AuditLogEntry, error) {
	return f.entries, nil
}
func (f *fakeAuditRepo) ListAuditLogsByUser(context.Context, string, int) ([]domain.AuditLogEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) ListAuditLogsByEntity(context.Context, string, string, int) ([]domain.AuditLogEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) PruneAuditLogsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestPackageMetricsComputesCounts(t *testing.T) {
	pkg := &domain.Package{ID: "pkg-1", DeploymentID: "dep-1", Label: "v1", AppVersion: "1.0.0", PackageHash: "hash-1"}
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{},
		&fakePackageRepo{byID: map[string]*domain.Package{"pkg-1": pkg}},
		&fakeReportRepo{
			countsByHash: map[string]domain.ReportCounts{
				"hash-1": {Downloads: 10, Installs: 8, Failed: 1, Rollbacks: 1},
			},
			activeByHash: map[string]int64{"hash-1": 6},
			knownDevices: 12,
		},
		&fakeAuditRepo{},
		nil,
	)

	m, err := svc.PackageMetrics(context.Background(), "pkg-1")
	if err != nil {
		t.Fatalf("PackageMetrics returned error: %v", err)
	}
	if m.TotalDownloads != 10 || m.TotalInstalls != 8 || m.TotalFailed != 1 || m.TotalRollbacks != 1 {
		t.Fatalf("unexpected counts: %+v", m)
	}
	if m.ActiveDevices != 6 || m.TotalConfirmed != 6 {
		t.Fatalf("active devices should be 6, got %+v", m)
	}
	if m.AdoptionRate == nil || *m.AdoptionRate != 50 {
		t.Fatalf("expected adoption rate 50, got %v", m.AdoptionRate)
	}
	if m.Label != "v1" || m.AppVersion != "1.0.0" {
		t.Fatalf("package identity missing: %+v", m)
	}
}

func TestPackageMetricsOmitsAdoptionWithoutKnownDevices(t *testing.T) {
	pkg := &domain.Package{ID: "pkg-1", DeploymentID: "dep-1", Label: "v1", PackageHash: "hash-1"}
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{},
		&fakePackageRepo{byID: map[string]*domain.Package{"pkg-1": pkg}},
		&fakeReportRepo{},
		&fakeAuditRepo{},
		nil,
	)

	m, err := svc.PackageMetrics(context.Background(), "pkg-1")
	if err != nil {
		t.Fatalf("PackageMetrics returned error: %v", err)
	}
	if m.AdoptionRate != nil {
		t.Fatalf("adoption rate should be omitted, got %d", *m.AdoptionRate)
	}
}

func TestPackageMetricsForDeletedPackageByHash(t *testing.T) {
	// No package row exists for the hash; history must still aggregate,
	// flagged deleted rather than rejected.
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{},
		&fakePackageRepo{},
		&fakeReportRepo{
			countsByHash: map[string]domain.ReportCounts{
				"hash-gone": {Downloads: 4, Installs: 3, Rollbacks: 1},
			},
			activeByHash: map[string]int64{"hash-gone": 2},
			knownDevices: 4,
			hashDeps:     map[string][]string{"hash-gone": {"dep-1"}},
		},
		&fakeAuditRepo{},
		nil,
	)

	m, err := svc.PackageMetrics(context.Background(), "hash-gone")
	if err != nil {
		t.Fatalf("PackageMetrics returned error: %v", err)
	}
	if !m.IsDeleted {
		t.Fatalf("expected deleted flag: %+v", m)
	}
	if m.TotalDownloads != 4 || m.TotalInstalls != 3 || m.TotalRollbacks != 1 || m.ActiveDevices != 2 {
		t.Fatalf("history lost for deleted package: %+v", m)
	}
	if m.AdoptionRate == nil || *m.AdoptionRate != 50 {
		t.Fatalf("expected adoption rate 50, got %v", m.AdoptionRate)
	}
}

func TestPackageMetricsUnknownPackageIsNotFound(t *testing.T) {
	svc := New(&fakeAppRepo{}, &fakeDeploymentRepo{}, &fakePackageRepo{}, &fakeReportRepo{}, &fakeAuditRepo{}, nil)
	if _, err := svc.PackageMetrics(context.Background(), "pkg-missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeploymentMetricsIncludesDeletedPackages(t *testing.T) {
	deployment := &domain.Deployment{ID: "dep-1", DeploymentName: "Production", Key: "dk_prod"}
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{deployment: deployment},
		&fakePackageRepo{list: []domain.Package{
			{ID: "pkg-2", DeploymentID: "dep-1", Label: "v2", PackageHash: "hash-2"},
		}},
		&fakeReportRepo{
			countsByHash: map[string]domain.ReportCounts{
				"hash-2": {Downloads: 5, Installs: 5},
				"hash-1": {Downloads: 9, Installs: 7},
			},
			activeByHash: map[string]int64{"hash-2": 4, "hash-1": 1},
			knownDevices: 10,
			totalActive:  5,
			hashes:       []string{"hash-2", "hash-1"},
		},
		&fakeAuditRepo{},
		nil,
	)

	out, err := svc.DeploymentMetrics(context.Background(), "dep-1")
	if err != nil {
		t.Fatalf("DeploymentMetrics returned error: %v", err)
	}
	if len(out.Packages) != 2 {
		t.Fatalf("expected 2 package entries, got %d", len(out.Packages))
	}
	if out.Packages[0].PackageHash != "hash-2" || out.Packages[0].IsDeleted {
		t.Fatalf("live package entry wrong: %+v", out.Packages[0])
	}
	deleted := out.Packages[1]
	if deleted.PackageHash != "hash-1" || !deleted.IsDeleted {
		t.Fatalf("deleted package should surface flagged: %+v", deleted)
	}
	if deleted.TotalDownloads != 9 {
		t.Fatalf("deleted package history lost: %+v", deleted)
	}
	if out.TotalActiveDevices != 5 {
		t.Fatalf("expected 5 active devices, got %d", out.TotalActiveDevices)
	}
}

func TestDeploymentMetricsVersionDistribution(t *testing.T) {
	deployment := &domain.Deployment{ID: "dep-1", DeploymentName: "Production", Key: "dk_prod"}
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{deployment: deployment},
		&fakePackageRepo{},
		&fakeReportRepo{
			totalActive: 3,
			versions: []domain.VersionCount{
				{AppVersion: "1.0.0", Label: "v2", DeviceCount: 2},
				{AppVersion: "1.0.0", Label: "v1", DeviceCount: 1},
			},
		},
		&fakeAuditRepo{},
		nil,
	)

	out, err := svc.DeploymentMetrics(context.Background(), "dep-1")
	if err != nil {
		t.Fatalf("DeploymentMetrics returned error: %v", err)
	}
	if len(out.VersionDistribution) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out.VersionDistribution))
	}
	if out.VersionDistribution[0].Percentage != 67 {
		t.Fatalf("expected rounded 67%%, got %d", out.VersionDistribution[0].Percentage)
	}
	if out.VersionDistribution[1].Percentage != 33 {
		t.Fatalf("expected rounded 33%%, got %d", out.VersionDistribution[1].Percentage)
	}
}

func TestSummaryResolvesPackageFilter(t *testing.T) {
	pkg := &domain.Package{ID: "pkg-1", DeploymentID: "dep-1", PackageHash: "hash-1"}
	deployment := &domain.Deployment{ID: "dep-1"}
	last := time.Date(2026, time.February, 10, 8, 0, 0, 0, time.UTC)
	svc := New(
		&fakeAppRepo{},
		&fakeDeploymentRepo{deployment: deployment},
		&fakePackageRepo{byID: map[string]*domain.Package{"pkg-1": pkg}},
		&fakeReportRepo{summary: domain.MetricsSummary{TotalDownloads: 42, UniqueDevices: 7, LastReportedAt: &last}},
		&fakeAuditRepo{},
		nil,
	)

	out, err := svc.Summary(context.Background(), "", "pkg-1")
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if out.TotalDownloads != 42 || out.UniqueDevices != 7 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.LastReportedAt == nil || !out.LastReportedAt.Equal(last) {
		t.Fatalf("unexpected last report time: %v", out.LastReportedAt)
	}
}

func TestDashboardAggregatesTotals(t *testing.T) {
	svc := New(
		&fakeAppRepo{count: 3},
		&fakeDeploymentRepo{count: 6},
		&fakePackageRepo{count: 20},
		&fakeReportRepo{totalActive: 150},
		&fakeAuditRepo{entries: []domain.AuditLogEntry{
			{UserEmail: "ops@example.com", Action: "CREATE", Entity: "package"},
		}},
		nil,
	)

	out, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}
	if out.TotalApps != 3 || out.TotalDeployments != 6 || out.TotalPackages != 20 || out.TotalActiveDevices != 150 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if len(out.RecentActivity) != 1 || out.RecentActivity[0].Type != "package" {
		t.Fatalf("unexpected activity: %+v", out.RecentActivity)
	}
}
