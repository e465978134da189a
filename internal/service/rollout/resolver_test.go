package rollout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

type fakeDeploymentRepo struct {
	byKey map[string]*domain.Deployment
}

func (f *fakeDeploymentRepo) CreateDeployment(context.Context, *domain.Deployment) error { return nil }
func (f *fakeDeploymentRepo) GetDeploymentByID(context.Context, string) (*domain.Deployment, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeDeploymentRepo) GetDeploymentByKey(_ context.Context, key string) (*domain.Deployment, error) {
	if d, ok := f.byKey[key]; ok {
		return d, nil
	}
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
func (f *fakeDeploymentRepo) CountDeployments(context.Context) (int64, error)            { return 0, nil }

type fakePackageRepo struct {
	byDeployment map[string][]domain.Package
}

func (f *fakePackageRepo) CreatePackage(context.Context, *domain.Package) error { return nil }
func (f *fakePackageRepo) GetPackageByID(context.Context, string) (*domain.Package, error) {
	return nil, repository.ErrNotFound
}
func (f *fakePackageRepo) GetPackageByLabel(context.Context, string, string) (*domain.Package, error) {
	return nil, repository.ErrNotFound
}
func (f *fakePackageRepo) ListPackagesByDeployment(_ context.Context, deploymentID string) ([]domain.Package, error) {
	return f.byDeployment[deploymentID], nil
}
func (f *fakePackageRepo) ListPackages(context.Context) ([]domain.Package, error) { return nil, nil }
func (f *fakePackageRepo) SetPackageDisabled(context.Context, string, bool) error { return nil }
func (f *fakePackageRepo) UpdatePackage(context.Context, *domain.Package) error   { return nil }
func (f *fakePackageRepo) DeletePackage(context.Context, string) error            { return nil }
func (f *fakePackageRepo) CountPackages(context.Context) (int64, error)           { return 0, nil }
func (f *fakePackageRepo) CountPackagesByHash(context.Context, string, string) (int64, error) {
	return 0, nil
}

const testKey = "dk_prod"

func newResolver(packages ...domain.Package) Service {
	deployments := &fakeDeploymentRepo{byKey: map[string]*domain.Deployment{
		testKey: {ID: "dep-1", Key: testKey, Status: domain.DeploymentActive},
	}}
	// Stored most recent first, matching repository ordering.
	return New(deployments, &fakePackageRepo{byDeployment: map[string][]domain.Package{"dep-1": packages}}, nil)
}

func pkg(labelNum, rollout int, hash string) domain.Package {
	return domain.Package{
		ID:           fmt.Sprintf("pkg-%d", labelNum),
		DeploymentID: "dep-1",
		Label:        domain.FormatLabel(labelNum),
		LabelNum:     labelNum,
		AppVersion:   "1.0.0",
		PackageHash:  hash,
		Rollout:      rollout,
		CreatedAt:    time.Now(),
	}
}

// bucketedDevice finds a device ID falling into [lo, hi] for testKey so
// rollout gating can be exercised deterministically.
func bucketedDevice(t *testing.T, lo, hi int) string {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		id := fmt.Sprintf("device-%d", i)
		if b := Bucket(testKey, id); b >= lo && b <= hi {
			return id
		}
	}
	t.Fatalf("no device found with bucket in [%d, %d]", lo, hi)
	return ""
}

func TestResolveRejectsMissingInputs(t *testing.T) {
	svc := newResolver()
	cases := []Request{
		{ClientUniqueID: "d", AppVersion: "1.0.0"},
		{DeploymentKey: testKey, AppVersion: "1.0.0"},
		{DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "not-a-version"},
	}
	for i, req := range cases {
		if _, err := svc.Resolve(context.Background(), req); domain.KindOf(err) != domain.KindInvalidArgument {
			t.Fatalf("case %d: expected invalid argument, got %v", i, err)
		}
	}
}

func TestResolveUnknownKeyIsNotFound(t *testing.T) {
	svc := newResolver()
	_, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: "dk_bogus", ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveDisabledDeploymentLooksAbsent(t *testing.T) {
	deployments := &fakeDeploymentRepo{byKey: map[string]*domain.Deployment{
		testKey: {ID: "dep-1", Key: testKey, Status: domain.DeploymentDisabled},
	}}
	svc := New(deployments, &fakePackageRepo{}, nil)
	_, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found for disabled deployment, got %v", err)
	}
}

func TestResolveEmptyDeploymentHasNoUpdate(t *testing.T) {
	svc := newResolver()
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.UpdateAvailable {
		t.Fatal("expected no update from an empty deployment")
	}
}

func TestResolveReturnsLatestEligible(t *testing.T) {
	svc := newResolver(pkg(2, 100, "hash-2"), pkg(1, 100, "hash-1"))
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package == nil {
		t.Fatal("expected an update")
	}
	if decision.Package.Label != "v2" {
		t.Fatalf("expected v2, got %s", decision.Package.Label)
	}
}

func TestResolveRolloutGateAdmitsLowBuckets(t *testing.T) {
	svc := newResolver(pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	insider := bucketedDevice(t, 0, 9)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: insider, AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package.Label != "v2" {
		t.Fatalf("bucket %d should receive v2, got %+v", Bucket(testKey, insider), decision)
	}
}

func TestResolveRolloutGateFallsBackToOlderRelease(t *testing.T) {
	svc := newResolver(pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	outsider := bucketedDevice(t, 50, 99)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: outsider, AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package.Label != "v1" {
		t.Fatalf("bucket %d should fall back to v1, got %+v", Bucket(testKey, outsider), decision)
	}
}

func TestResolveNoUpdateWhenDeviceAlreadyCurrent(t *testing.T) {
	svc := newResolver(pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	// Excluded from v2's rollout and already on v1: nothing to offer.
	outsider := bucketedDevice(t, 50, 99)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey:      testKey,
		ClientUniqueID:     outsider,
		AppVersion:         "1.0.0",
		CurrentPackageHash: "hash-1",
		CurrentLabel:       "v1",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.UpdateAvailable {
		t.Fatalf("expected no update, got %+v", decision.Package)
	}
}

func TestResolveNeverDowngrades(t *testing.T) {
	svc := newResolver(pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	// Device already on v2 but excluded from v2's rollout. Falling back to
	// v1 would be a downgrade; the label guard prevents it.
	outsider := bucketedDevice(t, 50, 99)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey:      testKey,
		ClientUniqueID:     outsider,
		AppVersion:         "1.0.0",
		CurrentPackageHash: "hash-2",
		CurrentLabel:       "v2",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.UpdateAvailable {
		t.Fatalf("expected no downgrade, got %+v", decision.Package)
	}
}

func TestResolveNoUpdateWhenDeviceHoldsTargetHash(t *testing.T) {
	svc := newResolver(pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	// Device already runs the target's bits but sits outside its rollout
	// and reports no label. The gate must not hand v1 back.
	outsider := bucketedDevice(t, 50, 99)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey:      testKey,
		ClientUniqueID:     outsider,
		AppVersion:         "1.0.0",
		CurrentPackageHash: "hash-2",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.UpdateAvailable {
		t.Fatalf("expected no update for device on target hash, got %+v", decision.Package)
	}
}

func TestResolveHashMatchFloorsFallback(t *testing.T) {
	svc := newResolver(pkg(3, 10, "hash-3"), pkg(2, 10, "hash-2"), pkg(1, 100, "hash-1"))

	// Device holds v2's bits without a label; falling back past it to v1
	// would be a downgrade.
	outsider := bucketedDevice(t, 50, 99)
	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey:      testKey,
		ClientUniqueID:     outsider,
		AppVersion:         "1.0.0",
		CurrentPackageHash: "hash-2",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.UpdateAvailable {
		t.Fatalf("expected no update below the held release, got %+v", decision.Package)
	}
}

func TestResolveSkipsDisabledPackages(t *testing.T) {
	disabled := pkg(2, 100, "hash-2")
	disabled.IsDisabled = true
	svc := newResolver(disabled, pkg(1, 100, "hash-1"))

	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package.Label != "v1" {
		t.Fatalf("expected v1 when v2 is disabled, got %+v", decision)
	}
}

func TestResolveFiltersByAppVersionRange(t *testing.T) {
	ranged := pkg(2, 100, "hash-2")
	ranged.AppVersion = ">=2.0.0"
	legacy := pkg(1, 100, "hash-1")
	legacy.AppVersion = "1.x"
	svc := newResolver(ranged, legacy)

	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.5.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package.Label != "v1" {
		t.Fatalf("1.5.0 device should get v1, got %+v", decision)
	}

	decision, err = svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "2.1.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || decision.Package.Label != "v2" {
		t.Fatalf("2.1.0 device should get v2, got %+v", decision)
	}
}

func TestResolveCarriesMandatoryFlag(t *testing.T) {
	mandatory := pkg(1, 100, "hash-1")
	mandatory.IsMandatory = true
	svc := newResolver(mandatory)

	decision, err := svc.Resolve(context.Background(), Request{
		DeploymentKey: testKey, ClientUniqueID: "d", AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !decision.UpdateAvailable || !decision.MustInstall {
		t.Fatalf("expected a mandatory update, got %+v", decision)
	}
}
