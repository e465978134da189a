package rollout

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

// Request carries what a device knows about itself when it polls.
type Request struct {
	DeploymentKey      string
	ClientUniqueID     string
	AppVersion         string
	CurrentPackageHash string
	CurrentLabel       string
}

// Decision is the resolver's answer. Package is nil when no update applies.
type Decision struct {
	UpdateAvailable bool
	Package         *domain.Package
	MustInstall     bool
}

// Service decides which release, if any, a polling device should receive.
// Resolution is a pure function of store state at call time; concurrent
// calls never contend.
type Service struct {
	deployments repository.DeploymentRepository
	packages    repository.PackageRepository
	logger      *slog.Logger
}

// New returns a resolver service.
func New(deployments repository.DeploymentRepository, packages repository.PackageRepository, logger *slog.Logger) Service {
	if logger != nil {
		logger = logger.With("component", "rollout_resolver")
	}
	return Service{deployments: deployments, packages: packages, logger: logger}
}

// Resolve applies the target selection and rollout gate for one device.
//
// The target is the highest-labeled non-disabled package whose appVersion
// matches the device. A device already holding the target's hash gets no
// update regardless of bucket. Otherwise, if the device's bucket misses
// the target's rollout percentage, lower-labeled eligible packages are
// tried most-recent first; each package's percentage gates independently,
// and a device already at or past a release is never offered one below it.
func (s Service) Resolve(ctx context.Context, req Request) (Decision, error) {
	key := strings.TrimSpace(req.DeploymentKey)
	if key == "" {
		return Decision{}, domain.InvalidArgumentf("deployment key required")
	}
	if strings.TrimSpace(req.ClientUniqueID) == "" {
		return Decision{}, domain.InvalidArgumentf("client unique id required")
	}
	deviceVersion, err := semver.NewVersion(strings.TrimSpace(req.AppVersion))
	if err != nil {
		return Decision{}, domain.InvalidArgumentf("malformed app version %q", req.AppVersion)
	}

	deployment, err := s.deployments.GetDeploymentByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Decision{}, domain.NotFoundf("deployment key not found")
		}
		return Decision{}, domain.Internal("load deployment", err)
	}
	if deployment.Status == domain.DeploymentDisabled {
		return Decision{}, domain.NotFoundf("deployment key not found")
	}

	packages, err := s.packages.ListPackagesByDeployment(ctx, deployment.ID)
	if err != nil {
		return Decision{}, domain.Internal("list packages", err)
	}

	candidates := eligible(packages, deviceVersion)
	if len(candidates) == 0 {
		return Decision{}, nil
	}

	deviceLabel := domain.ParseLabel(req.CurrentLabel)
	currentHash := strings.TrimSpace(req.CurrentPackageHash)
	if currentHash != "" {
		// A device already holding the target's bits is done regardless
		// of its bucket; a hash match lower down raises the label floor
		// so fallback can never hand back something older.
		if currentHash == candidates[0].PackageHash {
			return Decision{}, nil
		}
		for i := range candidates {
			if candidates[i].PackageHash == currentHash && candidates[i].LabelNum > deviceLabel {
				deviceLabel = candidates[i].LabelNum
			}
		}
	}
	bucket := Bucket(key, req.ClientUniqueID)

	// Candidates arrive most recent first; the first one whose rollout
	// admits this bucket wins.
	for i := range candidates {
		pkg := candidates[i]
		if bucket >= pkg.Rollout {
			continue
		}
		if pkg.PackageHash == currentHash {
			return Decision{}, nil
		}
		if deviceLabel > 0 && pkg.LabelNum <= deviceLabel {
			return Decision{}, nil
		}
		if s.logger != nil {
			s.logger.Debug("update resolved",
				"deployment_id", deployment.ID, "label", pkg.Label, "bucket", bucket, "rollout", pkg.Rollout)
		}
		return Decision{UpdateAvailable: true, Package: &pkg, MustInstall: pkg.IsMandatory}, nil
	}
	return Decision{}, nil
}

// eligible filters to non-disabled packages whose appVersion admits the
// device's version, preserving the most-recent-first ordering.
func eligible(packages []domain.Package, deviceVersion *semver.Version) []domain.Package {
	var out []domain.Package
	for _, pkg := range packages {
		if pkg.IsDisabled {
			continue
		}
		if !versionMatches(pkg.AppVersion, deviceVersion) {
			continue
		}
		out = append(out, pkg)
	}
	return out
}

// versionMatches treats the package's appVersion as a semver range; a plain
// version string constrains to exact equality. Unparseable stored values
// never match.
func versionMatches(constraint string, deviceVersion *semver.Version) bool {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Check(deviceVersion)
}
