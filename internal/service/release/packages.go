package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
)

// labelRetries bounds retries when concurrent releases race for a label.
const labelRetries = 3

// ReleaseInput carries upload attributes for a new package.
type ReleaseInput struct {
	AppVersion  string
	Description string
	IsDisabled  bool
	IsMandatory *bool
	Rollout     int
}

func (s Service) validateReleaseInput(input *ReleaseInput) error {
	version := strings.TrimSpace(input.AppVersion)
	if version == "" {
		return domain.InvalidArgumentf("app version required")
	}
	// Plain versions and range expressions are both accepted.
	if _, err := semver.NewConstraint(version); err != nil {
		return domain.InvalidArgumentf("malformed app version %q", version)
	}
	input.AppVersion = version
	if input.Rollout == 0 {
		input.Rollout = 100
	}
	if input.Rollout < 1 || input.Rollout > 100 {
		return domain.InvalidArgumentf("rollout must be between 1 and 100")
	}
	return nil
}

// Release uploads a bundle and appends it to the deployment as the next
// labeled package. The bundle is content-hashed; identical content is never
// stored twice.
func (s Service) Release(ctx context.Context, actor audit.Actor, deploymentID string, bundle io.Reader, input ReleaseInput) (*domain.Package, error) {
	deployment, err := s.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if err := s.validateReleaseInput(&input); err != nil {
		return nil, err
	}

	hash, tmpPath, size, err := spoolAndHash(bundle)
	if err != nil {
		return nil, domain.Internal("read package bundle", err)
	}
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, domain.Internal("reopen package bundle", err)
	}
	blobURL, _, err := s.blobs.Put(ctx, hash, f)
	f.Close()
	if err != nil {
		return nil, domain.Internal("store package bundle", err)
	}

	mandatory := deployment.MandatoryDefault
	if input.IsMandatory != nil {
		mandatory = *input.IsMandatory
	}
	now := s.now().UTC()
	pkg := &domain.Package{
		ID:            uuid.NewString(),
		DeploymentID:  deployment.ID,
		AppVersion:    input.AppVersion,
		Description:   strings.TrimSpace(input.Description),
		PackageHash:   hash,
		BlobURL:       blobURL,
		Size:          size,
		IsDisabled:    input.IsDisabled,
		IsMandatory:   mandatory,
		Rollout:       input.Rollout,
		ReleaseMethod: domain.ReleaseMethodUpload,
		UploadedBy:    actor.UserEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.insertWithLabelRetry(ctx, pkg); err != nil {
		return nil, err
	}
	s.logger.Info("package released",
		"deployment_id", deployment.ID, "label", pkg.Label, "app_version", pkg.AppVersion, "rollout", pkg.Rollout)
	s.auditor.Record(ctx, actor, "RELEASE", "Package", pkg.ID, fmt.Sprintf("%s %s", pkg.Label, pkg.AppVersion))
	return pkg, nil
}

// insertWithLabelRetry retries label assignment when concurrent releases to
// the same deployment collide. Exactly one release wins each label value;
// losers land on the next one.
func (s Service) insertWithLabelRetry(ctx context.Context, pkg *domain.Package) error {
	for attempt := 0; attempt < labelRetries; attempt++ {
		err := s.packages.CreatePackage(ctx, pkg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return domain.Internal("create package", err)
		}
		s.logger.Debug("label collision, retrying", "deployment_id", pkg.DeploymentID, "label", pkg.Label)
	}
	return domain.Conflictf("concurrent releases exhausted label retries")
}

// spoolAndHash streams the bundle to a temp file while computing its
// sha256, so large uploads never sit in memory.
func spoolAndHash(r io.Reader) (hash, path string, size int64, err error) {
	tmp, err := os.CreateTemp("", "codepush-upload-*")
	if err != nil {
		return "", "", 0, err
	}
	h := sha256.New()
	size, err = io.Copy(tmp, io.TeeReader(r, h))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), tmp.Name(), size, nil
}

// GetPackage returns a release by identifier.
func (s Service) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	pkg, err := s.packages.GetPackageByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("package %s not found", id)
		}
		return nil, domain.Internal("load package", err)
	}
	return pkg, nil
}

// ListPackagesByDeployment returns a channel's releases, most recent first.
func (s Service) ListPackagesByDeployment(ctx context.Context, deploymentID string) ([]domain.Package, error) {
	if _, err := s.GetDeployment(ctx, deploymentID); err != nil {
		return nil, err
	}
	packages, err := s.packages.ListPackagesByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("list packages", err)
	}
	return packages, nil
}

// ListPackages returns every release, most recent first.
func (s Service) ListPackages(ctx context.Context) ([]domain.Package, error) {
	packages, err := s.packages.ListPackages(ctx)
	if err != nil {
		return nil, domain.Internal("list packages", err)
	}
	return packages, nil
}

// TogglePackageDisabled flips the disabled flag. Metadata only: devices
// already on the package keep it, and their metrics are untouched; the
// package merely leaves future resolver candidate sets.
func (s Service) TogglePackageDisabled(ctx context.Context, actor audit.Actor, id string) (*domain.Package, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.IsDisabled = !pkg.IsDisabled
	if err := s.packages.SetPackageDisabled(ctx, id, pkg.IsDisabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("package %s not found", id)
		}
		return nil, domain.Internal("toggle package", err)
	}
	action := "ENABLE"
	if pkg.IsDisabled {
		action = "DISABLE"
	}
	s.auditor.Record(ctx, actor, action, "Package", id, pkg.Label)
	return pkg, nil
}

// UpdatePackageInput carries mutable release metadata; nil leaves a field
// unchanged. Label, hash and appVersion are immutable once released.
type UpdatePackageInput struct {
	Description *string
	IsMandatory *bool
	Rollout     *int
}

// UpdatePackage applies a partial metadata update. Rollout may only widen:
// shrinking it would strand devices already admitted by their bucket.
func (s Service) UpdatePackage(ctx context.Context, actor audit.Actor, id string, input UpdatePackageInput) (*domain.Package, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Description != nil {
		pkg.Description = strings.TrimSpace(*input.Description)
	}
	if input.IsMandatory != nil {
		pkg.IsMandatory = *input.IsMandatory
	}
	if input.Rollout != nil {
		if *input.Rollout < pkg.Rollout {
			return nil, domain.InvalidArgumentf("rollout can only be increased")
		}
		if *input.Rollout > 100 {
			return nil, domain.InvalidArgumentf("rollout must be between 1 and 100")
		}
		pkg.Rollout = *input.Rollout
	}
	pkg.UpdatedAt = s.now().UTC()
	if err := s.packages.UpdatePackage(ctx, pkg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("package %s not found", id)
		}
		return nil, domain.Internal("update package", err)
	}
	s.auditor.Record(ctx, actor, "UPDATE", "Package", id, pkg.Label)
	return pkg, nil
}

// DeletePackage removes the release row and, when no other release shares
// its content hash, the stored bundle. Status reports for the package are
// preserved so its historical metrics stay queryable.
func (s Service) DeletePackage(ctx context.Context, actor audit.Actor, id string) error {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.packages.DeletePackage(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFoundf("package %s not found", id)
		}
		return domain.Internal("delete package", err)
	}
	remaining, err := s.packages.CountPackagesByHash(ctx, "", pkg.PackageHash)
	if err == nil && remaining == 0 {
		if err := s.blobs.Delete(ctx, pkg.PackageHash); err != nil {
			s.logger.Warn("blob delete failed", "hash", pkg.PackageHash, "error", err)
		}
	}
	s.logger.Info("package deleted", "package_id", id, "label", pkg.Label, "deployment_id", pkg.DeploymentID)
	s.auditor.Record(ctx, actor, "DELETE", "Package", id, pkg.Label)
	return nil
}

// Promote copies a release into another deployment as that channel's next
// label. The bundle is shared by content hash, never re-uploaded.
func (s Service) Promote(ctx context.Context, actor audit.Actor, packageID, targetDeploymentID string, input ReleaseInput) (*domain.Package, error) {
	source, err := s.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	target, err := s.GetDeployment(ctx, targetDeploymentID)
	if err != nil {
		return nil, err
	}
	if target.ID == source.DeploymentID {
		return nil, domain.InvalidArgumentf("cannot promote a package to its own deployment")
	}
	if input.AppVersion == "" {
		input.AppVersion = source.AppVersion
	}
	if input.Description == "" {
		input.Description = source.Description
	}
	if err := s.validateReleaseInput(&input); err != nil {
		return nil, err
	}
	mandatory := target.MandatoryDefault
	if input.IsMandatory != nil {
		mandatory = *input.IsMandatory
	}
	now := s.now().UTC()
	pkg := &domain.Package{
		ID:            uuid.NewString(),
		DeploymentID:  target.ID,
		AppVersion:    input.AppVersion,
		Description:   input.Description,
		PackageHash:   source.PackageHash,
		BlobURL:       source.BlobURL,
		Size:          source.Size,
		IsDisabled:    input.IsDisabled,
		IsMandatory:   mandatory,
		Rollout:       input.Rollout,
		ReleaseMethod: domain.ReleaseMethodPromote,
		UploadedBy:    actor.UserEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.insertWithLabelRetry(ctx, pkg); err != nil {
		return nil, err
	}
	s.logger.Info("package promoted",
		"source_package", source.ID, "target_deployment", target.ID, "label", pkg.Label)
	s.auditor.Record(ctx, actor, "PROMOTE", "Package", pkg.ID,
		fmt.Sprintf("%s -> %s %s", source.Label, target.DeploymentName, pkg.Label))
	return pkg, nil
}

// Rollback re-releases a prior package as the deployment's next label. With
// an empty targetLabel the release preceding the latest is used.
func (s Service) Rollback(ctx context.Context, actor audit.Actor, deploymentID, targetLabel string) (*domain.Package, error) {
	deployment, err := s.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	packages, err := s.packages.ListPackagesByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, domain.Internal("list packages", err)
	}
	if len(packages) < 2 {
		return nil, domain.InvalidArgumentf("nothing to roll back to")
	}

	latest := packages[0]
	var source *domain.Package
	if strings.TrimSpace(targetLabel) == "" {
		source = &packages[1]
	} else {
		for i := range packages {
			if packages[i].Label == targetLabel {
				source = &packages[i]
				break
			}
		}
		if source == nil {
			return nil, domain.NotFoundf("label %s not found in deployment", targetLabel)
		}
		if source.Label == latest.Label {
			return nil, domain.InvalidArgumentf("cannot roll back to the current release")
		}
	}

	now := s.now().UTC()
	pkg := &domain.Package{
		ID:            uuid.NewString(),
		DeploymentID:  deployment.ID,
		AppVersion:    source.AppVersion,
		Description:   source.Description,
		PackageHash:   source.PackageHash,
		BlobURL:       source.BlobURL,
		Size:          source.Size,
		IsMandatory:   source.IsMandatory,
		Rollout:       100,
		ReleaseMethod: domain.ReleaseMethodRollback,
		UploadedBy:    actor.UserEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.insertWithLabelRetry(ctx, pkg); err != nil {
		return nil, err
	}
	s.logger.Info("deployment rolled back",
		"deployment_id", deployment.ID, "to_label", source.Label, "new_label", pkg.Label)
	s.auditor.Record(ctx, actor, "ROLLBACK", "Package", pkg.ID,
		fmt.Sprintf("%s -> %s", latest.Label, source.Label))
	return pkg, nil
}
