package postgres

import (
	"context"
	"fmt"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

const packageColumns = `id, deployment_id, label, label_num, app_version, description, package_hash, blob_url,
		size, is_disabled, is_mandatory, rollout, release_method, uploaded_by, created_at, updated_at`

func scanPackage(row interface{ Scan(...any) error }) (*domain.Package, error) {
	var p domain.Package
	if err := row.Scan(&p.ID, &p.DeploymentID, &p.Label, &p.LabelNum, &p.AppVersion, &p.Description, &p.PackageHash,
		&p.BlobURL, &p.Size, &p.IsDisabled, &p.IsMandatory, &p.Rollout, &p.ReleaseMethod, &p.UploadedBy,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// CreatePackage inserts a release, assigning the next label for its
// deployment inside a transaction. The unique (deployment_id, label_num)
// constraint serializes concurrent releases; a collision surfaces as
// ErrConflict and the caller retries.
func (r *Repository) CreatePackage(ctx context.Context, pkg *domain.Package) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const nextQuery = `SELECT COALESCE(MAX(label_num), 0) + 1 FROM packages WHERE deployment_id = $1`
	if err := tx.QueryRow(ctx, nextQuery, pkg.DeploymentID).Scan(&pkg.LabelNum); err != nil {
		return mapError(err)
	}
	pkg.Label = domain.FormatLabel(pkg.LabelNum)

	const insertQuery = `INSERT INTO packages (id, deployment_id, label, label_num, app_version, description,
			package_hash, blob_url, size, is_disabled, is_mandatory, rollout, release_method, uploaded_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	if _, err := tx.Exec(ctx, insertQuery, pkg.ID, pkg.DeploymentID, pkg.Label, pkg.LabelNum, pkg.AppVersion,
		pkg.Description, pkg.PackageHash, pkg.BlobURL, pkg.Size, pkg.IsDisabled, pkg.IsMandatory, pkg.Rollout,
		pkg.ReleaseMethod, pkg.UploadedBy, pkg.CreatedAt, pkg.UpdatedAt); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit package %s: %w", pkg.Label, mapError(err))
	}
	return nil
}

// GetPackageByID fetches a release by identifier.
func (r *Repository) GetPackageByID(ctx context.Context, id string) (*domain.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`
	return scanPackage(r.pool.QueryRow(ctx, query, id))
}

// GetPackageByLabel fetches a release by its label within a deployment.
func (r *Repository) GetPackageByLabel(ctx context.Context, deploymentID, label string) (*domain.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages WHERE deployment_id = $1 AND label = $2`
	return scanPackage(r.pool.QueryRow(ctx, query, deploymentID, label))
}

// ListPackagesByDeployment returns a deployment's releases, most recent first.
func (r *Repository) ListPackagesByDeployment(ctx context.Context, deploymentID string) ([]domain.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages WHERE deployment_id = $1 ORDER BY label_num DESC`
	return r.queryPackages(ctx, query, deploymentID)
}

// ListPackages returns all releases, most recent first.
func (r *Repository) ListPackages(ctx context.Context) ([]domain.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages ORDER BY created_at DESC`
	return r.queryPackages(ctx, query)
}

func (r *Repository) queryPackages(ctx context.Context, query string, args ...any) ([]domain.Package, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var packages []domain.Package
	for rows.Next() {
		var p domain.Package
		if err := rows.Scan(&p.ID, &p.DeploymentID, &p.Label, &p.LabelNum, &p.AppVersion, &p.Description,
			&p.PackageHash, &p.BlobURL, &p.Size, &p.IsDisabled, &p.IsMandatory, &p.Rollout, &p.ReleaseMethod,
			&p.UploadedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

// SetPackageDisabled toggles the disabled flag. Metadata only; decisions
// already returned to clients are not revoked.
func (r *Repository) SetPackageDisabled(ctx context.Context, id string, disabled bool) error {
	const query = `UPDATE packages SET is_disabled = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePackage persists mutable release metadata.
func (r *Repository) UpdatePackage(ctx context.Context, pkg *domain.Package) error {
	const query = `UPDATE packages SET description = $2, is_disabled = $3, is_mandatory = $4, rollout = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, pkg.ID, pkg.Description, pkg.IsDisabled, pkg.IsMandatory, pkg.Rollout, pkg.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeletePackage removes the release row. Historical status reports are
// untouched so metrics for the deleted release stay queryable.
func (r *Repository) DeletePackage(ctx context.Context, id string) error {
	const query = `DELETE FROM packages WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountPackages returns the total number of releases.
func (r *Repository) CountPackages(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(1) FROM packages`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountPackagesByHash reports how many releases carry the given content
// hash, optionally scoped to one deployment (empty scopes to all). Used to
// tolerate reports against deleted releases and to decide when a blob has
// no remaining referents.
func (r *Repository) CountPackagesByHash(ctx context.Context, deploymentID, packageHash string) (int64, error) {
	const query = `SELECT COUNT(1) FROM packages WHERE ($1 = '' OR deployment_id = $1) AND package_hash = $2`
	var count int64
	if err := r.pool.QueryRow(ctx, query, deploymentID, packageHash).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
