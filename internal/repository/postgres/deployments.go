package postgres

import (
	"context"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

const deploymentColumns = `id, app_id, deployment_name, key, mandatory_default, status, created_at, updated_at`

func scanDeployment(row interface{ Scan(...any) error }) (*domain.Deployment, error) {
	var d domain.Deployment
	if err := row.Scan(&d.ID, &d.AppID, &d.DeploymentName, &d.Key, &d.MandatoryDefault, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

// CreateDeployment inserts a release channel. Duplicate names within an app
// surface as ErrConflict.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	const query = `INSERT INTO deployments (id, app_id, deployment_name, key, mandatory_default, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, deployment.ID, deployment.AppID, deployment.DeploymentName, deployment.Key,
		deployment.MandatoryDefault, deployment.Status, deployment.CreatedAt, deployment.UpdatedAt)
	return mapError(err)
}

// GetDeploymentByID fetches a deployment by identifier.
func (r *Repository) GetDeploymentByID(ctx context.Context, id string) (*domain.Deployment, error) {
	const query = `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	return scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// GetDeploymentByKey resolves the channel a client SDK addresses. A rotated
// key stops matching the moment the rotation commits.
func (r *Repository) GetDeploymentByKey(ctx context.Context, key string) (*domain.Deployment, error) {
	const query = `SELECT ` + deploymentColumns + ` FROM deployments WHERE key = $1`
	return scanDeployment(r.pool.QueryRow(ctx, query, key))
}

// ListDeploymentsByApp returns an app's channels, oldest first.
func (r *Repository) ListDeploymentsByApp(ctx context.Context, appID string) ([]domain.Deployment, error) {
	const query = `SELECT ` + deploymentColumns + ` FROM deployments WHERE app_id = $1 ORDER BY created_at ASC`
	return r.queryDeployments(ctx, query, appID)
}

// ListDeployments returns every channel, newest first.
func (r *Repository) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	const query = `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC`
	return r.queryDeployments(ctx, query)
}

func (r *Repository) queryDeployments(ctx context.Context, query string, args ...any) ([]domain.Deployment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deployments []domain.Deployment
	for rows.Next() {
		var d domain.Deployment
		if err := rows.Scan(&d.ID, &d.AppID, &d.DeploymentName, &d.Key, &d.MandatoryDefault, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// UpdateDeployment persists mutable channel fields. The key column is
// deliberately excluded; rotation is its own operation.
func (r *Repository) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	const query = `UPDATE deployments SET deployment_name = $2, mandatory_default = $3, status = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, deployment.ID, deployment.DeploymentName, deployment.MandatoryDefault,
		deployment.Status, deployment.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RotateDeploymentKey atomically replaces the channel key. The old key is
// rejected by GetDeploymentByKey from the instant this commits.
func (r *Repository) RotateDeploymentKey(ctx context.Context, id, newKey string) error {
	const query = `UPDATE deployments SET key = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, newKey, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteDeployment removes a channel; its packages cascade. Status reports
// are kept for historical metrics.
func (r *Repository) DeleteDeployment(ctx context.Context, id string) error {
	const query = `DELETE FROM deployments WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountDeployments returns the total number of channels.
func (r *Repository) CountDeployments(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(1) FROM deployments`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
