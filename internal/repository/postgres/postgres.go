package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.AppRepository        = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
	_ repository.PackageRepository    = (*Repository)(nil)
	_ repository.ReportRepository     = (*Repository)(nil)
	_ repository.AuditRepository      = (*Repository)(nil)
)

const uniqueViolation = "23505"

// mapError translates driver errors to repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

// CreateApp inserts an app. A duplicate (owner, app_name) pair surfaces as
// ErrConflict.
func (r *Repository) CreateApp(ctx context.Context, app *domain.App) error {
	const query = `INSERT INTO apps (id, app_name, platform, description, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, app.ID, app.AppName, app.Platform, app.Description, app.Owner, app.CreatedAt, app.UpdatedAt)
	return mapError(err)
}

// GetAppByID fetches an app by identifier.
func (r *Repository) GetAppByID(ctx context.Context, id string) (*domain.App, error) {
	const query = `SELECT id, app_name, platform, description, owner, created_at, updated_at
		FROM apps WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var a domain.App
	if err := row.Scan(&a.ID, &a.AppName, &a.Platform, &a.Description, &a.Owner, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

// ListApps returns apps for an owner, newest first. An empty owner lists all.
func (r *Repository) ListApps(ctx context.Context, owner string) ([]domain.App, error) {
	const query = `SELECT id, app_name, platform, description, owner, created_at, updated_at
		FROM apps WHERE ($1 = '' OR owner = $1) ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []domain.App
	for rows.Next() {
		var a domain.App
		if err := rows.Scan(&a.ID, &a.AppName, &a.Platform, &a.Description, &a.Owner, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// UpdateApp persists mutable app fields.
func (r *Repository) UpdateApp(ctx context.Context, app *domain.App) error {
	const query = `UPDATE apps SET app_name = $2, description = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, app.ID, app.AppName, app.Description, app.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteApp removes an app; deployments and packages cascade via FK.
func (r *Repository) DeleteApp(ctx context.Context, id string) error {
	const query = `DELETE FROM apps WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountApps returns the total number of apps.
func (r *Repository) CountApps(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(1) FROM apps`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
