package release

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/RnGenius-Gaming/code-push-server/internal/blob"
	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
)

// Service owns App, Deployment and Package entities and their invariants.
// Every successful mutation is followed by a best-effort audit record.
type Service struct {
	apps        repository.AppRepository
	deployments repository.DeploymentRepository
	packages    repository.PackageRepository
	blobs       blob.Store
	auditor     *audit.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// New returns a release store service.
func New(apps repository.AppRepository, deployments repository.DeploymentRepository, packages repository.PackageRepository, blobs blob.Store, auditor *audit.Recorder, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "release_store")
	return Service{
		apps:        apps,
		deployments: deployments,
		packages:    packages,
		blobs:       blobs,
		auditor:     auditor,
		logger:      logger,
		now:         time.Now,
	}
}

// newDeploymentKey mints an opaque channel key. Keys are bearer secrets;
// they carry no structure clients could depend on.
func newDeploymentKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateAppInput carries app creation attributes.
type CreateAppInput struct {
	AppName     string
	Platform    domain.Platform
	Description string
}

// CreateApp registers an application. App names are unique per owner.
func (s Service) CreateApp(ctx context.Context, actor audit.Actor, input CreateAppInput) (*domain.App, error) {
	name := strings.TrimSpace(input.AppName)
	if name == "" {
		return nil, domain.InvalidArgumentf("app name required")
	}
	if !domain.ValidPlatform(input.Platform) {
		return nil, domain.InvalidArgumentf("platform must be ios, android or react-native")
	}
	now := s.now().UTC()
	app := &domain.App{
		ID:          uuid.NewString(),
		AppName:     name,
		Platform:    input.Platform,
		Description: strings.TrimSpace(input.Description),
		Owner:       actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apps.CreateApp(ctx, app); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflictf("app %q already exists", name)
		}
		return nil, domain.Internal("create app", err)
	}
	s.logger.Info("app created", "app_id", app.ID, "app_name", app.AppName, "platform", app.Platform)
	s.auditor.Record(ctx, actor, "CREATE", "App", app.ID, name)
	return app, nil
}

// GetApp returns an app by identifier.
func (s Service) GetApp(ctx context.Context, id string) (*domain.App, error) {
	app, err := s.apps.GetAppByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("app %s not found", id)
		}
		return nil, domain.Internal("load app", err)
	}
	return app, nil
}

// ListApps returns apps visible to the owner; empty owner lists all.
func (s Service) ListApps(ctx context.Context, owner string) ([]domain.App, error) {
	apps, err := s.apps.ListApps(ctx, strings.TrimSpace(owner))
	if err != nil {
		return nil, domain.Internal("list apps", err)
	}
	return apps, nil
}

// UpdateAppInput carries mutable app fields; nil leaves a field unchanged.
type UpdateAppInput struct {
	AppName     *string
	Description *string
}

// UpdateApp applies a partial update.
func (s Service) UpdateApp(ctx context.Context, actor audit.Actor, id string, input UpdateAppInput) (*domain.App, error) {
	app, err := s.GetApp(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.AppName != nil {
		name := strings.TrimSpace(*input.AppName)
		if name == "" {
			return nil, domain.InvalidArgumentf("app name required")
		}
		app.AppName = name
	}
	if input.Description != nil {
		app.Description = strings.TrimSpace(*input.Description)
	}
	app.UpdatedAt = s.now().UTC()
	if err := s.apps.UpdateApp(ctx, app); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflictf("app %q already exists", app.AppName)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("app %s not found", id)
		}
		return nil, domain.Internal("update app", err)
	}
	s.auditor.Record(ctx, actor, "UPDATE", "App", app.ID, app.AppName)
	return app, nil
}

// DeleteApp removes an app and its deployments. Historical status reports
// survive the cascade.
func (s Service) DeleteApp(ctx context.Context, actor audit.Actor, id string) error {
	app, err := s.GetApp(ctx, id)
	if err != nil {
		return err
	}
	if err := s.apps.DeleteApp(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFoundf("app %s not found", id)
		}
		return domain.Internal("delete app", err)
	}
	s.logger.Info("app deleted", "app_id", id, "app_name", app.AppName)
	s.auditor.Record(ctx, actor, "DELETE", "App", id, app.AppName)
	return nil
}
