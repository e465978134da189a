package release

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
)

// CreateDeploymentInput carries channel creation attributes.
type CreateDeploymentInput struct {
	AppID            string
	DeploymentName   string
	MandatoryDefault bool
}

// CreateDeployment opens a release channel with a freshly minted key.
func (s Service) CreateDeployment(ctx context.Context, actor audit.Actor, input CreateDeploymentInput) (*domain.Deployment, error) {
	name := strings.TrimSpace(input.DeploymentName)
	if name == "" {
		return nil, domain.InvalidArgumentf("deployment name required")
	}
	if _, err := s.GetApp(ctx, input.AppID); err != nil {
		return nil, err
	}
	key, err := newDeploymentKey()
	if err != nil {
		return nil, domain.Internal("mint deployment key", err)
	}
	now := s.now().UTC()
	deployment := &domain.Deployment{
		ID:               uuid.NewString(),
		AppID:            input.AppID,
		DeploymentName:   name,
		Key:              key,
		MandatoryDefault: input.MandatoryDefault,
		Status:           domain.DeploymentActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.deployments.CreateDeployment(ctx, deployment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflictf("deployment %q already exists", name)
		}
		return nil, domain.Internal("create deployment", err)
	}
	s.logger.Info("deployment created", "deployment_id", deployment.ID, "app_id", input.AppID, "name", name)
	s.auditor.Record(ctx, actor, "CREATE", "Deployment", deployment.ID, name)
	return deployment, nil
}

// GetDeployment returns a channel by identifier.
func (s Service) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	deployment, err := s.deployments.GetDeploymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("deployment %s not found", id)
		}
		return nil, domain.Internal("load deployment", err)
	}
	return deployment, nil
}

// ListDeployments returns all channels, optionally scoped to one app.
func (s Service) ListDeployments(ctx context.Context, appID string) ([]domain.Deployment, error) {
	var (
		deployments []domain.Deployment
		err         error
	)
	if strings.TrimSpace(appID) == "" {
		deployments, err = s.deployments.ListDeployments(ctx)
	} else {
		deployments, err = s.deployments.ListDeploymentsByApp(ctx, appID)
	}
	if err != nil {
		return nil, domain.Internal("list deployments", err)
	}
	return deployments, nil
}

// UpdateDeploymentInput carries mutable channel fields; nil leaves a field
// unchanged.
type UpdateDeploymentInput struct {
	DeploymentName   *string
	MandatoryDefault *bool
	Status           *domain.DeploymentStatus
}

// UpdateDeployment applies a partial update. The key cannot be changed
// here; rotation is explicit.
func (s Service) UpdateDeployment(ctx context.Context, actor audit.Actor, id string, input UpdateDeploymentInput) (*domain.Deployment, error) {
	deployment, err := s.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.DeploymentName != nil {
		name := strings.TrimSpace(*input.DeploymentName)
		if name == "" {
			return nil, domain.InvalidArgumentf("deployment name required")
		}
		deployment.DeploymentName = name
	}
	if input.MandatoryDefault != nil {
		deployment.MandatoryDefault = *input.MandatoryDefault
	}
	if input.Status != nil {
		switch *input.Status {
		case domain.DeploymentActive, domain.DeploymentDisabled:
			deployment.Status = *input.Status
		default:
			return nil, domain.InvalidArgumentf("status must be Active or Disabled")
		}
	}
	deployment.UpdatedAt = s.now().UTC()
	if err := s.deployments.UpdateDeployment(ctx, deployment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflictf("deployment %q already exists", deployment.DeploymentName)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("deployment %s not found", id)
		}
		return nil, domain.Internal("update deployment", err)
	}
	s.auditor.Record(ctx, actor, "UPDATE", "Deployment", deployment.ID, deployment.DeploymentName)
	return deployment, nil
}

// RotateDeploymentKey replaces the channel key. The old key stops resolving
// the instant the update commits; clients holding it see NotFound.
func (s Service) RotateDeploymentKey(ctx context.Context, actor audit.Actor, id string) (*domain.Deployment, error) {
	deployment, err := s.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := newDeploymentKey()
	if err != nil {
		return nil, domain.Internal("mint deployment key", err)
	}
	if err := s.deployments.RotateDeploymentKey(ctx, id, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("deployment %s not found", id)
		}
		return nil, domain.Internal("rotate deployment key", err)
	}
	deployment.Key = key
	s.logger.Info("deployment key rotated", "deployment_id", id)
	s.auditor.Record(ctx, actor, "ROTATE_KEY", "Deployment", id, deployment.DeploymentName)
	return deployment, nil
}

// DeleteDeployment removes a channel and its packages; reports survive.
func (s Service) DeleteDeployment(ctx context.Context, actor audit.Actor, id string) error {
	deployment, err := s.GetDeployment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deployments.DeleteDeployment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFoundf("deployment %s not found", id)
		}
		return domain.Internal("delete deployment", err)
	}
	s.logger.Info("deployment deleted", "deployment_id", id, "name", deployment.DeploymentName)
	s.auditor.Record(ctx, actor, "DELETE", "Deployment", id, deployment.DeploymentName)
	return nil
}
