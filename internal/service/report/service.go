package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository"
	"github.com/RnGenius-Gaming/code-push-server/internal/ws"
)

// Input is a device-submitted lifecycle report.
type Input struct {
	DeploymentKey             string
	ClientUniqueID            string
	Status                    domain.ReportStatus
	PackageHash               string
	Label                     string
	AppVersion                string
	PreviousLabelOrAppVersion string
	ReportedAt                time.Time
}

// Service validates and records device lifecycle reports and maintains the
// per-device active package pointer.
type Service struct {
	deployments repository.DeploymentRepository
	packages    repository.PackageRepository
	reports     repository.ReportRepository
	hub         *ws.Hub
	logger      *slog.Logger
	now         func() time.Time
}

// New returns a report ingestion service.
func New(deployments repository.DeploymentRepository, packages repository.PackageRepository, reports repository.ReportRepository, hub *ws.Hub, logger *slog.Logger) Service {
	if logger != nil {
		logger = logger.With("component", "report_ingestor")
	}
	return Service{
		deployments: deployments,
		packages:    packages,
		reports:     reports,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest appends the report and advances the device pointer. Duplicate
// reports and reports against deleted packages are normal outcomes, not
// errors; only unknown deployment keys and malformed input reject.
func (s Service) Ingest(ctx context.Context, input Input) error {
	key := strings.TrimSpace(input.DeploymentKey)
	if key == "" {
		return domain.InvalidArgumentf("deployment key required")
	}
	deviceID := strings.TrimSpace(input.ClientUniqueID)
	if deviceID == "" {
		return domain.InvalidArgumentf("client unique id required")
	}
	if !domain.ValidReportStatus(input.Status) {
		return domain.InvalidArgumentf("unknown report status %q", input.Status)
	}

	deployment, err := s.deployments.GetDeploymentByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFoundf("deployment key not found")
		}
		return domain.Internal("load deployment", err)
	}

	reportedAt := input.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = s.now().UTC()
	} else {
		reportedAt = reportedAt.UTC()
	}

	hash := strings.TrimSpace(input.PackageHash)
	if hash != "" {
		// A hash belonging to no current package is tolerated: the package
		// may have been deleted after the device installed it.
		known, err := s.packages.CountPackagesByHash(ctx, deployment.ID, hash)
		if err != nil {
			return domain.Internal("check package hash", err)
		}
		if known == 0 && s.logger != nil {
			s.logger.Debug("report for unknown package hash", "deployment_id", deployment.ID, "hash", hash)
		}
	}

	rec := &domain.StatusReport{
		DeploymentID:              deployment.ID,
		DeploymentKey:             key,
		ClientUniqueID:            deviceID,
		PackageHash:               hash,
		Label:                     strings.TrimSpace(input.Label),
		AppVersion:                strings.TrimSpace(input.AppVersion),
		PreviousLabelOrAppVersion: strings.TrimSpace(input.PreviousLabelOrAppVersion),
		Status:                    input.Status,
		ReportedAt:                reportedAt,
	}
	inserted, err := s.reports.InsertStatusReport(ctx, rec)
	if err != nil {
		return domain.Internal("append status report", err)
	}
	if !inserted {
		// Exact duplicate; aggregates already account for it.
		return nil
	}

	if err := s.advancePointer(ctx, deployment.ID, rec); err != nil {
		return err
	}
	s.publish(rec)
	return nil
}

// advancePointer projects the report onto the device's current active
// package pointer. DEPLOYED moves the pointer forward; ROLLED_BACK reverts
// it to the previously recorded package when known, else to unknown.
// DOWNLOADED and FAILED do not move the pointer.
func (s Service) advancePointer(ctx context.Context, deploymentID string, rec *domain.StatusReport) error {
	switch rec.Status {
	case domain.StatusDeployed, domain.StatusRolledBack:
	default:
		return nil
	}

	prior, err := s.reports.GetDeviceState(ctx, deploymentID, rec.ClientUniqueID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Internal("load device state", err)
	}

	state := domain.DeviceState{
		DeploymentID:   deploymentID,
		ClientUniqueID: rec.ClientUniqueID,
		LastReportedAt: rec.ReportedAt,
		UpdatedAt:      s.now().UTC(),
	}
	switch rec.Status {
	case domain.StatusDeployed:
		state.PackageHash = rec.PackageHash
		state.Label = rec.Label
		state.AppVersion = rec.AppVersion
		if prior != nil {
			state.PreviousPackageHash = prior.PackageHash
			state.PreviousLabel = prior.Label
		}
	case domain.StatusRolledBack:
		if prior != nil {
			state.PackageHash = prior.PreviousPackageHash
			state.Label = prior.PreviousLabel
			state.AppVersion = prior.AppVersion
		}
		// No recorded predecessor leaves the pointer at "unknown".
	}

	if err := s.reports.UpsertDeviceState(ctx, &state); err != nil {
		return domain.Internal("update device state", err)
	}
	return nil
}

// publish broadcasts the accepted report to console subscribers.
func (s Service) publish(rec *domain.StatusReport) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"deploymentId":   rec.DeploymentID,
		"clientUniqueId": rec.ClientUniqueID,
		"packageHash":    rec.PackageHash,
		"label":          rec.Label,
		"status":         rec.Status,
		"reportedAt":     rec.ReportedAt,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(rec.DeploymentID, payload)
}
