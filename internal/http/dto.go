package httpx

import (
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
)

// Wire shapes for console responses. Domain structs stay tag-free; the
// HTTP layer owns the JSON field names.

type appDTO struct {
	ID          string `json:"id"`
	AppName     string `json:"appName"`
	Platform    string `json:"platform"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toAppDTO(a *domain.App) appDTO {
	return appDTO{
		ID:          a.ID,
		AppName:     a.AppName,
		Platform:    string(a.Platform),
		Description: a.Description,
		Owner:       a.Owner,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type deploymentDTO struct {
	ID               string `json:"id"`
	AppID            string `json:"appId"`
	DeploymentName   string `json:"deploymentName"`
	Key              string `json:"key"`
	MandatoryDefault bool   `json:"mandatoryDefault"`
	Status           string `json:"status"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func toDeploymentDTO(d *domain.Deployment) deploymentDTO {
	return deploymentDTO{
		ID:               d.ID,
		AppID:            d.AppID,
		DeploymentName:   d.DeploymentName,
		Key:              d.Key,
		MandatoryDefault: d.MandatoryDefault,
		Status:           string(d.Status),
		CreatedAt:        d.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type packageDTO struct {
	ID            string `json:"id"`
	DeploymentID  string `json:"deploymentId"`
	Label         string `json:"label"`
	AppVersion    string `json:"appVersion"`
	Description   string `json:"description,omitempty"`
	PackageHash   string `json:"packageHash"`
	BlobURL       string `json:"blobUrl"`
	Size          int64  `json:"size"`
	IsDisabled    bool   `json:"isDisabled"`
	IsMandatory   bool   `json:"isMandatory"`
	Rollout       int    `json:"rollout"`
	ReleaseMethod string `json:"releaseMethod"`
	UploadedBy    string `json:"uploadedBy,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toPackageDTO(p *domain.Package) packageDTO {
	return packageDTO{
		ID:            p.ID,
		DeploymentID:  p.DeploymentID,
		Label:         p.Label,
		AppVersion:    p.AppVersion,
		Description:   p.Description,
		PackageHash:   p.PackageHash,
		BlobURL:       p.BlobURL,
		Size:          p.Size,
		IsDisabled:    p.IsDisabled,
		IsMandatory:   p.IsMandatory,
		Rollout:       p.Rollout,
		ReleaseMethod: string(p.ReleaseMethod),
		UploadedBy:    p.UploadedBy,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toPackageDTOs(pkgs []domain.Package) []packageDTO {
	out := make([]packageDTO, 0, len(pkgs))
	for i := range pkgs {
		out = append(out, toPackageDTO(&pkgs[i]))
	}
	return out
}

type auditLogDTO struct {
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail,omitempty"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entityId"`
	Details   string `json:"details,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func toAuditLogDTOs(entries []domain.AuditLogEntry) []auditLogDTO {
	out := make([]auditLogDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditLogDTO{
			ID:        e.ID,
			UserID:    e.UserID,
			UserEmail: e.UserEmail,
			Action:    e.Action,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			Details:   e.Details,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
