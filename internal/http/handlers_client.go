package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/report"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/rollout"
)

type updateCheckResponse struct {
	IsAvailable bool   `json:"isAvailable"`
	IsMandatory bool   `json:"isMandatory,omitempty"`
	PackageHash string `json:"packageHash,omitempty"`
	Label       string `json:"label,omitempty"`
	AppVersion  string `json:"appVersion,omitempty"`
	Description string `json:"description,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	PackageSize int64  `json:"packageSize,omitempty"`
	Rollout     int    `json:"rollout,omitempty"`
}

// handleUpdateCheck answers the device poll. Inputs ride on the query
// string so SDK clients can issue a plain GET.
func (r *Router) handleUpdateCheck(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	q := req.URL.Query()
	decision, err := r.rollout.Resolve(req.Context(), rollout.Request{
		DeploymentKey:      q.Get("deploymentKey"),
		ClientUniqueID:     q.Get("clientUniqueId"),
		AppVersion:         q.Get("appVersion"),
		CurrentPackageHash: q.Get("packageHash"),
		CurrentLabel:       q.Get("label"),
	})
	if err != nil {
		r.recordResolveDecision("error")
		writeDomainError(w, err)
		return
	}
	if !decision.UpdateAvailable {
		r.recordResolveDecision("no_update")
		writeJSON(w, http.StatusOK, updateCheckResponse{IsAvailable: false})
		return
	}
	r.recordResolveDecision("update")
	pkg := decision.Package
	writeJSON(w, http.StatusOK, updateCheckResponse{
		IsAvailable: true,
		IsMandatory: decision.MustInstall,
		PackageHash: pkg.PackageHash,
		Label:       pkg.Label,
		AppVersion:  pkg.AppVersion,
		Description: pkg.Description,
		DownloadURL: pkg.BlobURL,
		PackageSize: pkg.Size,
		Rollout:     pkg.Rollout,
	})
}

type reportStatusRequest struct {
	DeploymentKey             string `json:"deploymentKey"`
	ClientUniqueID            string `json:"clientUniqueId"`
	Status                    string `json:"status"`
	PackageHash               string `json:"packageHash"`
	Label                     string `json:"label"`
	AppVersion                string `json:"appVersion"`
	PreviousLabelOrAppVersion string `json:"previousLabelOrAppVersion"`
	ReportedAt                string `json:"reportedAt"`
}

func (r *Router) handleReportStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var body reportStatusRequest
	if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	reportedAt := time.Time{}
	if ts := strings.TrimSpace(body.ReportedAt); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed reportedAt timestamp")
			return
		}
		reportedAt = parsed
	}
	err := r.report.Ingest(req.Context(), report.Input{
		DeploymentKey:             body.DeploymentKey,
		ClientUniqueID:            body.ClientUniqueID,
		Status:                    domain.ReportStatus(body.Status),
		PackageHash:               body.PackageHash,
		Label:                     body.Label,
		AppVersion:                body.AppVersion,
		PreviousLabelOrAppVersion: body.PreviousLabelOrAppVersion,
		ReportedAt:                reportedAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleBlobDownload streams a stored bundle by content hash.
func (r *Router) handleBlobDownload(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	hash := strings.TrimPrefix(req.URL.Path, "/blobs/")
	hash = strings.TrimSuffix(hash, ".zip")
	if hash == "" || strings.Contains(hash, "/") {
		r.notFound(w)
		return
	}
	rc, err := r.blobs.Open(hash)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.notFound(w)
			return
		}
		r.logger.Error("blob open failed", "hash", hash, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		r.logger.Debug("blob download interrupted", "hash", hash, "error", err)
	}
}
