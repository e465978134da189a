package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/release"
)

func (r *Router) handleDeployments(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		deployments, err := r.release.ListDeployments(req.Context(), strings.TrimSpace(req.URL.Query().Get("appId")))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]deploymentDTO, 0, len(deployments))
		for i := range deployments {
			out = append(out, toDeploymentDTO(&deployments[i]))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var body struct {
			AppID            string `json:"appId"`
			DeploymentName   string `json:"deploymentName"`
			MandatoryDefault bool   `json:"mandatoryDefault"`
		}
		if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		actor, _ := actorFromContext(req.Context())
		deployment, err := r.release.CreateDeployment(req.Context(), actor, release.CreateDeploymentInput{
			AppID:            body.AppID,
			DeploymentName:   body.DeploymentName,
			MandatoryDefault: body.MandatoryDefault,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDeploymentDTO(deployment))
	default:
		r.methodNotAllowed(w)
	}
}

// handleDeploymentSubroutes dispatches /deployments/{id} and its actions.
func (r *Router) handleDeploymentSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/deployments/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		r.handleDeploymentByID(w, req, parts[0])
	case len(parts) == 2 && parts[1] == "rotate-key":
		r.handleRotateDeploymentKey(w, req, parts[0])
	case len(parts) == 2 && parts[1] == "rollback":
		r.handleRollback(w, req, parts[0])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleDeploymentByID(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		deployment, err := r.release.GetDeployment(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDeploymentDTO(deployment))
	case http.MethodPatch, http.MethodPut:
		var body struct {
			DeploymentName   *string `json:"deploymentName"`
			MandatoryDefault *bool   `json:"mandatoryDefault"`
			Status           *string `json:"status"`
		}
		if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		var status *domain.DeploymentStatus
		if body.Status != nil {
			s := domain.DeploymentStatus(*body.Status)
			status = &s
		}
		actor, _ := actorFromContext(req.Context())
		deployment, err := r.release.UpdateDeployment(req.Context(), actor, id, release.UpdateDeploymentInput{
			DeploymentName:   body.DeploymentName,
			MandatoryDefault: body.MandatoryDefault,
			Status:           status,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDeploymentDTO(deployment))
	case http.MethodDelete:
		actor, _ := actorFromContext(req.Context())
		if err := r.release.DeleteDeployment(req.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleRotateDeploymentKey(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	actor, _ := actorFromContext(req.Context())
	deployment, err := r.release.RotateDeploymentKey(req.Context(), actor, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentDTO(deployment))
}

func (r *Router) handleRollback(w http.ResponseWriter, req *http.Request, deploymentID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var body struct {
		TargetLabel string `json:"targetLabel"`
	}
	if req.Body != nil {
		// Body is optional; empty means roll back to the previous label.
		_ = json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body)
	}
	actor, _ := actorFromContext(req.Context())
	pkg, err := r.release.Rollback(req.Context(), actor, deploymentID, body.TargetLabel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPackageDTO(pkg))
}
