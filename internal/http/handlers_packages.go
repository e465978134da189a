package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/RnGenius-Gaming/code-push-server/internal/service/release"
)

func (r *Router) handlePackages(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	pkgs, err := r.release.ListPackages(req.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTOs(pkgs))
}

// handlePackageSubroutes dispatches /packages/{...} variants:
//
//	POST   /packages/{deploymentId}/release
//	GET    /packages/deployment/{deploymentId}
//	GET    /packages/{id}
//	PATCH  /packages/{id}
//	DELETE /packages/{id}
//	PATCH  /packages/{id}/toggle-status
//	POST   /packages/{id}/promote
func (r *Router) handlePackageSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/packages/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] == "deployment":
		r.handlePackagesByDeployment(w, req, parts[1])
	case len(parts) == 2 && parts[1] == "release":
		r.handleRelease(w, req, parts[0])
	case len(parts) == 2 && parts[1] == "toggle-status":
		r.handleTogglePackage(w, req, parts[0])
	case len(parts) == 2 && parts[1] == "promote":
		r.handlePromote(w, req, parts[0])
	case len(parts) == 1 && parts[0] != "":
		r.handlePackageByID(w, req, parts[0])
	default:
		r.notFound(w)
	}
}

func (r *Router) handlePackagesByDeployment(w http.ResponseWriter, req *http.Request, deploymentID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	pkgs, err := r.release.ListPackagesByDeployment(req.Context(), deploymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTOs(pkgs))
}

// handleRelease accepts a multipart upload: a "package" file part plus
// release attribute fields.
func (r *Router) handleRelease(w http.ResponseWriter, req *http.Request, deploymentID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart upload")
		return
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := req.FormFile("package")
	if err != nil {
		writeError(w, http.StatusBadRequest, "package file required")
		return
	}
	defer file.Close()

	input := release.ReleaseInput{
		AppVersion:  req.FormValue("appVersion"),
		Description: req.FormValue("description"),
	}
	if v := req.FormValue("isDisabled"); v != "" {
		input.IsDisabled, _ = strconv.ParseBool(v)
	}
	if v := req.FormValue("isMandatory"); v != "" {
		mandatory, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed isMandatory value")
			return
		}
		input.IsMandatory = &mandatory
	}
	if v := req.FormValue("rollout"); v != "" {
		rollout, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed rollout value")
			return
		}
		input.Rollout = rollout
	}

	actor, _ := actorFromContext(req.Context())
	pkg, err := r.release.Release(req.Context(), actor, deploymentID, file, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPackageDTO(pkg))
}

func (r *Router) handlePackageByID(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		pkg, err := r.release.GetPackage(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPackageDTO(pkg))
	case http.MethodPatch, http.MethodPut:
		var body struct {
			Description *string `json:"description"`
			IsMandatory *bool   `json:"isMandatory"`
			Rollout     *int    `json:"rollout"`
		}
		if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		actor, _ := actorFromContext(req.Context())
		pkg, err := r.release.UpdatePackage(req.Context(), actor, id, release.UpdatePackageInput{
			Description: body.Description,
			IsMandatory: body.IsMandatory,
			Rollout:     body.Rollout,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPackageDTO(pkg))
	case http.MethodDelete:
		actor, _ := actorFromContext(req.Context())
		if err := r.release.DeletePackage(req.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTogglePackage(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPatch && req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	actor, _ := actorFromContext(req.Context())
	pkg, err := r.release.TogglePackageDisabled(req.Context(), actor, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTO(pkg))
}

func (r *Router) handlePromote(w http.ResponseWriter, req *http.Request, packageID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var body struct {
		TargetDeploymentID string `json:"targetDeploymentId"`
		AppVersion         string `json:"appVersion"`
		Description        string `json:"description"`
		IsDisabled         bool   `json:"isDisabled"`
		IsMandatory        *bool  `json:"isMandatory"`
		Rollout            int    `json:"rollout"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	actor, _ := actorFromContext(req.Context())
	pkg, err := r.release.Promote(req.Context(), actor, packageID, body.TargetDeploymentID, release.ReleaseInput{
		AppVersion:  body.AppVersion,
		Description: body.Description,
		IsDisabled:  body.IsDisabled,
		IsMandatory: body.IsMandatory,
		Rollout:     body.Rollout,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPackageDTO(pkg))
}
