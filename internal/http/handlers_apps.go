package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/RnGenius-Gaming/code-push-server/internal/domain"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/release"
)

func (r *Router) handleApps(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		apps, err := r.release.ListApps(req.Context(), strings.TrimSpace(req.URL.Query().Get("owner")))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]appDTO, 0, len(apps))
		for i := range apps {
			out = append(out, toAppDTO(&apps[i]))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var body struct {
			AppName     string `json:"appName"`
			Platform    string `json:"platform"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		actor, _ := actorFromContext(req.Context())
		app, err := r.release.CreateApp(req.Context(), actor, release.CreateAppInput{
			AppName:     body.AppName,
			Platform:    domain.Platform(body.Platform),
			Description: body.Description,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppDTO(app))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleAppByID(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/apps/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		app, err := r.release.GetApp(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppDTO(app))
	case http.MethodPatch, http.MethodPut:
		var body struct {
			AppName     *string `json:"appName"`
			Description *string `json:"description"`
		}
		if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		actor, _ := actorFromContext(req.Context())
		app, err := r.release.UpdateApp(req.Context(), actor, id, release.UpdateAppInput{
			AppName:     body.AppName,
			Description: body.Description,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppDTO(app))
	case http.MethodDelete:
		actor, _ := actorFromContext(req.Context())
		if err := r.release.DeleteApp(req.Context(), actor, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}
