package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

func (r *Router) handleAuditLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit := queryInt(req, "limit", 0)
	offset := queryInt(req, "offset", 0)
	entries, err := r.auditor.List(req.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditLogDTOs(entries))
}

// handleAuditLogSubroutes serves /audit-logs/user/{id} and
// /audit-logs/entity/{entity}/{id}.
func (r *Router) handleAuditLogSubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(req.URL.Path, "/audit-logs/")
	parts := strings.Split(rest, "/")
	limit := queryInt(req, "limit", 0)
	switch {
	case len(parts) == 2 && parts[0] == "user" && parts[1] != "":
		entries, err := r.auditor.ListByUser(req.Context(), parts[1], limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAuditLogDTOs(entries))
	case len(parts) == 3 && parts[0] == "entity" && parts[1] != "" && parts[2] != "":
		entries, err := r.auditor.ListByEntity(req.Context(), parts[1], parts[2], limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAuditLogDTOs(entries))
	default:
		r.notFound(w)
	}
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(req.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
