package httpx

import (
	"net/http"
	"strings"
)

// handleMetrics dispatches the aggregation surface:
//
//	GET /metrics/package/{id}
//	GET /metrics/deployment/{id}
//	GET /metrics/summary?deploymentId=&packageId=
//	GET /metrics/dashboard
func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(req.URL.Path, "/metrics/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] == "package":
		out, err := r.metrics.PackageMetrics(req.Context(), parts[1])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case len(parts) == 2 && parts[0] == "deployment":
		out, err := r.metrics.DeploymentMetrics(req.Context(), parts[1])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case len(parts) == 1 && parts[0] == "summary":
		q := req.URL.Query()
		out, err := r.metrics.Summary(req.Context(), q.Get("deploymentId"), q.Get("packageId"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case len(parts) == 1 && parts[0] == "dashboard":
		out, err := r.metrics.Dashboard(req.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	default:
		r.notFound(w)
	}
}
