package httpx

import (
	"net/http"
	"strings"

	"github.com/RnGenius-Gaming/code-push-server/internal/ws"
)

// handleReportsWS upgrades the connection and streams live status report
// events for one deployment.
func (r *Router) handleReportsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	deploymentID := strings.TrimSpace(req.URL.Query().Get("deploymentId"))
	if deploymentID == "" {
		writeError(w, http.StatusBadRequest, "deploymentId query parameter required")
		return
	}
	if _, err := r.release.GetDeployment(req.Context(), deploymentID); err != nil {
		writeDomainError(w, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(deploymentID, client)
	r.logger.Info("report stream subscribed", "deployment_id", deploymentID, "ip", clientIP(req))

	// Reads are discarded; the read loop only notices disconnects.
	go func() {
		defer func() {
			r.hub.Unregister(deploymentID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
