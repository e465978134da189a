package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
)

type identityContextKey string

const contextKeyIdentity identityContextKey = "codepush-identity"

// requireIdentity trusts the caller identity forwarded by the console
// gateway; authentication itself happens upstream. Requests arriving
// without a granted identity are rejected.
func (r *Router) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		userID := strings.TrimSpace(req.Header.Get("X-User-Id"))
		if userID == "" {
			r.logger.Warn("request without granted identity", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		actor := audit.Actor{
			UserID:    userID,
			UserEmail: strings.TrimSpace(req.Header.Get("X-User-Email")),
			IPAddress: clientIP(req),
			UserAgent: req.UserAgent(),
		}
		next(w, req.WithContext(context.WithValue(req.Context(), contextKeyIdentity, actor)))
	}
}

// actorFromContext retrieves the granted identity, if any.
func actorFromContext(ctx context.Context) (audit.Actor, bool) {
	actor, ok := ctx.Value(contextKeyIdentity).(audit.Actor)
	return actor, ok
}
