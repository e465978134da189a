package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RnGenius-Gaming/code-push-server/internal/blob"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/metrics"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/release"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/report"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/rollout"
	"github.com/RnGenius-Gaming/code-push-server/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	release   release.Service
	rollout   rollout.Service
	report    report.Service
	metrics   metrics.Service
	auditor   *audit.Recorder
	blobs     *blob.FSStore
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error
	maxUpload int64

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	resolveDecisions   *prometheus.CounterVec
}

const (
	rateWindowDefault    = time.Minute
	rateWindowRealtime   = 30 * time.Second
	rateLimitCheck       = 600
	rateLimitReport      = 600
	rateLimitConsoleRead = 120
	rateLimitConsoleWrit = 60
	rateLimitWebsocket   = 30
	healthCheckTimeout   = 2 * time.Second
	maxJSONBody          = 1 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, releaseSvc release.Service, rolloutSvc rollout.Service, reportSvc report.Service, metricsSvc metrics.Service, auditor *audit.Recorder, blobs *blob.FSStore, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error, maxUpload int64) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		release: releaseSvc,
		rollout: rolloutSvc,
		report:  reportSvc,
		metrics: metricsSvc,
		auditor: auditor,
		blobs:   blobs,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:   limiter,
		dbHealth:  dbHealth,
		maxUpload: maxUpload,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 200 << 20
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.observe(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	// Device-facing endpoints, addressed by deployment key.
	r.mux.HandleFunc("/v1/update_check", r.observe(r.withRateLimit("update_check", rateLimitCheck, rateWindowDefault, rateLimitKeyDeployment, r.handleUpdateCheck)))
	r.mux.HandleFunc("/v1/report_status", r.observe(r.withRateLimit("report_status", rateLimitReport, rateWindowDefault, rateLimitKeyIP, r.handleReportStatus)))
	r.mux.HandleFunc("/blobs/", r.observe(r.handleBlobDownload))

	// Console-facing surface; identity pre-granted by the gateway.
	r.mux.HandleFunc("/apps", r.observe(r.handlerConsole("apps", rateLimitConsoleWrit, rateWindowDefault, r.handleApps)))
	r.mux.HandleFunc("/apps/", r.observe(r.handlerConsole("apps", rateLimitConsoleWrit, rateWindowDefault, r.handleAppByID)))
	r.mux.HandleFunc("/deployments", r.observe(r.handlerConsole("deployments", rateLimitConsoleWrit, rateWindowDefault, r.handleDeployments)))
	r.mux.HandleFunc("/deployments/", r.observe(r.handlerConsole("deployments", rateLimitConsoleWrit, rateWindowDefault, r.handleDeploymentSubroutes)))
	r.mux.HandleFunc("/packages", r.observe(r.handlerConsole("packages", rateLimitConsoleRead, rateWindowDefault, r.handlePackages)))
	r.mux.HandleFunc("/packages/", r.observe(r.handlerConsole("packages", rateLimitConsoleWrit, rateWindowDefault, r.handlePackageSubroutes)))
	r.mux.HandleFunc("/metrics/", r.observe(r.handlerConsole("metrics", rateLimitConsoleRead, rateWindowDefault, r.handleMetrics)))
	r.mux.HandleFunc("/audit-logs", r.observe(r.handlerConsole("audit", rateLimitConsoleRead, rateWindowDefault, r.handleAuditLogs)))
	r.mux.HandleFunc("/audit-logs/", r.observe(r.handlerConsole("audit", rateLimitConsoleRead, rateWindowDefault, r.handleAuditLogSubroutes)))
	r.mux.HandleFunc("/ws/reports", r.observe(r.handlerConsole("ws", rateLimitWebsocket, rateWindowRealtime, r.handleReportsWS)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	status := "ok"
	components := map[string]any{}
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "resource not found")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// observe wraps a handler with structured access logging and request
// metrics.
func (r *Router) observe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := req.URL.Path
		if idx := strings.Index(route[1:], "/"); idx > 0 {
			route = route[:idx+1]
		}
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
