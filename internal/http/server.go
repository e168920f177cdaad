package http

import (
	"context"
	"encoding/json"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"

	"go-vboa-hmi-api/internal/alerts"
	"go-vboa-hmi-api/internal/config"
	mysqlstore "go-vboa-hmi-api/internal/connectors/mysql"
	"go-vboa-hmi-api/internal/connectors/viewstore"
)

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	mysqlStore *mysqlstore.Store
	viewStore  *viewstore.Store
}

// NewServer creates a configured HTTP server with v1 endpoints.
func NewServer(cfg config.Config) (*Server, error) {
	s := &Server{}

	var (
		alertSource alertLister
		eboaSource  eboaLister
	)
	if cfg.DBEnabled {
		createdStore, err := mysqlstore.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		s.mysqlStore = createdStore
		alertSource = createdStore
		eboaSource = createdStore
	}

	var views viewRepository
	if cfg.ViewStoreSQLitePath != "" {
		createdStore, err := viewstore.NewSQLiteStore(cfg.ViewStoreSQLitePath)
		if err != nil {
			_ = s.mysqlStore.Close()
			return nil, err
		}
		s.viewStore = createdStore
		views = createdStore
	}

	ac := alertsConfig{
		delimiter:    cfg.GroupDelimiter,
		defaultLimit: cfg.DefaultLimit,
		window: alerts.Window{
			Delay:       cfg.AlertWindowDelayDays,
			Size:        cfg.AlertWindowSizeDays,
			RepeatCycle: cfg.AlertRepeatCycle,
		},
		now: time.Now,
	}

	s.httpServer = &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newRouter(ac, alertSource, eboaSource, views, s.statusProbes()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func newRouter(ac alertsConfig, alertSource alertLister, eboaSource eboaLister, views viewRepository, probes statusProbes) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/", dashboardHandler)
	mux.HandleFunc("/favicon.ico", faviconHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/api/v1/metrics/app", appMetricsSummaryHandler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/api/v1/groups", groupsHandler(ac.delimiter))
	mux.HandleFunc("/api/v1/timeline", timelineHandler(ac.delimiter))
	mux.HandleFunc("/api/v1/alerts", alertsHandler(ac, alertSource))
	mux.HandleFunc("/api/v1/alerts/timeline", alertsTimelineHandler(ac, alertSource))
	mux.HandleFunc("/api/v1/alerts/sliding", slidingAlertsHandler(ac, alertSource, views))
	mux.HandleFunc("/api/v1/charts/alerts", alertsChartHandler(ac, alertSource, views))
	mux.HandleFunc("/api/v1/events/timeline", eventsTimelineHandler(ac, eboaSource))
	mux.HandleFunc("/api/v1/annotations/timeline", annotationsTimelineHandler(ac, eboaSource))
	mux.HandleFunc("/api/v1/views", viewsHandler(ac.defaultLimit, views))
	mux.HandleFunc("/api/v1/views/", viewDetailHandler(views))
	mux.HandleFunc("/api/v1/status/services", servicesStatusHandler(probes))

	return loggingMiddleware(observabilityMiddleware(mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mysqlStore != nil {
		_ = s.mysqlStore.Close()
	}
	if s.viewStore != nil {
		_ = s.viewStore.Close()
	}
	return err
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ready",
	})
}

func loggingMiddleware(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= nethttp.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w nethttp.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func methodNotAllowed(w nethttp.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, nethttp.StatusMethodNotAllowed, "method not allowed")
}
