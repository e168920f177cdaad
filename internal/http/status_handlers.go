package http

import (
	"context"
	nethttp "net/http"
	"time"

	mysqlstore "go-vboa-hmi-api/internal/connectors/mysql"
	"go-vboa-hmi-api/internal/connectors/viewstore"
)

// statusProbes maps a service name to a probe reporting its state.
type statusProbes map[string]func(ctx context.Context) map[string]any

func (s *Server) statusProbes() statusProbes {
	return statusProbes{
		"alerts_db":  func(ctx context.Context) map[string]any { return mysqlStatus(ctx, s.mysqlStore) },
		"view_store": func(ctx context.Context) map[string]any { return viewStoreStatus(ctx, s.viewStore) },
	}
}

func servicesStatusHandler(probes statusProbes) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		services := map[string]any{}
		for name, probe := range probes {
			services[name] = probe(ctx)
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"generated_at": time.Now().UTC(),
			"services":     services,
		})
	}
}

func mysqlStatus(ctx context.Context, store *mysqlstore.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "database integration disabled"}
	}

	start := time.Now()
	stats, err := store.ServiceStats(ctx)
	recordDBQuery("eboa", "ServiceStats", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}

	return map[string]any{
		"enabled":                 true,
		"ok":                      true,
		"stats":                   stats,
		"excluded_dim_signatures": store.ExcludedSignatures(),
	}
}

func viewStoreStatus(ctx context.Context, store *viewstore.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "view store disabled"}
	}

	start := time.Now()
	err := store.Ping(ctx)
	recordDBQuery("viewstore", "Ping", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error(), "sqlite_path": store.Path()}
	}
	return map[string]any{"enabled": true, "ok": true, "sqlite_path": store.Path()}
}
