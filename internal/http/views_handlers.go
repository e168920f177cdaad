package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"go-vboa-hmi-api/internal/alerts"
	"go-vboa-hmi-api/internal/connectors/viewstore"
)

type viewRepository interface {
	List(ctx context.Context, limit int) ([]viewstore.View, error)
	Get(ctx context.Context, name string) (*viewstore.View, error)
	Save(ctx context.Context, v viewstore.View) (*viewstore.View, error)
	Delete(ctx context.Context, name string) error
}

const viewStoreDisabledMsg = "view store disabled (set APP_VIEW_STORE_SQLITE_PATH)"

type saveViewRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	WindowDelay    float64  `json:"window_delay"`
	WindowSize     float64  `json:"window_size"`
	RepeatCycleSec int64    `json:"repeat_cycle_sec"`
	Entities       []string `json:"entities"`
}

func ignoreNotFound(err error) error {
	if errors.Is(err, viewstore.ErrNotFound) {
		return nil
	}
	return err
}

func viewsHandler(defaultLimit int, views viewRepository) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if views == nil {
			writeError(w, nethttp.StatusServiceUnavailable, viewStoreDisabledMsg)
			return
		}

		switch r.Method {
		case nethttp.MethodGet:
			limit := parseLimit(r, defaultLimit)
			start := time.Now()
			items, err := views.List(r.Context(), limit)
			recordDBQuery("viewstore", "List", time.Since(start).Seconds(), err)
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to list views")
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{
				"meta": map[string]any{"limit": limit, "count": len(items)},
				"data": items,
			})
		case nethttp.MethodPost:
			var req saveViewRequest
			if !decodeBody(w, r, &req) {
				return
			}
			v := viewstore.View{
				Name:              strings.TrimSpace(req.Name),
				Description:       req.Description,
				WindowDelay:       req.WindowDelay,
				WindowSize:        req.WindowSize,
				RepeatCycleSecond: req.RepeatCycleSec,
			}
			if v.Name == "" {
				writeError(w, nethttp.StatusBadRequest, "name is required")
				return
			}
			for _, raw := range req.Entities {
				e, err := alerts.ParseEntity(raw)
				if err != nil {
					writeError(w, nethttp.StatusBadRequest, err.Error())
					return
				}
				v.Entities = append(v.Entities, e)
			}
			if err := v.Window().Validate(); err != nil {
				writeError(w, nethttp.StatusBadRequest, err.Error())
				return
			}

			start := time.Now()
			saved, err := views.Save(r.Context(), v)
			recordDBQuery("viewstore", "Save", time.Since(start).Seconds(), err)
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to save view")
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"data": saved})
		default:
			methodNotAllowed(w, nethttp.MethodGet, nethttp.MethodPost)
		}
	}
}

func viewDetailHandler(views viewRepository) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if views == nil {
			writeError(w, nethttp.StatusServiceUnavailable, viewStoreDisabledMsg)
			return
		}

		name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/views/"), "/")
		if name == "" || strings.Contains(name, "/") {
			writeError(w, nethttp.StatusNotFound, "not found")
			return
		}

		switch r.Method {
		case nethttp.MethodGet:
			start := time.Now()
			v, err := views.Get(r.Context(), name)
			recordDBQuery("viewstore", "Get", time.Since(start).Seconds(), ignoreNotFound(err))
			if errors.Is(err, viewstore.ErrNotFound) {
				writeError(w, nethttp.StatusNotFound, fmt.Sprintf("view not found: %s", name))
				return
			}
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to load view")
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"data": v})
		case nethttp.MethodDelete:
			start := time.Now()
			err := views.Delete(r.Context(), name)
			recordDBQuery("viewstore", "Delete", time.Since(start).Seconds(), ignoreNotFound(err))
			if errors.Is(err, viewstore.ErrNotFound) {
				writeError(w, nethttp.StatusNotFound, fmt.Sprintf("view not found: %s", name))
				return
			}
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to delete view")
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"deleted": name})
		default:
			methodNotAllowed(w, nethttp.MethodGet, nethttp.MethodDelete)
		}
	}
}
