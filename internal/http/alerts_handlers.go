package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"go-vboa-hmi-api/internal/alerts"
	"go-vboa-hmi-api/internal/charts"
	mysqlstore "go-vboa-hmi-api/internal/connectors/mysql"
	"go-vboa-hmi-api/internal/connectors/viewstore"
	"go-vboa-hmi-api/internal/timeline"
)

type alertLister interface {
	ListAlerts(ctx context.Context, entity alerts.Entity, f mysqlstore.AlertFilter) ([]alerts.Alert, error)
	ListAllAlerts(ctx context.Context, f mysqlstore.AlertFilter) ([]alerts.Alert, error)
}

type alertsConfig struct {
	delimiter    string
	defaultLimit int
	window       alerts.Window
	now          func() time.Time
}

// alertsQuery is the parsed form of the alert listing query string.
type alertsQuery struct {
	Range    alerts.Range
	Limit    int
	Offset   int
	Entities []alerts.Entity
}

const dbDisabledMsg = "database integration disabled (set APP_DB_ENABLED=true)"

var queryTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseQueryTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q, expected RFC3339 or YYYY-MM-DD", raw)
}

// queryValues collects a repeatable, comma-separated parameter in order,
// dropping blanks and duplicates.
func queryValues(r *nethttp.Request, key string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func parseEntities(r *nethttp.Request) ([]alerts.Entity, error) {
	var out []alerts.Entity
	seen := map[alerts.Entity]struct{}{}
	for _, raw := range queryValues(r, "entity") {
		e, err := alerts.ParseEntity(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// parseRangeQuery resolves the start, stop and window_size parameters
// shared by every time-windowed listing.
func parseRangeQuery(r *nethttp.Request, ac alertsConfig) (alerts.Range, error) {
	q := r.URL.Query()

	start, err := parseQueryTime(q.Get("start"))
	if err != nil {
		return alerts.Range{}, err
	}
	stop, err := parseQueryTime(q.Get("stop"))
	if err != nil {
		return alerts.Range{}, err
	}

	size := ac.window.Size
	if raw := strings.TrimSpace(q.Get("window_size")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return alerts.Range{}, fmt.Errorf("invalid window_size %q", raw)
		}
		size = parsed
	}

	return alerts.RangeFromFilters(start, stop, size, ac.window, ac.now())
}

func parseAlertsQuery(r *nethttp.Request, ac alertsConfig) (alertsQuery, error) {
	rng, err := parseRangeQuery(r, ac)
	if err != nil {
		return alertsQuery{}, err
	}

	entities, err := parseEntities(r)
	if err != nil {
		return alertsQuery{}, err
	}

	return alertsQuery{
		Range:    rng,
		Limit:    parseLimit(r, ac.defaultLimit),
		Offset:   parseOffset(r),
		Entities: entities,
	}, nil
}

func fetchAlerts(ctx context.Context, store alertLister, q alertsQuery) ([]alerts.Alert, error) {
	f := mysqlstore.AlertFilter{Range: q.Range, Limit: q.Limit, Offset: q.Offset}

	if len(q.Entities) == 0 || len(q.Entities) == len(alerts.Entities) {
		start := time.Now()
		items, err := store.ListAllAlerts(ctx, f)
		recordDBQuery("eboa", "ListAllAlerts", time.Since(start).Seconds(), err)
		return items, err
	}

	var out []alerts.Alert
	for _, entity := range q.Entities {
		start := time.Now()
		items, err := store.ListAlerts(ctx, entity, f)
		recordDBQuery("eboa", "ListAlerts", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func fetchStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nethttp.ErrHandlerTimeout) {
		return nethttp.StatusGatewayTimeout
	}
	return nethttp.StatusInternalServerError
}

func queryMeta(q alertsQuery, count int) map[string]any {
	entities := make([]string, 0, len(q.Entities))
	for _, e := range q.Entities {
		entities = append(entities, string(e))
	}
	return map[string]any{
		"start":    q.Range.Start,
		"stop":     q.Range.Stop,
		"limit":    q.Limit,
		"offset":   q.Offset,
		"entities": entities,
		"count":    count,
	}
}

// loadAlerts runs the shared part of every alert endpoint: store check,
// query parsing and fetching. It writes the error response itself.
func loadAlerts(w nethttp.ResponseWriter, r *nethttp.Request, ac alertsConfig, store alertLister) (alertsQuery, []alerts.Alert, bool) {
	if r.Method != nethttp.MethodGet {
		methodNotAllowed(w, nethttp.MethodGet)
		return alertsQuery{}, nil, false
	}
	if store == nil {
		writeError(w, nethttp.StatusServiceUnavailable, dbDisabledMsg)
		return alertsQuery{}, nil, false
	}

	q, err := parseAlertsQuery(r, ac)
	if err != nil {
		writeError(w, nethttp.StatusBadRequest, err.Error())
		return alertsQuery{}, nil, false
	}

	items, err := fetchAlerts(r.Context(), store, q)
	if err != nil {
		writeError(w, fetchStatus(err), "failed to fetch alerts")
		return alertsQuery{}, nil, false
	}
	return q, items, true
}

func alertsHandler(ac alertsConfig, store alertLister) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q, items, ok := loadAlerts(w, r, ac, store)
		if !ok {
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": queryMeta(q, len(items)),
			"data": items,
		})
	}
}

func buildAlertsTimeline(ac alertsConfig, items []alerts.Alert) timeline.Payload {
	payload := timeline.Build(alerts.ToRecords(items, ac.delimiter), ac.delimiter)
	recordBuild("alerts_timeline", len(payload.Groups), len(payload.Items))
	return payload
}

func alertsTimelineHandler(ac alertsConfig, store alertLister) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q, items, ok := loadAlerts(w, r, ac, store)
		if !ok {
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": queryMeta(q, len(items)),
			"data": buildAlertsTimeline(ac, items),
		})
	}
}

func parseSlidingWindow(r *nethttp.Request, def alerts.Window) (alerts.Window, error) {
	q := r.URL.Query()
	w := def

	parse := func(key string, dst *float64) error {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q", key, raw)
		}
		*dst = v
		return nil
	}

	if err := parse("window_delay", &w.Delay); err != nil {
		return alerts.Window{}, err
	}
	if err := parse("window_size", &w.Size); err != nil {
		return alerts.Window{}, err
	}
	cycleMin := def.RepeatCycle.Minutes()
	if err := parse("repeat_cycle", &cycleMin); err != nil {
		return alerts.Window{}, err
	}
	w.RepeatCycle = time.Duration(cycleMin * float64(time.Minute))

	if err := w.Validate(); err != nil {
		return alerts.Window{}, err
	}
	return w, nil
}

// slidingQuery resolves the window of a sliding request, either from a
// saved view or from the query string. It writes the error response
// itself.
func slidingQuery(w nethttp.ResponseWriter, r *nethttp.Request, ac alertsConfig, views viewRepository) (alertsQuery, alerts.Window, bool) {
	var (
		window   alerts.Window
		entities []alerts.Entity
		viewName = strings.TrimSpace(r.URL.Query().Get("view"))
	)
	if viewName != "" {
		if views == nil {
			writeError(w, nethttp.StatusServiceUnavailable, viewStoreDisabledMsg)
			return alertsQuery{}, alerts.Window{}, false
		}
		start := time.Now()
		v, err := views.Get(r.Context(), viewName)
		recordDBQuery("viewstore", "Get", time.Since(start).Seconds(), ignoreNotFound(err))
		if errors.Is(err, viewstore.ErrNotFound) {
			writeError(w, nethttp.StatusNotFound, fmt.Sprintf("view not found: %s", viewName))
			return alertsQuery{}, alerts.Window{}, false
		}
		if err != nil {
			writeError(w, nethttp.StatusInternalServerError, "failed to load view")
			return alertsQuery{}, alerts.Window{}, false
		}
		window = v.Window()
		entities = v.Entities
	} else {
		parsed, err := parseSlidingWindow(r, ac.window)
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return alertsQuery{}, alerts.Window{}, false
		}
		window = parsed
	}

	return alertsQuery{
		Range:    window.Resolve(ac.now()),
		Limit:    parseLimit(r, ac.defaultLimit),
		Entities: entities,
	}, window, true
}

func slidingAlertsHandler(ac alertsConfig, store alertLister, views viewRepository) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			methodNotAllowed(w, nethttp.MethodGet)
			return
		}
		if store == nil {
			writeError(w, nethttp.StatusServiceUnavailable, dbDisabledMsg)
			return
		}

		q, window, ok := slidingQuery(w, r, ac, views)
		if !ok {
			return
		}
		items, err := fetchAlerts(r.Context(), store, q)
		if err != nil {
			writeError(w, fetchStatus(err), "failed to fetch alerts")
			return
		}

		meta := queryMeta(q, len(items))
		meta["sliding_window"] = map[string]any{
			"view":             strings.TrimSpace(r.URL.Query().Get("view")),
			"window_delay":     window.Delay,
			"window_size":      window.Size,
			"repeat_cycle_sec": int64(window.RepeatCycle.Seconds()),
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": meta,
			"data": buildAlertsTimeline(ac, items),
		})
	}
}

// alertsChartHandler renders a pie of the alerts in the requested range.
// With a view parameter the range and entities come from the saved view,
// matching the sliding timeline.
func alertsChartHandler(ac alertsConfig, store alertLister, views viewRepository) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			methodNotAllowed(w, nethttp.MethodGet)
			return
		}

		by := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by")))
		if by == "" {
			by = "severity"
		}
		if by != "severity" && by != "entity" {
			writeError(w, nethttp.StatusBadRequest, "by must be severity or entity")
			return
		}

		var items []alerts.Alert
		if strings.TrimSpace(r.URL.Query().Get("view")) != "" {
			if store == nil {
				writeError(w, nethttp.StatusServiceUnavailable, dbDisabledMsg)
				return
			}
			q, _, ok := slidingQuery(w, r, ac, views)
			if !ok {
				return
			}
			fetched, err := fetchAlerts(r.Context(), store, q)
			if err != nil {
				writeError(w, fetchStatus(err), "failed to fetch alerts")
				return
			}
			items = fetched
		} else {
			_, fetched, ok := loadAlerts(w, r, ac, store)
			if !ok {
				return
			}
			items = fetched
		}

		pie := charts.SeverityPie(items)
		if by == "entity" {
			pie = charts.EntityPie(items)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(nethttp.StatusOK)
		_ = charts.RenderFragment(w, pie)
	}
}

func parseLimit(r *nethttp.Request, defaultLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	return limit
}

func parseOffset(r *nethttp.Request) int {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return offset
}
