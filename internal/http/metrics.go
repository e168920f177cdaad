package http

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const metricPrefix = "vboa_hmi_"

var (
	appStartedAtUnix = time.Now().Unix()
	inFlightRequests int64
	metricsMu        sync.Mutex
	httpSeries       = map[httpMetricKey]*httpMetricSeries{}
	dbQuerySeries    = map[dbMetricKey]*dbMetricSeries{}
	buildSeries      = map[buildMetricKey]*buildMetricSeries{}
)

type httpMetricKey struct {
	Method string
	Path   string
	Status string
}

type httpMetricSeries struct {
	Count              uint64
	DurationSecondsSum float64
}

type dbMetricKey struct {
	Connector string
	Operation string
}

type dbMetricSeries struct {
	Count              uint64
	Errors             uint64
	DurationSecondsSum float64
}

// buildMetricKey tracks group/timeline builds by payload kind
// ("groups", "timeline", "alerts_timeline").
type buildMetricKey struct {
	Kind string
}

type buildMetricSeries struct {
	Count     uint64
	GroupsSum uint64
	ItemsSum  uint64
}

func writeMetricHeader(w io.Writer, name, typ, help string) {
	_, _ = fmt.Fprintf(w, "# HELP %s%s %s\n", metricPrefix, name, help)
	_, _ = fmt.Fprintf(w, "# TYPE %s%s %s\n", metricPrefix, name, typ)
}

func metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		metricsMu.Lock()
		httpKeys := make([]httpMetricKey, 0, len(httpSeries))
		for k := range httpSeries {
			httpKeys = append(httpKeys, k)
		}
		sort.Slice(httpKeys, func(i, j int) bool {
			if httpKeys[i].Method != httpKeys[j].Method {
				return httpKeys[i].Method < httpKeys[j].Method
			}
			if httpKeys[i].Path != httpKeys[j].Path {
				return httpKeys[i].Path < httpKeys[j].Path
			}
			return httpKeys[i].Status < httpKeys[j].Status
		})
		httpSnap := make([]httpMetricSeries, 0, len(httpKeys))
		for _, k := range httpKeys {
			httpSnap = append(httpSnap, *httpSeries[k])
		}

		dbKeys := make([]dbMetricKey, 0, len(dbQuerySeries))
		for k := range dbQuerySeries {
			dbKeys = append(dbKeys, k)
		}
		sort.Slice(dbKeys, func(i, j int) bool {
			if dbKeys[i].Connector != dbKeys[j].Connector {
				return dbKeys[i].Connector < dbKeys[j].Connector
			}
			return dbKeys[i].Operation < dbKeys[j].Operation
		})
		dbSnap := make([]dbMetricSeries, 0, len(dbKeys))
		for _, k := range dbKeys {
			dbSnap = append(dbSnap, *dbQuerySeries[k])
		}

		buildKeys := make([]buildMetricKey, 0, len(buildSeries))
		for k := range buildSeries {
			buildKeys = append(buildKeys, k)
		}
		sort.Slice(buildKeys, func(i, j int) bool { return buildKeys[i].Kind < buildKeys[j].Kind })
		buildSnap := make([]buildMetricSeries, 0, len(buildKeys))
		for _, k := range buildKeys {
			buildSnap = append(buildSnap, *buildSeries[k])
		}
		metricsMu.Unlock()

		writeMetricHeader(w, "http_requests_total", "counter", "Total HTTP requests handled by this app.")
		for i, k := range httpKeys {
			_, _ = fmt.Fprintf(w, "%shttp_requests_total{method=%q,path=%q,status=%q} %d\n",
				metricPrefix, escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status), httpSnap[i].Count)
		}
		writeMetricHeader(w, "http_request_duration_seconds_sum", "counter", "Total duration in seconds for observed requests.")
		for i, k := range httpKeys {
			_, _ = fmt.Fprintf(w, "%shttp_request_duration_seconds_sum{method=%q,path=%q,status=%q} %.9f\n",
				metricPrefix, escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status), httpSnap[i].DurationSecondsSum)
		}
		writeMetricHeader(w, "http_in_flight_requests", "gauge", "In-flight HTTP requests currently served by this app.")
		_, _ = fmt.Fprintf(w, "%shttp_in_flight_requests %d\n", metricPrefix, atomic.LoadInt64(&inFlightRequests))

		writeMetricHeader(w, "db_query_duration_seconds_sum", "counter", "Database query duration sum in seconds by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_duration_seconds_sum{connector=%q,operation=%q} %.9f\n",
				metricPrefix, escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnap[i].DurationSecondsSum)
		}
		writeMetricHeader(w, "db_query_duration_seconds_count", "counter", "Database query observation count by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_duration_seconds_count{connector=%q,operation=%q} %d\n",
				metricPrefix, escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnap[i].Count)
		}
		writeMetricHeader(w, "db_query_errors_total", "counter", "Database query errors by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_errors_total{connector=%q,operation=%q} %d\n",
				metricPrefix, escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnap[i].Errors)
		}

		writeMetricHeader(w, "builds_total", "counter", "Group/timeline payload builds by kind.")
		for i, k := range buildKeys {
			_, _ = fmt.Fprintf(w, "%sbuilds_total{kind=%q} %d\n", metricPrefix, escapeLabel(k.Kind), buildSnap[i].Count)
		}
		writeMetricHeader(w, "build_groups_total", "counter", "Group descriptors emitted by kind.")
		for i, k := range buildKeys {
			_, _ = fmt.Fprintf(w, "%sbuild_groups_total{kind=%q} %d\n", metricPrefix, escapeLabel(k.Kind), buildSnap[i].GroupsSum)
		}
		writeMetricHeader(w, "build_items_total", "counter", "Timeline items emitted by kind.")
		for i, k := range buildKeys {
			_, _ = fmt.Fprintf(w, "%sbuild_items_total{kind=%q} %d\n", metricPrefix, escapeLabel(k.Kind), buildSnap[i].ItemsSum)
		}

		uptime := time.Now().Unix() - appStartedAtUnix
		writeMetricHeader(w, "uptime_seconds", "gauge", "Process uptime in seconds.")
		_, _ = fmt.Fprintf(w, "%suptime_seconds %d\n", metricPrefix, uptime)

		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		writeMetricHeader(w, "runtime_goroutines", "gauge", "Number of goroutines.")
		_, _ = fmt.Fprintf(w, "%sruntime_goroutines %d\n", metricPrefix, runtime.NumGoroutine())
		writeMetricHeader(w, "runtime_memory_alloc_bytes", "gauge", "Heap allocation bytes.")
		_, _ = fmt.Fprintf(w, "%sruntime_memory_alloc_bytes %d\n", metricPrefix, ms.Alloc)
		writeMetricHeader(w, "runtime_gc_total", "counter", "Total GC runs since process start.")
		_, _ = fmt.Fprintf(w, "%sruntime_gc_total %d\n", metricPrefix, ms.NumGC)

		if cpuSec, ok := processCPUSeconds(); ok {
			writeMetricHeader(w, "runtime_cpu_seconds_total", "counter", "Total CPU time consumed by this process in seconds.")
			_, _ = fmt.Fprintf(w, "%sruntime_cpu_seconds_total %.6f\n", metricPrefix, cpuSec)
		}
		if rss, ok := processRSSBytes(); ok {
			writeMetricHeader(w, "runtime_resident_memory_bytes", "gauge", "Resident set size of this process.")
			_, _ = fmt.Fprintf(w, "%sruntime_resident_memory_bytes %d\n", metricPrefix, rss)
		}
	})
}

func appMetricsSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type endpointRow struct {
			Method  string  `json:"method"`
			Path    string  `json:"path"`
			Status  string  `json:"status"`
			Count   uint64  `json:"count"`
			AvgMS   float64 `json:"avg_ms"`
			TotalMS float64 `json:"total_ms"`
		}
		type dbRow struct {
			Connector string  `json:"connector"`
			Operation string  `json:"operation"`
			Count     uint64  `json:"count"`
			Errors    uint64  `json:"errors"`
			AvgMS     float64 `json:"avg_ms"`
		}
		type buildRow struct {
			Kind      string  `json:"kind"`
			Count     uint64  `json:"count"`
			AvgGroups float64 `json:"avg_groups"`
			AvgItems  float64 `json:"avg_items"`
		}

		metricsMu.Lock()
		httpRows := make([]endpointRow, 0, len(httpSeries))
		for k, s := range httpSeries {
			avg := 0.0
			if s.Count > 0 {
				avg = (s.DurationSecondsSum / float64(s.Count)) * 1000.0
			}
			httpRows = append(httpRows, endpointRow{
				Method:  k.Method,
				Path:    k.Path,
				Status:  k.Status,
				Count:   s.Count,
				AvgMS:   avg,
				TotalMS: s.DurationSecondsSum * 1000.0,
			})
		}

		dbRows := make([]dbRow, 0, len(dbQuerySeries))
		totalDBErrors := uint64(0)
		for k, s := range dbQuerySeries {
			avg := 0.0
			if s.Count > 0 {
				avg = (s.DurationSecondsSum / float64(s.Count)) * 1000.0
			}
			dbRows = append(dbRows, dbRow{
				Connector: k.Connector,
				Operation: k.Operation,
				Count:     s.Count,
				Errors:    s.Errors,
				AvgMS:     avg,
			})
			totalDBErrors += s.Errors
		}

		buildRows := make([]buildRow, 0, len(buildSeries))
		for k, s := range buildSeries {
			row := buildRow{Kind: k.Kind, Count: s.Count}
			if s.Count > 0 {
				row.AvgGroups = float64(s.GroupsSum) / float64(s.Count)
				row.AvgItems = float64(s.ItemsSum) / float64(s.Count)
			}
			buildRows = append(buildRows, row)
		}
		metricsMu.Unlock()

		sort.Slice(httpRows, func(i, j int) bool { return httpRows[i].AvgMS > httpRows[j].AvgMS })
		sort.Slice(dbRows, func(i, j int) bool { return dbRows[i].AvgMS > dbRows[j].AvgMS })
		sort.Slice(buildRows, func(i, j int) bool { return buildRows[i].Kind < buildRows[j].Kind })

		topHTTP := httpRows
		if len(topHTTP) > 5 {
			topHTTP = topHTTP[:5]
		}
		topDB := dbRows
		if len(topDB) > 5 {
			topDB = topDB[:5]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meta": map[string]any{
				"generated_at": time.Now().UTC(),
			},
			"data": map[string]any{
				"top_http_slowest_avg_ms": topHTTP,
				"top_db_slowest_avg_ms":   topDB,
				"builds":                  buildRows,
				"errors": map[string]any{
					"db_query_total": totalDBErrors,
				},
			},
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&inFlightRequests, 1)
		defer atomic.AddInt64(&inFlightRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := normalizeMetricPath(r.URL.Path)
		recordHTTPMetric(r.Method, route, rec.status, time.Since(start).Seconds())
	})
}

// metricRoutes are the exact paths served by the router. Anything else is
// folded into "other" so unknown paths cannot grow the series set.
var metricRoutes = map[string]struct{}{
	"/":                            {},
	"/metrics":                     {},
	"/health":                      {},
	"/ready":                       {},
	"/api/v1/metrics/app":          {},
	"/api/v1/groups":               {},
	"/api/v1/timeline":             {},
	"/api/v1/alerts":               {},
	"/api/v1/alerts/timeline":      {},
	"/api/v1/alerts/sliding":       {},
	"/api/v1/charts/alerts":        {},
	"/api/v1/events/timeline":      {},
	"/api/v1/annotations/timeline": {},
	"/api/v1/views":                {},
	"/api/v1/status/services":      {},
}

func normalizeMetricPath(path string) string {
	if _, ok := metricRoutes[path]; ok {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/views/") {
		return "/api/v1/views/{name}"
	}
	return "other"
}

func recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	key := httpMetricKey{
		Method: method,
		Path:   path,
		Status: strconv.Itoa(status),
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := httpSeries[key]
	if !ok {
		row = &httpMetricSeries{}
		httpSeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
}

func recordDBQuery(connector, operation string, durationSeconds float64, err error) {
	if connector == "" || operation == "" {
		return
	}
	key := dbMetricKey{Connector: connector, Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := dbQuerySeries[key]
	if !ok {
		row = &dbMetricSeries{}
		dbQuerySeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
	if err != nil {
		row.Errors++
	}
}

func recordBuild(kind string, groups, items int) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "unknown"
	}
	key := buildMetricKey{Kind: kind}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := buildSeries[key]
	if !ok {
		row = &buildMetricSeries{}
		buildSeries[key] = row
	}
	row.Count++
	row.GroupsSum += uint64(groups)
	row.ItemsSum += uint64(items)
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

func processCPUSeconds() (float64, bool) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	user := float64(ru.Utime.Sec) + (float64(ru.Utime.Usec) / 1_000_000.0)
	sys := float64(ru.Stime.Sec) + (float64(ru.Stime.Usec) / 1_000_000.0)
	return user + sys, true
}

func processRSSBytes() (uint64, bool) {
	b, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(b), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "VmRSS:"))
		if len(fields) == 0 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
