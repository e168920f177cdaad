package http

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-vboa-hmi-api/internal/alerts"
	mysqlstore "go-vboa-hmi-api/internal/connectors/mysql"
	"go-vboa-hmi-api/internal/connectors/viewstore"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testAlertsConfig() alertsConfig {
	return alertsConfig{
		delimiter:    ";",
		defaultLimit: 100,
		window:       alerts.Window{Delay: 0, Size: 1, RepeatCycle: 5 * time.Minute},
		now:          func() time.Time { return fixedNow },
	}
}

type fakeAlertLister struct {
	items     []alerts.Alert
	err       error
	allCalls  int
	entities  []alerts.Entity
	lastRange alerts.Range
}

func (f *fakeAlertLister) ListAlerts(_ context.Context, entity alerts.Entity, filter mysqlstore.AlertFilter) ([]alerts.Alert, error) {
	f.entities = append(f.entities, entity)
	f.lastRange = filter.Range
	if f.err != nil {
		return nil, f.err
	}
	var out []alerts.Alert
	for _, a := range f.items {
		if a.Entity == entity {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertLister) ListAllAlerts(_ context.Context, filter mysqlstore.AlertFilter) ([]alerts.Alert, error) {
	f.allCalls++
	f.lastRange = filter.Range
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeViews struct {
	views map[string]viewstore.View
}

func newFakeViews(vs ...viewstore.View) *fakeViews {
	f := &fakeViews{views: map[string]viewstore.View{}}
	for _, v := range vs {
		f.views[v.Name] = v
	}
	return f
}

func (f *fakeViews) List(_ context.Context, limit int) ([]viewstore.View, error) {
	out := make([]viewstore.View, 0, len(f.views))
	for _, v := range f.views {
		if len(out) == limit {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeViews) Get(_ context.Context, name string) (*viewstore.View, error) {
	v, ok := f.views[name]
	if !ok {
		return nil, viewstore.ErrNotFound
	}
	return &v, nil
}

func (f *fakeViews) Save(_ context.Context, v viewstore.View) (*viewstore.View, error) {
	v.ID = "id-" + v.Name
	f.views[v.Name] = v
	return &v, nil
}

func (f *fakeViews) Delete(_ context.Context, name string) error {
	if _, ok := f.views[name]; !ok {
		return viewstore.ErrNotFound
	}
	delete(f.views, name)
	return nil
}

func sampleAlerts() []alerts.Alert {
	return []alerts.Alert{
		{
			ID:               "a1",
			Name:             "MISSING_PLAN",
			Severity:         4,
			Group:            "PLANNING",
			Entity:           alerts.EntitySource,
			EntityUUID:       "s1",
			NotificationTime: fixedNow.Add(-time.Hour),
		},
		{
			ID:               "a2",
			Name:             "LATE_PRODUCT",
			Severity:         2,
			Group:            "DISSEMINATION",
			Entity:           alerts.EntityEvent,
			EntityUUID:       "e1",
			NotificationTime: fixedNow.Add(-2 * time.Hour),
		},
	}
}

func serve(t *testing.T, h nethttp.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *nethttp.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	return payload
}

func TestGroupsHandler(t *testing.T) {
	h := groupsHandler(";")

	rr := serve(t, h, nethttp.MethodPost, "/api/v1/groups", `{"paths":["A;B;C","A;B;D"]}`)
	require.Equal(t, nethttp.StatusOK, rr.Code)

	var payload struct {
		Meta map[string]any `json:"meta"`
		Data []struct {
			ID       string   `json:"id"`
			Label    string   `json:"label"`
			Depth    int      `json:"depth"`
			ChildIDs []string `json:"childIds"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))

	require.Len(t, payload.Data, 4)
	assert.Equal(t, "A", payload.Data[0].ID)
	assert.Equal(t, []string{"A;B"}, payload.Data[0].ChildIDs)
	assert.Equal(t, "A;B", payload.Data[1].ID)
	assert.Equal(t, []string{"A;B;C", "A;B;D"}, payload.Data[1].ChildIDs)
	assert.Equal(t, "C", payload.Data[2].Label)
	assert.Equal(t, 3, payload.Data[2].Depth)
	assert.Equal(t, float64(4), payload.Meta["count"])
}

func TestGroupsHandler_LeafChildIDsAreEmptyArrays(t *testing.T) {
	rr := serve(t, groupsHandler(";"), nethttp.MethodPost, "/api/v1/groups", `{"paths":["x"]}`)
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"childIds":[]`)
}

func TestGroupsHandler_RequestDelimiterOverridesDefault(t *testing.T) {
	rr := serve(t, groupsHandler(";"), nethttp.MethodPost, "/api/v1/groups", `{"paths":["a/b"],"delimiter":"/"}`)
	require.Equal(t, nethttp.StatusOK, rr.Code)

	payload := decode(t, rr)
	data := payload["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "a/b", data[1].(map[string]any)["id"])
}

func TestGroupsHandler_Errors(t *testing.T) {
	h := groupsHandler(";")

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/groups", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, nethttp.MethodPost, rr.Header().Get("Allow"))

	rr = serve(t, h, nethttp.MethodPost, "/api/v1/groups", `{"paths":`)
	assert.Equal(t, nethttp.StatusBadRequest, rr.Code)
	assert.NotNil(t, decode(t, rr)["error"])
}

func TestTimelineHandler(t *testing.T) {
	body := `{"records":[
		{"id":"1","group":"SOURCES;INGESTION","timeline":"S1","start":"2024-01-01T00:00:00Z","stop":"2024-01-01T01:00:00Z"},
		{"id":"1","group":"ignored","start":"2024-01-01T00:00:00Z","stop":"2024-01-01T01:00:00Z"},
		{"id":"2","group":"SOURCES;INGESTION","timeline":"S2","start":"2024-01-02T00:00:00Z","stop":"2024-01-02T03:00:00Z"}
	]}`
	rr := serve(t, timelineHandler(";"), nethttp.MethodPost, "/api/v1/timeline", body)
	require.Equal(t, nethttp.StatusOK, rr.Code)

	var payload struct {
		Meta map[string]any `json:"meta"`
		Data struct {
			Items []struct {
				ID    string `json:"id"`
				Group string `json:"group"`
			} `json:"items"`
			Groups []struct {
				ID           string   `json:"id"`
				TreeLevel    int      `json:"treeLevel"`
				NestedGroups []string `json:"nestedGroups"`
			} `json:"groups"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))

	require.Len(t, payload.Data.Items, 2)
	assert.Equal(t, "SOURCES;INGESTION;S1", payload.Data.Items[0].Group)
	require.Len(t, payload.Data.Groups, 4)
	assert.Equal(t, "SOURCES", payload.Data.Groups[0].ID)
	assert.Equal(t, 1, payload.Data.Groups[0].TreeLevel)
	assert.Equal(t, []string{"SOURCES;INGESTION;S1", "SOURCES;INGESTION;S2"}, payload.Data.Groups[1].NestedGroups)
	assert.Nil(t, payload.Data.Groups[2].NestedGroups)
	assert.Equal(t, "2024-01-01T00:00:00Z", payload.Meta["start"])
	assert.Equal(t, "2024-01-02T03:00:00Z", payload.Meta["stop"])
}

func TestAlertsHandler_DBDisabled(t *testing.T) {
	for _, target := range []string{
		"/api/v1/alerts",
		"/api/v1/alerts/timeline",
		"/api/v1/alerts/sliding",
		"/api/v1/charts/alerts",
		"/api/v1/events/timeline",
		"/api/v1/annotations/timeline",
	} {
		h := newRouter(testAlertsConfig(), nil, nil, nil, statusProbes{})
		rr := serve(t, h, nethttp.MethodGet, target, "")
		assert.Equal(t, nethttp.StatusServiceUnavailable, rr.Code, target)
		assert.NotNil(t, decode(t, rr)["error"], target)
	}
}

func TestAlertsHandler_DefaultWindow(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	rr := serve(t, alertsHandler(testAlertsConfig(), store), nethttp.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)

	assert.Equal(t, 1, store.allCalls)
	assert.Equal(t, fixedNow, store.lastRange.Stop)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), store.lastRange.Start)

	payload := decode(t, rr)
	meta := payload["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["count"])
	assert.Len(t, payload["data"].([]any), 2)
}

func TestAlertsHandler_EntityFilter(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	h := alertsHandler(testAlertsConfig(), store)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/alerts?entity=events&entity=event", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Zero(t, store.allCalls)
	assert.Equal(t, []alerts.Entity{alerts.EntityEvent}, store.entities)

	data := decode(t, rr)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "a2", data[0].(map[string]any)["id"])
}

func TestAlertsHandler_ExplicitRange(t *testing.T) {
	store := &fakeAlertLister{}
	h := alertsHandler(testAlertsConfig(), store)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/alerts?start=2024-01-01&window_size=2", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), store.lastRange.Start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), store.lastRange.Stop)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/alerts?stop=2024-01-05T06:00:00Z", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC), store.lastRange.Start)
}

func TestAlertsHandler_BadQuery(t *testing.T) {
	h := alertsHandler(testAlertsConfig(), &fakeAlertLister{})

	for _, target := range []string{
		"/api/v1/alerts?start=yesterday",
		"/api/v1/alerts?start=2024-02-01&stop=2024-01-01",
		"/api/v1/alerts?entity=PLANETS",
		"/api/v1/alerts?window_size=-1",
	} {
		rr := serve(t, h, nethttp.MethodGet, target, "")
		assert.Equal(t, nethttp.StatusBadRequest, rr.Code, target)
	}

	rr := serve(t, h, nethttp.MethodPost, "/api/v1/alerts", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rr.Code)
}

func TestAlertsHandler_StoreErrors(t *testing.T) {
	rr := serve(t, alertsHandler(testAlertsConfig(), &fakeAlertLister{err: errors.New("boom")}), nethttp.MethodGet, "/api/v1/alerts", "")
	assert.Equal(t, nethttp.StatusInternalServerError, rr.Code)

	rr = serve(t, alertsHandler(testAlertsConfig(), &fakeAlertLister{err: context.DeadlineExceeded}), nethttp.MethodGet, "/api/v1/alerts", "")
	assert.Equal(t, nethttp.StatusGatewayTimeout, rr.Code)
}

func TestAlertsTimelineHandler(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	rr := serve(t, alertsTimelineHandler(testAlertsConfig(), store), nethttp.MethodGet, "/api/v1/alerts/timeline", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)

	data := decode(t, rr)["data"].(map[string]any)
	items := data["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "SOURCES;PLANNING;MISSING_PLAN", first["group"])
	assert.Equal(t, "fill-border-red", first["className"])
	assert.Contains(t, first["tooltip"], "MISSING_PLAN")

	ids := []string{}
	for _, g := range data["groups"].([]any) {
		ids = append(ids, g.(map[string]any)["id"].(string))
	}
	assert.Equal(t, []string{
		"SOURCES", "SOURCES;PLANNING", "SOURCES;PLANNING;MISSING_PLAN",
		"EVENTS", "EVENTS;DISSEMINATION", "EVENTS;DISSEMINATION;LATE_PRODUCT",
	}, ids)
}

func TestSlidingAlertsHandler_QueryWindow(t *testing.T) {
	store := &fakeAlertLister{}
	h := slidingAlertsHandler(testAlertsConfig(), store, nil)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/alerts/sliding?window_delay=1&window_size=0.5&repeat_cycle=2", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), store.lastRange.Stop)
	assert.Equal(t, fixedNow.Add(-36*time.Hour), store.lastRange.Start)

	meta := decode(t, rr)["meta"].(map[string]any)
	sliding := meta["sliding_window"].(map[string]any)
	assert.Equal(t, float64(120), sliding["repeat_cycle_sec"])

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/alerts/sliding?window_size=0", "")
	assert.Equal(t, nethttp.StatusBadRequest, rr.Code)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/alerts/sliding?view=ops", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, rr.Code)
}

func TestSlidingAlertsHandler_SavedView(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	views := newFakeViews(viewstore.View{
		Name:              "ops",
		WindowDelay:       0,
		WindowSize:        2,
		RepeatCycleSecond: 60,
		Entities:          []alerts.Entity{alerts.EntitySource},
	})
	h := slidingAlertsHandler(testAlertsConfig(), store, views)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/alerts/sliding?view=ops", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, []alerts.Entity{alerts.EntitySource}, store.entities)
	assert.Equal(t, fixedNow.Add(-48*time.Hour), store.lastRange.Start)

	data := decode(t, rr)["data"].(map[string]any)
	assert.Len(t, data["items"].([]any), 1)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/alerts/sliding?view=missing", "")
	assert.Equal(t, nethttp.StatusNotFound, rr.Code)
}

func TestAlertsChartHandler(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	h := alertsChartHandler(testAlertsConfig(), store, nil)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/charts/alerts?by=entity", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `<div class="chart">`)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/charts/alerts?by=planet", "")
	assert.Equal(t, nethttp.StatusBadRequest, rr.Code)
}

func TestAlertsChartHandler_MethodCheckedFirst(t *testing.T) {
	h := alertsChartHandler(testAlertsConfig(), &fakeAlertLister{}, nil)

	rr := serve(t, h, nethttp.MethodPost, "/api/v1/charts/alerts?by=planet", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, nethttp.MethodGet, rr.Header().Get("Allow"))
}

func TestAlertsChartHandler_SavedViewWindow(t *testing.T) {
	store := &fakeAlertLister{items: sampleAlerts()}
	views := newFakeViews(viewstore.View{
		Name:       "ops",
		WindowSize: 3,
		Entities:   []alerts.Entity{alerts.EntityEvent},
	})
	h := alertsChartHandler(testAlertsConfig(), store, views)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/charts/alerts?by=entity&view=ops&start=2020-01-01", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, fixedNow.Add(-72*time.Hour), store.lastRange.Start)
	assert.Equal(t, fixedNow, store.lastRange.Stop)
	assert.Equal(t, []alerts.Entity{alerts.EntityEvent}, store.entities)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/charts/alerts?view=missing", "")
	assert.Equal(t, nethttp.StatusNotFound, rr.Code)

	rr = serve(t, alertsChartHandler(testAlertsConfig(), store, nil), nethttp.MethodGet, "/api/v1/charts/alerts?view=ops", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, rr.Code)
}

func TestViewsHandler(t *testing.T) {
	views := newFakeViews()
	h := viewsHandler(100, views)

	rr := serve(t, h, nethttp.MethodPost, "/api/v1/views", `{"name":"ops","window_size":0.5,"repeat_cycle_sec":300,"entities":["sources","EVENT"]}`)
	require.Equal(t, nethttp.StatusOK, rr.Code)
	saved := views.views["ops"]
	assert.Equal(t, []alerts.Entity{alerts.EntitySource, alerts.EntityEvent}, saved.Entities)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/views", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["data"].([]any), 1)

	for _, body := range []string{
		`{"name":"","window_size":1}`,
		`{"name":"bad","window_size":0}`,
		`{"name":"bad","window_size":1,"entities":["planets"]}`,
	} {
		rr = serve(t, h, nethttp.MethodPost, "/api/v1/views", body)
		assert.Equal(t, nethttp.StatusBadRequest, rr.Code, body)
	}

	rr = serve(t, h, nethttp.MethodPut, "/api/v1/views", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rr.Code)
}

func TestViewDetailHandler(t *testing.T) {
	views := newFakeViews(viewstore.View{Name: "ops", WindowSize: 1})
	h := viewDetailHandler(views)

	rr := serve(t, h, nethttp.MethodGet, "/api/v1/views/ops", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, "ops", decode(t, rr)["data"].(map[string]any)["name"])

	rr = serve(t, h, nethttp.MethodDelete, "/api/v1/views/ops", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/views/ops", "")
	assert.Equal(t, nethttp.StatusNotFound, rr.Code)

	rr = serve(t, h, nethttp.MethodGet, "/api/v1/views/a/b", "")
	assert.Equal(t, nethttp.StatusNotFound, rr.Code)
}

func TestViewsHandler_StoreDisabled(t *testing.T) {
	rr := serve(t, viewsHandler(100, nil), nethttp.MethodGet, "/api/v1/views", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, rr.Code)

	rr = serve(t, viewDetailHandler(nil), nethttp.MethodGet, "/api/v1/views/ops", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, rr.Code)
}

func TestServicesStatusHandler(t *testing.T) {
	probes := statusProbes{
		"alerts_db": func(ctx context.Context) map[string]any { return mysqlStatus(ctx, nil) },
		"custom":    func(context.Context) map[string]any { return map[string]any{"ok": true} },
	}
	rr := serve(t, servicesStatusHandler(probes), nethttp.MethodGet, "/api/v1/status/services", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)

	services := decode(t, rr)["services"].(map[string]any)
	assert.Equal(t, false, services["alerts_db"].(map[string]any)["enabled"])
	assert.Equal(t, true, services["custom"].(map[string]any)["ok"])
}

func TestRouter_DashboardAndHealth(t *testing.T) {
	h := newRouter(testAlertsConfig(), nil, nil, nil, statusProbes{})

	rr := serve(t, h, nethttp.MethodGet, "/", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "vis-timeline")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = serve(t, h, nethttp.MethodGet, "/does-not-exist", "")
	assert.Equal(t, nethttp.StatusNotFound, rr.Code)

	rr = serve(t, h, nethttp.MethodGet, "/health", "")
	require.Equal(t, nethttp.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestRouter_MetricRoutesAreServed(t *testing.T) {
	h := newRouter(testAlertsConfig(), nil, nil, nil, statusProbes{})
	for route := range metricRoutes {
		rr := serve(t, h, nethttp.MethodGet, route, "")
		assert.NotEqual(t, nethttp.StatusNotFound, rr.Code, route)
	}
}

func TestParseLimitAndOffset(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 100, 0},
		{"limit=20&offset=40", 20, 40},
		{"limit=0&offset=-1", 100, 0},
		{"limit=5000", 100, 0},
		{"limit=abc&offset=abc", 100, 0},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/alerts?"+tc.query, nil)
		assert.Equal(t, tc.limit, parseLimit(req, 100), tc.query)
		assert.Equal(t, tc.offset, parseOffset(req), tc.query)
	}
}
