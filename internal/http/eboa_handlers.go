package http

import (
	"context"
	nethttp "net/http"
	"time"

	"go-vboa-hmi-api/internal/alerts"
	mysqlstore "go-vboa-hmi-api/internal/connectors/mysql"
	"go-vboa-hmi-api/internal/eboa"
	"go-vboa-hmi-api/internal/timeline"
)

type eboaLister interface {
	ListEvents(ctx context.Context, f mysqlstore.EventFilter) ([]eboa.Event, error)
	ListAnnotations(ctx context.Context, f mysqlstore.AnnotationFilter) ([]eboa.Annotation, error)
}

// eboaQuery is the window and paging shared by the EBOA timelines.
type eboaQuery struct {
	Range  alerts.Range
	Limit  int
	Offset int
}

// parseEBOAQuery runs the method and store checks and parses the window.
// It writes the error response itself.
func parseEBOAQuery(w nethttp.ResponseWriter, r *nethttp.Request, ac alertsConfig, store eboaLister) (eboaQuery, bool) {
	if r.Method != nethttp.MethodGet {
		methodNotAllowed(w, nethttp.MethodGet)
		return eboaQuery{}, false
	}
	if store == nil {
		writeError(w, nethttp.StatusServiceUnavailable, dbDisabledMsg)
		return eboaQuery{}, false
	}
	rng, err := parseRangeQuery(r, ac)
	if err != nil {
		writeError(w, nethttp.StatusBadRequest, err.Error())
		return eboaQuery{}, false
	}
	return eboaQuery{
		Range:  rng,
		Limit:  parseLimit(r, ac.defaultLimit),
		Offset: parseOffset(r),
	}, true
}

func writeEBOATimeline(w nethttp.ResponseWriter, kind string, q eboaQuery, filters map[string]any, records []timeline.Record, delim string) {
	payload := timeline.Build(records, delim)
	recordBuild(kind, len(payload.Groups), len(payload.Items))

	meta := map[string]any{
		"start":   q.Range.Start,
		"stop":    q.Range.Stop,
		"limit":   q.Limit,
		"offset":  q.Offset,
		"count":   len(payload.Items),
		"filters": filters,
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"meta": meta,
		"data": payload,
	})
}

func eventsTimelineHandler(ac alertsConfig, store eboaLister) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q, ok := parseEBOAQuery(w, r, ac, store)
		if !ok {
			return
		}

		f := mysqlstore.EventFilter{
			Range:        q.Range,
			GaugeNames:   queryValues(r, "gauge_name"),
			GaugeSystems: queryValues(r, "gauge_system"),
			Limit:        q.Limit,
			Offset:       q.Offset,
		}
		start := time.Now()
		items, err := store.ListEvents(r.Context(), f)
		recordDBQuery("eboa", "ListEvents", time.Since(start).Seconds(), err)
		if err != nil {
			writeError(w, fetchStatus(err), "failed to fetch events")
			return
		}

		writeEBOATimeline(w, "events_timeline", q, map[string]any{
			"gauge_names":   f.GaugeNames,
			"gauge_systems": f.GaugeSystems,
		}, eboa.EventRecords(items, ac.delimiter), ac.delimiter)
	}
}

func annotationsTimelineHandler(ac alertsConfig, store eboaLister) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q, ok := parseEBOAQuery(w, r, ac, store)
		if !ok {
			return
		}

		f := mysqlstore.AnnotationFilter{
			Range:   q.Range,
			Names:   queryValues(r, "name"),
			Systems: queryValues(r, "system"),
			Limit:   q.Limit,
			Offset:  q.Offset,
		}
		start := time.Now()
		items, err := store.ListAnnotations(r.Context(), f)
		recordDBQuery("eboa", "ListAnnotations", time.Since(start).Seconds(), err)
		if err != nil {
			writeError(w, fetchStatus(err), "failed to fetch annotations")
			return
		}

		writeEBOATimeline(w, "annotations_timeline", q, map[string]any{
			"names":   f.Names,
			"systems": f.Systems,
		}, eboa.AnnotationRecords(items, ac.delimiter), ac.delimiter)
	}
}
