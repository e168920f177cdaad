// Package eboa models the events and annotations stored in EBOA and maps
// them onto timeline records grouped by gauge or annotation configuration.
package eboa

import (
	"bytes"
	"html/template"
	"time"

	"go-vboa-hmi-api/internal/groups"
	"go-vboa-hmi-api/internal/timeline"
)

// Event is an EBOA event joined with its gauge, explicit reference and
// source.
type Event struct {
	ID              string    `json:"id"`
	GaugeName       string    `json:"gauge_name"`
	GaugeSystem     string    `json:"gauge_system"`
	ExplicitRef     string    `json:"explicit_reference"`
	ExplicitRefUUID string    `json:"explicit_ref_uuid"`
	Source          string    `json:"source"`
	SourceUUID      string    `json:"source_uuid"`
	Start           time.Time `json:"start"`
	Stop            time.Time `json:"stop"`
	IngestionTime   time.Time `json:"ingestion_time"`
}

// Annotation is an EBOA annotation joined with its configuration, explicit
// reference and source.
type Annotation struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	System          string    `json:"system"`
	ExplicitRef     string    `json:"explicit_reference"`
	ExplicitRefUUID string    `json:"explicit_ref_uuid"`
	Source          string    `json:"source"`
	SourceUUID      string    `json:"source_uuid"`
	IngestionTime   time.Time `json:"ingestion_time"`
}

func joinPath(delim string, segments ...string) string {
	if delim == "" {
		delim = groups.DefaultDelimiter
	}
	out := ""
	for _, s := range segments {
		if s == "" {
			continue
		}
		if out != "" {
			out += delim
		}
		out += s
	}
	return out
}

// GaugePath is the timeline group of an event: the gauge system, when
// set, above the gauge name.
func GaugePath(e Event, delim string) string {
	return joinPath(delim, e.GaugeSystem, e.GaugeName)
}

// ConfigurationPath is the timeline group of an annotation: the
// configuration system, when set, above the configuration name.
func ConfigurationPath(a Annotation, delim string) string {
	return joinPath(delim, a.System, a.Name)
}

var tooltipFuncs = template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

var eventTooltipTmpl = template.Must(template.New("event").Funcs(tooltipFuncs).Parse(`<table border='1'>` +
	`<tr><td>UUID</td><td>{{.ID}}</td></tr>` +
	`<tr><td>Gauge name</td><td>{{.GaugeName}}</td></tr>` +
	`<tr><td>Gauge system</td><td>{{.GaugeSystem}}</td></tr>` +
	`<tr><td>Explicit reference</td><td>{{.ExplicitRef}}</td></tr>` +
	`<tr><td>Source</td><td>{{.Source}}</td></tr>` +
	`<tr><td>Start</td><td>{{when .Start}}</td></tr>` +
	`<tr><td>Stop</td><td>{{when .Stop}}</td></tr>` +
	`<tr><td>Ingestion time</td><td>{{when .IngestionTime}}</td></tr>` +
	`</table>`))

var annotationTooltipTmpl = template.Must(template.New("annotation").Funcs(tooltipFuncs).Parse(`<table border='1'>` +
	`<tr><td>UUID</td><td>{{.ID}}</td></tr>` +
	`<tr><td>Name</td><td>{{.Name}}</td></tr>` +
	`<tr><td>System</td><td>{{.System}}</td></tr>` +
	`<tr><td>Explicit reference</td><td>{{.ExplicitRef}}</td></tr>` +
	`<tr><td>Source</td><td>{{.Source}}</td></tr>` +
	`<tr><td>Ingestion time</td><td>{{when .IngestionTime}}</td></tr>` +
	`</table>`))

func render(tmpl *template.Template, v any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return ""
	}
	return buf.String()
}

// EventTooltip renders the HTML tooltip of an event.
func EventTooltip(e Event) string { return render(eventTooltipTmpl, e) }

// AnnotationTooltip renders the HTML tooltip of an annotation.
func AnnotationTooltip(a Annotation) string { return render(annotationTooltipTmpl, a) }

// EventRecords places each event under its gauge path, one timeline per
// explicit reference.
func EventRecords(list []Event, delim string) []timeline.Record {
	out := make([]timeline.Record, 0, len(list))
	for _, e := range list {
		out = append(out, timeline.Record{
			ID:       e.ID,
			Group:    GaugePath(e, delim),
			Timeline: e.ExplicitRef,
			Start:    e.Start,
			Stop:     e.Stop,
			Tooltip:  EventTooltip(e),
		})
	}
	return out
}

// AnnotationRecords places each annotation under its configuration path,
// one timeline per explicit reference. Annotations are instants at their
// ingestion time.
func AnnotationRecords(list []Annotation, delim string) []timeline.Record {
	out := make([]timeline.Record, 0, len(list))
	for _, a := range list {
		out = append(out, timeline.Record{
			ID:       a.ID,
			Group:    ConfigurationPath(a, delim),
			Timeline: a.ExplicitRef,
			Start:    a.IngestionTime,
			Stop:     a.IngestionTime,
			Tooltip:  AnnotationTooltip(a),
		})
	}
	return out
}
