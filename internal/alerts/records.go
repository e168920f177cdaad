package alerts

import (
	"bytes"
	"html/template"
	"time"

	"go-vboa-hmi-api/internal/groups"
	"go-vboa-hmi-api/internal/timeline"
)

var tooltipTmpl = template.Must(template.New("alert").Funcs(template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"flag": func(b *bool) string {
		switch {
		case b == nil:
			return "-"
		case *b:
			return "True"
		default:
			return "False"
		}
	},
}).Parse(`<table border='1'>` +
	`<tr><td>UUID</td><td>{{.ID}}</td></tr>` +
	`<tr><td>Name</td><td>{{.Name}}</td></tr>` +
	`<tr><td>Severity</td><td>{{.SeverityLabel}}</td></tr>` +
	`<tr><td>Description</td><td>{{.Description}}</td></tr>` +
	`<tr><td>Message</td><td>{{.Message}}</td></tr>` +
	`<tr><td>Validated</td><td>{{flag .Validated}}</td></tr>` +
	`<tr><td>Notified</td><td>{{flag .Notified}}</td></tr>` +
	`<tr><td>Solved</td><td>{{flag .Solved}}</td></tr>` +
	`<tr><td>Notification time</td><td>{{when .NotificationTime}}</td></tr>` +
	`<tr><td>{{.Entity.Title}} UUID</td><td>{{.EntityUUID}}</td></tr>` +
	`<tr><td>Group</td><td>{{.Group}}</td></tr>` +
	`<tr><td>Entity</td><td>{{.Entity}}</td></tr>` +
	`</table>`))

// Tooltip renders the HTML tooltip of an alert. Field values are escaped.
func Tooltip(a Alert) string {
	if a.SeverityLabel == "" {
		a.SeverityLabel = SeverityLabel(a.Severity)
	}
	var buf bytes.Buffer
	if err := tooltipTmpl.Execute(&buf, a); err != nil {
		return ""
	}
	return buf.String()
}

// ClassName is the timeline item class used to colour an alert.
func ClassName(a Alert) string {
	switch {
	case a.Severity >= 4:
		return "fill-border-red"
	case a.Severity >= 2:
		return "fill-border-orange"
	default:
		return "fill-border-yellow"
	}
}

// GroupPath places an alert under its entity prefix and alert group.
func GroupPath(a Alert, delim string) string {
	if delim == "" {
		delim = groups.DefaultDelimiter
	}
	return a.Entity.GroupPrefix() + delim + a.Group
}

// ToRecords converts alerts into timeline records: one timeline per alert
// name below "<ENTITY PREFIX>;<alert group>". Alerts are instants, so
// start equals stop.
func ToRecords(list []Alert, delim string) []timeline.Record {
	out := make([]timeline.Record, 0, len(list))
	for _, a := range list {
		out = append(out, timeline.Record{
			ID:        a.ID,
			Group:     GroupPath(a, delim),
			Timeline:  a.Name,
			Start:     a.NotificationTime,
			Stop:      a.NotificationTime,
			Tooltip:   Tooltip(a),
			ClassName: ClassName(a),
		})
	}
	return out
}
