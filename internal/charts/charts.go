// Package charts renders alert distributions as go-echarts pies.
package charts

import (
	"html/template"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"

	"go-vboa-hmi-api/internal/alerts"
)

// Slice is one labelled share of a pie.
type Slice struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SeverityCounts counts alerts per severity label, lowest severity first.
// Labels without alerts are skipped.
func SeverityCounts(list []alerts.Alert) []Slice {
	counts := map[string]int{}
	for _, a := range list {
		counts[alerts.SeverityLabel(a.Severity)]++
	}
	order := append(alerts.SeverityLabels(), "UNKNOWN")
	return collect(order, counts)
}

// EntityCounts counts alerts per entity in display order.
func EntityCounts(list []alerts.Alert) []Slice {
	counts := map[string]int{}
	for _, a := range list {
		counts[string(a.Entity)]++
	}
	order := make([]string, 0, len(alerts.Entities))
	for _, e := range alerts.Entities {
		order = append(order, string(e))
	}
	return collect(order, counts)
}

func collect(order []string, counts map[string]int) []Slice {
	out := make([]Slice, 0, len(counts))
	for _, label := range order {
		if n := counts[label]; n > 0 {
			out = append(out, Slice{Label: label, Count: n})
		}
	}
	return out
}

// SeverityPie charts alerts by severity.
func SeverityPie(list []alerts.Alert) *charts.Pie {
	return pie("Alerts by severity", SeverityCounts(list))
}

// EntityPie charts alerts by entity.
func EntityPie(list []alerts.Alert) *charts.Pie {
	return pie("Alerts by entity", EntityCounts(list))
}

func pie(title string, slices []Slice) *charts.Pie {
	p := charts.NewPie()
	p.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	)

	data := make([]opts.PieData, 0, len(slices))
	for _, s := range slices {
		data = append(data, opts.PieData{Name: s.Label, Value: s.Count})
	}
	p.AddSeries(title, data)
	return p
}

var fragmentTmpl = template.Must(template.New("chart").Parse(`<div class="chart">{{ .Element }} {{ .Script }}</div>
`))

// RenderFragment writes only the chart element and its script so the
// result can be swapped into an existing page.
func RenderFragment(w io.Writer, chart render.Renderer) error {
	snippet := chart.RenderSnippet()
	return fragmentTmpl.Execute(w, struct {
		Element template.HTML
		Script  template.HTML
	}{
		Element: template.HTML(snippet.Element),
		Script:  template.HTML(snippet.Script),
	})
}
