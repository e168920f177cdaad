package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-vboa-hmi-api/internal/alerts"
)

func sample() []alerts.Alert {
	return []alerts.Alert{
		{ID: "1", Severity: 4, Entity: alerts.EntitySource},
		{ID: "2", Severity: 4, Entity: alerts.EntityEvent},
		{ID: "3", Severity: 0, Entity: alerts.EntitySource},
		{ID: "4", Severity: 9, Entity: alerts.EntityReport},
	}
}

func TestSeverityCounts(t *testing.T) {
	assert.Equal(t, []Slice{
		{Label: "INFO", Count: 1},
		{Label: "CRITICAL", Count: 2},
		{Label: "UNKNOWN", Count: 1},
	}, SeverityCounts(sample()))
}

func TestEntityCounts(t *testing.T) {
	assert.Equal(t, []Slice{
		{Label: "SOURCE", Count: 2},
		{Label: "EVENT", Count: 1},
		{Label: "REPORT", Count: 1},
	}, EntityCounts(sample()))
	assert.Empty(t, EntityCounts(nil))
}

func TestRenderFragment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderFragment(&buf, SeverityPie(sample())))

	out := buf.String()
	assert.Contains(t, out, `<div class="chart">`)
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "CRITICAL")
}
