// Package alerts models the alerts raised against EBOA/RBOA entities and
// maps them onto timeline records.
package alerts

import (
	"fmt"
	"strings"
	"time"
)

// Entity is the kind of object an alert was raised on.
type Entity string

const (
	EntitySource      Entity = "SOURCE"
	EntityEvent       Entity = "EVENT"
	EntityAnnotation  Entity = "ANNOTATION"
	EntityReport      Entity = "REPORT"
	EntityExplicitRef Entity = "EXPLICIT_REF"
)

// Entities lists every entity in display order.
var Entities = []Entity{EntitySource, EntityEvent, EntityAnnotation, EntityReport, EntityExplicitRef}

// GroupPrefix is the top-level timeline group of the entity.
func (e Entity) GroupPrefix() string {
	switch e {
	case EntitySource:
		return "SOURCES"
	case EntityEvent:
		return "EVENTS"
	case EntityAnnotation:
		return "ANNOTATIONS"
	case EntityReport:
		return "REPORTS"
	case EntityExplicitRef:
		return "EXPLICIT_REFERENCES"
	default:
		return string(e)
	}
}

// Title is the human label of the entity, e.g. "Explicit reference".
func (e Entity) Title() string {
	if e == EntityExplicitRef {
		return "Explicit reference"
	}
	s := strings.ReplaceAll(strings.ToLower(string(e)), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseEntity accepts entity names case-insensitively, singular or as the
// group prefix ("sources", "explicit_references"). "explicit_refs" is
// accepted as well.
func ParseEntity(raw string) (Entity, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	for _, e := range Entities {
		if norm == string(e) || norm == e.GroupPrefix() || norm == string(e)+"S" {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown alert entity %q", raw)
}

// Alert is one alert occurrence joined with its definition and group.
type Alert struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Severity         int        `json:"severity"`
	SeverityLabel    string     `json:"severity_label"`
	Description      string     `json:"description"`
	Message          string     `json:"message"`
	Validated        *bool      `json:"validated"`
	Notified         *bool      `json:"notified"`
	Solved           *bool      `json:"solved"`
	SolvedTime       *time.Time `json:"solved_time"`
	NotificationTime time.Time  `json:"notification_time"`
	IngestionTime    time.Time  `json:"ingestion_time"`
	Generator        string     `json:"generator"`
	Justification    string     `json:"justification"`
	Group            string     `json:"group"`
	Entity           Entity     `json:"entity"`
	EntityUUID       string     `json:"entity_uuid"`
}

var severityLabels = []string{"INFO", "WARNING", "MINOR", "MAJOR", "CRITICAL", "FATAL"}

// SeverityLabel names a numeric severity.
func SeverityLabel(severity int) string {
	if severity < 0 || severity >= len(severityLabels) {
		return "UNKNOWN"
	}
	return severityLabels[severity]
}

// SeverityLabels returns all known severity labels, lowest first.
func SeverityLabels() []string {
	out := make([]string, len(severityLabels))
	copy(out, severityLabels)
	return out
}
