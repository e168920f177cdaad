// Package timeline shapes flat, group-labelled records into the items and
// nested groups consumed by a vis-timeline widget.
package timeline

import (
	"time"

	"go-vboa-hmi-api/internal/groups"
)

// Record is one bar on a timeline. Group is a delimiter-joined group path;
// Timeline, when set, adds one more level below it.
type Record struct {
	ID        string    `json:"id"`
	Group     string    `json:"group"`
	Timeline  string    `json:"timeline,omitempty"`
	Start     time.Time `json:"start"`
	Stop      time.Time `json:"stop"`
	Tooltip   string    `json:"tooltip,omitempty"`
	ClassName string    `json:"className,omitempty"`
}

// Item is a vis-timeline data item.
type Item struct {
	ID        string    `json:"id"`
	Group     string    `json:"group"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Tooltip   string    `json:"tooltip,omitempty"`
	ClassName string    `json:"className,omitempty"`
}

// Group is a vis-timeline group. NestedGroups is omitted for leaves since
// the widget renders any group carrying the field as collapsible.
type Group struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	TreeLevel    int      `json:"treeLevel"`
	NestedGroups []string `json:"nestedGroups,omitempty"`
}

// Payload is the full input of one timeline rendering.
type Payload struct {
	Items  []Item  `json:"items"`
	Groups []Group `json:"groups"`
}

// LeafPath returns the group path a record is drawn in.
func (r Record) LeafPath(delim string) string {
	if r.Timeline == "" {
		return r.Group
	}
	if delim == "" {
		delim = groups.DefaultDelimiter
	}
	if r.Group == "" {
		return r.Timeline
	}
	return r.Group + delim + r.Timeline
}

// Build converts records into a payload. Records sharing an ID keep only
// the first occurrence; group paths are collected in record order.
func Build(records []Record, delim string) Payload {
	seenIDs := make(map[string]struct{}, len(records))
	seenPaths := make(map[string]struct{})
	paths := make([]string, 0, len(records))
	items := make([]Item, 0, len(records))

	for _, r := range records {
		if _, dup := seenIDs[r.ID]; dup {
			continue
		}
		seenIDs[r.ID] = struct{}{}

		path := r.LeafPath(delim)
		if _, ok := seenPaths[path]; !ok {
			seenPaths[path] = struct{}{}
			paths = append(paths, path)
		}

		items = append(items, Item{
			ID:        r.ID,
			Group:     path,
			Start:     r.Start,
			End:       r.Stop,
			Tooltip:   r.Tooltip,
			ClassName: r.ClassName,
		})
	}

	descriptors := groups.Build(paths, delim)
	out := make([]Group, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, Group{
			ID:           d.ID,
			Content:      d.Label,
			TreeLevel:    d.Depth,
			NestedGroups: d.ChildIDs,
		})
	}

	return Payload{Items: items, Groups: out}
}

// Span returns the earliest start and the latest stop across records.
// ok is false when records is empty.
func Span(records []Record) (start, stop time.Time, ok bool) {
	for i, r := range records {
		if i == 0 || r.Start.Before(start) {
			start = r.Start
		}
		if i == 0 || r.Stop.After(stop) {
			stop = r.Stop
		}
	}
	return start, stop, len(records) > 0
}
