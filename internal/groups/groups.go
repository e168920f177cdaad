// Package groups turns flat, delimiter-joined group paths into the nested
// group tree used by hierarchy-aware timeline widgets.
//
// A path such as "SOURCES;DIM_SIGNATURE_A" names a group two levels deep.
// Paths that share leading segments share the same nodes, so
// "SOURCES;DIM_A" and "SOURCES;DIM_B" produce a single "SOURCES" parent
// with two children.
//
// Segments are not escaped. A label that itself contains the delimiter is
// split like any other path; callers must use one delimiter consistently
// for a whole build, otherwise paths that were meant to merge end up as
// unrelated siblings.
package groups

import "strings"

// DefaultDelimiter separates segments in group paths.
const DefaultDelimiter = ";"

// Node is one segment at one position of the tree.
type Node struct {
	// ID is the segment joined with all of its ancestors, root first.
	ID       string
	Children *Level
}

// Level holds the sibling nodes below one parent, keyed by segment and
// kept in first-insertion order.
type Level struct {
	order []string
	nodes map[string]*Node
}

func newLevel() *Level {
	return &Level{nodes: map[string]*Node{}}
}

// Get returns the node stored under segment.
func (l *Level) Get(segment string) (*Node, bool) {
	if l == nil {
		return nil, false
	}
	n, ok := l.nodes[segment]
	return n, ok
}

// Segments returns the segment keys in insertion order.
func (l *Level) Segments() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of direct children.
func (l *Level) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

func (l *Level) child(segment, id string) *Node {
	if n, ok := l.nodes[segment]; ok {
		return n
	}
	n := &Node{ID: id, Children: newLevel()}
	l.nodes[segment] = n
	l.order = append(l.order, segment)
	return n
}

// Descriptor is the flattened view of a Node.
type Descriptor struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Depth    int      `json:"depth" yaml:"depth"`
	ChildIDs []string `json:"childIds" yaml:"childIds"`
}

// BuildTrie inserts every path into a forest keyed by top-level segment.
// Inserting a path that is already present leaves the forest unchanged.
// An empty delimiter selects DefaultDelimiter.
func BuildTrie(paths []string, delim string) *Level {
	if delim == "" {
		delim = DefaultDelimiter
	}

	root := newLevel()
	for _, path := range paths {
		level := root
		var id strings.Builder
		for i, segment := range strings.Split(path, delim) {
			if i > 0 {
				id.WriteString(delim)
			}
			id.WriteString(segment)
			level = level.child(segment, id.String()).Children
		}
	}
	return root
}

// Flatten walks the forest in pre-order: each parent precedes all of its
// descendants. Top-level nodes have depth 1.
func Flatten(forest *Level) []Descriptor {
	out := make([]Descriptor, 0, countNodes(forest))
	return flatten(forest, 1, out)
}

func flatten(level *Level, depth int, out []Descriptor) []Descriptor {
	if level == nil {
		return out
	}
	for _, segment := range level.order {
		node := level.nodes[segment]
		childIDs := make([]string, 0, node.Children.Len())
		for _, childSegment := range node.Children.Segments() {
			child, _ := node.Children.Get(childSegment)
			childIDs = append(childIDs, child.ID)
		}
		out = append(out, Descriptor{
			ID:       node.ID,
			Label:    segment,
			Depth:    depth,
			ChildIDs: childIDs,
		})
		out = flatten(node.Children, depth+1, out)
	}
	return out
}

func countNodes(level *Level) int {
	if level == nil {
		return 0
	}
	total := 0
	for _, n := range level.nodes {
		total += 1 + countNodes(n.Children)
	}
	return total
}

// Build is BuildTrie followed by Flatten.
func Build(paths []string, delim string) []Descriptor {
	return Flatten(BuildTrie(paths, delim))
}
