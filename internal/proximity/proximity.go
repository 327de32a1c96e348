// Package proximity finds the task a dragged node should snap to.
package proximity

import (
	"slices"

	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// DefaultRadius is the snapping distance in canvas units.
const DefaultRadius = 200

// Resolver locates anchor candidates.
type Resolver struct {
	// Radius is exclusive: a task exactly Radius away is not a candidate.
	Radius float64
	// TaskSize is the nominal task footprint used to approximate centers.
	TaskSize node.Size
}

// New creates a resolver from the layout constants.
func New(radius float64, cfg layout.Config) Resolver {
	return Resolver{Radius: radius, TaskSize: cfg.TaskSize()}
}

// Candidate is a task within the radius.
type Candidate struct {
	ID       nodeid.ID
	Distance float64
}

// Nearest returns the closest task to p, skipping the excluded ids. Ties
// go to the task found first in the model's insertion order.
func (r Resolver) Nearest(v graph.View, p node.Point, exclude ...nodeid.ID) (Candidate, bool) {
	var best Candidate
	found := false
	for _, n := range v.NodesOfKind(node.KindTask) {
		if slices.Contains(exclude, n.ID) {
			continue
		}
		d := layout.Distance(p, layout.Center(n.Position, r.TaskSize))
		if d >= r.Radius {
			continue
		}
		if !found || d < best.Distance {
			best = Candidate{ID: n.ID, Distance: d}
			found = true
		}
	}
	return best, found
}
