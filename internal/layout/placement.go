package layout

import (
	"math"

	"github.com/specialistvlad/flowcanvas/internal/node"
)

// TaskSize is the nominal footprint of a task node.
func (c Config) TaskSize() node.Size {
	return node.Size{Width: c.TaskWidth, Height: c.TaskHeight}
}

// ItemSize is the nominal footprint of an attachment node.
func (c Config) ItemSize() node.Size {
	return node.Size{Width: c.ItemWidth, Height: c.ItemHeight}
}

// SizeOf returns the nominal footprint of n.
func (c Config) SizeOf(n node.Node) node.Size {
	switch n.Kind {
	case node.KindTask:
		return c.TaskSize()
	case node.KindGroup:
		if n.Group.Size.Width > 0 {
			return n.Group.Size
		}
		return Compute(c, n.Group.MemberCount).Size
	default:
		return c.ItemSize()
	}
}

// Center approximates the center of a node from its origin and nominal size.
func Center(origin node.Point, size node.Size) node.Point {
	return node.Point{X: origin.X + size.Width/2, Y: origin.Y + size.Height/2}
}

// Distance is the Euclidean distance between two points.
func Distance(a, b node.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Beneath is where a task sequenced after the task at origin is placed.
func (c Config) Beneath(origin node.Point) node.Point {
	return node.Point{X: origin.X, Y: origin.Y + c.TaskHeight + c.FlowGap}
}

// Diagonal shifts p down and to the right by half a task, used when the
// slot beneath an anchor is taken.
func (c Config) Diagonal(p node.Point) node.Point {
	return node.Point{X: p.X + c.TaskWidth/2 + c.ItemSpacing, Y: p.Y + c.TaskHeight/2 + c.RowSpacing}
}

// DirectSlot is where a single attachment connected straight to the task
// at origin sits.
func (c Config) DirectSlot(origin node.Point) node.Point {
	return node.Point{
		X: origin.X + c.TaskWidth + c.SideGap,
		Y: origin.Y + (c.TaskHeight-c.ItemHeight)/2,
	}
}

// GroupOrigin is where a container owned by the task at origin is placed.
func (c Config) GroupOrigin(origin node.Point) node.Point {
	return node.Point{X: origin.X + c.TaskWidth + c.SideGap, Y: origin.Y}
}

// Clamp keeps a member's relative position inside its container, below the
// header.
func (c Config) Clamp(p node.Point, container node.Size) node.Point {
	maxX := math.Max(0, container.Width-c.ItemWidth)
	maxY := math.Max(c.HeaderHeight, container.Height-c.ItemHeight)
	return node.Point{
		X: math.Min(math.Max(p.X, 0), maxX),
		Y: math.Min(math.Max(p.Y, c.HeaderHeight), maxY),
	}
}

// Overlaps reports whether two axis-aligned boxes intersect.
func Overlaps(aOrigin node.Point, aSize node.Size, bOrigin node.Point, bSize node.Size) bool {
	return aOrigin.X < bOrigin.X+bSize.Width &&
		bOrigin.X < aOrigin.X+aSize.Width &&
		aOrigin.Y < bOrigin.Y+bSize.Height &&
		bOrigin.Y < aOrigin.Y+aSize.Height
}
