// Package layout computes container geometry for grouped attachments and
// the nominal placement of nodes relative to their task.
//
// Every function here is pure: the result depends only on the Config and
// the arguments. Callers must compute the layout for the new member count
// before committing member positions so that every sibling reflows.
package layout

import (
	"math"

	"github.com/specialistvlad/flowcanvas/internal/node"
)

// Config holds the canonical sizing constants.
type Config struct {
	MinWidth     float64 `hcl:"min_width,optional" validate:"gt=0"`
	MinHeight    float64 `hcl:"min_height,optional" validate:"gte=0"`
	PaddingX     float64 `hcl:"padding_x,optional" validate:"gte=0"`
	PaddingY     float64 `hcl:"padding_y,optional" validate:"gte=0"`
	HeaderHeight float64 `hcl:"header_height,optional" validate:"gte=0"`
	ItemWidth    float64 `hcl:"item_width,optional" validate:"gt=0"`
	ItemHeight   float64 `hcl:"item_height,optional" validate:"gt=0"`
	ItemSpacing  float64 `hcl:"item_spacing,optional" validate:"gte=0"`
	RowSpacing   float64 `hcl:"row_spacing,optional" validate:"gte=0"`

	// Nominal size of a task node, used for centers and placement.
	TaskWidth  float64 `hcl:"task_width,optional" validate:"gt=0"`
	TaskHeight float64 `hcl:"task_height,optional" validate:"gt=0"`

	// FlowGap is the vertical gap between a task and the task placed beneath it.
	FlowGap float64 `hcl:"flow_gap,optional" validate:"gte=0"`
	// SideGap is the horizontal gap between a task and its attachments.
	SideGap float64 `hcl:"side_gap,optional" validate:"gte=0"`
	// DuplicateOffset shifts a duplicated attachment away from its original.
	DuplicateOffset float64 `hcl:"duplicate_offset,optional" validate:"gte=0"`
}

// DefaultConfig returns the canonical constants.
func DefaultConfig() Config {
	return Config{
		MinWidth:        350,
		MinHeight:       150,
		PaddingX:        25,
		PaddingY:        20,
		HeaderHeight:    40,
		ItemWidth:       130,
		ItemHeight:      80,
		ItemSpacing:     15,
		RowSpacing:      15,
		TaskWidth:       250,
		TaskHeight:      120,
		FlowGap:         80,
		SideGap:         100,
		DuplicateOffset: 20,
	}
}

// Container is the computed geometry of a group with a given member count.
type Container struct {
	Size        node.Size
	ItemsPerRow int
	Rows        int
	// Slots holds the position of each member, relative to the container origin.
	Slots []node.Point
}

// Compute returns the container footprint and slot positions for n members.
// Members are arranged in at most two rows.
func Compute(cfg Config, n int) Container {
	if n <= 0 {
		return Container{Size: node.Size{Width: cfg.MinWidth, Height: cfg.MinHeight}}
	}

	perRow := int(math.Ceil(float64(n) / 2))
	rows := 1
	if n > perRow {
		rows = 2
	}

	width := 2*cfg.PaddingX + float64(perRow)*cfg.ItemWidth + float64(perRow-1)*cfg.ItemSpacing
	height := cfg.HeaderHeight + 2*cfg.PaddingY + float64(rows)*cfg.ItemHeight + float64(rows-1)*cfg.RowSpacing

	slots := make([]node.Point, n)
	for i := range n {
		row := i / perRow
		col := i % perRow
		slots[i] = node.Point{
			X: cfg.PaddingX + float64(col)*(cfg.ItemWidth+cfg.ItemSpacing),
			Y: cfg.HeaderHeight + cfg.PaddingY + float64(row)*(cfg.ItemHeight+cfg.RowSpacing),
		}
	}

	return Container{
		Size:        node.Size{Width: math.Max(cfg.MinWidth, width), Height: math.Max(cfg.MinHeight, height)},
		ItemsPerRow: perRow,
		Rows:        rows,
		Slots:       slots,
	}
}
