// Package layout computes the resizable splits of the workspace: the outer
// list/workspace split, the inner description/editor split and the terminal
// panel height.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBounds is returned when a bounds pair has Min > Max.
var ErrInvalidBounds = errors.New("invalid layout bounds")

// Axis selects how pointer movement maps to a split value.
type Axis int

const (
	// Horizontal maps the pointer X position to a percentage of the container width.
	Horizontal Axis = iota
	// Vertical maps upward pointer movement to a pixel height increase.
	Vertical
)

func (a Axis) String() string {
	switch a {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Point is a pointer position in container coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the bounding box of the container being split.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds is an inclusive [Min, Max] range.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Validate checks that Min <= Max and both are finite.
func (b Bounds) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
		return fmt.Errorf("%w: non-finite %v", ErrInvalidBounds, b)
	}
	if b.Min > b.Max {
		return fmt.Errorf("%w: min %.1f > max %.1f", ErrInvalidBounds, b.Min, b.Max)
	}
	return nil
}

// Clamp returns v limited to the bounds. NaN maps to Min.
func (b Bounds) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// DragHandle tracks a single pointer-down to pointer-up interaction.
// A released handle ignores further movement.
type DragHandle struct {
	axis     Axis
	rect     Rect
	bounds   Bounds
	start    Point
	startVal float64
	value    float64
	active   bool
}

// BeginDrag starts a drag on the given axis. current is the split value when
// the pointer went down and start is the pointer position at that moment.
func BeginDrag(axis Axis, rect Rect, current float64, bounds Bounds, start Point) *DragHandle {
	v := bounds.Clamp(current)
	return &DragHandle{
		axis:     axis,
		rect:     rect,
		bounds:   bounds,
		start:    start,
		startVal: v,
		value:    v,
		active:   true,
	}
}

// Move computes the split value for a new pointer position. ok is false when
// the handle has been released or the container has no width yet.
func (h *DragHandle) Move(p Point) (value float64, ok bool) {
	if h == nil || !h.active {
		return 0, false
	}

	switch h.axis {
	case Horizontal:
		if h.rect.Width <= 0 {
			return h.value, false
		}
		h.value = h.bounds.Clamp((p.X - h.rect.Left) / h.rect.Width * 100)
	case Vertical:
		h.value = h.bounds.Clamp(h.startVal + (h.start.Y - p.Y))
	default:
		return h.value, false
	}
	return h.value, true
}

// Value returns the last computed value.
func (h *DragHandle) Value() float64 {
	return h.value
}

// Active reports whether the drag is still in progress.
func (h *DragHandle) Active() bool {
	return h != nil && h.active
}

// Release ends the drag and returns the final value.
func (h *DragHandle) Release() float64 {
	if h == nil {
		return 0
	}
	h.active = false
	return h.value
}
