package geo

import (
	"fmt"
	"math"
)

// CurvedPath returns an SVG quadratic Bezier from a to b. The control point
// sits on the chord's perpendicular bisector, offset by curvature*length.
func CurvedPath(a, b Point, curvature float64) (string, Point) {
	mid := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)
	ctrl := mid
	if length > 0 {
		// Unit normal, rotated counter-clockwise from the chord.
		nx := -dy / length
		ny := dx / length
		ctrl = Point{X: mid.X + nx*curvature*length, Y: mid.Y + ny*curvature*length}
	}
	d := fmt.Sprintf("M %s %s Q %s %s %s %s",
		formatFloat(a.X), formatFloat(a.Y),
		formatFloat(ctrl.X), formatFloat(ctrl.Y),
		formatFloat(b.X), formatFloat(b.Y))
	return d, ctrl
}

type TooltipSide string

const (
	TooltipAbove TooltipSide = "above"
	TooltipBelow TooltipSide = "below"
)

// TooltipPlacement is the top-left corner of the tooltip box and the side of
// the anchor it ended up on.
type TooltipPlacement struct {
	Position Point       `json:"position"`
	Side     TooltipSide `json:"side"`
}

// PlaceTooltip positions a box of the given size near anchor, preferring the
// space above it. It flips below when the top would overflow and clamps the
// box horizontally inside bounds.
func PlaceTooltip(anchor Point, size Size, bounds Rect, gap float64) TooltipPlacement {
	x := anchor.X - size.Width/2
	minX := bounds.X
	maxX := bounds.X + bounds.Width - size.Width
	if maxX < minX {
		maxX = minX
	}
	x = math.Max(minX, math.Min(x, maxX))

	side := TooltipAbove
	y := anchor.Y - gap - size.Height
	if y < bounds.Y {
		side = TooltipBelow
		y = anchor.Y + gap
		if bottom := bounds.Y + bounds.Height; y+size.Height > bottom {
			y = math.Max(bounds.Y, bottom-size.Height)
		}
	}
	return TooltipPlacement{Position: Point{X: x, Y: y}, Side: side}
}
