package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BaseViewBox is the map library's reference frame for the whole world.
var BaseViewBox = ViewBox{X: 0, Y: 0, Width: 950, Height: 550}

var ErrInvalidViewBox = errors.New("invalid viewBox")

// ViewBox mirrors the SVG viewBox attribute.
type ViewBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ParseViewBox parses "x y w h" with whitespace and/or comma separators.
func ParseViewBox(s string) (ViewBox, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return ViewBox{}, fmt.Errorf("%w: expected 4 numbers, got %d", ErrInvalidViewBox, len(fields))
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil || !finite(n) {
			return ViewBox{}, fmt.Errorf("%w: %q is not a number", ErrInvalidViewBox, f)
		}
		v[i] = n
	}
	vb := ViewBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if vb.Width <= 0 || vb.Height <= 0 {
		return ViewBox{}, fmt.Errorf("%w: width and height must be positive", ErrInvalidViewBox)
	}
	return vb, nil
}

func (vb ViewBox) String() string {
	return strings.Join([]string{
		formatFloat(vb.X),
		formatFloat(vb.Y),
		formatFloat(vb.Width),
		formatFloat(vb.Height),
	}, " ")
}

func formatFloat(v float64) string {
	// Two decimals is plenty for SVG user units and keeps attribute diffs stable.
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func (vb ViewBox) Center() Point {
	return Point{X: vb.X + vb.Width/2, Y: vb.Y + vb.Height/2}
}

// Contains reports whether vb fully encloses other.
func (vb ViewBox) Contains(other ViewBox) bool {
	const eps = 1e-9
	return other.X >= vb.X-eps &&
		other.Y >= vb.Y-eps &&
		other.X+other.Width <= vb.X+vb.Width+eps &&
		other.Y+other.Height <= vb.Y+vb.Height+eps
}

// Project maps a coordinate into the viewBox with an equirectangular
// projection of the whole world onto the box.
func Project(ll LatLng, vb ViewBox) Point {
	return Point{
		X: vb.X + (ll.Longitude+180)/360*vb.Width,
		Y: vb.Y + (90-ll.Latitude)/180*vb.Height,
	}
}

// Unproject is the inverse of Project.
func Unproject(p Point, vb ViewBox) LatLng {
	if vb.Width == 0 || vb.Height == 0 {
		return InvalidLatLng()
	}
	return LatLng{
		Latitude:  90 - (p.Y-vb.Y)/vb.Height*180,
		Longitude: (p.X-vb.X)/vb.Width*360 - 180,
	}
}

// ZoomFactor is the ratio of the base width to the current width.
func ZoomFactor(vb ViewBox) float64 {
	if vb.Width <= 0 {
		return 1
	}
	return BaseViewBox.Width / vb.Width
}

// FitWorld returns the full-world viewBox for a container. The box keeps the
// container's aspect ratio, never shrinks below the base frame, and centres
// the base frame inside any extra space.
func FitWorld(container Size) ViewBox {
	vb := BaseViewBox
	if container.Width <= 0 || container.Height <= 0 {
		return vb
	}
	aspect := container.Width / container.Height
	baseAspect := BaseViewBox.Width / BaseViewBox.Height
	switch {
	case aspect > baseAspect:
		vb.Width = BaseViewBox.Height * aspect
		vb.X = BaseViewBox.X - (vb.Width-BaseViewBox.Width)/2
	case aspect < baseAspect:
		vb.Height = BaseViewBox.Width / aspect
		vb.Y = BaseViewBox.Y - (vb.Height-BaseViewBox.Height)/2
	}
	return vb
}

// ZoomAround scales vb by factor (>1 zooms in) keeping anchor fixed on screen.
func ZoomAround(vb ViewBox, factor float64, anchor Point) ViewBox {
	if factor <= 0 || !finite(factor) {
		return vb
	}
	w := vb.Width / factor
	h := vb.Height / factor
	rx := (anchor.X - vb.X) / vb.Width
	ry := (anchor.Y - vb.Y) / vb.Height
	return ViewBox{
		X:      anchor.X - rx*w,
		Y:      anchor.Y - ry*h,
		Width:  w,
		Height: h,
	}
}

// Lerp interpolates between two viewBoxes, t in [0,1].
func Lerp(a, b ViewBox, t float64) ViewBox {
	return ViewBox{
		X:      a.X + (b.X-a.X)*t,
		Y:      a.Y + (b.Y-a.Y)*t,
		Width:  a.Width + (b.Width-a.Width)*t,
		Height: a.Height + (b.Height-a.Height)*t,
	}
}

// EaseOutCubic is the easing curve used for focus animations.
func EaseOutCubic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u*u
}
