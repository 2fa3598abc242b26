package mapview

import (
	"warroom/internal/geo"
)

// The map widget is handed over as an opaque value. These are the methods it
// may or may not implement; the component probes for them once at init.

type FocusSetter interface {
	SetFocus(lat, lng, scale float64) error
}

type FocusOner interface {
	FocusOn(lat, lng, scale float64) error
}

type CenterSetter interface {
	SetCenter(lat, lng float64) error
}

type ZoomSetter interface {
	SetZoom(scale float64) error
}

type SizeUpdater interface {
	UpdateSize() error
}

type PointProjector interface {
	LatLngToPoint(lat, lng float64) (geo.Point, error)
}

// InternalMapper exposes a nested map object. Some widget builds only put
// the focus and size methods on that inner object.
type InternalMapper interface {
	InternalMap() any
}

// Adapter tiers, in probe order.
const (
	TierSetFocus   = "set-focus"
	TierFocusOn    = "focus-on"
	TierCenterZoom = "center-zoom"
	TierManual     = "manual"

	nestedPrefix = "nested/"
)

type adapter struct {
	tier       string
	focus      func(ll geo.LatLng, scale float64) error
	updateSize func() error
	project    func(ll geo.LatLng) (geo.Point, error)
}

// selectAdapter picks the richest capability the widget offers. Focus,
// size and projection are probed independently, each on the widget first and
// then on its nested map object.
func selectAdapter(lib any) adapter {
	a := adapter{tier: TierManual}
	if lib == nil {
		return a
	}

	var inner any
	if m, ok := lib.(InternalMapper); ok {
		inner = m.InternalMap()
	}

	if tier, fn, ok := probeFocus(lib); ok {
		a.tier, a.focus = tier, fn
	} else if tier, fn, ok := probeFocus(inner); ok {
		a.tier, a.focus = nestedPrefix+tier, fn
	}

	for _, v := range []any{lib, inner} {
		if u, ok := v.(SizeUpdater); ok {
			a.updateSize = u.UpdateSize
			break
		}
	}
	for _, v := range []any{lib, inner} {
		if p, ok := v.(PointProjector); ok {
			a.project = func(ll geo.LatLng) (geo.Point, error) {
				return p.LatLngToPoint(ll.Latitude, ll.Longitude)
			}
			break
		}
	}
	return a
}

func probeFocus(v any) (string, func(geo.LatLng, float64) error, bool) {
	if v == nil {
		return "", nil, false
	}
	if f, ok := v.(FocusSetter); ok {
		return TierSetFocus, func(ll geo.LatLng, scale float64) error {
			return f.SetFocus(ll.Latitude, ll.Longitude, scale)
		}, true
	}
	if f, ok := v.(FocusOner); ok {
		return TierFocusOn, func(ll geo.LatLng, scale float64) error {
			return f.FocusOn(ll.Latitude, ll.Longitude, scale)
		}, true
	}
	c, okC := v.(CenterSetter)
	z, okZ := v.(ZoomSetter)
	if okC && okZ {
		return TierCenterZoom, func(ll geo.LatLng, scale float64) error {
			if err := c.SetCenter(ll.Latitude, ll.Longitude); err != nil {
				return err
			}
			return z.SetZoom(scale)
		}, true
	}
	return "", nil, false
}
