package mapview

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"warroom/internal/geo"
	"warroom/internal/snapshot"
	"warroom/internal/warroom"
)

func newFixtureStore(t *testing.T) *warroom.Store {
	t.Helper()
	s := warroom.New(warroom.Options{Logger: zerolog.Nop()})
	src := snapshot.NewFile(filepath.Join("..", "warroom", "testdata", "snapshot.json"))
	if !s.Initialize(context.Background(), src) {
		t.Fatalf("fixture snapshot did not load")
	}
	return s
}

func TestPinLOD(t *testing.T) {
	for _, z := range []float64{0.2, 0.8, 1, 1.19} {
		if got := PinLOD(z, false); !got.LogoOnly || got.Detail != DetailLogo {
			t.Fatalf("zoom %v: expected logo-only, got %+v", z, got)
		}
	}
	for _, z := range []float64{1.2, 2, 2.49} {
		if got := PinLOD(z, false); !got.Compact || got.LogoOnly || got.Full {
			t.Fatalf("zoom %v: expected compact, got %+v", z, got)
		}
	}
	for _, z := range []float64{2.5, 4, 12} {
		if got := PinLOD(z, false); !got.Full || !got.ShowLabel || !got.ShowHalo {
			t.Fatalf("zoom %v: expected full detail, got %+v", z, got)
		}
	}
	for _, z := range []float64{0.1, 1.5, 3, math.NaN()} {
		if got := PinLOD(z, true); !got.Full {
			t.Fatalf("selected pin at zoom %v should be full detail, got %+v", z, got)
		}
	}
}

type setFocusLib struct {
	calls []geo.LatLng
	err   error
}

func (l *setFocusLib) SetFocus(lat, lng, _ float64) error {
	l.calls = append(l.calls, geo.LatLng{Latitude: lat, Longitude: lng})
	return l.err
}

// FocusOn is ignored when SetFocus exists.
func (l *setFocusLib) FocusOn(float64, float64, float64) error { return errors.New("unexpected") }

type focusOnLib struct{ calls int }

func (l *focusOnLib) FocusOn(float64, float64, float64) error { l.calls++; return nil }

type centerLib struct{ center, zoom int }

func (l *centerLib) SetCenter(float64, float64) error { l.center++; return nil }

type centerZoomLib struct{ centerLib }

func (l *centerZoomLib) SetZoom(float64) error { l.zoom++; return nil }

type nestedLib struct{ inner any }

func (l nestedLib) InternalMap() any { return l.inner }

type sizedProjectingLib struct {
	pt      geo.Point
	err     error
	resized int
}

func (l *sizedProjectingLib) LatLngToPoint(float64, float64) (geo.Point, error) { return l.pt, l.err }
func (l *sizedProjectingLib) UpdateSize() error                                 { l.resized++; return nil }

func TestSelectAdapter_Tiers(t *testing.T) {
	cases := []struct {
		name string
		lib  any
		want string
	}{
		{"nil", nil, TierManual},
		{"set focus wins", &setFocusLib{}, TierSetFocus},
		{"focus on", &focusOnLib{}, TierFocusOn},
		{"center and zoom", &centerZoomLib{}, TierCenterZoom},
		{"center alone is not enough", &centerLib{}, TierManual},
		{"nested", nestedLib{inner: &focusOnLib{}}, "nested/" + TierFocusOn},
		{"nested without methods", nestedLib{inner: struct{}{}}, TierManual},
		{"opaque", struct{}{}, TierManual},
	}
	for _, tc := range cases {
		if got := selectAdapter(tc.lib).tier; got != tc.want {
			t.Fatalf("%s: expected tier %q, got %q", tc.name, tc.want, got)
		}
	}

	czl := &centerZoomLib{}
	a := selectAdapter(czl)
	if err := a.focus(geo.LatLng{Latitude: 1, Longitude: 2}, 3); err != nil {
		t.Fatalf("unexpected focus error: %v", err)
	}
	if czl.center != 1 || czl.zoom != 1 {
		t.Fatalf("expected SetCenter and SetZoom, got %+v", czl)
	}

	inner := &sizedProjectingLib{pt: geo.Point{X: 1, Y: 2}}
	a = selectAdapter(nestedLib{inner: inner})
	if a.updateSize == nil || a.project == nil {
		t.Fatalf("expected size and projection probed on the nested map")
	}
	if a.focus != nil {
		t.Fatalf("expected no focus capability")
	}
}

func TestResolveEndpoint(t *testing.T) {
	st := newFixtureStore(t).State()

	cases := map[string]string{
		"fleetzero":        "fleetzero",
		"ns-lulea":         "nordic",
		"nord-steel":       "nordic",
		"source-nord-auto": "nordic",
		"Pacific":          "pacific",
		"pacific group":    "pacific",
	}
	for ref, want := range cases {
		n, ok := resolveEndpoint(ref, st, st.Nodes)
		if !ok || n.ID != want {
			t.Fatalf("%q: expected %q, got %q ok=%v", ref, want, n.ID, ok)
		}
	}
	for _, ref := range []string{"", "ghost", "source-"} {
		if n, ok := resolveEndpoint(ref, st, st.Nodes); ok {
			t.Fatalf("%q: expected unresolved, got %q", ref, n.ID)
		}
	}

	factories := warroom.DeriveNodes(st.ParentGroups, warroom.LevelFactory, "")
	if n, ok := resolveEndpoint("fleetzero", st, factories); !ok || n.ID != "fz-hq" {
		t.Fatalf("expected sentinel to resolve to its factory, got %q ok=%v", n.ID, ok)
	}
	if n, ok := resolveEndpoint("source-ns-lulea", st, factories); !ok || n.ID != "ns-lulea" {
		t.Fatalf("expected stripped direct match, got %q ok=%v", n.ID, ok)
	}
}

func TestRender_MarkersRoutesTooltip(t *testing.T) {
	store := newFixtureStore(t)
	size := geo.Size{Width: 950, Height: 550}
	vm := Render(store.State(), size, geo.FitWorld(size), nil)

	if vm.ViewBox != "0 0 950 550" || vm.Zoom != 1 {
		t.Fatalf("unexpected frame %q zoom=%v", vm.ViewBox, vm.Zoom)
	}
	if len(vm.Markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(vm.Markers))
	}
	for _, m := range vm.Markers {
		if !m.LOD.LogoOnly {
			t.Fatalf("expected logo-only pins at world zoom, got %+v", m.LOD)
		}
		want := geo.Project(m.Coordinates, geo.BaseViewBox)
		if m.Point != want || math.Abs(m.Pixel.X-want.X) > 1e-9 || math.Abs(m.Pixel.Y-want.Y) > 1e-9 {
			t.Fatalf("%s: expected point %+v, got point=%+v pixel=%+v", m.ID, want, m.Point, m.Pixel)
		}
	}

	if len(vm.Routes) != 2 {
		t.Fatalf("expected 2 resolvable routes, got %+v", vm.Routes)
	}
	if r := vm.Routes[0]; r.ID != "r1" || r.From != "fleetzero" || r.To != "nordic" || !strings.HasPrefix(r.Path, "M ") {
		t.Fatalf("unexpected first route %+v", r)
	}
	if r := vm.Routes[1]; r.ID != "r2" || r.From != "nordic" || r.To != "pacific" || r.FromRef != "source-nord-auto" {
		t.Fatalf("unexpected second route %+v", r)
	}
	if vm.Tooltip != nil {
		t.Fatalf("expected no tooltip without hover")
	}

	if err := store.Hover(warroom.Selection{Level: warroom.LevelParent, ID: "nordic"}); err != nil {
		t.Fatalf("hover: %v", err)
	}
	if err := store.Select(warroom.Selection{Level: warroom.LevelParent, ID: "pacific"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	vm = Render(store.State(), size, geo.FitWorld(size), nil)
	if vm.Tooltip == nil || vm.Tooltip.NodeID != "nordic" || vm.Tooltip.Title != "Nordic Holdings" {
		t.Fatalf("unexpected tooltip %+v", vm.Tooltip)
	}
	for _, m := range vm.Markers {
		if m.ID == "pacific" && (!m.Selected || !m.LOD.Full) {
			t.Fatalf("selected marker should be full detail, got %+v", m)
		}
	}
}

func TestRender_ZoomedViewMovesPixelsNotPoints(t *testing.T) {
	st := newFixtureStore(t).State()
	size := geo.Size{Width: 950, Height: 550}
	vb := geo.ViewBox{X: 100, Y: 50, Width: 475, Height: 275}
	vm := Render(st, size, vb, nil)
	if vm.Zoom != 2 {
		t.Fatalf("expected zoom 2, got %v", vm.Zoom)
	}
	for _, m := range vm.Markers {
		want := geo.Point{X: (m.Point.X - 100) * 2, Y: (m.Point.Y - 50) * 2}
		if math.Abs(m.Pixel.X-want.X) > 1e-9 || math.Abs(m.Pixel.Y-want.Y) > 1e-9 {
			t.Fatalf("%s: expected pixel %+v, got %+v", m.ID, want, m.Pixel)
		}
		if !m.LOD.Compact {
			t.Fatalf("expected compact pins at 2x, got %+v", m.LOD)
		}
	}
}

func TestRetryBackoff(t *testing.T) {
	base := 50 * time.Millisecond
	if got := retryBackoff(base, 0); got != base {
		t.Fatalf("expected base delay, got %v", got)
	}
	if got := retryBackoff(base, 2); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms, got %v", got)
	}
	if got := retryBackoff(base, 50); got != 1600*time.Millisecond {
		t.Fatalf("expected capped doubling, got %v", got)
	}
	if got := retryBackoff(time.Second, 5); got != 2*time.Second {
		t.Fatalf("expected 2s cap, got %v", got)
	}
}
