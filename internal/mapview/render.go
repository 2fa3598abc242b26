package mapview

import (
	"strings"

	"warroom/internal/geo"
	"warroom/internal/warroom"
)

const (
	routeCurvature = 0.2
	tooltipGap     = 14
)

var tooltipSize = geo.Size{Width: 220, Height: 96}

// Projector maps a coordinate into map user space (the base frame).
type Projector func(ll geo.LatLng) geo.Point

// BaseProjector is the manual equirectangular projection onto the base frame.
func BaseProjector(ll geo.LatLng) geo.Point {
	return geo.Project(ll, geo.BaseViewBox)
}

type Marker struct {
	ID            string         `json:"id"`
	Level         warroom.Level  `json:"level"`
	Name          string         `json:"name"`
	Company       string         `json:"company"`
	Status        warroom.Status `json:"status"`
	Logo          string         `json:"logo,omitempty"`
	Coordinates   geo.LatLng     `json:"coordinates"`
	Point         geo.Point      `json:"point"`
	Pixel         geo.Point      `json:"pixel"`
	LOD           PinState       `json:"lod"`
	Selected      bool           `json:"selected"`
	Hovered       bool           `json:"hovered"`
	Assets        int            `json:"assets"`
	Incidents     int            `json:"incidents"`
	SyncStability float64        `json:"syncStability"`
}

type Route struct {
	ID      string         `json:"id"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	FromRef string         `json:"fromRef"`
	ToRef   string         `json:"toRef"`
	Status  warroom.Status `json:"status,omitempty"`
	Label   string         `json:"label,omitempty"`
	Path    string         `json:"path"`
	Control geo.Point      `json:"control"`
}

type Tooltip struct {
	NodeID    string               `json:"nodeId"`
	Title     string               `json:"title"`
	Subtitle  string               `json:"subtitle,omitempty"`
	Status    warroom.Status       `json:"status"`
	Placement geo.TooltipPlacement `json:"placement"`
}

type ViewModel struct {
	Phase         Phase         `json:"phase"`
	Adapter       string        `json:"adapter,omitempty"`
	Mode          warroom.Level `json:"mode"`
	ViewBox       string        `json:"viewBox"`
	Box           geo.ViewBox   `json:"box"`
	Container     geo.Size      `json:"container"`
	Zoom          float64       `json:"zoom"`
	UserHasZoomed bool          `json:"userHasZoomed"`
	Markers       []Marker      `json:"markers"`
	Routes        []Route       `json:"routes"`
	Tooltip       *Tooltip      `json:"tooltip,omitempty"`
}

// Render builds the view-model for a state seen through vb in a container of
// the given size. Nodes without a usable position get no marker, and routes
// whose endpoints do not resolve to two distinct markers are left out.
func Render(st warroom.State, size geo.Size, vb geo.ViewBox, project Projector) ViewModel {
	if project == nil {
		project = BaseProjector
	}
	if size.Width <= 0 || size.Height <= 0 {
		size = geo.Size{Width: vb.Width, Height: vb.Height}
	}
	zoom := geo.ZoomFactor(vb)

	vm := ViewModel{
		Mode:      st.MapViewMode,
		ViewBox:   vb.String(),
		Box:       vb,
		Container: size,
		Zoom:      zoom,
		Markers:   []Marker{},
		Routes:    []Route{},
	}

	byID := make(map[string]int, len(st.Nodes))
	for _, n := range st.Nodes {
		if !n.Coordinates.Valid() {
			continue
		}
		p := project(n.Coordinates)
		selected := st.SelectedEntity.Matches(n)
		byID[n.ID] = len(vm.Markers)
		vm.Markers = append(vm.Markers, Marker{
			ID:            n.ID,
			Level:         n.Level,
			Name:          n.Name,
			Company:       n.Company,
			Status:        n.Status,
			Logo:          n.Logo,
			Coordinates:   n.Coordinates,
			Point:         p,
			Pixel:         toPixel(p, vb, size),
			LOD:           PinLOD(zoom, selected),
			Selected:      selected,
			Hovered:       st.HoveredEntity.Matches(n),
			Assets:        n.Assets,
			Incidents:     n.Incidents,
			SyncStability: n.SyncStability,
		})
	}

	for _, r := range st.TransitRoutes {
		from, ok := resolveEndpoint(r.From, st, st.Nodes)
		if !ok {
			continue
		}
		to, ok := resolveEndpoint(r.To, st, st.Nodes)
		if !ok || to.ID == from.ID {
			continue
		}
		fi, okF := byID[from.ID]
		ti, okT := byID[to.ID]
		if !okF || !okT {
			continue
		}
		path, ctrl := geo.CurvedPath(vm.Markers[fi].Pixel, vm.Markers[ti].Pixel, routeCurvature)
		vm.Routes = append(vm.Routes, Route{
			ID:      r.ID,
			From:    from.ID,
			To:      to.ID,
			FromRef: r.From,
			ToRef:   r.To,
			Status:  r.Status,
			Label:   r.Label,
			Path:    path,
			Control: ctrl,
		})
	}

	for _, m := range vm.Markers {
		if !m.Hovered {
			continue
		}
		vm.Tooltip = &Tooltip{
			NodeID:    m.ID,
			Title:     m.Name,
			Subtitle:  subtitle(m),
			Status:    m.Status,
			Placement: geo.PlaceTooltip(m.Pixel, tooltipSize, geo.Rect{Width: size.Width, Height: size.Height}, tooltipGap),
		}
		break
	}
	return vm
}

func subtitle(m Marker) string {
	if m.Company != "" && m.Company != m.Name {
		return m.Company
	}
	return strings.TrimSpace(string(m.Level))
}

// toPixel converts a user-space point into container pixels for vb.
func toPixel(p geo.Point, vb geo.ViewBox, size geo.Size) geo.Point {
	return geo.Point{
		X: (p.X - vb.X) / vb.Width * size.Width,
		Y: (p.Y - vb.Y) / vb.Height * size.Height,
	}
}

func toUser(px geo.Point, vb geo.ViewBox, size geo.Size) geo.Point {
	if size.Width <= 0 || size.Height <= 0 {
		return vb.Center()
	}
	return geo.Point{
		X: vb.X + px.X/size.Width*vb.Width,
		Y: vb.Y + px.Y/size.Height*vb.Height,
	}
}
