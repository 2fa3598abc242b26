package warroom

// State is an immutable snapshot of the store. Slices are shared between
// snapshots and must not be modified by readers; the store replaces them
// copy-on-write at the mutated level and at every ancestor.
type State struct {
	ParentGroups        []ParentGroup       `json:"parentGroups"`
	Nodes               []Node              `json:"nodes"`
	ActivityLogs        []ActivityLog       `json:"activityLogs"`
	TransitRoutes       []TransitRoute      `json:"transitRoutes"`
	NetworkMetrics      NetworkMetrics      `json:"networkMetrics"`
	NetworkThroughput   NetworkThroughput   `json:"networkThroughput"`
	GeopoliticalHeatmap GeopoliticalHeatmap `json:"geopoliticalHeatmap"`
	SatelliteStatuses   []SatelliteStatus   `json:"satelliteStatuses"`
	MapViewMode         Level               `json:"mapViewMode"`
	SubsidiaryFilter    string              `json:"subsidiaryFilter,omitempty"`
	SelectedEntity      *Selection          `json:"selectedEntity"`
	HoveredEntity       *Selection          `json:"hoveredEntity"`

	// last factory explicitly selected; used when drilling into factory mode
	lastFactoryID string
}

// EmptyState is the well-defined fallback when no snapshot can be loaded.
func EmptyState() State {
	return State{
		ParentGroups:      []ParentGroup{},
		Nodes:             []Node{},
		ActivityLogs:      []ActivityLog{},
		TransitRoutes:     []TransitRoute{},
		NetworkThroughput: NetworkThroughput{Labels: []string{}, Values: []float64{}},
		GeopoliticalHeatmap: GeopoliticalHeatmap{
			Grid: [][]float64{},
		},
		SatelliteStatuses: []SatelliteStatus{},
		MapViewMode:       LevelParent,
	}
}

// Subsidiaries flattens the hierarchy in order.
func (s State) Subsidiaries() []SubsidiaryCompany {
	var out []SubsidiaryCompany
	for _, g := range s.ParentGroups {
		out = append(out, g.Subsidiaries...)
	}
	return out
}

// Factories flattens the hierarchy in order.
func (s State) Factories() []FactoryLocation {
	var out []FactoryLocation
	for _, g := range s.ParentGroups {
		for _, sub := range g.Subsidiaries {
			out = append(out, sub.Factories...)
		}
	}
	return out
}

func (s State) ParentGroup(id string) (ParentGroup, bool) {
	gi, ok := locateGroup(s.ParentGroups, id)
	if !ok {
		return ParentGroup{}, false
	}
	return s.ParentGroups[gi], true
}

func (s State) Subsidiary(id string) (SubsidiaryCompany, bool) {
	gi, si, ok := locateSubsidiary(s.ParentGroups, id)
	if !ok {
		return SubsidiaryCompany{}, false
	}
	return s.ParentGroups[gi].Subsidiaries[si], true
}

func (s State) Factory(id string) (FactoryLocation, bool) {
	gi, si, fi, ok := locateFactory(s.ParentGroups, id)
	if !ok {
		return FactoryLocation{}, false
	}
	return s.ParentGroups[gi].Subsidiaries[si].Factories[fi], true
}

func locateGroup(groups []ParentGroup, id string) (int, bool) {
	if id == "" {
		return -1, false
	}
	for i := range groups {
		if groups[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func locateSubsidiary(groups []ParentGroup, id string) (int, int, bool) {
	if id == "" {
		return -1, -1, false
	}
	for gi := range groups {
		for si := range groups[gi].Subsidiaries {
			if groups[gi].Subsidiaries[si].ID == id {
				return gi, si, true
			}
		}
	}
	return -1, -1, false
}

func locateFactory(groups []ParentGroup, id string) (int, int, int, bool) {
	if id == "" {
		return -1, -1, -1, false
	}
	for gi := range groups {
		for si := range groups[gi].Subsidiaries {
			for fi := range groups[gi].Subsidiaries[si].Factories {
				if groups[gi].Subsidiaries[si].Factories[fi].ID == id {
					return gi, si, fi, true
				}
			}
		}
	}
	return -1, -1, -1, false
}

// idTaken reports whether any entity in the hierarchy already uses id.
func idTaken(groups []ParentGroup, id string) bool {
	if _, ok := locateGroup(groups, id); ok {
		return true
	}
	if _, _, ok := locateSubsidiary(groups, id); ok {
		return true
	}
	_, _, _, ok := locateFactory(groups, id)
	return ok
}

// The set* helpers below never touch the slices they were given: each level
// on the path is cloned and the aggregates on it recomputed.

func setGroup(groups []ParentGroup, gi int, g ParentGroup) []ParentGroup {
	out := make([]ParentGroup, len(groups))
	copy(out, groups)
	g.Metrics = aggregateSubsidiaries(g.Subsidiaries)
	out[gi] = g
	return out
}

func setSubsidiaries(groups []ParentGroup, gi int, subs []SubsidiaryCompany) []ParentGroup {
	g := groups[gi]
	g.Subsidiaries = subs
	return setGroup(groups, gi, g)
}

func setSubsidiary(groups []ParentGroup, gi, si int, sub SubsidiaryCompany) []ParentGroup {
	subs := make([]SubsidiaryCompany, len(groups[gi].Subsidiaries))
	copy(subs, groups[gi].Subsidiaries)
	sub.Metrics = aggregateFactories(sub.Factories)
	subs[si] = sub
	return setSubsidiaries(groups, gi, subs)
}

func setFactories(groups []ParentGroup, gi, si int, factories []FactoryLocation) []ParentGroup {
	sub := groups[gi].Subsidiaries[si]
	sub.Factories = factories
	return setSubsidiary(groups, gi, si, sub)
}

func setFactory(groups []ParentGroup, gi, si, fi int, f FactoryLocation) []ParentGroup {
	src := groups[gi].Subsidiaries[si].Factories
	fs := make([]FactoryLocation, len(src))
	copy(fs, src)
	fs[fi] = f
	return setFactories(groups, gi, si, fs)
}

func without[T any](in []T, i int) []T {
	out := make([]T, 0, len(in)-1)
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}

func with[T any](in []T, v T) []T {
	out := make([]T, 0, len(in)+1)
	out = append(out, in...)
	return append(out, v)
}
