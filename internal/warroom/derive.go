package warroom

import (
	"math"

	"warroom/internal/geo"
)

func aggregateFactories(factories []FactoryLocation) Metrics {
	var m Metrics
	var weighted, weights float64
	for _, f := range factories {
		m.AssetCount += f.Assets
		m.IncidentCount += f.Incidents
		w := math.Max(float64(f.Assets), 1)
		weighted += f.SyncStability * w
		weights += w
	}
	if weights > 0 {
		m.SyncStability = round1(weighted / weights)
	}
	return m
}

func aggregateSubsidiaries(subs []SubsidiaryCompany) Metrics {
	var m Metrics
	var weighted, weights float64
	for _, s := range subs {
		m.AssetCount += s.Metrics.AssetCount
		m.IncidentCount += s.Metrics.IncidentCount
		w := math.Max(float64(s.Metrics.AssetCount), 1)
		weighted += s.Metrics.SyncStability * w
		weights += w
	}
	if weights > 0 {
		m.SyncStability = round1(weighted / weights)
	}
	return m
}

// recomputeAll rebuilds every aggregate bottom-up. Used after bulk loads.
func recomputeAll(groups []ParentGroup) {
	for gi := range groups {
		for si := range groups[gi].Subsidiaries {
			sub := &groups[gi].Subsidiaries[si]
			sub.Metrics = aggregateFactories(sub.Factories)
		}
		groups[gi].Metrics = aggregateSubsidiaries(groups[gi].Subsidiaries)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func factoryCentroid(factories []FactoryLocation) geo.LatLng {
	pts := make([]geo.Weighted, 0, len(factories))
	for _, f := range factories {
		pts = append(pts, geo.Weighted{LatLng: f.Coordinates, Weight: float64(f.Assets)})
	}
	return geo.Centroid(pts)
}

// GroupCenter is the asset-weighted centroid of every factory in the group.
func GroupCenter(g ParentGroup) geo.LatLng {
	var all []FactoryLocation
	for _, s := range g.Subsidiaries {
		all = append(all, s.Factories...)
	}
	return factoryCentroid(all)
}

// SubsidiaryCenter is the asset-weighted centroid of the subsidiary's factories.
func SubsidiaryCenter(s SubsidiaryCompany) geo.LatLng {
	return factoryCentroid(s.Factories)
}

func isSentinel(ids ...string) bool {
	for _, id := range ids {
		if id == SentinelID {
			return true
		}
	}
	return false
}

// DeriveNodes projects the hierarchy onto the given level. With a subsidiary
// filter, subsidiary and factory modes list the factories of that subsidiary
// plus anything tagged with SentinelID.
func DeriveNodes(groups []ParentGroup, mode Level, subsidiaryFilter string) []Node {
	nodes := make([]Node, 0)
	switch mode {
	case LevelSubsidiary:
		if subsidiaryFilter == "" {
			for _, g := range groups {
				for _, s := range g.Subsidiaries {
					nodes = append(nodes, subsidiaryNode(g, s))
				}
			}
			return nodes
		}
		for _, g := range groups {
			for _, s := range g.Subsidiaries {
				if s.ID == subsidiaryFilter {
					for _, f := range s.Factories {
						nodes = append(nodes, factoryNode(g, s, f))
					}
					continue
				}
				if isSentinel(s.ID, s.ParentGroupID, g.ID) {
					nodes = append(nodes, subsidiaryNode(g, s))
				}
			}
		}
	case LevelFactory:
		for _, g := range groups {
			for _, s := range g.Subsidiaries {
				for _, f := range s.Factories {
					if subsidiaryFilter == "" || s.ID == subsidiaryFilter || isSentinel(f.ID, s.ID, g.ID) {
						nodes = append(nodes, factoryNode(g, s, f))
					}
				}
			}
		}
	default:
		for _, g := range groups {
			nodes = append(nodes, parentNode(g))
		}
	}
	return nodes
}

func parentNode(g ParentGroup) Node {
	return Node{
		ID:            g.ID,
		Level:         LevelParent,
		Name:          g.Name,
		Company:       g.Name,
		Coordinates:   GroupCenter(g),
		Status:        g.Status,
		Logo:          g.Logo,
		Assets:        g.Metrics.AssetCount,
		Incidents:     g.Metrics.IncidentCount,
		SyncStability: g.Metrics.SyncStability,
		ParentGroupID: g.ID,
	}
}

func subsidiaryNode(g ParentGroup, s SubsidiaryCompany) Node {
	n := Node{
		ID:            s.ID,
		Level:         LevelSubsidiary,
		Name:          s.Name,
		Company:       g.Name,
		Coordinates:   SubsidiaryCenter(s),
		Status:        s.Status,
		Logo:          s.Logo,
		Assets:        s.Metrics.AssetCount,
		Incidents:     s.Metrics.IncidentCount,
		SyncStability: s.Metrics.SyncStability,
		ParentGroupID: g.ID,
		SubsidiaryID:  s.ID,
	}
	if n.Logo == "" {
		n.Logo = g.Logo
	}
	if len(s.Factories) > 0 {
		n.City = s.Factories[0].City
		n.Country = s.Factories[0].Country
	}
	return n
}

func factoryNode(g ParentGroup, s SubsidiaryCompany, f FactoryLocation) Node {
	n := Node{
		ID:            f.ID,
		Level:         LevelFactory,
		Name:          f.Name,
		Company:       s.Name,
		City:          f.City,
		Country:       f.Country,
		Coordinates:   f.Coordinates,
		Status:        f.Status,
		Logo:          f.Logo,
		Assets:        f.Assets,
		Incidents:     f.Incidents,
		SyncStability: f.SyncStability,
		ParentGroupID: g.ID,
		SubsidiaryID:  s.ID,
		FactoryID:     f.ID,
	}
	if !n.Coordinates.Valid() {
		n.Coordinates = geo.InvalidLatLng()
	}
	if n.Logo == "" {
		n.Logo = s.Logo
	}
	if n.Logo == "" {
		n.Logo = g.Logo
	}
	return n
}
