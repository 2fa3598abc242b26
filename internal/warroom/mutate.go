package warroom

import (
	"fmt"
	"math"
	"strings"

	"warroom/internal/geo"
	"warroom/internal/naming"
)

func (s *Store) newID(st *State, requested, name, kind string) (string, error) {
	id := strings.TrimSpace(requested)
	if id == "" {
		id = naming.GenerateID(name, kind, s.now())
	}
	if idTaken(st.ParentGroups, id) {
		return "", fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	return id, nil
}

func requireName(name, kind string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", ErrInvalidInput, kind)
	}
	return name, nil
}

func (s *Store) AddParentGroup(in ParentGroupInput) (ParentGroup, error) {
	var out ParentGroup
	err := s.update("add_parent_group", func(st *State) error {
		name, err := requireName(in.Name, "parent group")
		if err != nil {
			return err
		}
		id, err := s.newID(st, in.ID, name, "group")
		if err != nil {
			return err
		}
		out = ParentGroup{
			ID:           id,
			Name:         name,
			Status:       statusOr(in.Status, StatusActive),
			Logo:         in.Logo,
			Description:  in.Description,
			Subsidiaries: []SubsidiaryCompany{},
		}
		st.ParentGroups = with(st.ParentGroups, out)
		return nil
	})
	return out, err
}

func (s *Store) AddSubsidiary(parentGroupID string, in SubsidiaryInput) (SubsidiaryCompany, error) {
	var out SubsidiaryCompany
	err := s.update("add_subsidiary", func(st *State) error {
		gi, ok := locateGroup(st.ParentGroups, parentGroupID)
		if !ok {
			return fmt.Errorf("%w: parent group %q", ErrNotFound, parentGroupID)
		}
		name, err := requireName(in.Name, "subsidiary")
		if err != nil {
			return err
		}
		id, err := s.newID(st, in.ID, name, "subsidiary")
		if err != nil {
			return err
		}
		out = SubsidiaryCompany{
			ID:            id,
			ParentGroupID: parentGroupID,
			Name:          name,
			Location:      strings.TrimSpace(in.Location),
			Description:   in.Description,
			Status:        statusOr(in.Status, StatusActive),
			Logo:          in.Logo,
			Hubs:          normalizeHubs(in.Hubs),
			Factories:     []FactoryLocation{},
		}
		st.ParentGroups = setSubsidiaries(st.ParentGroups, gi, with(st.ParentGroups[gi].Subsidiaries, out))
		return nil
	})
	return out, err
}

func (s *Store) UpdateSubsidiary(id string, patch SubsidiaryPatch) (SubsidiaryCompany, error) {
	var out SubsidiaryCompany
	err := s.update("update_subsidiary", func(st *State) error {
		gi, si, ok := locateSubsidiary(st.ParentGroups, id)
		if !ok {
			return fmt.Errorf("%w: subsidiary %q", ErrNotFound, id)
		}
		sub := st.ParentGroups[gi].Subsidiaries[si]
		if patch.Name != nil {
			name, err := requireName(*patch.Name, "subsidiary")
			if err != nil {
				return err
			}
			sub.Name = name
		}
		if patch.Location != nil {
			sub.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.Description != nil {
			sub.Description = *patch.Description
		}
		if patch.Status != nil {
			sub.Status = statusOr(*patch.Status, sub.Status)
		}
		if patch.Logo != nil {
			sub.Logo = *patch.Logo
		}
		if patch.Hubs != nil {
			sub.Hubs = normalizeHubs(*patch.Hubs)
		}
		st.ParentGroups = setSubsidiary(st.ParentGroups, gi, si, sub)
		out = st.ParentGroups[gi].Subsidiaries[si]
		return nil
	})
	return out, err
}

// DeleteSubsidiary removes the subsidiary with its factories, prunes their
// activity logs and moves a selection inside it up to the parent group.
func (s *Store) DeleteSubsidiary(id string) error {
	return s.update("delete_subsidiary", func(st *State) error {
		gi, si, ok := locateSubsidiary(st.ParentGroups, id)
		if !ok {
			return fmt.Errorf("%w: subsidiary %q", ErrNotFound, id)
		}
		g := st.ParentGroups[gi]
		sub := g.Subsidiaries[si]

		gone := map[string]struct{}{sub.ID: {}}
		for _, f := range sub.Factories {
			gone[f.ID] = struct{}{}
		}
		st.ActivityLogs = pruneLogs(st.ActivityLogs, func(l ActivityLog) bool {
			if _, ok := gone[l.FactoryID]; ok {
				return true
			}
			return l.SubsidiaryID == sub.ID
		})

		st.ParentGroups = setSubsidiaries(st.ParentGroups, gi, without(g.Subsidiaries, si))

		if sel := st.SelectedEntity; sel != nil && (sel.ID == sub.ID || sel.SubsidiaryID == sub.ID) {
			st.SelectedEntity = NormalizeSelection(st.ParentGroups, &Selection{Level: LevelParent, ID: g.ID})
			st.MapViewMode = LevelParent
			st.SubsidiaryFilter = ""
		}
		st.SelectedEntity = NormalizeSelection(st.ParentGroups, st.SelectedEntity)
		st.HoveredEntity = NormalizeSelection(st.ParentGroups, st.HoveredEntity)
		if st.SubsidiaryFilter == sub.ID {
			st.SubsidiaryFilter = ""
		}
		if _, ok := gone[st.lastFactoryID]; ok {
			st.lastFactoryID = ""
		}
		return nil
	})
}

func (s *Store) AddFactory(subsidiaryID string, in FactoryInput) (FactoryLocation, error) {
	var out FactoryLocation
	err := s.update("add_factory", func(st *State) error {
		gi, si, ok := locateSubsidiary(st.ParentGroups, subsidiaryID)
		if !ok {
			return fmt.Errorf("%w: subsidiary %q", ErrNotFound, subsidiaryID)
		}
		name, err := requireName(in.Name, "factory")
		if err != nil {
			return err
		}
		if err := validateFactoryNumbers(in.Coordinates, in.Assets, in.Incidents, in.SyncStability); err != nil {
			return err
		}
		id, err := s.newID(st, in.ID, name, "factory")
		if err != nil {
			return err
		}
		sub := st.ParentGroups[gi].Subsidiaries[si]
		out = FactoryLocation{
			ID:            id,
			ParentGroupID: st.ParentGroups[gi].ID,
			SubsidiaryID:  sub.ID,
			Name:          name,
			City:          strings.TrimSpace(in.City),
			Country:       strings.TrimSpace(in.Country),
			Coordinates:   in.Coordinates,
			Assets:        in.Assets,
			Incidents:     in.Incidents,
			SyncStability: in.SyncStability,
			Status:        statusOr(in.Status, StatusOnline),
			Description:   in.Description,
			Logo:          in.Logo,
		}
		st.ParentGroups = setFactories(st.ParentGroups, gi, si, with(sub.Factories, out))
		return nil
	})
	return out, err
}

func (s *Store) UpdateFactory(id string, patch FactoryPatch) (FactoryLocation, error) {
	var out FactoryLocation
	err := s.update("update_factory", func(st *State) error {
		gi, si, fi, ok := locateFactory(st.ParentGroups, id)
		if !ok {
			return fmt.Errorf("%w: factory %q", ErrNotFound, id)
		}
		f := st.ParentGroups[gi].Subsidiaries[si].Factories[fi]
		if patch.Name != nil {
			name, err := requireName(*patch.Name, "factory")
			if err != nil {
				return err
			}
			f.Name = name
		}
		if patch.City != nil {
			f.City = strings.TrimSpace(*patch.City)
		}
		if patch.Country != nil {
			f.Country = strings.TrimSpace(*patch.Country)
		}
		if patch.Coordinates != nil {
			f.Coordinates = *patch.Coordinates
		}
		if patch.Assets != nil {
			f.Assets = *patch.Assets
		}
		if patch.Incidents != nil {
			f.Incidents = *patch.Incidents
		}
		if patch.SyncStability != nil {
			f.SyncStability = *patch.SyncStability
		}
		if patch.Status != nil {
			f.Status = statusOr(*patch.Status, f.Status)
		}
		if patch.Description != nil {
			f.Description = *patch.Description
		}
		if patch.Logo != nil {
			f.Logo = *patch.Logo
		}
		if err := validateFactoryNumbers(f.Coordinates, f.Assets, f.Incidents, f.SyncStability); err != nil {
			return err
		}
		st.ParentGroups = setFactory(st.ParentGroups, gi, si, fi, f)
		out = f
		return nil
	})
	return out, err
}

// DeleteFactory removes the factory, prunes its activity logs and moves a
// selection on it up to its subsidiary.
func (s *Store) DeleteFactory(id string) error {
	return s.update("delete_factory", func(st *State) error {
		gi, si, fi, ok := locateFactory(st.ParentGroups, id)
		if !ok {
			return fmt.Errorf("%w: factory %q", ErrNotFound, id)
		}
		sub := st.ParentGroups[gi].Subsidiaries[si]
		st.ActivityLogs = pruneLogs(st.ActivityLogs, func(l ActivityLog) bool { return l.FactoryID == id })
		st.ParentGroups = setFactories(st.ParentGroups, gi, si, without(sub.Factories, fi))

		if sel := st.SelectedEntity; sel != nil && sel.Level == LevelFactory && sel.ID == id {
			st.SelectedEntity = NormalizeSelection(st.ParentGroups, &Selection{Level: LevelSubsidiary, ID: sub.ID})
			if st.SelectedEntity != nil {
				st.MapViewMode = LevelSubsidiary
			}
		}
		st.SelectedEntity = NormalizeSelection(st.ParentGroups, st.SelectedEntity)
		st.HoveredEntity = NormalizeSelection(st.ParentGroups, st.HoveredEntity)
		if st.lastFactoryID == id {
			st.lastFactoryID = ""
		}
		return nil
	})
}

func (s *Store) UpdateHubStatus(subsidiaryID, code string, status Status) error {
	return s.update("update_hub_status", func(st *State) error {
		gi, si, ok := locateSubsidiary(st.ParentGroups, subsidiaryID)
		if !ok {
			return fmt.Errorf("%w: subsidiary %q", ErrNotFound, subsidiaryID)
		}
		if NormalizeStatus(status) == "" {
			return fmt.Errorf("%w: hub status is required", ErrInvalidInput)
		}
		sub := st.ParentGroups[gi].Subsidiaries[si]
		code = strings.TrimSpace(code)
		idx := -1
		for i, h := range sub.Hubs {
			if strings.EqualFold(h.Code, code) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: hub %q on subsidiary %q", ErrNotFound, code, subsidiaryID)
		}
		hubs := make([]Hub, len(sub.Hubs))
		copy(hubs, sub.Hubs)
		hubs[idx].Status = NormalizeStatus(status)
		sub.Hubs = hubs
		st.ParentGroups = setSubsidiary(st.ParentGroups, gi, si, sub)
		return nil
	})
}

func (s *Store) UpdateNetworkMetrics(patch NetworkMetricsPatch) (NetworkMetrics, error) {
	var out NetworkMetrics
	err := s.update("update_network_metrics", func(st *State) error {
		m := st.NetworkMetrics
		if patch.DataFlowIntegrity != nil {
			m.DataFlowIntegrity = *patch.DataFlowIntegrity
		}
		if patch.FleetSyncRate != nil {
			m.FleetSyncRate = *patch.FleetSyncRate
		}
		if patch.NetworkLatency != nil {
			m.NetworkLatency = *patch.NetworkLatency
		}
		if patch.NodeDensity != nil {
			m.NodeDensity = *patch.NodeDensity
		}
		if patch.EncryptionProtocol != nil {
			m.EncryptionProtocol = *patch.EncryptionProtocol
		}
		if patch.EncryptionStatus != nil {
			m.EncryptionStatus = *patch.EncryptionStatus
		}
		st.NetworkMetrics = m
		out = m
		return nil
	})
	return out, err
}

func (s *Store) UpdateNetworkThroughput(patch NetworkThroughputPatch) (NetworkThroughput, error) {
	var out NetworkThroughput
	err := s.update("update_network_throughput", func(st *State) error {
		t := st.NetworkThroughput
		if patch.Labels != nil {
			t.Labels = append([]string{}, (*patch.Labels)...)
		}
		if patch.Values != nil {
			t.Values = append([]float64{}, (*patch.Values)...)
		}
		if patch.MaxValue != nil {
			t.MaxValue = *patch.MaxValue
		}
		if patch.Unit != nil {
			t.Unit = *patch.Unit
		}
		if len(t.Labels) != len(t.Values) {
			return fmt.Errorf("%w: %d labels for %d values", ErrInvalidInput, len(t.Labels), len(t.Values))
		}
		st.NetworkThroughput = t
		out = t
		return nil
	})
	return out, err
}

// ReplaceTransitRoutes swaps the whole route list.
func (s *Store) ReplaceTransitRoutes(routes []TransitRoute) error {
	return s.update("replace_transit_routes", func(st *State) error {
		out := make([]TransitRoute, 0, len(routes))
		for _, r := range routes {
			if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == "" {
				return fmt.Errorf("%w: transit routes need id, from and to", ErrInvalidInput)
			}
			out = append(out, r)
		}
		st.TransitRoutes = out
		return nil
	})
}

func (s *Store) UpdateSatelliteStatus(id string, patch SatelliteStatusPatch) (SatelliteStatus, error) {
	var out SatelliteStatus
	err := s.update("update_satellite_status", func(st *State) error {
		idx := -1
		for i, sat := range st.SatelliteStatuses {
			if sat.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: satellite %q", ErrNotFound, id)
		}
		sats := make([]SatelliteStatus, len(st.SatelliteStatuses))
		copy(sats, st.SatelliteStatuses)
		sat := sats[idx]
		if patch.Status != nil {
			sat.Status = statusOr(*patch.Status, sat.Status)
		}
		if patch.Signal != nil {
			sat.Signal = *patch.Signal
		}
		if patch.LastContact != nil {
			sat.LastContact = *patch.LastContact
		}
		sats[idx] = sat
		st.SatelliteStatuses = sats
		out = sat
		return nil
	})
	return out, err
}

func validateFactoryNumbers(c geo.LatLng, assets, incidents int, sync float64) error {
	if !math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude) {
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			return fmt.Errorf("%w: (%v, %v)", ErrCoordinateRange, c.Latitude, c.Longitude)
		}
	}
	if assets < 0 || incidents < 0 {
		return fmt.Errorf("%w: assets and incidents must not be negative", ErrInvalidInput)
	}
	if math.IsNaN(sync) || sync < 0 || sync > 100 {
		return fmt.Errorf("%w: syncStability must be within 0..100", ErrInvalidInput)
	}
	return nil
}

func normalizeHubs(hubs []Hub) []Hub {
	out := make([]Hub, 0, len(hubs))
	for _, h := range hubs {
		code := strings.TrimSpace(h.Code)
		if code == "" {
			continue
		}
		out = append(out, Hub{Code: code, Status: statusOr(h.Status, StatusOnline)})
	}
	return out
}

func pruneLogs(logs []ActivityLog, drop func(ActivityLog) bool) []ActivityLog {
	out := make([]ActivityLog, 0, len(logs))
	for _, l := range logs {
		if !drop(l) {
			out = append(out, l)
		}
	}
	return out
}
