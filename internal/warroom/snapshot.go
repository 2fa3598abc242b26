package warroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SnapshotSource yields the raw snapshot document.
type SnapshotSource interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

type snapshotDocument struct {
	ParentGroups        json.RawMessage `json:"parentGroups"`
	Nodes               json.RawMessage `json:"nodes"`
	ActivityLogs        json.RawMessage `json:"activityLogs"`
	TransitRoutes       json.RawMessage `json:"transitRoutes"`
	NetworkMetrics      json.RawMessage `json:"networkMetrics"`
	NetworkThroughput   json.RawMessage `json:"networkThroughput"`
	GeopoliticalHeatmap json.RawMessage `json:"geopoliticalHeatmap"`
	SatelliteStatuses   json.RawMessage `json:"satelliteStatuses"`
	MapViewMode         string          `json:"mapViewMode"`
	SelectedEntity      *Selection      `json:"selectedEntity"`
}

func isJSONArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}

func isJSONObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}

// DecodeSnapshot validates the shape of a snapshot document and builds a
// consistent State from it. Entities with dangling or conflicting ancestor
// references are dropped; aggregates are recomputed.
func DecodeSnapshot(b []byte) (State, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var missing []string
	for name, raw := range map[string]json.RawMessage{
		"parentGroups":  doc.ParentGroups,
		"nodes":         doc.Nodes,
		"activityLogs":  doc.ActivityLogs,
		"transitRoutes": doc.TransitRoutes,
	} {
		if !isJSONArray(raw) {
			missing = append(missing, name)
		}
	}
	for name, raw := range map[string]json.RawMessage{
		"networkMetrics":      doc.NetworkMetrics,
		"networkThroughput":   doc.NetworkThroughput,
		"geopoliticalHeatmap": doc.GeopoliticalHeatmap,
	} {
		if !isJSONObject(raw) {
			missing = append(missing, name)
		}
	}
	if len(doc.SatelliteStatuses) > 0 && string(bytes.TrimSpace(doc.SatelliteStatuses)) != "null" && !isJSONArray(doc.SatelliteStatuses) {
		missing = append(missing, "satelliteStatuses")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return State{}, fmt.Errorf("%w: missing or mistyped fields: %s", ErrInvalidSnapshot, strings.Join(missing, ", "))
	}

	st := EmptyState()
	decode := func(name string, raw json.RawMessage, dst any) error {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, name, err)
		}
		return nil
	}
	var groups []ParentGroup
	if err := decode("parentGroups", doc.ParentGroups, &groups); err != nil {
		return State{}, err
	}
	var logs []ActivityLog
	if err := decode("activityLogs", doc.ActivityLogs, &logs); err != nil {
		return State{}, err
	}
	if err := decode("transitRoutes", doc.TransitRoutes, &st.TransitRoutes); err != nil {
		return State{}, err
	}
	if err := decode("networkMetrics", doc.NetworkMetrics, &st.NetworkMetrics); err != nil {
		return State{}, err
	}
	if err := decode("networkThroughput", doc.NetworkThroughput, &st.NetworkThroughput); err != nil {
		return State{}, err
	}
	if err := decode("geopoliticalHeatmap", doc.GeopoliticalHeatmap, &st.GeopoliticalHeatmap); err != nil {
		return State{}, err
	}
	if isJSONArray(doc.SatelliteStatuses) {
		if err := decode("satelliteStatuses", doc.SatelliteStatuses, &st.SatelliteStatuses); err != nil {
			return State{}, err
		}
	}

	st.ParentGroups = sanitizeHierarchy(groups)
	st.ActivityLogs = normalizeActivityLogs(logs)
	if st.TransitRoutes == nil {
		st.TransitRoutes = []TransitRoute{}
	}
	if st.SatelliteStatuses == nil {
		st.SatelliteStatuses = []SatelliteStatus{}
	}

	if doc.MapViewMode != "" {
		if mode, err := ParseLevel(doc.MapViewMode); err == nil {
			st.MapViewMode = mode
		}
	}
	st.SelectedEntity = NormalizeSelection(st.ParentGroups, doc.SelectedEntity)
	if st.SelectedEntity != nil && checkSelectionLevel(&st, *st.SelectedEntity) != nil {
		st.SelectedEntity = nil
	}
	st.Nodes = DeriveNodes(st.ParentGroups, st.MapViewMode, st.SubsidiaryFilter)
	return st, nil
}

// sanitizeHierarchy fills blank ancestor ids from the nesting and drops
// entities whose declared ancestors disagree with it, blank ids and repeats.
func sanitizeHierarchy(groups []ParentGroup) []ParentGroup {
	seen := make(map[string]struct{})
	claim := func(id string) bool {
		if id == "" {
			return false
		}
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	}

	out := make([]ParentGroup, 0, len(groups))
	for _, g := range groups {
		if !claim(g.ID) {
			continue
		}
		g.Status = NormalizeStatus(g.Status)
		subs := make([]SubsidiaryCompany, 0, len(g.Subsidiaries))
		for _, s := range g.Subsidiaries {
			if s.ParentGroupID != "" && s.ParentGroupID != g.ID {
				continue
			}
			if !claim(s.ID) {
				continue
			}
			s.ParentGroupID = g.ID
			s.Status = NormalizeStatus(s.Status)
			s.Hubs = normalizeHubs(s.Hubs)
			factories := make([]FactoryLocation, 0, len(s.Factories))
			for _, f := range s.Factories {
				if (f.ParentGroupID != "" && f.ParentGroupID != g.ID) || (f.SubsidiaryID != "" && f.SubsidiaryID != s.ID) {
					continue
				}
				if !claim(f.ID) {
					continue
				}
				f.ParentGroupID = g.ID
				f.SubsidiaryID = s.ID
				f.Status = NormalizeStatus(f.Status)
				factories = append(factories, f)
			}
			s.Factories = factories
			subs = append(subs, s)
		}
		g.Subsidiaries = subs
		out = append(out, g)
	}
	recomputeAll(out)
	return out
}

// Initialize loads the snapshot from src. Any failure installs the empty
// state instead; the failure is only logged at debug level. It reports
// whether the snapshot was used.
func (s *Store) Initialize(ctx context.Context, src SnapshotSource) bool {
	next, err := s.loadSnapshot(ctx, src)
	loaded := err == nil
	source := "none"
	if src != nil {
		source = src.Name()
	}
	if loaded {
		s.rec.ObserveSnapshotLoad(source, "ok")
		s.log.Info().Str("source", source).Int("parent_groups", len(next.ParentGroups)).Msg("snapshot loaded")
	} else {
		s.rec.ObserveSnapshotLoad(source, "fallback")
		s.log.Debug().Err(err).Str("source", source).Msg("snapshot unavailable; using empty state")
		next = EmptyState()
	}

	s.mu.Lock()
	s.state = next
	s.ready = true
	s.notifyMu.Lock()
	s.mu.Unlock()
	for _, sub := range s.listeners() {
		sub.fn(next)
	}
	s.notifyMu.Unlock()
	return loaded
}

func (s *Store) loadSnapshot(ctx context.Context, src SnapshotSource) (State, error) {
	if src == nil {
		return State{}, fmt.Errorf("%w: no source configured", ErrInvalidSnapshot)
	}
	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()
	b, err := src.Fetch(ctx)
	if err != nil {
		return State{}, err
	}
	return DecodeSnapshot(b)
}
