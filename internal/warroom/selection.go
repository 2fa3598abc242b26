package warroom

import "fmt"

// NormalizeSelection re-derives the ancestor ids of sel from the hierarchy.
// It returns nil when the referenced entity does not exist.
func NormalizeSelection(groups []ParentGroup, sel *Selection) *Selection {
	if sel == nil {
		return nil
	}
	switch sel.Level {
	case LevelParent:
		gi, ok := locateGroup(groups, sel.ID)
		if !ok {
			return nil
		}
		return parentSelection(groups[gi])
	case LevelSubsidiary:
		gi, si, ok := locateSubsidiary(groups, sel.ID)
		if !ok {
			return nil
		}
		return subsidiarySelection(groups[gi], groups[gi].Subsidiaries[si])
	case LevelFactory:
		gi, si, fi, ok := locateFactory(groups, sel.ID)
		if !ok {
			return nil
		}
		g := groups[gi]
		sub := g.Subsidiaries[si]
		return factorySelection(g, sub, sub.Factories[fi])
	default:
		return nil
	}
}

func parentSelection(g ParentGroup) *Selection {
	return &Selection{Level: LevelParent, ID: g.ID, ParentGroupID: g.ID}
}

func subsidiarySelection(g ParentGroup, s SubsidiaryCompany) *Selection {
	return &Selection{Level: LevelSubsidiary, ID: s.ID, ParentGroupID: g.ID, SubsidiaryID: s.ID}
}

func factorySelection(g ParentGroup, s SubsidiaryCompany, f FactoryLocation) *Selection {
	return &Selection{Level: LevelFactory, ID: f.ID, ParentGroupID: g.ID, SubsidiaryID: s.ID}
}

// ViewModeOptions tunes SetMapViewMode.
type ViewModeOptions struct {
	// RetainSubsidiary keeps a selected factory's subsidiary as the selection
	// when switching into subsidiary mode. Without it the selection ascends
	// to the parent group.
	RetainSubsidiary bool
}

// SetMapViewMode switches the active level and carries the selection along.
func (s *Store) SetMapViewMode(mode Level, opts ViewModeOptions) error {
	if _, err := ParseLevel(string(mode)); err != nil {
		return err
	}
	return s.update("set_view_mode", func(st *State) error {
		st.SelectedEntity = carrySelection(st, st.SelectedEntity, mode, opts)
		st.HoveredEntity = NormalizeSelection(st.ParentGroups, st.HoveredEntity)
		if st.HoveredEntity != nil && st.HoveredEntity.Level == LevelSubsidiary && mode != LevelSubsidiary {
			st.HoveredEntity = nil
		}
		if mode == LevelParent {
			st.SubsidiaryFilter = ""
		}
		st.MapViewMode = mode
		return nil
	})
}

func carrySelection(st *State, sel *Selection, mode Level, opts ViewModeOptions) *Selection {
	cur := NormalizeSelection(st.ParentGroups, sel)
	if cur == nil {
		return nil
	}
	groups := st.ParentGroups
	ascend := func() *Selection {
		return NormalizeSelection(groups, &Selection{Level: LevelParent, ID: cur.ParentGroupID})
	}

	switch mode {
	case LevelParent:
		return ascend()
	case LevelSubsidiary:
		if cur.Level == LevelFactory {
			if opts.RetainSubsidiary {
				return NormalizeSelection(groups, &Selection{Level: LevelSubsidiary, ID: cur.SubsidiaryID})
			}
			return ascend()
		}
		return cur
	case LevelFactory:
		if cur.Level == LevelFactory {
			return cur
		}
		if f := descendantFactory(groups, cur, st.lastFactoryID); f != nil {
			return f
		}
		if cur.Level == LevelSubsidiary {
			return ascend()
		}
		return cur
	}
	return cur
}

// descendantFactory picks the remembered factory when it lives under sel,
// otherwise the first factory under sel.
func descendantFactory(groups []ParentGroup, sel *Selection, lastFactoryID string) *Selection {
	under := func(f *Selection) bool {
		switch sel.Level {
		case LevelParent:
			return f.ParentGroupID == sel.ID
		case LevelSubsidiary:
			return f.SubsidiaryID == sel.ID
		}
		return false
	}
	if lastFactoryID != "" {
		if f := NormalizeSelection(groups, &Selection{Level: LevelFactory, ID: lastFactoryID}); f != nil && under(f) {
			return f
		}
	}
	for _, g := range groups {
		for _, sub := range g.Subsidiaries {
			for _, f := range sub.Factories {
				cand := factorySelection(g, sub, f)
				if under(cand) {
					return cand
				}
			}
		}
	}
	return nil
}

func checkSelectionLevel(st *State, sel Selection) error {
	if sel.Level == LevelSubsidiary && st.MapViewMode != LevelSubsidiary {
		return fmt.Errorf("%w: %s selection in %s mode", ErrSelectionLevel, sel.Level, st.MapViewMode)
	}
	return nil
}

// Select makes sel the current selection after normalising it.
func (s *Store) Select(sel Selection) error {
	if _, err := ParseLevel(string(sel.Level)); err != nil {
		return err
	}
	return s.update("select", func(st *State) error {
		if err := checkSelectionLevel(st, sel); err != nil {
			return err
		}
		norm := NormalizeSelection(st.ParentGroups, &sel)
		if norm == nil {
			return fmt.Errorf("%w: %s %q", ErrNotFound, sel.Level, sel.ID)
		}
		st.SelectedEntity = norm
		if norm.Level == LevelFactory {
			st.lastFactoryID = norm.ID
		}
		return nil
	})
}

func (s *Store) ClearSelection() error {
	return s.update("clear_selection", func(st *State) error {
		st.SelectedEntity = nil
		return nil
	})
}

// Hover marks sel as hovered. The same level rule as Select applies.
func (s *Store) Hover(sel Selection) error {
	if _, err := ParseLevel(string(sel.Level)); err != nil {
		return err
	}
	return s.update("hover", func(st *State) error {
		if err := checkSelectionLevel(st, sel); err != nil {
			return err
		}
		norm := NormalizeSelection(st.ParentGroups, &sel)
		if norm == nil {
			return fmt.Errorf("%w: %s %q", ErrNotFound, sel.Level, sel.ID)
		}
		st.HoveredEntity = norm
		return nil
	})
}

func (s *Store) ClearHover() error {
	return s.update("clear_hover", func(st *State) error {
		st.HoveredEntity = nil
		return nil
	})
}

// SetSubsidiaryFilter restricts subsidiary and factory node lists to one
// subsidiary. An empty id clears the filter.
func (s *Store) SetSubsidiaryFilter(id string) error {
	return s.update("set_filter", func(st *State) error {
		if id != "" {
			if _, _, ok := locateSubsidiary(st.ParentGroups, id); !ok {
				return fmt.Errorf("%w: subsidiary %q", ErrNotFound, id)
			}
		}
		st.SubsidiaryFilter = id
		return nil
	})
}

// Nodes derives nodes for an arbitrary level and filter without changing the
// stored view mode.
func (s *Store) Nodes(mode Level, subsidiaryFilter string) []Node {
	st := s.State()
	return DeriveNodes(st.ParentGroups, mode, subsidiaryFilter)
}
