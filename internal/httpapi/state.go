package httpapi

import (
	"net/http"
	"strings"

	"warroom/internal/warroom"
)

// focusView is the slice of state that selection and view-mode calls change.
type focusView struct {
	MapViewMode      warroom.Level      `json:"mapViewMode"`
	SubsidiaryFilter string             `json:"subsidiaryFilter,omitempty"`
	SelectedEntity   *warroom.Selection `json:"selectedEntity"`
	HoveredEntity    *warroom.Selection `json:"hoveredEntity"`
}

func (h *Handler) focus() focusView {
	st := h.store.State()
	return focusView{
		MapViewMode:      st.MapViewMode,
		SubsidiaryFilter: st.SubsidiaryFilter,
		SelectedEntity:   st.SelectedEntity,
		HoveredEntity:    st.HoveredEntity,
	}
}

type viewModeRequest struct {
	Mode             string `json:"mode"`
	RetainSubsidiary bool   `json:"retainSubsidiary,omitempty"`
}

type selectionRequest struct {
	Level string `json:"level"`
	ID    string `json:"id"`
}

type filterRequest struct {
	SubsidiaryID string `json:"subsidiaryId"`
}

type nodesResponse struct {
	Mode             warroom.Level  `json:"mode"`
	SubsidiaryFilter string         `json:"subsidiaryFilter,omitempty"`
	Nodes            []warroom.Node `json:"nodes"`
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.State())
}

func (h *Handler) handleListNodes(w http.ResponseWriter, r *http.Request) {
	st := h.store.State()
	q := r.URL.Query()

	mode := st.MapViewMode
	if raw := strings.TrimSpace(q.Get("mode")); raw != "" {
		m, err := warroom.ParseLevel(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid mode", map[string]any{"mode": raw})
			return
		}
		mode = m
	}
	filter := st.SubsidiaryFilter
	if q.Has("subsidiary") {
		filter = strings.TrimSpace(q.Get("subsidiary"))
		if _, ok := st.Subsidiary(filter); filter != "" && !ok {
			h.writeError(w, http.StatusNotFound, "not_found", "subsidiary not found", map[string]any{"subsidiary": filter})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, nodesResponse{
		Mode:             mode,
		SubsidiaryFilter: filter,
		Nodes:            h.store.Nodes(mode, filter),
	})
}

func (h *Handler) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var req viewModeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	mode, err := warroom.ParseLevel(req.Mode)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid mode", map[string]any{"mode": req.Mode})
		return
	}
	if err := h.store.SetMapViewMode(mode, warroom.ViewModeOptions{RetainSubsidiary: req.RetainSubsidiary}); err != nil {
		h.writeStoreError(w, "set view mode", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}

func (h *Handler) decodeSelection(w http.ResponseWriter, r *http.Request) (warroom.Selection, bool) {
	var req selectionRequest
	if !h.decodeBody(w, r, &req) {
		return warroom.Selection{}, false
	}
	level, err := warroom.ParseLevel(req.Level)
	if err != nil || strings.TrimSpace(req.ID) == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "level and id are required", map[string]any{"level": req.Level, "id": req.ID})
		return warroom.Selection{}, false
	}
	return warroom.Selection{Level: level, ID: strings.TrimSpace(req.ID)}, true
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	if err := h.store.Select(sel); err != nil {
		h.writeStoreError(w, "select", err, map[string]any{"level": sel.Level, "id": sel.ID})
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearSelection(); err != nil {
		h.writeStoreError(w, "clear selection", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}

func (h *Handler) handleHover(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	if err := h.store.Hover(sel); err != nil {
		h.writeStoreError(w, "hover", err, map[string]any{"level": sel.Level, "id": sel.ID})
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}

func (h *Handler) handleClearHover(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearHover(); err != nil {
		h.writeStoreError(w, "clear hover", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}

func (h *Handler) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.SubsidiaryID)
	if err := h.store.SetSubsidiaryFilter(id); err != nil {
		h.writeStoreError(w, "set filter", err, map[string]any{"subsidiaryId": id})
		return
	}
	h.writeJSON(w, http.StatusOK, h.focus())
}
