package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"warroom/internal/warroom"
)

type hubStatusRequest struct {
	Status warroom.Status `json:"status"`
}

func (h *Handler) handleAddParentGroup(w http.ResponseWriter, r *http.Request) {
	var req warroom.ParentGroupInput
	if !h.decodeBody(w, r, &req) {
		return
	}
	g, err := h.store.AddParentGroup(req)
	if err != nil {
		h.writeStoreError(w, "add parent group", err, nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) handleAddSubsidiary(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "id")
	var req warroom.SubsidiaryInput
	if !h.decodeBody(w, r, &req) {
		return
	}
	s, err := h.store.AddSubsidiary(parentID, req)
	if err != nil {
		h.writeStoreError(w, "add subsidiary", err, map[string]any{"parentGroupId": parentID})
		return
	}
	h.writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) handleUpdateSubsidiary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req warroom.SubsidiaryPatch
	if !h.decodeBody(w, r, &req) {
		return
	}
	s, err := h.store.UpdateSubsidiary(id, req)
	if err != nil {
		h.writeStoreError(w, "update subsidiary", err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleDeleteSubsidiary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteSubsidiary(id); err != nil {
		h.writeStoreError(w, "delete subsidiary", err, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateHubStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")
	var req hubStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.store.UpdateHubStatus(id, code, req.Status); err != nil {
		h.writeStoreError(w, "update hub status", err, map[string]any{"id": id, "code": code})
		return
	}
	s, _ := h.store.State().Subsidiary(id)
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleAddFactory(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "id")
	var req warroom.FactoryInput
	if !h.decodeBody(w, r, &req) {
		return
	}
	f, err := h.store.AddFactory(subID, req)
	if err != nil {
		h.writeStoreError(w, "add factory", err, map[string]any{"subsidiaryId": subID})
		return
	}
	h.writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleUpdateFactory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req warroom.FactoryPatch
	if !h.decodeBody(w, r, &req) {
		return
	}
	f, err := h.store.UpdateFactory(id, req)
	if err != nil {
		h.writeStoreError(w, "update factory", err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleDeleteFactory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteFactory(id); err != nil {
		h.writeStoreError(w, "delete factory", err, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
