package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"warroom/internal/geo"
	"warroom/internal/warroom"
)

type parseLocationRequest struct {
	Text string `json:"text"`
}

type parseLocationResponse struct {
	Coordinates geo.LatLng `json:"coordinates"`
}

func (h *Handler) handleListActivityLogs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.State().ActivityLogs)
}

func (h *Handler) handleAddActivityLog(w http.ResponseWriter, r *http.Request) {
	var req warroom.ActivityLog
	if !h.decodeBody(w, r, &req) {
		return
	}
	entry, err := h.store.AddActivityLog(req)
	if err != nil {
		h.writeStoreError(w, "add activity log", err, nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleUpdateNetworkMetrics(w http.ResponseWriter, r *http.Request) {
	var req warroom.NetworkMetricsPatch
	if !h.decodeBody(w, r, &req) {
		return
	}
	m, err := h.store.UpdateNetworkMetrics(req)
	if err != nil {
		h.writeStoreError(w, "update network metrics", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdateNetworkThroughput(w http.ResponseWriter, r *http.Request) {
	var req warroom.NetworkThroughputPatch
	if !h.decodeBody(w, r, &req) {
		return
	}
	t, err := h.store.UpdateNetworkThroughput(req)
	if err != nil {
		h.writeStoreError(w, "update network throughput", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleReplaceTransitRoutes(w http.ResponseWriter, r *http.Request) {
	var req []warroom.TransitRoute
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.store.ReplaceTransitRoutes(req); err != nil {
		h.writeStoreError(w, "replace transit routes", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.State().TransitRoutes)
}

func (h *Handler) handleUpdateSatellite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req warroom.SatelliteStatusPatch
	if !h.decodeBody(w, r, &req) {
		return
	}
	sat, err := h.store.UpdateSatelliteStatus(id, req)
	if err != nil {
		h.writeStoreError(w, "update satellite", err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, sat)
}

func (h *Handler) handleParseLocation(w http.ResponseWriter, r *http.Request) {
	var req parseLocationRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	ll, err := h.store.ParseLocationInput(r.Context(), req.Text)
	if err != nil {
		h.writeStoreError(w, "parse location", err, map[string]any{"text": strings.TrimSpace(req.Text)})
		return
	}
	h.writeJSON(w, http.StatusOK, parseLocationResponse{Coordinates: ll})
}
