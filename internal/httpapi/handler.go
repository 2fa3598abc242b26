package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"warroom/internal/db"
	"warroom/internal/metrics"
	"warroom/internal/warroom"
)

type Options struct {
	// Pool is only pinged by readiness; nil means Postgres is not in use.
	Pool    *db.Pool
	Metrics *metrics.Metrics
	// AllowedOrigins restricts map session upgrades. Empty allows any origin.
	AllowedOrigins []string
}

type Handler struct {
	log      zerolog.Logger
	store    *warroom.Store
	pool     *db.Pool
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewHandler(log zerolog.Logger, store *warroom.Store, opts Options) *Handler {
	h := &Handler{
		log:     log,
		store:   store,
		pool:    opts.Pool,
		metrics: opts.Metrics,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSuffix(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Handle("/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// Long-lived; kept out of the request timeout.
			r.Get("/map/session", h.handleMapSession)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(15 * time.Second))

				r.Get("/state", h.handleGetState)
				r.Get("/nodes", h.handleListNodes)
				r.Put("/view-mode", h.handleSetViewMode)
				r.Put("/selection", h.handleSelect)
				r.Delete("/selection", h.handleClearSelection)
				r.Put("/hover", h.handleHover)
				r.Delete("/hover", h.handleClearHover)
				r.Put("/filter", h.handleSetFilter)

				r.Post("/parent-groups", h.handleAddParentGroup)
				r.Post("/parent-groups/{id}/subsidiaries", h.handleAddSubsidiary)
				r.Route("/subsidiaries/{id}", func(r chi.Router) {
					r.Put("/", h.handleUpdateSubsidiary)
					r.Delete("/", h.handleDeleteSubsidiary)
					r.Put("/hubs/{code}", h.handleUpdateHubStatus)
					r.Post("/factories", h.handleAddFactory)
				})
				r.Route("/factories/{id}", func(r chi.Router) {
					r.Put("/", h.handleUpdateFactory)
					r.Delete("/", h.handleDeleteFactory)
				})

				r.Get("/activity-logs", h.handleListActivityLogs)
				r.Post("/activity-logs", h.handleAddActivityLog)
				r.Patch("/network/metrics", h.handleUpdateNetworkMetrics)
				r.Patch("/network/throughput", h.handleUpdateNetworkThroughput)
				r.Put("/transit-routes", h.handleReplaceTransitRoutes)
				r.Patch("/satellites/{id}", h.handleUpdateSatellite)
				r.Post("/locations/parse", h.handleParseLocation)

				r.Get("/map/view", h.handleGetMapView)
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), elapsed)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// errorStatus maps store errors onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, warroom.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, warroom.ErrSelectionLevel):
		return http.StatusConflict, "invalid_selection_level"
	case errors.Is(err, warroom.ErrDuplicateID):
		return http.StatusConflict, "conflict"
	case errors.Is(err, warroom.ErrCoordinateRange):
		return http.StatusBadRequest, "coordinate_out_of_range"
	case errors.Is(err, warroom.ErrLocationNotFound):
		return http.StatusUnprocessableEntity, "location_not_found"
	case errors.Is(err, warroom.ErrInvalidInput):
		return http.StatusBadRequest, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error, details map[string]any) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("op", op).Msg("store operation failed")
		h.writeError(w, status, code, op+" failed", nil)
		return
	}
	h.writeError(w, status, code, err.Error(), details)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// decodeBody decodes a strict JSON body and answers 400 when it fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSONStrict(r, dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if !h.store.Ready() {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "state not initialised", nil)
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
