package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"warroom/internal/geo"
	"warroom/internal/mapview"
	"warroom/internal/warroom"
)

const (
	sessionReadLimit = 4096
	sessionPongWait  = 60 * time.Second
	sessionPingEvery = 54 * time.Second
	sessionWriteWait = 10 * time.Second
	sessionSendQueue = 16
)

var errInvalidSize = errors.New("width and height must be positive numbers")

// parseSize reads width/height query params. Missing params yield def.
func parseSize(r *http.Request, def geo.Size) (geo.Size, error) {
	q := r.URL.Query()
	size := def
	for _, p := range []struct {
		key string
		dst *float64
	}{{"width", &size.Width}, {"height", &size.Height}} {
		raw := strings.TrimSpace(q.Get(p.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return geo.Size{}, errInvalidSize
		}
		*p.dst = v
	}
	return size, nil
}

func (h *Handler) handleGetMapView(w http.ResponseWriter, r *http.Request) {
	size, err := parseSize(r, geo.Size{Width: geo.BaseViewBox.Width, Height: geo.BaseViewBox.Height})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	q := r.URL.Query()
	vb := geo.FitWorld(size)
	if raw := strings.TrimSpace(q.Get("viewBox")); raw != "" {
		parsed, err := geo.ParseViewBox(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"viewBox": raw})
			return
		}
		vb = parsed
	}

	st := h.store.State()
	mode, filter := st.MapViewMode, st.SubsidiaryFilter
	if raw := strings.TrimSpace(q.Get("mode")); raw != "" {
		m, err := warroom.ParseLevel(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid mode", map[string]any{"mode": raw})
			return
		}
		mode = m
	}
	if q.Has("subsidiary") {
		filter = strings.TrimSpace(q.Get("subsidiary"))
		if _, ok := st.Subsidiary(filter); filter != "" && !ok {
			h.writeError(w, http.StatusNotFound, "not_found", "subsidiary not found", map[string]any{"subsidiary": filter})
			return
		}
	}
	if mode != st.MapViewMode || filter != st.SubsidiaryFilter {
		st.MapViewMode = mode
		st.SubsidiaryFilter = filter
		st.Nodes = h.store.Nodes(mode, filter)
	}

	vm := mapview.Render(st, size, vb, mapview.BaseProjector)
	vm.Phase = mapview.PhaseReady
	vm.Adapter = mapview.TierManual
	vm.UserHasZoomed = vb != geo.FitWorld(size)
	h.writeJSON(w, http.StatusOK, vm)
}

// sessionContainer stands in for the client's map element. Its size comes
// from the connect query or from resize messages.
type sessionContainer struct {
	mu          sync.Mutex
	size        geo.Size
	onResize    func()
	onTransform func(geo.ViewBox)
}

func (c *sessionContainer) Size() (geo.Size, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size, c.size.Width > 0 && c.size.Height > 0
}

func (c *sessionContainer) Observe(onResize func(), onTransform func(geo.ViewBox)) func() {
	c.mu.Lock()
	c.onResize, c.onTransform = onResize, onTransform
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.onResize, c.onTransform = nil, nil
		c.mu.Unlock()
	}
}

func (c *sessionContainer) resize(size geo.Size) {
	c.mu.Lock()
	c.size = size
	cb := c.onResize
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *sessionContainer) transform(vb geo.ViewBox) {
	c.mu.Lock()
	cb := c.onTransform
	c.mu.Unlock()
	if cb != nil {
		cb(vb)
	}
}

type clientMessage struct {
	Type    string  `json:"type"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	DeltaY  float64 `json:"deltaY,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	Level   string  `json:"level,omitempty"`
	ID      string  `json:"id,omitempty"`
	ViewBox string  `json:"viewBox,omitempty"`
}

type serverMessage struct {
	Type    string             `json:"type"`
	Session string             `json:"session,omitempty"`
	View    *mapview.ViewModel `json:"view,omitempty"`
	Error   *messageError      `json:"error,omitempty"`
}

type messageError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type mapSession struct {
	id        string
	log       zerolog.Logger
	conn      *websocket.Conn
	store     *warroom.Store
	container *sessionContainer
	comp      *mapview.Component
	send      chan []byte
	done      chan struct{}

	// Views replace each other; only the newest is written.
	viewMu    sync.Mutex
	view      []byte
	viewReady chan struct{}
}

func (h *Handler) handleMapSession(w http.ResponseWriter, r *http.Request) {
	size, err := parseSize(r, geo.Size{})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.log.Warn().Err(err).Msg("map session upgrade failed")
		return
	}

	id := uuid.NewString()
	s := &mapSession{
		id:        id,
		log:       h.log.With().Str("session", id).Logger(),
		conn:      conn,
		store:     h.store,
		container: &sessionContainer{size: size},
		send:      make(chan []byte, sessionSendQueue),
		done:      make(chan struct{}),
		viewReady: make(chan struct{}, 1),
	}
	s.comp = mapview.New(mapview.Options{
		Logger:      s.log,
		Store:       h.store,
		Container:   s.container,
		OnRender:    s.pushView,
		InitBackoff: 100 * time.Millisecond,
	})

	h.metrics.IncMapSessions()
	defer h.metrics.DecMapSessions()
	s.log.Info().Str("remote", r.RemoteAddr).Msg("map session opened")

	go s.writePump()
	s.push(serverMessage{Type: "session", Session: id})
	if err := s.comp.Start(r.Context()); err != nil {
		s.pushError(err)
	}

	s.readPump()

	close(s.done)
	s.comp.Destroy()
	_ = conn.Close()
	s.log.Info().Msg("map session closed")
}

func (s *mapSession) readPump() {
	s.conn.SetReadLimit(sessionReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("map session read failed")
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.pushError(err)
			continue
		}
		if err := s.handle(msg); err != nil {
			s.pushError(err)
		}
	}
}

func (s *mapSession) writePump() {
	ticker := time.NewTicker(sessionPingEvery)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-s.viewReady:
			// Queued messages were pushed first and go out first.
			if !s.flushQueued() {
				return
			}
			b, ok := s.takeView()
			if !ok {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *mapSession) flushQueued() bool {
	for {
		select {
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return false
			}
		default:
			return true
		}
	}
}

func (s *mapSession) handle(msg clientMessage) error {
	switch msg.Type {
	case "resize":
		if msg.Width <= 0 || msg.Height <= 0 {
			return errInvalidSize
		}
		s.container.resize(geo.Size{Width: msg.Width, Height: msg.Height})
	case "wheel":
		s.comp.Wheel(msg.DeltaY, geo.Point{X: msg.X, Y: msg.Y})
	case "zoom_in":
		s.comp.ZoomIn()
	case "zoom_out":
		s.comp.ZoomOut()
	case "pan":
		s.comp.Pan(msg.DX, msg.DY)
	case "reset":
		s.comp.ResetView()
	case "select":
		level, err := warroom.ParseLevel(msg.Level)
		if err != nil {
			return err
		}
		return s.store.Select(warroom.Selection{Level: level, ID: msg.ID})
	case "clear_selection":
		if err := s.store.ClearSelection(); err != nil {
			return err
		}
		s.comp.ResetView()
	case "hover":
		if strings.TrimSpace(msg.ID) == "" {
			return s.store.ClearHover()
		}
		level, err := warroom.ParseLevel(msg.Level)
		if err != nil {
			return err
		}
		return s.store.Hover(warroom.Selection{Level: level, ID: msg.ID})
	case "focus":
		return s.comp.FocusNode(msg.ID)
	case "transform":
		vb, err := geo.ParseViewBox(msg.ViewBox)
		if err != nil {
			return err
		}
		s.container.transform(vb)
	default:
		return errUnknownMessage(msg.Type)
	}
	return nil
}

type errUnknownMessage string

func (e errUnknownMessage) Error() string { return "unknown message type " + strconv.Quote(string(e)) }

func (s *mapSession) pushView(vm mapview.ViewModel) {
	b, err := json.Marshal(serverMessage{Type: "view", View: &vm})
	if err != nil {
		s.log.Error().Err(err).Msg("map session encode failed")
		return
	}
	s.viewMu.Lock()
	s.view = b
	s.viewMu.Unlock()
	select {
	case s.viewReady <- struct{}{}:
	default:
	}
}

// takeView hands the pending view to the writer and clears the slot.
func (s *mapSession) takeView() ([]byte, bool) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	b := s.view
	s.view = nil
	return b, b != nil
}

func (s *mapSession) pushError(err error) {
	_, code := errorStatus(err)
	switch {
	case errors.Is(err, mapview.ErrNotReady), errors.Is(err, mapview.ErrDestroyed):
		code = "not_ready"
	case errors.Is(err, mapview.ErrNoPosition):
		code = "no_position"
	case errors.Is(err, geo.ErrInvalidViewBox), errors.Is(err, errInvalidSize):
		code = "validation_failed"
	case code == "internal_error":
		var unknown errUnknownMessage
		var syntax *json.SyntaxError
		if errors.As(err, &unknown) || errors.As(err, &syntax) {
			code = "validation_failed"
		}
	}
	s.push(serverMessage{Type: "error", Error: &messageError{Code: code, Message: err.Error()}})
}

// push queues a session or error message without blocking. A full queue
// drops the message.
func (s *mapSession) push(msg serverMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Str("type", msg.Type).Msg("map session encode failed")
		return
	}
	select {
	case <-s.done:
	case s.send <- b:
	default:
		s.log.Debug().Str("type", msg.Type).Msg("map session queue full; dropping message")
	}
}
