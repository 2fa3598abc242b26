// Package mapview drives one interactive world map: it owns the SVG viewBox,
// keeps it in step with container resizes, zoom input and the widget's own
// transforms, and turns the store's nodes and routes into render-ready
// markers, curved route paths and a tooltip.
//
// The widget, its container and the frame clock are injected, so the
// component runs the same way in tests and behind a websocket session.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"warroom/internal/geo"
	"warroom/internal/warroom"
)

type Phase string

const (
	PhaseUninitialized  Phase = "uninitialized"
	PhaseLoadingScripts Phase = "loading-scripts"
	PhaseInitializing   Phase = "initializing"
	PhaseReady          Phase = "ready"
	PhaseDestroyed      Phase = "destroyed"
)

var (
	ErrNotReady    = errors.New("map is not ready")
	ErrDestroyed   = errors.New("map destroyed")
	ErrStarted     = errors.New("map already started")
	ErrInitFailed  = errors.New("map init failed")
	ErrNoContainer = errors.New("map container unavailable")
	ErrNoPosition  = errors.New("node has no map position")
)

const (
	wheelStep  = 0.10
	buttonStep = 1.5
	maxZoom    = 12.0
)

// ScriptLoader makes the widget's assets available before init.
type ScriptLoader interface {
	Load(ctx context.Context) error
}

// Container is the element the map is mounted in. Size reports false until
// the element exists and has been laid out.
type Container interface {
	Size() (geo.Size, bool)
}

// Observable containers deliver resize and widget transform notifications.
// Callbacks must not be invoked from inside Observe itself.
type Observable interface {
	Observe(onResize func(), onTransform func(geo.ViewBox)) (detach func())
}

// StateSource is the store as the map sees it.
type StateSource interface {
	State() warroom.State
	Subscribe(fn warroom.Listener) func()
}

type Options struct {
	Logger    zerolog.Logger
	Store     StateSource
	Container Container
	Scripts   ScriptLoader
	// NewLibrary mounts the widget into the container. A nil factory or a
	// nil widget leaves the map on manual viewBox math.
	NewLibrary func(Container) (any, error)
	Scheduler  Scheduler
	// OnRender receives the view-model after each coalesced frame.
	OnRender func(ViewModel)

	MaxInitAttempts int
	InitBackoff     time.Duration
	FocusFrames     int
}

type Component struct {
	log         zerolog.Logger
	store       StateSource
	container   Container
	scripts     ScriptLoader
	newLibrary  func(Container) (any, error)
	sched       Scheduler
	onRender    func(ViewModel)
	maxAttempts int
	backoff     time.Duration
	focusFrames int

	mu            sync.Mutex
	phase         Phase
	state         warroom.State
	haveState     bool
	size          geo.Size
	vb            geo.ViewBox
	adapter       adapter
	userHasZoomed bool
	attempts      int
	initErr       error
	projectWarned bool

	dirty        bool
	renderCancel CancelFunc
	initCancel   CancelFunc
	animCancel   CancelFunc
	unsubscribe  func()
	detach       func()
}

func New(opts Options) *Component {
	sched := opts.Scheduler
	if sched == nil {
		sched = NewScheduler(0)
	}
	attempts := opts.MaxInitAttempts
	if attempts <= 0 {
		attempts = 10
	}
	frames := opts.FocusFrames
	if frames <= 0 {
		frames = 30
	}
	return &Component{
		log:         opts.Logger,
		store:       opts.Store,
		container:   opts.Container,
		scripts:     opts.Scripts,
		newLibrary:  opts.NewLibrary,
		sched:       sched,
		onRender:    opts.OnRender,
		maxAttempts: attempts,
		backoff:     opts.InitBackoff,
		focusFrames: frames,
		phase:       PhaseUninitialized,
		state:       warroom.EmptyState(),
		vb:          geo.BaseViewBox,
		adapter:     adapter{tier: TierManual},
	}
}

// Start loads the widget scripts and begins init. Init itself retries on
// the scheduler until the container is laid out or attempts run out.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		c.mu.Unlock()
		return ErrStarted
	}
	c.phase = PhaseLoadingScripts
	c.mu.Unlock()

	if c.scripts != nil {
		if err := c.scripts.Load(ctx); err != nil {
			c.log.Error().Err(err).Msg("map scripts failed to load")
			c.mu.Lock()
			if c.phase == PhaseLoadingScripts {
				c.phase = PhaseUninitialized
			}
			c.mu.Unlock()
			return fmt.Errorf("load map scripts: %w", err)
		}
	}

	var unsubscribe func()
	var st warroom.State
	if c.store != nil {
		unsubscribe = c.store.Subscribe(c.onState)
		st = c.store.State()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseDestroyed {
		if unsubscribe != nil {
			unsubscribe()
		}
		return ErrDestroyed
	}
	if c.store != nil && !c.haveState {
		c.state = st
		c.haveState = true
	}
	c.unsubscribe = unsubscribe
	c.phase = PhaseInitializing
	c.tryInitLocked()
	return nil
}

func (c *Component) tryInitLocked() {
	c.initCancel = nil
	if c.phase != PhaseInitializing {
		return
	}
	c.attempts++

	size, ok := c.containerSize()
	var lib any
	var err error
	switch {
	case !ok:
		err = ErrNoContainer
	case c.newLibrary != nil:
		lib, err = c.newLibrary(c.container)
	}
	if err != nil {
		if c.attempts >= c.maxAttempts {
			c.initErr = fmt.Errorf("%w after %d attempts: %w", ErrInitFailed, c.attempts, err)
			c.log.Error().Err(err).Int("attempts", c.attempts).Msg("map init gave up")
			return
		}
		delay := retryBackoff(c.backoff, c.attempts-1)
		c.log.Debug().Err(err).Int("attempt", c.attempts).Dur("retry_in", delay).Msg("map init deferred")
		c.initCancel = c.sched.AfterFunc(delay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.tryInitLocked()
		})
		return
	}

	c.size = size
	c.adapter = selectAdapter(lib)
	if c.adapter.focus == nil {
		c.log.Error().Msg("map widget exposes no focus method; using manual viewBox")
	}
	c.vb = geo.FitWorld(size)
	c.phase = PhaseReady
	c.attachLocked()
	c.log.Debug().Str("adapter", c.adapter.tier).Int("attempts", c.attempts).Msg("map ready")

	if sel := c.state.SelectedEntity; sel != nil {
		c.focusSelectionLocked(sel)
	}
	c.markDirtyLocked()
}

func (c *Component) attachLocked() {
	o, ok := c.container.(Observable)
	if !ok {
		return
	}
	c.detach = o.Observe(c.OnResize, c.OnLibraryTransform)
}

func (c *Component) containerSize() (geo.Size, bool) {
	if c.container == nil {
		return geo.Size{}, false
	}
	size, ok := c.container.Size()
	if !ok || size.Width <= 0 || size.Height <= 0 {
		return geo.Size{}, false
	}
	return size, true
}

func (c *Component) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err reports why init gave up, if it did.
func (c *Component) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErr
}

func (c *Component) Adapter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter.tier
}

func (c *Component) UserHasZoomed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userHasZoomed
}

func (c *Component) ViewBox() geo.ViewBox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vb
}

func (c *Component) ViewModel() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewModelLocked()
}

func (c *Component) viewModelLocked() ViewModel {
	vm := Render(c.state, c.size, c.vb, c.projectLocked)
	vm.Phase = c.phase
	vm.Adapter = c.adapter.tier
	vm.UserHasZoomed = c.userHasZoomed
	return vm
}

// projectLocked prefers the widget's own projection and falls back to the
// base-frame math when it is missing or fails.
func (c *Component) projectLocked(ll geo.LatLng) geo.Point {
	if c.adapter.project != nil {
		p, err := c.adapter.project(ll)
		if err == nil && !math.IsNaN(p.X) && !math.IsNaN(p.Y) {
			return p
		}
		if !c.projectWarned {
			c.projectWarned = true
			if err == nil {
				err = errors.New("non-finite point")
			}
			c.log.Error().Err(err).Msg("map widget projection failed; using manual projection")
		}
	}
	return BaseProjector(ll)
}

func (c *Component) onState(st warroom.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state.SelectedEntity
	c.state = st
	c.haveState = true
	if c.phase != PhaseReady {
		return
	}
	switch sel := st.SelectedEntity; {
	case sel == nil && prev != nil:
		c.resetLocked()
	case sel != nil && !sel.Equal(prev):
		c.focusSelectionLocked(sel)
	}
	c.markDirtyLocked()
}

func (c *Component) focusSelectionLocked(sel *warroom.Selection) {
	for _, n := range c.state.Nodes {
		if !sel.Matches(n) {
			continue
		}
		if err := c.zoomToLocked(n.Coordinates, FocusScale(n.Level)); err != nil {
			c.log.Debug().Err(err).Str("node_id", n.ID).Msg("selection not focused")
		}
		return
	}
}

// ZoomToNode asks the widget to focus the node and animates the viewBox to
// match. Automatic world resets stop until the selection is cleared.
func (c *Component) ZoomToNode(n warroom.Node, scale float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return ErrNotReady
	}
	if err := c.zoomToLocked(n.Coordinates, scale); err != nil {
		return fmt.Errorf("zoom to %s: %w", n.ID, err)
	}
	return nil
}

// FocusNode zooms to a node of the current node set by id.
func (c *Component) FocusNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return ErrNotReady
	}
	n, ok := nodeByID(c.state.Nodes, id)
	if !ok {
		return fmt.Errorf("%w: node %s", warroom.ErrNotFound, id)
	}
	if err := c.zoomToLocked(n.Coordinates, FocusScale(n.Level)); err != nil {
		return fmt.Errorf("zoom to %s: %w", n.ID, err)
	}
	return nil
}

func (c *Component) zoomToLocked(ll geo.LatLng, scale float64) error {
	if !ll.Valid() {
		return ErrNoPosition
	}
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}
	if c.adapter.focus != nil {
		if err := c.adapter.focus(ll, scale); err != nil {
			c.log.Error().Err(err).Str("adapter", c.adapter.tier).Msg("map focus call failed; rewriting viewBox")
		}
	}
	target := c.clampLocked(focusBox(c.projectLocked(ll), math.Min(scale, maxZoom), c.fitLocked()))
	c.userHasZoomed = true
	c.animateLocked(target)
	return nil
}

// focusBox is a viewBox with the fit frame's aspect, zoomed to scale
// relative to the base frame and centred on p.
func focusBox(p geo.Point, scale float64, fit geo.ViewBox) geo.ViewBox {
	w := geo.BaseViewBox.Width / scale
	h := w * fit.Height / fit.Width
	return geo.ViewBox{X: p.X - w/2, Y: p.Y - h/2, Width: w, Height: h}
}

func (c *Component) animateLocked(target geo.ViewBox) {
	c.cancelAnimLocked()
	start := c.vb
	steps := c.focusFrames
	if steps <= 1 {
		c.vb = target
		c.markDirtyLocked()
		return
	}
	i := 0
	var step func()
	step = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.animCancel = nil
		if c.phase != PhaseReady {
			return
		}
		i++
		c.vb = geo.Lerp(start, target, geo.EaseOutCubic(float64(i)/float64(steps)))
		c.markDirtyLocked()
		if i < steps {
			c.animCancel = c.sched.Frame(step)
		}
	}
	c.animCancel = c.sched.Frame(step)
}

func (c *Component) cancelAnimLocked() {
	if c.animCancel != nil {
		c.animCancel()
		c.animCancel = nil
	}
}

// Wheel zooms one step around the cursor, given in container pixels.
// Negative deltas zoom in.
func (c *Component) Wheel(deltaY float64, cursor geo.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady || deltaY == 0 || math.IsNaN(deltaY) {
		return
	}
	factor := 1 + wheelStep
	if deltaY > 0 {
		factor = 1 / factor
	}
	c.zoomByLocked(factor, toUser(cursor, c.vb, c.size))
}

func (c *Component) ZoomIn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return
	}
	c.zoomByLocked(buttonStep, c.vb.Center())
}

func (c *Component) ZoomOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return
	}
	c.zoomByLocked(1/buttonStep, c.vb.Center())
}

func (c *Component) zoomByLocked(factor float64, anchor geo.Point) {
	c.cancelAnimLocked()
	if factor > 1 {
		if allowed := maxZoom / geo.ZoomFactor(c.vb); factor > allowed {
			factor = allowed
		}
		if factor <= 1 {
			return
		}
	}
	c.vb = c.clampLocked(geo.ZoomAround(c.vb, factor, anchor))
	c.userHasZoomed = true
	c.markDirtyLocked()
}

// Pan moves the view by a drag delta in container pixels.
func (c *Component) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady || c.size.Width <= 0 || c.size.Height <= 0 {
		return
	}
	c.cancelAnimLocked()
	vb := c.vb
	vb.X -= dx * vb.Width / c.size.Width
	vb.Y -= dy * vb.Height / c.size.Height
	c.vb = c.clampLocked(vb)
	c.userHasZoomed = true
	c.markDirtyLocked()
}

// ResetView drops any manual zoom and returns to the full-world frame.
func (c *Component) ResetView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return
	}
	c.resetLocked()
	c.markDirtyLocked()
}

func (c *Component) resetLocked() {
	c.cancelAnimLocked()
	c.userHasZoomed = false
	c.vb = c.fitLocked()
}

// OnResize re-reads the container size. Without a manual zoom the view
// refits the world; otherwise it keeps its centre and width.
func (c *Component) OnResize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return
	}
	size, ok := c.containerSize()
	if !ok {
		return
	}
	if c.adapter.updateSize != nil {
		if err := c.adapter.updateSize(); err != nil {
			c.log.Error().Err(err).Msg("map widget resize failed")
		}
	}
	c.size = size
	if !c.userHasZoomed {
		c.vb = c.fitLocked()
	} else {
		center := c.vb.Center()
		w := c.vb.Width
		h := w * size.Height / size.Width
		c.vb = c.clampLocked(geo.ViewBox{X: center.X - w/2, Y: center.Y - h/2, Width: w, Height: h})
	}
	c.markDirtyLocked()
}

// OnLibraryTransform adopts a viewBox the widget applied on its own, such as
// a drag inside the widget.
func (c *Component) OnLibraryTransform(vb geo.ViewBox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady || vb.Width <= 0 || vb.Height <= 0 || vb == c.vb {
		return
	}
	c.cancelAnimLocked()
	c.vb = vb
	c.userHasZoomed = true
	c.markDirtyLocked()
}

func (c *Component) fitLocked() geo.ViewBox {
	return geo.FitWorld(c.size)
}

// clampLocked keeps vb inside the full-world frame. Anything as large as
// the frame snaps to it.
func (c *Component) clampLocked(vb geo.ViewBox) geo.ViewBox {
	const eps = 1e-6
	fit := c.fitLocked()
	if vb.Width >= fit.Width-eps || vb.Height >= fit.Height-eps {
		return fit
	}
	vb.X = math.Max(fit.X, math.Min(vb.X, fit.X+fit.Width-vb.Width))
	vb.Y = math.Max(fit.Y, math.Min(vb.Y, fit.Y+fit.Height-vb.Height))
	return vb
}

// markDirtyLocked schedules one render pass for any number of changes made
// before the next frame.
func (c *Component) markDirtyLocked() {
	c.dirty = true
	if c.renderCancel != nil || c.phase == PhaseDestroyed {
		return
	}
	c.renderCancel = c.sched.Frame(c.flush)
}

func (c *Component) flush() {
	c.mu.Lock()
	c.renderCancel = nil
	if !c.dirty || c.phase == PhaseDestroyed {
		c.mu.Unlock()
		return
	}
	c.dirty = false
	vm := c.viewModelLocked()
	cb := c.onRender
	c.mu.Unlock()

	if cb != nil {
		cb(vm)
	}
}

// Destroy cancels pending timers and frames, unsubscribes from the store and
// detaches observers. It is safe to call more than once.
func (c *Component) Destroy() {
	c.mu.Lock()
	if c.phase == PhaseDestroyed {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseDestroyed
	for _, cancel := range []CancelFunc{c.initCancel, c.animCancel, c.renderCancel} {
		if cancel != nil {
			cancel()
		}
	}
	c.initCancel, c.animCancel, c.renderCancel = nil, nil, nil
	c.dirty = false
	unsubscribe, detach := c.unsubscribe, c.detach
	c.unsubscribe, c.detach = nil, nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if detach != nil {
		detach()
	}
}
