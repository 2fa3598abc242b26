// Package warroom owns the fleet hierarchy (parent groups, subsidiaries,
// factories), the map nodes derived from it and the operator's current focus.
//
// The Store is the single source of truth. Reads return immutable State
// snapshots; every mutation recomputes derived values and then notifies
// subscribers synchronously, in subscription order.
package warroom

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"warroom/internal/geocode"
)

// Listener receives the state after each successful mutation. Listeners run
// on the mutating goroutine and must not call mutating Store methods.
type Listener func(State)

// Geocoder resolves a place name into candidate coordinates.
type Geocoder interface {
	Search(ctx context.Context, name string) ([]geocode.Result, error)
}

// Recorder receives store telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveStoreMutation(op, outcome string)
	ObserveSnapshotLoad(source, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStoreMutation(string, string) {}
func (nopRecorder) ObserveSnapshotLoad(string, string)  {}

type Options struct {
	Logger      zerolog.Logger
	Geocoder    Geocoder
	Recorder    Recorder
	Now         func() time.Time
	LoadTimeout time.Duration
}

type subscription struct {
	id uint64
	fn Listener
}

type Store struct {
	log         zerolog.Logger
	geocoder    Geocoder
	rec         Recorder
	now         func() time.Time
	loadTimeout time.Duration

	mu    sync.RWMutex
	state State
	ready bool

	// held while listeners run so notifications never interleave
	notifyMu sync.Mutex

	subsMu  sync.Mutex
	subs    []subscription
	nextSub uint64
}

func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	lt := opts.LoadTimeout
	if lt <= 0 {
		lt = 5 * time.Second
	}
	return &Store{
		log:         opts.Logger,
		geocoder:    opts.Geocoder,
		rec:         rec,
		now:         now,
		loadTimeout: lt,
		state:       EmptyState(),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether Initialize has completed, successfully or not.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Subscribe registers fn and returns a func that removes it again.
func (s *Store) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = without(s.subs, i)
					return
				}
			}
		})
	}
}

func (s *Store) listeners() []subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	out := make([]subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// update applies fn to a shallow copy of the current state. On success the
// nodes are re-derived, the copy becomes current and listeners are notified.
func (s *Store) update(op string, fn func(st *State) error) error {
	s.mu.Lock()
	next := s.state
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		s.observeFailure(op, err)
		return err
	}
	next.Nodes = DeriveNodes(next.ParentGroups, next.MapViewMode, next.SubsidiaryFilter)
	s.state = next
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.rec.ObserveStoreMutation(op, "ok")
	for _, sub := range s.listeners() {
		sub.fn(next)
	}
	s.notifyMu.Unlock()
	return nil
}

func (s *Store) observeFailure(op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.rec.ObserveStoreMutation(op, "not_found")
		s.log.Warn().Err(err).Str("op", op).Msg("mutation target missing; ignoring")
	case errors.Is(err, ErrSelectionLevel):
		s.rec.ObserveStoreMutation(op, "rejected")
		s.log.Warn().Err(err).Str("op", op).Msg("selection rejected")
	default:
		s.rec.ObserveStoreMutation(op, "invalid")
		s.log.Debug().Err(err).Str("op", op).Msg("mutation rejected")
	}
}
