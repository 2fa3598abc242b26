package warroom

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"warroom/internal/geo"
)

type fakeSource struct {
	name    string
	fetchFn func(ctx context.Context) ([]byte, error)
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Fetch(ctx context.Context) ([]byte, error) { return f.fetchFn(ctx) }

func fixtureSource(t *testing.T) fakeSource {
	t.Helper()
	b, err := os.ReadFile("testdata/snapshot.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return fakeSource{name: "fixture", fetchFn: func(context.Context) ([]byte, error) { return b, nil }}
}

func newFixtureStore(t *testing.T, opts Options) *Store {
	t.Helper()
	opts.Logger = zerolog.Nop()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	}
	s := New(opts)
	if !s.Initialize(context.Background(), fixtureSource(t)) {
		t.Fatalf("expected fixture snapshot to load")
	}
	return s
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInitialize_LoadsAndAggregates(t *testing.T) {
	s := newFixtureStore(t, Options{})
	st := s.State()

	if !s.Ready() {
		t.Fatalf("expected store to be ready")
	}
	if len(st.ParentGroups) != 3 {
		t.Fatalf("expected 3 parent groups, got %d", len(st.ParentGroups))
	}
	if _, ok := st.Subsidiary("stray"); ok {
		t.Fatalf("subsidiary with a conflicting parent reference must be dropped")
	}

	steel, ok := st.Subsidiary("nord-steel")
	if !ok {
		t.Fatalf("nord-steel missing")
	}
	if steel.Metrics.AssetCount != 8 || steel.Metrics.IncidentCount != 1 {
		t.Fatalf("unexpected nord-steel metrics %+v", steel.Metrics)
	}
	// (90*5 + 80*3) / 8 = 86.25
	if steel.Metrics.SyncStability != 86.3 {
		t.Fatalf("expected weighted sync stability 86.3, got %v", steel.Metrics.SyncStability)
	}
	if f, _ := st.Factory("ns-lulea"); f.ParentGroupID != "nordic" || f.SubsidiaryID != "nord-steel" || f.Status != StatusOnline {
		t.Fatalf("expected ancestor ids filled and status normalised, got %+v", f)
	}

	nordic, _ := st.ParentGroup("nordic")
	if nordic.Metrics.AssetCount != 16 || nordic.Metrics.IncidentCount != 1 {
		t.Fatalf("unexpected nordic metrics %+v", nordic.Metrics)
	}
	empty, _ := st.Subsidiary("pac-empty")
	if empty.Metrics != (Metrics{}) {
		t.Fatalf("childless subsidiary should have zero metrics, got %+v", empty.Metrics)
	}

	if got := []string{st.ActivityLogs[0].ID, st.ActivityLogs[1].ID}; len(st.ActivityLogs) != 2 || !equalStrings(got, []string{"log-2", "log-1"}) {
		t.Fatalf("expected deduped newest-first logs, got %+v", st.ActivityLogs)
	}
	if st.MapViewMode != LevelParent || len(st.Nodes) != 3 {
		t.Fatalf("expected parent mode with 3 nodes, got %s / %d", st.MapViewMode, len(st.Nodes))
	}
}

func TestInitialize_FallsBackToEmptyState(t *testing.T) {
	cases := map[string]fakeSource{
		"fetch error": {name: "broken", fetchFn: func(context.Context) ([]byte, error) {
			return nil, errors.New("connection refused")
		}},
		"bad json": {name: "garbage", fetchFn: func(context.Context) ([]byte, error) {
			return []byte("<html>"), nil
		}},
		"shape mismatch": {name: "partial", fetchFn: func(context.Context) ([]byte, error) {
			return []byte(`{"parentGroups":[],"activityLogs":[],"transitRoutes":[],"networkMetrics":{},"networkThroughput":{},"geopoliticalHeatmap":{}}`), nil
		}},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			s := New(Options{Logger: zerolog.Nop()})
			if s.Initialize(context.Background(), src) {
				t.Fatalf("expected fallback")
			}
			st := s.State()
			if !s.Ready() || len(st.ParentGroups) != 0 || st.ParentGroups == nil || st.MapViewMode != LevelParent {
				t.Fatalf("expected empty state, got %+v", st)
			}
		})
	}
}

func TestInitialize_Timeout(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop(), LoadTimeout: 20 * time.Millisecond})
	src := fakeSource{name: "slow", fetchFn: func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	start := time.Now()
	if s.Initialize(context.Background(), src) {
		t.Fatalf("expected fallback after timeout")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestDecodeSnapshot_ReportsMissingFields(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"parentGroups":{},"activityLogs":[],"transitRoutes":[],"networkMetrics":{},"networkThroughput":{},"geopoliticalHeatmap":[]}`))
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	want := "invalid snapshot: missing or mistyped fields: geopoliticalHeatmap, nodes, parentGroups"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDeriveNodes_ParentCentroids(t *testing.T) {
	s := newFixtureStore(t, Options{})
	nodes := s.State().Nodes
	if !equalStrings(nodeIDs(nodes), []string{"fleetzero", "nordic", "pacific"}) {
		t.Fatalf("unexpected parent nodes %v", nodeIDs(nodes))
	}

	nordic := nodes[1]
	wantLat := (65.58*5 + 57.71*8) / 13
	wantLng := (22.15*5 + 11.97*8) / 13
	if math.Abs(nordic.Coordinates.Latitude-wantLat) > 1e-9 || math.Abs(nordic.Coordinates.Longitude-wantLng) > 1e-9 {
		t.Fatalf("unexpected nordic centroid %+v", nordic.Coordinates)
	}

	// zero assets still weigh 1
	pacific := nodes[2]
	if pacific.Coordinates != (geo.LatLng{Latitude: 35.18, Longitude: 129.08}) {
		t.Fatalf("unexpected pacific centroid %+v", pacific.Coordinates)
	}
}

func TestDeriveNodes_SubsidiaryModeAndFilter(t *testing.T) {
	s := newFixtureStore(t, Options{})

	all := s.Nodes(LevelSubsidiary, "")
	if !equalStrings(nodeIDs(all), []string{"fz-core", "nord-steel", "nord-auto", "pac-ship", "pac-empty"}) {
		t.Fatalf("unexpected subsidiary nodes %v", nodeIDs(all))
	}
	if all[4].Coordinates.Valid() {
		t.Fatalf("subsidiary without factories must have invalid coordinates")
	}
	if all[1].Company != "Nordic Holdings" || all[1].Logo != "/assets/logos/nordic.svg" {
		t.Fatalf("expected company and inherited logo, got %+v", all[1])
	}

	filtered := s.Nodes(LevelSubsidiary, "nord-steel")
	if !equalStrings(nodeIDs(filtered), []string{"fz-core", "ns-lulea", "ns-unset"}) {
		t.Fatalf("unexpected filtered nodes %v", nodeIDs(filtered))
	}
	if filtered[2].Coordinates.Valid() {
		t.Fatalf("(0,0) factory must be reported with invalid coordinates")
	}
}

func TestDeriveNodes_FactoryModeFilterKeepsSentinel(t *testing.T) {
	s := newFixtureStore(t, Options{})
	got := s.Nodes(LevelFactory, "nord-auto")
	if !equalStrings(nodeIDs(got), []string{"fz-hq", "na-gothenburg"}) {
		t.Fatalf("unexpected factory nodes %v", nodeIDs(got))
	}
	if len(s.Nodes(LevelFactory, "")) != 5 {
		t.Fatalf("expected all 5 factories unfiltered")
	}
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	s := newFixtureStore(t, Options{})
	var calls []string
	unsubA := s.Subscribe(func(State) { calls = append(calls, "a") })
	s.Subscribe(func(State) { calls = append(calls, "b") })

	if err := s.ClearSelection(); err != nil {
		t.Fatalf("clear selection: %v", err)
	}
	unsubA()
	unsubA()
	if err := s.ClearHover(); err != nil {
		t.Fatalf("clear hover: %v", err)
	}
	if !equalStrings(calls, []string{"a", "b", "b"}) {
		t.Fatalf("unexpected notification order %v", calls)
	}
}

func TestListenerSeesCommittedState(t *testing.T) {
	s := newFixtureStore(t, Options{})
	var seen Level
	s.Subscribe(func(st State) {
		seen = s.State().MapViewMode
		if st.MapViewMode != seen {
			t.Errorf("listener state and store state disagree")
		}
	})
	if err := s.SetMapViewMode(LevelFactory, ViewModeOptions{}); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if seen != LevelFactory {
		t.Fatalf("expected listener to observe factory mode, got %q", seen)
	}
}

func TestFailedMutationDoesNotNotify(t *testing.T) {
	s := newFixtureStore(t, Options{})
	before := s.State()
	notified := 0
	s.Subscribe(func(State) { notified++ })

	if err := s.DeleteFactory("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AddSubsidiary("missing-group", SubsidiaryInput{Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notified != 0 {
		t.Fatalf("failed mutations must not notify")
	}
	after := s.State()
	if &after.ParentGroups[0] != &before.ParentGroups[0] {
		t.Fatalf("failed mutation must leave state untouched")
	}
}

func TestCopyOnWrite(t *testing.T) {
	s := newFixtureStore(t, Options{})
	before := s.State()

	assets := 50
	if _, err := s.UpdateFactory("ns-lulea", FactoryPatch{Assets: &assets}); err != nil {
		t.Fatalf("update factory: %v", err)
	}
	after := s.State()

	if f, _ := before.Factory("ns-lulea"); f.Assets != 5 {
		t.Fatalf("previous snapshot was mutated: %+v", f)
	}
	if f, _ := after.Factory("ns-lulea"); f.Assets != 50 {
		t.Fatalf("expected updated assets, got %+v", f)
	}
	if &before.ParentGroups[0].Subsidiaries[0] != &after.ParentGroups[0].Subsidiaries[0] {
		t.Fatalf("untouched group should share its subsidiaries")
	}
	if &before.ParentGroups[1].Subsidiaries[0] == &after.ParentGroups[1].Subsidiaries[0] {
		t.Fatalf("mutated group must get a new subsidiaries slice")
	}
	if &before.ParentGroups[1].Subsidiaries[1].Factories[0] != &after.ParentGroups[1].Subsidiaries[1].Factories[0] {
		t.Fatalf("untouched sibling subsidiary should share its factories")
	}
	if after.ParentGroups[1].Metrics.AssetCount != 61 {
		t.Fatalf("expected parent aggregate to follow, got %+v", after.ParentGroups[1].Metrics)
	}
}

func TestSelect_NormalizesAncestors(t *testing.T) {
	s := newFixtureStore(t, Options{})
	if err := s.Select(Selection{Level: LevelFactory, ID: "ns-lulea", ParentGroupID: "stale", SubsidiaryID: "stale"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	want := &Selection{Level: LevelFactory, ID: "ns-lulea", ParentGroupID: "nordic", SubsidiaryID: "nord-steel"}
	if got := s.State().SelectedEntity; !got.Equal(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := s.Select(Selection{Level: LevelFactory, ID: "gone"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := s.State().SelectedEntity; !got.Equal(want) {
		t.Fatalf("failed select must keep the previous selection")
	}
}

func TestNormalizeSelection_MissingEntity(t *testing.T) {
	s := newFixtureStore(t, Options{})
	if got := NormalizeSelection(s.State().ParentGroups, &Selection{Level: LevelSubsidiary, ID: "stray"}); got != nil {
		t.Fatalf("expected nil selection, got %+v", got)
	}
	if got := NormalizeSelection(nil, nil); got != nil {
		t.Fatalf("expected nil for nil selection")
	}
}

func TestSelect_SubsidiaryLevelOnlyInSubsidiaryMode(t *testing.T) {
	s := newFixtureStore(t, Options{})
	sel := Selection{Level: LevelSubsidiary, ID: "nord-steel"}
	if err := s.Select(sel); !errors.Is(err, ErrSelectionLevel) {
		t.Fatalf("expected ErrSelectionLevel, got %v", err)
	}
	if err := s.Hover(sel); !errors.Is(err, ErrSelectionLevel) {
		t.Fatalf("expected ErrSelectionLevel for hover, got %v", err)
	}
	if err := s.SetMapViewMode(LevelSubsidiary, ViewModeOptions{}); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if err := s.Select(sel); err != nil {
		t.Fatalf("expected subsidiary selection to be accepted, got %v", err)
	}
}

func TestSetMapViewMode_CarriesSelection(t *testing.T) {
	s := newFixtureStore(t, Options{})
	sel := func() *Selection { return s.State().SelectedEntity }
	mustMode := func(mode Level, opts ViewModeOptions) {
		t.Helper()
		if err := s.SetMapViewMode(mode, opts); err != nil {
			t.Fatalf("set view mode %s: %v", mode, err)
		}
	}
	mustSelect := func(level Level, id string) {
		t.Helper()
		if err := s.Select(Selection{Level: level, ID: id}); err != nil {
			t.Fatalf("select %s %s: %v", level, id, err)
		}
	}

	mustSelect(LevelFactory, "ns-lulea")
	mustMode(LevelParent, ViewModeOptions{})
	if got := sel(); got.Level != LevelParent || got.ID != "nordic" {
		t.Fatalf("zooming out should ascend to the parent group, got %+v", got)
	}

	mustMode(LevelFactory, ViewModeOptions{})
	if got := sel(); got.Level != LevelFactory || got.ID != "ns-lulea" {
		t.Fatalf("expected previously chosen factory, got %+v", got)
	}

	mustSelect(LevelParent, "pacific")
	mustMode(LevelFactory, ViewModeOptions{})
	if got := sel(); got.Level != LevelFactory || got.ID != "ps-busan" {
		t.Fatalf("expected first descendant factory, got %+v", got)
	}

	mustMode(LevelSubsidiary, ViewModeOptions{})
	if got := sel(); got.Level != LevelParent || got.ID != "pacific" {
		t.Fatalf("without retain the selection should ascend to the group, got %+v", got)
	}

	mustSelect(LevelFactory, "ps-busan")
	mustMode(LevelSubsidiary, ViewModeOptions{RetainSubsidiary: true})
	if got := sel(); got.Level != LevelSubsidiary || got.ID != "pac-ship" || got.ParentGroupID != "pacific" {
		t.Fatalf("expected retained subsidiary, got %+v", got)
	}

	mustSelect(LevelSubsidiary, "pac-empty")
	mustMode(LevelFactory, ViewModeOptions{})
	if got := sel(); got.Level != LevelParent || got.ID != "pacific" {
		t.Fatalf("subsidiary without factories should ascend, got %+v", got)
	}
	if s.State().MapViewMode != LevelFactory {
		t.Fatalf("expected factory mode")
	}

	if _, err := s.AddParentGroup(ParentGroupInput{ID: "bare", Name: "Bare Group"}); err != nil {
		t.Fatalf("add parent group: %v", err)
	}
	mustSelect(LevelParent, "bare")
	mustMode(LevelParent, ViewModeOptions{})
	mustMode(LevelFactory, ViewModeOptions{})
	if got := sel(); got == nil || got.Level != LevelParent || got.ID != "bare" {
		t.Fatalf("parent without factories should keep its selection, got %+v", got)
	}

	if err := s.SetMapViewMode("galaxy", ViewModeOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown mode, got %v", err)
	}
}

func TestSetMapViewMode_ParentClearsFilter(t *testing.T) {
	s := newFixtureStore(t, Options{})
	if err := s.SetSubsidiaryFilter("nord-steel"); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := s.SetSubsidiaryFilter("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetMapViewMode(LevelFactory, ViewModeOptions{}); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if got := nodeIDs(s.State().Nodes); !equalStrings(got, []string{"fz-hq", "ns-lulea", "ns-unset"}) {
		t.Fatalf("unexpected filtered factory nodes %v", got)
	}
	if err := s.SetMapViewMode(LevelParent, ViewModeOptions{}); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if s.State().SubsidiaryFilter != "" {
		t.Fatalf("parent mode should clear the subsidiary filter")
	}
}
