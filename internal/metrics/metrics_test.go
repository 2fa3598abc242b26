package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveStoreMutation("select", "ok")
	m.ObserveGeocodeLookup("hit")
	m.IncMapSessions()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.ObserveStoreMutation("add_factory", "ok")
	m.ObserveStoreMutation("add_factory", "ok")
	m.ObserveSnapshotLoad("file", "fallback")
	m.ObserveGeocodeLookup("miss")
	m.IncMapSessions()
	m.IncMapSessions()
	m.DecMapSessions()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	for _, want := range []string{
		`warroom_http_requests_total{method="GET",path="/readyz",status="200"} 1`,
		`warroom_store_mutations_total{op="add_factory",outcome="ok"} 2`,
		`warroom_snapshot_loads_total{outcome="fallback",source="file"} 1`,
		`warroom_geocode_lookups_total{outcome="miss"} 1`,
		`warroom_map_sessions_active 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body=%s", want, body)
		}
	}
}
