package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"warroom/internal/warroom"
)

type openAPIDoc struct {
	Servers []struct {
		URL string `yaml:"url"`
	} `yaml:"servers"`
	Paths map[string]map[string]openAPIOperation `yaml:"paths"`
}

type openAPIOperation struct {
	Responses map[string]any `yaml:"responses"`
}

// routeSet holds "METHOD /path" keys.
type routeSet map[string]struct{}

func (s routeSet) minus(other routeSet) []string {
	out := make([]string, 0)
	for k := range s {
		if _, ok := other[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var documentedMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {},
	http.MethodDelete: {}, http.MethodHead: {}, http.MethodOptions: {},
}

func loadOpenAPI(t *testing.T) openAPIDoc {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "api", "openapi.yaml")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read openapi document %q: %v", path, err)
	}
	var doc openAPIDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("parse openapi document %q: %v", path, err)
	}
	return doc
}

func TestOpenAPIDoesNotDriftFromRouter(t *testing.T) {
	doc := loadOpenAPI(t)
	if len(doc.Servers) == 0 || doc.Servers[0].URL != "/api" {
		t.Fatalf("expected servers[0].url=/api, got %+v", doc.Servers)
	}

	documented := documentedRoutes(doc)
	registered := registeredRoutes(t)

	missing := documented.minus(registered)
	undocumented := registered.minus(documented)
	if len(missing) == 0 && len(undocumented) == 0 {
		return
	}

	var sb strings.Builder
	report := func(title string, keys []string) {
		if len(keys) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, k := range keys {
			sb.WriteString("  - " + k + "\n")
		}
	}
	report("documented but not routed", missing)
	report("routed but not documented", undocumented)
	t.Fatalf("api/openapi.yaml and the router disagree:\n\n%s", sb.String())
}

func TestOpenAPIOperationsDeclareSuccess(t *testing.T) {
	doc := loadOpenAPI(t)
	for path, ops := range doc.Paths {
		for method, op := range ops {
			ok := false
			for code := range op.Responses {
				if strings.HasPrefix(code, "2") || code == "101" {
					ok = true
					break
				}
			}
			if !ok {
				t.Errorf("%s %s declares no success response", strings.ToUpper(method), path)
			}
		}
	}
}

func documentedRoutes(doc openAPIDoc) routeSet {
	out := make(routeSet)
	for p, ops := range doc.Paths {
		for m := range ops {
			method := strings.ToUpper(m)
			if _, ok := documentedMethods[method]; !ok {
				continue
			}
			// Paths are written as /v1/... under servers.url=/api.
			out[method+" "+normalizeRoute("/api"+p)] = struct{}{}
		}
	}
	return out
}

func registeredRoutes(t *testing.T) routeSet {
	t.Helper()

	log := zerolog.New(io.Discard)
	h := NewHandler(log, warroom.New(warroom.Options{Logger: log}), Options{})
	mux, ok := h.Router().(*chi.Mux)
	if !ok {
		t.Fatalf("expected *chi.Mux from Handler.Router(), got %T", h.Router())
	}

	out := make(routeSet)
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := documentedMethods[method]; !ok {
			return nil
		}
		route = normalizeRoute(route)
		if strings.HasPrefix(route, "/api/") {
			out[method+" "+route] = struct{}{}
		}
		return nil
	}
	if err := chi.Walk(mux, walk); err != nil {
		t.Fatalf("walk chi router: %v", err)
	}
	return out
}

// normalizeRoute drops the trailing slash chi leaves on sub-router roots.
func normalizeRoute(route string) string {
	if len(route) > 1 {
		return strings.TrimSuffix(route, "/")
	}
	return route
}
