package snapshot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"warroom/internal/sqlcgen"
)

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"parentGroups":[]}`)
	}))
	defer srv.Close()

	b, err := NewHTTP(srv.URL+"/assets/warroom.json", nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"parentGroups":[]}` {
		t.Fatalf("unexpected body %s", b)
	}

	_, err = NewHTTP(srv.URL+"/missing", srv.Client()).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warroom.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := NewFile(path).Fetch(context.Background())
	if err != nil || string(b) != "{}" {
		t.Fatalf("unexpected result %q err=%v", b, err)
	}
	if _, err := NewFile(filepath.Join(dir, "nope.json")).Fetch(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

type fakeQueries struct {
	latestFn  func(ctx context.Context) (sqlcgen.WarroomSnapshot, error)
	byLabelFn func(ctx context.Context, label string) (sqlcgen.WarroomSnapshot, error)
}

func (f fakeQueries) GetLatestSnapshot(ctx context.Context) (sqlcgen.WarroomSnapshot, error) {
	return f.latestFn(ctx)
}

func (f fakeQueries) GetSnapshotByLabel(ctx context.Context, label string) (sqlcgen.WarroomSnapshot, error) {
	return f.byLabelFn(ctx, label)
}

func TestPostgresSource(t *testing.T) {
	q := fakeQueries{
		latestFn: func(context.Context) (sqlcgen.WarroomSnapshot, error) {
			return sqlcgen.WarroomSnapshot{ID: 2, Document: []byte(`{"latest":true}`)}, nil
		},
		byLabelFn: func(_ context.Context, label string) (sqlcgen.WarroomSnapshot, error) {
			if label == "demo" {
				return sqlcgen.WarroomSnapshot{ID: 1, Label: label, Document: []byte(`{"demo":true}`)}, nil
			}
			return sqlcgen.WarroomSnapshot{}, pgx.ErrNoRows
		},
	}

	b, err := NewPostgres(q, "").Fetch(context.Background())
	if err != nil || string(b) != `{"latest":true}` {
		t.Fatalf("unexpected latest %q err=%v", b, err)
	}
	b, err = NewPostgres(q, "demo").Fetch(context.Background())
	if err != nil || string(b) != `{"demo":true}` {
		t.Fatalf("unexpected labelled %q err=%v", b, err)
	}
	if _, err := NewPostgres(q, "other").Fetch(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warroom.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := Chain{NewFile(filepath.Join(dir, "missing.json")), NewFile(path)}
	if c.Name() != "file+file" {
		t.Fatalf("unexpected chain name %q", c.Name())
	}
	b, err := c.Fetch(context.Background())
	if err != nil || string(b) != `{"from":"file"}` {
		t.Fatalf("unexpected chain result %q err=%v", b, err)
	}

	if _, err := (Chain{NewFile(filepath.Join(dir, "missing.json"))}).Fetch(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected joined ErrNoSnapshot, got %v", err)
	}
	if _, err := (Chain{}).Fetch(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot for empty chain, got %v", err)
	}
}
