// Package snapshot provides the places a War Room snapshot document can be
// read from: an HTTP URL, a local file, or the latest row of the Postgres
// snapshot table. Every source returns the raw JSON document; validation is
// left to the store.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"

	"warroom/internal/sqlcgen"
)

var ErrNoSnapshot = errors.New("no snapshot available")

// maxDocumentBytes bounds how much of a remote document is read.
const maxDocumentBytes = 16 << 20

type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTP(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{URL: url, Client: client}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return b, nil
}

type FileSource struct {
	Path string
}

func NewFile(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, s.Path)
		}
		return nil, err
	}
	return b, nil
}

// Queries is the subset of sqlcgen the Postgres source needs.
type Queries interface {
	GetLatestSnapshot(ctx context.Context) (sqlcgen.WarroomSnapshot, error)
	GetSnapshotByLabel(ctx context.Context, label string) (sqlcgen.WarroomSnapshot, error)
}

// PostgresSource reads the newest snapshot row, optionally restricted to a
// label.
type PostgresSource struct {
	q     Queries
	label string
}

func NewPostgres(q Queries, label string) *PostgresSource {
	return &PostgresSource{q: q, label: label}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Fetch(ctx context.Context) ([]byte, error) {
	var (
		row sqlcgen.WarroomSnapshot
		err error
	)
	if s.label != "" {
		row, err = s.q.GetSnapshotByLabel(ctx, s.label)
	} else {
		row, err = s.q.GetLatestSnapshot(ctx)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot row: %w", err)
	}
	return row.Document, nil
}

// Chain tries each source in order and returns the first document fetched.
type Chain []interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

func (c Chain) Name() string {
	if len(c) == 0 {
		return "none"
	}
	name := c[0].Name()
	for _, s := range c[1:] {
		name += "+" + s.Name()
	}
	return name
}

func (c Chain) Fetch(ctx context.Context) ([]byte, error) {
	var errs []error
	for _, s := range c {
		b, err := s.Fetch(ctx)
		if err == nil {
			return b, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoSnapshot
	}
	return nil, errors.Join(errs...)
}
