// Package geocode looks place names up against an Open-Meteo compatible
// geocoding endpoint. Concurrent lookups for the same name share one request
// and successful answers are cached.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const DefaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"

var ErrUpstream = errors.New("geocoding upstream error")

// Result is one candidate returned by the lookup.
type Result struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Admin1      string  `json:"admin1,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Cache stores successful lookups keyed by normalised query.
type Cache interface {
	Get(ctx context.Context, key string) ([]Result, bool, error)
	Set(ctx context.Context, key string, results []Result) error
}

// Recorder receives lookup outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveGeocodeLookup(outcome string)
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Count      int
	Language   string
	Cache      Cache
	Recorder   Recorder
}

type Client struct {
	log      zerolog.Logger
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	count    int
	language string
	cache    Cache
	rec      Recorder
	group    singleflight.Group
}

func New(log zerolog.Logger, opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	count := opts.Count
	if count <= 0 {
		count = 5
	}
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Client{
		log:      log,
		baseURL:  base,
		http:     hc,
		timeout:  timeout,
		count:    count,
		language: lang,
		cache:    cache,
		rec:      opts.Recorder,
	}
}

func cacheKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (c *Client) observe(outcome string) {
	if c.rec != nil {
		c.rec.ObserveGeocodeLookup(outcome)
	}
}

// Search returns the candidates for name, best first. An empty slice means
// the service knows no such place.
func (c *Client) Search(ctx context.Context, name string) ([]Result, error) {
	key := cacheKey(name)
	if key == "" {
		return nil, nil
	}

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("query", key).Msg("geocode cache read failed")
	} else if ok {
		c.observe("hit")
		return cached, nil
	}

	// The shared fetch outlives any single caller; each caller still gives up
	// on its own context.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		results, err := c.fetch(detached, key)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(detached, key, results); err != nil {
			c.log.Warn().Err(err).Str("query", key).Msg("geocode cache write failed")
		}
		return results, nil
	})

	select {
	case <-ctx.Done():
		c.observe("error")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.observe("error")
			return nil, res.Err
		}
		if res.Shared {
			c.observe("shared")
		} else {
			c.observe("miss")
		}
		return res.Val.([]Result), nil
	}
}

func (c *Client) fetch(ctx context.Context, name string) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	q := u.Query()
	q.Set("name", name)
	q.Set("count", strconv.Itoa(c.count))
	q.Set("language", c.language)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	if body.Results == nil {
		body.Results = []Result{}
	}
	return body.Results, nil
}
