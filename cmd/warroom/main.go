package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"warroom/internal/db"
	"warroom/internal/geocode"
	"warroom/internal/httpapi"
	"warroom/internal/metrics"
	"warroom/internal/snapshot"
	"warroom/internal/warroom"
)

func main() {
	addr := envOr("HTTP_ADDR", ":8090")
	logLevel := envOr("LOG_LEVEL", "info")
	databaseURL := envOr("DATABASE_URL", "")
	snapshotLabel := envOr("SNAPSHOT_LABEL", "")
	snapshotURL := envOr("SNAPSHOT_URL", "")
	snapshotPath := envOr("SNAPSHOT_PATH", "assets/warroom.json")
	geocoderURL := envOr("GEOCODER_URL", "")
	redisAddr := envOr("REDIS_ADDR", "")
	geocodeTTL := durationOr("GEOCODE_CACHE_TTL", 24*time.Hour)
	allowedOrigins := splitList(envOr("MAP_ALLOWED_ORIGINS", ""))

	logger := httpapi.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pool *db.Pool
	if databaseURL != "" {
		p, err := db.Open(ctx, databaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	cache := geocodeCache(ctx, logger, redisAddr, geocodeTTL)
	geocoder := geocode.New(logger.With().Str("component", "geocode").Logger(), geocode.Options{
		BaseURL:  geocoderURL,
		Cache:    cache,
		Recorder: m,
	})

	store := warroom.New(warroom.Options{
		Logger:   logger.With().Str("component", "store").Logger(),
		Geocoder: geocoder,
		Recorder: m,
	})

	var sources snapshot.Chain
	if pool != nil {
		sources = append(sources, snapshot.NewPostgres(pool.Queries(), snapshotLabel))
	}
	if snapshotURL != "" {
		sources = append(sources, snapshot.NewHTTP(snapshotURL, &http.Client{Timeout: 10 * time.Second}))
	}
	if snapshotPath != "" {
		sources = append(sources, snapshot.NewFile(snapshotPath))
	}
	if !store.Initialize(ctx, sources) {
		logger.Warn().Str("sources", sources.Name()).Msg("no snapshot loaded; serving empty state")
	}

	h := httpapi.NewHandler(logger, store, httpapi.Options{
		Pool:           pool,
		Metrics:        m,
		AllowedOrigins: allowedOrigins,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("warroom listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

// geocodeCache prefers Redis when configured and reachable, so lookups are
// shared between replicas. Otherwise results are cached in process.
func geocodeCache(ctx context.Context, logger zerolog.Logger, addr string, ttl time.Duration) geocode.Cache {
	if addr == "" {
		return geocode.NewMemoryCache(ttl)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable; using in-memory geocode cache")
		_ = client.Close()
		return geocode.NewMemoryCache(ttl)
	}
	return geocode.NewRedisCache(client, "warroom:geocode:", ttl)
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
