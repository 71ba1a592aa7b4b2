// Package main runs the pool occupancy monitor.
//
// The monitor loads the current place collection from the backend, then
// keeps it reconciled against the backend's push streams and serves the
// projected view over a REST API.
//
// Usage:
//
//	pool_monitor [options]
//
// Options:
//
//	-backend URL        Backend base URL for bulk and summary fetches
//	                    (default: http://localhost:8001/v1, env: BACKEND_URL)
//	-transport NAME     Stream transport: sse or nats (default: sse, env: FEED_TRANSPORT)
//	-sse-base URL       SSE stream base URL (default: backend URL, env: SSE_BASE_URL)
//	-nats-url URL       NATS server URL (default: nats://localhost:4222, env: NATS_URL)
//	-monitoring-subject Subject/path of the place stream (env: MONITORING_SUBJECT)
//	-supplies-subject   Subject/path of the supply stream (env: SUPPLIES_SUBJECT)
//	-refresh            Treat the place stream as full refreshes instead of
//	                    incremental envelopes
//	-backoff NAME       Reconnect backoff policy: multiplier or doubling
//	-max-retries N      Reconnect attempts before giving up (default: 5)
//	-idle-timeout D     Heartbeat window before forcing a reconnect (default: 30s)
//	-debounce D         Event batching window (default: 100ms)
//	-names PATH         SQLite place-name store (optional)
//	-archive            Enable the ClickHouse/PostgreSQL archive
//	-ch-host, -ch-port, -ch-database, -ch-user, -ch-password
//	-pg-host, -pg-port, -pg-database, -pg-user, -pg-password
//	-port N             HTTP port (default: 8080)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pool_monitor/internal/api"
	"pool_monitor/internal/client"
	"pool_monitor/internal/engine"
	"pool_monitor/internal/feed"
	"pool_monitor/internal/monitor"
	"pool_monitor/internal/storage"
)

// startRetryPause is the wait between failed initial-fetch attempts.
const startRetryPause = 5 * time.Second

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	backendURL := flag.String("backend", envOrDefault("BACKEND_URL", "http://localhost:8001/v1"), "Backend base URL")
	transport := flag.String("transport", envOrDefault("FEED_TRANSPORT", "sse"), "Stream transport (sse or nats)")
	sseBase := flag.String("sse-base", envOrDefault("SSE_BASE_URL", ""), "SSE stream base URL (default: backend URL)")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	monitoringSubject := flag.String("monitoring-subject", envOrDefault("MONITORING_SUBJECT", "monitoring.places"), "Place stream subject/path")
	suppliesSubject := flag.String("supplies-subject", envOrDefault("SUPPLIES_SUBJECT", "monitoring.supplies"), "Supply stream subject/path")
	refreshMode := flag.Bool("refresh", false, "Place stream carries full refreshes")

	backoffName := flag.String("backoff", envOrDefault("FEED_BACKOFF", "multiplier"), "Backoff policy (multiplier or doubling)")
	maxRetries := flag.Int("max-retries", envOrDefaultInt("FEED_MAX_RETRIES", feed.DefaultMaxRetries), "Reconnect attempts before giving up")
	idleTimeout := flag.Duration("idle-timeout", feed.DefaultIdleTimeout, "Heartbeat window before forcing a reconnect")
	debounce := flag.Duration("debounce", feed.DefaultDebounceWindow, "Event batching window")

	namesPath := flag.String("names", envOrDefault("NAMES_DB", ""), "SQLite place-name store path")

	archiveEnabled := flag.Bool("archive", false, "Enable the event/snapshot archive")
	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "pool_monitor"), "ClickHouse database")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "pool_monitor"), "PostgreSQL database")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "pool_monitor"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "pool_monitor"), "PostgreSQL password")

	port := flag.Int("port", envOrDefaultInt("PORT", 8080), "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", envOrDefault("API_KEYS", ""), "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backoff, err := feed.PolicyByName(*backoffName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Build the two streams on the selected transport.
	var monitoringStream, suppliesStream feed.Stream
	switch *transport {
	case "sse":
		base := *sseBase
		if base == "" {
			base = *backendURL
		}
		base = strings.TrimRight(base, "/")
		monitoringStream = feed.NewSSEStream("monitoring", base+"/"+*monitoringSubject, nil)
		suppliesStream = feed.NewSSEStream("supplies", base+"/"+*suppliesSubject, nil)
	case "nats":
		monitoringStream = feed.NewNATSStream("monitoring", *natsURL, *monitoringSubject)
		suppliesStream = feed.NewNATSStream("supplies", *natsURL, *suppliesSubject)
	default:
		fmt.Fprintf(os.Stderr, "Unknown transport: %s\n", *transport)
		os.Exit(1)
	}

	monitoringMode := engine.ModeIncremental
	if *refreshMode {
		monitoringMode = engine.ModeRefresh
	}

	// Load the place-name overrides when a store is configured.
	var names map[int64]string
	if *namesPath != "" {
		store, err := storage.Open(*namesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening name store: %v\n", err)
			os.Exit(1)
		}
		names, err = store.All(ctx)
		_ = store.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading names: %v\n", err)
			os.Exit(1)
		}
		log.Printf("Loaded %d place names from %s", len(names), *namesPath)
	}

	// Open the archive when requested.
	var archive *storage.Archive
	if *archiveEnabled {
		archive, err = storage.OpenArchive(ctx, storage.Config{
			ClickHouse: storage.ClickHouseConfig{
				Host: *chHost, Port: *chPort, Database: *chDB, User: *chUser, Password: *chPassword,
			},
			Postgres: storage.PostgresConfig{
				Host: *pgHost, Port: *pgPort, Database: *pgDB, User: *pgUser, Password: *pgPassword,
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening archive: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = archive.Close() }()

		if err := archive.CreateSchemas(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating schemas: %v\n", err)
			os.Exit(1)
		}
	}

	eng := engine.New(engine.Config{
		Client:   client.New(*backendURL, nil),
		Resolver: monitor.NewNameResolver(names),
		Archive:  archive,
		Streams: []engine.StreamConfig{
			{
				Stream:      monitoringStream,
				Mode:        monitoringMode,
				Kind:        monitor.PayloadPlace,
				Backoff:     backoff,
				MaxRetries:  *maxRetries,
				IdleTimeout: *idleTimeout,
			},
			{
				Stream:      suppliesStream,
				Mode:        engine.ModeIncremental,
				Kind:        monitor.PayloadSupply,
				Backoff:     backoff,
				MaxRetries:  *maxRetries,
				IdleTimeout: *idleTimeout,
			},
		},
		DebounceWindow: *debounce,
	})

	// The initial fetch can race a backend that is still coming up:
	// keep retrying until it succeeds or we are told to stop.
	for {
		err := eng.Start(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("Start failed, retrying in %s: %v", startRetryPause, err)
		select {
		case <-time.After(startRetryPause):
		case <-ctx.Done():
			return
		}
	}
	defer eng.Stop()

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(eng, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
