package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ossmetrics/bugdash/internal/bugzilla"
	"github.com/ossmetrics/bugdash/internal/cache"
	"github.com/ossmetrics/bugdash/internal/config"
	"github.com/ossmetrics/bugdash/internal/dashboard"
	"github.com/ossmetrics/bugdash/internal/queries"
	"github.com/ossmetrics/bugdash/internal/redash"
)

const (
	defaultBugzillaURL = "https://bugzilla.mozilla.org"
	defaultHTTPPort    = "8085"
)

var (
	version  = flag.Bool("version", false, "Print version and exit")
	debug    = flag.Bool("debug", false, "Enable debug logging")
	httpMode = flag.Bool("http", false, "Enable HTTP/SSE transport instead of stdio")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("bugdash v0.1.0")
		os.Exit(0)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	bugzillaURL := os.Getenv("BUGZILLA_URL")
	if bugzillaURL == "" {
		bugzillaURL = defaultBugzillaURL
	}

	redashURL := os.Getenv("REDASH_URL")
	if redashURL == "" {
		log.Fatal("REDASH_URL must be set")
	}

	cacheCfg := config.DefaultCacheConfig()
	resultCache := cache.New(cacheCfg.TTL, cacheCfg.CleanupInterval)
	defer resultCache.Close()

	bugClient := bugzilla.NewClient(bugzilla.Config{
		BaseURL: bugzillaURL,
		APIKey:  os.Getenv("BUGZILLA_API_KEY"),
		Logger:  logger,
	})

	queryClient := redash.NewClient(redash.Config{
		BaseURL: redashURL,
		APIKey:  os.Getenv("REDASH_API_KEY"),
		Poll:    config.DefaultPollConfig(),
		Logger:  logger,
	})

	svc := queries.NewService(bugClient, queryClient, resultCache, logger)

	srv := dashboard.NewServer(dashboard.Config{
		Name:    "bugdash",
		Version: "0.1.0",
	}, svc, logger)

	logger.Info("Dashboard backend configured",
		"bugzilla_url", bugzillaURL,
		"redash_url", redashURL,
		"cache_ttl", cacheCfg.TTL)

	if *httpMode {
		httpPort := os.Getenv("HTTP_PORT")
		if httpPort == "" {
			httpPort = defaultHTTPPort
		}
		if err := srv.ServeHTTP(":" + httpPort); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
		return
	}

	if err := srv.Serve(); err != nil {
		log.Fatalf("stdio server failed: %v", err)
	}
}
