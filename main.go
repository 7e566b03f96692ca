package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mushmap/internal/api"
	"github.com/banshee-data/mushmap/internal/config"
	"github.com/banshee-data/mushmap/internal/fetch"
	"github.com/banshee-data/mushmap/internal/fsutil"
	"github.com/banshee-data/mushmap/internal/history"
	"github.com/banshee-data/mushmap/internal/httputil"
	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/pipeline"
	"github.com/banshee-data/mushmap/internal/schedule"
	"github.com/banshee-data/mushmap/internal/timeutil"
)

var (
	//go:embed static/*
	staticFiles embed.FS
	devMode     = flag.Bool("dev", false, "Serve static files from ./static instead of the embedded copy")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "mushmap.db", "Path to the history database")
	configPath  = flag.String("config", "", "Path to a JSON config file")
	sourceURL   = flag.String("source-url", "", "Override the map source URL")
	runOnStart  = flag.Bool("run-on-start", false, "Run one cycle immediately at startup")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *sourceURL != "" {
		cfg.SourceURL = sourceURL
	}

	db, err := history.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	defer db.Close()

	store, err := history.NewStore(db, cfg.GetWindowSize())
	if err != nil {
		log.Fatalf("Failed to create history store: %v", err)
	}

	clock := timeutil.RealClock{}
	client := httputil.NewStandardClient(&http.Client{Timeout: cfg.GetFetchTimeout()})
	fetcher := fetch.NewFetcher(client, clock, cfg.GetSourceURL())
	classifier := mapimg.NewClassifier(cfg.GetRGBTolerance())
	renderer := mapimg.NewRenderer(cfg.GetDarkenFloor(), cfg.GetHighlightColor(), cfg.GetStabilityThreshold())
	artifacts := pipeline.NewArtifacts(fsutil.OSFileSystem{}, cfg.GetOutputDir())
	runner := pipeline.NewRunner(fetcher, store, classifier, renderer, artifacts, clock)

	times := make([]schedule.WallClockTime, 0, len(cfg.GetUpdateTimesUTC()))
	for _, s := range cfg.GetUpdateTimesUTC() {
		hour, minute, err := config.ParseWallClock(s)
		if err != nil {
			log.Fatalf("Invalid update time %q: %v", s, err)
		}
		times = append(times, schedule.WallClockTime{Hour: hour, Minute: minute})
	}
	scheduler := schedule.NewScheduler(runner, clock, times)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runOnStart {
		if err := runner.RunCycle(ctx); err != nil {
			log.Printf("Startup cycle failed: %v", err)
		}
	}

	// scheduler goroutine fires update cycles at the configured wall-clock times
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("scheduler terminated: %v", err)
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		apiMux := api.NewServer(runner, cfg).ServeMux()
		mux.Handle("/api/", apiMux)

		// serve static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to open embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("mushmap listening on %s (source=%s, window=%d)",
		*listen, cfg.GetSourceURL(), store.WindowSize())

	wg.Wait()
	scheduler.Stop()
	log.Println("shutdown complete")
}
