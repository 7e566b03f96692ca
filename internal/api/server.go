package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/mushmap/internal/config"
	"github.com/banshee-data/mushmap/internal/geo"
	"github.com/banshee-data/mushmap/internal/monitoring"
	"github.com/banshee-data/mushmap/internal/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	runner *pipeline.Runner
	cfg    *config.Config
}

func NewServer(runner *pipeline.Runner, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Empty()
	}
	return &Server{
		runner: runner,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/maps/raw", s.serveRawMap)
	mux.HandleFunc("/api/maps/composite", s.serveCompositeMap)
	mux.HandleFunc("/api/maps/overlay", s.serveOverlayMap)
	mux.HandleFunc("/api/run", s.triggerRun)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/regions.geojson", s.serveRegionsGeoJSON)
	mux.HandleFunc("/api/regions.kml", s.serveRegionsKML)
	mux.HandleFunc("/api/charts/trend.png", s.serveTrendChart)
	mux.HandleFunc("/api/charts/tiers", s.serveTierChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// servePNG writes one of the published map images, translating
// "no cycle has completed yet" into a 503 the client can retry.
func (s *Server) servePNG(w http.ResponseWriter, r *http.Request, fetch func() ([]byte, error)) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	png, err := fetch()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotAvailable) {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No map available yet")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to load map")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) serveRawMap(w http.ResponseWriter, r *http.Request) {
	s.servePNG(w, r, s.runner.Artifacts().LatestRaw)
}

func (s *Server) serveCompositeMap(w http.ResponseWriter, r *http.Request) {
	s.servePNG(w, r, s.runner.Artifacts().LatestComposite)
}

func (s *Server) serveOverlayMap(w http.ResponseWriter, r *http.Request) {
	s.servePNG(w, r, s.runner.Artifacts().LatestOverlay)
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.runner.RunCycle(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			s.writeJSONError(w, http.StatusConflict, "A cycle is already in progress")
			return
		}
		s.writeJSONError(w, http.StatusBadGateway, "Cycle failed: "+err.Error())
		return
	}
	status := s.runner.Status()
	if err := json.NewEncoder(w).Encode(status); err != nil {
		monitoring.Logf("[API] Failed to write run response: %v", err)
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := json.NewEncoder(w).Encode(s.runner.Status()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
	}
}

// historyEntry is one stored map in the /api/history listing.
type historyEntry struct {
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	window, err := s.runner.History().Window()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	entries := make([]historyEntry, 0, len(window))
	for _, m := range window {
		entries = append(entries, historyEntry{
			CapturedAt: m.CapturedAt,
			Width:      m.Width,
			Height:     m.Height,
		})
	}
	if err := json.NewEncoder(w).Encode(map[string]any{
		"window_size": s.runner.History().WindowSize(),
		"entries":     entries,
	}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write history")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	west, east, north, south := s.cfg.GetBounds()
	payload := map[string]any{
		"source_url":          s.cfg.GetSourceURL(),
		"window_size":         s.cfg.GetWindowSize(),
		"rgb_tolerance":       s.cfg.GetRGBTolerance(),
		"darken_floor":        s.cfg.GetDarkenFloor(),
		"stability_threshold": s.cfg.GetStabilityThreshold(),
		"update_times_utc":    s.cfg.GetUpdateTimesUTC(),
		"bounds": map[string]float64{
			"west": west, "east": east, "north": north, "south": south,
		},
		"region_min_cells": s.cfg.GetRegionMinCells(),
		"region_eps":       s.cfg.GetRegionEps(),
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
	}
}

// latestRegions extracts regions from the current composite snapshot.
func (s *Server) latestRegions() ([]geo.Region, *geo.Mapper, error) {
	snap, err := s.runner.Artifacts().Latest()
	if err != nil {
		return nil, nil, err
	}
	west, east, north, south := s.cfg.GetBounds()
	mapper, err := geo.NewMapper(geo.Bounds{West: west, East: east, North: north, South: south},
		snap.Composite.Width, snap.Composite.Height)
	if err != nil {
		return nil, nil, err
	}
	regions := geo.ExtractRegions(snap.Composite, geo.RegionParams{
		ScoreThreshold: geo.DefaultScoreThreshold,
		Eps:            s.cfg.GetRegionEps(),
		MinCells:       s.cfg.GetRegionMinCells(),
	})
	return regions, mapper, nil
}

func (s *Server) serveRegionsGeoJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	regions, mapper, err := s.latestRegions()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotAvailable) {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No composite available yet")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to extract regions")
		return
	}
	payload, err := geo.ToGeoJSON(regions, mapper)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to encode regions")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(payload)
}

func (s *Server) serveRegionsKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	regions, mapper, err := s.latestRegions()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotAvailable) {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No composite available yet")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to extract regions")
		return
	}
	payload, err := geo.ToKML(regions, mapper)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to encode regions")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Write(payload)
}
