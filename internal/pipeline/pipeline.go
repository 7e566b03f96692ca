// Package pipeline orchestrates one fetch-classify-composite-render cycle
// and owns the published artifacts.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mushmap/internal/fetch"
	"github.com/banshee-data/mushmap/internal/history"
	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/monitoring"
	"github.com/banshee-data/mushmap/internal/timeutil"
)

// Status describes the runner for the /api/status endpoint.
type Status struct {
	InProgress      bool       `json:"in_progress"`
	WindowLen       int        `json:"window_len"`
	WindowBound     int        `json:"window_bound"`
	LastRunID       string     `json:"last_run_id,omitempty"`
	LastRunTime     *time.Time `json:"last_run_time,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	LastSuccessTime *time.Time `json:"last_success_time,omitempty"`
}

// Runner executes pipeline cycles. At most one mutating run is in flight at
// a time: a concurrent invocation is rejected with ErrCycleInProgress rather
// than queued, so overlapping schedule and manual triggers can never
// composite a half-updated window.
type Runner struct {
	fetcher    *fetch.Fetcher
	store      *history.Store
	classifier *mapimg.Classifier
	renderer   *mapimg.Renderer
	artifacts  *Artifacts
	clock      timeutil.Clock

	runMu sync.Mutex // held for the whole fetch+append+recompute+render span

	statusMu sync.RWMutex
	status   Status
}

// NewRunner wires a Runner from its collaborators.
func NewRunner(fetcher *fetch.Fetcher, store *history.Store, classifier *mapimg.Classifier,
	renderer *mapimg.Renderer, artifacts *Artifacts, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		fetcher:    fetcher,
		store:      store,
		classifier: classifier,
		renderer:   renderer,
		artifacts:  artifacts,
		clock:      clock,
		status:     Status{WindowBound: store.WindowSize()},
	}
}

// Artifacts returns the artifact holder shared with the serving layer.
func (r *Runner) Artifacts() *Artifacts {
	return r.artifacts
}

// History returns the backing history store.
func (r *Runner) History() *history.Store {
	return r.store
}

// Status reports the runner's current state.
func (r *Runner) Status() Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	s := r.status
	if n, err := r.store.Len(); err == nil {
		s.WindowLen = n
	}
	return s
}

// RunCycle performs one full pipeline cycle. On any error the history window
// and the published artifacts are left exactly as they were: the fetched map
// is only appended after classification, compositing, and rendering have all
// succeeded.
func (r *Runner) RunCycle(ctx context.Context) error {
	if !r.runMu.TryLock() {
		return ErrCycleInProgress
	}
	defer r.runMu.Unlock()

	runID := uuid.NewString()
	started := r.clock.Now()
	r.setInProgress(runID, true)

	err := r.runCycleLocked(ctx, runID)

	r.statusMu.Lock()
	r.status.InProgress = false
	now := r.clock.Now()
	r.status.LastRunTime = &now
	if err != nil {
		r.status.LastError = err.Error()
	} else {
		r.status.LastError = ""
		r.status.LastSuccessTime = &now
	}
	r.statusMu.Unlock()

	if err != nil {
		monitoring.Logf("[Pipeline] Cycle %s failed after %v: %v", runID, r.clock.Since(started), err)
		return err
	}
	monitoring.Logf("[Pipeline] Cycle %s completed in %v", runID, r.clock.Since(started))
	return nil
}

func (r *Runner) setInProgress(runID string, inProgress bool) {
	r.statusMu.Lock()
	r.status.InProgress = inProgress
	r.status.LastRunID = runID
	r.statusMu.Unlock()
}

func (r *Runner) runCycleLocked(ctx context.Context, runID string) error {
	fetched, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	stored, err := r.store.Window()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// The new map must be compatible with the stored history before it may
	// join the window.
	for _, m := range stored {
		if m.Width != fetched.Width || m.Height != fetched.Height {
			return fmt.Errorf("%w: fetched map is %dx%d, stored history is %dx%d",
				ErrExtraction, fetched.Width, fetched.Height, m.Width, m.Height)
		}
	}

	// Build the candidate window: stored maps plus the fetched one, bounded.
	window := append(stored, fetched)
	if bound := r.store.WindowSize(); len(window) > bound {
		window = window[len(window)-bound:]
	}

	grids := make([]*mapimg.IntensityGrid, len(window))
	coverage := make([]CycleCoverage, len(window))
	for i, m := range window {
		grids[i] = r.classifier.Extract(m)
		coverage[i] = coverageOf(m.CapturedAt, grids[i])
	}

	composite, err := mapimg.Composite(grids)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	rawPNG, err := r.renderer.RenderRaw(fetched)
	if err != nil {
		return fmt.Errorf("failed to render raw map: %w", err)
	}
	compositePNG, err := r.renderer.RenderComposite(composite)
	if err != nil {
		return fmt.Errorf("failed to render composite: %w", err)
	}
	overlayPNG, err := r.renderer.RenderOverlay(fetched, composite)
	if err != nil {
		return fmt.Errorf("failed to render overlay: %w", err)
	}

	// Everything derived cleanly; only now does the cycle mutate state.
	if err := r.store.Append(fetched); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	r.artifacts.Publish(&Snapshot{
		RunID:          runID,
		CompletedAt:    r.clock.Now().UTC(),
		PaletteVersion: mapimg.PaletteVersion,
		RawPNG:         rawPNG,
		CompositePNG:   compositePNG,
		OverlayPNG:     overlayPNG,
		Newest:         fetched,
		Composite:      composite,
		Coverage:       coverage,
	})
	return nil
}

// coverageOf computes the fraction of data-bearing cells at each tier.
func coverageOf(capturedAt time.Time, g *mapimg.IntensityGrid) CycleCoverage {
	counts := make(map[mapimg.Tier]int)
	data := 0
	for _, t := range g.Tiers {
		if t == mapimg.TierNoData {
			continue
		}
		counts[t]++
		data++
	}
	byTier := make(map[mapimg.Tier]float64, len(counts))
	if data > 0 {
		for t, n := range counts {
			byTier[t] = float64(n) / float64(data)
		}
	}
	return CycleCoverage{CapturedAt: capturedAt, ByTier: byTier}
}
