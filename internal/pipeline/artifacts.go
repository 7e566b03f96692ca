package pipeline

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/mushmap/internal/fsutil"
	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/monitoring"
)

// CycleCoverage summarizes one window entry for the trend charts: the
// fraction of data-bearing cells at each tier.
type CycleCoverage struct {
	CapturedAt time.Time               `json:"captured_at"`
	ByTier     map[mapimg.Tier]float64 `json:"by_tier"`
}

// Snapshot is the output of one successful cycle. All fields are immutable
// once published.
type Snapshot struct {
	RunID          string
	CompletedAt    time.Time
	PaletteVersion string

	RawPNG       []byte
	CompositePNG []byte
	OverlayPNG   []byte

	Newest    *mapimg.RawMap
	Composite *mapimg.CompositeGrid
	Coverage  []CycleCoverage
}

// Artifacts holds the two externally visible outputs (plus the overlay
// supplement) behind a read lock. Each successful cycle replaces the whole
// snapshot; readers before the first cycle get ErrNotAvailable.
type Artifacts struct {
	mu   sync.RWMutex
	snap *Snapshot

	fs     fsutil.FileSystem
	outDir string
}

// NewArtifacts creates an Artifacts holder. When outDir is non-empty each
// publish also mirrors the PNGs there through fs (atomic tmp+rename), so a
// crashed process leaves the last good files on disk.
func NewArtifacts(fs fsutil.FileSystem, outDir string) *Artifacts {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Artifacts{fs: fs, outDir: outDir}
}

// Publish atomically replaces the current snapshot.
func (a *Artifacts) Publish(s *Snapshot) {
	a.mu.Lock()
	a.snap = s
	a.mu.Unlock()

	if a.outDir == "" {
		return
	}
	if err := a.fs.MkdirAll(a.outDir, 0o755); err != nil {
		monitoring.Logf("[Artifacts] Failed to create output dir %s: %v", a.outDir, err)
		return
	}
	a.mirror("latest_raw.png", s.RawPNG)
	a.mirror("latest_composite.png", s.CompositePNG)
	a.mirror("latest_overlay.png", s.OverlayPNG)
}

// mirror writes data to name under the output directory via a temp file and
// rename, so readers on disk never see a partial image.
func (a *Artifacts) mirror(name string, data []byte) {
	final := filepath.Join(a.outDir, name)
	tmp := final + ".tmp"
	if err := a.fs.WriteFile(tmp, data, 0o644); err != nil {
		monitoring.Logf("[Artifacts] Failed to write %s: %v", tmp, err)
		return
	}
	if err := a.fs.Rename(tmp, final); err != nil {
		monitoring.Logf("[Artifacts] Failed to replace %s: %v", final, err)
	}
}

// Latest returns the current snapshot, or ErrNotAvailable before the first
// successful cycle.
func (a *Artifacts) Latest() (*Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap == nil {
		return nil, ErrNotAvailable
	}
	return a.snap, nil
}

// LatestRaw returns the newest raw map render.
func (a *Artifacts) LatestRaw() ([]byte, error) {
	s, err := a.Latest()
	if err != nil {
		return nil, err
	}
	return s.RawPNG, nil
}

// LatestComposite returns the newest composite render.
func (a *Artifacts) LatestComposite() ([]byte, error) {
	s, err := a.Latest()
	if err != nil {
		return nil, err
	}
	return s.CompositePNG, nil
}

// LatestOverlay returns the newest overlay render.
func (a *Artifacts) LatestOverlay() ([]byte, error) {
	s, err := a.Latest()
	if err != nil {
		return nil, err
	}
	return s.OverlayPNG, nil
}
