package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mushmap/internal/fetch"
	"github.com/banshee-data/mushmap/internal/fsutil"
	"github.com/banshee-data/mushmap/internal/history"
	"github.com/banshee-data/mushmap/internal/httputil"
	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/timeutil"
)

// harness wires a Runner against a mock HTTP source, a temp sqlite window,
// an in-memory artifact mirror, and a manual clock.
type harness struct {
	runner *Runner
	client *httputil.MockHTTPClient
	store  *history.Store
	fs     *fsutil.MemoryFileSystem
	clock  *timeutil.MockClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := history.NewDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := history.NewStore(db, 4)
	require.NoError(t, err)

	client := httputil.NewMockHTTPClient()
	clock := timeutil.NewMockClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	fetcher := fetch.NewFetcher(client, clock, "https://example.com/map.png")
	classifier := mapimg.NewClassifier(mapimg.DefaultRGBTolerance)
	renderer := mapimg.NewRenderer(0.75, [3]uint8{0, 0, 255}, 0.7)
	fs := fsutil.NewMemoryFileSystem()
	artifacts := NewArtifacts(fs, "out")

	return &harness{
		runner: NewRunner(fetcher, store, classifier, renderer, artifacts, clock),
		client: client,
		store:  store,
		fs:     fs,
		clock:  clock,
	}
}

// mapPNG encodes a 4x3 map filled with one color.
func mapPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	whiteMap    = color.RGBA{255, 255, 255, 255}
	veryHighMap = color.RGBA{112, 189, 143, 255}
)

// queueCycle queues one source map and advances the clock so every capture
// gets a distinct timestamp.
func (h *harness) queueCycle(t *testing.T, c color.RGBA) {
	t.Helper()
	h.client.AddResponse(http.StatusOK, mapPNG(t, c))
	h.clock.Advance(9 * time.Hour)
}

func TestRunCycleSuccess(t *testing.T) {
	h := newHarness(t)
	h.queueCycle(t, veryHighMap)

	require.NoError(t, h.runner.RunCycle(context.Background()))

	n, err := h.store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := h.runner.Artifacts().Latest()
	require.NoError(t, err)
	assert.NotEmpty(t, snap.RawPNG)
	assert.NotEmpty(t, snap.CompositePNG)
	assert.NotEmpty(t, snap.OverlayPNG)
	assert.Equal(t, mapimg.PaletteVersion, snap.PaletteVersion)
	require.Len(t, snap.Coverage, 1)

	// Cold start: a single very-high capture composites to its own tier.
	cell := snap.Composite.At(0, 0)
	assert.InDelta(t, float64(mapimg.TierVeryHigh), cell.Score, 1e-9)

	status := h.runner.Status()
	assert.False(t, status.InProgress)
	assert.NotEmpty(t, status.LastRunID)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastSuccessTime)
}

func TestRunCycleMirrorsArtifacts(t *testing.T) {
	h := newHarness(t)
	h.queueCycle(t, whiteMap)

	require.NoError(t, h.runner.RunCycle(context.Background()))

	for _, name := range []string{"latest_raw.png", "latest_composite.png", "latest_overlay.png"} {
		assert.True(t, h.fs.Exists(filepath.Join("out", name)), "missing mirror file %s", name)
	}
}

func TestFetchFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.client.AddResponse(http.StatusServiceUnavailable, nil)

	err := h.runner.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrFetch)

	n, storeErr := h.store.Len()
	require.NoError(t, storeErr)
	assert.Equal(t, 0, n, "failed cycle must not touch the window")

	_, artErr := h.runner.Artifacts().Latest()
	assert.ErrorIs(t, artErr, ErrNotAvailable)

	status := h.runner.Status()
	assert.NotEmpty(t, status.LastError)
	assert.Nil(t, status.LastSuccessTime)
}

func TestUndecodablePayloadIsFetchError(t *testing.T) {
	h := newHarness(t)
	h.client.AddResponse(http.StatusOK, []byte("not a png"))

	err := h.runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
}

func TestDimensionMismatchIsExtractionError(t *testing.T) {
	h := newHarness(t)
	h.queueCycle(t, whiteMap)
	require.NoError(t, h.runner.RunCycle(context.Background()))

	// Second capture has different dimensions.
	img := image.NewRGBA(image.Rect(0, 0, 7, 7))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	h.client.AddResponse(http.StatusOK, buf.Bytes())
	h.clock.Advance(9 * time.Hour)

	err := h.runner.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrExtraction)

	// The incompatible capture was not appended.
	n, storeErr := h.store.Len()
	require.NoError(t, storeErr)
	assert.Equal(t, 1, n)
}

func TestFailedCycleKeepsPreviousArtifacts(t *testing.T) {
	h := newHarness(t)
	h.queueCycle(t, veryHighMap)
	require.NoError(t, h.runner.RunCycle(context.Background()))

	before, err := h.runner.Artifacts().Latest()
	require.NoError(t, err)

	h.client.AddErrorResponse(context.DeadlineExceeded)
	require.Error(t, h.runner.RunCycle(context.Background()))

	after, err := h.runner.Artifacts().Latest()
	require.NoError(t, err)
	assert.Same(t, before, after, "failed cycle must not replace the snapshot")
}

func TestWindowBoundAcrossCycles(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 6; i++ {
		h.queueCycle(t, whiteMap)
		require.NoError(t, h.runner.RunCycle(context.Background()))
	}

	n, err := h.store.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	snap, err := h.runner.Artifacts().Latest()
	require.NoError(t, err)
	assert.Len(t, snap.Coverage, 4)
}

// A capture that scrolls out of the window stops influencing the composite.
func TestEvictedCaptureStopsContributing(t *testing.T) {
	h := newHarness(t)

	h.queueCycle(t, veryHighMap)
	require.NoError(t, h.runner.RunCycle(context.Background()))

	// After four white captures the very-high one has been evicted.
	for i := 0; i < 4; i++ {
		h.queueCycle(t, whiteMap)
		require.NoError(t, h.runner.RunCycle(context.Background()))
	}

	snap, err := h.runner.Artifacts().Latest()
	require.NoError(t, err)
	cell := snap.Composite.At(0, 0)
	assert.Equal(t, 0.0, cell.Score, "evicted capture must not contribute")
	assert.Zero(t, cell.VeryHighCount)
}

func TestConcurrentRunRejected(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	started := make(chan struct{})
	h.client.DoFunc = func(req *http.Request) (*http.Response, error) {
		close(started)
		<-release
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.runner.RunCycle(context.Background())
	}()

	<-started
	err := h.runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	<-firstDone
}

func TestStatusReportsWindow(t *testing.T) {
	h := newHarness(t)

	status := h.runner.Status()
	assert.Equal(t, 4, status.WindowBound)
	assert.Equal(t, 0, status.WindowLen)

	h.queueCycle(t, whiteMap)
	require.NoError(t, h.runner.RunCycle(context.Background()))

	status = h.runner.Status()
	assert.Equal(t, 1, status.WindowLen)
}
