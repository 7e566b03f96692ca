package mapimg

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Tier is an ordinal growth-probability bucket derived from a raw pixel.
type Tier int8

const (
	// TierNoData marks cells outside the map's valid data region
	// (background, legend, borders). Excluded from aggregation.
	TierNoData Tier = -1

	TierNone     Tier = 0
	TierLow      Tier = 1
	TierModerate Tier = 2
	TierHigh     Tier = 3
	TierVeryHigh Tier = 4
)

// MaxTier is the highest signal tier.
const MaxTier = TierVeryHigh

func (t Tier) String() string {
	switch t {
	case TierNoData:
		return "no-data"
	case TierNone:
		return "none"
	case TierLow:
		return "low"
	case TierModerate:
		return "moderate"
	case TierHigh:
		return "high"
	case TierVeryHigh:
		return "very-high"
	}
	return fmt.Sprintf("tier(%d)", int8(t))
}

// RawMap is one fetched growth-probability map: an immutable RGB pixel grid
// plus its capture timestamp. Never mutated after construction.
type RawMap struct {
	Width      int
	Height     int
	CapturedAt time.Time

	// pix holds packed RGB samples, 3 bytes per pixel, row-major.
	pix []uint8
}

// NewRawMap copies the pixels of img into a RawMap stamped with capturedAt.
func NewRawMap(img image.Image, capturedAt time.Time) *RawMap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	m := &RawMap{
		Width:      w,
		Height:     h,
		CapturedAt: capturedAt,
		pix:        make([]uint8, w*h*3),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			m.pix[i] = uint8(r >> 8)
			m.pix[i+1] = uint8(g >> 8)
			m.pix[i+2] = uint8(bb >> 8)
			i += 3
		}
	}
	return m
}

// RawMapFromPix builds a RawMap directly from a packed RGB buffer. The buffer
// is copied. Used when loading stored maps from the history database.
func RawMapFromPix(width, height int, pix []uint8, capturedAt time.Time) (*RawMap, error) {
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("pixel buffer length %d does not match %dx%d", len(pix), width, height)
	}
	cp := make([]uint8, len(pix))
	copy(cp, pix)
	return &RawMap{Width: width, Height: height, CapturedAt: capturedAt, pix: cp}, nil
}

// RGBAt returns the sample at (x, y). Caller must stay in bounds.
func (m *RawMap) RGBAt(x, y int) (r, g, b uint8) {
	i := (y*m.Width + x) * 3
	return m.pix[i], m.pix[i+1], m.pix[i+2]
}

// Pix returns a copy of the packed RGB buffer.
func (m *RawMap) Pix() []uint8 {
	cp := make([]uint8, len(m.pix))
	copy(cp, m.pix)
	return cp
}

// Image renders the raw samples into a new RGBA image.
func (m *RawMap) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.RGBAt(x, y)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// IntensityGrid is the per-cycle classified growth signal for one RawMap.
// It is derived deterministically and recomputed each cycle, never persisted.
type IntensityGrid struct {
	Width  int
	Height int
	Tiers  []Tier
}

// NewIntensityGrid allocates a grid with every cell at TierNoData.
func NewIntensityGrid(width, height int) *IntensityGrid {
	tiers := make([]Tier, width*height)
	for i := range tiers {
		tiers[i] = TierNoData
	}
	return &IntensityGrid{Width: width, Height: height, Tiers: tiers}
}

// At returns the tier at (x, y).
func (g *IntensityGrid) At(x, y int) Tier {
	return g.Tiers[y*g.Width+x]
}

// Set assigns the tier at (x, y).
func (g *IntensityGrid) Set(x, y int, t Tier) {
	g.Tiers[y*g.Width+x] = t
}

// CompositeCell is one aggregated cell of the composite grid.
type CompositeCell struct {
	// Score is the recency-weighted mean tier over the window grids that
	// have data at this cell, renormalized per cell.
	Score float64

	// HighWeight and VeryHighWeight sum the window weights of the cycles
	// whose tier reached TierHigh (resp. TierVeryHigh) at this cell, using
	// the window-level weights without per-cell renormalization.
	HighWeight     float64
	VeryHighWeight float64

	// HighCount and VeryHighCount count the cycles contributing to the
	// weights above. The overlay render ignores single-cycle flags.
	HighCount     uint8
	VeryHighCount uint8

	// NoData is set when every grid in the window lacks data here.
	NoData bool
}

// CompositeGrid is the recency-weighted aggregate of the window's intensity
// grids. Recomputed in full every cycle; never mutated incrementally.
type CompositeGrid struct {
	Width  int
	Height int
	Cells  []CompositeCell
}

// At returns the cell at (x, y).
func (g *CompositeGrid) At(x, y int) CompositeCell {
	return g.Cells[y*g.Width+x]
}
