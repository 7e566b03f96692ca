package mapimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Renderer turns raw maps and composite grids into encoded PNG images.
// Rendering is deterministic: the same input always produces byte-identical
// output for a given palette version.
type Renderer struct {
	// DarkenFloor is the minimum brightness factor applied by RenderOverlay.
	DarkenFloor float64

	// HighlightColor paints stable very-high cells in the overlay.
	HighlightColor color.RGBA

	// StabilityThreshold is the summed very-high weight above which an
	// overlay cell counts as stable.
	StabilityThreshold float64
}

// NewRenderer creates a Renderer with the given overlay parameters.
func NewRenderer(darkenFloor float64, highlight [3]uint8, stability float64) *Renderer {
	return &Renderer{
		DarkenFloor:        darkenFloor,
		HighlightColor:     color.RGBA{R: highlight[0], G: highlight[1], B: highlight[2], A: 255},
		StabilityThreshold: stability,
	}
}

// RenderRaw encodes the raw map's pixels as a PNG.
func (r *Renderer) RenderRaw(m *RawMap) ([]byte, error) {
	return encodePNG(m.Image())
}

// RenderComposite maps each composite cell through the fixed palette and
// encodes the result as a PNG.
func (r *Renderer) RenderComposite(g *CompositeGrid) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetRGBA(x, y, paletteColor(g.At(x, y)))
		}
	}
	return encodePNG(img)
}

// RenderOverlay draws the composite on top of the newest raw map: cells with
// high-tier signal in at least two cycles darken the base proportionally to
// their summed weight (never below DarkenFloor), and cells whose very-high
// weight clears StabilityThreshold are painted in HighlightColor.
func (r *Renderer) RenderOverlay(m *RawMap, g *CompositeGrid) ([]byte, error) {
	if m.Width != g.Width || m.Height != g.Height {
		return nil, fmt.Errorf("raw map is %dx%d, composite is %dx%d", m.Width, m.Height, g.Width, g.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			rr, gg, bb := m.RGBAt(x, y)
			cell := g.At(x, y)

			// Single-cycle flags are noise for the overlay.
			high := cell.HighWeight
			if cell.HighCount < 2 {
				high = 0
			}
			veryHigh := cell.VeryHighWeight
			if cell.VeryHighCount < 2 {
				veryHigh = 0
			}

			if veryHigh > r.StabilityThreshold {
				img.SetRGBA(x, y, r.HighlightColor)
				continue
			}

			factor := 1 - high
			if factor < r.DarkenFloor {
				factor = r.DarkenFloor
			}
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(rr) * factor),
				G: uint8(float64(gg) * factor),
				B: uint8(float64(bb) * factor),
				A: 255,
			})
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
