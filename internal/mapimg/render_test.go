package mapimg

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
)

func testRenderer() *Renderer {
	return NewRenderer(0.75, [3]uint8{0, 0, 255}, 0.7)
}

func decodeRGBA(t *testing.T, data []byte, x, y int) color.RGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding rendered PNG: %v", err)
	}
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestRenderDeterministic(t *testing.T) {
	m := buildRawMap(t, 6, 4, 176, 221, 156)
	grids := []*IntensityGrid{gridOf(6, 4, TierHigh), gridOf(6, 4, TierHigh)}
	comp, err := Composite(grids)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}

	r := testRenderer()
	for name, render := range map[string]func() ([]byte, error){
		"raw":       func() ([]byte, error) { return r.RenderRaw(m) },
		"composite": func() ([]byte, error) { return r.RenderComposite(comp) },
		"overlay":   func() ([]byte, error) { return r.RenderOverlay(m, comp) },
	} {
		first, err := render()
		if err != nil {
			t.Fatalf("%s render: %v", name, err)
		}
		second, err := render()
		if err != nil {
			t.Fatalf("%s render: %v", name, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%s render is not byte-identical across calls", name)
		}
	}
}

func TestRenderCompositePalette(t *testing.T) {
	grids := []*IntensityGrid{gridOf(2, 1, TierVeryHigh)}
	grids[0].Set(1, 0, TierNoData)
	comp, err := Composite(grids)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}

	data, err := testRenderer().RenderComposite(comp)
	if err != nil {
		t.Fatalf("RenderComposite: %v", err)
	}

	if got := decodeRGBA(t, data, 0, 0); got != (color.RGBA{0, 104, 55, 255}) {
		t.Errorf("very-high cell color = %v, want saturated green", got)
	}
	if got := decodeRGBA(t, data, 1, 0); got != noDataColor {
		t.Errorf("no-data cell color = %v, want %v", got, noDataColor)
	}
}

func TestRenderOverlayHighlightsStableCells(t *testing.T) {
	m := buildRawMap(t, 1, 1, 200, 200, 200)
	grids := make([]*IntensityGrid, 4)
	for i := range grids {
		grids[i] = gridOf(1, 1, TierVeryHigh)
	}
	comp, err := Composite(grids)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}

	data, err := testRenderer().RenderOverlay(m, comp)
	if err != nil {
		t.Fatalf("RenderOverlay: %v", err)
	}
	// Summed very-high weight is 1.0, above the 0.7 threshold.
	if got := decodeRGBA(t, data, 0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("stable cell color = %v, want highlight blue", got)
	}
}

func TestRenderOverlayIgnoresSingleCycleFlags(t *testing.T) {
	m := buildRawMap(t, 1, 1, 200, 200, 200)
	grids := make([]*IntensityGrid, 4)
	for i := range grids {
		grids[i] = gridOf(1, 1, TierNone)
	}
	grids[3].Set(0, 0, TierVeryHigh)
	comp, err := Composite(grids)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}

	data, err := testRenderer().RenderOverlay(m, comp)
	if err != nil {
		t.Fatalf("RenderOverlay: %v", err)
	}
	// One flagged cycle: no highlight, no darkening.
	if got := decodeRGBA(t, data, 0, 0); got != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("single-flag cell color = %v, want unmodified base", got)
	}
}

func TestRenderOverlayDarkenFloor(t *testing.T) {
	m := buildRawMap(t, 1, 1, 200, 200, 200)
	grids := make([]*IntensityGrid, 4)
	for i := range grids {
		grids[i] = gridOf(1, 1, TierHigh)
	}
	comp, err := Composite(grids)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}

	data, err := testRenderer().RenderOverlay(m, comp)
	if err != nil {
		t.Fatalf("RenderOverlay: %v", err)
	}
	// High weight sums to 1.0, so without the floor the cell would go
	// black; the floor keeps it at 75% brightness.
	if got := decodeRGBA(t, data, 0, 0); got != (color.RGBA{150, 150, 150, 255}) {
		t.Errorf("darkened cell color = %v, want 150/150/150", got)
	}
}

func TestRenderOverlayDimensionMismatch(t *testing.T) {
	m := buildRawMap(t, 2, 2, 200, 200, 200)
	comp, err := Composite([]*IntensityGrid{gridOf(3, 3, TierNone)})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if _, err := testRenderer().RenderOverlay(m, comp); err == nil {
		t.Error("expected error for mismatched dimensions")
	}
}
