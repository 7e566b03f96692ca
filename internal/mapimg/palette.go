package mapimg

import "image/color"

// PaletteVersion identifies the composite palette. Bump it whenever a band
// or color changes so stored renders are never silently re-interpreted.
const PaletteVersion = "v1"

// PaletteEntry maps a composite-score band to a display color. Entries are
// ordered by descending MinScore; the first band the score reaches wins.
type PaletteEntry struct {
	MinScore float64
	Color    color.RGBA
}

// CompositePalette is the fixed score-to-color table for composite renders.
// Bands step from the unshaded map body up to saturated green at a full
// window of very-high cycles.
var CompositePalette = []PaletteEntry{
	{3.2, color.RGBA{0, 104, 55, 255}},
	{2.4, color.RGBA{26, 152, 80, 255}},
	{1.6, color.RGBA{102, 189, 99, 255}},
	{0.8, color.RGBA{166, 217, 106, 255}},
	{0.2, color.RGBA{217, 239, 139, 255}},
	{0.0, color.RGBA{255, 255, 255, 255}},
}

// noDataColor marks cells outside the valid map region.
var noDataColor = color.RGBA{224, 224, 224, 255}

// paletteColor resolves a composite cell to its display color.
func paletteColor(c CompositeCell) color.RGBA {
	if c.NoData {
		return noDataColor
	}
	for _, e := range CompositePalette {
		if c.Score >= e.MinScore {
			return e.Color
		}
	}
	return CompositePalette[len(CompositePalette)-1].Color
}
