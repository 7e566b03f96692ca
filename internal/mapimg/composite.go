package mapimg

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// RecencyWeights returns the window weights for n grids ordered oldest to
// newest: a linear ramp 1..n normalized to sum to 1. At the full window of
// four this is 0.1/0.2/0.3/0.4, so the newest cycle always outweighs any
// older one and a single observation contributes strictly more the more
// recent it is.
func RecencyWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = float64(i + 1)
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// Composite combines the window's intensity grids, oldest to newest, into a
// single recency-weighted composite. Weights are normalized over however
// many grids are present, so a cold-start window of one grid composites to
// that grid's own tier values.
//
// Per cell, only grids with data contribute; their weights are renormalized
// over the data-bearing subset. A cell with no data in any grid is no-data
// in the composite.
func Composite(grids []*IntensityGrid) (*CompositeGrid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("composite of empty window")
	}
	w, h := grids[0].Width, grids[0].Height
	for i, g := range grids {
		if g.Width != w || g.Height != h {
			return nil, fmt.Errorf("grid %d is %dx%d, want %dx%d", i, g.Width, g.Height, w, h)
		}
	}

	weights := RecencyWeights(len(grids))
	out := &CompositeGrid{Width: w, Height: h, Cells: make([]CompositeCell, w*h)}

	for idx := range out.Cells {
		var cell CompositeCell
		var sum, wsum float64

		for i, g := range grids {
			tier := g.Tiers[idx]
			if tier == TierNoData {
				continue
			}
			wi := weights[i]
			sum += wi * float64(tier)
			wsum += wi

			if tier >= TierHigh {
				cell.HighWeight += wi
				cell.HighCount++
			}
			if tier >= TierVeryHigh {
				cell.VeryHighWeight += wi
				cell.VeryHighCount++
			}
		}

		if wsum == 0 {
			cell.NoData = true
		} else {
			cell.Score = sum / wsum
		}
		out.Cells[idx] = cell
	}

	return out, nil
}
