package mapimg

// Tier classification is a fixed lookup-table mapping from published map
// colors to ordinal tiers. The anchors are the legend colors of the source
// map; a raw sample matches an anchor when every channel falls within the
// relative tolerance band around the anchor value.

// tierAnchor pairs a legend color with its tier.
type tierAnchor struct {
	r, g, b uint8
	tier    Tier
}

// defaultAnchors lists the legend colors of the source map, strongest first
// so overlapping tolerance bands resolve to the higher tier.
var defaultAnchors = []tierAnchor{
	{112, 189, 143, TierVeryHigh},
	{176, 221, 156, TierHigh},
	{205, 235, 176, TierModerate},
	{228, 244, 202, TierLow},
}

// DefaultRGBTolerance is the relative per-channel tolerance for anchor
// matches, mirroring the 3% band the source map's shading tolerates.
const DefaultRGBTolerance = 0.03

// Classifier converts raw maps into intensity grids. It is a pure function
// of its inputs: extracting the same RawMap twice yields bit-identical
// grids.
type Classifier struct {
	tolerance float64
	anchors   []tierAnchor
}

// NewClassifier creates a Classifier with the given relative tolerance.
func NewClassifier(tolerance float64) *Classifier {
	if tolerance <= 0 {
		tolerance = DefaultRGBTolerance
	}
	return &Classifier{tolerance: tolerance, anchors: defaultAnchors}
}

// Extract classifies every cell of m into a tier.
//
// Cells matching a legend anchor get that tier. Near-white cells are valid
// map body with no signal (TierNone). Neutral cells (borders, coastlines,
// legend text) and any unmatched color are TierNoData and excluded from
// aggregation downstream.
func (c *Classifier) Extract(m *RawMap) *IntensityGrid {
	g := NewIntensityGrid(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, gg, b := m.RGBAt(x, y)
			g.Set(x, y, c.classify(r, gg, b))
		}
	}
	return g
}

func (c *Classifier) classify(r, g, b uint8) Tier {
	for _, a := range c.anchors {
		if c.matches(r, a.r) && c.matches(g, a.g) && c.matches(b, a.b) {
			return a.tier
		}
	}
	if isNearWhite(r, g, b) {
		return TierNone
	}
	return TierNoData
}

// matches reports whether sample v falls inside the relative tolerance band
// around anchor value a.
func (c *Classifier) matches(v, a uint8) bool {
	lo := float64(a) * (1 - c.tolerance)
	hi := float64(a) * (1 + c.tolerance)
	f := float64(v)
	return f >= lo && f <= hi
}

// isNearWhite reports whether the sample is the unshaded map body.
func isNearWhite(r, g, b uint8) bool {
	return r >= 245 && g >= 245 && b >= 245
}
