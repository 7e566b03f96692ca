package geo

import "fmt"

// Bounds is the geographic extent of the rendered map area in WGS84.
type Bounds struct {
	West  float64
	East  float64
	North float64
	South float64
}

// Mapper converts between pixel and geographic coordinates for one map
// image size. Image y grows downward, latitude grows upward.
type Mapper struct {
	bounds Bounds
	width  int
	height int
}

// NewMapper creates a Mapper for a width x height image over bounds.
func NewMapper(bounds Bounds, width, height int) (*Mapper, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if bounds.East <= bounds.West || bounds.North <= bounds.South {
		return nil, fmt.Errorf("invalid bounds: west=%f east=%f north=%f south=%f",
			bounds.West, bounds.East, bounds.North, bounds.South)
	}
	return &Mapper{bounds: bounds, width: width, height: height}, nil
}

// PixelToLonLat converts pixel coordinates to (longitude, latitude).
func (m *Mapper) PixelToLonLat(x, y float64) (lon, lat float64) {
	lon = m.bounds.West + (x/float64(m.width))*(m.bounds.East-m.bounds.West)
	lat = m.bounds.North - (y/float64(m.height))*(m.bounds.North-m.bounds.South)
	return lon, lat
}

// LonLatToPixel converts (longitude, latitude) to pixel coordinates.
func (m *Mapper) LonLatToPixel(lon, lat float64) (x, y int) {
	fx := (lon - m.bounds.West) / (m.bounds.East - m.bounds.West) * float64(m.width)
	fy := (m.bounds.North - lat) / (m.bounds.North - m.bounds.South) * float64(m.height)
	x = clamp(int(fx), 0, m.width-1)
	y = clamp(int(fy), 0, m.height-1)
	return x, y
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
