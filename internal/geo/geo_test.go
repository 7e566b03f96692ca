package geo

import (
	"math"
	"testing"
)

func czechBounds() Bounds {
	return Bounds{West: 12.09, East: 18.87, North: 51.06, South: 48.55}
}

func TestNewMapperValidation(t *testing.T) {
	if _, err := NewMapper(czechBounds(), 0, 100); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewMapper(Bounds{West: 10, East: 5, North: 50, South: 48}, 100, 100); err == nil {
		t.Error("expected error for east <= west")
	}
	if _, err := NewMapper(Bounds{West: 5, East: 10, North: 48, South: 50}, 100, 100); err == nil {
		t.Error("expected error for north <= south")
	}
}

func TestPixelToLonLatCorners(t *testing.T) {
	b := czechBounds()
	m, err := NewMapper(b, 600, 400)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	lon, lat := m.PixelToLonLat(0, 0)
	if math.Abs(lon-b.West) > 1e-9 || math.Abs(lat-b.North) > 1e-9 {
		t.Errorf("top-left = (%v, %v), want (%v, %v)", lon, lat, b.West, b.North)
	}

	lon, lat = m.PixelToLonLat(600, 400)
	if math.Abs(lon-b.East) > 1e-9 || math.Abs(lat-b.South) > 1e-9 {
		t.Errorf("bottom-right = (%v, %v), want (%v, %v)", lon, lat, b.East, b.South)
	}
}

func TestLonLatToPixelRoundTrip(t *testing.T) {
	m, err := NewMapper(czechBounds(), 600, 400)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	lon, lat := m.PixelToLonLat(300, 200)
	x, y := m.LonLatToPixel(lon, lat)
	if x != 300 || y != 200 {
		t.Errorf("round trip = (%d, %d), want (300, 200)", x, y)
	}
}

func TestLonLatToPixelClamps(t *testing.T) {
	m, err := NewMapper(czechBounds(), 600, 400)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	x, y := m.LonLatToPixel(0, 90)
	if x != 0 || y != 0 {
		t.Errorf("out-of-bounds northwest = (%d, %d), want (0, 0)", x, y)
	}
	x, y = m.LonLatToPixel(180, -90)
	if x != 599 || y != 399 {
		t.Errorf("out-of-bounds southeast = (%d, %d), want (599, 399)", x, y)
	}
}
