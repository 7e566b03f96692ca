package geo

import "encoding/json"

// geoJSONFeature is one region rendered as a GeoJSON bounding-box polygon.
type geoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   geoJSONPolygon `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONPolygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// ToGeoJSON renders regions as a FeatureCollection of bounding-box polygons
// in lon/lat, with centroid and score properties per feature.
func ToGeoJSON(regions []Region, m *Mapper) ([]byte, error) {
	fc := geoJSONCollection{
		Type:     "FeatureCollection",
		Features: make([]geoJSONFeature, 0, len(regions)),
	}
	for _, r := range regions {
		// Polygon ring runs counterclockwise and closes on itself.
		// Pixel Y grows downward, so MinY is the northern edge.
		wLon, nLat := m.PixelToLonLat(float64(r.MinX), float64(r.MinY))
		eLon, sLat := m.PixelToLonLat(float64(r.MaxX+1), float64(r.MaxY+1))
		ring := [][2]float64{
			{wLon, sLat},
			{eLon, sLat},
			{eLon, nLat},
			{wLon, nLat},
			{wLon, sLat},
		}
		cLon, cLat := m.PixelToLonLat(r.CentroidX, r.CentroidY)
		fc.Features = append(fc.Features, geoJSONFeature{
			Type: "Feature",
			Geometry: geoJSONPolygon{
				Type:        "Polygon",
				Coordinates: [][][2]float64{ring},
			},
			Properties: map[string]any{
				"id":           r.ID,
				"cells":        r.Cells,
				"mean_score":   r.MeanScore,
				"max_score":    r.MaxScore,
				"centroid_lon": cLon,
				"centroid_lat": cLat,
			},
		})
	}
	return json.Marshal(fc)
}
