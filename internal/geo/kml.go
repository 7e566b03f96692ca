package geo

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// kmlDocument mirrors the subset of KML 2.2 needed for region placemarks.
type kmlDocument struct {
	XMLName    xml.Name       `xml:"kml"`
	Xmlns      string         `xml:"xmlns,attr"`
	Name       string         `xml:"Document>name"`
	Styles     []kmlStyle     `xml:"Document>Style"`
	Placemarks []kmlPlacemark `xml:"Document>Placemark"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	LineColor string `xml:"LineStyle>color"`
	LineWidth int    `xml:"LineStyle>width"`
	PolyColor string `xml:"PolyStyle>color"`
}

type kmlPlacemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	StyleURL    string `xml:"styleUrl"`
	Coordinates string `xml:"Polygon>outerBoundaryIs>LinearRing>coordinates"`
}

// ToKML renders regions as KML placemarks with bounding-box polygons.
func ToKML(regions []Region, m *Mapper) ([]byte, error) {
	doc := kmlDocument{
		Xmlns: "http://www.opengis.net/kml/2.2",
		Name:  "Mushroom growth regions",
		Styles: []kmlStyle{{
			ID:        "region",
			LineColor: "ff008000",
			LineWidth: 2,
			PolyColor: "4d00ff00", // aabbggrr, 30% green fill
		}},
	}
	for _, r := range regions {
		wLon, nLat := m.PixelToLonLat(float64(r.MinX), float64(r.MinY))
		eLon, sLat := m.PixelToLonLat(float64(r.MaxX+1), float64(r.MaxY+1))
		coords := fmt.Sprintf("%f,%f,0 %f,%f,0 %f,%f,0 %f,%f,0 %f,%f,0",
			wLon, sLat, eLon, sLat, eLon, nLat, wLon, nLat, wLon, sLat)
		doc.Placemarks = append(doc.Placemarks, kmlPlacemark{
			Name: fmt.Sprintf("Region %d", r.ID),
			Description: fmt.Sprintf("cells=%d mean=%.2f max=%.2f",
				r.Cells, r.MeanScore, r.MaxScore),
			StyleURL:    "#region",
			Coordinates: coords,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding KML: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
