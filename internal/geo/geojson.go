package geo

// GeoJSON types (RFC 7946). Coordinates are [lon, lat].

// Geometry is a GeoJSON point.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties carries the marker payload on each feature.
type Properties struct {
	ID          int64  `json:"id"`
	Priority    string `json:"priority"`
	MarkerColor string `json:"marker_color"`
	IconURL     string `json:"icon_url"`
	Popup       Popup  `json:"popup"`
}

// Feature is one marker.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Collection is a GeoJSON FeatureCollection.
type Collection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// FeatureCollection converts markers to GeoJSON, preserving order.
func FeatureCollection(markers []Marker) Collection {
	fc := Collection{Type: "FeatureCollection", Features: make([]Feature, 0, len(markers))}
	for _, m := range markers {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{m.Lon, m.Lat},
			},
			Properties: Properties{
				ID:          m.ID,
				Priority:    string(m.Priority),
				MarkerColor: m.Icon.Color,
				IconURL:     m.Icon.URL,
				Popup:       m.Popup,
			},
		})
	}
	return fc
}
