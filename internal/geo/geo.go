// Package geo is the map renderer: it turns the located subset of a
// filtered report view into priority-coded markers with popup payloads, and
// writes them as GeoJSON or as a standalone Leaflet page.
package geo

import (
	"time"

	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/util"
)

// Map defaults: Pavlodar city centre on OpenStreetMap tiles.
const (
	DefaultCenterLat   = 52.2833
	DefaultCenterLon   = 76.9667
	DefaultZoom        = 12
	DefaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
)

// ─── Icons ────────────────────────────────────────────────────────────────────

const (
	iconBaseURL = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/"
	shadowURL   = "https://cdnjs.cloudflare.com/ajax/libs/leaflet/1.9.4/images/marker-shadow.png"
)

// Icon is a Leaflet marker icon definition.
type Icon struct {
	Color       string `json:"color"`
	URL         string `json:"icon_url"`
	ShadowURL   string `json:"shadow_url"`
	Size        [2]int `json:"icon_size"`
	Anchor      [2]int `json:"icon_anchor"`
	PopupAnchor [2]int `json:"popup_anchor"`
	ShadowSize  [2]int `json:"shadow_size"`
}

func colorIcon(color string) Icon {
	return Icon{
		Color:       color,
		URL:         iconBaseURL + "marker-icon-2x-" + color + ".png",
		ShadowURL:   shadowURL,
		Size:        [2]int{25, 41},
		Anchor:      [2]int{12, 41},
		PopupAnchor: [2]int{1, -34},
		ShadowSize:  [2]int{41, 41},
	}
}

var icons = map[model.Priority]Icon{
	model.PriorityCritical: colorIcon("violet"),
	model.PriorityHigh:     colorIcon("red"),
	model.PriorityMedium:   colorIcon("orange"),
	model.PriorityLow:      colorIcon("green"),
}

// IconFor returns the marker icon for a priority. Unknown priorities get
// the low icon.
func IconFor(p model.Priority) Icon {
	if ic, ok := icons[p]; ok {
		return ic
	}
	return icons[model.PriorityLow]
}

// ─── Popups ───────────────────────────────────────────────────────────────────

// Popup is the content shown when a marker is opened.
type Popup struct {
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    model.Badge `json:"priority"`
	Status      model.Badge `json:"status"`
	Timestamp   string      `json:"timestamp"`
	PhotoURL    string      `json:"photo_url,omitempty"`
}

// NoDescription is shown when a report has no description.
const NoDescription = "Без описания"

// BuildPopup assembles the popup for v with its timestamp rendered in loc.
func BuildPopup(v model.ReportView, loc *time.Location) Popup {
	desc := v.Description
	if desc == "" {
		desc = NoDescription
	}
	return Popup{
		Category:    model.CategoryLabel(v.Category),
		Title:       v.Title,
		Description: desc,
		Priority:    v.Priority.Badge(),
		Status:      v.Status.Badge(),
		Timestamp:   util.FormatTimestamp(v.Timestamp, loc),
		PhotoURL:    v.Photo(),
	}
}

// ─── Markers ──────────────────────────────────────────────────────────────────

// Marker is one located report on the map.
type Marker struct {
	ID       int64          `json:"id"`
	Lat      float64        `json:"lat"`
	Lon      float64        `json:"lon"`
	Priority model.Priority `json:"priority"`
	Icon     Icon           `json:"icon"`
	Popup    Popup          `json:"popup"`
}

// Markers returns one marker per view with a location, in view order.
// Views without a location are skipped; they still appear in list output.
func Markers(views []model.ReportView, loc *time.Location) []Marker {
	out := make([]Marker, 0, len(views))
	for _, v := range views {
		if v.Location == nil {
			continue
		}
		out = append(out, Marker{
			ID:       v.ID,
			Lat:      v.Location.Lat,
			Lon:      v.Location.Lon,
			Priority: v.Priority,
			Icon:     IconFor(v.Priority),
			Popup:    BuildPopup(v, loc),
		})
	}
	return out
}
