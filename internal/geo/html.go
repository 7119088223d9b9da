package geo

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/session"
	"github.com/jarqyn/jarqyn/internal/util"
)

// Options controls the Leaflet page. Zero fields take the package defaults.
type Options struct {
	Title       string
	TileURL     string
	Attribution string
	CenterLat   float64
	CenterLon   float64
	Zoom        int
	// Location is the display time zone. Nil means UTC.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "JARQYN — карта заявок"
	}
	if o.TileURL == "" {
		o.TileURL = DefaultTileURL
	}
	if o.Attribution == "" {
		o.Attribution = DefaultAttribution
	}
	if o.CenterLat == 0 && o.CenterLon == 0 {
		o.CenterLat, o.CenterLon = DefaultCenterLat, DefaultCenterLon
	}
	if o.Zoom <= 0 {
		o.Zoom = DefaultZoom
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// card is one entry in the list sidebar.
type card struct {
	ID          int64
	Title       string
	Category    string
	Description string
	Priority    model.Badge
	Status      model.Badge
	Photo       string
	Located     bool
	Coords      string
	Date        string
}

type page struct {
	Options
	Filter  string
	Markers []Marker
	Cards   []card
	Shown   int
	Located int
	Empty   string
	NoPhoto string
}

// MarkerSummary is the "markers shown X of Y with geolocation" line.
func MarkerSummary(shown, located int) string {
	return fmt.Sprintf("Показано маркеров: %d из %d с геолокацией", shown, located)
}

// RenderHTML writes a standalone Leaflet page for snap: markers for the
// located part of snap.View and a list card for every view.
func RenderHTML(w io.Writer, snap session.Snapshot, opts Options) error {
	opts = opts.withDefaults()
	markers := Markers(snap.View, opts.Location)

	located := 0
	for _, v := range snap.Store {
		if v.HasLocation() {
			located++
		}
	}

	cards := make([]card, 0, len(snap.View))
	for _, v := range snap.View {
		c := card{
			ID:          v.ID,
			Title:       v.Title,
			Category:    model.CategoryLabel(v.Category),
			Description: v.Description,
			Priority:    v.Priority.Badge(),
			Status:      v.Status.Badge(),
			Photo:       v.Photo(),
			Located:     v.HasLocation(),
			Date:        util.FormatTimestamp(v.Timestamp, opts.Location),
		}
		if c.Description == "" {
			c.Description = NoDescription
		}
		if v.Location != nil {
			c.Coords = strconv.FormatFloat(v.Location.Lat, 'f', 5, 64) + ", " + strconv.FormatFloat(v.Location.Lon, 'f', 5, 64)
		}
		cards = append(cards, c)
	}

	return pageTemplate.Execute(w, page{
		Options: opts,
		Filter:  snap.Filter.String(),
		Markers: markers,
		Cards:   cards,
		Shown:   len(markers),
		Located: located,
		Empty:   "Заявок не найдено",
		NoPhoto: "Нет фото",
	})
}

var pageTemplate = template.Must(template.New("map").Funcs(template.FuncMap{
	"summary": MarkerSummary,
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; display: flex; height: 100vh; }
  #map { flex: 2; }
  aside { flex: 1; overflow-y: auto; padding: 1rem; background: #f7f7f7; }
  .card { background: #fff; border-radius: 12px; padding: .75rem; margin-bottom: .75rem; box-shadow: 0 1px 3px rgba(0,0,0,.15); cursor: pointer; }
  .card img { width: 100%; max-height: 160px; object-fit: cover; border-radius: 8px; }
  .nophoto { height: 80px; display: flex; align-items: center; justify-content: center; background: #e3e3e3; border-radius: 8px; color: #666; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 999px; font-size: .75rem; margin-right: 4px; }
  .category { color: #ea580c; font-weight: 700; }
  .muted { color: #6b7280; font-size: .75rem; }
  .summary { font-size: .875rem; margin-bottom: 1rem; }
  .jarqyn-popup img { width: 100%; border-radius: 8px; }
</style>
</head>
<body>
<div id="map"></div>
<aside>
  <p class="summary">{{summary .Shown .Located}}</p>
  <p class="muted">{{.Filter}}</p>
  {{- if not .Cards}}
  <p>{{.Empty}}</p>
  {{- end}}
  {{- range .Cards}}
  <div class="card" data-report-id="{{.ID}}"{{if .Located}} data-located="true"{{end}}>
    {{- if .Photo}}
    <img src="{{.Photo}}" alt="Проблема">
    {{- else}}
    <div class="nophoto">{{$.NoPhoto}}</div>
    {{- end}}
    <div class="category">{{.Category}}</div>
    <strong>{{.Title}}</strong>
    <p>{{.Description}}</p>
    <span class="badge {{.Priority.Class}}">{{.Priority.Label}}</span>
    <span class="badge {{.Status.Class}}">{{.Status.Label}}</span>
    <p class="muted">{{.Date}}{{if .Coords}} · {{.Coords}}{{end}}</p>
  </div>
  {{- end}}
</aside>
<script>
var markers = {{.Markers}};
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer({{.TileURL}}, { attribution: {{.Attribution}} }).addTo(map);

function esc(s) {
  var d = document.createElement('div');
  d.textContent = s == null ? '' : String(s);
  return d.innerHTML;
}

function popupHTML(p) {
  var h = '';
  if (p.photo_url) { h += '<img src="' + esc(p.photo_url) + '" alt="Проблема">'; }
  h += '<h3 class="category">' + esc(p.category) + '</h3>';
  h += '<p><strong>' + esc(p.title) + '</strong></p>';
  h += '<p>' + esc(p.description) + '</p>';
  h += '<span class="badge ' + esc(p.priority.class) + '">' + esc(p.priority.label) + '</span>';
  h += '<span class="badge ' + esc(p.status.class) + '">' + esc(p.status.label) + '</span>';
  h += '<p class="muted">' + esc(p.timestamp) + '</p>';
  return h;
}

var byID = {};
markers.forEach(function (m) {
  var icon = L.icon({
    iconUrl: m.icon.icon_url,
    shadowUrl: m.icon.shadow_url,
    iconSize: m.icon.icon_size,
    iconAnchor: m.icon.icon_anchor,
    popupAnchor: m.icon.popup_anchor,
    shadowSize: m.icon.shadow_size
  });
  byID[m.id] = L.marker([m.lat, m.lon], { icon: icon })
    .bindPopup(popupHTML(m.popup), { maxWidth: 550, minWidth: 350, className: 'jarqyn-popup' })
    .addTo(map);
});

document.querySelectorAll('.card[data-located]').forEach(function (el) {
  el.addEventListener('click', function () {
    var m = byID[el.getAttribute('data-report-id')];
    if (m) { map.setView(m.getLatLng(), Math.max(map.getZoom(), 15)); m.openPopup(); }
  });
});
</script>
</body>
</html>
`
