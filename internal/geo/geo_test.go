package geo_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/session"
)

var almaty = time.FixedZone("ALMT", 5*3600)

func at(lat, lon float64) *model.Location { return &model.Location{Lat: lat, Lon: lon} }

func views() []model.ReportView {
	return []model.ReportView{
		{ID: 1, Category: "WASTE", Title: "A", Description: "Мусор", Priority: model.PriorityHigh, Status: model.StatusReceived, Location: at(52.28, 76.96), Timestamp: "2026-10-19T09:05:00Z"},
		{ID: 2, Category: "LIGHTING", Title: "B", Priority: model.PriorityCritical, Status: model.StatusDone},
		{ID: 3, Category: "GHOSTS", Title: "C", Priority: "urgent", Status: "archived", Location: at(52.3, 76.9)},
		{ID: 4, Category: "TREES", Title: "D", Priority: model.PriorityMedium, Status: model.StatusInProcess, Location: at(52.25, 76.95)},
	}
}

// ─── Icons ────────────────────────────────────────────────────────────────────

func TestIconForPriority(t *testing.T) {
	cases := map[model.Priority]string{
		model.PriorityCritical: "violet",
		model.PriorityHigh:     "red",
		model.PriorityMedium:   "orange",
		model.PriorityLow:      "green",
		"urgent":               "green",
		"":                     "green",
	}
	for p, color := range cases {
		ic := geo.IconFor(p)
		if ic.Color != color {
			t.Errorf("priority %q: got %s, want %s", p, ic.Color, color)
		}
		if !strings.HasSuffix(ic.URL, "marker-icon-2x-"+color+".png") {
			t.Errorf("priority %q: icon url %s", p, ic.URL)
		}
	}
	ic := geo.IconFor(model.PriorityHigh)
	if ic.Size != [2]int{25, 41} || ic.Anchor != [2]int{12, 41} || ic.PopupAnchor != [2]int{1, -34} || ic.ShadowSize != [2]int{41, 41} {
		t.Errorf("icon geometry: %+v", ic)
	}
}

// ─── Markers ──────────────────────────────────────────────────────────────────

func TestMarkersAreExactlyLocatedViews(t *testing.T) {
	vs := views()
	markers := geo.Markers(vs, almaty)

	var located []int64
	for _, v := range vs {
		if v.Location != nil {
			located = append(located, v.ID)
		}
	}
	if len(markers) != len(located) {
		t.Fatalf("markers=%d located=%d", len(markers), len(located))
	}
	for i, m := range markers {
		if m.ID != located[i] {
			t.Errorf("marker %d: id %d, want %d", i, m.ID, located[i])
		}
	}
	if len(vs) < len(markers) {
		t.Error("list must never be shorter than the marker set")
	}
}

func TestMarkersFollowFilteredView(t *testing.T) {
	in := views()
	for _, st := range []filter.State{
		filter.Default(),
		filter.Default().WithPriority("high"),
		filter.Default().WithStatus("done"),
		filter.Default().WithCategory("NONE"),
	} {
		view := filter.Apply(in, st)
		markers := geo.Markers(view, nil)
		n := 0
		for _, v := range view {
			if v.HasLocation() {
				n++
			}
		}
		if len(markers) != n || len(view) < len(markers) {
			t.Errorf("%s: markers=%d located=%d list=%d", st, len(markers), n, len(view))
		}
	}
}

func TestPopupContent(t *testing.T) {
	m := geo.Markers(views(), almaty)[0]
	p := m.Popup
	if p.Category != "Мусор и отходы" || p.Title != "A" || p.Description != "Мусор" {
		t.Errorf("popup text: %+v", p)
	}
	if p.Priority.Label != "Высокий" || p.Status.Label != "Получено" {
		t.Errorf("badges: %+v %+v", p.Priority, p.Status)
	}
	if p.Timestamp != "19 октября 2026 г., 14:05" {
		t.Errorf("timestamp: %q", p.Timestamp)
	}
}

func TestPopupPlaceholdersAndFallbacks(t *testing.T) {
	p := geo.BuildPopup(views()[2], almaty)
	if p.Description != geo.NoDescription {
		t.Errorf("description placeholder: %q", p.Description)
	}
	if p.Category != "GHOSTS" {
		t.Errorf("unknown category should show raw value, got %q", p.Category)
	}
	if p.Priority.Label != "Низкий" {
		t.Errorf("unknown priority should get the low badge, got %q", p.Priority.Label)
	}
	if p.PhotoURL != "" {
		t.Errorf("photo: %q", p.PhotoURL)
	}
}

// ─── GeoJSON ──────────────────────────────────────────────────────────────────

func TestFeatureCollection(t *testing.T) {
	fc := geo.FeatureCollection(geo.Markers(views(), almaty))
	b, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				ID          int64  `json:"id"`
				MarkerColor string `json:"marker_color"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "FeatureCollection" || len(decoded.Features) != 3 {
		t.Fatalf("collection: type=%s features=%d", decoded.Type, len(decoded.Features))
	}
	f := decoded.Features[0]
	if f.Geometry.Type != "Point" || f.Geometry.Coordinates[0] != 76.96 || f.Geometry.Coordinates[1] != 52.28 {
		t.Errorf("coordinates should be [lon, lat]: %+v", f.Geometry)
	}
	if f.Properties.MarkerColor != "red" {
		t.Errorf("marker color: %s", f.Properties.MarkerColor)
	}
}

func TestEmptyFeatureCollectionIsArray(t *testing.T) {
	b, _ := json.Marshal(geo.FeatureCollection(nil))
	if !strings.Contains(string(b), `"features":[]`) {
		t.Errorf("empty collection: %s", b)
	}
}

// ─── HTML ─────────────────────────────────────────────────────────────────────

func TestRenderHTML(t *testing.T) {
	all := views()
	st := filter.Default().WithPriority("high")
	snap := session.Snapshot{Store: all, View: filter.Apply(all, st), Filter: st}

	var buf bytes.Buffer
	if err := geo.RenderHTML(&buf, snap, geo.Options{Location: almaty}); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		geo.MarkerSummary(1, 3),
		`data-report-id="1"`,
		"tile.openstreetmap.org",
		"52.2833",
		"marker-icon-2x-red.png",
		"Нет фото",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(out, `data-report-id="2"`) {
		t.Error("filtered-out report should not be listed")
	}
}

func TestRenderHTMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := geo.RenderHTML(&buf, session.Snapshot{}, geo.Options{}); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "Заявок не найдено") || !strings.Contains(buf.String(), geo.MarkerSummary(0, 0)) {
		t.Error("empty page should show the empty-list message and a zero summary")
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	v := model.ReportView{ID: 9, Title: "<script>alert(1)</script>", Location: at(1, 1)}
	snap := session.Snapshot{Store: []model.ReportView{v}, View: []model.ReportView{v}}
	var buf bytes.Buffer
	if err := geo.RenderHTML(&buf, snap, geo.Options{}); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("report text must be escaped")
	}
}
