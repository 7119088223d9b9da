// ============================================================================
// FILE:        tests/core_test.go
// PROJECT:     jarqyn
// DESCRIPTION: Cross-package suite covering the core verification pillars:
//
//   1. Report Service Connectivity: live GET against JARQYN_BASE_URL
//   2. Report Scenarios           : normalization, filtering, fetch
//                                    failure and stale fetch ordering
//   3. Pipeline Integrity         : list/map agreement through JSONL
//
// TEST RUNNER:
//   go test -v -run TestReportServiceConnectivity ./tests/
//   go test -v -run TestReportScenarios           ./tests/
//   go test -v -run TestPipelineIntegrity         ./tests/
//   go test -v ./tests/                           (all groups)
//
// CREDENTIALS:
//   Group 1 reads JARQYN_BASE_URL and skips when it is not set.
//   Every other group runs against an httptest backend and never skips.
// ============================================================================

package tests

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarqyn/jarqyn/internal/app"
	"github.com/jarqyn/jarqyn/internal/config"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/pipeline"
	"github.com/jarqyn/jarqyn/internal/reports"
	"github.com/jarqyn/jarqyn/internal/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test Output Helpers
// ─────────────────────────────────────────────────────────────────────────────

const (
	checkPass = "  ✅"
	checkFail = "  ❌"
	divider   = "──────────────────────────────────────────────────────────────────────────"
	separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
)

// result tracks pass/fail tallies for a single test group.
type result struct {
	passed int
	failed int
}

func (r *result) pass(t *testing.T, label string) {
	t.Helper()
	r.passed++
	t.Logf("%s %s", checkPass, label)
}

func (r *result) fail(t *testing.T, label string, detail ...string) {
	t.Helper()
	r.failed++
	line := label
	if len(detail) > 0 && detail[0] != "" {
		line = fmt.Sprintf("%s  →  %s", label, detail[0])
	}
	t.Logf("%s %s", checkFail, line)
	t.Fail()
}

func (r *result) check(t *testing.T, condition bool, passLabel, failLabel string, detail ...string) {
	t.Helper()
	if condition {
		r.pass(t, passLabel)
	} else {
		r.fail(t, failLabel, detail...)
	}
}

func (r *result) summary(t *testing.T, groupName string) {
	t.Helper()
	total := r.passed + r.failed
	icon := "✅"
	if r.failed > 0 {
		icon = "❌"
	}
	t.Logf("%s", divider)
	t.Logf("  %s  %s: %d/%d checks passed", icon, groupName, r.passed, total)
	t.Logf("%s", separator)
}

func printBanner(t *testing.T, title string) {
	t.Helper()
	t.Logf("")
	t.Logf("%s", separator)
	t.Logf("  🔬  %s", title)
	t.Logf("%s", divider)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

// testConfig returns a config for baseURL with an isolated archive.
func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		BaseURL:      baseURL,
		MediaBaseURL: "http://media.test",
		Timeout:      5 * time.Second,
		Rate:         1000,
		DBPath:       filepath.Join(t.TempDir(), "jarqyn.db"),
		Keep:         5,
		Timezone:     "Asia/Almaty",
	}
}

func newDeps(t *testing.T, cfg *config.Config) *app.Deps {
	t.Helper()
	d, err := app.New(cfg, app.NewLogger(io.Discard, false, true), app.Options{})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// payloadOf builds a listing body of n reports. Every third report is done
// and every other one carries coordinates.
func payloadOf(n int, idOffset int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		status := "received"
		if i%3 == 0 {
			status = "done"
		}
		coords := `"latitude":null,"longitude":null`
		if i%2 == 1 {
			coords = fmt.Sprintf(`"latitude":52.2%d,"longitude":76.9%d`, i, i)
		}
		fmt.Fprintf(&b, `{"id":%d,"category":"ROAD_DEFECTS","title":"Яма %d","generated_description":"Яма на дороге номер %d","priority":"medium","status":%q,%s,"created_at":"2026-10-1%dT09:00:00Z"}`,
			i+idOffset, i, i, status, coords, i%10)
	}
	b.WriteString("]")
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Group 1: Report Service Connectivity
// ─────────────────────────────────────────────────────────────────────────────

func TestReportServiceConnectivity(t *testing.T) {
	base := os.Getenv(config.EnvBaseURL)
	if base == "" {
		t.Skipf("⏭️  Skipping: %s not set", config.EnvBaseURL)
	}

	printBanner(t, "REPORT SERVICE CONNECTIVITY")
	r := &result{}

	client := reports.NewClient(base, 15*time.Second, 2, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	start := time.Now()
	raw, warnings, err := client.List(ctx, filter.Default())
	r.check(t, err == nil,
		fmt.Sprintf("GET %s answered in %s", base, time.Since(start).Round(time.Millisecond)),
		"listing request failed", fmt.Sprint(err))
	if err == nil {
		r.check(t, len(warnings) == 0,
			fmt.Sprintf("payload decoded cleanly (%d reports)", len(raw)),
			fmt.Sprintf("payload decoded with %d warnings", len(warnings)), strings.Join(warnings, "; "))
		ids := map[int64]bool{}
		dup := false
		for _, rr := range raw {
			dup = dup || ids[rr.ID]
			ids[rr.ID] = true
		}
		r.check(t, !dup, "report ids are unique", "duplicate report ids in payload")
	}

	r.summary(t, "REPORT SERVICE CONNECTIVITY")
}

// ─────────────────────────────────────────────────────────────────────────────
// Group 2: Report Scenarios
// ─────────────────────────────────────────────────────────────────────────────

func TestReportScenarios(t *testing.T) {
	printBanner(t, "REPORT SCENARIOS")
	r := &result{}

	// ── A: placeholder title, location and high icon ─────────────────────────
	desc := "Куча мусора возле дома номер пять, контейнеры переполнены уже неделю"
	body := fmt.Sprintf(`[{"id":1,"category":"WASTE","title":"Новый отчет","generated_description":%q,"priority":"high","status":"received","latitude":52.28,"longitude":76.96,"created_at":"2026-10-19T09:05:00Z"},
	{"id":2,"category":"LIGHTING","title":"Фонарь","generated_description":"Не горит фонарь","priority":"low","status":"received","latitude":52.28,"longitude":null,"created_at":"2026-10-19T10:00:00Z"}]`, desc)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	d := newDeps(t, testConfig(t, srv.URL))
	if err := d.Session.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	views := d.Session.Store()
	wantTitle := string([]rune(desc)[:50]) + "..."
	r.check(t, len(views) == 2 && views[0].Title == wantTitle,
		"A: placeholder title is the first 50 runes plus ellipsis",
		"A: placeholder title not replaced", fmt.Sprintf("%q", views[0].Title))
	r.check(t, views[0].Location != nil && views[0].Location.Lat == 52.28 && views[0].Location.Lon == 76.96,
		"A: location {52.28, 76.96}", "A: location missing or wrong")

	markers := geo.Markers(d.Session.Snapshot().View, d.Location)
	r.check(t, len(markers) == 1 && markers[0].ID == 1 && markers[0].Icon == geo.IconFor(model.PriorityHigh),
		"A: report 1 is on the map with the high icon", "A: marker wrong", fmt.Sprintf("%+v", markers))

	// ── B: one coordinate only ───────────────────────────────────────────────
	r.check(t, views[1].Location == nil, "B: one-coordinate record has no location", "B: location should be nil")
	var listed bytes.Buffer
	if err := pipeline.WriteJSONL(&listed, d.Session.Snapshot().View); err != nil {
		t.Fatal(err)
	}
	r.check(t, strings.Count(listed.String(), "\n") == 2 && strings.Contains(listed.String(), `"id":2`),
		"B: one-coordinate record is still listed", "B: record missing from list")

	// ── C: status filter selects 3 of 10 ─────────────────────────────────────
	srvC := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, payloadOf(10, 0))
	}))
	defer srvC.Close()
	dc := newDeps(t, testConfig(t, srvC.URL))
	if err := dc.Session.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if err := dc.Session.SetFilter(filter.Default().WithStatus("done")); err != nil {
		t.Fatal(err)
	}
	snap := dc.Session.Snapshot()
	r.check(t, len(snap.Store) == 10 && len(snap.View) == 3,
		"C: {status:done} selects 3 of 10", "C: wrong filtered size",
		fmt.Sprintf("store=%d view=%d", len(snap.Store), len(snap.View)))

	// ── D: failed fetch keeps the store ──────────────────────────────────────
	var fail atomic.Bool
	srvD := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			http.Error(w, `{"message":"db down"}`, http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, payloadOf(5, 0))
	}))
	defer srvD.Close()
	dd := newDeps(t, testConfig(t, srvD.URL))
	if err := dd.Session.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	before := dd.Session.Store()
	fail.Store(true)
	err := dd.Session.FetchAll(context.Background())
	after := dd.Session.Store()
	r.check(t, err != nil, "D: failed fetch returns an error", "D: expected an error")
	r.check(t, len(after) == 5 && after[0].ID == before[0].ID,
		"D: store still holds the same 5 reports", "D: store changed", fmt.Sprintf("%d reports", len(after)))
	r.check(t, !dd.Session.Loading(), "D: loading flag cleared", "D: still loading")
	r.check(t, dd.Notes.Count(session.KindError) == 1,
		"D: exactly one error notification", "D: wrong notification count",
		fmt.Sprint(dd.Notes.Count(session.KindError)))

	// ── E: out-of-order completion keeps the later-issued fetch ──────────────
	var calls atomic.Int32
	firstArrived := make(chan struct{})
	releaseFirst := make(chan struct{})
	srvE := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			close(firstArrived)
			<-releaseFirst
			io.WriteString(w, payloadOf(2, 100))
			return
		}
		io.WriteString(w, payloadOf(4, 200))
	}))
	defer srvE.Close()
	de := newDeps(t, testConfig(t, srvE.URL))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = de.Session.FetchAll(context.Background())
	}()
	<-firstArrived
	secondErr := de.Session.FetchAll(context.Background())
	close(releaseFirst)
	wg.Wait()

	final := de.Session.Store()
	r.check(t, firstErr == nil && secondErr == nil,
		"E: both fetches return without error", "E: unexpected error", fmt.Sprint(firstErr, secondErr))
	r.check(t, len(final) == 4 && final[0].ID == 201,
		"E: store reflects the later-issued fetch", "E: stale data won",
		fmt.Sprintf("%d reports, first id %d", len(final), firstID(final)))

	r.summary(t, "REPORT SCENARIOS")
}

func firstID(v []model.ReportView) int64 {
	if len(v) == 0 {
		return 0
	}
	return v[0].ID
}

// ─────────────────────────────────────────────────────────────────────────────
// Group 3: Pipeline Integrity
// ─────────────────────────────────────────────────────────────────────────────

func TestPipelineIntegrity(t *testing.T) {
	printBanner(t, "PIPELINE INTEGRITY")
	r := &result{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, payloadOf(12, 0))
	}))
	defer srv.Close()
	d := newDeps(t, testConfig(t, srv.URL))
	if err := d.Session.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	filters := []filter.State{
		filter.Default(),
		filter.Default().WithStatus("done"),
		filter.Default().WithStatus("received").WithSearch("ДОРОГЕ"),
		filter.Default().WithPriority("critical"),
	}
	for _, f := range filters {
		snap := d.Session.SnapshotFor(f)
		markers := geo.Markers(snap.View, d.Location)
		r.check(t, len(snap.View) >= len(markers) && len(markers) == snap.Located(),
			fmt.Sprintf("%s: %d listed, %d markers", f, len(snap.View), len(markers)),
			fmt.Sprintf("%s: list/marker invariant broken", f))

		var buf bytes.Buffer
		if err := pipeline.WriteJSONL(&buf, snap.View); err != nil {
			t.Fatal(err)
		}
		if len(snap.View) == 0 {
			r.check(t, buf.Len() == 0, fmt.Sprintf("%s: empty view writes nothing", f), "empty view wrote output")
			continue
		}
		back, err := pipeline.ReadViews(&buf)
		r.check(t, err == nil && len(back) == len(snap.View),
			fmt.Sprintf("%s: JSONL carries every listed report", f),
			fmt.Sprintf("%s: JSONL lost reports", f), fmt.Sprint(err))
		again := geo.Markers(back, d.Location)
		r.check(t, len(again) == len(markers),
			fmt.Sprintf("%s: map from JSONL has the same markers", f),
			fmt.Sprintf("%s: marker count changed through JSONL", f))
	}

	entries, err := d.Archive.ListPayloads()
	r.check(t, err == nil && len(entries) == 1,
		"live fetch archived one payload", "archive entries wrong", fmt.Sprint(len(entries), err))

	r.summary(t, "PIPELINE INTEGRITY")
}
