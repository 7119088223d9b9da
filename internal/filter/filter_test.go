package filter_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

func view(id int64, status model.Status, priority model.Priority, category, desc string) model.ReportView {
	return model.ReportView{
		ID:          id,
		Category:    category,
		Title:       fmt.Sprintf("Заявка %d", id),
		Description: desc,
		Priority:    priority,
		Status:      status,
	}
}

// tenReports has 3 done, 4 received and 3 in_process reports.
func tenReports() []model.ReportView {
	return []model.ReportView{
		view(1, model.StatusDone, model.PriorityHigh, "WASTE", "Переполненные контейнеры"),
		view(2, model.StatusReceived, model.PriorityLow, "LIGHTING", "Не горит фонарь"),
		view(3, model.StatusInProcess, model.PriorityCritical, "OPEN_MANHOLES", "Открытый люк у школы"),
		view(4, model.StatusDone, model.PriorityMedium, "ROAD_DEFECTS", "Яма на дороге"),
		view(5, model.StatusReceived, model.PriorityHigh, "WASTE", "МУСОР во дворе"),
		view(6, model.StatusInProcess, model.PriorityLow, "TREES", "Упало дерево"),
		view(7, model.StatusReceived, model.PriorityMedium, "WASTE", "Стихийная свалка мусора"),
		view(8, model.StatusDone, model.PriorityLow, "LIGHTING", "Мигает фонарь"),
		view(9, model.StatusInProcess, model.PriorityHigh, "ROAD_DEFECTS", "Разбитый тротуар"),
		view(10, model.StatusReceived, model.PriorityCritical, "SNOW_ICE", "Сосульки над входом"),
	}
}

func ids(views []model.ReportView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func intersect(a, b []model.ReportView) []int64 {
	in := map[int64]bool{}
	for _, v := range b {
		in[v.ID] = true
	}
	out := []int64{}
	for _, v := range a {
		if in[v.ID] {
			out = append(out, v.ID)
		}
	}
	return out
}

// ─── Engine ───────────────────────────────────────────────────────────────────

func TestStatusFilterSelectsThreeOfTen(t *testing.T) {
	got := filter.Apply(tenReports(), filter.Default().WithStatus("done"))
	if want := []int64{1, 4, 8}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("done filter: got %v, want %v", ids(got), want)
	}
	for _, v := range got {
		if v.Status != model.StatusDone {
			t.Errorf("report %d has status %q", v.ID, v.Status)
		}
	}
}

func TestDefaultIsNoOp(t *testing.T) {
	in := tenReports()
	got := filter.Apply(in, filter.Default())
	if !reflect.DeepEqual(got, in) {
		t.Error("default filter should return every report in order")
	}
}

func TestCompositionEqualsIntersection(t *testing.T) {
	in := tenReports()
	statuses := []string{filter.All, "received", "in_process", "done"}
	priorities := []string{filter.All, "low", "medium", "high", "critical"}
	categories := []string{filter.All, "WASTE", "LIGHTING", "GHOSTS"}

	for _, s := range statuses {
		for _, p := range priorities {
			for _, c := range categories {
				combined := filter.Apply(in, filter.State{Status: s, Priority: p, Category: c})
				byS := filter.Apply(in, filter.Default().WithStatus(s))
				byP := filter.Apply(in, filter.Default().WithPriority(p))
				byC := filter.Apply(in, filter.Default().WithCategory(c))

				want := intersect(byS, byP)
				want = intersect(filterIDs(in, want), byC)
				if got := ids(combined); !reflect.DeepEqual(got, want) {
					t.Errorf("status=%s priority=%s category=%s: got %v, want %v", s, p, c, got, want)
				}
			}
		}
	}
}

func filterIDs(in []model.ReportView, keep []int64) []model.ReportView {
	set := map[int64]bool{}
	for _, id := range keep {
		set[id] = true
	}
	var out []model.ReportView
	for _, v := range in {
		if set[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

func TestApplyIsIdempotent(t *testing.T) {
	in := tenReports()
	s := filter.State{Status: "received", Priority: filter.All, Category: "WASTE", Search: "мусор"}
	once := filter.Apply(in, s)
	twice := filter.Apply(once, s)
	if !reflect.DeepEqual(ids(once), ids(twice)) {
		t.Errorf("apply twice: %v vs %v", ids(once), ids(twice))
	}
}

func TestNarrowingIsMonotonic(t *testing.T) {
	in := tenReports()
	base := filter.Default().WithCategory("WASTE")
	wide := filter.Apply(in, base)
	narrow := filter.Apply(in, base.WithPriority("high"))
	if len(narrow) > len(wide) {
		t.Fatalf("narrowing grew the result: %d > %d", len(narrow), len(wide))
	}
	inWide := map[int64]bool{}
	for _, v := range wide {
		inWide[v.ID] = true
	}
	for _, v := range narrow {
		if !inWide[v.ID] {
			t.Errorf("report %d appears only after narrowing", v.ID)
		}
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	in := tenReports()
	got := filter.Apply(in, filter.Default())
	got[0].Title = "changed"
	if in[0].Title == "changed" {
		t.Error("Apply result must not share backing storage with its input")
	}
}

func TestSearchIsCaseInsensitiveOverDescription(t *testing.T) {
	in := tenReports()
	got := filter.Apply(in, filter.Default().WithSearch("мусор"))
	if want := []int64{5, 7}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("search мусор: got %v, want %v", ids(got), want)
	}

	// Titles are not searched.
	got = filter.Apply(in, filter.Default().WithSearch("Заявка"))
	if len(got) != 0 {
		t.Errorf("search must not match titles, got %v", ids(got))
	}

	got = filter.Apply(in, filter.Default().WithSearch("  ФОНАРЬ "))
	if want := []int64{2, 8}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("search ФОНАРЬ: got %v, want %v", ids(got), want)
	}
}

func TestEmptySearchIsNoOp(t *testing.T) {
	in := tenReports()
	if got := filter.Apply(in, filter.Default().WithSearch("   ")); len(got) != len(in) {
		t.Errorf("blank search filtered reports: %d of %d", len(got), len(in))
	}
}

func TestUnknownStatusOnlyMatchesAll(t *testing.T) {
	in := append(tenReports(), view(11, "archived", model.PriorityLow, "OTHER", ""))
	if got := filter.Apply(in, filter.Default()); len(got) != 11 {
		t.Errorf("all should include unknown status, got %d", len(got))
	}
	for _, s := range []string{"received", "in_process", "done"} {
		for _, v := range filter.Apply(in, filter.Default().WithStatus(s)) {
			if v.ID == 11 {
				t.Errorf("unknown status matched %q", s)
			}
		}
	}
}

// ─── State ────────────────────────────────────────────────────────────────────

func TestParse(t *testing.T) {
	s, err := filter.Parse("DONE", "", "all", "  яма ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := filter.State{Status: "done", Priority: filter.All, Category: filter.All, Search: "яма"}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}

	if _, err := filter.Parse("closed", "", "", ""); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := filter.Parse("", "urgent", "", ""); err == nil {
		t.Error("expected error for unknown priority")
	}
	if _, err := filter.Parse("", "", "GHOSTS", ""); err != nil {
		t.Errorf("categories are open-ended: %v", err)
	}
}

func TestQuery(t *testing.T) {
	q := filter.State{Status: "in_process", Priority: "high", Category: filter.All, Search: " люк "}.Query()
	if q.Get("status") != "IN_PROCESS" {
		t.Errorf("status should be upper-cased, got %q", q.Get("status"))
	}
	if q.Get("priority") != "high" || q.Get("search") != "люк" {
		t.Errorf("query: %v", q)
	}
	if q.Has("category") {
		t.Error("all dimensions must be omitted")
	}
	if len(filter.Default().Query()) != 0 {
		t.Error("default state should produce no parameters")
	}
}

func TestIsDefault(t *testing.T) {
	if !filter.Default().IsDefault() {
		t.Error("Default should be default")
	}
	if filter.Default().WithSearch("x").IsDefault() {
		t.Error("search makes the state non-default")
	}
}

// ─── Counts ───────────────────────────────────────────────────────────────────

func TestCount(t *testing.T) {
	in := tenReports()
	in[0].Location = &model.Location{Lat: 52.28, Lon: 76.96}
	in[3].Location = &model.Location{Lat: 52.29, Lon: 76.95}

	c := filter.Count(in)
	if c.Total != 10 || c.Located != 2 {
		t.Errorf("total=%d located=%d", c.Total, c.Located)
	}
	if n := filter.Lookup(c.ByStatus, "done"); n != 3 {
		t.Errorf("done: got %d", n)
	}
	if n := filter.Lookup(c.ByStatus, "received"); n != 4 {
		t.Errorf("received: got %d", n)
	}
	if n := filter.Lookup(c.ByPriority, "critical"); n != 2 {
		t.Errorf("critical: got %d", n)
	}
	if n := filter.Lookup(c.ByCategory, "WASTE"); n != 3 {
		t.Errorf("WASTE: got %d", n)
	}
	if c.ByCategory[0].Key != "ROAD_DEFECTS" {
		t.Errorf("categories should follow table order, first is %q", c.ByCategory[0].Key)
	}
}

func TestCountEmptyListsKnownBuckets(t *testing.T) {
	c := filter.Count(nil)
	if len(c.ByStatus) != 3 || len(c.ByPriority) != 4 || len(c.ByCategory) != 0 {
		t.Errorf("empty counts: %+v", c)
	}
}
