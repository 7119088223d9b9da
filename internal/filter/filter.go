// Package filter holds the report filter state and the pure filter engine.
//
// A State has four independent dimensions: status, priority, category and
// free-text search. Each enumerated dimension defaults to All, which matches
// everything. A report passes Apply iff it satisfies every dimension.
package filter

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jarqyn/jarqyn/internal/model"
)

// All disables filtering on a dimension.
const All = "all"

// State is the current filter selection. The zero value is not valid; use
// Default.
type State struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Category string `json:"category"`
	Search   string `json:"search,omitempty"`
}

// Default returns a State that matches every report.
func Default() State {
	return State{Status: All, Priority: All, Category: All}
}

// Parse builds a State from user input, treating empty values as All.
// Status and priority are lower-cased; category is kept as given.
func Parse(status, priority, category, search string) (State, error) {
	s := Default()
	if v := strings.ToLower(strings.TrimSpace(status)); v != "" {
		s.Status = v
	}
	if v := strings.ToLower(strings.TrimSpace(priority)); v != "" {
		s.Priority = v
	}
	if v := strings.TrimSpace(category); v != "" && !strings.EqualFold(v, All) {
		s.Category = v
	}
	s.Search = strings.TrimSpace(search)
	return s, s.Validate()
}

// FromQuery reads a State from URL query parameters.
func FromQuery(q url.Values) (State, error) {
	return Parse(q.Get("status"), q.Get("priority"), q.Get("category"), q.Get("search"))
}

// Validate checks that status and priority are All or a known value.
// Categories are open-ended, so any non-empty value is accepted.
func (s State) Validate() error {
	if s.Status != All && !model.Status(s.Status).Known() {
		return fmt.Errorf("invalid status %q: expected all|received|in_process|done", s.Status)
	}
	if s.Priority != All && !model.Priority(s.Priority).Known() {
		return fmt.Errorf("invalid priority %q: expected all|low|medium|high|critical", s.Priority)
	}
	if s.Category == "" {
		return fmt.Errorf("category must be %q or a category value", All)
	}
	return nil
}

// IsDefault reports whether the state filters nothing.
func (s State) IsDefault() bool {
	return s.Status == All && s.Priority == All && s.Category == All && strings.TrimSpace(s.Search) == ""
}

// WithStatus returns a copy of s with the status dimension set.
func (s State) WithStatus(v string) State { s.Status = v; return s }

// WithPriority returns a copy of s with the priority dimension set.
func (s State) WithPriority(v string) State { s.Priority = v; return s }

// WithCategory returns a copy of s with the category dimension set.
func (s State) WithCategory(v string) State { s.Category = v; return s }

// WithSearch returns a copy of s with the search text set.
func (s State) WithSearch(v string) State { s.Search = v; return s }

// Query encodes the state as report-service query parameters. All
// dimensions are omitted; status is upper-cased as the service expects.
func (s State) Query() url.Values {
	q := url.Values{}
	if active(s.Status) {
		q.Set("status", strings.ToUpper(s.Status))
	}
	if active(s.Priority) {
		q.Set("priority", s.Priority)
	}
	if active(s.Category) {
		q.Set("category", s.Category)
	}
	if t := strings.TrimSpace(s.Search); t != "" {
		q.Set("search", t)
	}
	return q
}

// String renders the state for log lines and table headers.
func (s State) String() string {
	str := fmt.Sprintf("status=%s priority=%s category=%s", s.Status, s.Priority, s.Category)
	if t := strings.TrimSpace(s.Search); t != "" {
		str += fmt.Sprintf(" search=%q", t)
	}
	return str
}

// ─── Engine ───────────────────────────────────────────────────────────────────

// Apply returns the reports matching s, in input order. The input slice is
// never modified and the result never aliases it.
func Apply(reports []model.ReportView, s State) []model.ReportView {
	m := newMatcher(s)
	out := make([]model.ReportView, 0, len(reports))
	for _, r := range reports {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a single report passes s.
func Matches(r model.ReportView, s State) bool {
	return newMatcher(s).match(r)
}

// matcher caches the folded search needle across a batch.
type matcher struct {
	state  State
	needle string
	folder cases.Caser
}

func newMatcher(s State) *matcher {
	m := &matcher{state: s, folder: cases.Fold()}
	if t := strings.TrimSpace(s.Search); t != "" {
		m.needle = m.folder.String(t)
	}
	return m
}

// active treats an unset dimension like All.
func active(v string) bool { return v != All && v != "" }

func (m *matcher) match(r model.ReportView) bool {
	if active(m.state.Status) && string(r.Status) != m.state.Status {
		return false
	}
	if active(m.state.Priority) && string(r.Priority) != m.state.Priority {
		return false
	}
	if active(m.state.Category) && r.Category != m.state.Category {
		return false
	}
	if m.needle != "" && !strings.Contains(m.folder.String(r.Description), m.needle) {
		return false
	}
	return true
}
