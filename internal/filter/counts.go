package filter

import (
	"sort"

	"github.com/jarqyn/jarqyn/internal/model"
)

// Count tallies views along each filter dimension. Known statuses and
// priorities are always listed, even at zero, in their canonical order;
// unknown values follow in first-seen order. Categories are listed in table
// order for known values, then unknown values sorted by key.
func Count(views []model.ReportView) model.Counts {
	c := model.Counts{Total: len(views)}

	statuses := map[string]int{}
	priorities := map[string]int{}
	categories := map[string]int{}
	var extraStatus, extraPriority []string

	for _, v := range views {
		if v.HasLocation() {
			c.Located++
		}
		s := string(v.Status)
		if _, seen := statuses[s]; !seen && !v.Status.Known() {
			extraStatus = append(extraStatus, s)
		}
		statuses[s]++

		p := string(v.Priority)
		if _, seen := priorities[p]; !seen && !v.Priority.Known() {
			extraPriority = append(extraPriority, p)
		}
		priorities[p]++

		categories[v.Category]++
	}

	for _, s := range model.Statuses {
		c.ByStatus = append(c.ByStatus, model.Count{Key: string(s), Label: s.Badge().Label, Count: statuses[string(s)]})
	}
	for _, s := range extraStatus {
		c.ByStatus = append(c.ByStatus, model.Count{Key: s, Label: model.Status(s).Badge().Label, Count: statuses[s]})
	}

	for _, p := range model.Priorities {
		c.ByPriority = append(c.ByPriority, model.Count{Key: string(p), Label: p.Badge().Label, Count: priorities[string(p)]})
	}
	for _, p := range extraPriority {
		c.ByPriority = append(c.ByPriority, model.Count{Key: p, Label: p, Count: priorities[p]})
	}

	for _, cat := range model.Categories {
		if n := categories[cat.Value]; n > 0 {
			c.ByCategory = append(c.ByCategory, model.Count{Key: cat.Value, Label: cat.Label, Count: n})
			delete(categories, cat.Value)
		}
	}
	rest := make([]string, 0, len(categories))
	for k := range categories {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		c.ByCategory = append(c.ByCategory, model.Count{Key: k, Label: model.CategoryLabel(k), Count: categories[k]})
	}
	return c
}

// Lookup returns the count for key in a facet list, or 0.
func Lookup(facet []model.Count, key string) int {
	for _, c := range facet {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}
