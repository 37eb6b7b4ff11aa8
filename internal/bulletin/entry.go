package bulletin

import "time"

// Entry is a single bulletin record pulled from the spreadsheet.
// Entries are immutable once loaded; a refresh replaces the whole table.
type Entry struct {
	// Date is the bulletin date. Rows whose date column could not be
	// parsed never become entries.
	Date time.Time

	Category string
	Title    string

	// Body is the announcement text; may be empty.
	Body string
}

// Table is the full bulletin archive in original sheet order. It is never
// sorted or mutated in place; a fresh pull builds a new Table and the
// loader swaps it atomically.
type Table []Entry

// YearRange returns the smallest and largest entry years. ok is false for
// an empty table.
func (t Table) YearRange() (min, max int, ok bool) {
	if len(t) == 0 {
		return 0, 0, false
	}
	min, max = t[0].Date.Year(), t[0].Date.Year()
	for _, e := range t[1:] {
		y := e.Date.Year()
		if y < min {
			min = y
		}
		if y > max {
			max = y
		}
	}
	return min, max, true
}

// Stats is the header summary shown above the dashboard tabs.
type Stats struct {
	Total      int       `json:"total"`
	FirstYear  int       `json:"first_year"`
	LastYear   int       `json:"last_year"`
	Categories int       `json:"categories"`
	LatestDate time.Time `json:"latest_date"`
}

// ComputeStats summarizes the table: entry count, year span, number of
// distinct categories and the most recent entry date.
func (t Table) ComputeStats() Stats {
	var s Stats
	s.Total = len(t)
	if len(t) == 0 {
		return s
	}

	s.FirstYear, s.LastYear, _ = t.YearRange()

	cats := make(map[string]struct{})
	latest := t[0].Date
	for _, e := range t {
		cats[e.Category] = struct{}{}
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	s.Categories = len(cats)
	s.LatestDate = latest
	return s
}

// CategoryList returns the distinct categories in first-appearance order,
// for populating the search filter UI.
func (t Table) CategoryList() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range t {
		if e.Category == "" {
			continue
		}
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	return out
}
