package bulletin

import (
	"sort"
	"time"
)

// recurringThreshold is the minimum number of appearances (across years)
// for a title to count as a recurring event.
const recurringThreshold = 3

// RecurringEvent is one title that repeats in a given month across years.
type RecurringEvent struct {
	Title string `json:"title"`
	Count int    `json:"count"`

	// Category and Body come from the first entry of the group in
	// original table order.
	Category string `json:"category"`
	Body     string `json:"body"`
}

// FindRecurring groups the month's entries (across all years) by exact
// title and returns the titles appearing at least three times, sorted by
// count descending. Ties keep first-occurrence order. Returns an empty
// slice when nothing qualifies.
func FindRecurring(t Table, month time.Month) []RecurringEvent {
	type group struct {
		first Entry
		count int
	}

	byTitle := make(map[string]*group)
	order := make([]string, 0)

	for _, e := range t {
		if e.Date.Month() != month {
			continue
		}
		g, ok := byTitle[e.Title]
		if !ok {
			byTitle[e.Title] = &group{first: e, count: 1}
			order = append(order, e.Title)
			continue
		}
		g.count++
	}

	out := make([]RecurringEvent, 0)
	for _, title := range order {
		g := byTitle[title]
		if g.count < recurringThreshold {
			continue
		}
		out = append(out, RecurringEvent{
			Title:    title,
			Count:    g.count,
			Category: g.first.Category,
			Body:     g.first.Body,
		})
	}

	// Stable so equal counts keep first-occurrence order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})

	return out
}
