package bulletin

import (
	"sort"
	"strings"
)

// SearchLimit caps how many results a search returns for display.
const SearchLimit = 50

// Search filters the table by a case-insensitive keyword over title and
// body, and by an optional category set. Results are sorted newest-first
// and capped at SearchLimit. Total is the match count before capping.
func Search(t Table, keyword string, categories []string) (results []Entry, total int) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	var catSet map[string]struct{}
	if len(categories) > 0 {
		catSet = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			catSet[c] = struct{}{}
		}
	}

	matched := make([]Entry, 0)
	for _, e := range t {
		if keyword != "" {
			inTitle := strings.Contains(strings.ToLower(e.Title), keyword)
			inBody := strings.Contains(strings.ToLower(e.Body), keyword)
			if !inTitle && !inBody {
				continue
			}
		}
		if catSet != nil {
			if _, ok := catSet[e.Category]; !ok {
				continue
			}
		}
		matched = append(matched, e)
	}

	total = len(matched)

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	if len(matched) > SearchLimit {
		matched = matched[:SearchLimit]
	}
	return matched, total
}
