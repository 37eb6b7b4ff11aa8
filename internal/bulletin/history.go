package bulletin

import "time"

// HistoricalWeek finds, for every past year in the table, the entries that
// fall in the same week of the year as ref: either the same ISO week
// number, or the same month with the day of month within ±7 days of ref's.
//
// The ±7 window is a plain integer comparison on the day of month; values
// like -3 or 35 simply never match because the month is also required to be
// equal. 월말/월초 경계에서 이전/다음 달로 넘어가는 보정은 하지 않는다.
//
// Only years strictly before ref's year are considered, and years with no
// qualifying entries are omitted entirely from the result.
func HistoricalWeek(t Table, ref time.Time) map[int][]Entry {
	_, week := ref.ISOWeek()
	month := ref.Month()
	day := ref.Day()

	minYear, _, ok := t.YearRange()
	if !ok {
		return map[int][]Entry{}
	}

	history := make(map[int][]Entry)

	for year := minYear; year < ref.Year(); year++ {
		var matches []Entry
		for _, e := range t {
			if e.Date.Year() != year {
				continue
			}
			_, w := e.Date.ISOWeek()
			sameWeek := w == week
			nearDay := e.Date.Month() == month &&
				e.Date.Day() >= day-7 && e.Date.Day() <= day+7
			if sameWeek || nearDay {
				matches = append(matches, e)
			}
		}
		if len(matches) > 0 {
			history[year] = matches
		}
	}

	return history
}

// HistoryYears returns the keys of a HistoricalWeek result newest-first,
// which is the order the UI presents them in (newest group expanded).
func HistoryYears(history map[int][]Entry) []int {
	years := make([]int, 0, len(history))
	for y := range history {
		years = append(years, y)
	}
	// Small n; insertion sort descending.
	for i := 1; i < len(years); i++ {
		for j := i; j > 0 && years[j] > years[j-1]; j-- {
			years[j], years[j-1] = years[j-1], years[j]
		}
	}
	return years
}
