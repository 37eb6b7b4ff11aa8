package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"time"

	"jubo/internal/bulletin"
	appLog "jubo/internal/log"
)

// Column headers accepted in the sheet, Korean first (the bulletin sheet
// uses 날짜/카테고리/제목/내용), with English aliases.
var headerAliases = map[string]string{
	"날짜":       "date",
	"date":     "date",
	"카테고리":     "category",
	"category": "category",
	"제목":       "title",
	"title":    "title",
	"내용":       "body",
	"body":     "body",
}

// dateLayouts are tried in order for the date column. Go's "1"/"2" layout
// digits accept both padded and unpadded values.
var dateLayouts = []string{
	"2006-1-2",
	"2006.1.2",
	"2006/1/2",
	"2006-1-2 15:04:05",
}

// ParseCSV parses a sheet CSV export into a Table.
//
// The first row must be a header naming at least the date, category and
// title columns. Rows whose date cannot be parsed are dropped (counted in
// dropped), not fatal. Dates are interpreted in loc.
func ParseCSV(body []byte, loc *time.Location) (table bulletin.Table, dropped int, err error) {
	if len(body) == 0 {
		return nil, 0, errors.New("empty CSV body")
	}
	if loc == nil {
		loc = time.Local
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1 // sheets pad/truncate trailing columns freely

	rows, err := r.ReadAll()
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, errors.New("CSV has no header row")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if name, ok := headerAliases[key]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}

	for _, required := range []string{"date", "category", "title"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, errors.New("CSV header missing required column: " + required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	table = make(bulletin.Table, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := field(row, "date")
		if raw == "" {
			dropped++
			continue
		}
		date, ok := parseDate(raw, loc)
		if !ok {
			dropped++
			appLog.Debug("sheet row dropped: unparseable date", "value", raw)
			continue
		}
		table = append(table, bulletin.Entry{
			Date:     date,
			Category: field(row, "category"),
			Title:    field(row, "title"),
			Body:     field(row, "body"),
		})
	}

	return table, dropped, nil
}

func parseDate(v string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
