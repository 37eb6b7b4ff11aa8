// Package liturgical pulls church-calendar ICS feeds (liturgical seasons,
// denominational observances) and extracts the occurrences falling in a
// target month. The suggestion composer embeds them as calendar context so
// the model can ground its "특별 고려사항" section.
package liturgical

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	appLog "jubo/internal/log"
)

// Source is one subscribed ICS feed.
type Source struct {
	ID   string
	Name string
	URL  string
}

// Note is a single observance in the target month.
type Note struct {
	Date    time.Time `json:"date"`
	Summary string    `json:"summary"`
	Source  string    `json:"source"`
}

var fetchClient = &http.Client{Timeout: 15 * time.Second}

// fetch downloads one ICS body. Feeds are small and public; no
// conditional-GET cache here, the caller only pulls on suggestion requests.
func fetch(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// MonthNotes fetches all sources and returns their occurrences within the
// given month of the given year, in loc. Individual feed failures are
// logged and skipped; the suggestion flow works fine without them.
func MonthNotes(ctx context.Context, sources []Source, year int, month time.Month, loc *time.Location) []Note {
	if loc == nil {
		loc = time.Local
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	until := from.AddDate(0, 1, 0)

	var notes []Note
	for _, src := range sources {
		body, err := fetch(ctx, src)
		if err != nil {
			appLog.Error("liturgical feed fetch failed", err, "id", src.ID)
			continue
		}
		events, err := parseICS(body)
		if err != nil {
			appLog.Error("liturgical feed parse failed", err, "id", src.ID)
			continue
		}
		notes = append(notes, expandWithin(src, events, from, until, loc)...)
	}

	return notes
}
