package liturgical

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// feedEvent is a VEVENT reduced to what the month-notes extraction needs:
// a summary, a start date and an optional recurrence rule. Liturgical feeds
// are almost exclusively all-day yearly events.
type feedEvent struct {
	Summary  string
	Start    time.Time
	RawRRule string
}

func parseICS(body []byte) ([]feedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]feedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		var ev feedEvent
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			ev.Summary = p.Value
		}
		if ev.Summary == "" {
			continue
		}

		start, err := ve.GetStartAt()
		if err != nil || start.IsZero() {
			// DATE-only DTSTART sometimes fails the library's datetime
			// path; fall back to parsing the raw value.
			if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
				if t, perr := parseDateValue(p.Value); perr == nil {
					start = t
				}
			}
		}
		if start.IsZero() {
			continue
		}
		ev.Start = start

		if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
			ev.RawRRule = p.Value
		}

		events = append(events, ev)
	}

	return events, nil
}

func parseDateValue(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}

// expandWithin yields the notes of all events intersecting [from, until).
// RRULE events (FREQ=YEARLY for virtually every liturgical feed) are
// expanded via the rule; plain events are kept when they fall in range.
func expandWithin(src Source, events []feedEvent, from, until time.Time, loc *time.Location) []Note {
	label := src.Name
	if label == "" {
		label = src.ID
	}

	var out []Note
	for _, ev := range events {
		if ev.RawRRule == "" {
			d := ev.Start.In(loc)
			if !d.Before(from) && d.Before(until) {
				out = append(out, Note{Date: d, Summary: ev.Summary, Source: label})
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			continue
		}
		r.DTStart(ev.Start)

		// Between() operates in the event's own location.
		start := from.In(ev.Start.Location())
		end := until.In(ev.Start.Location())
		for _, t := range r.Between(start, end, true) {
			d := t.In(loc)
			if d.Before(until) {
				out = append(out, Note{Date: d, Summary: ev.Summary, Source: label})
			}
		}
	}

	return out
}
