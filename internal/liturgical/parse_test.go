package liturgical

import (
	"strings"
	"testing"
	"time"
)

const testICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//church-calendar//KO\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:easter-2025\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250420\r\n" +
	"SUMMARY:부활절\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:thanksgiving-sunday\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20211107\r\n" +
	"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU\r\n" +
	"SUMMARY:추수감사주일\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events, err := parseICS([]byte(testICS))
	if err != nil {
		t.Fatalf("parseICS() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	byName := map[string]feedEvent{}
	for _, ev := range events {
		byName[ev.Summary] = ev
	}

	easter, ok := byName["부활절"]
	if !ok {
		t.Fatal("부활절 missing")
	}
	if easter.Start.Year() != 2025 || easter.Start.Month() != time.April || easter.Start.Day() != 20 {
		t.Errorf("easter start = %v", easter.Start)
	}
	if easter.RawRRule != "" {
		t.Errorf("easter should have no RRULE, got %q", easter.RawRRule)
	}

	tg, ok := byName["추수감사주일"]
	if !ok {
		t.Fatal("추수감사주일 missing")
	}
	if !strings.Contains(tg.RawRRule, "FREQ=YEARLY") {
		t.Errorf("rrule lost: %q", tg.RawRRule)
	}
}

func TestParseICSEmpty(t *testing.T) {
	if _, err := parseICS(nil); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestExpandWithinPlainEvent(t *testing.T) {
	src := Source{ID: "church", Name: "교회력"}
	events := []feedEvent{
		{Summary: "부활절", Start: time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC)},
		{Summary: "성탄절", Start: time.Date(2025, time.December, 25, 0, 0, 0, 0, time.UTC)},
	}

	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 1, 0)

	notes := expandWithin(src, events, from, until, time.UTC)
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	if notes[0].Summary != "부활절" || notes[0].Source != "교회력" {
		t.Errorf("unexpected note: %+v", notes[0])
	}
}

func TestExpandWithinYearlyRRule(t *testing.T) {
	src := Source{ID: "church"}
	events := []feedEvent{{
		Summary:  "추수감사주일",
		Start:    time.Date(2021, time.November, 7, 0, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	}}

	from := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 1, 0)

	notes := expandWithin(src, events, from, until, time.UTC)
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	// First Sunday of November 2025.
	if notes[0].Date.Day() != 2 {
		t.Errorf("expected Nov 2, got %v", notes[0].Date)
	}
	if notes[0].Source != "church" {
		t.Errorf("source label should fall back to ID, got %q", notes[0].Source)
	}
}

func TestExpandWithinOutOfRangeRRule(t *testing.T) {
	src := Source{ID: "church"}
	events := []feedEvent{{
		Summary:  "추수감사주일",
		Start:    time.Date(2021, time.November, 7, 0, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	}}

	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	notes := expandWithin(src, events, from, from.AddDate(0, 1, 0), time.UTC)
	if len(notes) != 0 {
		t.Errorf("November-only event must not appear in March: %+v", notes)
	}
}
