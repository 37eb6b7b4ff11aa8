package suggest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"jubo/internal/bulletin"
	"jubo/internal/liturgical"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildPromptSections(t *testing.T) {
	table := bulletin.Table{
		{Date: date(2022, time.March, 6), Category: "행사", Title: "봄맞이 대청소", Body: "본당 청소"},
		{Date: date(2023, time.March, 5), Category: "행사", Title: "봄맞이 대청소"},
		{Date: date(2024, time.March, 3), Category: "행사", Title: "봄맞이 대청소"},
	}

	prompt := BuildPrompt(table, time.March, nil)

	for _, want := range []string{
		"과거 3월 주보 데이터",
		"3년 이상 반복되는 이벤트",
		"## 3월 필수 광고 (매년 반복)",
		"## 3월 권장 광고",
		"## 특별 고려사항",
		"봄맞이 대청소",
		"2022-03-06",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptFiltersMonth(t *testing.T) {
	table := bulletin.Table{
		{Date: date(2023, time.March, 5), Title: "3월 행사"},
		{Date: date(2023, time.April, 2), Title: "4월 행사"},
	}

	prompt := BuildPrompt(table, time.March, nil)
	if !strings.Contains(prompt, "3월 행사") {
		t.Error("March entry missing from prompt")
	}
	if strings.Contains(prompt, "4월 행사") {
		t.Error("April entry must not appear in a March prompt")
	}
}

func TestBuildPromptCapsEntries(t *testing.T) {
	var table bulletin.Table
	for i := 0; i < 70; i++ {
		table = append(table, bulletin.Entry{
			Date:  date(2020, time.May, 1).AddDate(i/28, 0, i%28),
			Title: fmt.Sprintf("항목-%02d", i),
		})
	}

	prompt := BuildPrompt(table, time.May, nil)

	// First 50 in table order are kept, the rest are cut.
	if !strings.Contains(prompt, "항목-00") || !strings.Contains(prompt, "항목-49") {
		t.Error("prompt should contain the first 50 entries in table order")
	}
	if strings.Contains(prompt, "항목-50") {
		t.Error("prompt should cap at 50 entries")
	}
}

func TestBuildPromptLiturgicalNotes(t *testing.T) {
	notes := []liturgical.Note{
		{Date: date(2025, time.April, 20), Summary: "부활절", Source: "교회력"},
	}

	prompt := BuildPrompt(bulletin.Table{}, time.April, notes)
	if !strings.Contains(prompt, "부활절") || !strings.Contains(prompt, "교회력") {
		t.Error("liturgical notes missing from prompt")
	}

	without := BuildPrompt(bulletin.Table{}, time.April, nil)
	if strings.Contains(without, "교회력/절기 참고") {
		t.Error("liturgical section should be omitted when there are no notes")
	}
}

func TestUpcomingYear(t *testing.T) {
	now := time.Date(2025, time.August, 24, 0, 0, 0, 0, time.UTC)

	if got := upcomingYear(time.September, now); got != 2025 {
		t.Errorf("September from August = %d, want 2025", got)
	}
	if got := upcomingYear(time.March, now); got != 2026 {
		t.Errorf("March from August = %d, want 2026", got)
	}
	if got := upcomingYear(time.August, now); got != 2025 {
		t.Errorf("same month = %d, want 2025", got)
	}
}
