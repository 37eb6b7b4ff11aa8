// Package suggest builds the next-month announcement prompt from the
// bulletin archive and delegates it to the Gemini gateway.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jubo/internal/bulletin"
	"jubo/internal/gemini"
	"jubo/internal/liturgical"
	appLog "jubo/internal/log"
)

const (
	// maxPromptEntries bounds the past-entry payload embedded in the
	// prompt; entries keep original table order, not re-sorted.
	maxPromptEntries = 50

	// maxRecurring bounds the recurring-event payload.
	maxRecurring = 20
)

// genConfig is fixed: low randomness, bounded output.
var genConfig = gemini.GenerationConfig{
	Temperature:     0.3,
	MaxOutputTokens: 2000,
}

// entryDTO mirrors the sheet's own column names so the model sees the data
// the way the bulletin team writes it.
type entryDTO struct {
	Date     string `json:"날짜"`
	Category string `json:"카테고리"`
	Title    string `json:"제목"`
	Body     string `json:"내용"`
}

type recurringDTO struct {
	Count    int    `json:"횟수"`
	Category string `json:"카테고리"`
	Body     string `json:"내용"`
}

// Composer assembles suggestion prompts and forwards them to the gateway.
type Composer struct {
	pool    *gemini.Pool
	sources []liturgical.Source
	loc     *time.Location
}

func New(pool *gemini.Pool, sources []liturgical.Source, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{pool: pool, sources: sources, loc: loc}
}

// Suggest composes the prompt for month and returns the gateway result
// verbatim, success text or terminal failure message alike.
func (c *Composer) Suggest(ctx context.Context, table bulletin.Table, month time.Month) (gemini.Result, error) {
	var notes []liturgical.Note
	if len(c.sources) > 0 {
		notes = liturgical.MonthNotes(ctx, c.sources, upcomingYear(month, time.Now().In(c.loc)), month, c.loc)
	}

	prompt := BuildPrompt(table, month, notes)
	appLog.Debug("suggestion prompt composed", "month", int(month), "prompt_bytes", len(prompt), "liturgical_notes", len(notes))

	return c.pool.Generate(ctx, prompt, genConfig)
}

// upcomingYear picks the year of the next occurrence of month, which is
// what "next month's bulletin" means from the office's point of view.
func upcomingYear(month time.Month, now time.Time) int {
	if month < now.Month() {
		return now.Year() + 1
	}
	return now.Year()
}

// BuildPrompt renders the instruction template: the month's past entries
// (first 50 in table order), the recurring-event groups (top 20) and any
// liturgical notes, followed by the three required answer sections.
func BuildPrompt(table bulletin.Table, month time.Month, notes []liturgical.Note) string {
	m := int(month)

	past := make([]entryDTO, 0, maxPromptEntries)
	for _, e := range table {
		if e.Date.Month() != month {
			continue
		}
		past = append(past, entryDTO{
			Date:     e.Date.Format("2006-01-02"),
			Category: e.Category,
			Title:    e.Title,
			Body:     e.Body,
		})
		if len(past) == maxPromptEntries {
			break
		}
	}

	recurring := bulletin.FindRecurring(table, month)
	if len(recurring) > maxRecurring {
		recurring = recurring[:maxRecurring]
	}
	recurringByTitle := make(map[string]recurringDTO, len(recurring))
	for _, r := range recurring {
		recurringByTitle[r.Title] = recurringDTO{
			Count:    r.Count,
			Category: r.Category,
			Body:     r.Body,
		}
	}

	pastJSON, _ := json.MarshalIndent(past, "", "  ")
	recurringJSON, _ := json.MarshalIndent(recurringByTitle, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "다음은 성서교회의 과거 %d월 주보 데이터입니다.\n\n", m)
	fmt.Fprintf(&b, "**과거 %d월 주요 이벤트 (최근 %d개):**\n%s\n\n", m, len(past), pastJSON)
	fmt.Fprintf(&b, "**%d월에 3년 이상 반복되는 이벤트:**\n%s\n", m, recurringJSON)

	if len(notes) > 0 {
		fmt.Fprintf(&b, "\n**%d월 교회력/절기 참고:**\n", m)
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", n.Date.Format("2006-01-02"), n.Summary, n.Source)
		}
	}

	fmt.Fprintf(&b, `
이 데이터를 바탕으로 올해 %d월에 필요한 주보 광고를 추천해주세요.

다음 형식으로 답변해주세요:

## %d월 필수 광고 (매년 반복)
1. [광고명] - [추천 게재 주차]

## %d월 권장 광고
1. [광고명] - [추천 게재 주차]

## 특별 고려사항
- [교회 절기나 특별한 날]
`, m, m, m)

	return b.String()
}
