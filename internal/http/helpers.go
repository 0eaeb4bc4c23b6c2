package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// formatAmount shows two decimals unless the value carries more precision.
func formatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return core.FormatAmount(d)
	}
	return d.String()
}

// formatSigned prefixes positive amounts with "+".
func formatSigned(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + formatAmount(d)
	}
	return formatAmount(d)
}

type entryView struct {
	ID        string
	Time      string
	Amount    string
	Comment   string
	Operation string
	Negative  bool
}

type dayView struct {
	Date     string
	Total    string
	Negative bool
	Entries  []entryView
}

type historyView struct {
	Total       string
	Negative    bool
	Days        []dayView
	TotalDays   int
	VisibleDays int
	HasMore     bool
	NextDays    int
}

func newHistoryView(h core.History, loc *time.Location, pageDays int) historyView {
	v := historyView{
		Total:       formatAmount(h.Total),
		Negative:    h.Total.IsNegative(),
		Days:        make([]dayView, 0, len(h.Days)),
		TotalDays:   h.TotalDays,
		VisibleDays: h.VisibleDays,
		HasMore:     h.HasMore,
		NextDays:    h.VisibleDays + pageDays,
	}
	for _, d := range h.Days {
		day := dayView{
			Date:     d.Date,
			Total:    formatSigned(d.Total),
			Negative: d.Total.IsNegative(),
			Entries:  make([]entryView, 0, len(d.Entries)),
		}
		for _, e := range d.Entries {
			day.Entries = append(day.Entries, entryView{
				ID:        e.ID,
				Time:      e.Date.In(loc).Format("15:04"),
				Amount:    formatSigned(e.Signed()),
				Comment:   e.Comment,
				Operation: e.Operation.Effective().String(),
				Negative:  e.Signed().IsNegative(),
			})
		}
		v.Days = append(v.Days, day)
	}
	return v
}

type dayJSON struct {
	Date    string       `json:"date"`
	Total   json.Number  `json:"total"`
	Entries []core.Entry `json:"entries"`
}

type historyJSON struct {
	Days        []dayJSON   `json:"days"`
	Total       json.Number `json:"total"`
	TotalDays   int         `json:"totalDays"`
	VisibleDays int         `json:"visibleDays"`
	HasMore     bool        `json:"hasMore"`
}

func newHistoryJSON(h core.History) historyJSON {
	out := historyJSON{
		Days:        make([]dayJSON, 0, len(h.Days)),
		Total:       jsonAmount(h.Total),
		TotalDays:   h.TotalDays,
		VisibleDays: h.VisibleDays,
		HasMore:     h.HasMore,
	}
	for _, d := range h.Days {
		entries := d.Entries
		if entries == nil {
			entries = []core.Entry{}
		}
		out.Days = append(out.Days, dayJSON{Date: d.Date, Total: jsonAmount(d.Total), Entries: entries})
	}
	return out
}
