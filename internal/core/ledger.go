package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayKeyLayout renders a calendar date the way the history view shows it
// (day/month/year). Keys are parsed back with the same layout for ordering.
const DayKeyLayout = "02/01/2006"

// ComputeTotal returns initial plus the signed sum of entries.
// The result does not depend on the order of entries.
func ComputeTotal(entries []Entry, initial decimal.Decimal) decimal.Decimal {
	total := initial
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return total
}

// ComputeDayTotal is ComputeTotal over one day bucket with a zero base.
func ComputeDayTotal(bucket []Entry) decimal.Decimal {
	return ComputeTotal(bucket, decimal.Zero)
}

// DayKey returns the calendar date of t in loc, formatted with DayKeyLayout.
// A nil loc means the process local time zone.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayKeyLayout)
}

// GroupByCalendarDate buckets entries by their local calendar date.
// Within a bucket entries are most-recent-first; entries sharing a timestamp
// keep the relative order they had in the input.
func GroupByCalendarDate(entries []Entry, loc *time.Location) map[string][]Entry {
	groups := make(map[string][]Entry)
	for _, e := range entries {
		key := DayKey(e.Date, loc)
		groups[key] = append(groups[key], e)
	}
	for _, bucket := range groups {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Date.After(bucket[j].Date)
		})
	}
	return groups
}

// SortDateKeys orders day keys most recent day first. Keys are compared as
// dates reconstructed from DayKeyLayout, never as strings. Keys that do not
// parse go last, in lexicographic order.
func SortDateKeys(keys []string) []string {
	type dayKey struct {
		key   string
		day   time.Time
		valid bool
	}
	parsed := make([]dayKey, len(keys))
	for i, k := range keys {
		day, err := time.Parse(DayKeyLayout, strings.TrimSpace(k))
		parsed[i] = dayKey{key: k, day: day, valid: err == nil}
	}
	sort.SliceStable(parsed, func(i, j int) bool {
		a, b := parsed[i], parsed[j]
		switch {
		case a.valid && b.valid:
			return a.day.After(b.day)
		case a.valid != b.valid:
			return a.valid
		default:
			return a.key < b.key
		}
	})
	out := make([]string, len(parsed))
	for i, p := range parsed {
		out[i] = p.key
	}
	return out
}

// FilterAutocomplete returns the keywords that start with prefix, ignoring
// case. Leading blanks in prefix are ignored and a blank prefix matches
// nothing. Keyword order is preserved.
func FilterAutocomplete(keywords []string, prefix string) []string {
	p := strings.ToLower(strings.TrimLeft(prefix, " \t"))
	out := []string{}
	if strings.TrimSpace(p) == "" {
		return out
	}
	for _, k := range keywords {
		if strings.HasPrefix(strings.ToLower(k), p) {
			out = append(out, k)
		}
	}
	return out
}

// PaginateDateGroups returns a copy of the first visible keys.
func PaginateDateGroups(keys []string, visible int) []string {
	if visible <= 0 {
		return []string{}
	}
	if visible > len(keys) {
		visible = len(keys)
	}
	out := make([]string, visible)
	copy(out, keys[:visible])
	return out
}

// Keywords lists the distinct comments of entries in input order.
// Duplicates are detected case-insensitively and the first spelling wins.
func Keywords(entries []Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		c := strings.TrimSpace(e.Comment)
		if c == "" {
			continue
		}
		k := strings.ToLower(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
