package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayBucket is the derived view of one calendar day.
type DayBucket struct {
	Date    string
	Total   decimal.Decimal
	Entries []Entry
}

// History is the paginated, day-grouped view of a ledger.
type History struct {
	Days        []DayBucket
	Total       decimal.Decimal
	TotalDays   int
	VisibleDays int
	HasMore     bool
}

// BuildHistory groups a feed (most-recent-first) into day buckets and keeps
// the first visibleDays of them. Total always covers the whole ledger.
func BuildHistory(feed []Entry, initial decimal.Decimal, loc *time.Location, visibleDays int) History {
	groups := GroupByCalendarDate(feed, loc)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	keys = SortDateKeys(keys)
	visible := PaginateDateGroups(keys, visibleDays)

	days := make([]DayBucket, 0, len(visible))
	for _, k := range visible {
		bucket := groups[k]
		days = append(days, DayBucket{
			Date:    k,
			Total:   ComputeDayTotal(bucket),
			Entries: bucket,
		})
	}

	return History{
		Days:        days,
		Total:       ComputeTotal(feed, initial),
		TotalDays:   len(keys),
		VisibleDays: len(visible),
		HasMore:     len(visible) < len(keys),
	}
}
