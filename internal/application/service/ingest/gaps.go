package ingest

import (
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

// computeMissingRanges compares the requested window against per-day coverage
// and returns the market-local spans that still need fetching, ordered by
// start. A day whose bar count is below minRecordsPerDay counts as missing
// and is re-fetched whole; the conflict-safe insert makes that idempotent.
func computeMissingRanges(windowStart, windowEnd time.Time, coverage []marketdata.DayCoverage, minRecordsPerDay int64, loc *time.Location) []marketdata.MissingRange {
	if windowStart.After(windowEnd) {
		return nil
	}
	if len(coverage) == 0 {
		return []marketdata.MissingRange{{Start: windowStart, End: windowEnd}}
	}

	complete := make(map[civilDate]struct{}, len(coverage))
	for _, day := range coverage {
		if day.BarCount >= minRecordsPerDay {
			complete[toCivilDate(day.FirstBarAt.In(loc))] = struct{}{}
		}
	}

	var missing []civilDate
	last := toCivilDate(windowEnd.In(loc))
	for day := toCivilDate(windowStart.In(loc)); !day.after(last); day = day.next() {
		if _, ok := complete[day]; !ok {
			missing = append(missing, day)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var ranges []marketdata.MissingRange
	rangeStart := missing[0]
	prev := missing[0]
	for _, day := range missing[1:] {
		if day == prev.next() {
			prev = day
			continue
		}
		ranges = append(ranges, toDatetimeRange(rangeStart, prev, loc))
		rangeStart = day
		prev = day
	}
	ranges = append(ranges, toDatetimeRange(rangeStart, prev, loc))
	return ranges
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func toCivilDate(t time.Time) civilDate {
	year, month, day := t.Date()
	return civilDate{year: year, month: month, day: day}
}

func (d civilDate) next() civilDate {
	return toCivilDate(time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1))
}

func (d civilDate) after(other civilDate) bool {
	if d.year != other.year {
		return d.year > other.year
	}
	if d.month != other.month {
		return d.month > other.month
	}
	return d.day > other.day
}

// toDatetimeRange spans from the first missing day's local midnight to the
// last missing day's end of day.
func toDatetimeRange(start, end civilDate, loc *time.Location) marketdata.MissingRange {
	return marketdata.MissingRange{
		Start: time.Date(start.year, start.month, start.day, 0, 0, 0, 0, loc),
		End:   time.Date(end.year, end.month, end.day, 23, 59, 59, 0, loc),
	}
}
