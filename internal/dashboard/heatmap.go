package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// HourCounts is a breach count per UTC hour of day.
type HourCounts [24]int

// HeatmapCell is one market/hour bucket.
type HeatmapCell struct {
	Market domain.Market `json:"market"`
	Hour   int           `json:"hour"`
	Count  int           `json:"count"`
}

// Session is a contiguous block of hours with an aggregated count,
// either grouped dynamically or drawn from the fixed trading sessions.
type Session struct {
	Label string `json:"label"`
	Hours []int  `json:"hours"`
	Count int    `json:"count"`
}

// HourlyBuckets buckets breach counts by UTC hour per market. Markets
// appear in alphabetical order, hours 0-23 in order; empty buckets for
// a market are kept so the heatmap rows stay rectangular.
func HourlyBuckets(events []*domain.BreachEvent) []HeatmapCell {
	perMarket := make(map[domain.Market]*HourCounts)
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		counts, ok := perMarket[ev.Market]
		if !ok {
			counts = &HourCounts{}
			perMarket[ev.Market] = counts
		}
		counts[ts.In(time.UTC).Hour()]++
	}

	markets := make([]domain.Market, 0, len(perMarket))
	for m := range perMarket {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i] < markets[j] })

	cells := make([]HeatmapCell, 0, len(markets)*24)
	for _, m := range markets {
		for h := 0; h < 24; h++ {
			cells = append(cells, HeatmapCell{Market: m, Hour: h, Count: perMarket[m][h]})
		}
	}
	return cells
}

// MarketHourCounts folds events of one market into an HourCounts row.
func MarketHourCounts(events []*domain.BreachEvent, market domain.Market) HourCounts {
	var counts HourCounts
	for _, ev := range events {
		if market != domain.MarketAll && ev.Market != market {
			continue
		}
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		counts[ts.In(time.UTC).Hour()]++
	}
	return counts
}

// maxSessionGap is the largest run of quiet hours absorbed into a
// dynamic session.
const maxSessionGap = 2

// DynamicSessions groups consecutive active hours into synthetic
// sessions when no fixed session table applies. A run of at most
// maxSessionGap quiet hours is absorbed into the surrounding session;
// the session keeps the summed count. Labels are "HH:00-HH:00" hour
// ranges.
func DynamicSessions(counts HourCounts) []Session {
	var sessions []Session
	start, last := -1, -1
	sum := 0

	flush := func() {
		if start < 0 {
			return
		}
		hours := make([]int, 0, last-start+1)
		for h := start; h <= last; h++ {
			hours = append(hours, h)
		}
		sessions = append(sessions, Session{
			Label: fmt.Sprintf("%02d:00-%02d:00", start, (last+1)%24),
			Hours: hours,
			Count: sum,
		})
		start, last, sum = -1, -1, 0
	}

	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		if start < 0 {
			start = h
		} else if h-last-1 > maxSessionGap {
			flush()
			start = h
		}
		last = h
		sum += counts[h]
	}
	flush()
	return sessions
}

// fixedSession is one canonical trading session. Sydney crosses
// midnight (21:00-00:59), so its hour set is the union of 21-23 and 0.
type fixedSession struct {
	name  string
	hours []int
}

func hourRange(from, to int) []int {
	hours := make([]int, 0, to-from+1)
	for h := from; h <= to; h++ {
		hours = append(hours, h)
	}
	return hours
}

var fixedSessions = []fixedSession{
	{name: "Sydney", hours: append(hourRange(21, 23), 0)},
	{name: "Tokyo", hours: hourRange(1, 7)},
	{name: "London", hours: hourRange(8, 12)},
	{name: "New York", hours: hourRange(13, 17)},
	{name: "After-hours", hours: hourRange(18, 20)},
}

// FixedSessions folds hourly counts into the canonical trading-session
// boundaries. Every session appears, even with a zero count.
func FixedSessions(counts HourCounts) []Session {
	sessions := make([]Session, 0, len(fixedSessions))
	for _, fs := range fixedSessions {
		sum := 0
		for _, h := range fs.hours {
			sum += counts[h]
		}
		sessions = append(sessions, Session{
			Label: fs.name,
			Hours: fs.hours,
			Count: sum,
		})
	}
	return sessions
}
