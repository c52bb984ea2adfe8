// Package dashboard computes the rollups behind the governance
// dashboard: KPI deltas, breach heatmaps and top rule-set rankings.
// All functions are pure mappings over already-fetched slices.
package dashboard

import (
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

// ChangePct computes the period-over-period percentage change. A zero
// baseline with any current activity reads as +100%, and zero over zero
// as 0%.
func ChangePct(main, compare int) int {
	if compare > 0 {
		return int(math.Round(float64(main-compare) / float64(compare) * 100))
	}
	if main > 0 {
		return 100
	}
	return 0
}

// ComparisonWindow returns the equal-duration window immediately
// preceding [start, end].
func ComparisonWindow(start, end time.Time) (time.Time, time.Time) {
	return start.Add(-end.Sub(start)), start
}

// KPISnapshot is the headline figures for one filter window.
type KPISnapshot struct {
	Breaches          int             `json:"breaches"`
	BreachChangePct   int             `json:"breachChangePct"`
	ProvidersAffected int             `json:"providersAffected"`
	ActiveCooldowns   int             `json:"activeCooldowns"`
	WinRate           decimal.Decimal `json:"winRate"`
}

// CountInWindow counts events inside [from, to], inclusive. Events with
// unparseable timestamps never count.
func CountInWindow(events []*domain.BreachEvent, from, to time.Time) int {
	n := 0
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		if !ts.Before(from) && !ts.After(to) {
			n++
		}
	}
	return n
}

// countBefore counts events inside the half-open [from, to).
func countBefore(events []*domain.BreachEvent, from, to time.Time) int {
	n := 0
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		if !ts.Before(from) && ts.Before(to) {
			n++
		}
	}
	return n
}

// BreachKPIs computes the breach count for [start, end], its delta
// against the immediately preceding window of equal length, and the
// number of distinct providers breaching in the main window.
func BreachKPIs(events []*domain.BreachEvent, start, end time.Time) (count, changePct, providers int) {
	compareStart, compareEnd := ComparisonWindow(start, end)

	count = CountInWindow(events, start, end)
	compare := countBefore(events, compareStart, compareEnd)
	changePct = ChangePct(count, compare)

	seen := make(map[string]bool)
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		if !ts.Before(start) && !ts.After(end) && ev.ProviderID != "" {
			seen[ev.ProviderID] = true
		}
	}
	return count, changePct, len(seen)
}
