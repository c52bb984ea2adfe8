package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// TrendDirection classifies a rule set's period-over-period movement.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// trendThreshold is the delta% beyond which a trend stops being flat.
const trendThreshold = 10

// RuleSetRank is one row of the top-rule-sets board.
type RuleSetRank struct {
	RuleSetID string         `json:"ruleSetId"`
	Name      string         `json:"name"`
	Count     int            `json:"count"`
	SharePct  int            `json:"sharePct"`
	PrevCount int            `json:"prevCount"`
	DeltaPct  int            `json:"deltaPct"`
	Trend     TrendDirection `json:"trend"`
}

// DefaultTopN is how many rule sets the dashboard board shows.
const DefaultTopN = 5

// TopRuleSets ranks rule sets by breach count in the main window,
// descending, keeps the top n, and computes each one's share of the
// main-window total plus a trend against the equal-length prior window.
// Count ties keep first-encountered order (stable sort). A rule set
// with no prior occurrences and a nonzero count is forced to up/+100.
func TopRuleSets(main, prior []*domain.BreachEvent, names map[string]string, n int) []RuleSetRank {
	if n <= 0 {
		n = DefaultTopN
	}

	counts := make(map[string]int)
	var order []string
	for _, ev := range main {
		if ev.RuleSetID == "" {
			continue
		}
		if _, seen := counts[ev.RuleSetID]; !seen {
			order = append(order, ev.RuleSetID)
		}
		counts[ev.RuleSetID]++
	}

	prevCounts := make(map[string]int)
	for _, ev := range prior {
		prevCounts[ev.RuleSetID]++
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}

	ranks := make([]RuleSetRank, 0, len(order))
	for _, id := range order {
		count := counts[id]
		prev := prevCounts[id]

		share := 0
		if total > 0 {
			share = int(math.Round(float64(count) / float64(total) * 100))
		}

		var delta int
		if prev > 0 {
			delta = int(math.Round(float64(count-prev) / float64(prev) * 100))
		} else if count > 0 {
			delta = 100
		}

		trend := TrendFlat
		switch {
		case prev == 0 && count > 0:
			trend = TrendUp
		case delta >= trendThreshold:
			trend = TrendUp
		case delta <= -trendThreshold:
			trend = TrendDown
		}

		name := names[id]
		if name == "" {
			name = id
		}

		ranks = append(ranks, RuleSetRank{
			RuleSetID: id,
			Name:      name,
			Count:     count,
			SharePct:  share,
			PrevCount: prev,
			DeltaPct:  delta,
			Trend:     trend,
		})
	}
	return ranks
}

// SplitWindows partitions events into the main [start, end] window and
// the equal-length window immediately before it, for trend computation.
func SplitWindows(events []*domain.BreachEvent, start, end time.Time) (main, prior []*domain.BreachEvent) {
	compareStart, compareEnd := ComparisonWindow(start, end)
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		switch {
		case !ts.Before(start) && !ts.After(end):
			main = append(main, ev)
		case !ts.Before(compareStart) && ts.Before(compareEnd):
			prior = append(prior, ev)
		}
	}
	return main, prior
}
