package dashboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func ruleSetEvents(ruleSetID string, n int, ts string) []*domain.BreachEvent {
	events := make([]*domain.BreachEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, &domain.BreachEvent{
			ID:         fmt.Sprintf("%s-%d", ruleSetID, i),
			ProviderID: "p1",
			RuleSetID:  ruleSetID,
			Market:     domain.MarketForex,
			OccurredAt: ts,
		})
	}
	return events
}

func TestTopRuleSetsTrends(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		prev      int
		wantDelta int
		wantTrend TrendDirection
	}{
		{name: "Up", count: 12, prev: 10, wantDelta: 20, wantTrend: TrendUp},
		{name: "Down", count: 9, prev: 10, wantDelta: -10, wantTrend: TrendDown},
		{name: "Flat", count: 10, prev: 10, wantDelta: 0, wantTrend: TrendFlat},
		{name: "SmallMoveIsFlat", count: 105, prev: 100, wantDelta: 5, wantTrend: TrendFlat},
		{name: "ZeroPriorForcedUp", count: 3, prev: 0, wantDelta: 100, wantTrend: TrendUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := ruleSetEvents("rs1", tt.count, "2025-03-10T10:00:00Z")
			prior := ruleSetEvents("rs1", tt.prev, "2025-03-03T10:00:00Z")

			ranks := TopRuleSets(main, prior, nil, DefaultTopN)
			if len(ranks) != 1 {
				t.Fatalf("expected one rank, got %d", len(ranks))
			}
			if ranks[0].DeltaPct != tt.wantDelta {
				t.Errorf("delta = %d, want %d", ranks[0].DeltaPct, tt.wantDelta)
			}
			if ranks[0].Trend != tt.wantTrend {
				t.Errorf("trend = %q, want %q", ranks[0].Trend, tt.wantTrend)
			}
		})
	}
}

func TestTopRuleSetsRanking(t *testing.T) {
	var main []*domain.BreachEvent
	// Six rule sets so one falls off the board. rs3 and rs4 tie on 3,
	// with rs3 encountered first.
	main = append(main, ruleSetEvents("rs1", 7, "2025-03-10T10:00:00Z")...)
	main = append(main, ruleSetEvents("rs2", 5, "2025-03-10T10:00:00Z")...)
	main = append(main, ruleSetEvents("rs3", 3, "2025-03-10T10:00:00Z")...)
	main = append(main, ruleSetEvents("rs4", 3, "2025-03-10T11:00:00Z")...)
	main = append(main, ruleSetEvents("rs5", 2, "2025-03-10T10:00:00Z")...)
	main = append(main, ruleSetEvents("rs6", 1, "2025-03-10T10:00:00Z")...)

	names := map[string]string{"rs1": "Scalping Guard"}

	ranks := TopRuleSets(main, nil, names, DefaultTopN)
	if len(ranks) != 5 {
		t.Fatalf("expected top 5, got %d", len(ranks))
	}

	gotOrder := make([]string, len(ranks))
	for i, r := range ranks {
		gotOrder[i] = r.RuleSetID
	}
	wantOrder := []string{"rs1", "rs2", "rs3", "rs4", "rs5"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}

	if ranks[0].Name != "Scalping Guard" {
		t.Errorf("expected resolved name, got %q", ranks[0].Name)
	}
	if ranks[1].Name != "rs2" {
		t.Errorf("unresolved names fall back to the id, got %q", ranks[1].Name)
	}

	// 7 of 21 total.
	if ranks[0].SharePct != 33 {
		t.Errorf("share = %d, want 33", ranks[0].SharePct)
	}
}

func TestSplitWindows(t *testing.T) {
	start := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	events := []*domain.BreachEvent{
		{ID: "main", RuleSetID: "rs1", OccurredAt: "2025-03-10T10:00:00Z"},
		{ID: "prior", RuleSetID: "rs1", OccurredAt: "2025-03-03T10:00:00Z"},
		{ID: "ancient", RuleSetID: "rs1", OccurredAt: "2025-01-01T10:00:00Z"},
		{ID: "bad", RuleSetID: "rs1", OccurredAt: "garbage"},
	}

	main, prior := SplitWindows(events, start, end)
	if len(main) != 1 || main[0].ID != "main" {
		t.Errorf("unexpected main window %v", main)
	}
	if len(prior) != 1 || prior[0].ID != "prior" {
		t.Errorf("unexpected prior window %v", prior)
	}
}
