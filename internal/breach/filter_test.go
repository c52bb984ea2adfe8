package breach

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func sampleEvents() []*domain.BreachEvent {
	return []*domain.BreachEvent{
		{
			ID:         "a",
			OccurredAt: "2025-01-10T10:00:00Z",
			ProviderID: "p1",
			Market:     domain.MarketForex,
			RuleSetID:  "rs1",
			SubRuleID:  "sr1",
			RuleType:   domain.RuleTypeCoolingOff,
			Action:     domain.ActionCooldownTriggered,
		},
		{
			ID:         "b",
			OccurredAt: "2025-01-05T10:00:00Z",
			ProviderID: "p2",
			Market:     domain.MarketCrypto,
			RuleSetID:  "rs2",
			SubRuleID:  "sr2",
			RuleType:   domain.RuleTypeMaxActiveTrades,
			Action:     domain.ActionSignalRejected,
		},
		{
			ID:         "c",
			OccurredAt: "2025-01-08T23:59:59Z",
			ProviderID: "p1",
			Market:     domain.MarketForex,
			RuleSetID:  "rs1",
			SubRuleID:  "sr3",
			RuleType:   domain.RuleTypePipCancelLimit,
			Action:     domain.ActionSuspensionApplied,
		},
		{
			ID:         "d",
			OccurredAt: "not-a-timestamp",
			ProviderID: "p3",
			Market:     domain.MarketIndices,
			RuleSetID:  "rs3",
			SubRuleID:  "sr4",
			RuleType:   domain.RuleTypeDirectionGuard,
			Action:     domain.ActionCooldownTriggered,
		},
	}
}

func ids(events []*domain.BreachEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterByDateRange(t *testing.T) {
	events := sampleEvents()

	t.Run("InclusiveBothEnds", func(t *testing.T) {
		from := time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
		got := FilterByDateRange(events, &from, &to)
		if !equalIDs(ids(got), []string{"a", "c"}) {
			t.Errorf("expected [a c], got %v", ids(got))
		}
	})

	t.Run("EndOfDayWidening", func(t *testing.T) {
		// Breach at 23:59:59 of the to date must be included even
		// though the bound was given at midnight.
		day := time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)
		got := FilterByDateRange(events, &day, &day)
		if !equalIDs(ids(got), []string{"c"}) {
			t.Errorf("expected [c], got %v", ids(got))
		}
	})

	t.Run("OpenLowerBound", func(t *testing.T) {
		to := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
		got := FilterByDateRange(events, nil, &to)
		if !equalIDs(ids(got), []string{"b"}) {
			t.Errorf("expected [b], got %v", ids(got))
		}
	})

	t.Run("OpenUpperBound", func(t *testing.T) {
		from := time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC)
		got := FilterByDateRange(events, &from, nil)
		if !equalIDs(ids(got), []string{"a"}) {
			t.Errorf("expected [a], got %v", ids(got))
		}
	})

	t.Run("MalformedTimestampExcluded", func(t *testing.T) {
		got := FilterByDateRange(events, nil, nil)
		for _, ev := range got {
			if ev.ID == "d" {
				t.Error("event with malformed timestamp must be excluded")
			}
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		from := time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)
		once := FilterByDateRange(events, &from, nil)
		twice := FilterByDateRange(once, &from, nil)
		if !equalIDs(ids(once), ids(twice)) {
			t.Errorf("filter is not idempotent: %v vs %v", ids(once), ids(twice))
		}
	})
}

func TestNoOpSentinels(t *testing.T) {
	events := sampleEvents()

	t.Run("MarketAll", func(t *testing.T) {
		got := FilterByMarket(events, domain.MarketAll)
		if !equalIDs(ids(got), ids(events)) {
			t.Errorf("All must preserve length and order, got %v", ids(got))
		}
	})

	t.Run("RuleSetAll", func(t *testing.T) {
		got := FilterByRuleSet(events, domain.RuleSetAll)
		if !equalIDs(ids(got), ids(events)) {
			t.Errorf("all must preserve length and order, got %v", ids(got))
		}
	})

	t.Run("EmptyRuleTypeSelection", func(t *testing.T) {
		got := FilterByRuleTypes(events, nil)
		if !equalIDs(ids(got), ids(events)) {
			t.Errorf("empty selection must match everything, got %v", ids(got))
		}
	})

	t.Run("EmptyActionSelection", func(t *testing.T) {
		got := FilterByActions(events, nil)
		if !equalIDs(ids(got), ids(events)) {
			t.Errorf("empty selection must match everything, got %v", ids(got))
		}
	})
}

func TestFilterByMarket(t *testing.T) {
	events := sampleEvents()
	got := FilterByMarket(events, domain.MarketForex)
	if !equalIDs(ids(got), []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", ids(got))
	}
	if !equalIDs(ids(FilterByMarket(got, domain.MarketForex)), ids(got)) {
		t.Error("market filter is not idempotent")
	}
}

func TestFilterByRuleTypes(t *testing.T) {
	events := sampleEvents()
	got := FilterByRuleTypes(events, []domain.RuleType{domain.RuleTypeCoolingOff, domain.RuleTypePipCancelLimit})
	if !equalIDs(ids(got), []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", ids(got))
	}
}

func TestFilterByActions(t *testing.T) {
	events := sampleEvents()

	got := FilterByActions(events, []domain.ActionFilter{domain.ActionFilterPaused})
	if !equalIDs(ids(got), []string{"a", "d"}) {
		t.Errorf("expected [a d], got %v", ids(got))
	}

	got = FilterByActions(events, []domain.ActionFilter{domain.ActionFilterSuspended, domain.ActionFilterRejected})
	if !equalIDs(ids(got), []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", ids(got))
	}
}

func TestApplyRawFiltersScenario(t *testing.T) {
	// The canonical end-to-end slice: two breaches, a date range that
	// covers only one, market All.
	events := []*domain.BreachEvent{
		{ID: "a", OccurredAt: "2025-01-10T10:00:00Z", ProviderID: "p1", Market: domain.MarketForex, RuleSetID: "rs1", Action: domain.ActionCooldownTriggered},
		{ID: "b", OccurredAt: "2025-01-05T10:00:00Z", ProviderID: "p2", Market: domain.MarketCrypto, RuleSetID: "rs2", Action: domain.ActionSignalRejected},
	}

	f, err := domain.DefaultFilterState().WithCustomRange(
		time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := ApplyRawFilters(events, f, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalIDs(ids(got), []string{"a"}) {
		t.Fatalf("expected only [a] to survive, got %v", ids(got))
	}

	transformed := Transform(got, Lookups{})
	if transformed[0].Action != LabelCooldown {
		t.Errorf("expected action label %q, got %q", LabelCooldown, transformed[0].Action)
	}
}

func TestSearchByProvider(t *testing.T) {
	events := []domain.TransformedBreachEvent{
		{ID: "a", Provider: "GoldSniper FX"},
		{ID: "b", Provider: "Momentum Crypto"},
		{ID: "c", Provider: "goldrush"},
	}

	got := SearchByProvider(events, "GOLD")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("case-insensitive substring match failed: %+v", got)
	}

	if len(SearchByProvider(events, "")) != 3 {
		t.Error("empty query must be a no-op")
	}
}
