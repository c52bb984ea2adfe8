package dashboard

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func hourEvent(market domain.Market, hour int) *domain.BreachEvent {
	return &domain.BreachEvent{
		ID:         fmt.Sprintf("%s-%02d", market, hour),
		ProviderID: "p1",
		RuleSetID:  "rs1",
		Market:     market,
		OccurredAt: fmt.Sprintf("2025-03-10T%02d:15:00Z", hour),
	}
}

func TestHourlyBuckets(t *testing.T) {
	events := []*domain.BreachEvent{
		hourEvent(domain.MarketForex, 8),
		hourEvent(domain.MarketForex, 8),
		hourEvent(domain.MarketCrypto, 3),
		{ID: "bad", Market: domain.MarketForex, OccurredAt: "not-a-time"},
	}

	cells := HourlyBuckets(events)
	if len(cells) != 48 {
		t.Fatalf("expected two rectangular market rows (48 cells), got %d", len(cells))
	}

	byKey := make(map[string]int)
	for _, c := range cells {
		byKey[fmt.Sprintf("%s/%d", c.Market, c.Hour)] = c.Count
	}
	if byKey["Forex/8"] != 2 {
		t.Errorf("expected 2 forex breaches at hour 8, got %d", byKey["Forex/8"])
	}
	if byKey["Crypto/3"] != 1 {
		t.Errorf("expected 1 crypto breach at hour 3, got %d", byKey["Crypto/3"])
	}
	if byKey["Forex/0"] != 0 {
		t.Errorf("empty buckets must still appear, got %d", byKey["Forex/0"])
	}

	// Crypto sorts before Forex.
	if cells[0].Market != domain.MarketCrypto || cells[0].Hour != 0 {
		t.Errorf("expected first cell crypto/0, got %s/%d", cells[0].Market, cells[0].Hour)
	}
}

func TestDynamicSessions(t *testing.T) {
	var counts HourCounts
	// Active hours 8, 9 and 11 fall within the merge gap; 15 does not.
	counts[8] = 3
	counts[9] = 1
	counts[11] = 2
	counts[15] = 4

	sessions := DynamicSessions(counts)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if sessions[0].Label != "08:00-12:00" {
		t.Errorf("unexpected label %q", sessions[0].Label)
	}
	if sessions[0].Count != 6 {
		t.Errorf("expected merged count 6, got %d", sessions[0].Count)
	}
	if !reflect.DeepEqual(sessions[0].Hours, []int{8, 9, 10, 11}) {
		t.Errorf("unexpected hours %v", sessions[0].Hours)
	}

	if sessions[1].Label != "15:00-16:00" || sessions[1].Count != 4 {
		t.Errorf("unexpected second session %+v", sessions[1])
	}
}

func TestDynamicSessionsGapAbsorption(t *testing.T) {
	t.Run("TwoQuietHoursMerge", func(t *testing.T) {
		var counts HourCounts
		counts[1] = 1
		counts[4] = 1

		sessions := DynamicSessions(counts)
		if len(sessions) != 1 {
			t.Fatalf("a two-hour quiet run must be absorbed, got %d sessions", len(sessions))
		}
		if sessions[0].Label != "01:00-05:00" || sessions[0].Count != 2 {
			t.Errorf("unexpected merged session %+v", sessions[0])
		}
		if !reflect.DeepEqual(sessions[0].Hours, []int{1, 2, 3, 4}) {
			t.Errorf("unexpected hours %v", sessions[0].Hours)
		}
	})

	t.Run("ThreeQuietHoursSplit", func(t *testing.T) {
		var counts HourCounts
		counts[1] = 1
		counts[5] = 1

		sessions := DynamicSessions(counts)
		if len(sessions) != 2 {
			t.Fatalf("a three-hour quiet run must split, got %d sessions", len(sessions))
		}
		if sessions[0].Label != "01:00-02:00" || sessions[1].Label != "05:00-06:00" {
			t.Errorf("unexpected session labels %q, %q", sessions[0].Label, sessions[1].Label)
		}
	})
}

func TestDynamicSessionsEmpty(t *testing.T) {
	var counts HourCounts
	if got := DynamicSessions(counts); len(got) != 0 {
		t.Errorf("expected no sessions for quiet day, got %v", got)
	}
}

func TestFixedSessions(t *testing.T) {
	var counts HourCounts
	counts[22] = 2 // Sydney
	counts[0] = 1  // Sydney, past midnight
	counts[9] = 5  // London
	counts[19] = 3 // After-hours

	sessions := FixedSessions(counts)
	if len(sessions) != 5 {
		t.Fatalf("expected all 5 fixed sessions, got %d", len(sessions))
	}

	byLabel := make(map[string]int)
	for _, s := range sessions {
		byLabel[s.Label] = s.Count
	}

	if byLabel["Sydney"] != 3 {
		t.Errorf("Sydney must absorb the midnight wraparound, got %d", byLabel["Sydney"])
	}
	if byLabel["London"] != 5 {
		t.Errorf("expected London count 5, got %d", byLabel["London"])
	}
	if byLabel["After-hours"] != 3 {
		t.Errorf("expected After-hours count 3, got %d", byLabel["After-hours"])
	}
	if byLabel["Tokyo"] != 0 {
		t.Errorf("quiet sessions must still appear with zero, got %d", byLabel["Tokyo"])
	}
}

func TestMarketHourCounts(t *testing.T) {
	events := []*domain.BreachEvent{
		hourEvent(domain.MarketForex, 8),
		hourEvent(domain.MarketCrypto, 8),
		hourEvent(domain.MarketForex, 9),
	}

	forex := MarketHourCounts(events, domain.MarketForex)
	if forex[8] != 1 || forex[9] != 1 {
		t.Errorf("unexpected forex counts %v", forex)
	}

	all := MarketHourCounts(events, domain.MarketAll)
	if all[8] != 2 {
		t.Errorf("expected the all sentinel to count every market, got %d", all[8])
	}
}
