package domain

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCustomRangeValidation(t *testing.T) {
	from := date(2025, time.January, 1)

	t.Run("Exactly180DaysSucceeds", func(t *testing.T) {
		_, err := DefaultFilterState().WithCustomRange(from, from.AddDate(0, 0, 180))
		if err != nil {
			t.Errorf("180 days must be allowed: %v", err)
		}
	})

	t.Run("181DaysRejected", func(t *testing.T) {
		_, err := DefaultFilterState().WithCustomRange(from, from.AddDate(0, 0, 181))
		if err == nil {
			t.Fatal("expected error for 181-day span")
		}
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("FromAfterToRejected", func(t *testing.T) {
		if _, err := DefaultFilterState().WithCustomRange(from, from.AddDate(0, 0, -1)); err == nil {
			t.Error("expected error when from is after to")
		}
	})

	t.Run("FromEqualToRejected", func(t *testing.T) {
		if _, err := DefaultFilterState().WithCustomRange(from, from); err == nil {
			t.Error("expected error when from equals to")
		}
	})
}

func TestWindowPresets(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		preset TimeRangePreset
		want   time.Time
	}{
		{Range24h, now.Add(-24 * time.Hour)},
		{Range7d, now.AddDate(0, 0, -7)},
		{Range30d, now.AddDate(0, 0, -30)},
		{Range90d, now.AddDate(0, 0, -90)},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			f := DefaultFilterState()
			f.Preset = tt.preset
			from, to, err := f.Window(now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !from.Equal(tt.want) {
				t.Errorf("expected from %v, got %v", tt.want, from)
			}
			if !to.Equal(now) {
				t.Errorf("expected to %v, got %v", now, to)
			}
		})
	}

	t.Run("UnknownPreset", func(t *testing.T) {
		f := DefaultFilterState()
		f.Preset = "1y"
		if _, _, err := f.Window(now); err == nil {
			t.Error("expected error for unknown preset")
		}
	})

	t.Run("CustomCoversWholeEndDay", func(t *testing.T) {
		f, err := DefaultFilterState().WithCustomRange(
			date(2025, time.January, 4), date(2025, time.January, 10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		from, to, err := f.Window(now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !from.Equal(date(2025, time.January, 4)) {
			t.Errorf("expected from at the stored bound, got %v", from)
		}
		midday := time.Date(2025, time.January, 10, 10, 0, 0, 0, time.UTC)
		if to.Before(midday) {
			t.Errorf("a breach at 10:00 on the end day must fall inside the window, to = %v", to)
		}
		if to.Day() != 10 || to.Hour() != 23 || to.Minute() != 59 {
			t.Errorf("expected to widened to the end of Jan 10, got %v", to)
		}
	})
}

func TestFilterQueryRoundTrip(t *testing.T) {
	f, err := DefaultFilterState().WithCustomRange(
		date(2025, time.January, 8), date(2025, time.January, 12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Market = MarketForex
	f.RuleSetID = "rs-1"
	f.ProviderSearch = "gold"
	f.RuleTypes = []RuleType{RuleTypeCoolingOff, RuleTypeMaxActiveTrades}
	f.Actions = []ActionFilter{ActionFilterPaused}
	f.Expr = `market == "Forex"`

	encoded := f.Encode()
	if got := encoded.Get("types"); got != "CO,AC" {
		t.Errorf("expected types CO,AC, got %q", got)
	}

	decoded, err := DecodeFilterQuery(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Market != MarketForex || decoded.RuleSetID != "rs-1" {
		t.Errorf("lost market/rule set: %+v", decoded)
	}
	if !decoded.From.Equal(f.From) || !decoded.To.Equal(f.To) {
		t.Errorf("lost custom bounds: %+v", decoded)
	}
	if len(decoded.RuleTypes) != 2 || decoded.RuleTypes[0] != RuleTypeCoolingOff {
		t.Errorf("lost rule types: %v", decoded.RuleTypes)
	}
	if decoded.Expr != f.Expr {
		t.Errorf("lost expr: %q", decoded.Expr)
	}
}

func TestDecodeFilterQueryDefaults(t *testing.T) {
	f, err := DecodeFilterQuery(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Preset != Range30d || f.Market != MarketAll || f.RuleSetID != RuleSetAll {
		t.Errorf("unexpected defaults: %+v", f)
	}
}

func TestDecodeFilterQueryRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
	}{
		{"BadMarket", url.Values{"market": {"Bonds"}}},
		{"BadTypeCode", url.Values{"types": {"XX"}}},
		{"BadAction", url.Values{"actions": {"throttled"}}},
		{"CustomWithoutDates", url.Values{"range": {"custom"}}},
		{"OverlongRange", url.Values{
			"range": {"custom"}, "from": {"2025-01-01"}, "to": {"2025-07-01"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFilterQuery(tt.query); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
