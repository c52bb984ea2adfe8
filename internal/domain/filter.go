package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TimeRangePreset is a named relative window for breach queries.
type TimeRangePreset string

const (
	Range24h    TimeRangePreset = "24h"
	Range7d     TimeRangePreset = "7d"
	Range30d    TimeRangePreset = "30d"
	Range90d    TimeRangePreset = "90d"
	RangeCustom TimeRangePreset = "custom"
)

// ActionFilter is the short action code used when filtering breaches.
type ActionFilter string

const (
	ActionFilterPaused    ActionFilter = "paused"
	ActionFilterRejected  ActionFilter = "rejected"
	ActionFilterSuspended ActionFilter = "suspended"
)

// RuleSetAll is the rule-set filter sentinel meaning "any rule set".
const RuleSetAll = "all"

// MaxCustomRangeDays bounds an explicit from/to range. Exceeding it is a
// validation error, never a silent clamp.
const MaxCustomRangeDays = 180

// FilterState is the single source of truth for a breach query. The URL
// query string is a derived view of this struct, produced by Encode and
// parsed back by DecodeFilterQuery.
type FilterState struct {
	Preset TimeRangePreset `json:"preset"`

	// Custom bounds, date precision, used only when Preset is "custom".
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	Market         Market         `json:"market"`
	RuleSetID      string         `json:"ruleSetId"`
	ProviderID     string         `json:"providerId,omitempty"`
	ProviderSearch string         `json:"providerSearch,omitempty"`
	RuleTypes      []RuleType     `json:"ruleTypes,omitempty"`
	Actions        []ActionFilter `json:"actions,omitempty"`

	// Expr is an optional CEL predicate applied over the transformed
	// view models after all structural filters.
	Expr string `json:"expr,omitempty"`
}

// DefaultFilterState returns the dashboard's initial filter.
func DefaultFilterState() FilterState {
	return FilterState{
		Preset:    Range30d,
		Market:    MarketAll,
		RuleSetID: RuleSetAll,
	}
}

// WithCustomRange returns a copy switched to an explicit date range,
// validated before use.
func (f FilterState) WithCustomRange(from, to time.Time) (FilterState, error) {
	f.Preset = RangeCustom
	f.From = from
	f.To = to
	if err := f.Validate(); err != nil {
		return FilterState{}, err
	}
	return f, nil
}

// Validate checks the range invariants: custom ranges need from < to and
// a span of at most MaxCustomRangeDays.
func (f FilterState) Validate() error {
	switch f.Preset {
	case Range24h, Range7d, Range30d, Range90d:
		return nil
	case RangeCustom:
	default:
		return fmt.Errorf("%w: unknown time range preset %q", ErrInvalidRange, f.Preset)
	}

	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("%w: custom range needs both from and to", ErrInvalidRange)
	}
	if !f.From.Before(f.To) {
		return fmt.Errorf("%w: from must be before to", ErrInvalidRange)
	}
	if f.To.Sub(f.From) > MaxCustomRangeDays*24*time.Hour {
		return fmt.Errorf("%w: date range cannot exceed %d days", ErrInvalidRange, MaxCustomRangeDays)
	}
	return nil
}

// Window resolves the filter to concrete bounds at the given instant.
// Preset windows end at now. The custom To is date precision, so it is
// widened here to the end of its day; every consumer of the window
// (listing, heatmap, KPI counts, rankings) then agrees on which events
// belong to the range.
func (f FilterState) Window(now time.Time) (from, to time.Time, err error) {
	if err := f.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch f.Preset {
	case Range24h:
		return now.Add(-24 * time.Hour), now, nil
	case Range7d:
		return now.AddDate(0, 0, -7), now, nil
	case Range30d:
		return now.AddDate(0, 0, -30), now, nil
	case Range90d:
		return now.AddDate(0, 0, -90), now, nil
	default:
		return f.From, endOfDay(f.To), nil
	}
}

// endOfDay returns 23:59:59.999 of t's calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, t.Location())
}

const filterDateLayout = "2006-01-02"

// Encode serializes the filter state to URL query parameters. Defaults
// are omitted so the encoded form stays minimal.
func (f FilterState) Encode() url.Values {
	v := url.Values{}
	v.Set("range", string(f.Preset))
	if f.Preset == RangeCustom {
		v.Set("from", f.From.UTC().Format(filterDateLayout))
		v.Set("to", f.To.UTC().Format(filterDateLayout))
	}
	if f.Market != "" && f.Market != MarketAll {
		v.Set("market", string(f.Market))
	}
	if f.RuleSetID != "" && f.RuleSetID != RuleSetAll {
		v.Set("ruleSet", f.RuleSetID)
	}
	if f.ProviderID != "" {
		v.Set("provider", f.ProviderID)
	}
	if f.ProviderSearch != "" {
		v.Set("q", f.ProviderSearch)
	}
	if len(f.RuleTypes) > 0 {
		codes := make([]string, 0, len(f.RuleTypes))
		for _, t := range f.RuleTypes {
			codes = append(codes, t.ShortCode())
		}
		v.Set("types", strings.Join(codes, ","))
	}
	if len(f.Actions) > 0 {
		actions := make([]string, 0, len(f.Actions))
		for _, a := range f.Actions {
			actions = append(actions, string(a))
		}
		v.Set("actions", strings.Join(actions, ","))
	}
	if f.Expr != "" {
		v.Set("expr", f.Expr)
	}
	return v
}

// DecodeFilterQuery parses URL query parameters back into a validated
// filter state. Missing parameters fall back to the defaults.
func DecodeFilterQuery(v url.Values) (FilterState, error) {
	f := DefaultFilterState()

	if r := v.Get("range"); r != "" {
		f.Preset = TimeRangePreset(r)
	}
	if f.Preset == RangeCustom {
		from, err := time.ParseInLocation(filterDateLayout, v.Get("from"), time.UTC)
		if err != nil {
			return FilterState{}, fmt.Errorf("%w: bad from date %q", ErrInvalidRange, v.Get("from"))
		}
		to, err := time.ParseInLocation(filterDateLayout, v.Get("to"), time.UTC)
		if err != nil {
			return FilterState{}, fmt.Errorf("%w: bad to date %q", ErrInvalidRange, v.Get("to"))
		}
		f.From = from
		f.To = to
	}

	if m := v.Get("market"); m != "" {
		market := Market(m)
		if market != MarketAll && !market.IsValid() {
			return FilterState{}, fmt.Errorf("%w: unknown market %q", ErrInvalidInput, m)
		}
		f.Market = market
	}
	if rs := v.Get("ruleSet"); rs != "" {
		f.RuleSetID = rs
	}
	f.ProviderID = v.Get("provider")
	f.ProviderSearch = v.Get("q")

	if types := v.Get("types"); types != "" {
		for _, code := range strings.Split(types, ",") {
			t, ok := RuleTypeFromShortCode(strings.TrimSpace(code))
			if !ok {
				return FilterState{}, fmt.Errorf("%w: unknown rule type code %q", ErrInvalidInput, code)
			}
			f.RuleTypes = append(f.RuleTypes, t)
		}
	}
	if actions := v.Get("actions"); actions != "" {
		for _, a := range strings.Split(actions, ",") {
			switch action := ActionFilter(strings.TrimSpace(a)); action {
			case ActionFilterPaused, ActionFilterRejected, ActionFilterSuspended:
				f.Actions = append(f.Actions, action)
			default:
				return FilterState{}, fmt.Errorf("%w: unknown action filter %q", ErrInvalidInput, a)
			}
		}
	}
	f.Expr = v.Get("expr")

	if err := f.Validate(); err != nil {
		return FilterState{}, err
	}
	return f, nil
}

// RuleTypeFromShortCode resolves a two-letter UI code back to its rule type.
func RuleTypeFromShortCode(code string) (RuleType, bool) {
	for _, t := range RuleTypes() {
		if t.ShortCode() == code {
			return t, true
		}
	}
	return "", false
}
