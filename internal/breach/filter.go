// Package breach implements the breach-event filter and transform
// pipeline. Every filter is a pure function over a slice: idempotent,
// order-independent and free of side effects, so callers may compose any
// subset in any order.
package breach

import (
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// FilterByDateRange keeps events inside [from, to], inclusive on both
// ends. A nil bound leaves that side open. The to bound is widened to
// 23:59:59.999 of its day so date-only ranges cover the whole end day.
// Events with an unparseable timestamp are excluded, never an error.
func FilterByDateRange(events []*domain.BreachEvent, from, to *time.Time) []*domain.BreachEvent {
	var upper time.Time
	if to != nil {
		upper = endOfDay(*to)
	}

	out := make([]*domain.BreachEvent, 0, len(events))
	for _, ev := range events {
		ts, ok := ev.Time()
		if !ok {
			continue
		}
		if from != nil && ts.Before(*from) {
			continue
		}
		if to != nil && ts.After(upper) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// endOfDay returns 23:59:59.999 of t's calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, t.Location())
}

// FilterByMarket keeps events of one market. The All sentinel (and the
// empty string) pass everything through unchanged.
func FilterByMarket(events []*domain.BreachEvent, market domain.Market) []*domain.BreachEvent {
	if market == "" || market == domain.MarketAll {
		return events
	}
	out := make([]*domain.BreachEvent, 0, len(events))
	for _, ev := range events {
		if ev.Market == market {
			out = append(out, ev)
		}
	}
	return out
}

// FilterByRuleSet keeps events of one rule set. The "all" sentinel (and
// the empty string) pass everything through unchanged.
func FilterByRuleSet(events []*domain.BreachEvent, ruleSetID string) []*domain.BreachEvent {
	if ruleSetID == "" || ruleSetID == domain.RuleSetAll {
		return events
	}
	out := make([]*domain.BreachEvent, 0, len(events))
	for _, ev := range events {
		if ev.RuleSetID == ruleSetID {
			out = append(out, ev)
		}
	}
	return out
}

// FilterByRuleTypes keeps events whose raw rule-type code maps to one of
// the selected short codes (CO, GD, AC, PC). An empty selection matches
// everything, not nothing. Events with an unrecognized rule type match
// no selection.
func FilterByRuleTypes(events []*domain.BreachEvent, types []domain.RuleType) []*domain.BreachEvent {
	if len(types) == 0 {
		return events
	}
	selected := make(map[string]bool, len(types))
	for _, t := range types {
		selected[t.ShortCode()] = true
	}

	out := make([]*domain.BreachEvent, 0, len(events))
	for _, ev := range events {
		code := ev.RuleType.ShortCode()
		if code != "" && selected[code] {
			out = append(out, ev)
		}
	}
	return out
}

// ActionFilterCode maps a backend action code to its filter code.
// ok is false for unrecognized actions.
func ActionFilterCode(a domain.ActionTaken) (domain.ActionFilter, bool) {
	switch a {
	case domain.ActionCooldownTriggered:
		return domain.ActionFilterPaused, true
	case domain.ActionSignalRejected:
		return domain.ActionFilterRejected, true
	case domain.ActionSuspensionApplied:
		return domain.ActionFilterSuspended, true
	}
	return "", false
}

// FilterByActions keeps events whose action maps to one of the selected
// filter codes. An empty selection matches everything.
func FilterByActions(events []*domain.BreachEvent, actions []domain.ActionFilter) []*domain.BreachEvent {
	if len(actions) == 0 {
		return events
	}
	selected := make(map[domain.ActionFilter]bool, len(actions))
	for _, a := range actions {
		selected[a] = true
	}

	out := make([]*domain.BreachEvent, 0, len(events))
	for _, ev := range events {
		code, ok := ActionFilterCode(ev.Action)
		if ok && selected[code] {
			out = append(out, ev)
		}
	}
	return out
}

// SearchByProvider keeps transformed events whose resolved provider name
// contains the query, case-insensitively. It runs on the view model
// because the raw record only carries the provider id. An empty query is
// a no-op.
func SearchByProvider(events []domain.TransformedBreachEvent, query string) []domain.TransformedBreachEvent {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return events
	}
	out := make([]domain.TransformedBreachEvent, 0, len(events))
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Provider), q) {
			out = append(out, ev)
		}
	}
	return out
}

// ApplyRawFilters runs the structural filters that operate on raw
// records, in the order used by the dashboard: date, market, rule set,
// rule type, action. Each is independent, so the order only matters for
// performance.
func ApplyRawFilters(events []*domain.BreachEvent, f domain.FilterState, now time.Time) ([]*domain.BreachEvent, error) {
	from, to, err := f.Window(now)
	if err != nil {
		return nil, err
	}

	out := FilterByDateRange(events, &from, &to)
	out = FilterByMarket(out, f.Market)
	out = FilterByRuleSet(out, f.RuleSetID)
	out = FilterByRuleTypes(out, f.RuleTypes)
	out = FilterByActions(out, f.Actions)
	if f.ProviderID != "" {
		kept := make([]*domain.BreachEvent, 0, len(out))
		for _, ev := range out {
			if ev.ProviderID == f.ProviderID {
				kept = append(kept, ev)
			}
		}
		out = kept
	}
	return out, nil
}
