package breach

import (
	"encoding/json"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Placeholder names substituted when a breach references a record that
// no longer exists. Referential drift must never fail the transform.
const (
	UnknownProvider = "Unknown Provider"
	UnknownRuleSet  = "Unknown Rule Set"
	UnknownSubRule  = "Unknown Sub Rule"
)

// Display labels for the action column.
const (
	LabelRejected  = "Rejected"
	LabelCooldown  = "Cooldown"
	LabelSuspended = "Suspended"
	LabelLimited   = "Limited"
)

// ActionLabel maps a backend action code to its display label. The
// mapping is total: unrecognized codes fall back to "Limited" so the UI
// never renders an empty cell.
func ActionLabel(a domain.ActionTaken) string {
	switch a {
	case domain.ActionSignalRejected:
		return LabelRejected
	case domain.ActionCooldownTriggered:
		return LabelCooldown
	case domain.ActionSuspensionApplied:
		return LabelSuspended
	default:
		return LabelLimited
	}
}

// Lookups holds the id→name tables the transformer joins against,
// built from a batch fetch of the distinct ids in the filtered slice.
type Lookups struct {
	Providers map[string]string
	RuleSets  map[string]string
	SubRules  map[string]string
}

// CollectIDs returns the distinct provider, rule-set and sub-rule ids
// referenced by a slice of events, in first-encountered order.
func CollectIDs(events []*domain.BreachEvent) (providers, ruleSets, subRules []string) {
	seenP := make(map[string]bool)
	seenR := make(map[string]bool)
	seenS := make(map[string]bool)
	for _, ev := range events {
		if ev.ProviderID != "" && !seenP[ev.ProviderID] {
			seenP[ev.ProviderID] = true
			providers = append(providers, ev.ProviderID)
		}
		if ev.RuleSetID != "" && !seenR[ev.RuleSetID] {
			seenR[ev.RuleSetID] = true
			ruleSets = append(ruleSets, ev.RuleSetID)
		}
		if ev.SubRuleID != "" && !seenS[ev.SubRuleID] {
			seenS[ev.SubRuleID] = true
			subRules = append(subRules, ev.SubRuleID)
		}
	}
	return providers, ruleSets, subRules
}

// Transform resolves foreign keys to display names and action codes to
// labels. Missing lookups resolve to the Unknown placeholders; the
// transform itself never fails.
func Transform(events []*domain.BreachEvent, lk Lookups) []domain.TransformedBreachEvent {
	out := make([]domain.TransformedBreachEvent, 0, len(events))
	for _, ev := range events {
		ts, _ := ev.Time()
		out = append(out, domain.TransformedBreachEvent{
			ID:          ev.ID,
			Timestamp:   ts,
			Provider:    lookupName(lk.Providers, ev.ProviderID, UnknownProvider),
			Market:      ev.Market,
			RuleSetID:   ev.RuleSetID,
			RuleSetName: lookupName(lk.RuleSets, ev.RuleSetID, UnknownRuleSet),
			SubRule:     lookupName(lk.SubRules, ev.SubRuleID, UnknownSubRule),
			RuleType:    ev.RuleType,
			Action:      ActionLabel(ev.Action),
			Details:     renderDetails(ev.Details),
		})
	}
	return out
}

func lookupName(table map[string]string, id, fallback string) string {
	if name, ok := table[id]; ok && name != "" {
		return name
	}
	return fallback
}

// renderDetails flattens the opaque details payload to a stable string.
func renderDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(raw)
}

// eventHour returns the UTC hour of a transformed event, for the CEL
// filter's hour variable.
func eventHour(ev domain.TransformedBreachEvent) int {
	if ev.Timestamp.IsZero() {
		return 0
	}
	return ev.Timestamp.In(time.UTC).Hour()
}
