// Package cooldown manages the lifecycle of time-boxed trading
// restrictions: countdown presentation, early-end eligibility and the
// manual termination flow.
package cooldown

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ExpiredLabel is shown instead of a countdown once a cooldown is past
// due but the sweeper has not flipped it yet.
const ExpiredLabel = "Expired"

// earlyEndThreshold is the minimum remaining time for a cooldown to be
// manually endable. Anything shorter simply runs out.
const earlyEndThreshold = time.Hour

// FormatRemaining renders a countdown as "Hh Mm", e.g. "1h 30m".
// Zero or negative durations render as the expired label.
func FormatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return ExpiredLabel
	}
	hours := int(remaining / time.Hour)
	minutes := int(remaining%time.Hour) / int(time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// EligibleForEarlyEnd reports whether a cooldown can still be ended
// manually: it must be active with more than an hour left.
func EligibleForEarlyEnd(c *domain.ActiveCooldown, now time.Time) bool {
	return c.IsActive() && c.Remaining(now) > earlyEndThreshold
}

// View is a display-ready cooldown row.
type View struct {
	Cooldown     *domain.ActiveCooldown `json:"cooldown"`
	ProviderName string                 `json:"providerName"`
	RuleSetName  string                 `json:"ruleSetName"`
	Remaining    string                 `json:"remaining"`
	CanEndEarly  bool                   `json:"canEndEarly"`
}

// BuildView renders one cooldown against the given instant, resolving
// names through the supplied tables.
func BuildView(c *domain.ActiveCooldown, providers, ruleSets map[string]string, now time.Time) View {
	providerName := providers[c.ProviderID]
	if providerName == "" {
		providerName = c.ProviderID
	}
	ruleSetName := ruleSets[c.RuleSetID]
	if ruleSetName == "" {
		ruleSetName = c.RuleSetID
	}
	return View{
		Cooldown:     c,
		ProviderName: providerName,
		RuleSetName:  ruleSetName,
		Remaining:    FormatRemaining(c.Remaining(now)),
		CanEndEarly:  EligibleForEarlyEnd(c, now),
	}
}

// Stats summarizes the active cooldown population.
type Stats struct {
	Total             int    `json:"total"`
	DistinctProviders int    `json:"distinctProviders"`
	MeanRemaining     string `json:"meanRemaining"`
	TopRuleSetID      string `json:"topRuleSetId"`
}

// Summarize computes population stats over active cooldowns. The mean
// only considers cooldowns with time left; the top rule set is the one
// with the most active cooldowns, first-encountered winning ties.
func Summarize(cooldowns []*domain.ActiveCooldown, now time.Time) Stats {
	stats := Stats{Total: len(cooldowns), MeanRemaining: ExpiredLabel}

	providers := make(map[string]bool)
	ruleSetCounts := make(map[string]int)
	var ruleSetOrder []string

	var totalRemaining time.Duration
	withTimeLeft := 0
	for _, c := range cooldowns {
		if c.ProviderID != "" {
			providers[c.ProviderID] = true
		}
		if c.RuleSetID != "" {
			if _, seen := ruleSetCounts[c.RuleSetID]; !seen {
				ruleSetOrder = append(ruleSetOrder, c.RuleSetID)
			}
			ruleSetCounts[c.RuleSetID]++
		}
		if rem := c.Remaining(now); rem > 0 {
			totalRemaining += rem
			withTimeLeft++
		}
	}

	stats.DistinctProviders = len(providers)
	if withTimeLeft > 0 {
		stats.MeanRemaining = FormatRemaining(totalRemaining / time.Duration(withTimeLeft))
	}

	best := 0
	for _, id := range ruleSetOrder {
		if ruleSetCounts[id] > best {
			best = ruleSetCounts[id]
			stats.TopRuleSetID = id
		}
	}
	return stats
}
