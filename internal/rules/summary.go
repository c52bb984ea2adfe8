// Package rules renders rule configurations as deterministic
// natural-language sentences for audit and compliance review.
package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Summarize describes a sub-rule's configuration in one sentence.
// Disabled sub-rules summarize to the empty string. Field values are
// not validated here; callers validate before storing.
func Summarize(sr domain.SubRule) string {
	if !sr.Enabled || sr.Config == nil {
		return ""
	}
	return SummarizeConfig(sr.Config)
}

// SummarizeConfig describes a configuration regardless of the enabled
// flag, for previewing edits before they are saved.
func SummarizeConfig(config domain.RuleConfig) string {
	switch c := config.(type) {
	case domain.CoolingOffConfig:
		return summarizeCoolingOff(c)
	case domain.DirectionGuardConfig:
		return summarizeDirectionGuard(c)
	case domain.MaxActiveTradesConfig:
		return summarizeMaxActiveTrades(c)
	case domain.PipCancelLimitConfig:
		return summarizePipCancelLimit(c)
	}
	return ""
}

// summarizeCoolingOff describes only the first tier, even when more
// exist. Escalation tiers are shown in the tier editor instead.
func summarizeCoolingOff(c domain.CoolingOffConfig) string {
	if len(c.Tiers) == 0 {
		return ""
	}
	tier := c.Tiers[0]

	metric := "stop-losses"
	if c.Metric == domain.MetricConsecutive {
		metric = "consecutive losses"
	}
	return fmt.Sprintf("Pause trading after %d %s within %d h for %d h.",
		tier.Threshold, metric, tier.WindowHours, tier.CoolOffHours)
}

func summarizeDirectionGuard(c domain.DirectionGuardConfig) string {
	var directions []string
	if c.Long {
		directions = append(directions, "long")
	}
	if c.Short {
		directions = append(directions, "short")
	}
	if len(directions) == 0 {
		return "No directions guarded."
	}

	scope := "all pairs"
	if c.PairScope == domain.PairScopeSelect {
		scope = "selected pairs"
	}
	return fmt.Sprintf("Block repeat %s signals on %s.", strings.Join(directions, " and "), scope)
}

func summarizeMaxActiveTrades(c domain.MaxActiveTradesConfig) string {
	cap := "no hard cap"
	if c.HardCap != nil {
		cap = fmt.Sprintf("hard cap %d", *c.HardCap)
	}

	var reset string
	switch c.ResetPolicy {
	case domain.ResetMonthly:
		reset = "resets monthly"
	case domain.ResetOnFirstSL:
		reset = "resets on the first stop-loss"
	default:
		reset = "never resets"
	}
	return fmt.Sprintf("Allow %d concurrent trades, +%d per winning trade, %s; %s.",
		c.BaseCap, c.IncrementPerWin, cap, reset)
}

func summarizePipCancelLimit(c domain.PipCancelLimitConfig) string {
	window := "per UTC day"
	if c.Window == domain.WindowCustom {
		window = "per custom window"
	}
	return fmt.Sprintf("Suspend for %d h after %d cancels %s of trades closed between %s and %s pips held under %d min.",
		c.SuspensionHours, c.MaxCancels, window,
		formatPips(c.Band.FromPips), formatPips(c.Band.ToPips), c.MinHoldMinutes)
}

// formatPips trims trailing zeros so whole-pip bands read "0 and 10"
// rather than "0.0 and 10.0".
func formatPips(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimSuffix(s, ".0")
	return s
}
