// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Market identifies a tradable market segment governed by a rule set.
type Market string

const (
	MarketForex   Market = "Forex"
	MarketCrypto  Market = "Crypto"
	MarketIndices Market = "Indices"

	// MarketAll is the filter sentinel meaning "any market".
	// It is never stored on a rule set.
	MarketAll Market = "All"
)

// Markets lists every concrete market.
func Markets() []Market {
	return []Market{MarketForex, MarketCrypto, MarketIndices}
}

// IsValid reports whether m is a concrete (storable) market.
func (m Market) IsValid() bool {
	switch m {
	case MarketForex, MarketCrypto, MarketIndices:
		return true
	}
	return false
}

// RuleType tags one of the four governance rule variants.
type RuleType string

const (
	RuleTypeCoolingOff      RuleType = "cooling_off"
	RuleTypeDirectionGuard  RuleType = "same_direction_guard"
	RuleTypeMaxActiveTrades RuleType = "max_active_trades"
	RuleTypePipCancelLimit  RuleType = "positive_pip_cancel_limit"
)

// RuleTypes lists every rule type in canonical order.
func RuleTypes() []RuleType {
	return []RuleType{
		RuleTypeCoolingOff,
		RuleTypeDirectionGuard,
		RuleTypeMaxActiveTrades,
		RuleTypePipCancelLimit,
	}
}

// ShortCode returns the two-letter code used by the breach filter UI:
// CO, GD, AC, PC. Unknown types return "".
func (t RuleType) ShortCode() string {
	switch t {
	case RuleTypeCoolingOff:
		return "CO"
	case RuleTypeDirectionGuard:
		return "GD"
	case RuleTypeMaxActiveTrades:
		return "AC"
	case RuleTypePipCancelLimit:
		return "PC"
	}
	return ""
}

// RuleSet is a named, market-scoped bundle of governance rules applied to
// signal providers. Sub-rules are owned by composition and deleted with
// their set.
type RuleSet struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Markets     []Market  `json:"markets"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	SubRules []SubRule `json:"subRules,omitempty"`
}

// Validate checks the structural invariants of a rule set.
func (rs *RuleSet) Validate() error {
	if rs.ID == "" {
		return fmt.Errorf("%w: rule set id is required", ErrInvalidInput)
	}
	if rs.Name == "" {
		return fmt.Errorf("%w: rule set name is required", ErrInvalidInput)
	}
	if len(rs.Markets) == 0 {
		return fmt.Errorf("%w: rule set needs at least one market", ErrInvalidInput)
	}
	for _, m := range rs.Markets {
		if !m.IsValid() {
			return fmt.Errorf("%w: unknown market %q", ErrInvalidInput, m)
		}
	}
	for i := range rs.SubRules {
		if err := rs.SubRules[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SubRule is one concrete rule-type configuration within a rule set.
// Exactly one sub-rule per (rule_set, rule_type) pair is meaningful.
type SubRule struct {
	ID        string     `json:"id"`
	RuleSetID string     `json:"ruleSetId"`
	RuleType  RuleType   `json:"ruleType"`
	Enabled   bool       `json:"enabled"`
	Config    RuleConfig `json:"config"`
}

// Validate checks the sub-rule and its typed configuration.
func (sr *SubRule) Validate() error {
	if sr.Config == nil {
		return fmt.Errorf("%w: sub-rule %s has no configuration", ErrInvalidInput, sr.RuleType)
	}
	if sr.Config.Type() != sr.RuleType {
		return fmt.Errorf("%w: sub-rule tagged %s carries a %s config",
			ErrInvalidInput, sr.RuleType, sr.Config.Type())
	}
	return sr.Config.Validate()
}

// RuleConfig is the closed sum type over the four rule variants.
// Implementations are value types; updates construct a new value
// (whole-field replacement, never partial patches).
type RuleConfig interface {
	// Type returns the variant tag.
	Type() RuleType

	// Validate checks structural invariants. A default config always
	// validates, even when the owning sub-rule is disabled.
	Validate() error
}

// CoolingOffMetric selects what a cooling-off tier counts.
type CoolingOffMetric string

const (
	MetricSLCount     CoolingOffMetric = "sl_count"
	MetricConsecutive CoolingOffMetric = "consecutive"
)

// CoolingOffTier is one escalation level: Threshold losses within
// WindowHours trigger a CoolOffHours pause.
type CoolingOffTier struct {
	Threshold    int `json:"threshold"`
	WindowHours  int `json:"windowHours"`
	CoolOffHours int `json:"coolOffHours"`
}

// CoolingOffConfig pauses a provider after repeated losses.
type CoolingOffConfig struct {
	Metric CoolingOffMetric `json:"metric"`
	Tiers  []CoolingOffTier `json:"tiers"`
}

func (c CoolingOffConfig) Type() RuleType { return RuleTypeCoolingOff }

func (c CoolingOffConfig) Validate() error {
	if c.Metric != MetricSLCount && c.Metric != MetricConsecutive {
		return fmt.Errorf("%w: unknown cooling-off metric %q", ErrInvalidInput, c.Metric)
	}
	// At least one tier must exist even while disabled.
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: cooling-off needs at least one tier", ErrInvalidInput)
	}
	for i, tier := range c.Tiers {
		if tier.Threshold <= 0 || tier.WindowHours <= 0 || tier.CoolOffHours <= 0 {
			return fmt.Errorf("%w: cooling-off tier %d must have positive threshold, window and cool-off", ErrInvalidInput, i)
		}
	}
	return nil
}

// WithTier returns a copy with one tier replaced.
func (c CoolingOffConfig) WithTier(i int, tier CoolingOffTier) CoolingOffConfig {
	tiers := make([]CoolingOffTier, len(c.Tiers))
	copy(tiers, c.Tiers)
	if i >= 0 && i < len(tiers) {
		tiers[i] = tier
	}
	c.Tiers = tiers
	return c
}

// PairScope selects which instruments a direction guard covers.
type PairScope string

const (
	PairScopeAll    PairScope = "all"
	PairScopeSelect PairScope = "select"
)

// DirectionGuardConfig blocks repeat signals in the same direction.
type DirectionGuardConfig struct {
	PairScope     PairScope `json:"pairScope"`
	Long          bool      `json:"long"`
	Short         bool      `json:"short"`
	SelectedPairs []string  `json:"selectedPairs,omitempty"`
}

func (c DirectionGuardConfig) Type() RuleType { return RuleTypeDirectionGuard }

func (c DirectionGuardConfig) Validate() error {
	switch c.PairScope {
	case PairScopeAll:
		return nil
	case PairScopeSelect:
		if len(c.SelectedPairs) == 0 {
			return fmt.Errorf("%w: direction guard with scope %q needs selected pairs", ErrInvalidInput, PairScopeSelect)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown pair scope %q", ErrInvalidInput, c.PairScope)
}

// ResetPolicy controls when a progressive trade cap returns to its base.
type ResetPolicy string

const (
	ResetNever     ResetPolicy = "never"
	ResetMonthly   ResetPolicy = "monthly"
	ResetOnFirstSL ResetPolicy = "on_first_sl"
)

// DefaultHardCap is substituted when the unbounded sentinel is cleared.
const DefaultHardCap = 20

// MaxActiveTradesConfig caps concurrent open trades with a progressive
// increment per winning trade. A nil HardCap is the explicit "unbounded"
// sentinel, distinct from a (invalid) cap of zero.
type MaxActiveTradesConfig struct {
	BaseCap         int         `json:"baseCap"`
	IncrementPerWin int         `json:"incrementPerWin"`
	HardCap         *int        `json:"hardCap"`
	ResetPolicy     ResetPolicy `json:"resetPolicy"`
}

func (c MaxActiveTradesConfig) Type() RuleType { return RuleTypeMaxActiveTrades }

func (c MaxActiveTradesConfig) Validate() error {
	if c.BaseCap <= 0 {
		return fmt.Errorf("%w: base cap must be positive", ErrInvalidInput)
	}
	if c.IncrementPerWin < 0 {
		return fmt.Errorf("%w: increment per win cannot be negative", ErrInvalidInput)
	}
	if c.HardCap != nil {
		if *c.HardCap <= 0 {
			return fmt.Errorf("%w: hard cap must be positive or unbounded", ErrInvalidInput)
		}
		if *c.HardCap < c.BaseCap {
			return fmt.Errorf("%w: hard cap %d is below base cap %d", ErrInvalidInput, *c.HardCap, c.BaseCap)
		}
	}
	switch c.ResetPolicy {
	case ResetNever, ResetMonthly, ResetOnFirstSL:
	default:
		return fmt.Errorf("%w: unknown reset policy %q", ErrInvalidInput, c.ResetPolicy)
	}
	return nil
}

// Unbounded reports whether the hard cap sentinel is cleared.
func (c MaxActiveTradesConfig) Unbounded() bool { return c.HardCap == nil }

// WithUnbounded returns a copy with the unbounded sentinel toggled.
// Clearing the sentinel substitutes DefaultHardCap rather than leaving
// the cap unset.
func (c MaxActiveTradesConfig) WithUnbounded(unbounded bool) MaxActiveTradesConfig {
	if unbounded {
		c.HardCap = nil
		return c
	}
	cap := DefaultHardCap
	if cap < c.BaseCap {
		cap = c.BaseCap
	}
	c.HardCap = &cap
	return c
}

// WithHardCap returns a copy with an explicit hard cap.
func (c MaxActiveTradesConfig) WithHardCap(hardCap int) MaxActiveTradesConfig {
	c.HardCap = &hardCap
	return c
}

// CancelWindow selects the accounting window for positive-pip cancels.
type CancelWindow string

const (
	WindowUTCDay CancelWindow = "utc_day"
	WindowCustom CancelWindow = "custom"
)

// PipBand is a half-open profit band in pips, FromPips < ToPips.
type PipBand struct {
	FromPips float64 `json:"fromPips"`
	ToPips   float64 `json:"toPips"`
}

// PipCancelLimitConfig suspends providers who repeatedly cancel trades
// sitting at a small positive profit.
type PipCancelLimitConfig struct {
	Band            PipBand      `json:"band"`
	MinHoldMinutes  int          `json:"minHoldMinutes"`
	MaxCancels      int          `json:"maxCancels"`
	Window          CancelWindow `json:"window"`
	SuspensionHours int          `json:"suspensionHours"`
}

func (c PipCancelLimitConfig) Type() RuleType { return RuleTypePipCancelLimit }

func (c PipCancelLimitConfig) Validate() error {
	if c.Band.FromPips < 0 || c.Band.ToPips < 0 {
		return fmt.Errorf("%w: pip band cannot be negative", ErrInvalidInput)
	}
	if c.Band.FromPips >= c.Band.ToPips {
		return fmt.Errorf("%w: pip band from %.1f must be below to %.1f", ErrInvalidInput, c.Band.FromPips, c.Band.ToPips)
	}
	if c.MinHoldMinutes < 0 {
		return fmt.Errorf("%w: min hold time cannot be negative", ErrInvalidInput)
	}
	if c.MaxCancels < 0 {
		return fmt.Errorf("%w: max cancels cannot be negative", ErrInvalidInput)
	}
	if c.Window != WindowUTCDay && c.Window != WindowCustom {
		return fmt.Errorf("%w: unknown cancel window %q", ErrInvalidInput, c.Window)
	}
	if c.SuspensionHours <= 0 {
		return fmt.Errorf("%w: suspension duration must be positive", ErrInvalidInput)
	}
	return nil
}

// DefaultRuleConfig returns the canonical default configuration for a
// rule type. The result always validates; the owning sub-rule starts
// disabled.
func DefaultRuleConfig(t RuleType) (RuleConfig, error) {
	switch t {
	case RuleTypeCoolingOff:
		return CoolingOffConfig{
			Metric: MetricSLCount,
			Tiers: []CoolingOffTier{
				{Threshold: 3, WindowHours: 24, CoolOffHours: 24},
			},
		}, nil
	case RuleTypeDirectionGuard:
		return DirectionGuardConfig{
			PairScope: PairScopeAll,
			Long:      true,
			Short:     true,
		}, nil
	case RuleTypeMaxActiveTrades:
		cap := DefaultHardCap
		return MaxActiveTradesConfig{
			BaseCap:         3,
			IncrementPerWin: 1,
			HardCap:         &cap,
			ResetPolicy:     ResetMonthly,
		}, nil
	case RuleTypePipCancelLimit:
		return PipCancelLimitConfig{
			Band:            PipBand{FromPips: 0, ToPips: 10},
			MinHoldMinutes:  30,
			MaxCancels:      3,
			Window:          WindowUTCDay,
			SuspensionHours: 24,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, t)
}

// DecodeRuleConfig parses a stored JSON payload into its typed variant.
// Unknown rule types are rejected here, at the data-access boundary.
func DecodeRuleConfig(t RuleType, raw []byte) (RuleConfig, error) {
	switch t {
	case RuleTypeCoolingOff:
		var c CoolingOffConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode cooling-off config: %w", err)
		}
		return c, nil
	case RuleTypeDirectionGuard:
		var c DirectionGuardConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode direction-guard config: %w", err)
		}
		return c, nil
	case RuleTypeMaxActiveTrades:
		var c MaxActiveTradesConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode max-active-trades config: %w", err)
		}
		return c, nil
	case RuleTypePipCancelLimit:
		var c PipCancelLimitConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode pip-cancel-limit config: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, t)
}
