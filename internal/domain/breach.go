package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionTaken is the backend action code recorded on a breach event.
type ActionTaken string

const (
	ActionSignalRejected    ActionTaken = "signal_rejected"
	ActionCooldownTriggered ActionTaken = "cooldown_triggered"
	ActionSuspensionApplied ActionTaken = "suspension_applied"
)

// BreachEvent is a raw rule violation produced by the external rule
// evaluator. Immutable once recorded; Harrier consumes it read-only.
//
// OccurredAt is kept as the ISO-8601 string the evaluator sent.
// Records whose timestamp does not parse are silently excluded from
// date-filtered results rather than failing the whole query.
type BreachEvent struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenantId"`
	OccurredAt string      `json:"occurredAt"`
	ProviderID string      `json:"providerId"`
	Market     Market      `json:"market"`
	RuleSetID  string      `json:"ruleSetId"`
	SubRuleID  string      `json:"subRuleId"`
	RuleType   RuleType    `json:"ruleType"`
	Action     ActionTaken `json:"actionTaken"`

	// Opaque payloads from the evaluator, stored and rendered as-is.
	Details    map[string]interface{} `json:"details,omitempty"`
	SignalData map[string]interface{} `json:"signalData,omitempty"`
}

// Time parses the occurred-at timestamp. ok is false when the raw
// string is not a valid RFC 3339 timestamp.
func (e *BreachEvent) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, e.OccurredAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TransformedBreachEvent is the display view model: foreign keys resolved
// to names, action codes mapped to labels. Derived per query, never
// persisted.
type TransformedBreachEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Provider    string    `json:"provider"`
	Market      Market    `json:"market"`
	RuleSetID   string    `json:"ruleSetId"`
	RuleSetName string    `json:"ruleSetName"`
	SubRule     string    `json:"subRule"`
	RuleType    RuleType  `json:"ruleType"`
	Action      string    `json:"action"`
	Details     string    `json:"details,omitempty"`
}

// SignalProvider is a governed signal provider.
type SignalProvider struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProviderStatistics aggregates per-provider performance and breach
// figures. Monetary-ish fields use decimal to avoid float drift in
// win-rate arithmetic.
type ProviderStatistics struct {
	ProviderID     string          `json:"providerId"`
	TenantID       string          `json:"tenantId"`
	TotalSignals   int64           `json:"totalSignals"`
	WinningSignals int64           `json:"winningSignals"`
	WinRate        decimal.Decimal `json:"winRate"`
	NetPips        decimal.Decimal `json:"netPips"`
	BreachCount    int64           `json:"breachCount"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// RecalcWinRate recomputes WinRate from the signal counters, rounded to
// two decimal places. Zero totals yield a zero rate.
func (s *ProviderStatistics) RecalcWinRate() {
	if s.TotalSignals <= 0 {
		s.WinRate = decimal.Zero
		return
	}
	s.WinRate = decimal.NewFromInt(s.WinningSignals).
		Div(decimal.NewFromInt(s.TotalSignals)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
