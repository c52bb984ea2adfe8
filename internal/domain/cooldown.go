package domain

import (
	"fmt"
	"time"
)

// CooldownStatus is the lifecycle state of an active cooldown.
// Transitions: active → ended_manually (user action, reason required)
// or active → expired (time-based sweep). Both end states are terminal.
type CooldownStatus string

const (
	CooldownActive        CooldownStatus = "active"
	CooldownEndedManually CooldownStatus = "ended_manually"
	CooldownExpired       CooldownStatus = "expired"
)

// ActiveCooldown is a time-boxed trading restriction imposed on a
// provider following a breach.
type ActiveCooldown struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	ProviderID string         `json:"providerId"`
	Market     Market         `json:"market"`
	RuleSetID  string         `json:"ruleSetId"`
	SubRuleID  string         `json:"subRuleId"`
	StartedAt  time.Time      `json:"startedAt"`
	ExpiresAt  time.Time      `json:"expiresAt"`
	Status     CooldownStatus `json:"status"`

	EndReason string     `json:"endReason,omitempty"`
	EndedBy   string     `json:"endedBy,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Remaining returns the time left until expiry at the given instant.
// Negative when already past due.
func (c *ActiveCooldown) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// IsActive reports whether the cooldown is still in its active state.
func (c *ActiveCooldown) IsActive() bool {
	return c.Status == CooldownActive
}

// EndCooldownCommand asks for an early manual termination.
// Modeled as an explicit command so the caller issues the mutation,
// awaits the result, and reconciles its cache from it; there is no
// optimistic local mutation path.
type EndCooldownCommand struct {
	CooldownID string `json:"cooldownId"`
	Reason     string `json:"reason"`
	EndedBy    string `json:"endedBy"`
}

// Validate checks the command before it reaches the repository.
func (cmd *EndCooldownCommand) Validate() error {
	if cmd.CooldownID == "" {
		return fmt.Errorf("%w: cooldown id is required", ErrInvalidInput)
	}
	if cmd.Reason == "" {
		return fmt.Errorf("%w: ending a cooldown early requires a reason", ErrInvalidInput)
	}
	return nil
}

// EndCooldownResult carries the confirmed post-transition record.
type EndCooldownResult struct {
	Cooldown *ActiveCooldown `json:"cooldown"`
	EndedAt  time.Time       `json:"endedAt"`
}
