package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Service drives the cooldown lifecycle against the repository and
// announces transitions on the bus.
type Service struct {
	repo domain.Repository
	bus  domain.EventBus
}

// NewService creates a cooldown service. The bus may be nil; the
// service then skips event publishing.
func NewService(repo domain.Repository, bus domain.EventBus) *Service {
	return &Service{repo: repo, bus: bus}
}

// Start opens a new cooldown for a provider and announces it.
func (s *Service) Start(ctx context.Context, tenantID string, cd *domain.ActiveCooldown) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if cd.ProviderID == "" || cd.RuleSetID == "" {
		return fmt.Errorf("%w: cooldown needs provider_id and rule_set_id", domain.ErrInvalidInput)
	}
	if !cd.ExpiresAt.After(cd.StartedAt) {
		return fmt.Errorf("%w: cooldown must expire after it starts", domain.ErrInvalidInput)
	}
	if cd.ID == "" {
		cd.ID = uuid.New().String()
	}
	cd.TenantID = tenantID
	cd.Status = domain.CooldownActive

	if err := s.repo.SaveCooldown(ctx, tenantID, cd); err != nil {
		return fmt.Errorf("failed to save cooldown: %w", err)
	}

	s.publish(ctx, tenantID, domain.TopicCooldownStarted, cd)
	return nil
}

// ListResult is the active cooldown board: display-ready rows plus the
// population summary.
type ListResult struct {
	Cooldowns []View `json:"cooldowns"`
	Stats     Stats  `json:"stats"`
}

// List returns the tenant's active cooldowns as display rows with
// resolved names, countdowns rendered against the given instant, and
// summary stats.
func (s *Service) List(ctx context.Context, tenantID string, now time.Time) (*ListResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	cooldowns, err := s.repo.ListActiveCooldowns(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cooldowns: %w", err)
	}

	providerIDs := distinct(cooldowns, func(c *domain.ActiveCooldown) string { return c.ProviderID })
	ruleSetIDs := distinct(cooldowns, func(c *domain.ActiveCooldown) string { return c.RuleSetID })

	providers := map[string]string{}
	if len(providerIDs) > 0 {
		if providers, err = s.repo.GetProviderNames(ctx, tenantID, providerIDs); err != nil {
			return nil, fmt.Errorf("failed to resolve provider names: %w", err)
		}
	}
	ruleSets := map[string]string{}
	if len(ruleSetIDs) > 0 {
		if ruleSets, err = s.repo.GetRuleSetNames(ctx, tenantID, ruleSetIDs); err != nil {
			return nil, fmt.Errorf("failed to resolve rule set names: %w", err)
		}
	}

	views := make([]View, 0, len(cooldowns))
	for _, c := range cooldowns {
		views = append(views, BuildView(c, providers, ruleSets, now))
	}

	return &ListResult{Cooldowns: views, Stats: Summarize(cooldowns, now)}, nil
}

// EndEarly performs the manual active to ended_manually transition.
// The mutation happens in the repository; the caller reconciles its
// state from the returned record.
func (s *Service) EndEarly(ctx context.Context, tenantID string, cmd *domain.EndCooldownCommand, now time.Time) (*domain.EndCooldownResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetCooldown(ctx, tenantID, cmd.CooldownID)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return nil, fmt.Errorf("%w: cooldown %s is already %s", domain.ErrInvalidTransition, current.ID, current.Status)
	}
	if !EligibleForEarlyEnd(current, now) {
		return nil, fmt.Errorf("%w: cooldown %s has under an hour left", domain.ErrInvalidTransition, current.ID)
	}

	ended, err := s.repo.EndCooldown(ctx, tenantID, cmd.CooldownID, cmd.Reason, cmd.EndedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to end cooldown: %w", err)
	}

	s.publish(ctx, tenantID, domain.TopicCooldownEnded, ended)
	return &domain.EndCooldownResult{Cooldown: ended, EndedAt: now}, nil
}

func (s *Service) publish(ctx context.Context, tenantID, topic string, v any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		slog.Warn("failed to publish cooldown event", "topic", topic, "error", err)
	}
}

func distinct(cooldowns []*domain.ActiveCooldown, key func(*domain.ActiveCooldown) string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range cooldowns {
		k := key(c)
		if k != "" && !seen[k] {
			seen[k] = true
			ids = append(ids, k)
		}
	}
	return ids
}
