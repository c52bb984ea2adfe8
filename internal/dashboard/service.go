package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/breach"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

// Service produces dashboard rollups from repository data. The heavy
// lifting stays in the pure functions of this package; the service only
// fetches and narrows.
type Service struct {
	repo domain.Repository
}

// NewService creates a dashboard service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// fetchWindowed lists breach events covering both the filter window and
// its comparison window, narrowed by market and provider.
func (s *Service) fetchWindowed(ctx context.Context, tenantID string, f domain.FilterState, now time.Time) ([]*domain.BreachEvent, time.Time, time.Time, error) {
	from, to, err := f.Window(now)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	compareStart, _ := ComparisonWindow(from, to)
	events, err := s.repo.ListBreachEvents(ctx, tenantID, compareStart)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("failed to list breach events: %w", err)
	}

	events = breach.FilterByMarket(events, f.Market)
	events = breach.FilterByRuleSet(events, f.RuleSetID)
	if f.ProviderID != "" {
		kept := events[:0:0]
		for _, ev := range events {
			if ev.ProviderID == f.ProviderID {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	return events, from, to, nil
}

// KPIs computes the headline snapshot for the filter window.
func (s *Service) KPIs(ctx context.Context, tenantID string, f domain.FilterState, now time.Time) (*KPISnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	events, from, to, err := s.fetchWindowed(ctx, tenantID, f, now)
	if err != nil {
		return nil, err
	}

	count, change, providers := BreachKPIs(events, from, to)

	cooldowns, err := s.repo.ListActiveCooldowns(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cooldowns: %w", err)
	}

	snapshot := &KPISnapshot{
		Breaches:          count,
		BreachChangePct:   change,
		ProvidersAffected: providers,
		ActiveCooldowns:   len(cooldowns),
		WinRate:           decimal.Zero,
	}

	if f.ProviderID != "" {
		stats, err := s.repo.GetProviderStatistics(ctx, tenantID, f.ProviderID)
		switch {
		case err == nil:
			snapshot.WinRate = stats.WinRate
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("failed to load provider statistics: %w", err)
		}
	}
	return snapshot, nil
}

// HeatmapResult carries hour buckets plus the session grouping asked for.
type HeatmapResult struct {
	Cells    []HeatmapCell `json:"cells"`
	Sessions []Session     `json:"sessions"`
}

// Heatmap buckets the filter window's breaches by hour and market. When
// fixed is true the canonical trading sessions are used; otherwise
// consecutive active hours are grouped dynamically.
func (s *Service) Heatmap(ctx context.Context, tenantID string, f domain.FilterState, fixed bool, now time.Time) (*HeatmapResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	events, from, to, err := s.fetchWindowed(ctx, tenantID, f, now)
	if err != nil {
		return nil, err
	}
	windowed := breach.FilterByDateRange(events, &from, &to)

	counts := MarketHourCounts(windowed, f.Market)
	result := &HeatmapResult{Cells: HourlyBuckets(windowed)}
	if fixed {
		result.Sessions = FixedSessions(counts)
	} else {
		result.Sessions = DynamicSessions(counts)
	}
	return result, nil
}

// TopRuleSets ranks the filter window's rule sets with period-over-period
// trends, resolving names through the repository's batch lookup.
func (s *Service) TopRuleSets(ctx context.Context, tenantID string, f domain.FilterState, now time.Time) ([]RuleSetRank, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	events, from, to, err := s.fetchWindowed(ctx, tenantID, f, now)
	if err != nil {
		return nil, err
	}

	main, prior := SplitWindows(events, from, to)

	ids := make([]string, 0, len(main))
	seen := make(map[string]bool)
	for _, ev := range main {
		if ev.RuleSetID != "" && !seen[ev.RuleSetID] {
			seen[ev.RuleSetID] = true
			ids = append(ids, ev.RuleSetID)
		}
	}

	names := map[string]string{}
	if len(ids) > 0 {
		names, err = s.repo.GetRuleSetNames(ctx, tenantID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve rule set names: %w", err)
		}
	}

	return TopRuleSets(main, prior, names, DefaultTopN), nil
}
