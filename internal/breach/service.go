package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// lookupTTL bounds how long resolved name tables are reused between
// queries before the repository is consulted again.
const lookupTTL = 5 * time.Minute

// Service runs the breach query pipeline against the repository and
// records incoming breach events from the external rule evaluator.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	bus   domain.EventBus
}

// NewService creates a breach service. Cache and bus may be nil; the
// service then skips lookup caching and event publishing.
func NewService(repo domain.Repository, cache domain.Cache, bus domain.EventBus) *Service {
	return &Service{repo: repo, cache: cache, bus: bus}
}

// Query fetches, filters and transforms breach events for one tenant.
// The repository narrows coarsely by the window's lower bound; exact
// range semantics (inclusive bounds, end-of-day widening, malformed
// timestamp exclusion) live in the pure filters.
func (s *Service) Query(ctx context.Context, tenantID string, f domain.FilterState, now time.Time) ([]domain.TransformedBreachEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	// Compile the optional expression up front so a bad expression
	// fails before any data is fetched.
	var expr *ExprFilter
	if f.Expr != "" {
		compiled, err := CompileExpr(f.Expr)
		if err != nil {
			return nil, err
		}
		expr = compiled
	}

	from, _, err := f.Window(now)
	if err != nil {
		return nil, err
	}

	raw, err := s.repo.ListBreachEvents(ctx, tenantID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list breach events: %w", err)
	}

	filtered, err := ApplyRawFilters(raw, f, now)
	if err != nil {
		return nil, err
	}

	lookups, err := s.buildLookups(ctx, tenantID, filtered)
	if err != nil {
		return nil, err
	}

	transformed := Transform(filtered, lookups)
	transformed = SearchByProvider(transformed, f.ProviderSearch)
	transformed = FilterByExpr(transformed, expr)
	return transformed, nil
}

// buildLookups assembles the three name tables for the distinct ids in
// the filtered slice, reusing cached tables where possible.
func (s *Service) buildLookups(ctx context.Context, tenantID string, events []*domain.BreachEvent) (Lookups, error) {
	providerIDs, ruleSetIDs, subRuleIDs := CollectIDs(events)

	providers, err := s.resolveNames(ctx, tenantID, domain.LookupProviders, providerIDs, s.repo.GetProviderNames)
	if err != nil {
		return Lookups{}, err
	}
	ruleSets, err := s.resolveNames(ctx, tenantID, domain.LookupRuleSets, ruleSetIDs, s.repo.GetRuleSetNames)
	if err != nil {
		return Lookups{}, err
	}
	subRules, err := s.resolveNames(ctx, tenantID, domain.LookupSubRules, subRuleIDs, s.repo.GetSubRuleNames)
	if err != nil {
		return Lookups{}, err
	}

	return Lookups{Providers: providers, RuleSets: ruleSets, SubRules: subRules}, nil
}

type nameFetcher func(ctx context.Context, tenantID string, ids []string) (map[string]string, error)

// resolveNames serves a lookup table from cache when it covers the
// requested ids, fetching only the missing ones from the repository.
// Cache failures degrade to a repository fetch; repository failures
// propagate.
func (s *Service) resolveNames(ctx context.Context, tenantID, kind string, ids []string, fetch nameFetcher) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var cached map[string]string
	if s.cache != nil {
		table, err := s.cache.GetLookup(ctx, tenantID, kind)
		if err != nil {
			slog.Warn("lookup cache read failed", "kind", kind, "error", err)
		} else {
			cached = table
		}
	}
	if cached == nil {
		cached = map[string]string{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := fetch(ctx, tenantID, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s names: %w", kind, err)
		}
		for id, name := range fetched {
			cached[id] = name
		}
		if s.cache != nil {
			if err := s.cache.SetLookup(ctx, tenantID, kind, cached, lookupTTL); err != nil {
				slog.Warn("lookup cache write failed", "kind", kind, "error", err)
			}
		}
	}

	return cached, nil
}

// InvalidateLookups drops the cached name tables for a tenant, e.g.
// after a rule set rename.
func (s *Service) InvalidateLookups(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	for _, kind := range []string{domain.LookupProviders, domain.LookupRuleSets, domain.LookupSubRules} {
		if err := s.cache.Delete(ctx, tenantID, "lookup:"+kind); err != nil {
			slog.Warn("lookup cache invalidation failed", "kind", kind, "error", err)
		}
	}
}

// Ingest records a breach event reported by the external rule evaluator
// and publishes it on the bus for the statistics worker.
func (s *Service) Ingest(ctx context.Context, tenantID string, ev *domain.BreachEvent) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if ev.ProviderID == "" || ev.RuleSetID == "" {
		return fmt.Errorf("%w: breach needs provider_id and rule_set_id", domain.ErrInvalidInput)
	}
	if !ev.Market.IsValid() {
		return fmt.Errorf("%w: unknown market %q", domain.ErrInvalidInput, ev.Market)
	}
	if _, ok := ev.Time(); !ok {
		return fmt.Errorf("%w: occurred_at %q is not a valid RFC 3339 timestamp", domain.ErrInvalidInput, ev.OccurredAt)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.TenantID = tenantID

	if err := s.repo.SaveBreachEvent(ctx, tenantID, ev); err != nil {
		return fmt.Errorf("failed to save breach event: %w", err)
	}

	if s.cache != nil {
		// Per-provider ingest counter, used by ops to spot noisy providers.
		if _, err := s.cache.IncrementCounter(ctx, tenantID, "breach:"+ev.ProviderID, time.Hour); err != nil {
			slog.Warn("breach counter increment failed", "provider_id", ev.ProviderID, "error", err)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := s.bus.Publish(ctx, tenantID, domain.TopicBreachRecorded, payload); err != nil {
				slog.Warn("failed to publish breach event", "breach_id", ev.ID, "error", err)
			}
		}
	}

	return nil
}
