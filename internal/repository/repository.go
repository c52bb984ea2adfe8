// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRuleSet upserts a rule set and any embedded sub-rules with tenant
// isolation.
func (r *SQLRepository) SaveRuleSet(ctx context.Context, tenantID string, rs *domain.RuleSet) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	markets, _ := json.Marshal(rs.Markets)

	active := 0
	if rs.Active {
		active = 1
	}

	query := `
		INSERT INTO rule_sets (
			id, tenant_id, name, description, markets, active, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			markets = excluded.markets,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rs.ID, tenantID, rs.Name, rs.Description,
		string(markets), active, rs.CreatedBy,
		rs.CreatedAt, rs.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for i := range rs.SubRules {
		if err := r.SaveSubRule(ctx, tenantID, &rs.SubRules[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetRuleSet retrieves a rule set and its sub-rules with tenant isolation.
func (r *SQLRepository) GetRuleSet(ctx context.Context, tenantID string, ruleSetID string) (*domain.RuleSet, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, markets, active, created_by, created_at, updated_at
		FROM rule_sets
		WHERE tenant_id = ? AND id = ?
	`

	rs, err := r.scanRuleSet(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleSetID))
	if err != nil {
		return nil, err
	}

	subRules, err := r.listSubRules(ctx, tenantID, ruleSetID)
	if err != nil {
		return nil, err
	}
	rs.SubRules = subRules

	return rs, nil
}

// ListRuleSets retrieves all rule sets for a tenant, sub-rules included.
func (r *SQLRepository) ListRuleSets(ctx context.Context, tenantID string) ([]*domain.RuleSet, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, markets, active, created_by, created_at, updated_at
		FROM rule_sets
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ruleSets []*domain.RuleSet
	for rows.Next() {
		rs, err := r.scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		ruleSets = append(ruleSets, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rs := range ruleSets {
		subRules, err := r.listSubRules(ctx, tenantID, rs.ID)
		if err != nil {
			return nil, err
		}
		rs.SubRules = subRules
	}

	return ruleSets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanRuleSet(row rowScanner) (*domain.RuleSet, error) {
	var rs domain.RuleSet
	var markets string
	var active int
	var description, createdBy sql.NullString

	err := row.Scan(
		&rs.ID, &rs.TenantID, &rs.Name, &description,
		&markets, &active, &createdBy,
		&rs.CreatedAt, &rs.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rs.Description = description.String
	rs.CreatedBy = createdBy.String
	rs.Active = active == 1
	if err := json.Unmarshal([]byte(markets), &rs.Markets); err != nil {
		return nil, fmt.Errorf("failed to parse markets for rule set %s: %w", rs.ID, err)
	}
	return &rs, nil
}

// DeleteRuleSet removes a rule set and, by composition, its sub-rules.
func (r *SQLRepository) DeleteRuleSet(ctx context.Context, tenantID string, ruleSetID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	if _, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM sub_rules WHERE tenant_id = ? AND rule_set_id = ?`),
		tenantID, ruleSetID,
	); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM rule_sets WHERE tenant_id = ? AND id = ?`),
		tenantID, ruleSetID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveSubRule upserts one rule-type configuration. The configuration is
// serialized to JSON and decoded through the typed sum type on read.
func (r *SQLRepository) SaveSubRule(ctx context.Context, tenantID string, sr *domain.SubRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if err := sr.Validate(); err != nil {
		return err
	}

	config, err := json.Marshal(sr.Config)
	if err != nil {
		return fmt.Errorf("failed to encode %s config: %w", sr.RuleType, err)
	}

	enabled := 0
	if sr.Enabled {
		enabled = 1
	}

	query := `
		INSERT INTO sub_rules (
			id, tenant_id, rule_set_id, rule_type, enabled, config
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, rule_set_id, rule_type) DO UPDATE SET
			enabled = excluded.enabled,
			config = excluded.config
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		sr.ID, tenantID, sr.RuleSetID, string(sr.RuleType), enabled, string(config),
	)
	return err
}

func (r *SQLRepository) listSubRules(ctx context.Context, tenantID, ruleSetID string) ([]domain.SubRule, error) {
	query := `
		SELECT id, rule_set_id, rule_type, enabled, config
		FROM sub_rules
		WHERE tenant_id = ? AND rule_set_id = ?
		ORDER BY rule_type
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, ruleSetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subRules []domain.SubRule
	for rows.Next() {
		var sr domain.SubRule
		var ruleType, config string
		var enabled int

		if err := rows.Scan(&sr.ID, &sr.RuleSetID, &ruleType, &enabled, &config); err != nil {
			return nil, err
		}

		sr.RuleType = domain.RuleType(ruleType)
		sr.Enabled = enabled == 1
		sr.Config, err = domain.DecodeRuleConfig(sr.RuleType, []byte(config))
		if err != nil {
			return nil, fmt.Errorf("sub-rule %s: %w", sr.ID, err)
		}
		subRules = append(subRules, sr)
	}
	return subRules, rows.Err()
}

// SaveProvider upserts a signal provider with tenant isolation.
func (r *SQLRepository) SaveProvider(ctx context.Context, tenantID string, p *domain.SignalProvider) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	active := 0
	if p.Active {
		active = 1
	}

	query := `
		INSERT INTO signal_providers (id, tenant_id, name, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.Name, active, p.CreatedAt,
	)
	return err
}

// GetProvider retrieves a signal provider by ID with tenant isolation.
func (r *SQLRepository) GetProvider(ctx context.Context, tenantID string, providerID string) (*domain.SignalProvider, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, active, created_at
		FROM signal_providers
		WHERE tenant_id = ? AND id = ?
	`

	var p domain.SignalProvider
	var active int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, providerID).Scan(
		&p.ID, &p.TenantID, &p.Name, &active, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Active = active == 1
	return &p, nil
}

// ListProviders retrieves all signal providers for a tenant.
func (r *SQLRepository) ListProviders(ctx context.Context, tenantID string) ([]*domain.SignalProvider, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, active, created_at
		FROM signal_providers
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*domain.SignalProvider
	for rows.Next() {
		var p domain.SignalProvider
		var active int

		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Active = active == 1
		providers = append(providers, &p)
	}
	return providers, rows.Err()
}

// SaveBreachEvent stores a breach event. Events are append-only.
func (r *SQLRepository) SaveBreachEvent(ctx context.Context, tenantID string, ev *domain.BreachEvent) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	details, _ := json.Marshal(ev.Details)
	signalData, _ := json.Marshal(ev.SignalData)

	query := `
		INSERT INTO breach_events (
			id, tenant_id, occurred_at, provider_id, market,
			rule_set_id, sub_rule_id, rule_type, action_taken,
			details, signal_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ev.ID, tenantID, ev.OccurredAt, ev.ProviderID, string(ev.Market),
		ev.RuleSetID, ev.SubRuleID, string(ev.RuleType), string(ev.Action),
		string(details), string(signalData),
	)
	return err
}

// ListBreachEvents retrieves breach events at or after the given instant.
// The cut is deliberately coarse: the stored timestamp is the raw client
// string, and lexicographic comparison misorders fractional seconds
// ("T00:00:00.5Z" sorts before "T00:00:00Z") and non-UTC offsets, so the
// SQL bound is moved back a full day (more than the widest legal offset)
// and the filter pipeline does the exact narrowing. Rows whose timestamp
// does not parse also survive the cut and are excluded downstream.
func (r *SQLRepository) ListBreachEvents(ctx context.Context, tenantID string, since time.Time) ([]*domain.BreachEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, occurred_at, provider_id, market,
			   rule_set_id, sub_rule_id, rule_type, action_taken,
			   details, signal_data
		FROM breach_events
		WHERE tenant_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC
	`

	bound := since.UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, bound)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.BreachEvent
	for rows.Next() {
		var ev domain.BreachEvent
		var market, ruleType, action string
		var subRuleID, details, signalData sql.NullString

		if err := rows.Scan(
			&ev.ID, &ev.TenantID, &ev.OccurredAt, &ev.ProviderID, &market,
			&ev.RuleSetID, &subRuleID, &ruleType, &action,
			&details, &signalData,
		); err != nil {
			return nil, err
		}

		ev.Market = domain.Market(market)
		ev.SubRuleID = subRuleID.String
		ev.RuleType = domain.RuleType(ruleType)
		ev.Action = domain.ActionTaken(action)
		if details.String != "" {
			json.Unmarshal([]byte(details.String), &ev.Details)
		}
		if signalData.String != "" {
			json.Unmarshal([]byte(signalData.String), &ev.SignalData)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// GetProviderNames resolves provider ids to display names in one query.
func (r *SQLRepository) GetProviderNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	return r.lookupNames(ctx, tenantID, "signal_providers", ids)
}

// GetRuleSetNames resolves rule set ids to display names in one query.
func (r *SQLRepository) GetRuleSetNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	return r.lookupNames(ctx, tenantID, "rule_sets", ids)
}

// GetSubRuleNames resolves sub-rule ids to the display name of their
// rule type. Sub-rules carry no name of their own.
func (r *SQLRepository) GetSubRuleNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query := fmt.Sprintf(
		`SELECT id, rule_type FROM sub_rules WHERE tenant_id = ? AND id IN (%s)`,
		placeholders(len(ids)),
	)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), idArgs(tenantID, ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, ruleType string
		if err := rows.Scan(&id, &ruleType); err != nil {
			return nil, err
		}
		names[id] = ruleTypeDisplayName(domain.RuleType(ruleType))
	}
	return names, rows.Err()
}

func (r *SQLRepository) lookupNames(ctx context.Context, tenantID, table string, ids []string) (map[string]string, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query := fmt.Sprintf(
		`SELECT id, name FROM %s WHERE tenant_id = ? AND id IN (%s)`,
		table, placeholders(len(ids)),
	)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), idArgs(tenantID, ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func ruleTypeDisplayName(t domain.RuleType) string {
	switch t {
	case domain.RuleTypeCoolingOff:
		return "Cooling Off"
	case domain.RuleTypeDirectionGuard:
		return "Same Direction Guard"
	case domain.RuleTypeMaxActiveTrades:
		return "Max Active Trades"
	case domain.RuleTypePipCancelLimit:
		return "Positive Pip Cancel Limit"
	}
	return string(t)
}

// SaveCooldown upserts a cooldown with tenant isolation.
func (r *SQLRepository) SaveCooldown(ctx context.Context, tenantID string, cd *domain.ActiveCooldown) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO active_cooldowns (
			id, tenant_id, provider_id, market, rule_set_id, sub_rule_id,
			started_at, expires_at, status, end_reason, ended_by, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			expires_at = excluded.expires_at,
			status = excluded.status,
			end_reason = excluded.end_reason,
			ended_by = excluded.ended_by,
			ended_at = excluded.ended_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cd.ID, tenantID, cd.ProviderID, string(cd.Market), cd.RuleSetID, cd.SubRuleID,
		cd.StartedAt, cd.ExpiresAt, string(cd.Status),
		cd.EndReason, cd.EndedBy, cd.EndedAt,
	)
	return err
}

// GetCooldown retrieves a cooldown by ID with tenant isolation.
func (r *SQLRepository) GetCooldown(ctx context.Context, tenantID string, cooldownID string) (*domain.ActiveCooldown, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, provider_id, market, rule_set_id, sub_rule_id,
			   started_at, expires_at, status, end_reason, ended_by, ended_at
		FROM active_cooldowns
		WHERE tenant_id = ? AND id = ?
	`

	cd, err := scanCooldown(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, cooldownID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cd, err
}

// ListActiveCooldowns retrieves the tenant's cooldowns still in the
// active state, soonest expiry first.
func (r *SQLRepository) ListActiveCooldowns(ctx context.Context, tenantID string) ([]*domain.ActiveCooldown, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, provider_id, market, rule_set_id, sub_rule_id,
			   started_at, expires_at, status, end_reason, ended_by, ended_at
		FROM active_cooldowns
		WHERE tenant_id = ? AND status = 'active'
		ORDER BY expires_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cooldowns []*domain.ActiveCooldown
	for rows.Next() {
		cd, err := scanCooldown(rows)
		if err != nil {
			return nil, err
		}
		cooldowns = append(cooldowns, cd)
	}
	return cooldowns, rows.Err()
}

func scanCooldown(row rowScanner) (*domain.ActiveCooldown, error) {
	var cd domain.ActiveCooldown
	var market, status string
	var subRuleID, endReason, endedBy sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&cd.ID, &cd.TenantID, &cd.ProviderID, &market, &cd.RuleSetID, &subRuleID,
		&cd.StartedAt, &cd.ExpiresAt, &status,
		&endReason, &endedBy, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	cd.Market = domain.Market(market)
	cd.SubRuleID = subRuleID.String
	cd.Status = domain.CooldownStatus(status)
	cd.EndReason = endReason.String
	cd.EndedBy = endedBy.String
	if endedAt.Valid {
		t := endedAt.Time
		cd.EndedAt = &t
	}
	return &cd, nil
}

// EndCooldown performs the guarded active to ended_manually transition.
// The status guard in the WHERE clause makes concurrent ends race-safe:
// only one update can flip the row.
func (r *SQLRepository) EndCooldown(ctx context.Context, tenantID string, cooldownID, reason, endedBy string, endedAt time.Time) (*domain.ActiveCooldown, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		UPDATE active_cooldowns
		SET status = 'ended_manually', end_reason = ?, ended_by = ?, ended_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), reason, endedBy, endedAt, tenantID, cooldownID)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		current, err := r.GetCooldown(ctx, tenantID, cooldownID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cooldown %s is already %s", domain.ErrInvalidTransition, cooldownID, current.Status)
	}

	return r.GetCooldown(ctx, tenantID, cooldownID)
}

// ExpireCooldowns flips overdue active cooldowns to expired across all
// tenants and reports how many rows changed. Run by the sweeper.
func (r *SQLRepository) ExpireCooldowns(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE active_cooldowns
		SET status = 'expired', ended_at = ?
		WHERE status = 'active' AND expires_at <= ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), now, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SaveProviderStatistics upserts a provider's aggregate figures.
// Decimals are stored as text to keep exact values across drivers.
func (r *SQLRepository) SaveProviderStatistics(ctx context.Context, tenantID string, stats *domain.ProviderStatistics) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO provider_statistics (
			provider_id, tenant_id, total_signals, winning_signals,
			win_rate, net_pips, breach_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, tenant_id) DO UPDATE SET
			total_signals = excluded.total_signals,
			winning_signals = excluded.winning_signals,
			win_rate = excluded.win_rate,
			net_pips = excluded.net_pips,
			breach_count = excluded.breach_count,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		stats.ProviderID, tenantID, stats.TotalSignals, stats.WinningSignals,
		stats.WinRate.String(), stats.NetPips.String(), stats.BreachCount,
		stats.UpdatedAt,
	)
	return err
}

// GetProviderStatistics retrieves a provider's aggregate figures.
func (r *SQLRepository) GetProviderStatistics(ctx context.Context, tenantID string, providerID string) (*domain.ProviderStatistics, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT provider_id, tenant_id, total_signals, winning_signals,
			   win_rate, net_pips, breach_count, updated_at
		FROM provider_statistics
		WHERE tenant_id = ? AND provider_id = ?
	`

	var stats domain.ProviderStatistics
	var winRate, netPips string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, providerID).Scan(
		&stats.ProviderID, &stats.TenantID, &stats.TotalSignals, &stats.WinningSignals,
		&winRate, &netPips, &stats.BreachCount, &stats.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if stats.WinRate, err = decimal.NewFromString(winRate); err != nil {
		return nil, fmt.Errorf("failed to parse win rate for %s: %w", providerID, err)
	}
	if stats.NetPips, err = decimal.NewFromString(netPips); err != nil {
		return nil, fmt.Errorf("failed to parse net pips for %s: %w", providerID, err)
	}
	return &stats, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(tenantID string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
