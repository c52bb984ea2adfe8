package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/breach"
	"github.com/opensource-finance/harrier/internal/cooldown"
	"github.com/opensource-finance/harrier/internal/dashboard"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	breaches   *breach.Service
	dashboards *dashboard.Service
	cooldowns  *cooldown.Service
	validate   *validator.Validate
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, breaches *breach.Service, dashboards *dashboard.Service, cooldowns *cooldown.Service, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		breaches:   breaches,
		dashboards: dashboards,
		cooldowns:  cooldowns,
		validate:   validator.New(),
		version:    version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RuleSetRequest is the request body for creating or updating a rule set.
type RuleSetRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Markets     []domain.Market `json:"markets" validate:"required,min=1,dive,oneof=Forex Crypto Indices"`
	Active      bool            `json:"active"`
	CreatedBy   string          `json:"createdBy"`
}

// ListRuleSets returns all rule sets for the tenant.
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	ruleSets, err := h.repo.ListRuleSets(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ruleSets": ruleSets,
		"count":    len(ruleSets),
	})
}

// CreateRuleSet creates a rule set with a default, disabled sub-rule for
// every rule type.
func (h *Handler) CreateRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req RuleSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	rs := &domain.RuleSet{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Markets:     req.Markets,
		Active:      req.Active,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, t := range domain.RuleTypes() {
		cfg, err := domain.DefaultRuleConfig(t)
		if err != nil {
			writeError(w, err)
			return
		}
		rs.SubRules = append(rs.SubRules, domain.SubRule{
			ID:        uuid.New().String(),
			RuleSetID: rs.ID,
			RuleType:  t,
			Enabled:   false,
			Config:    cfg,
		})
	}

	if err := rs.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.SaveRuleSet(ctx, tenantID, rs); err != nil {
		writeError(w, err)
		return
	}

	h.announceRuleSetChange(r, tenantID, rs.ID)
	slog.Info("rule set created", "rule_set_id", rs.ID, "name", rs.Name)
	writeJSON(w, http.StatusCreated, rs)
}

// GetRuleSet retrieves a rule set with its sub-rules.
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleSetID := chi.URLParam(r, "id")

	rs, err := h.repo.GetRuleSet(ctx, tenantID, ruleSetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rs)
}

// UpdateRuleSet replaces the top-level fields of a rule set. Sub-rule
// configurations are edited through their own endpoint.
func (h *Handler) UpdateRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleSetID := chi.URLParam(r, "id")

	var req RuleSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	rs, err := h.repo.GetRuleSet(ctx, tenantID, ruleSetID)
	if err != nil {
		writeError(w, err)
		return
	}

	rs.Name = req.Name
	rs.Description = req.Description
	rs.Markets = req.Markets
	rs.Active = req.Active
	rs.UpdatedAt = time.Now().UTC()
	// Sub-rules are saved separately; drop them so the upsert only
	// touches the rule set row.
	saved := *rs
	saved.SubRules = nil

	if err := saved.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.SaveRuleSet(ctx, tenantID, &saved); err != nil {
		writeError(w, err)
		return
	}

	h.announceRuleSetChange(r, tenantID, rs.ID)
	writeJSON(w, http.StatusOK, rs)
}

// DeleteRuleSet deletes a rule set and its sub-rules.
func (h *Handler) DeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleSetID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRuleSet(ctx, tenantID, ruleSetID); err != nil {
		writeError(w, err)
		return
	}

	h.announceRuleSetChange(r, tenantID, ruleSetID)
	slog.Info("rule set deleted", "rule_set_id", ruleSetID)
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": ruleSetID,
	})
}

// SubRuleRequest is the request body for upserting one sub-rule
// configuration. Config is the whole replacement payload for the rule
// type in the URL; partial patches are not supported.
type SubRuleRequest struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config" validate:"required"`
}

// UpsertSubRule replaces the configuration of one rule type within a
// rule set.
func (h *Handler) UpsertSubRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleSetID := chi.URLParam(r, "id")
	ruleType := domain.RuleType(chi.URLParam(r, "ruleType"))

	var req SubRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	cfg, err := domain.DecodeRuleConfig(ruleType, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	rs, err := h.repo.GetRuleSet(ctx, tenantID, ruleSetID)
	if err != nil {
		writeError(w, err)
		return
	}

	sr := domain.SubRule{
		ID:        uuid.New().String(),
		RuleSetID: rs.ID,
		RuleType:  ruleType,
		Enabled:   req.Enabled,
		Config:    cfg,
	}
	// Keep the existing sub-rule id stable across config replacements.
	for i := range rs.SubRules {
		if rs.SubRules[i].RuleType == ruleType {
			sr.ID = rs.SubRules[i].ID
			break
		}
	}

	if err := sr.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.SaveSubRule(ctx, tenantID, &sr); err != nil {
		writeError(w, err)
		return
	}

	h.announceRuleSetChange(r, tenantID, rs.ID)
	writeJSON(w, http.StatusOK, sr)
}

// SubRuleSummary pairs a rule type with its rendered sentence.
type SubRuleSummary struct {
	RuleType domain.RuleType `json:"ruleType"`
	Enabled  bool            `json:"enabled"`
	Summary  string          `json:"summary"`
}

// RuleSetSummary renders the natural-language summary for every
// sub-rule of a rule set. Disabled sub-rules summarize to "".
func (h *Handler) RuleSetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleSetID := chi.URLParam(r, "id")

	rs, err := h.repo.GetRuleSet(ctx, tenantID, ruleSetID)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]SubRuleSummary, 0, len(rs.SubRules))
	for _, sr := range rs.SubRules {
		summaries = append(summaries, SubRuleSummary{
			RuleType: sr.RuleType,
			Enabled:  sr.Enabled,
			Summary:  rules.Summarize(sr),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ruleSetId": rs.ID,
		"name":      rs.Name,
		"summaries": summaries,
	})
}

// BreachRequest is the ingest payload from the external rule evaluator.
type BreachRequest struct {
	ID         string                 `json:"id"`
	OccurredAt string                 `json:"occurredAt" validate:"required"`
	ProviderID string                 `json:"providerId" validate:"required"`
	Market     domain.Market          `json:"market" validate:"required,oneof=Forex Crypto Indices"`
	RuleSetID  string                 `json:"ruleSetId" validate:"required"`
	SubRuleID  string                 `json:"subRuleId"`
	RuleType   domain.RuleType        `json:"ruleType" validate:"omitempty,oneof=cooling_off same_direction_guard max_active_trades positive_pip_cancel_limit"`
	Action     domain.ActionTaken     `json:"actionTaken" validate:"required,oneof=signal_rejected cooldown_triggered suspension_applied"`
	Details    map[string]interface{} `json:"details"`
	SignalData map[string]interface{} `json:"signalData"`
}

// IngestBreach records a breach event reported by the evaluator.
func (h *Handler) IngestBreach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	ev := &domain.BreachEvent{
		ID:         req.ID,
		OccurredAt: req.OccurredAt,
		ProviderID: req.ProviderID,
		Market:     req.Market,
		RuleSetID:  req.RuleSetID,
		SubRuleID:  req.SubRuleID,
		RuleType:   req.RuleType,
		Action:     req.Action,
		Details:    req.Details,
		SignalData: req.SignalData,
	}

	if err := h.breaches.Ingest(ctx, tenantID, ev); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ev)
}

// ListBreaches runs the filter pipeline over the tenant's breach events.
// Filter state arrives as query parameters; see domain.DecodeFilterQuery.
func (h *Handler) ListBreaches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	f, err := domain.DecodeFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.breaches.Query(ctx, tenantID, f, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// DashboardKPIs returns the headline numbers for the filter window.
func (h *Handler) DashboardKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	f, err := domain.DecodeFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.dashboards.KPIs(ctx, tenantID, f, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// DashboardHeatmap returns hour-by-market buckets plus session groups.
// The sessions query parameter picks fixed or dynamic grouping; dynamic
// is the default.
func (h *Handler) DashboardHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	f, err := domain.DecodeFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	fixed := false
	switch r.URL.Query().Get("sessions") {
	case "", "dynamic":
	case "fixed":
		fixed = true
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sessions must be dynamic or fixed",
		})
		return
	}

	result, err := h.dashboards.Heatmap(ctx, tenantID, f, fixed, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DashboardTopRuleSets returns the most-breached rule sets with
// period-over-period trends.
func (h *Handler) DashboardTopRuleSets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	f, err := domain.DecodeFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	ranks, err := h.dashboards.TopRuleSets(ctx, tenantID, f, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ruleSets": ranks,
		"count":    len(ranks),
	})
}

// CooldownRequest is the payload for registering a cooldown imposed by
// the external rule evaluator.
type CooldownRequest struct {
	ProviderID string        `json:"providerId" validate:"required"`
	Market     domain.Market `json:"market" validate:"required,oneof=Forex Crypto Indices"`
	RuleSetID  string        `json:"ruleSetId" validate:"required"`
	SubRuleID  string        `json:"subRuleId"`
	StartedAt  time.Time     `json:"startedAt"`
	ExpiresAt  time.Time     `json:"expiresAt" validate:"required"`
}

// StartCooldown registers a new active cooldown.
func (h *Handler) StartCooldown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CooldownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now().UTC()
	}
	cd := &domain.ActiveCooldown{
		ProviderID: req.ProviderID,
		Market:     req.Market,
		RuleSetID:  req.RuleSetID,
		SubRuleID:  req.SubRuleID,
		StartedAt:  req.StartedAt,
		ExpiresAt:  req.ExpiresAt,
	}

	if err := h.cooldowns.Start(ctx, tenantID, cd); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, cd)
}

// ListCooldowns returns the tenant's active cooldowns with countdowns,
// early-end eligibility and summary stats.
func (h *Handler) ListCooldowns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	result, err := h.cooldowns.List(ctx, tenantID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// EndCooldownRequest is the request body for ending a cooldown early.
type EndCooldownRequest struct {
	Reason  string `json:"reason" validate:"required"`
	EndedBy string `json:"endedBy"`
}

// EndCooldown performs the manual early termination of a cooldown.
func (h *Handler) EndCooldown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	cooldownID := chi.URLParam(r, "id")

	var req EndCooldownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	cmd := &domain.EndCooldownCommand{
		CooldownID: cooldownID,
		Reason:     req.Reason,
		EndedBy:    req.EndedBy,
	}
	result, err := h.cooldowns.EndEarly(ctx, tenantID, cmd, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("cooldown ended early",
		"cooldown_id", cooldownID,
		"ended_by", req.EndedBy,
	)
	writeJSON(w, http.StatusOK, result)
}

// ProviderRequest is the request body for registering a signal provider.
type ProviderRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required"`
	Active bool   `json:"active"`
}

// CreateProvider registers a signal provider.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	p := &domain.SignalProvider{
		ID:        req.ID,
		TenantID:  tenantID,
		Name:      req.Name,
		Active:    req.Active,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveProvider(ctx, tenantID, p); err != nil {
		writeError(w, err)
		return
	}

	h.breaches.InvalidateLookups(ctx, tenantID)
	writeJSON(w, http.StatusCreated, p)
}

// ListProviders returns all signal providers for the tenant.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	providers, err := h.repo.ListProviders(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
		"count":     len(providers),
	})
}

// announceRuleSetChange publishes the update topic and drops cached name
// tables so stale names never outlive a rename.
func (h *Handler) announceRuleSetChange(r *http.Request, tenantID, ruleSetID string) {
	ctx := r.Context()
	h.breaches.InvalidateLookups(ctx, tenantID)

	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{"ruleSetId": ruleSetID})
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, tenantID, domain.TopicRuleSetUpdated, payload); err != nil {
		slog.Warn("failed to publish rule set update",
			"rule_set_id", ruleSetID,
			"error", err,
		)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
