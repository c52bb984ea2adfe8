// Package worker provides the background jobs behind the governance
// API: the cooldown expiry sweep and incremental provider statistics.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensource-finance/harrier/internal/domain"
)

// sweepTimeout bounds one expiry pass.
const sweepTimeout = 30 * time.Second

// Sweeper expires overdue cooldowns on a schedule and keeps
// provider_statistics current by consuming recorded breaches.
type Sweeper struct {
	repo domain.Repository
	bus  domain.EventBus
	cron *cron.Cron

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds sweeper configuration.
type Config struct {
	// Schedule is a cron spec, e.g. "@every 1m".
	Schedule string

	// TenantIDs lists the tenants whose breach stream feeds statistics.
	TenantIDs []string
}

// NewSweeper creates a sweeper. The bus may be nil; statistics are then
// only updated by the expiry pass callers.
func NewSweeper(repo domain.Repository, bus domain.EventBus) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		repo:   repo,
		bus:    bus,
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start schedules the expiry sweep and subscribes to the breach stream
// for each configured tenant.
func (s *Sweeper) Start(cfg Config) error {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			slog.Error("cooldown sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()

	if s.bus != nil {
		for _, tenantID := range cfg.TenantIDs {
			tenantID := tenantID
			sub, err := s.bus.Subscribe(s.ctx, tenantID, domain.TopicBreachRecorded, func(ctx context.Context, msg *domain.Message) error {
				return s.handleBreach(ctx, tenantID, msg)
			})
			if err != nil {
				slog.Error("failed to subscribe to breach stream",
					"tenant_id", tenantID,
					"error", err,
				)
				continue
			}
			s.subscriptions = append(s.subscriptions, sub)
		}
	}

	slog.Info("sweeper started",
		"schedule", schedule,
		"tenant_count", len(cfg.TenantIDs),
	)
	return nil
}

// Sweep flips overdue active cooldowns to expired and reports how many
// rows changed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	flipped, err := s.repo.ExpireCooldowns(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		slog.Info("expired overdue cooldowns", "count", flipped)
	}
	return flipped, nil
}

// handleBreach folds one recorded breach into the provider's
// statistics row.
func (s *Sweeper) handleBreach(ctx context.Context, tenantID string, msg *domain.Message) error {
	var ev domain.BreachEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		slog.Error("failed to parse breach message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if ev.ProviderID == "" {
		return nil
	}

	stats, err := s.repo.GetProviderStatistics(ctx, tenantID, ev.ProviderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to load provider statistics",
				"provider_id", ev.ProviderID,
				"error", err,
			)
			return err
		}
		stats = &domain.ProviderStatistics{ProviderID: ev.ProviderID, TenantID: tenantID}
	}

	stats.BreachCount++
	stats.RecalcWinRate()
	stats.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveProviderStatistics(ctx, tenantID, stats); err != nil {
		slog.Error("failed to save provider statistics",
			"provider_id", ev.ProviderID,
			"error", err,
		)
		return err
	}

	slog.Debug("provider statistics updated",
		"tenant_id", tenantID,
		"provider_id", ev.ProviderID,
		"breach_count", stats.BreachCount,
	)
	return nil
}

// Stop halts the schedule and drops all subscriptions.
func (s *Sweeper) Stop() error {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	for _, sub := range s.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	s.subscriptions = nil

	slog.Info("sweeper stopped")
	return nil
}
