package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// statsRepo stubs the statistics lookup; the other repository methods
// reached by the snapshot path return empty results.
type statsRepo struct {
	domain.Repository
	statsErr error
}

func (r *statsRepo) ListBreachEvents(ctx context.Context, tenantID string, since time.Time) ([]*domain.BreachEvent, error) {
	return nil, nil
}

func (r *statsRepo) ListActiveCooldowns(ctx context.Context, tenantID string) ([]*domain.ActiveCooldown, error) {
	return nil, nil
}

func (r *statsRepo) GetProviderStatistics(ctx context.Context, tenantID string, providerID string) (*domain.ProviderStatistics, error) {
	if r.statsErr != nil {
		return nil, r.statsErr
	}
	return nil, fmt.Errorf("%w: no statistics for %s", domain.ErrNotFound, providerID)
}

func TestKPIsProviderStatistics(t *testing.T) {
	ctx := context.Background()
	f := domain.DefaultFilterState()
	f.ProviderID = "p1"

	t.Run("MissingStatsReadAsZeroWinRate", func(t *testing.T) {
		svc := NewService(&statsRepo{})
		snap, err := svc.KPIs(ctx, "tenant-001", f, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !snap.WinRate.IsZero() {
			t.Errorf("expected zero win rate for a provider without statistics, got %s", snap.WinRate)
		}
	})

	t.Run("FetchFailureSurfaces", func(t *testing.T) {
		svc := NewService(&statsRepo{statsErr: errors.New("connection reset")})
		if _, err := svc.KPIs(ctx, "tenant-001", f, time.Now()); err == nil {
			t.Fatal("expected a statistics fetch failure to surface")
		}
	})
}
