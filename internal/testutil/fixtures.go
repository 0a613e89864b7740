package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

// Publisher records realtime events instead of sending them.
type Publisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *Publisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *Publisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

// Count returns how many events of typ were published.
func (p *Publisher) Count(typ string) int {
	n := 0
	for _, ev := range p.Events() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func Church(t *testing.T, db *gorm.DB, slug string) *models.Church {
	t.Helper()
	c := &models.Church{
		ID:       tool.GenerateUUIDV7(),
		Name:     slug,
		Slug:     slug,
		Country:  "US",
		Currency: "USD",
		Status:   types.ChurchStatusActive,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func Admin(t *testing.T, db *gorm.DB, churchID, email string) *models.StaffMember {
	t.Helper()
	s := &models.StaffMember{
		ID:       tool.GenerateUUIDV7(),
		ChurchID: churchID,
		Email:    email,
		Role:     types.StaffRoleAdmin,
		Active:   true,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Feature describes one plan feature row; a nil Limit is unlimited.
type Feature struct {
	Key     string
	Enabled bool
	Limit   *int64
}

func Plan(t *testing.T, db *gorm.DB, code string, isDefault bool, features ...Feature) *models.SubscriptionPlan {
	t.Helper()
	p := &models.SubscriptionPlan{
		ID:        tool.GenerateUUIDV7(),
		Code:      code,
		Name:      code,
		IsDefault: isDefault,
		Active:    true,
		Price:     decimal.NewFromInt(29),
		Currency:  "USD",
	}
	require.NoError(t, db.Create(p).Error)
	for _, f := range features {
		row := &models.SubscriptionPlanFeature{
			ID:      tool.GenerateUUIDV7(),
			PlanID:  p.ID,
			Key:     f.Key,
			Enabled: f.Enabled,
			Limit:   f.Limit,
		}
		require.NoError(t, db.Create(row).Error)
	}
	return p
}

func Subscription(t *testing.T, db *gorm.DB, churchID, planID string, status types.TenantSubscriptionStatus) *models.TenantSubscription {
	t.Helper()
	s := &models.TenantSubscription{
		ID:       tool.GenerateUUIDV7(),
		ChurchID: churchID,
		PlanID:   planID,
		Status:   status,
		Provider: types.PaymentProviderStripe,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// AllFeatures enables every gated feature without limits.
func AllFeatures() []Feature {
	keys := []string{
		types.FeatureOnlineGiving, types.FeatureRecurringGiving, types.FeatureTicketing, types.FeatureCampaigns,
		types.FeatureMembers, types.FeatureStaff, types.FeatureFunds, types.FeatureEvents,
	}
	out := make([]Feature, 0, len(keys))
	for _, k := range keys {
		out = append(out, Feature{Key: k, Enabled: true})
	}
	return out
}
