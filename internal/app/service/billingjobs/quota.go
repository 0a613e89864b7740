package billingjobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

// quotaAlertWindow is how long one over-limit alert covers a (church, key).
const quotaAlertWindow = 24 * time.Hour

type usageCounter func(ctx context.Context, db *gorm.DB, churchID string) (int64, error)

func countRows(model any, where string) usageCounter {
	return func(ctx context.Context, db *gorm.DB, churchID string) (int64, error) {
		var n int64
		q := db.WithContext(ctx).Model(model).Where("church_id = ?", churchID)
		if where != "" {
			q = q.Where(where, true)
		}
		if err := q.Count(&n).Error; err != nil {
			return 0, err
		}
		return n, nil
	}
}

// usageCounters measure live usage for the limit keys that have a countable
// backing table. Monitored keys without a counter are not swept.
var usageCounters = map[string]usageCounter{
	types.FeatureMembers:   countRows(&models.Member{}, ""),
	types.FeatureStaff:     countRows(&models.StaffMember{}, "active = ?"),
	types.FeatureFunds:     countRows(&models.Fund{}, "active = ?"),
	types.FeatureEvents:    countRows(&models.Event{}, ""),
	types.FeatureCampaigns: countRows(&models.Campaign{}, "active = ?"),
}

func quotaAction(key string) string { return "quota.exceeded." + key }

// SweepQuotas compares live usage with each active church's limits and
// records an audit alert per exceeded key. It never suspends.
func (s *Service) SweepQuotas(ctx context.Context) (*types.JobSummary, error) {
	now := s.now().UTC()
	sum := types.NewJobSummary(types.JobQuotaSweep, now)

	var churches []models.Church
	if err := s.db.WithContext(ctx).Where("status = ?", types.ChurchStatusActive).Order("id").Find(&churches).Error; err != nil {
		return nil, fmt.Errorf("list churches: %w", err)
	}
	for _, church := range churches {
		sum.Visited++
		alerted, err := s.sweepChurchQuota(ctx, &church, now)
		if err != nil {
			sum.Fail(church.ID, err)
			continue
		}
		if alerted > 0 {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}
	return s.finish(ctx, sum), nil
}

func (s *Service) sweepChurchQuota(ctx context.Context, church *models.Church, now time.Time) (int, error) {
	ents, err := s.subs.ResolveTenantEntitlements(ctx, church.ID)
	if err != nil {
		return 0, err
	}
	alerted := 0
	for _, key := range s.cfg.Billing.MonitoredLimitKeys {
		count, ok := usageCounters[key]
		ent, gated := ents.Features[key]
		if !ok || !gated || !ent.Enabled || ent.Limit == nil {
			continue
		}
		usage, err := count(ctx, s.db, church.ID)
		if err != nil {
			return alerted, fmt.Errorf("count %s usage: %w", key, err)
		}
		if usage <= *ent.Limit {
			continue
		}
		seen, err := notify.AuditedSince(ctx, s.db, church.ID, quotaAction(key), now.Add(-quotaAlertWindow))
		if err != nil {
			return alerted, err
		}
		if seen {
			continue
		}
		if err := notify.WriteAudit(ctx, s.db, notify.Audit{
			ChurchID:   church.ID,
			ActorID:    notify.ActorJobs,
			Action:     quotaAction(key),
			TargetType: "church",
			TargetID:   church.ID,
			Details:    map[string]any{"key": key, "limit": *ent.Limit, "usage": usage, "plan_code": ent.PlanCode},
		}); err != nil {
			return alerted, err
		}
		alerted++
		logctx.FromCtx(ctx, s.log).Infow("quota_exceeded", "church_id", church.ID, "key", key, "limit", *ent.Limit, "usage", usage)
	}
	return alerted, nil
}
