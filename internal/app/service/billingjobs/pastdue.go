package billingjobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func (s *Service) pastDueSubscriptions(ctx context.Context) ([]models.TenantSubscription, error) {
	var subs []models.TenantSubscription
	if err := s.db.WithContext(ctx).
		Where("status = ?", types.TenantSubscriptionStatusPastDue).
		Order("church_id").Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list past due subscriptions: %w", err)
	}
	return subs, nil
}

// SuspendPastDue suspends active churches whose past-due subscription has
// been past due for longer than the grace window. Only churches still ACTIVE
// are touched, so a second pass changes nothing.
func (s *Service) SuspendPastDue(ctx context.Context) (*types.JobSummary, error) {
	now := s.now().UTC()
	sum := types.NewJobSummary(types.JobPastDueSuspend, now)
	grace := s.cfg.Billing.PastDueGraceDays
	reason := subscription.PastDueSuspendReason(grace)

	subs, err := s.pastDueSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, sub := range subs {
		if seen[sub.ChurchID] {
			continue
		}
		seen[sub.ChurchID] = true
		sum.Visited++

		since := pastDueSince(sub.CurrentPeriodEnd, sub.UpdatedAt)
		if now.Sub(since) <= days(grace) {
			sum.Skipped++
			continue
		}
		changed, err := s.suspendChurch(ctx, &sub, reason, since, now)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("past_due_suspend_failed", "church_id", sub.ChurchID, "error", err)
			sum.Fail(sub.ChurchID, err)
			continue
		}
		if changed {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}
	return s.finish(ctx, sum), nil
}

func (s *Service) suspendChurch(ctx context.Context, sub *models.TenantSubscription, reason string, since, now time.Time) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Church{}).
			Where("id = ? AND status = ?", sub.ChurchID, types.ChurchStatusActive).
			Updates(map[string]any{
				"status":           types.ChurchStatusSuspended,
				"suspended_reason": reason,
				"suspended_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("suspend church: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return notify.WriteAudit(ctx, tx, notify.Audit{
			ChurchID:   sub.ChurchID,
			ActorID:    notify.ActorJobs,
			Action:     "church.suspended",
			TargetType: "church",
			TargetID:   sub.ChurchID,
			Details: map[string]any{
				"reason":          reason,
				"subscription_id": sub.ID,
				"past_due_since":  since.Format(time.RFC3339),
			},
		})
	})
	if changed && err == nil {
		logctx.FromCtx(ctx, s.log).Infow("church_suspended", "church_id", sub.ChurchID, "reason", reason)
	}
	return changed && err == nil, err
}

func dunningKey(subID, email string) string { return fmt.Sprintf("dunning:%s:%s", subID, email) }

// SendDunning queues a past-due notice to every admin of churches whose
// subscription is past due beyond the dunning grace period. Each
// (subscription, recipient) gets at most one notice per dunning window.
func (s *Service) SendDunning(ctx context.Context) (*types.JobSummary, error) {
	now := s.now().UTC()
	sum := types.NewJobSummary(types.JobDunning, now)
	window := s.cfg.Billing.DunningWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	subs, err := s.pastDueSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		sum.Visited++
		since := pastDueSince(sub.CurrentPeriodEnd, sub.UpdatedAt)
		if now.Sub(since) <= days(s.cfg.Billing.DunningGraceDays) {
			sum.Skipped++
			continue
		}
		queued, err := s.dun(ctx, &sub, since, now.Add(-window))
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("dunning_failed", "subscription_id", sub.ID, "error", err)
			sum.Fail(sub.ID, err)
			continue
		}
		if queued > 0 {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}
	return s.finish(ctx, sum), nil
}

func (s *Service) dun(ctx context.Context, sub *models.TenantSubscription, pastDueSince, windowStart time.Time) (int, error) {
	queued := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admins, err := notify.AdminRecipients(ctx, tx, sub.ChurchID)
		if err != nil {
			return err
		}
		for _, admin := range admins {
			key := dunningKey(sub.ID, admin.Email)
			recent, err := notify.QueuedSince(ctx, tx, key, windowStart)
			if err != nil {
				return err
			}
			if recent {
				continue
			}
			if err := notify.Enqueue(ctx, tx, notify.Message{
				ChurchID:  sub.ChurchID,
				Recipient: admin.Email,
				Template:  notify.TemplateDunning,
				Subject:   "Your subscription payment is past due",
				DedupeKey: key,
				Metadata: map[string]any{
					"subscription_id": sub.ID,
					"plan_id":         sub.PlanID,
					"past_due_since":  pastDueSince.Format(time.RFC3339),
				},
			}); err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return queued, nil
}
