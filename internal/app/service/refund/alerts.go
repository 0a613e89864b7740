package refund

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/metrics"
	"github.com/fatflowers/offertory/pkg/types"
)

type AlertStage string

const (
	StageOverdue   AlertStage = "overdue"
	StageOneDay    AlertStage = "one_day"
	StageThreeDays AlertStage = "three_days"
	StageSevenDays AlertStage = "seven_days"
)

var closedDispute = regexp.MustCompile(`(?i)won|lost|closed|resolved|refunded`)

// alertStage returns the stage a dispute due at due is in at now, or false
// when evidence is due more than a week out.
func alertStage(due, now time.Time) (AlertStage, bool) {
	left := due.Sub(now)
	switch {
	case left < 0:
		return StageOverdue, true
	case left <= 24*time.Hour:
		return StageOneDay, true
	case left <= 72*time.Hour:
		return StageThreeDays, true
	case left <= 7*24*time.Hour:
		return StageSevenDays, true
	}
	return "", false
}

func alertAction(stage AlertStage) string { return "dispute.alert." + string(stage) }

// SweepDisputeAlerts raises one alert per dispute and stage as evidence
// deadlines approach. Each alert is an audit entry plus a queued notice to
// every admin of the church.
func (s *Service) SweepDisputeAlerts(ctx context.Context) (*types.JobSummary, error) {
	now := s.now().UTC()
	sum := types.NewJobSummary(types.JobDisputeAlerts, now)
	log := logctx.FromCtx(ctx, s.log)

	var disputes []models.Dispute
	if err := s.db.WithContext(ctx).Where("evidence_due_by IS NOT NULL").Order("evidence_due_by").Find(&disputes).Error; err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	for _, d := range disputes {
		sum.Visited++
		if closedDispute.MatchString(d.Status) {
			sum.Skipped++
			continue
		}
		stage, ok := alertStage(*d.EvidenceDueBy, now)
		if !ok {
			sum.Skipped++
			continue
		}
		sent, err := s.alertDispute(ctx, &d, stage)
		if err != nil {
			log.Warnw("dispute_alert_failed", "dispute_id", d.ID, "stage", stage, "error", err)
			sum.Fail(d.ID, err)
			continue
		}
		if sent {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}
	sum.FinishedAt = s.now().UTC()
	metrics.ObserveJob(string(sum.Job), sum.Changed, sum.Skipped, len(sum.Errors))
	log.Infow("dispute_alert_sweep_done", "visited", sum.Visited, "changed", sum.Changed, "errors", len(sum.Errors))
	return sum, nil
}

func (s *Service) alertDispute(ctx context.Context, d *models.Dispute, stage AlertStage) (bool, error) {
	action := alertAction(stage)
	seen, err := notify.HasAudit(ctx, s.db, d.ID, action)
	if err != nil || seen {
		return false, err
	}
	churchID := lo.FromPtr(d.ChurchID)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := notify.WriteAudit(ctx, tx, notify.Audit{
			ChurchID:   churchID,
			ActorID:    notify.ActorJobs,
			Action:     action,
			TargetType: "dispute",
			TargetID:   d.ID,
			Details: map[string]any{
				"status":          d.Status,
				"evidence_due_by": d.EvidenceDueBy.UTC().Format(time.RFC3339),
				"donation_id":     lo.FromPtr(d.DonationID),
			},
		}); err != nil {
			return err
		}
		if churchID == "" {
			return nil
		}
		admins, err := notify.AdminRecipients(ctx, tx, churchID)
		if err != nil {
			return err
		}
		for _, admin := range admins {
			key := fmt.Sprintf("dispute:%s:%s:%s", d.ID, stage, admin.Email)
			queued, err := notify.QueuedSince(ctx, tx, key, time.Time{})
			if err != nil {
				return err
			}
			if queued {
				continue
			}
			if err := notify.Enqueue(ctx, tx, notify.Message{
				ChurchID:  churchID,
				Recipient: admin.Email,
				Template:  notify.TemplateDisputeAlert,
				Subject:   fmt.Sprintf("Dispute evidence due (%s)", stage),
				DedupeKey: key,
				Metadata: map[string]any{
					"dispute_id":      d.ID,
					"stage":           stage,
					"amount":          d.Amount.StringFixed(2),
					"currency":        d.Currency,
					"evidence_due_by": d.EvidenceDueBy.UTC().Format(time.RFC3339),
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}
