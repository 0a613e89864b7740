// Package billingjobs holds the periodic billing sweeps. Each job visits an
// entity at most once per pass, collects per-item failures instead of
// stopping, and is safe to re-run at any time.
package billingjobs

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/metrics"
	"github.com/fatflowers/offertory/pkg/types"
)

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *config.Config
	subs     *subscription.Service
	refunds  *refund.Service
	registry *gateway.Registry
	now      func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, subs *subscription.Service,
	refunds *refund.Service, registry *gateway.Registry) *Service {
	return &Service{db: db, log: log, cfg: cfg, subs: subs, refunds: refunds, registry: registry, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

// Jobs lists every job in the order a full run executes them.
func Jobs() []types.JobName {
	return []types.JobName{
		types.JobQuotaSweep,
		types.JobPastDueSuspend,
		types.JobDunning,
		types.JobMetadataBackfill,
		types.JobDisputeAlerts,
	}
}

// Run executes one job by name.
func (s *Service) Run(ctx context.Context, job types.JobName) (*types.JobSummary, error) {
	ctx = logctx.WithLogger(ctx, logctx.FromCtx(ctx, s.log).With("job", string(job)))
	switch job {
	case types.JobQuotaSweep:
		return s.SweepQuotas(ctx)
	case types.JobPastDueSuspend:
		return s.SuspendPastDue(ctx)
	case types.JobDunning:
		return s.SendDunning(ctx)
	case types.JobMetadataBackfill:
		return s.BackfillMetadata(ctx)
	case types.JobDisputeAlerts:
		return s.refunds.SweepDisputeAlerts(ctx)
	}
	return nil, apperr.Validation("unknown job %q, expected one of %v", job, Jobs())
}

// RunAll executes every job in order. A job that fails outright does not
// stop the jobs after it.
func (s *Service) RunAll(ctx context.Context) ([]*types.JobSummary, error) {
	var out []*types.JobSummary
	var errs []error
	for _, job := range Jobs() {
		sum, err := s.Run(ctx, job)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("billing_job_failed", "job", job, "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, sum)
	}
	if len(errs) > 0 {
		return out, errs[0]
	}
	return out, nil
}

func (s *Service) finish(ctx context.Context, sum *types.JobSummary) *types.JobSummary {
	sum.FinishedAt = s.now().UTC()
	metrics.ObserveJob(string(sum.Job), sum.Changed, sum.Skipped, len(sum.Errors))
	logctx.FromCtx(ctx, s.log).Infow("billing_job_done", "job", sum.Job, "visited", sum.Visited,
		"changed", sum.Changed, "skipped", sum.Skipped, "errors", len(sum.Errors),
		"duration_ms", sum.FinishedAt.Sub(sum.StartedAt).Milliseconds())
	return sum
}

// pastDueSince is when a past-due subscription's grace clock started.
func pastDueSince(periodEnd *time.Time, updatedAt time.Time) time.Time {
	return lo.FromPtrOr(periodEnd, updatedAt)
}
