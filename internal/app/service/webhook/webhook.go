// Package webhook is the inbound webhook pipeline: verify the delivery,
// claim it in the idempotency ledger, apply its events, then finalize the
// ledger row with the outcome.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/reconcile"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/metrics"
	"github.com/fatflowers/offertory/pkg/types"
)

// Webhook outcome labels.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *config.Config
	registry *gateway.Registry
	ledger   *ledger.Service
	engine   *reconcile.Engine
	subs     *subscription.Service
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, registry *gateway.Registry,
	ledger *ledger.Service, engine *reconcile.Engine, subs *subscription.Service) *Service {
	return &Service{db: db, log: log, cfg: cfg, registry: registry, ledger: ledger, engine: engine, subs: subs}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type Request struct {
	Provider types.PaymentProvider
	Scope    types.GatewayScope
	Payload  []byte
	Header   http.Header
}

// Result describes what happened to one delivery. A duplicate is a
// successful outcome: the provider gets the same acknowledgement it got the
// first time.
type Result struct {
	RecordID        string `json:"record_id"`
	ExternalEventID string `json:"external_event_id"`
	EventType       string `json:"event_type"`
	Duplicate       bool   `json:"duplicate"`
	Resumed         bool   `json:"resumed"`
	Outcome         any    `json:"outcome,omitempty"`
}

// Handle runs one delivery through the pipeline. Signature failures return
// apperr.ErrInvalidSignature without touching the ledger. Any failure after
// the ledger claim marks the row FAILED so a provider retry resumes it.
func (s *Service) Handle(ctx context.Context, req *Request) (res *Result, err error) {
	start := time.Now()
	provider, scope := string(req.Provider), string(req.Scope)
	log := logctx.FromCtx(ctx, s.log).With("provider", provider, "scope", scope)

	gw, err := s.registry.Get(req.Scope, req.Provider)
	if err != nil {
		metrics.ObserveWebhook(provider, scope, OutcomeRejected)
		return nil, err
	}
	delivery, err := gw.ParseWebhook(ctx, req.Payload, req.Header)
	if err != nil {
		metrics.ObserveWebhook(provider, scope, OutcomeRejected)
		log.Warnw("webhook_rejected", "error", err)
		return nil, err
	}
	log = log.With("external_event_id", delivery.ExternalEventID, "event_type", delivery.EventType)

	begin, err := s.ledger.BeginProcessing(ctx, &ledger.BeginRequest{
		Provider:        req.Provider,
		Scope:           req.Scope,
		ExternalEventID: delivery.ExternalEventID,
		EventType:       delivery.EventType,
		Payload:         req.Payload,
	})
	if err != nil {
		metrics.ObserveWebhook(provider, scope, OutcomeFailed)
		return nil, fmt.Errorf("begin webhook processing: %w", err)
	}
	res = &Result{
		RecordID:        begin.RecordID,
		ExternalEventID: delivery.ExternalEventID,
		EventType:       delivery.EventType,
		Duplicate:       begin.Duplicate,
		Resumed:         begin.Resumed,
	}
	if begin.Duplicate {
		metrics.ObserveWebhook(provider, scope, OutcomeDuplicate)
		log.Infow("webhook_duplicate", "record_id", begin.RecordID, "status", begin.Existing.Status)
		return res, nil
	}
	log.Infow("webhook_received", "record_id", begin.RecordID, "resumed", begin.Resumed, "events", len(delivery.Events))

	defer func() {
		// the ledger row must be finalized even if the caller's context is gone
		fctx := context.WithoutCancel(ctx)
		if err != nil {
			metrics.ObserveWebhook(provider, scope, OutcomeFailed)
			log.Errorw("webhook_failed", "record_id", begin.RecordID, "error", err)
			if mErr := s.ledger.MarkFailed(fctx, begin.RecordID, err, res); mErr != nil {
				log.Errorw("webhook_mark_failed_error", "record_id", begin.RecordID, "error", mErr)
			}
			res = nil
			return
		}
		if mErr := s.ledger.MarkProcessed(fctx, begin.RecordID, res); mErr != nil {
			log.Errorw("webhook_mark_processed_error", "record_id", begin.RecordID, "error", mErr)
			metrics.ObserveWebhook(provider, scope, OutcomeFailed)
			res, err = nil, mErr
			return
		}
		metrics.ObserveWebhook(provider, scope, OutcomeProcessed)
		metrics.Since("webhook", provider, start)
		log.Infow("webhook_processed", "record_id", begin.RecordID, "elapsed_ms", time.Since(start).Milliseconds())
	}()

	pctx := ctx
	if t := s.cfg.Gateway.WebhookTimeout; t > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	res.Outcome, err = s.apply(pctx, req.Provider, req.Scope, delivery.Events)
	return res, err
}

func (s *Service) apply(ctx context.Context, provider types.PaymentProvider, scope types.GatewayScope, events []gateway.Event) (any, error) {
	switch scope {
	case types.GatewayScopeGiving:
		return s.engine.Process(ctx, provider, events)
	case types.GatewayScopePlatform:
		var out *subscription.PlatformResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = s.subs.ApplyPlatformEvents(ctx, tx, provider, events)
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, apperr.Validation("unknown webhook scope %q", scope)
}
