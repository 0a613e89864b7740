// Package reconcile applies normalized gateway events to payment intents and
// the donations, ticket orders and recurring gifts they were created for.
// Every transition re-checks the current status, so replays are harmless.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

type Engine struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	refunds *refund.Service
	pub     realtime.Publisher
	now     func() time.Time
}

func NewEngine(db *gorm.DB, log *zap.SugaredLogger, refunds *refund.Service, pub realtime.Publisher) *Engine {
	return &Engine{db: db, log: log, refunds: refunds, pub: pub, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewEngine),
)

// Outcome summarizes what one delivery changed. It is stored as the ledger
// row's result.
type Outcome struct {
	Applied []string `json:"applied"`
	Ignored []string `json:"ignored,omitempty"`
}

func (o *Outcome) apply(what, id string) { o.Applied = append(o.Applied, what+":"+id) }

func (o *Outcome) ignore(kind gateway.EventKind, why string) {
	o.Ignored = append(o.Ignored, string(kind)+":"+why)
}

// Process applies events in one transaction. Realtime events are published
// only after the transaction commits.
func (e *Engine) Process(ctx context.Context, provider types.PaymentProvider, events []gateway.Event) (*Outcome, error) {
	out := &Outcome{Applied: []string{}}
	var batch realtime.Batch
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ev := range events {
			if err := e.apply(ctx, tx, provider, ev, out, &batch); err != nil {
				return fmt.Errorf("apply %s: %w", ev.Kind(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx, e.pub, e.log)
	if len(out.Ignored) > 0 {
		logctx.FromCtx(ctx, e.log).Infow("reconcile_events_ignored", "provider", provider, "ignored", out.Ignored)
	}
	return out, nil
}

func (e *Engine) apply(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.Event, out *Outcome, batch *realtime.Batch) error {
	switch ev := ev.(type) {
	case gateway.CheckoutCompleted:
		return e.checkoutCompleted(ctx, tx, provider, ev, out, batch)
	case gateway.PaymentSucceeded:
		return e.paymentSucceeded(ctx, tx, provider, ev, out, batch)
	case gateway.PaymentFailed:
		return e.paymentFailed(ctx, tx, provider, ev, out)
	case gateway.InvoicePaid:
		return e.invoicePaid(ctx, tx, provider, ev, out, batch)
	case gateway.InvoicePaymentFailed:
		return e.invoicePaymentFailed(ctx, tx, provider, ev, out, batch)
	case gateway.SubscriptionCreated:
		return e.subscriptionState(ctx, tx, provider, ev.Kind(), ev.SubscriptionState, out, batch)
	case gateway.SubscriptionUpdated:
		return e.subscriptionState(ctx, tx, provider, ev.Kind(), ev.SubscriptionState, out, batch)
	case gateway.SubscriptionCanceled:
		return e.subscriptionCanceled(ctx, tx, provider, ev, out, batch)
	case gateway.RefundUpdated:
		r, err := e.refunds.ApplyRefund(ctx, tx, provider, ev, batch)
		if err != nil {
			return err
		}
		out.apply("refund", r.ID)
	case gateway.DisputeUpdated:
		d, err := e.refunds.ApplyDispute(ctx, tx, provider, ev, batch)
		if err != nil {
			return err
		}
		out.apply("dispute", d.ID)
	default:
		out.ignore(ev.Kind(), "unhandled")
	}
	return nil
}

// findIntent locates the payment intent an event is about: by the correlated
// intent id, then by each provider reference, then by the correlated
// donation or ticket order.
func findIntent(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, corr gateway.Correlation, refs ...string) (*models.PaymentIntent, error) {
	db := tx.WithContext(ctx)
	first := func(q *gorm.DB) (*models.PaymentIntent, error) {
		var intent models.PaymentIntent
		err := q.Order("created_at DESC").First(&intent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find payment intent: %w", err)
		}
		return &intent, nil
	}
	if corr.PaymentIntentID != "" {
		if intent, err := first(db.Where("id = ?", corr.PaymentIntentID)); intent != nil || err != nil {
			return intent, err
		}
	}
	for _, ref := range lo.Uniq(lo.Compact(refs)) {
		intent, err := first(db.Where("provider = ? AND (provider_ref = ? OR provider_charge_ref = ?)", provider, ref, ref))
		if intent != nil || err != nil {
			return intent, err
		}
	}
	if corr.DonationID != "" {
		if intent, err := first(db.Where("donation_id = ?", corr.DonationID)); intent != nil || err != nil {
			return intent, err
		}
	}
	if corr.TicketOrderID != "" {
		return first(db.Where("ticket_order_id = ?", corr.TicketOrderID))
	}
	return nil, nil
}
