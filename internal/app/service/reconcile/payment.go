package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

// payment is the provider side of a successful charge.
type payment struct {
	ChargeRef   string
	CustomerRef string
	PlanRef     string
	Amount      decimal.Decimal
	Currency    string
	PaidAt      time.Time
	Correlation gateway.Correlation
}

func (e *Engine) checkoutCompleted(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.CheckoutCompleted, out *Outcome, batch *realtime.Batch) error {
	intent, err := findIntent(ctx, tx, provider, ev.Correlation, ev.SessionRef, ev.PaymentRef)
	if err != nil {
		return err
	}
	if intent == nil {
		out.ignore(ev.Kind(), "no payment intent for "+ev.SessionRef)
		return nil
	}
	at := lo.Ternary(ev.OccurredAt.IsZero(), e.now(), ev.OccurredAt).UTC()

	if ev.SubscriptionRef != "" && intent.RecurringDonationID != nil {
		if err := e.markIntentSucceeded(ctx, tx, intent, "", ev.CustomerRef); err != nil {
			return err
		}
		rd, err := loadRecurring(ctx, tx, *intent.RecurringDonationID)
		if err != nil || rd == nil {
			return err
		}
		if err := e.linkRecurring(ctx, tx, rd, ev.SubscriptionRef, "", ev.CustomerRef); err != nil {
			return err
		}
		return e.activateRecurring(ctx, tx, rd, out, batch)
	}
	if !ev.Paid {
		if err := e.recordIntentRefs(ctx, tx, intent, ev.PaymentRef, ev.CustomerRef); err != nil {
			return err
		}
		out.ignore(ev.Kind(), "awaiting payment for "+intent.ID)
		return nil
	}
	return e.completePayment(ctx, tx, intent, payment{
		ChargeRef:   ev.PaymentRef,
		CustomerRef: ev.CustomerRef,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		PaidAt:      at,
		Correlation: ev.Correlation,
	}, out, batch)
}

func (e *Engine) paymentSucceeded(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.PaymentSucceeded, out *Outcome, batch *realtime.Batch) error {
	intent, err := findIntent(ctx, tx, provider, ev.Correlation, ev.SessionRef, ev.PaymentRef)
	if err != nil {
		return err
	}
	if intent == nil {
		out.ignore(ev.Kind(), "no payment intent for "+ev.PaymentRef)
		return nil
	}
	return e.completePayment(ctx, tx, intent, payment{
		ChargeRef:   ev.PaymentRef,
		CustomerRef: ev.CustomerRef,
		PlanRef:     ev.PlanRef,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		PaidAt:      lo.Ternary(ev.PaidAt.IsZero(), e.now(), ev.PaidAt).UTC(),
		Correlation: ev.Correlation,
	}, out, batch)
}

// recordIntentRefs stores the charge and customer references on an intent
// without changing its status.
func (e *Engine) recordIntentRefs(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, chargeRef, customerRef string) error {
	fields := map[string]any{}
	if chargeRef != "" && chargeRef != intent.ProviderRef && intent.ProviderChargeRef == nil {
		fields["provider_charge_ref"] = chargeRef
		intent.ProviderChargeRef = &chargeRef
	}
	if customerRef != "" && intent.ProviderCustomerID == nil {
		fields["provider_customer_id"] = customerRef
		intent.ProviderCustomerID = &customerRef
	}
	if len(fields) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&models.PaymentIntent{}).Where("id = ?", intent.ID).Updates(fields).Error; err != nil {
		return fmt.Errorf("record intent references: %w", err)
	}
	return nil
}

func (e *Engine) markIntentSucceeded(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, chargeRef, customerRef string) error {
	if err := e.recordIntentRefs(ctx, tx, intent, chargeRef, customerRef); err != nil {
		return err
	}
	if intent.Status == types.PaymentIntentStatusSucceeded {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("id = ? AND status <> ?", intent.ID, types.PaymentIntentStatusSucceeded).
		Updates(map[string]any{"status": types.PaymentIntentStatusSucceeded, "failure_reason": nil}).Error; err != nil {
		return fmt.Errorf("mark intent succeeded: %w", err)
	}
	intent.Status = types.PaymentIntentStatusSucceeded
	return nil
}

// completePayment settles the record an intent was created for.
func (e *Engine) completePayment(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, p payment, out *Outcome, batch *realtime.Batch) error {
	if err := e.markIntentSucceeded(ctx, tx, intent, p.ChargeRef, p.CustomerRef); err != nil {
		return err
	}
	switch {
	case intent.DonationID != nil:
		return e.completeDonation(ctx, tx, *intent.DonationID, p, out, batch)
	case intent.TicketOrderID != nil:
		return e.payTicketOrder(ctx, tx, *intent.TicketOrderID, p.PaidAt, out, batch)
	case intent.RecurringDonationID != nil:
		return e.startRecurring(ctx, tx, intent, p, out, batch)
	}
	out.ignore(gateway.KindPaymentSucceeded, "intent "+intent.ID+" has no target")
	return nil
}

// completeDonation moves a donation to COMPLETED. The receipt and realtime
// event fire only for the delivery that performed the transition; later ones
// still refresh donor details and fill in missing references.
func (e *Engine) completeDonation(ctx context.Context, tx *gorm.DB, donationID string, p payment, out *Outcome, batch *realtime.Batch) error {
	db := tx.WithContext(ctx)
	if fields := p.Correlation.DonorFields(); len(fields) > 0 {
		if err := db.Model(&models.Donation{}).Where("id = ?", donationID).Updates(fields).Error; err != nil {
			return fmt.Errorf("update donor details: %w", err)
		}
	}
	res := db.Model(&models.Donation{}).
		Where("id = ? AND status IN ?", donationID, []types.DonationStatus{types.DonationStatusPending, types.DonationStatusFailed}).
		Updates(map[string]any{"status": types.DonationStatusCompleted, "completed_at": p.PaidAt})
	if res.Error != nil {
		return fmt.Errorf("complete donation: %w", res.Error)
	}
	if p.ChargeRef != "" {
		if err := db.Model(&models.Donation{}).
			Where("id = ? AND provider_charge_ref IS NULL AND provider_ref <> ?", donationID, p.ChargeRef).
			Update("provider_charge_ref", p.ChargeRef).Error; err != nil {
			return fmt.Errorf("record donation charge: %w", err)
		}
	}
	if res.RowsAffected == 0 {
		out.ignore(gateway.KindPaymentSucceeded, "donation "+donationID+" already settled")
		return nil
	}

	var d models.Donation
	if err := db.First(&d, "id = ?", donationID).Error; err != nil {
		return fmt.Errorf("load donation: %w", err)
	}
	if _, err := notify.QueueReceipt(ctx, tx, &d); err != nil {
		return err
	}
	batch.Add(d.ChurchID, realtime.EventDonationCompleted, donationPayload(&d))
	out.apply("donation.completed", d.ID)
	logctx.FromCtx(ctx, e.log).Infow("donation_completed", "donation_id", d.ID, "church_id", d.ChurchID,
		"amount", d.Amount.String(), "currency", d.Currency)
	return nil
}

func donationPayload(d *models.Donation) map[string]any {
	return map[string]any{
		"donation_id":  d.ID,
		"amount":       d.Amount.StringFixed(2),
		"currency":     d.Currency,
		"fund_id":      lo.FromPtr(d.FundID),
		"campaign_id":  lo.FromPtr(d.CampaignID),
		"is_anonymous": d.IsAnonymous,
		"recurring_id": lo.FromPtr(d.RecurringDonationID),
	}
}

// payTicketOrder marks an order PAID and, for members of events that track
// attendance, records them as going with the extra seats as guests.
func (e *Engine) payTicketOrder(ctx context.Context, tx *gorm.DB, orderID string, paidAt time.Time, out *Outcome, batch *realtime.Batch) error {
	db := tx.WithContext(ctx)
	res := db.Model(&models.EventTicketOrder{}).
		Where("id = ? AND status IN ?", orderID, []types.TicketOrderStatus{types.TicketOrderStatusPending, types.TicketOrderStatusCanceled}).
		Updates(map[string]any{"status": types.TicketOrderStatusPaid, "paid_at": paidAt})
	if res.Error != nil {
		return fmt.Errorf("mark ticket order paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		out.ignore(gateway.KindPaymentSucceeded, "ticket order "+orderID+" already paid")
		return nil
	}

	var order models.EventTicketOrder
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		return fmt.Errorf("load ticket order: %w", err)
	}
	if order.MemberID != nil {
		var event models.Event
		if err := db.First(&event, "id = ?", order.EventID).Error; err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event.RequiresRSVP {
			rsvp := &models.EventRSVP{
				ID:       tool.GenerateUUIDV7(),
				ChurchID: order.ChurchID,
				EventID:  order.EventID,
				MemberID: *order.MemberID,
				Status:   types.RSVPStatusGoing,
				Guests:   max(order.Quantity-1, 0),
			}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}, {Name: "member_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "guests", "updated_at"}),
			}).Create(rsvp).Error; err != nil {
				return fmt.Errorf("upsert rsvp: %w", err)
			}
		}
	}
	batch.Add(order.ChurchID, realtime.EventTicketOrderPaid, map[string]any{
		"ticket_order_id": order.ID,
		"event_id":        order.EventID,
		"quantity":        order.Quantity,
		"amount":          order.Amount.StringFixed(2),
	})
	out.apply("ticket_order.paid", order.ID)
	return nil
}

// paymentFailed fails an intent that is still in flight and cascades to its
// donation and ticket order. Succeeded and already failed intents are left
// alone.
func (e *Engine) paymentFailed(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.PaymentFailed, out *Outcome) error {
	intent, err := findIntent(ctx, tx, provider, ev.Correlation, ev.SessionRef, ev.PaymentRef)
	if err != nil {
		return err
	}
	if intent == nil {
		out.ignore(ev.Kind(), "no payment intent for "+lo.CoalesceOrEmpty(ev.SessionRef, ev.PaymentRef))
		return nil
	}
	if intent.Status == types.PaymentIntentStatusSucceeded || intent.Status == types.PaymentIntentStatusFailed {
		out.ignore(ev.Kind(), fmt.Sprintf("intent %s is %s", intent.ID, intent.Status))
		return nil
	}
	db := tx.WithContext(ctx)
	res := db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status IN ?", intent.ID,
			[]types.PaymentIntentStatus{types.PaymentIntentStatusRequiresAction, types.PaymentIntentStatusProcessing}).
		Updates(map[string]any{"status": types.PaymentIntentStatusFailed, "failure_reason": lo.CoalesceOrEmpty(ev.Reason, "payment failed")})
	if res.Error != nil {
		return fmt.Errorf("fail payment intent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if intent.DonationID != nil {
		if err := db.Model(&models.Donation{}).
			Where("id = ? AND status = ?", *intent.DonationID, types.DonationStatusPending).
			Update("status", types.DonationStatusFailed).Error; err != nil {
			return fmt.Errorf("fail donation: %w", err)
		}
	}
	if intent.TicketOrderID != nil {
		if err := db.Model(&models.EventTicketOrder{}).
			Where("id = ? AND status = ?", *intent.TicketOrderID, types.TicketOrderStatusPending).
			Update("status", types.TicketOrderStatusCanceled).Error; err != nil {
			return fmt.Errorf("cancel ticket order: %w", err)
		}
	}
	out.apply("payment_intent.failed", intent.ID)
	logctx.FromCtx(ctx, e.log).Infow("payment_failed", "payment_intent_id", intent.ID, "reason", ev.Reason)
	return nil
}

func loadRecurring(ctx context.Context, tx *gorm.DB, id string) (*models.RecurringDonation, error) {
	var rd models.RecurringDonation
	if err := tx.WithContext(ctx).First(&rd, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load recurring donation: %w", err)
	}
	return &rd, nil
}
