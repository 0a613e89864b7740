package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

// MapRecurringStatus maps a provider's raw subscription status onto a
// recurring gift status. Unknown statuses report false and change nothing.
func MapRecurringStatus(provider types.PaymentProvider, raw string) (types.RecurringStatus, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch provider {
	case types.PaymentProviderStripe:
		switch raw {
		case "active", "trialing":
			return types.RecurringStatusActive, true
		case "past_due", "unpaid", "paused", "incomplete":
			return types.RecurringStatusPaused, true
		case "canceled", "incomplete_expired":
			return types.RecurringStatusCanceled, true
		}
	case types.PaymentProviderPaystack:
		switch raw {
		case "active", "non-renewing":
			return types.RecurringStatusActive, true
		case "attention":
			return types.RecurringStatusPaused, true
		case "complete", "completed", "cancelled":
			return types.RecurringStatusCanceled, true
		}
	}
	return "", false
}

// findRecurring locates a recurring gift by correlation, then provider
// subscription, then provider plan. A customer reference narrows the plan
// match to gifts not yet tied to another customer.
func findRecurring(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, corr gateway.Correlation, subRef, planRef, customerRef string) (*models.RecurringDonation, error) {
	db := tx.WithContext(ctx)
	first := func(q *gorm.DB) (*models.RecurringDonation, error) {
		var rd models.RecurringDonation
		err := q.Order("created_at DESC").First(&rd).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find recurring donation: %w", err)
		}
		return &rd, nil
	}
	if corr.RecurringDonationID != "" {
		if rd, err := first(db.Where("id = ?", corr.RecurringDonationID)); rd != nil || err != nil {
			return rd, err
		}
	}
	if subRef != "" {
		if rd, err := first(db.Where("provider = ? AND provider_ref = ?", provider, subRef)); rd != nil || err != nil {
			return rd, err
		}
	}
	if planRef != "" {
		q := db.Where("provider = ? AND provider_plan_ref = ?", provider, planRef)
		if customerRef != "" {
			q = q.Where("provider_customer_id = ? OR provider_customer_id IS NULL", customerRef)
		}
		if rd, err := first(q); rd != nil || err != nil {
			return rd, err
		}
	}
	if corr.PaymentIntentID != "" {
		var intent models.PaymentIntent
		err := db.First(&intent, "id = ?", corr.PaymentIntentID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load payment intent: %w", err)
		}
		if err == nil && intent.RecurringDonationID != nil {
			return loadRecurring(ctx, tx, *intent.RecurringDonationID)
		}
	}
	return nil, nil
}

// linkRecurring fills provider references the gift does not have yet.
func (e *Engine) linkRecurring(ctx context.Context, tx *gorm.DB, rd *models.RecurringDonation, subRef, planRef, customerRef string) error {
	fields := map[string]any{}
	if subRef != "" && rd.ProviderRef == nil {
		fields["provider_ref"] = subRef
		rd.ProviderRef = &subRef
	}
	if planRef != "" && rd.ProviderPlanRef == nil {
		fields["provider_plan_ref"] = planRef
		rd.ProviderPlanRef = &planRef
	}
	if customerRef != "" && rd.ProviderCustomerID == nil {
		fields["provider_customer_id"] = customerRef
		rd.ProviderCustomerID = &customerRef
	}
	if len(fields) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&models.RecurringDonation{}).Where("id = ?", rd.ID).Updates(fields).Error; err != nil {
		return fmt.Errorf("link recurring donation: %w", err)
	}
	return nil
}

// setRecurringStatus moves a gift to status. CANCELED is terminal.
func (e *Engine) setRecurringStatus(ctx context.Context, tx *gorm.DB, rd *models.RecurringDonation, status types.RecurringStatus, at time.Time, out *Outcome, batch *realtime.Batch) error {
	if rd.Status == status || rd.Status == types.RecurringStatusCanceled {
		return nil
	}
	fields := map[string]any{"status": status}
	if status == types.RecurringStatusCanceled {
		fields["canceled_at"] = at.UTC()
	}
	res := tx.WithContext(ctx).Model(&models.RecurringDonation{}).
		Where("id = ? AND status = ?", rd.ID, rd.Status).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update recurring donation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	from := rd.Status
	rd.Status = status

	typ := realtime.EventRecurringUpdated
	if from == types.RecurringStatusPaused && status == types.RecurringStatusActive {
		typ = realtime.EventRecurringActivated
	}
	batch.Add(rd.ChurchID, typ, map[string]any{
		"recurring_donation_id": rd.ID,
		"status":                status,
		"previous_status":       from,
	})
	out.apply("recurring."+strings.ToLower(string(status)), rd.ID)
	logctx.FromCtx(ctx, e.log).Infow("recurring_status_changed", "recurring_donation_id", rd.ID, "from", from, "to", status)
	return nil
}

func (e *Engine) activateRecurring(ctx context.Context, tx *gorm.DB, rd *models.RecurringDonation, out *Outcome, batch *realtime.Batch) error {
	if rd.Status != types.RecurringStatusPaused {
		return nil
	}
	return e.setRecurringStatus(ctx, tx, rd, types.RecurringStatusActive, e.now(), out, batch)
}

// startRecurring handles the first successful charge of a recurring checkout.
func (e *Engine) startRecurring(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, p payment, out *Outcome, batch *realtime.Batch) error {
	rd, err := loadRecurring(ctx, tx, *intent.RecurringDonationID)
	if err != nil {
		return err
	}
	if rd == nil {
		out.ignore(gateway.KindPaymentSucceeded, "recurring donation "+*intent.RecurringDonationID+" is gone")
		return nil
	}
	if err := e.linkRecurring(ctx, tx, rd, "", p.PlanRef, p.CustomerRef); err != nil {
		return err
	}
	if p.ChargeRef != "" {
		if err := e.recordCharge(ctx, tx, rd, p.ChargeRef, "", p.Amount, p.Currency, p.PaidAt, out, batch); err != nil {
			return err
		}
	}
	if err := e.advanceSchedule(ctx, tx, rd, p.PaidAt); err != nil {
		return err
	}
	return e.activateRecurring(ctx, tx, rd, out, batch)
}

// recordCharge creates the donation for one recurring charge, at most once
// per (provider, charge reference).
func (e *Engine) recordCharge(ctx context.Context, tx *gorm.DB, rd *models.RecurringDonation, chargeRef, paymentRef string,
	amount decimal.Decimal, currency string, paidAt time.Time, out *Outcome, batch *realtime.Batch) error {
	db := tx.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Donation{}).
		Where("provider = ? AND provider_ref = ?", rd.Provider, chargeRef).Count(&n).Error; err != nil {
		return fmt.Errorf("check recurring charge: %w", err)
	}
	if n > 0 {
		out.ignore(gateway.KindInvoicePaid, "charge "+chargeRef+" already recorded")
		return nil
	}

	d := &models.Donation{
		ID:                  tool.GenerateUUIDV7(),
		ChurchID:            rd.ChurchID,
		Amount:              lo.Ternary(amount.IsPositive(), amount, rd.Amount),
		Currency:            lo.CoalesceOrEmpty(money.Normalize(currency), rd.Currency),
		Status:              types.DonationStatusCompleted,
		Provider:            rd.Provider,
		ProviderRef:         chargeRef,
		FundID:              rd.FundID,
		RecurringDonationID: &rd.ID,
		MemberID:            rd.MemberID,
		DonorName:           rd.DonorName,
		DonorEmail:          rd.DonorEmail,
		CompletedAt:         &paidAt,
	}
	if paymentRef != "" && paymentRef != chargeRef {
		d.ProviderChargeRef = &paymentRef
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_ref"}},
		DoNothing: true,
	}).Create(d)
	if res.Error != nil {
		return fmt.Errorf("create recurring donation charge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		out.ignore(gateway.KindInvoicePaid, "charge "+chargeRef+" already recorded")
		return nil
	}
	if _, err := notify.QueueReceipt(ctx, tx, d); err != nil {
		return err
	}
	batch.Add(d.ChurchID, realtime.EventDonationCompleted, donationPayload(d))
	out.apply("donation.completed", d.ID)
	return nil
}

// advanceSchedule sets last_charge_at to paidAt and next_charge_at one
// interval later. An older or repeated charge never moves the schedule.
func (e *Engine) advanceSchedule(ctx context.Context, tx *gorm.DB, rd *models.RecurringDonation, paidAt time.Time) error {
	paidAt = paidAt.UTC()
	if rd.LastChargeAt != nil && !paidAt.After(*rd.LastChargeAt) {
		return nil
	}
	next := rd.Interval.Next(paidAt)
	if err := tx.WithContext(ctx).Model(&models.RecurringDonation{}).Where("id = ?", rd.ID).
		Updates(map[string]any{"last_charge_at": paidAt, "next_charge_at": next}).Error; err != nil {
		return fmt.Errorf("advance recurring schedule: %w", err)
	}
	rd.LastChargeAt, rd.NextChargeAt = &paidAt, &next
	return nil
}

func (e *Engine) invoicePaid(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.InvoicePaid, out *Outcome, batch *realtime.Batch) error {
	rd, err := findRecurring(ctx, tx, provider, ev.Correlation, ev.SubscriptionRef, ev.PlanRef, ev.CustomerRef)
	if err != nil {
		return err
	}
	if rd == nil {
		out.ignore(ev.Kind(), "no recurring donation for "+lo.CoalesceOrEmpty(ev.SubscriptionRef, ev.PlanRef))
		return nil
	}
	chargeRef := lo.CoalesceOrEmpty(ev.ChargeRef, ev.InvoiceRef, ev.PaymentRef)
	if chargeRef == "" {
		out.ignore(ev.Kind(), "invoice without a charge reference")
		return nil
	}
	if err := e.linkRecurring(ctx, tx, rd, ev.SubscriptionRef, ev.PlanRef, ev.CustomerRef); err != nil {
		return err
	}
	paidAt := lo.Ternary(ev.PaidAt.IsZero(), e.now(), ev.PaidAt).UTC()
	if err := e.recordCharge(ctx, tx, rd, chargeRef, ev.PaymentRef, ev.Amount, ev.Currency, paidAt, out, batch); err != nil {
		return err
	}
	if err := e.advanceSchedule(ctx, tx, rd, paidAt); err != nil {
		return err
	}
	return e.activateRecurring(ctx, tx, rd, out, batch)
}

func (e *Engine) invoicePaymentFailed(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.InvoicePaymentFailed, out *Outcome, batch *realtime.Batch) error {
	rd, err := findRecurring(ctx, tx, provider, ev.Correlation, ev.SubscriptionRef, ev.PlanRef, "")
	if err != nil {
		return err
	}
	if rd == nil {
		out.ignore(ev.Kind(), "no recurring donation for "+lo.CoalesceOrEmpty(ev.SubscriptionRef, ev.PlanRef))
		return nil
	}
	if rd.Status != types.RecurringStatusActive {
		return nil
	}
	return e.setRecurringStatus(ctx, tx, rd, types.RecurringStatusPaused, e.now(), out, batch)
}

func (e *Engine) subscriptionState(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, kind gateway.EventKind,
	st gateway.SubscriptionState, out *Outcome, batch *realtime.Batch) error {
	rd, err := findRecurring(ctx, tx, provider, st.Correlation, st.SubscriptionRef, st.PlanRef, st.CustomerRef)
	if err != nil {
		return err
	}
	if rd == nil {
		out.ignore(kind, "no recurring donation for "+st.SubscriptionRef)
		return nil
	}
	if err := e.linkRecurring(ctx, tx, rd, st.SubscriptionRef, st.PlanRef, st.CustomerRef); err != nil {
		return err
	}
	if st.NextChargeAt != nil && (rd.NextChargeAt == nil || st.NextChargeAt.After(*rd.NextChargeAt)) {
		next := st.NextChargeAt.UTC()
		if err := tx.WithContext(ctx).Model(&models.RecurringDonation{}).Where("id = ?", rd.ID).
			Update("next_charge_at", next).Error; err != nil {
			return fmt.Errorf("update next charge: %w", err)
		}
		rd.NextChargeAt = &next
	}
	status, ok := MapRecurringStatus(provider, st.Status)
	if !ok {
		out.ignore(kind, "unmapped status "+st.Status)
		return nil
	}
	return e.setRecurringStatus(ctx, tx, rd, status, e.now(), out, batch)
}

func (e *Engine) subscriptionCanceled(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.SubscriptionCanceled, out *Outcome, batch *realtime.Batch) error {
	rd, err := findRecurring(ctx, tx, provider, ev.Correlation, ev.SubscriptionRef, ev.PlanRef, "")
	if err != nil {
		return err
	}
	if rd == nil {
		out.ignore(ev.Kind(), "no recurring donation for "+ev.SubscriptionRef)
		return nil
	}
	at := lo.Ternary(ev.CanceledAt.IsZero(), e.now(), ev.CanceledAt)
	return e.setRecurringStatus(ctx, tx, rd, types.RecurringStatusCanceled, at, out, batch)
}
