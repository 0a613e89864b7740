package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

// MapTenantStatus converts a provider subscription status to the tenant
// subscription status set. ok is false for unknown statuses.
func MapTenantStatus(provider types.PaymentProvider, raw string) (types.TenantSubscriptionStatus, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch provider {
	case types.PaymentProviderStripe:
		switch raw {
		case "trialing":
			return types.TenantSubscriptionStatusTrialing, true
		case "active":
			return types.TenantSubscriptionStatusActive, true
		case "past_due", "unpaid":
			return types.TenantSubscriptionStatusPastDue, true
		case "paused", "incomplete":
			return types.TenantSubscriptionStatusPaused, true
		case "canceled":
			return types.TenantSubscriptionStatusCanceled, true
		case "incomplete_expired":
			return types.TenantSubscriptionStatusExpired, true
		}
	case types.PaymentProviderPaystack:
		switch raw {
		case "active", "non-renewing":
			return types.TenantSubscriptionStatusActive, true
		case "attention":
			return types.TenantSubscriptionStatusPastDue, true
		case "complete", "completed":
			return types.TenantSubscriptionStatusExpired, true
		case "cancelled", "canceled":
			return types.TenantSubscriptionStatusCanceled, true
		}
	}
	return "", false
}

// PlatformResult is stored as the ledger result of a platform delivery.
type PlatformResult struct {
	Applied         int      `json:"applied"`
	Ignored         int      `json:"ignored"`
	SubscriptionIDs []string `json:"subscription_ids,omitempty"`
}

// ApplyPlatformEvents applies platform billing events to tenant
// subscriptions inside tx.
func (s *Service) ApplyPlatformEvents(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, events []gateway.Event) (*PlatformResult, error) {
	res := &PlatformResult{}
	for _, ev := range events {
		sub, err := s.applyPlatformEvent(ctx, tx, provider, ev)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", ev.Kind(), err)
		}
		if sub == nil {
			res.Ignored++
			continue
		}
		res.Applied++
		res.SubscriptionIDs = append(res.SubscriptionIDs, sub.ID)
	}
	res.SubscriptionIDs = lo.Uniq(res.SubscriptionIDs)
	return res, nil
}

func (s *Service) applyPlatformEvent(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.Event) (*models.TenantSubscription, error) {
	log := logctx.FromCtx(ctx, s.log)
	switch e := ev.(type) {
	case gateway.CheckoutCompleted:
		if !e.Paid {
			return nil, nil
		}
		return s.activate(ctx, tx, provider, e.Correlation, e.SubscriptionRef, e.CustomerRef, "", nil, nil)

	case gateway.PaymentSucceeded:
		return s.activate(ctx, tx, provider, e.Correlation, "", e.CustomerRef, e.PlanRef, nil, nil)

	case gateway.SubscriptionCreated:
		return s.applyState(ctx, tx, provider, e.SubscriptionState)

	case gateway.SubscriptionUpdated:
		return s.applyState(ctx, tx, provider, e.SubscriptionState)

	case gateway.InvoicePaid:
		sub, err := s.findSubscription(ctx, tx, provider, e.Correlation, e.SubscriptionRef, e.CustomerRef, e.PriceRef)
		if err != nil || sub == nil {
			return nil, err
		}
		if sub.Status == types.TenantSubscriptionStatusCanceled || sub.Status == types.TenantSubscriptionStatusExpired {
			log.Infow("platform_invoice_for_closed_subscription", "subscription_id", sub.ID, "status", sub.Status)
			return sub, nil
		}
		fields := map[string]any{"status": types.TenantSubscriptionStatusActive}
		if e.PeriodStart != nil {
			fields["current_period_start"] = *e.PeriodStart
		}
		if e.PeriodEnd != nil {
			fields["current_period_end"] = *e.PeriodEnd
		}
		if err := s.updateSubscription(ctx, tx, sub, fields, "subscription.invoice_paid"); err != nil {
			return nil, err
		}
		return sub, s.reactivateChurch(ctx, tx, sub.ChurchID)

	case gateway.InvoicePaymentFailed:
		sub, err := s.findSubscription(ctx, tx, provider, e.Correlation, e.SubscriptionRef, "", e.PlanRef)
		if err != nil || sub == nil {
			return nil, err
		}
		if sub.Status != types.TenantSubscriptionStatusActive && sub.Status != types.TenantSubscriptionStatusTrialing {
			return sub, nil
		}
		return sub, s.updateSubscription(ctx, tx, sub,
			map[string]any{"status": types.TenantSubscriptionStatusPastDue}, "subscription.past_due")

	case gateway.SubscriptionCanceled:
		sub, err := s.findSubscription(ctx, tx, provider, e.Correlation, e.SubscriptionRef, "", "")
		if err != nil || sub == nil {
			return nil, err
		}
		if sub.Status == types.TenantSubscriptionStatusCanceled {
			return sub, nil
		}
		return sub, s.updateSubscription(ctx, tx, sub,
			map[string]any{"status": types.TenantSubscriptionStatusCanceled, "canceled_at": e.CanceledAt}, "subscription.canceled")
	}
	return nil, nil
}

func (s *Service) applyState(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, st gateway.SubscriptionState) (*models.TenantSubscription, error) {
	sub, err := s.findSubscription(ctx, tx, provider, st.Correlation, st.SubscriptionRef, st.CustomerRef, st.PriceRef)
	if err != nil {
		return nil, err
	}
	status, known := MapTenantStatus(provider, st.Status)
	if sub == nil {
		if !known || !status.IsActive() {
			return nil, nil
		}
		return s.activate(ctx, tx, provider, st.Correlation, st.SubscriptionRef, st.CustomerRef, st.PriceRef, st.PeriodStart, st.PeriodEnd)
	}

	fields := map[string]any{}
	if known && status != sub.Status {
		fields["status"] = status
		if status == types.TenantSubscriptionStatusCanceled {
			fields["canceled_at"] = s.now().UTC()
		}
	}
	if st.SubscriptionRef != "" && lo.FromPtr(sub.ProviderRef) != st.SubscriptionRef {
		fields["provider_ref"] = st.SubscriptionRef
	}
	if st.CustomerRef != "" && lo.FromPtr(sub.ProviderCustomerID) != st.CustomerRef {
		fields["provider_customer_id"] = st.CustomerRef
	}
	if st.PriceRef != "" && lo.FromPtr(sub.ProviderPriceRef) != st.PriceRef {
		fields["provider_price_ref"] = st.PriceRef
	}
	if st.PeriodStart != nil {
		fields["current_period_start"] = *st.PeriodStart
	}
	if st.PeriodEnd != nil {
		fields["current_period_end"] = *st.PeriodEnd
	}
	if len(fields) == 0 {
		return sub, nil
	}
	if err := s.updateSubscription(ctx, tx, sub, fields, "subscription.provider_updated"); err != nil {
		return nil, err
	}
	if known && status == types.TenantSubscriptionStatusActive {
		return sub, s.reactivateChurch(ctx, tx, sub.ChurchID)
	}
	return sub, nil
}

// activate records a confirmed platform subscription. A subscription already
// linked to subRef is reused; otherwise the correlated plan is assigned.
func (s *Service) activate(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, corr gateway.Correlation,
	subRef, customerRef, priceRef string, start, end *time.Time) (*models.TenantSubscription, error) {
	if corr.ChurchID != "" {
		// sibling events of one purchase must find each other's subscription
		if _, err := lockChurch(ctx, tx, corr.ChurchID); err != nil {
			return nil, err
		}
	}
	existing, err := s.findSubscription(ctx, tx, provider, corr, subRef, customerRef, priceRef)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status.IsActive() {
		fields := map[string]any{}
		if subRef != "" && existing.ProviderRef == nil {
			fields["provider_ref"] = subRef
		}
		if customerRef != "" && existing.ProviderCustomerID == nil {
			fields["provider_customer_id"] = customerRef
		}
		if len(fields) > 0 {
			if err := s.updateSubscription(ctx, tx, existing, fields, "subscription.linked"); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if corr.ChurchID == "" || corr.PlanID == "" {
		logctx.FromCtx(ctx, s.log).Warnw("platform_event_uncorrelated", "provider", provider, "subscription_ref", subRef)
		return nil, nil
	}
	return s.assignPlanTx(ctx, tx, &AssignPlanRequest{
		ChurchID:           corr.ChurchID,
		PlanID:             corr.PlanID,
		Provider:           provider,
		ProviderRef:        subRef,
		ProviderCustomerID: customerRef,
		ProviderPriceRef:   priceRef,
		PeriodStart:        start,
		PeriodEnd:          end,
		ActorID:            notify.ActorWebhook,
	})
}

// findSubscription locates the tenant subscription an event refers to: by
// correlated id, then provider reference, then an unlinked subscription of
// the same customer and price.
func (s *Service) findSubscription(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, corr gateway.Correlation,
	subRef, customerRef, priceRef string) (*models.TenantSubscription, error) {
	lookup := func(q *gorm.DB) (*models.TenantSubscription, error) {
		var sub models.TenantSubscription
		err := q.Order("created_at DESC, id DESC").First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find tenant subscription: %w", err)
		}
		return &sub, nil
	}
	db := tx.WithContext(ctx)

	if corr.TenantSubscriptionID != "" {
		if sub, err := lookup(db.Where("id = ?", corr.TenantSubscriptionID)); sub != nil || err != nil {
			return sub, err
		}
	}
	if subRef != "" {
		if sub, err := lookup(db.Where("provider = ? AND provider_ref = ?", provider, subRef)); sub != nil || err != nil {
			return sub, err
		}
	}
	if customerRef != "" {
		q := db.Where("provider = ? AND provider_customer_id = ? AND provider_ref IS NULL AND status IN ?",
			provider, customerRef, types.ActiveSubscriptionStatuses)
		if priceRef != "" {
			q = q.Where("provider_price_ref = ?", priceRef)
		}
		return lookup(q)
	}
	return nil, nil
}

func (s *Service) updateSubscription(ctx context.Context, tx *gorm.DB, sub *models.TenantSubscription, fields map[string]any, action string) error {
	if err := tx.WithContext(ctx).Model(&models.TenantSubscription{}).Where("id = ?", sub.ID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update tenant subscription: %w", err)
	}
	if v, ok := fields["status"].(types.TenantSubscriptionStatus); ok {
		sub.Status = v
	}
	if v, ok := fields["provider_ref"].(string); ok {
		sub.ProviderRef = &v
	}
	if v, ok := fields["provider_customer_id"].(string); ok {
		sub.ProviderCustomerID = &v
	}
	details := lo.MapValues(fields, func(v any, _ string) any {
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339)
		}
		return v
	})
	return notify.WriteAudit(ctx, tx, notify.Audit{
		ChurchID:   sub.ChurchID,
		ActorID:    notify.ActorWebhook,
		Action:     action,
		TargetType: "tenant_subscription",
		TargetID:   sub.ID,
		Details:    details,
	})
}

func (s *Service) reactivateChurch(ctx context.Context, tx *gorm.DB, churchID string) error {
	var church models.Church
	if err := tx.WithContext(ctx).First(&church, "id = ?", churchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load church: %w", err)
	}
	return s.reactivateIfPastDue(ctx, tx, &church, notify.ActorWebhook)
}
