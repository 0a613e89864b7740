package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
	"github.com/fatflowers/offertory/pkg/validate"
)

const pastDueReasonPrefix = "past_due"

// PastDueSuspendReason is the suspension reason recorded by the past-due
// sweep for a grace window of graceDays.
func PastDueSuspendReason(graceDays int) string {
	return fmt.Sprintf("%s_grace_%dd", pastDueReasonPrefix, graceDays)
}

type AssignPlanRequest struct {
	ChurchID           string                         `json:"-" validate:"required"`
	PlanCode           string                         `json:"plan_code" validate:"required_without=PlanID"`
	PlanID             string                         `json:"plan_id"`
	Provider           types.PaymentProvider          `json:"provider" validate:"omitempty,oneof=STRIPE PAYSTACK MANUAL"`
	ProviderRef        string                         `json:"provider_ref"`
	ProviderCustomerID string                         `json:"provider_customer_id"`
	ProviderPriceRef   string                         `json:"provider_price_ref"`
	Status             types.TenantSubscriptionStatus `json:"status" validate:"omitempty,oneof=TRIALING ACTIVE PAST_DUE"`
	PeriodStart        *time.Time                     `json:"current_period_start"`
	PeriodEnd          *time.Time                     `json:"current_period_end"`
	ActorID            string                         `json:"-"`
}

// AssignPlan starts a new subscription for a church, canceling whatever was
// active in the same transaction.
func (s *Service) AssignPlan(ctx context.Context, req *AssignPlanRequest) (*models.TenantSubscription, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var out *models.TenantSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.assignPlanTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan_assigned", "church_id", req.ChurchID, "plan_id", out.PlanID, "subscription_id", out.ID)
	return out, nil
}

func (s *Service) loadPlan(ctx context.Context, db *gorm.DB, id, code string) (*models.SubscriptionPlan, error) {
	q := db.WithContext(ctx)
	if id != "" {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("code = ?", code)
	}
	var plan models.SubscriptionPlan
	if err := q.First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("plan", lo.Ternary(id != "", id, code))
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return &plan, nil
}

// churchForUpdate selects a church row with an exclusive row lock.
func churchForUpdate(db *gorm.DB, churchID string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", churchID)
}

// lockChurch loads a church and holds its row lock until tx ends. Every
// subscription change for a tenant takes this lock first, so concurrent
// assignments see each other's rows.
func lockChurch(ctx context.Context, tx *gorm.DB, churchID string) (*models.Church, error) {
	var church models.Church
	if err := churchForUpdate(tx.WithContext(ctx), churchID).First(&church).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("church", churchID)
		}
		return nil, fmt.Errorf("lock church: %w", err)
	}
	return &church, nil
}

func (s *Service) assignPlanTx(ctx context.Context, tx *gorm.DB, req *AssignPlanRequest) (*models.TenantSubscription, error) {
	church, err := lockChurch(ctx, tx, req.ChurchID)
	if err != nil {
		return nil, err
	}
	plan, err := s.loadPlan(ctx, tx, req.PlanID, req.PlanCode)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperr.Validation("plan %s is not active", plan.Code)
	}

	provider := lo.Ternary(req.Provider == "", types.PaymentProviderManual, req.Provider)
	status := lo.Ternary(req.Status == "", types.TenantSubscriptionStatusActive, req.Status)
	now := s.now().UTC()

	var previous []models.TenantSubscription
	if err := tx.WithContext(ctx).
		Where("church_id = ? AND status IN ?", req.ChurchID, types.ActiveSubscriptionStatuses).
		Find(&previous).Error; err != nil {
		return nil, fmt.Errorf("load active subscriptions: %w", err)
	}
	previousIDs := lo.Map(previous, func(p models.TenantSubscription, _ int) string { return p.ID })
	if len(previousIDs) > 0 {
		if err := tx.WithContext(ctx).Model(&models.TenantSubscription{}).
			Where("id IN ?", previousIDs).
			Updates(map[string]any{"status": types.TenantSubscriptionStatusCanceled, "canceled_at": now}).Error; err != nil {
			return nil, fmt.Errorf("cancel previous subscriptions: %w", err)
		}
	}

	sub := &models.TenantSubscription{
		ID:                 tool.GenerateUUIDV7(),
		ChurchID:           req.ChurchID,
		PlanID:             plan.ID,
		Status:             status,
		Provider:           provider,
		ProviderRef:        lo.EmptyableToPtr(req.ProviderRef),
		ProviderCustomerID: lo.EmptyableToPtr(req.ProviderCustomerID),
		ProviderPriceRef:   lo.EmptyableToPtr(lo.CoalesceOrEmpty(req.ProviderPriceRef, plan.PriceRef(provider))),
		CurrentPeriodStart: lo.CoalesceOrEmpty(req.PeriodStart, &now),
		CurrentPeriodEnd:   req.PeriodEnd,
	}
	if err := tx.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	sub.Plan = plan

	if err := notify.WriteAudit(ctx, tx, notify.Audit{
		ChurchID:   req.ChurchID,
		ActorID:    req.ActorID,
		Action:     "subscription.plan_assigned",
		TargetType: "tenant_subscription",
		TargetID:   sub.ID,
		Details:    map[string]any{"plan_code": plan.Code, "provider": provider, "canceled": previousIDs},
	}); err != nil {
		return nil, err
	}
	if err := s.reactivateIfPastDue(ctx, tx, church, req.ActorID); err != nil {
		return nil, err
	}
	return sub, nil
}

// reactivateIfPastDue lifts a suspension that the past-due sweep imposed.
// Suspensions for other reasons are left alone.
func (s *Service) reactivateIfPastDue(ctx context.Context, tx *gorm.DB, church *models.Church, actorID string) error {
	if church.Status != types.ChurchStatusSuspended || church.SuspendedReason == nil ||
		!strings.HasPrefix(*church.SuspendedReason, pastDueReasonPrefix) {
		return nil
	}
	res := tx.WithContext(ctx).Model(&models.Church{}).
		Where("id = ? AND status = ?", church.ID, types.ChurchStatusSuspended).
		Updates(map[string]any{"status": types.ChurchStatusActive, "suspended_reason": nil, "suspended_at": nil})
	if res.Error != nil {
		return fmt.Errorf("reactivate church: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	church.Status = types.ChurchStatusActive
	return notify.WriteAudit(ctx, tx, notify.Audit{
		ChurchID:   church.ID,
		ActorID:    actorID,
		Action:     "church.reactivated",
		TargetType: "church",
		TargetID:   church.ID,
		Details:    map[string]any{"previous_reason": *church.SuspendedReason},
	})
}

type PlanCheckoutRequest struct {
	ChurchID   string                `json:"-" validate:"required"`
	PlanCode   string                `json:"plan_code" validate:"required"`
	Provider   types.PaymentProvider `json:"provider" validate:"required,oneof=STRIPE PAYSTACK"`
	Email      string                `json:"email" validate:"required,email"`
	SuccessURL string                `json:"success_url" validate:"omitempty,url"`
	CancelURL  string                `json:"cancel_url" validate:"omitempty,url"`
}

// CreatePlanCheckout starts a platform billing checkout for a plan. The
// subscription row is created when the provider confirms payment.
func (s *Service) CreatePlanCheckout(ctx context.Context, req *PlanCheckoutRequest) (*gateway.CheckoutSession, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var church models.Church
	if err := s.db.WithContext(ctx).First(&church, "id = ?", req.ChurchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("church", req.ChurchID)
		}
		return nil, fmt.Errorf("load church: %w", err)
	}
	plan, err := s.loadPlan(ctx, s.db, "", req.PlanCode)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperr.Validation("plan %s is not active", plan.Code)
	}
	priceRef := plan.PriceRef(req.Provider)
	if priceRef == "" {
		return nil, apperr.Validation("plan %s has no %s price", plan.Code, req.Provider)
	}
	gw, err := s.registry.Platform(req.Provider)
	if err != nil {
		return nil, err
	}

	sess, err := gw.CreateRecurringCheckout(ctx, &gateway.RecurringCheckoutRequest{
		CheckoutRequest: gateway.CheckoutRequest{
			Reference:     tool.PrefixedRef("plan"),
			Amount:        plan.Price,
			Currency:      plan.Currency,
			Quantity:      1,
			Description:   plan.Name,
			CustomerEmail: req.Email,
			SuccessURL:    req.SuccessURL,
			CancelURL:     req.CancelURL,
			Correlation:   gateway.Correlation{ChurchID: church.ID, PlanID: plan.ID},
		},
		Interval: types.RecurringIntervalMonthly,
		PriceRef: priceRef,
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("plan_checkout_gateway_failed", "church_id", church.ID, "plan", plan.Code, "error", err)
		return nil, err
	}
	return sess, nil
}
