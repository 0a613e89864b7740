// Package checkout starts hosted checkouts for donations, recurring gifts and
// event tickets. A local payment intent always exists before the gateway is
// called, and is failed if the gateway call does not succeed.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/metrics"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *config.Config
	registry *gateway.Registry
	subs     *subscription.Service
	pub      realtime.Publisher
	now      func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, registry *gateway.Registry,
	subs *subscription.Service, pub realtime.Publisher) *Service {
	return &Service{db: db, log: log, cfg: cfg, registry: registry, subs: subs, pub: pub, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

// Result is returned by every checkout operation.
type Result struct {
	CheckoutURL         string                `json:"checkout_url,omitempty"`
	PaymentIntentID     string                `json:"payment_intent_id,omitempty"`
	DonationID          string                `json:"donation_id,omitempty"`
	TicketOrderID       string                `json:"ticket_order_id,omitempty"`
	RecurringDonationID string                `json:"recurring_donation_id,omitempty"`
	Provider            types.PaymentProvider `json:"provider"`
	ProviderRef         string                `json:"provider_ref"`
}

// Payer is the person paying, shared by every checkout request.
type Payer struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	MemberID string `json:"member_id"`
	// Country is the payer's ISO country, used for provider allowlists.
	// Defaults to the church's country.
	Country string `json:"country" validate:"omitempty,len=2"`
}

func (s *Service) loadChurch(ctx context.Context, db *gorm.DB, id, slug string) (*models.Church, error) {
	q := db.WithContext(ctx)
	if id != "" {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("slug = ?", slug)
	}
	var church models.Church
	if err := q.First(&church).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("church", lo.CoalesceOrEmpty(id, slug))
		}
		return nil, fmt.Errorf("load church: %w", err)
	}
	if church.Status != types.ChurchStatusActive {
		return nil, apperr.Validation("church %s is suspended", church.Slug)
	}
	return &church, nil
}

func (s *Service) requireFeatures(ctx context.Context, churchID string, keys ...string) error {
	for _, key := range keys {
		if err := s.subs.EnsureFeatureEnabled(ctx, churchID, key); err != nil {
			return err
		}
	}
	return nil
}

// checkOwned returns NotFound unless the row of model with id belongs to churchID.
func checkOwned(ctx context.Context, db *gorm.DB, model any, kind, id, churchID string) error {
	if id == "" {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ? AND church_id = ?", id, churchID).Count(&n).Error; err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	if n == 0 {
		return apperr.NotFound(kind, id)
	}
	return nil
}

func (s *Service) gatewayFor(provider types.PaymentProvider) (gateway.Gateway, error) {
	if !provider.IsGateway() {
		return nil, apperr.Validation("provider %s cannot start a checkout; record the gift directly", provider)
	}
	return s.registry.Giving(provider)
}

// checkAmount validates amount against the currency's precision and the
// provider's currency rules.
func (s *Service) checkAmount(provider types.PaymentProvider, amount decimal.Decimal, currency, country string) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if money.IsZeroDecimal(currency) && !amount.IsInteger() {
		return apperr.Validation("%s amounts must be whole numbers", currency)
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Validation("amount has more than two decimal places")
	}
	if provider != types.PaymentProviderPaystack {
		return nil
	}
	countries, ok := s.cfg.Paystack.PaystackCurrency(currency)
	if !ok {
		return apperr.Validation("currency %s is not supported by %s", currency, provider)
	}
	country = strings.ToUpper(country)
	if len(countries) > 0 && country != "" && !lo.ContainsBy(countries, func(c string) bool { return strings.EqualFold(c, country) }) {
		return apperr.Validation("currency %s is not available to payers in %s", currency, country)
	}
	if minimum, ok := s.cfg.Paystack.PaystackMinimum(currency); ok && amount.LessThan(minimum) {
		return apperr.Validation("minimum %s amount is %s", currency, minimum.String())
	}
	return nil
}

func newIntent(churchID string, purpose types.PaymentPurpose, provider types.PaymentProvider, amount decimal.Decimal, currency string) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:          tool.GenerateUUIDV7(),
		ChurchID:    churchID,
		Purpose:     purpose,
		Amount:      amount,
		Currency:    currency,
		Provider:    provider,
		ProviderRef: tool.PrefixedRef("pending"),
		Status:      types.PaymentIntentStatusRequiresAction,
	}
}

// launch calls the gateway for a prepared intent and records the session. Any
// error after the intent exists fails it along with its linked records.
func (s *Service) launch(ctx context.Context, intent *models.PaymentIntent,
	call func(ctx context.Context) (*gateway.CheckoutSession, error)) (sess *gateway.CheckoutSession, err error) {
	log := logctx.FromCtx(ctx, s.log)
	defer func() {
		if err == nil {
			metrics.ObserveCheckout(string(intent.Purpose), string(intent.Provider), metrics.OutcomeOK)
			return
		}
		metrics.ObserveCheckout(string(intent.Purpose), string(intent.Provider), metrics.OutcomeGatewayError)
		log.Warnw("checkout_gateway_failed", "payment_intent_id", intent.ID, "provider", intent.Provider, "error", err)
		s.abandon(context.WithoutCancel(ctx), intent, err)
	}()

	callCtx := ctx
	if t := s.cfg.Gateway.Timeout; t > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	sess, err = call(callCtx)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.ProviderRef == "" {
		return nil, apperr.Gateway(string(intent.Provider), errors.New("checkout returned no reference"))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{
			"status":       types.PaymentIntentStatusProcessing,
			"provider_ref": sess.ProviderRef,
			"checkout_url": sess.CheckoutURL,
		}
		if sess.ProviderCustomerID != "" {
			fields["provider_customer_id"] = sess.ProviderCustomerID
		}
		res := tx.Model(&models.PaymentIntent{}).
			Where("id = ? AND status = ?", intent.ID, types.PaymentIntentStatusRequiresAction).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("record checkout session: %w", res.Error)
		}
		if intent.DonationID != nil {
			if err := tx.Model(&models.Donation{}).Where("id = ?", *intent.DonationID).
				Update("provider_ref", sess.ProviderRef).Error; err != nil {
				return fmt.Errorf("record donation reference: %w", err)
			}
		}
		if intent.RecurringDonationID != nil {
			rfields := map[string]any{}
			if sess.ProviderPlanRef != "" {
				rfields["provider_plan_ref"] = sess.ProviderPlanRef
			}
			if sess.ProviderCustomerID != "" {
				rfields["provider_customer_id"] = sess.ProviderCustomerID
			}
			if len(rfields) > 0 {
				if err := tx.Model(&models.RecurringDonation{}).Where("id = ?", *intent.RecurringDonationID).
					Updates(rfields).Error; err != nil {
					return fmt.Errorf("record recurring plan: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	intent.Status = types.PaymentIntentStatusProcessing
	intent.ProviderRef = sess.ProviderRef
	intent.CheckoutURL = lo.EmptyableToPtr(sess.CheckoutURL)
	log.Infow("checkout_started", "payment_intent_id", intent.ID, "provider", intent.Provider,
		"purpose", intent.Purpose, "provider_ref", sess.ProviderRef)
	return sess, nil
}

// abandon fails an intent whose checkout never started, cascading to the
// records created for it. Rows already moved on by a webhook are left alone.
func (s *Service) abandon(ctx context.Context, intent *models.PaymentIntent, cause error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PaymentIntent{}).
			Where("id = ? AND status IN ?", intent.ID,
				[]types.PaymentIntentStatus{types.PaymentIntentStatusRequiresAction, types.PaymentIntentStatusProcessing}).
			Updates(map[string]any{"status": types.PaymentIntentStatusFailed, "failure_reason": cause.Error()}).Error; err != nil {
			return err
		}
		if intent.DonationID != nil {
			if err := tx.Model(&models.Donation{}).
				Where("id = ? AND status = ?", *intent.DonationID, types.DonationStatusPending).
				Update("status", types.DonationStatusFailed).Error; err != nil {
				return err
			}
		}
		if intent.TicketOrderID != nil {
			if err := tx.Model(&models.EventTicketOrder{}).
				Where("id = ? AND status = ?", *intent.TicketOrderID, types.TicketOrderStatusPending).
				Update("status", types.TicketOrderStatusCanceled).Error; err != nil {
				return err
			}
		}
		if intent.RecurringDonationID != nil {
			if err := tx.Model(&models.RecurringDonation{}).
				Where("id = ? AND status = ?", *intent.RecurringDonationID, types.RecurringStatusPaused).
				Updates(map[string]any{"status": types.RecurringStatusCanceled, "canceled_at": s.now().UTC()}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("checkout_abandon_failed", "payment_intent_id", intent.ID, "error", err)
		return
	}
	intent.Status = types.PaymentIntentStatusFailed
}

func result(intent *models.PaymentIntent, sess *gateway.CheckoutSession) *Result {
	return &Result{
		CheckoutURL:         sess.CheckoutURL,
		PaymentIntentID:     intent.ID,
		DonationID:          lo.FromPtr(intent.DonationID),
		TicketOrderID:       lo.FromPtr(intent.TicketOrderID),
		RecurringDonationID: lo.FromPtr(intent.RecurringDonationID),
		Provider:            intent.Provider,
		ProviderRef:         sess.ProviderRef,
	}
}
