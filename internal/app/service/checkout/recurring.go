package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
	"github.com/fatflowers/offertory/pkg/validate"
)

type RecurringRequest struct {
	Gift
	Interval   types.RecurringInterval `json:"interval" validate:"required,oneof=WEEKLY MONTHLY QUARTERLY YEARLY"`
	Payer      Payer                   `json:"payer"`
	SuccessURL string                  `json:"success_url" validate:"omitempty,url"`
	CancelURL  string                  `json:"cancel_url" validate:"omitempty,url"`
}

// CreateRecurringCheckout sets up a recurring gift. The recurring donation
// stays PAUSED until the provider confirms the first charge.
func (s *Service) CreateRecurringCheckout(ctx context.Context, req *RecurringRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	gw, err := s.gatewayFor(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.PledgeID != "" {
		return nil, apperr.Validation("pledges are paid with one-off gifts")
	}
	church, err := s.prepareGift(ctx, &req.Gift, &req.Payer, types.FeatureOnlineGiving, types.FeatureRecurringGiving)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithChurch(ctx, church.ID)

	recurring := &models.RecurringDonation{
		ID:         tool.GenerateUUIDV7(),
		ChurchID:   church.ID,
		MemberID:   lo.EmptyableToPtr(req.Payer.MemberID),
		FundID:     lo.EmptyableToPtr(req.FundID),
		DonorName:  req.Payer.Name,
		DonorEmail: req.Payer.Email,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Interval:   req.Interval,
		Status:     types.RecurringStatusPaused,
		Provider:   req.Provider,
	}
	intent := newIntent(church.ID, types.PaymentPurposeRecurring, req.Provider, req.Amount, req.Currency)
	intent.RecurringDonationID = &recurring.ID
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recurring).Error; err != nil {
			return fmt.Errorf("create recurring donation: %w", err)
		}
		if err := tx.Create(intent).Error; err != nil {
			return fmt.Errorf("create payment intent: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	sess, err := s.launch(ctx, intent, func(ctx context.Context) (*gateway.CheckoutSession, error) {
		return gw.CreateRecurringCheckout(ctx, &gateway.RecurringCheckoutRequest{
			CheckoutRequest: gateway.CheckoutRequest{
				Reference:     intent.ID,
				Amount:        req.Amount,
				Currency:      req.Currency,
				Quantity:      1,
				Description:   fmt.Sprintf("%s gift to %s", strings.ToLower(string(req.Interval)), church.Name),
				CustomerEmail: req.Payer.Email,
				CustomerName:  req.Payer.Name,
				SuccessURL:    req.SuccessURL,
				CancelURL:     req.CancelURL,
				Correlation: gateway.Correlation{
					PaymentIntentID:     intent.ID,
					ChurchID:            church.ID,
					RecurringDonationID: recurring.ID,
				},
			},
			Interval: req.Interval,
		})
	})
	if err != nil {
		return nil, err
	}
	return result(intent, sess), nil
}
