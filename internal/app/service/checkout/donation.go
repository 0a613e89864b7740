package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
	"github.com/fatflowers/offertory/pkg/validate"
)

// Gift is the designation of a donation, shared by one-off, recurring and
// manual gifts.
type Gift struct {
	ChurchID    string                `json:"church_id" validate:"required_without=ChurchSlug"`
	ChurchSlug  string                `json:"church_slug"`
	Amount      decimal.Decimal       `json:"amount" validate:"gt=0" swaggertype:"string"`
	Currency    string                `json:"currency" validate:"required,currency3"`
	Provider    types.PaymentProvider `json:"provider" validate:"required,oneof=STRIPE PAYSTACK MANUAL"`
	FundID      string                `json:"fund_id"`
	CampaignID  string                `json:"campaign_id"`
	PledgeID    string                `json:"pledge_id"`
	IsAnonymous bool                  `json:"is_anonymous"`
	Note        string                `json:"note" validate:"max=1000"`
}

type DonationRequest struct {
	Gift
	Payer      Payer  `json:"payer"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

// prepareGift runs every check that must pass before a donation row is
// written and returns the church.
func (s *Service) prepareGift(ctx context.Context, g *Gift, payer *Payer, features ...string) (*models.Church, error) {
	g.Currency = money.Normalize(g.Currency)
	church, err := s.loadChurch(ctx, s.db, g.ChurchID, g.ChurchSlug)
	if err != nil {
		return nil, err
	}
	if g.CampaignID != "" || g.PledgeID != "" {
		features = append(features, types.FeatureCampaigns)
	}
	if err := s.requireFeatures(ctx, church.ID, features...); err != nil {
		return nil, err
	}
	if err := checkOwned(ctx, s.db, &models.Fund{}, "fund", g.FundID, church.ID); err != nil {
		return nil, err
	}
	if err := checkOwned(ctx, s.db, &models.Campaign{}, "campaign", g.CampaignID, church.ID); err != nil {
		return nil, err
	}
	if err := checkOwned(ctx, s.db, &models.Pledge{}, "pledge", g.PledgeID, church.ID); err != nil {
		return nil, err
	}
	if payer != nil {
		if err := checkOwned(ctx, s.db, &models.Member{}, "member", payer.MemberID, church.ID); err != nil {
			return nil, err
		}
		if payer.Country == "" {
			payer.Country = church.Country
		}
		if g.Provider == types.PaymentProviderPaystack && payer.Email == "" {
			return nil, apperr.Validation("payer email is required for %s", g.Provider)
		}
	}
	country := lo.TernaryF(payer != nil, func() string { return payer.Country }, func() string { return church.Country })
	if err := s.checkAmount(g.Provider, g.Amount, g.Currency, country); err != nil {
		return nil, err
	}
	return church, nil
}

func newDonation(churchID string, g *Gift, payer Payer, ref string, status types.DonationStatus) *models.Donation {
	return &models.Donation{
		ID:          tool.GenerateUUIDV7(),
		ChurchID:    churchID,
		Amount:      g.Amount,
		Currency:    g.Currency,
		Status:      status,
		Provider:    g.Provider,
		ProviderRef: ref,
		FundID:      lo.EmptyableToPtr(g.FundID),
		CampaignID:  lo.EmptyableToPtr(g.CampaignID),
		PledgeID:    lo.EmptyableToPtr(g.PledgeID),
		MemberID:    lo.EmptyableToPtr(payer.MemberID),
		DonorName:   payer.Name,
		DonorEmail:  payer.Email,
		IsAnonymous: g.IsAnonymous,
		Note:        g.Note,
	}
}

// CreateDonationCheckout creates a pending donation and starts a hosted
// checkout for it.
func (s *Service) CreateDonationCheckout(ctx context.Context, req *DonationRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	gw, err := s.gatewayFor(req.Provider)
	if err != nil {
		return nil, err
	}
	church, err := s.prepareGift(ctx, &req.Gift, &req.Payer, types.FeatureOnlineGiving)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithChurch(ctx, church.ID)

	intent := newIntent(church.ID, types.PaymentPurposeDonation, req.Provider, req.Amount, req.Currency)
	donation := newDonation(church.ID, &req.Gift, req.Payer, intent.ProviderRef, types.DonationStatusPending)
	intent.DonationID = &donation.ID
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(donation).Error; err != nil {
			return fmt.Errorf("create donation: %w", err)
		}
		if err := tx.Create(intent).Error; err != nil {
			return fmt.Errorf("create payment intent: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	sess, err := s.launch(ctx, intent, func(ctx context.Context) (*gateway.CheckoutSession, error) {
		return gw.CreateCheckout(ctx, &gateway.CheckoutRequest{
			Reference:     intent.ID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Quantity:      1,
			Description:   fmt.Sprintf("Gift to %s", church.Name),
			CustomerEmail: req.Payer.Email,
			CustomerName:  req.Payer.Name,
			SuccessURL:    req.SuccessURL,
			CancelURL:     req.CancelURL,
			Correlation: gateway.Correlation{
				PaymentIntentID: intent.ID,
				ChurchID:        church.ID,
				DonationID:      donation.ID,
				Anonymous:       gateway.AnonymityFlag(donation.IsAnonymous),
				DonorName:       donation.DonorName,
				DonorEmail:      donation.DonorEmail,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result(intent, sess), nil
}

type ManualDonationRequest struct {
	Gift
	Donor      Payer      `json:"donor"`
	ReceivedAt *time.Time `json:"received_at"`
	ActorID    string     `json:"-"`
}

// RecordManualDonation records an offline gift (cash, cheque, bank transfer)
// as completed, with the same receipt and dashboard event as an online gift.
func (s *Service) RecordManualDonation(ctx context.Context, req *ManualDonationRequest) (*models.Donation, error) {
	if req.Provider == "" {
		req.Provider = types.PaymentProviderManual
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Provider != types.PaymentProviderManual {
		return nil, apperr.Validation("manual entry only accepts provider %s", types.PaymentProviderManual)
	}
	church, err := s.prepareGift(ctx, &req.Gift, &req.Donor)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithChurch(ctx, church.ID)

	completedAt := lo.FromPtrOr(req.ReceivedAt, s.now()).UTC()
	donation := newDonation(church.ID, &req.Gift, req.Donor, tool.PrefixedRef("manual"), types.DonationStatusCompleted)
	donation.CompletedAt = &completedAt

	var batch realtime.Batch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(donation).Error; err != nil {
			return fmt.Errorf("create donation: %w", err)
		}
		if _, err := notify.QueueReceipt(ctx, tx, donation); err != nil {
			return err
		}
		if err := notify.WriteAudit(ctx, tx, notify.Audit{
			ChurchID:   church.ID,
			ActorID:    req.ActorID,
			Action:     "donation.manual_recorded",
			TargetType: "donation",
			TargetID:   donation.ID,
			Details:    map[string]any{"amount": donation.Amount.StringFixed(2), "currency": donation.Currency},
		}); err != nil {
			return err
		}
		batch.Add(church.ID, realtime.EventDonationCompleted, map[string]any{
			"donation_id": donation.ID,
			"amount":      donation.Amount.StringFixed(2),
			"currency":    donation.Currency,
			"provider":    donation.Provider,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx, s.pub, s.log)
	logctx.FromCtx(ctx, s.log).Infow("manual_donation_recorded", "donation_id", donation.ID, "amount", donation.Amount.String())
	return donation, nil
}
