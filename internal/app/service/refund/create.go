package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
	"github.com/fatflowers/offertory/pkg/validate"
)

type CreateRequest struct {
	DonationID string `json:"donation_id" validate:"required"`
	// Amount defaults to the part of the donation not yet refunded.
	Amount  *decimal.Decimal `json:"amount" swaggertype:"string"`
	Reason  string           `json:"reason" validate:"max=500"`
	ActorID string           `json:"-"`
}

// CreateRefund refunds all or part of a completed donation. Gateway
// donations are refunded at the provider first; manual donations get a local
// reference.
func (s *Service) CreateRefund(ctx context.Context, req *CreateRequest) (*models.Refund, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var donation models.Donation
	if err := s.db.WithContext(ctx).First(&donation, "id = ?", req.DonationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("donation", req.DonationID)
		}
		return nil, fmt.Errorf("load donation: %w", err)
	}
	ctx = logctx.WithChurch(ctx, donation.ChurchID)
	remaining, err := refundable(ctx, s.db, &donation)
	if err != nil {
		return nil, err
	}
	amount := lo.FromPtrOr(req.Amount, remaining)
	if err := checkRefundAmount(amount, remaining); err != nil {
		return nil, err
	}

	row := &models.Refund{
		ChurchID:   &donation.ChurchID,
		DonationID: &donation.ID,
		Provider:   donation.Provider,
		Amount:     amount,
		Currency:   donation.Currency,
		Reason:     lo.EmptyableToPtr(req.Reason),
	}
	var paymentRef string
	if donation.Provider.IsGateway() {
		paymentRef, err = s.refundAtGateway(ctx, &donation, row, req.Reason)
		if err != nil {
			return nil, err
		}
	} else {
		row.ProviderRef = tool.PrefixedRef("manual_refund")
		row.Status = "succeeded"
	}

	var batch realtime.Batch
	var out *models.Refund
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockDonation(ctx, tx, donation.ID)
		if err != nil {
			return err
		}
		// A gateway refund has already moved money and the provider enforces
		// its own ceiling, so only local refunds are re-checked under the lock.
		if !donation.Provider.IsGateway() {
			left, err := refundable(ctx, tx, locked)
			if err != nil {
				return err
			}
			if err := checkRefundAmount(amount, left); err != nil {
				return err
			}
		}
		if out, err = s.upsertRefund(ctx, tx, row); err != nil {
			return err
		}
		if paymentRef != "" && donation.ProviderChargeRef == nil {
			if err := tx.Model(&models.Donation{}).Where("id = ? AND provider_charge_ref IS NULL", donation.ID).
				Update("provider_charge_ref", paymentRef).Error; err != nil {
				return fmt.Errorf("record charge reference: %w", err)
			}
		}
		if err := notify.WriteAudit(ctx, tx, notify.Audit{
			ChurchID:   donation.ChurchID,
			ActorID:    req.ActorID,
			Action:     "refund.created",
			TargetType: "donation",
			TargetID:   donation.ID,
			Details: map[string]any{
				"refund_id":    out.ID,
				"provider_ref": out.ProviderRef,
				"amount":       amount.StringFixed(2),
				"status":       out.Status,
			},
		}); err != nil {
			return err
		}
		batch.Add(donation.ChurchID, realtime.EventRefundUpdated, map[string]any{
			"refund_id":   out.ID,
			"donation_id": donation.ID,
			"status":      out.Status,
			"amount":      amount.StringFixed(2),
		})
		_, err = s.Recompute(ctx, tx, donation.ID, &batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx, s.pub, s.log)
	logctx.FromCtx(ctx, s.log).Infow("refund_created", "donation_id", donation.ID, "refund_id", out.ID,
		"provider", out.Provider, "amount", amount.String())
	return out, nil
}

// donationForUpdate selects a donation row with an exclusive row lock.
func donationForUpdate(db *gorm.DB, donationID string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", donationID)
}

// lockDonation reloads a donation and holds its row lock until tx ends.
func lockDonation(ctx context.Context, tx *gorm.DB, donationID string) (*models.Donation, error) {
	var d models.Donation
	if err := donationForUpdate(tx.WithContext(ctx), donationID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("donation", donationID)
		}
		return nil, fmt.Errorf("lock donation: %w", err)
	}
	return &d, nil
}

// refundable is what is left to refund on a completed donation.
func refundable(ctx context.Context, db *gorm.DB, d *models.Donation) (decimal.Decimal, error) {
	if d.Status != types.DonationStatusCompleted {
		return decimal.Zero, apperr.Validation("donation is %s, only completed donations can be refunded", d.Status)
	}
	refunded, err := refundedTotal(ctx, db, d.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Amount.Sub(refunded), nil
}

func checkRefundAmount(amount, remaining decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("refund amount must be greater than zero")
	}
	if amount.GreaterThan(remaining) {
		return apperr.Validation("refund of %s exceeds the %s left on the donation", amount.StringFixed(2), remaining.StringFixed(2))
	}
	return nil
}

// refundAtGateway issues the provider refund and fills row from the result.
// It returns the payment reference the refund was issued against.
func (s *Service) refundAtGateway(ctx context.Context, donation *models.Donation, row *models.Refund, reason string) (string, error) {
	gw, err := s.registry.Giving(donation.Provider)
	if err != nil {
		return "", err
	}
	callCtx := ctx
	if t := s.cfg.Gateway.Timeout; t > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	paymentRef := lo.FromPtr(donation.ProviderChargeRef)
	if paymentRef == "" {
		if paymentRef, err = gw.ResolvePaymentReference(callCtx, donation.ProviderRef); err != nil {
			return "", err
		}
	}
	res, err := gw.CreateRefund(callCtx, &gateway.RefundRequest{
		PaymentRef:  paymentRef,
		Amount:      row.Amount,
		Currency:    row.Currency,
		Reason:      reason,
		Correlation: gateway.Correlation{ChurchID: donation.ChurchID, DonationID: donation.ID},
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("refund_gateway_failed", "donation_id", donation.ID, "error", err)
		return "", err
	}
	if res.ProviderRef == "" {
		return "", apperr.Gateway(string(donation.Provider), errors.New("refund returned no reference"))
	}
	row.ProviderRef = res.ProviderRef
	row.Status = lo.CoalesceOrEmpty(res.Status, "pending")
	if res.Amount.IsPositive() {
		row.Amount = res.Amount
	}
	return paymentRef, nil
}
