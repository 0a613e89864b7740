package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

// ApplyRefund upserts the refund named by ev and recomputes its donation.
// Repeated deliveries of the same refund converge on one row.
func (s *Service) ApplyRefund(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.RefundUpdated, batch *realtime.Batch) (*models.Refund, error) {
	if ev.RefundRef == "" {
		return nil, apperr.Validation("refund event without a reference")
	}
	donation, err := FindDonation(ctx, tx, provider, ev.Correlation, ev.ChargeRef, ev.PaymentRef)
	if err != nil {
		return nil, err
	}
	row := &models.Refund{
		Provider:    provider,
		ProviderRef: ev.RefundRef,
		Amount:      ev.Amount,
		Currency:    money.Normalize(ev.Currency),
		Status:      lo.CoalesceOrEmpty(ev.Status, "pending"),
		Reason:      lo.EmptyableToPtr(ev.Reason),
	}
	if donation != nil {
		row.DonationID = &donation.ID
		row.ChurchID = &donation.ChurchID
		if row.Currency == "" {
			row.Currency = donation.Currency
		}
	}
	if ev.Correlation.PaymentIntentID != "" {
		row.PaymentIntentID = &ev.Correlation.PaymentIntentID
	}
	out, err := s.upsertRefund(ctx, tx, row)
	if err != nil {
		return nil, err
	}
	if out.ChurchID != nil && batch != nil {
		batch.Add(*out.ChurchID, realtime.EventRefundUpdated, map[string]any{
			"refund_id":   out.ID,
			"donation_id": lo.FromPtr(out.DonationID),
			"status":      out.Status,
			"amount":      out.Amount.StringFixed(2),
		})
	}
	if out.DonationID != nil {
		if _, err := s.Recompute(ctx, tx, *out.DonationID, batch); err != nil {
			return nil, err
		}
	} else {
		logctx.FromCtx(ctx, s.log).Warnw("refund_unlinked", "provider", provider, "provider_ref", ev.RefundRef,
			"charge_ref", ev.ChargeRef, "payment_ref", ev.PaymentRef)
	}
	return out, nil
}

// upsertRefund writes row keyed by (provider, provider_ref). Links already on
// the stored row are kept when the update carries none.
func (s *Service) upsertRefund(ctx context.Context, tx *gorm.DB, row *models.Refund) (*models.Refund, error) {
	db := tx.WithContext(ctx)
	var existing models.Refund
	err := db.Where("provider = ? AND provider_ref = ?", row.Provider, row.ProviderRef).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row.ID = tool.GenerateUUIDV7()
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return nil, fmt.Errorf("create refund: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return row, nil
		}
		err = db.Where("provider = ? AND provider_ref = ?", row.Provider, row.ProviderRef).First(&existing).Error
	}
	if err != nil {
		return nil, fmt.Errorf("load refund: %w", err)
	}

	fields := map[string]any{"status": row.Status}
	if row.Amount.IsPositive() {
		fields["amount"] = row.Amount
		existing.Amount = row.Amount
	}
	if row.Currency != "" {
		fields["currency"] = row.Currency
		existing.Currency = row.Currency
	}
	if row.Reason != nil {
		fields["reason"] = *row.Reason
		existing.Reason = row.Reason
	}
	if existing.DonationID == nil && row.DonationID != nil {
		fields["donation_id"] = *row.DonationID
		fields["church_id"] = *row.ChurchID
		existing.DonationID, existing.ChurchID = row.DonationID, row.ChurchID
	}
	if existing.PaymentIntentID == nil && row.PaymentIntentID != nil {
		fields["payment_intent_id"] = *row.PaymentIntentID
		existing.PaymentIntentID = row.PaymentIntentID
	}
	if err := db.Model(&models.Refund{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update refund: %w", err)
	}
	existing.Status = row.Status
	return &existing, nil
}

// ApplyDispute upserts the dispute named by ev, linking it to a donation by
// payment intent, then charge, then the raw payment reference.
func (s *Service) ApplyDispute(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, ev gateway.DisputeUpdated, batch *realtime.Batch) (*models.Dispute, error) {
	if ev.DisputeRef == "" {
		return nil, apperr.Validation("dispute event without a reference")
	}
	donation, err := FindDonation(ctx, tx, provider, gateway.Correlation{
		DonationID:      ev.Correlation.DonationID,
		PaymentIntentID: ev.Correlation.PaymentIntentID,
	}, ev.ChargeRef, ev.PaymentRef)
	if err != nil {
		return nil, err
	}
	db := tx.WithContext(ctx)

	var existing models.Dispute
	err = db.Where("provider = ? AND provider_ref = ?", provider, ev.DisputeRef).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = models.Dispute{
			ID:            tool.GenerateUUIDV7(),
			Provider:      provider,
			ProviderRef:   ev.DisputeRef,
			Amount:        ev.Amount,
			Currency:      money.Normalize(ev.Currency),
			Status:        lo.CoalesceOrEmpty(ev.Status, "open"),
			Reason:        lo.EmptyableToPtr(ev.Reason),
			EvidenceDueBy: ev.EvidenceDueBy,
		}
		if donation != nil {
			existing.DonationID = &donation.ID
			existing.ChurchID = &donation.ChurchID
		}
		if ev.Correlation.PaymentIntentID != "" {
			existing.PaymentIntentID = &ev.Correlation.PaymentIntentID
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&existing).Error; err != nil {
			return nil, fmt.Errorf("create dispute: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load dispute: %w", err)
	default:
		fields := map[string]any{}
		if ev.Status != "" {
			fields["status"] = ev.Status
			existing.Status = ev.Status
		}
		if ev.Amount.IsPositive() {
			fields["amount"] = ev.Amount
			existing.Amount = ev.Amount
		}
		if ev.Reason != "" {
			fields["reason"] = ev.Reason
			existing.Reason = &ev.Reason
		}
		if ev.EvidenceDueBy != nil {
			fields["evidence_due_by"] = *ev.EvidenceDueBy
			existing.EvidenceDueBy = ev.EvidenceDueBy
		}
		if existing.DonationID == nil && donation != nil {
			fields["donation_id"] = donation.ID
			fields["church_id"] = donation.ChurchID
			existing.DonationID, existing.ChurchID = &donation.ID, &donation.ChurchID
		}
		if len(fields) > 0 {
			if err := db.Model(&models.Dispute{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
				return nil, fmt.Errorf("update dispute: %w", err)
			}
		}
	}

	if existing.ChurchID != nil && batch != nil {
		batch.Add(*existing.ChurchID, realtime.EventDisputeUpdated, map[string]any{
			"dispute_id":  existing.ID,
			"donation_id": lo.FromPtr(existing.DonationID),
			"status":      existing.Status,
		})
	}
	return &existing, nil
}
