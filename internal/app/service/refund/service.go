// Package refund tracks refunds and disputes by provider reference and keeps
// the parent donation's refunded state in step with them.
package refund

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
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/types"
)

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *config.Config
	registry *gateway.Registry
	pub      realtime.Publisher
	now      func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, registry *gateway.Registry, pub realtime.Publisher) *Service {
	return &Service{db: db, log: log, cfg: cfg, registry: registry, pub: pub, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

// countsTowardTotal reports whether a refund in status may still move money.
func countsTowardTotal(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "canceled", "cancelled", "rejected", "reversed":
		return false
	}
	return true
}

// FindDonation resolves the donation a provider object refers to: by
// correlated donation id, then correlated payment intent, then each ref in
// order against donation and intent references.
func FindDonation(ctx context.Context, tx *gorm.DB, provider types.PaymentProvider, corr gateway.Correlation, refs ...string) (*models.Donation, error) {
	db := tx.WithContext(ctx)
	byID := func(id string) (*models.Donation, error) {
		var d models.Donation
		err := db.First(&d, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load donation: %w", err)
		}
		return &d, nil
	}
	if corr.DonationID != "" {
		if d, err := byID(corr.DonationID); d != nil || err != nil {
			return d, err
		}
	}
	if corr.PaymentIntentID != "" {
		var intent models.PaymentIntent
		err := db.First(&intent, "id = ?", corr.PaymentIntentID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load payment intent: %w", err)
		}
		if err == nil && intent.DonationID != nil {
			if d, err := byID(*intent.DonationID); d != nil || err != nil {
				return d, err
			}
		}
	}
	for _, ref := range lo.Compact(refs) {
		var d models.Donation
		err := db.Where("provider = ? AND (provider_ref = ? OR provider_charge_ref = ?)", provider, ref, ref).
			Order("created_at").First(&d).Error
		if err == nil {
			return &d, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find donation by %s: %w", ref, err)
		}
		var intent models.PaymentIntent
		err = db.Where("provider = ? AND (provider_ref = ? OR provider_charge_ref = ?) AND donation_id IS NOT NULL", provider, ref, ref).
			First(&intent).Error
		if err == nil {
			return byID(*intent.DonationID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find payment intent by %s: %w", ref, err)
		}
	}
	return nil, nil
}

// refundedTotal sums the refunds of a donation that can still move money.
func refundedTotal(ctx context.Context, tx *gorm.DB, donationID string) (decimal.Decimal, error) {
	var rows []models.Refund
	if err := tx.WithContext(ctx).Select("amount", "status").
		Where("donation_id = ?", donationID).Find(&rows).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load refunds: %w", err)
	}
	total := decimal.Zero
	for _, r := range rows {
		if countsTowardTotal(r.Status) {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

// Recompute marks the donation REFUNDED once its refunds cover the full
// amount. It never moves a donation out of REFUNDED.
func (s *Service) Recompute(ctx context.Context, tx *gorm.DB, donationID string, batch *realtime.Batch) (bool, error) {
	var d models.Donation
	if err := tx.WithContext(ctx).First(&d, "id = ?", donationID).Error; err != nil {
		return false, fmt.Errorf("load donation: %w", err)
	}
	if d.Status == types.DonationStatusRefunded {
		return false, nil
	}
	total, err := refundedTotal(ctx, tx, d.ID)
	if err != nil {
		return false, err
	}
	if total.LessThan(d.Amount) {
		return false, nil
	}
	res := tx.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ? AND status <> ?", d.ID, types.DonationStatusRefunded).
		Updates(map[string]any{"status": types.DonationStatusRefunded, "refunded_at": s.now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("mark donation refunded: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if batch != nil {
		batch.Add(d.ChurchID, realtime.EventDonationRefunded, map[string]any{
			"donation_id": d.ID,
			"refunded":    total.StringFixed(2),
			"currency":    d.Currency,
		})
	}
	return true, nil
}
