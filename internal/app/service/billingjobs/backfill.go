package billingjobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/datatypes"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

// Canonical subscription metadata keys.
const (
	metaCustomerID      = "customer_id"
	metaPriceRef        = "price_ref"
	metaSubscriptionRef = "subscription_ref"
)

// legacyAliases lists, per canonical key, the spellings older writers used.
var legacyAliases = map[string][]string{
	metaCustomerID: {
		"customerId", "customer", "stripe_customer_id", "stripeCustomerId",
		"customer_code", "customerCode", "paystack_customer_code",
	},
	metaPriceRef: {
		"price_id", "priceId", "price", "stripe_price_id", "plan_code", "planCode", "paystack_plan_code",
	},
	metaSubscriptionRef: {
		"subscription_id", "subscriptionId", "subscription", "subscription_code", "subscriptionCode",
	},
}

// scalarID reads an identifier stored either as a string or as an object
// carrying it under id or code.
func scalarID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, k := range []string{"id", "code", "customer_code", "plan_code", "subscription_code"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// normalizeMetadata folds legacy keys into the canonical ones and fills
// canonical keys from the subscription's explicit columns. Unknown keys are
// kept as they are.
func normalizeMetadata(raw map[string]any, sub *models.TenantSubscription) map[string]any {
	out := lo.Assign(map[string]any{}, raw)
	for canonical, aliases := range legacyAliases {
		value := scalarID(out[canonical])
		for _, alias := range aliases {
			if v, ok := out[alias]; ok {
				value = lo.CoalesceOrEmpty(value, scalarID(v))
				delete(out, alias)
			}
		}
		if value == "" {
			delete(out, canonical)
			continue
		}
		out[canonical] = value
	}
	fill := func(key string, col *string) {
		if _, ok := out[key]; !ok && lo.FromPtr(col) != "" {
			out[key] = *col
		}
	}
	fill(metaCustomerID, sub.ProviderCustomerID)
	fill(metaPriceRef, sub.ProviderPriceRef)
	fill(metaSubscriptionRef, sub.ProviderRef)
	return out
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// BackfillMetadata normalizes each subscription's metadata blob and copies
// identifiers it holds into the explicit columns. With billing.backfill_fetch
// set, identifiers still missing are fetched from the provider. Rows whose
// normalized form matches what is stored are skipped.
func (s *Service) BackfillMetadata(ctx context.Context) (*types.JobSummary, error) {
	sum := types.NewJobSummary(types.JobMetadataBackfill, s.now().UTC())

	var subs []models.TenantSubscription
	if err := s.db.WithContext(ctx).Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	for _, sub := range subs {
		sum.Visited++
		changed, err := s.backfillOne(ctx, &sub)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("metadata_backfill_failed", "subscription_id", sub.ID, "error", err)
			sum.Fail(sub.ID, err)
			continue
		}
		if changed {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}
	return s.finish(ctx, sum), nil
}

func (s *Service) backfillOne(ctx context.Context, sub *models.TenantSubscription) (bool, error) {
	raw := map[string]any{}
	if len(sub.Metadata) > 0 && !bytes.Equal(sub.Metadata, []byte("null")) {
		if err := json.Unmarshal(sub.Metadata, &raw); err != nil {
			return false, fmt.Errorf("decode metadata: %w", err)
		}
	}
	meta := normalizeMetadata(raw, sub)

	if s.cfg.Billing.BackfillFetch && sub.Provider.IsGateway() && lo.FromPtr(sub.ProviderRef) != "" &&
		(metaString(meta, metaCustomerID) == "" || metaString(meta, metaPriceRef) == "") {
		gw, err := s.registry.Platform(sub.Provider)
		if err != nil {
			return false, err
		}
		snap, err := gw.FetchSubscription(ctx, *sub.ProviderRef)
		if err != nil {
			return false, err
		}
		if snap.CustomerID != "" && metaString(meta, metaCustomerID) == "" {
			meta[metaCustomerID] = snap.CustomerID
		}
		if snap.PriceRef != "" && metaString(meta, metaPriceRef) == "" {
			meta[metaPriceRef] = snap.PriceRef
		}
	}

	fields := map[string]any{}
	setCol := func(col string, current *string, key string) {
		if v := metaString(meta, key); v != "" && lo.FromPtr(current) == "" {
			fields[col] = v
		}
	}
	setCol("provider_customer_id", sub.ProviderCustomerID, metaCustomerID)
	setCol("provider_price_ref", sub.ProviderPriceRef, metaPriceRef)
	setCol("provider_ref", sub.ProviderRef, metaSubscriptionRef)

	before, err := json.Marshal(raw)
	if err != nil {
		return false, err
	}
	after, err := json.Marshal(meta)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(before, after) {
		fields["metadata"] = datatypes.JSON(after)
	}
	if len(fields) == 0 {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).Where("id = ?", sub.ID).Updates(fields).Error; err != nil {
		return false, fmt.Errorf("update subscription: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("metadata_backfilled", "subscription_id", sub.ID, "fields", lo.Keys(fields))
	return true, nil
}
