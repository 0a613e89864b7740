package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/types"
)

// PlanSource says how a church's effective plan was chosen.
type PlanSource string

const (
	PlanSourceSubscribed PlanSource = "SUBSCRIBED"
	PlanSourceDefault    PlanSource = "DEFAULT"
	// PlanSourceInactive: the church has billing history but nothing live.
	// It never falls back to the default plan.
	PlanSourceInactive PlanSource = "INACTIVE"
	PlanSourceNone     PlanSource = "NONE"
)

const InactivePlanCode = "inactive"

type PlanResolution struct {
	Source       PlanSource
	Plan         *models.SubscriptionPlan
	Subscription *models.TenantSubscription
}

type Entitlement struct {
	Enabled  bool   `json:"enabled"`
	Limit    *int64 `json:"limit"`
	PlanCode string `json:"plan_code"`
}

type Entitlements struct {
	ChurchID string                 `json:"church_id"`
	Source   PlanSource             `json:"source"`
	PlanCode string                 `json:"plan_code,omitempty"`
	Features map[string]Entitlement `json:"features"`
}

func (s *Service) ResolveTenantPlan(ctx context.Context, churchID string) (*PlanResolution, error) {
	return s.resolveTenantPlan(ctx, s.db, churchID)
}

func (s *Service) resolveTenantPlan(ctx context.Context, db *gorm.DB, churchID string) (*PlanResolution, error) {
	var sub models.TenantSubscription
	err := db.WithContext(ctx).
		Preload("Plan.Features").
		Where("church_id = ? AND status IN ?", churchID, types.ActiveSubscriptionStatuses).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	switch {
	case err == nil:
		return &PlanResolution{Source: PlanSourceSubscribed, Plan: sub.Plan, Subscription: &sub}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load active subscription: %w", err)
	}

	var history int64
	if err := db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Where("church_id = ?", churchID).Count(&history).Error; err != nil {
		return nil, fmt.Errorf("count subscription history: %w", err)
	}
	if history > 0 {
		return &PlanResolution{Source: PlanSourceInactive}, nil
	}

	var plan models.SubscriptionPlan
	err = db.WithContext(ctx).Preload("Features").
		Where("is_default = ? AND active = ?", true, true).
		Order("created_at").
		First(&plan).Error
	switch {
	case err == nil:
		return &PlanResolution{Source: PlanSourceDefault, Plan: &plan}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &PlanResolution{Source: PlanSourceNone}, nil
	default:
		return nil, fmt.Errorf("load default plan: %w", err)
	}
}

func (s *Service) ResolveTenantEntitlements(ctx context.Context, churchID string) (*Entitlements, error) {
	res, err := s.resolveTenantPlan(ctx, s.db, churchID)
	if err != nil {
		return nil, err
	}
	out := &Entitlements{ChurchID: churchID, Source: res.Source, Features: map[string]Entitlement{}}

	switch res.Source {
	case PlanSourceInactive:
		keys, err := s.knownFeatureKeys(ctx)
		if err != nil {
			return nil, err
		}
		out.PlanCode = InactivePlanCode
		for _, k := range keys {
			out.Features[k] = Entitlement{Enabled: false, Limit: lo.ToPtr[int64](0), PlanCode: InactivePlanCode}
		}
	case PlanSourceSubscribed, PlanSourceDefault:
		if res.Plan == nil {
			return nil, fmt.Errorf("subscription %s references a missing plan", res.Subscription.ID)
		}
		out.PlanCode = res.Plan.Code
		for _, f := range res.Plan.Features {
			out.Features[f.Key] = Entitlement{Enabled: f.Enabled, Limit: f.Limit, PlanCode: res.Plan.Code}
		}
	}
	return out, nil
}

// EnsureFeatureEnabled passes when the key is not gated by the plan and
// rejects when it is present but disabled.
func (s *Service) EnsureFeatureEnabled(ctx context.Context, churchID, key string) error {
	ents, err := s.ResolveTenantEntitlements(ctx, churchID)
	if err != nil {
		return err
	}
	ent, ok := ents.Features[key]
	if !ok {
		return nil
	}
	if !ent.Enabled {
		return &apperr.FeatureError{Key: key}
	}
	return nil
}

// EnsureFeatureLimit rejects when current+increment would exceed the plan
// limit. Ungated keys and unlimited features pass.
func (s *Service) EnsureFeatureLimit(ctx context.Context, churchID, key string, current, increment int64) error {
	ents, err := s.ResolveTenantEntitlements(ctx, churchID)
	if err != nil {
		return err
	}
	return checkLimit(ents, key, current, increment)
}

func checkLimit(ents *Entitlements, key string, current, increment int64) error {
	ent, ok := ents.Features[key]
	if !ok {
		return nil
	}
	if !ent.Enabled {
		return &apperr.FeatureError{Key: key}
	}
	if ent.Limit != nil && current+increment > *ent.Limit {
		return &apperr.LimitError{Key: key, Limit: *ent.Limit, Current: current}
	}
	return nil
}

// builtinFeatureKeys are always known so a tenant is locked out of them even
// before any plan row mentions them.
var builtinFeatureKeys = []string{
	types.FeatureOnlineGiving, types.FeatureRecurringGiving, types.FeatureTicketing, types.FeatureCampaigns,
	types.FeatureMembers, types.FeatureStaff, types.FeatureFunds, types.FeatureEvents,
}

func (s *Service) knownFeatureKeys(ctx context.Context) ([]string, error) {
	if keys, ok := s.featureKeys.Get(featureKeysCacheKey); ok {
		return keys, nil
	}
	// the flight is shared, so one caller going away must not fail the rest
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(featureKeysCacheKey, func() (any, error) {
		var stored []string
		if err := s.db.WithContext(loadCtx).Model(&models.SubscriptionPlanFeature{}).
			Distinct("feature_key").Pluck("feature_key", &stored).Error; err != nil {
			return nil, fmt.Errorf("load feature keys: %w", err)
		}
		keys := lo.Uniq(append(append(append([]string{}, builtinFeatureKeys...), s.cfg.Billing.MonitoredLimitKeys...), stored...))
		sort.Strings(keys)
		s.featureKeys.Add(featureKeysCacheKey, keys)
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
