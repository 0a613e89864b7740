package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/testutil"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/types"
)

func newTestService(t *testing.T, gws ...gateway.Gateway) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{Billing: config.BillingConfig{MonitoredLimitKeys: []string{"sms_credits"}}}
	return NewService(db, zap.NewNop().Sugar(), cfg, testutil.Registry(gws...)), db
}

func TestResolveTenantEntitlements_DefaultPlan(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	testutil.Plan(t, db, "free", true, testutil.Feature{Key: types.FeatureOnlineGiving, Enabled: true})

	ents, err := s.ResolveTenantEntitlements(ctx, church.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanSourceDefault, ents.Source)
	assert.Equal(t, "free", ents.PlanCode)
	assert.True(t, ents.Features[types.FeatureOnlineGiving].Enabled)
	require.NoError(t, s.EnsureFeatureEnabled(ctx, church.ID, types.FeatureOnlineGiving))
}

func TestResolveTenantEntitlements_NoPlanAtAll(t *testing.T) {
	s, db := newTestService(t)
	church := testutil.Church(t, db, "grace")

	ents, err := s.ResolveTenantEntitlements(context.Background(), church.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanSourceNone, ents.Source)
	assert.Empty(t, ents.Features)
	// nothing is gated without a plan
	require.NoError(t, s.EnsureFeatureEnabled(context.Background(), church.ID, types.FeatureTicketing))
}

func TestResolveTenantEntitlements_FailsClosedAfterCancellation(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	testutil.Plan(t, db, "free", true, testutil.AllFeatures()...)
	pro := testutil.Plan(t, db, "pro", false, testutil.AllFeatures()...)
	testutil.Subscription(t, db, church.ID, pro.ID, types.TenantSubscriptionStatusCanceled)

	ents, err := s.ResolveTenantEntitlements(ctx, church.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanSourceInactive, ents.Source)
	assert.Equal(t, InactivePlanCode, ents.PlanCode)
	for _, key := range append(builtinFeatureKeys, "sms_credits") {
		ent, ok := ents.Features[key]
		require.True(t, ok, key)
		assert.False(t, ent.Enabled, key)
		require.NotNil(t, ent.Limit)
		assert.EqualValues(t, 0, *ent.Limit)
	}

	err = s.EnsureFeatureEnabled(ctx, church.ID, types.FeatureOnlineGiving)
	require.ErrorIs(t, err, apperr.ErrFeatureDisabled)
	err = s.EnsureFeatureLimit(ctx, church.ID, types.FeatureMembers, 0, 1)
	require.ErrorIs(t, err, apperr.ErrFeatureDisabled)
}

func TestKnownFeatureKeys_IgnoresCallerCancellation(t *testing.T) {
	s, db := newTestService(t)
	testutil.Plan(t, db, "pro", false, testutil.Feature{Key: "livestream", Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	keys, err := s.knownFeatureKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "livestream")
	assert.Contains(t, keys, "sms_credits")
}

func TestEnsureFeatureLimit(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	plan := testutil.Plan(t, db, "starter", false,
		testutil.Feature{Key: types.FeatureMembers, Enabled: true, Limit: lo.ToPtr[int64](10)},
		testutil.Feature{Key: types.FeatureTicketing, Enabled: false},
		testutil.Feature{Key: types.FeatureFunds, Enabled: true},
	)
	testutil.Subscription(t, db, church.ID, plan.ID, types.TenantSubscriptionStatusActive)

	require.NoError(t, s.EnsureFeatureLimit(ctx, church.ID, types.FeatureMembers, 9, 1))

	err := s.EnsureFeatureLimit(ctx, church.ID, types.FeatureMembers, 10, 1)
	var limitErr *apperr.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.EqualValues(t, 10, limitErr.Limit)
	assert.EqualValues(t, 10, limitErr.Current)

	require.NoError(t, s.EnsureFeatureLimit(ctx, church.ID, types.FeatureFunds, 1000, 1))
	require.NoError(t, s.EnsureFeatureLimit(ctx, church.ID, "unknown_feature", 5, 1))

	var featureErr *apperr.FeatureError
	require.ErrorAs(t, s.EnsureFeatureEnabled(ctx, church.ID, types.FeatureTicketing), &featureErr)
	assert.Equal(t, types.FeatureTicketing, featureErr.Key)
}

func TestAssignPlan_CancelsPreviousAndReactivatesPastDueChurch(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	require.NoError(t, db.Model(church).Updates(map[string]any{
		"status":           types.ChurchStatusSuspended,
		"suspended_reason": PastDueSuspendReason(14),
		"suspended_at":     time.Now().UTC(),
	}).Error)
	basic := testutil.Plan(t, db, "basic", false)
	testutil.Plan(t, db, "pro", false, testutil.AllFeatures()...)
	old := testutil.Subscription(t, db, church.ID, basic.ID, types.TenantSubscriptionStatusPastDue)

	sub, err := s.AssignPlan(ctx, &AssignPlanRequest{ChurchID: church.ID, PlanCode: "pro", ActorID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, types.TenantSubscriptionStatusActive, sub.Status)
	assert.Equal(t, types.PaymentProviderManual, sub.Provider)

	var reloaded models.TenantSubscription
	require.NoError(t, db.First(&reloaded, "id = ?", old.ID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusCanceled, reloaded.Status)
	assert.NotNil(t, reloaded.CanceledAt)

	var active int64
	require.NoError(t, db.Model(&models.TenantSubscription{}).
		Where("church_id = ? AND status IN ?", church.ID, types.ActiveSubscriptionStatuses).Count(&active).Error)
	assert.EqualValues(t, 1, active)

	var after models.Church
	require.NoError(t, db.First(&after, "id = ?", church.ID).Error)
	assert.Equal(t, types.ChurchStatusActive, after.Status)
	assert.Nil(t, after.SuspendedReason)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "church.reactivated").Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestAssignPlan_LocksChurchRow(t *testing.T) {
	sql := testutil.PostgresSQL(t, func(tx *gorm.DB) *gorm.DB {
		return churchForUpdate(tx, "church-1").First(&models.Church{})
	})
	assert.Contains(t, sql, "id = 'church-1'")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestAssignPlan_ConcurrentAssignmentsLeaveOneLive(t *testing.T) {
	s, db := newTestService(t)
	church := testutil.Church(t, db, "grace")
	testutil.Plan(t, db, "pro", false, testutil.AllFeatures()...)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.AssignPlan(context.Background(), &AssignPlanRequest{ChurchID: church.ID, PlanCode: "pro"})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var active int64
	require.NoError(t, db.Model(&models.TenantSubscription{}).
		Where("church_id = ? AND status IN ?", church.ID, types.ActiveSubscriptionStatuses).Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestAssignPlan_KeepsOtherSuspensions(t *testing.T) {
	s, db := newTestService(t)
	church := testutil.Church(t, db, "grace")
	require.NoError(t, db.Model(church).Updates(map[string]any{
		"status":           types.ChurchStatusSuspended,
		"suspended_reason": "terms_violation",
	}).Error)
	testutil.Plan(t, db, "pro", false)

	_, err := s.AssignPlan(context.Background(), &AssignPlanRequest{ChurchID: church.ID, PlanCode: "pro"})
	require.NoError(t, err)

	var after models.Church
	require.NoError(t, db.First(&after, "id = ?", church.ID).Error)
	assert.Equal(t, types.ChurchStatusSuspended, after.Status)
}

func TestAssignPlan_Errors(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	retired := testutil.Plan(t, db, "retired", false)
	require.NoError(t, db.Model(retired).Update("active", false).Error)

	_, err := s.AssignPlan(ctx, &AssignPlanRequest{ChurchID: church.ID})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.AssignPlan(ctx, &AssignPlanRequest{ChurchID: church.ID, PlanCode: "missing"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.AssignPlan(ctx, &AssignPlanRequest{ChurchID: church.ID, PlanCode: "retired"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.AssignPlan(ctx, &AssignPlanRequest{ChurchID: "nope", PlanCode: "retired"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func applyPlatform(t *testing.T, s *Service, db *gorm.DB, provider types.PaymentProvider, events ...gateway.Event) *PlatformResult {
	t.Helper()
	var res *PlatformResult
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.ApplyPlatformEvents(context.Background(), tx, provider, events)
		return err
	}))
	return res
}

func TestApplyPlatformEvents_StripeLifecycle(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	plan := testutil.Plan(t, db, "pro", false, testutil.AllFeatures()...)
	corr := gateway.Correlation{ChurchID: church.ID, PlanID: plan.ID}

	res := applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.CheckoutCompleted{
		SessionRef: "cs_1", SubscriptionRef: "sub_1", CustomerRef: "cus_1", Paid: true, Correlation: corr,
	})
	require.Equal(t, 1, res.Applied)
	require.Len(t, res.SubscriptionIDs, 1)
	subID := res.SubscriptionIDs[0]

	var sub models.TenantSubscription
	require.NoError(t, db.First(&sub, "id = ?", subID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_1", lo.FromPtr(sub.ProviderRef))
	assert.Equal(t, "cus_1", lo.FromPtr(sub.ProviderCustomerID))

	// a redelivered checkout reuses the subscription
	res = applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.CheckoutCompleted{
		SessionRef: "cs_1", SubscriptionRef: "sub_1", CustomerRef: "cus_1", Paid: true, Correlation: corr,
	})
	assert.Equal(t, []string{subID}, res.SubscriptionIDs)

	applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.InvoicePaymentFailed{InvoiceRef: "in_1", SubscriptionRef: "sub_1"})
	require.NoError(t, db.First(&sub, "id = ?", subID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusPastDue, sub.Status)

	periodEnd := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.InvoicePaid{
		ChargeRef: "in_2", SubscriptionRef: "sub_1", PaidAt: time.Now(), PeriodEnd: &periodEnd,
	})
	require.NoError(t, db.First(&sub, "id = ?", subID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))

	applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.SubscriptionUpdated{SubscriptionState: gateway.SubscriptionState{
		SubscriptionRef: "sub_1", Status: "unpaid",
	}})
	require.NoError(t, db.First(&sub, "id = ?", subID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusPastDue, sub.Status)

	applyPlatform(t, s, db, types.PaymentProviderStripe, gateway.SubscriptionCanceled{SubscriptionRef: "sub_1", CanceledAt: time.Now()})
	require.NoError(t, db.First(&sub, "id = ?", subID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusCanceled, sub.Status)

	ents, err := s.ResolveTenantEntitlements(ctx, church.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanSourceInactive, ents.Source)
}

func TestApplyPlatformEvents_PaystackLinksByCustomer(t *testing.T) {
	s, db := newTestService(t)
	church := testutil.Church(t, db, "grace")
	plan := testutil.Plan(t, db, "pro", false)
	require.NoError(t, db.Model(plan).Update("paystack_plan_code", "PLN_pro").Error)

	res := applyPlatform(t, s, db, types.PaymentProviderPaystack, gateway.PaymentSucceeded{
		PaymentRef:  "ref_1",
		CustomerRef: "CUS_1",
		PlanRef:     "PLN_pro",
		Correlation: gateway.Correlation{ChurchID: church.ID, PlanID: plan.ID},
	})
	require.Len(t, res.SubscriptionIDs, 1)

	res = applyPlatform(t, s, db, types.PaymentProviderPaystack, gateway.SubscriptionCreated{SubscriptionState: gateway.SubscriptionState{
		SubscriptionRef: "SUB_1", CustomerRef: "CUS_1", PriceRef: "PLN_pro", PlanRef: "PLN_pro", Status: "active",
	}})
	require.Len(t, res.SubscriptionIDs, 1)

	var sub models.TenantSubscription
	require.NoError(t, db.First(&sub, "id = ?", res.SubscriptionIDs[0]).Error)
	assert.Equal(t, "SUB_1", lo.FromPtr(sub.ProviderRef))
	assert.Equal(t, types.PaymentProviderPaystack, sub.Provider)

	var count int64
	require.NoError(t, db.Model(&models.TenantSubscription{}).Where("church_id = ?", church.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	applyPlatform(t, s, db, types.PaymentProviderPaystack, gateway.SubscriptionUpdated{SubscriptionState: gateway.SubscriptionState{
		SubscriptionRef: "SUB_1", Status: "attention",
	}})
	require.NoError(t, db.First(&sub, "id = ?", sub.ID).Error)
	assert.Equal(t, types.TenantSubscriptionStatusPastDue, sub.Status)
}

func TestApplyPlatformEvents_IgnoresUncorrelated(t *testing.T) {
	s, db := newTestService(t)
	res := applyPlatform(t, s, db, types.PaymentProviderStripe,
		gateway.CheckoutCompleted{SessionRef: "cs_x", Paid: true},
		gateway.CheckoutCompleted{SessionRef: "cs_y", Paid: false},
		gateway.InvoicePaid{ChargeRef: "in_x", SubscriptionRef: "sub_unknown"},
		gateway.RefundUpdated{RefundRef: "re_1"},
	)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 4, res.Ignored)
}

func TestMapTenantStatus(t *testing.T) {
	cases := []struct {
		provider types.PaymentProvider
		raw      string
		want     types.TenantSubscriptionStatus
	}{
		{types.PaymentProviderStripe, "trialing", types.TenantSubscriptionStatusTrialing},
		{types.PaymentProviderStripe, "past_due", types.TenantSubscriptionStatusPastDue},
		{types.PaymentProviderStripe, "incomplete_expired", types.TenantSubscriptionStatusExpired},
		{types.PaymentProviderPaystack, "non-renewing", types.TenantSubscriptionStatusActive},
		{types.PaymentProviderPaystack, "complete", types.TenantSubscriptionStatusExpired},
		{types.PaymentProviderPaystack, "cancelled", types.TenantSubscriptionStatusCanceled},
	}
	for _, c := range cases {
		got, ok := MapTenantStatus(c.provider, c.raw)
		require.True(t, ok, c.raw)
		assert.Equal(t, c.want, got, c.raw)
	}
	_, ok := MapTenantStatus(types.PaymentProviderStripe, "weird")
	assert.False(t, ok)
}

func TestCreatePlanCheckout(t *testing.T) {
	fake := testutil.NewFakeGateway(types.PaymentProviderStripe)
	s, db := newTestService(t, fake)
	ctx := context.Background()
	church := testutil.Church(t, db, "grace")
	plan := testutil.Plan(t, db, "pro", false)
	require.NoError(t, db.Model(plan).Update("stripe_price_id", "price_pro").Error)
	testutil.Plan(t, db, "legacy", false)

	sess, err := s.CreatePlanCheckout(ctx, &PlanCheckoutRequest{
		ChurchID: church.ID, PlanCode: "pro", Provider: types.PaymentProviderStripe, Email: "admin@grace.test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.CheckoutURL)

	calls := fake.RecurringCheckouts()
	require.Len(t, calls, 1)
	assert.Equal(t, "price_pro", calls[0].PriceRef)
	assert.Equal(t, church.ID, calls[0].Correlation.ChurchID)
	assert.Equal(t, plan.ID, calls[0].Correlation.PlanID)

	_, err = s.CreatePlanCheckout(ctx, &PlanCheckoutRequest{
		ChurchID: church.ID, PlanCode: "legacy", Provider: types.PaymentProviderStripe, Email: "admin@grace.test",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.CreatePlanCheckout(ctx, &PlanCheckoutRequest{
		ChurchID: church.ID, PlanCode: "pro", Provider: types.PaymentProviderPaystack, Email: "admin@grace.test",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
