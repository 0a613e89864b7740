package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/notify"
	"github.com/fatflowers/offertory/internal/app/service/reconcile"
	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/internal/testutil"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	pub    *testutil.Publisher
	stripe *testutil.FakeGateway
	church *models.Church
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop().Sugar()
	cfg := &config.Config{Gateway: config.GatewayConfig{WebhookTimeout: 5 * time.Second}}
	pub := &testutil.Publisher{}
	stripe := testutil.NewFakeGateway(types.PaymentProviderStripe)
	registry := testutil.Registry(stripe)
	refunds := refund.NewService(db, log, cfg, registry, pub)
	subs := subscription.NewService(db, log, cfg, registry)
	return &fixture{
		svc:    NewService(db, log, cfg, registry, ledger.New(db, log), reconcile.NewEngine(db, log, refunds, pub), subs),
		db:     db,
		pub:    pub,
		stripe: stripe,
		church: testutil.Church(t, db, "grace"),
	}
}

func (f *fixture) deliver(scope types.GatewayScope) (*Result, error) {
	return f.svc.Handle(context.Background(), &Request{
		Provider: types.PaymentProviderStripe,
		Scope:    scope,
		Payload:  []byte(`{"id":"evt_1"}`),
	})
}

func (f *fixture) ledgerRow(t *testing.T, id string) models.WebhookEvent {
	t.Helper()
	var row models.WebhookEvent
	require.NoError(t, f.db.First(&row, "id = ?", id).Error)
	return row
}

func TestHandle_ReplayAppliesOnce(t *testing.T) {
	f := newFixture(t)
	d := &models.Donation{
		ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Amount: testutil.Dec("40"), Currency: "USD",
		Status: types.DonationStatusPending, Provider: types.PaymentProviderStripe, ProviderRef: "cs_9",
		DonorName: "Ada", DonorEmail: "ada@example.com",
	}
	require.NoError(t, f.db.Create(d).Error)
	intent := &models.PaymentIntent{
		ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Purpose: types.PaymentPurposeDonation,
		Amount: d.Amount, Currency: "USD", Provider: types.PaymentProviderStripe, ProviderRef: "cs_9",
		Status: types.PaymentIntentStatusProcessing, DonationID: &d.ID,
	}
	require.NoError(t, f.db.Create(intent).Error)

	f.stripe.Delivery = &gateway.Delivery{
		Provider:        types.PaymentProviderStripe,
		ExternalEventID: "evt_1",
		EventType:       "checkout.session.completed",
		Events: []gateway.Event{gateway.CheckoutCompleted{
			SessionRef: "cs_9", PaymentRef: "pi_9", Amount: d.Amount, Currency: "USD", Paid: true,
			OccurredAt: time.Now(), Correlation: gateway.Correlation{PaymentIntentID: intent.ID},
		}},
	}

	first, err := f.deliver(types.GatewayScopeGiving)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	for range 3 {
		again, err := f.deliver(types.GatewayScopeGiving)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.RecordID, again.RecordID)
	}

	var got models.Donation
	require.NoError(t, f.db.First(&got, "id = ?", d.ID).Error)
	assert.Equal(t, types.DonationStatusCompleted, got.Status)

	var receipts int64
	require.NoError(t, f.db.Model(&models.OutboundMessage{}).Where("template = ?", notify.TemplateDonationReceipt).Count(&receipts).Error)
	assert.EqualValues(t, 1, receipts)
	assert.Equal(t, 1, f.pub.Count(realtime.EventDonationCompleted))

	row := f.ledgerRow(t, first.RecordID)
	assert.Equal(t, types.WebhookEventStatusProcessed, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.NotNil(t, row.ProcessedAt)
	assert.Contains(t, string(row.Result), `"applied"`)
}

func TestHandle_InvalidSignatureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.stripe.ParseErr = fmt.Errorf("%w: bad header", apperr.ErrInvalidSignature)

	_, err := f.deliver(types.GatewayScopeGiving)
	require.ErrorIs(t, err, apperr.ErrInvalidSignature)

	var n int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestHandle_UnconfiguredProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Handle(context.Background(), &Request{Provider: types.PaymentProviderPaystack, Scope: types.GatewayScopeGiving})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHandle_ResumesAfterFailure(t *testing.T) {
	f := newFixture(t)
	planID := tool.GenerateUUIDV7()
	f.stripe.Delivery = &gateway.Delivery{
		Provider:        types.PaymentProviderStripe,
		ExternalEventID: "evt_plan",
		EventType:       "checkout.session.completed",
		Events: []gateway.Event{gateway.CheckoutCompleted{
			SessionRef: "cs_plan", SubscriptionRef: "sub_1", CustomerRef: "cus_1", Paid: true,
			Correlation: gateway.Correlation{ChurchID: f.church.ID, PlanID: planID},
		}},
	}

	// the plan does not exist yet, so activation fails
	_, err := f.deliver(types.GatewayScopePlatform)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	var row models.WebhookEvent
	require.NoError(t, f.db.First(&row, "external_event_id = ?", "evt_plan").Error)
	assert.Equal(t, types.WebhookEventStatusFailed, row.Status)
	require.NotNil(t, row.Error)
	var subs int64
	require.NoError(t, f.db.Model(&models.TenantSubscription{}).Count(&subs).Error)
	assert.Zero(t, subs)

	require.NoError(t, f.db.Create(&models.SubscriptionPlan{
		ID: planID, Code: "growth", Name: "growth", Active: true, Price: testutil.Dec("49"), Currency: "USD",
	}).Error)

	res, err := f.deliver(types.GatewayScopePlatform)
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, row.ID, res.RecordID)

	row = f.ledgerRow(t, row.ID)
	assert.Equal(t, types.WebhookEventStatusProcessed, row.Status)
	assert.Equal(t, 2, row.Attempts)
	assert.Nil(t, row.Error)

	var sub models.TenantSubscription
	require.NoError(t, f.db.First(&sub, "church_id = ?", f.church.ID).Error)
	assert.Equal(t, planID, sub.PlanID)
	assert.Equal(t, "sub_1", *sub.ProviderRef)

	dup, err := f.deliver(types.GatewayScopePlatform)
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
}
