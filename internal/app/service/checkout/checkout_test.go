package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

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
	svc      *Service
	db       *gorm.DB
	stripe   *testutil.FakeGateway
	paystack *testutil.FakeGateway
	pub      *testutil.Publisher
	church   *models.Church
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		Gateway: config.GatewayConfig{Timeout: time.Second},
		Paystack: config.PaystackConfig{
			Currencies:     map[string][]string{"ngn": {"NG"}, "usd": {"NG", "KE"}},
			MinimumAmounts: map[string]string{"ngn": "50", "usd": "2"},
		},
	}
	f := &fixture{
		db:       db,
		stripe:   testutil.NewFakeGateway(types.PaymentProviderStripe),
		paystack: testutil.NewFakeGateway(types.PaymentProviderPaystack),
		pub:      &testutil.Publisher{},
	}
	log := zap.NewNop().Sugar()
	registry := testutil.Registry(f.stripe, f.paystack)
	subs := subscription.NewService(db, log, cfg, registry)
	f.svc = NewService(db, log, cfg, registry, subs, f.pub)
	f.church = testutil.Church(t, db, "grace")
	return f
}

func (f *fixture) donation(provider types.PaymentProvider, amount, currency string) *DonationRequest {
	return &DonationRequest{
		Gift: Gift{
			ChurchID: f.church.ID,
			Amount:   testutil.Dec(amount),
			Currency: currency,
			Provider: provider,
		},
		Payer: Payer{Name: "Ada", Email: "ada@example.com"},
	}
}

func TestCreateDonationCheckout_Stripe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fund := &models.Fund{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Name: "Missions", Active: true}
	require.NoError(t, f.db.Create(fund).Error)

	req := f.donation(types.PaymentProviderStripe, "19.99", "usd")
	req.FundID = fund.ID
	res, err := f.svc.CreateDonationCheckout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "cs_"+res.PaymentIntentID, res.ProviderRef)
	assert.NotEmpty(t, res.CheckoutURL)

	var intent models.PaymentIntent
	require.NoError(t, f.db.First(&intent, "id = ?", res.PaymentIntentID).Error)
	assert.Equal(t, types.PaymentIntentStatusProcessing, intent.Status)
	assert.Equal(t, res.ProviderRef, intent.ProviderRef)
	assert.Equal(t, "USD", intent.Currency)
	assert.Equal(t, res.DonationID, lo.FromPtr(intent.DonationID))

	var donation models.Donation
	require.NoError(t, f.db.First(&donation, "id = ?", res.DonationID).Error)
	assert.Equal(t, types.DonationStatusPending, donation.Status)
	assert.Equal(t, res.ProviderRef, donation.ProviderRef)
	assert.Equal(t, fund.ID, lo.FromPtr(donation.FundID))

	calls := f.stripe.Checkouts()
	require.Len(t, calls, 1)
	assert.Equal(t, intent.ID, calls[0].Correlation.PaymentIntentID)
	assert.Equal(t, donation.ID, calls[0].Correlation.DonationID)
	assert.Equal(t, "false", calls[0].Correlation.Anonymous)
	assert.True(t, calls[0].Amount.Equal(testutil.Dec("19.99")))
}

func TestCreateDonationCheckout_GatewayFailureFailsIntent(t *testing.T) {
	f := newFixture(t)
	f.stripe.CheckoutErr = errors.New("card network down")

	_, err := f.svc.CreateDonationCheckout(context.Background(), f.donation(types.PaymentProviderStripe, "25", "USD"))
	require.ErrorIs(t, err, apperr.ErrGateway)

	var intent models.PaymentIntent
	require.NoError(t, f.db.First(&intent).Error)
	assert.Equal(t, types.PaymentIntentStatusFailed, intent.Status)
	assert.Contains(t, lo.FromPtr(intent.FailureReason), "card network down")

	var donation models.Donation
	require.NoError(t, f.db.First(&donation, "id = ?", lo.FromPtr(intent.DonationID)).Error)
	assert.Equal(t, types.DonationStatusFailed, donation.Status)
}

func TestCreateDonationCheckout_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		req  func() *DonationRequest
		want error
	}{
		"manual provider": {
			req:  func() *DonationRequest { return f.donation(types.PaymentProviderManual, "10", "USD") },
			want: apperr.ErrValidation,
		},
		"zero amount": {
			req:  func() *DonationRequest { return f.donation(types.PaymentProviderStripe, "0", "USD") },
			want: apperr.ErrValidation,
		},
		"fractional zero-decimal amount": {
			req:  func() *DonationRequest { return f.donation(types.PaymentProviderStripe, "500.5", "JPY") },
			want: apperr.ErrValidation,
		},
		"paystack unsupported currency": {
			req: func() *DonationRequest {
				r := f.donation(types.PaymentProviderPaystack, "100", "EUR")
				r.Payer.Country = "NG"
				return r
			},
			want: apperr.ErrValidation,
		},
		"paystack country not allowed": {
			req:  func() *DonationRequest { return f.donation(types.PaymentProviderPaystack, "100", "NGN") },
			want: apperr.ErrValidation,
		},
		"paystack below minimum": {
			req: func() *DonationRequest {
				r := f.donation(types.PaymentProviderPaystack, "20", "NGN")
				r.Payer.Country = "NG"
				return r
			},
			want: apperr.ErrValidation,
		},
		"paystack without email": {
			req: func() *DonationRequest {
				r := f.donation(types.PaymentProviderPaystack, "100", "NGN")
				r.Payer = Payer{Country: "NG"}
				return r
			},
			want: apperr.ErrValidation,
		},
		"unknown church": {
			req: func() *DonationRequest {
				r := f.donation(types.PaymentProviderStripe, "10", "USD")
				r.ChurchID = tool.GenerateUUIDV7()
				return r
			},
			want: apperr.ErrNotFound,
		},
		"foreign fund": {
			req: func() *DonationRequest {
				r := f.donation(types.PaymentProviderStripe, "10", "USD")
				r.FundID = tool.GenerateUUIDV7()
				return r
			},
			want: apperr.ErrNotFound,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateDonationCheckout(ctx, c.req())
			require.ErrorIs(t, err, c.want)
		})
	}

	var intents, donations int64
	require.NoError(t, f.db.Model(&models.PaymentIntent{}).Count(&intents).Error)
	require.NoError(t, f.db.Model(&models.Donation{}).Count(&donations).Error)
	assert.Zero(t, intents)
	assert.Zero(t, donations)
	assert.Empty(t, f.paystack.Checkouts())
}

func TestCreateDonationCheckout_PaystackAllowedCountry(t *testing.T) {
	f := newFixture(t)
	req := f.donation(types.PaymentProviderPaystack, "5000", "NGN")
	req.Payer.Country = "NG"

	res, err := f.svc.CreateDonationCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentProviderPaystack, res.Provider)
	require.Len(t, f.paystack.Checkouts(), 1)
}

func TestCreateDonationCheckout_FeatureGuards(t *testing.T) {
	f := newFixture(t)
	plan := testutil.Plan(t, f.db, "basic", false,
		testutil.Feature{Key: types.FeatureOnlineGiving, Enabled: true},
		testutil.Feature{Key: types.FeatureCampaigns, Enabled: false},
		testutil.Feature{Key: types.FeatureRecurringGiving, Enabled: false},
	)
	testutil.Subscription(t, f.db, f.church.ID, plan.ID, types.TenantSubscriptionStatusActive)
	campaign := &models.Campaign{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Name: "Roof", Active: true}
	require.NoError(t, f.db.Create(campaign).Error)

	req := f.donation(types.PaymentProviderStripe, "10", "USD")
	req.CampaignID = campaign.ID
	_, err := f.svc.CreateDonationCheckout(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrFeatureDisabled)

	_, err = f.svc.CreateRecurringCheckout(context.Background(), &RecurringRequest{
		Gift:     f.donation(types.PaymentProviderStripe, "10", "USD").Gift,
		Interval: types.RecurringIntervalMonthly,
		Payer:    Payer{Email: "ada@example.com"},
	})
	require.ErrorIs(t, err, apperr.ErrFeatureDisabled)

	_, err = f.svc.CreateDonationCheckout(context.Background(), f.donation(types.PaymentProviderStripe, "10", "USD"))
	require.NoError(t, err)
}

func TestCreateRecurringCheckout(t *testing.T) {
	f := newFixture(t)
	req := &RecurringRequest{
		Gift:     f.donation(types.PaymentProviderPaystack, "100", "NGN").Gift,
		Interval: types.RecurringIntervalQuarterly,
		Payer:    Payer{Name: "Ada", Email: "ada@example.com", Country: "NG"},
	}
	res, err := f.svc.CreateRecurringCheckout(context.Background(), req)
	require.NoError(t, err)

	var recurring models.RecurringDonation
	require.NoError(t, f.db.First(&recurring, "id = ?", res.RecurringDonationID).Error)
	assert.Equal(t, types.RecurringStatusPaused, recurring.Status)
	assert.Equal(t, types.RecurringIntervalQuarterly, recurring.Interval)
	assert.Equal(t, "PLN_"+res.PaymentIntentID, lo.FromPtr(recurring.ProviderPlanRef))

	calls := f.paystack.RecurringCheckouts()
	require.Len(t, calls, 1)
	assert.Equal(t, recurring.ID, calls[0].Correlation.RecurringDonationID)

	f.paystack.CheckoutErr = errors.New("plan rejected")
	_, err = f.svc.CreateRecurringCheckout(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrGateway)

	var canceled int64
	require.NoError(t, f.db.Model(&models.RecurringDonation{}).
		Where("status = ?", types.RecurringStatusCanceled).Count(&canceled).Error)
	assert.EqualValues(t, 1, canceled)
}

func TestCreateTicketCheckout_Capacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := &models.Event{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Title: "Retreat", Capacity: lo.ToPtr(3)}
	require.NoError(t, f.db.Create(event).Error)
	tt := &models.TicketType{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, EventID: event.ID, Name: "Adult",
		Price: testutil.Dec("12.50"), Currency: "usd"}
	require.NoError(t, f.db.Create(tt).Error)
	for _, o := range []struct {
		qty    int
		status types.TicketOrderStatus
	}{{2, types.TicketOrderStatusPaid}, {5, types.TicketOrderStatusCanceled}} {
		require.NoError(t, f.db.Create(&models.EventTicketOrder{
			ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, EventID: event.ID, TicketTypeID: tt.ID,
			Quantity: o.qty, Amount: testutil.Dec("25"), Currency: "USD", Status: o.status, Provider: types.PaymentProviderStripe,
		}).Error)
	}

	req := &TicketRequest{
		ChurchID: f.church.ID, EventID: event.ID, TicketTypeID: tt.ID, Quantity: 2,
		Provider: types.PaymentProviderStripe, Payer: Payer{Email: "ada@example.com"},
	}
	_, err := f.svc.CreateTicketCheckout(ctx, req)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.ErrorIs(t, err, errSoldOut)

	req.Quantity = 1
	res, err := f.svc.CreateTicketCheckout(ctx, req)
	require.NoError(t, err)

	var order models.EventTicketOrder
	require.NoError(t, f.db.First(&order, "id = ?", res.TicketOrderID).Error)
	assert.Equal(t, types.TicketOrderStatusPending, order.Status)
	assert.True(t, order.Amount.Equal(testutil.Dec("12.50")))
	assert.Equal(t, "USD", order.Currency)

	calls := f.stripe.Checkouts()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].Quantity)
	assert.Equal(t, order.ID, calls[0].Correlation.TicketOrderID)
}

func TestCreateTicketCheckout_ConcurrentBuyersDoNotOverbook(t *testing.T) {
	f := newFixture(t)
	event := &models.Event{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Title: "Concert", Capacity: lo.ToPtr(2)}
	require.NoError(t, f.db.Create(event).Error)
	tt := &models.TicketType{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, EventID: event.ID, Name: "GA",
		Price: testutil.Dec("5"), Currency: "USD"}
	require.NoError(t, f.db.Create(tt).Error)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CreateTicketCheckout(context.Background(), &TicketRequest{
				ChurchID: f.church.ID, EventID: event.ID, TicketTypeID: tt.ID, Quantity: 1, Provider: types.PaymentProviderStripe,
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, lo.CountBy(errs, func(err error) bool { return err == nil }))
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, errSoldOut)
		}
	}
	var held int64
	require.NoError(t, f.db.Model(&models.EventTicketOrder{}).Where("event_id = ?", event.ID).Count(&held).Error)
	assert.EqualValues(t, 2, held)
}

func TestCreateTicketCheckout_LocksEventRow(t *testing.T) {
	sql := testutil.PostgresSQL(t, func(tx *gorm.DB) *gorm.DB {
		return eventForUpdate(tx, "ev-1").First(&models.Event{})
	})
	assert.Contains(t, sql, "id = 'ev-1'")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestCreateTicketCheckout_GatewayFailureCancelsOrder(t *testing.T) {
	f := newFixture(t)
	f.stripe.CheckoutErr = errors.New("timeout")
	event := &models.Event{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Title: "Gala"}
	require.NoError(t, f.db.Create(event).Error)
	tt := &models.TicketType{ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, EventID: event.ID, Name: "GA",
		Price: testutil.Dec("10"), Currency: "USD"}
	require.NoError(t, f.db.Create(tt).Error)

	_, err := f.svc.CreateTicketCheckout(context.Background(), &TicketRequest{
		ChurchID: f.church.ID, EventID: event.ID, TicketTypeID: tt.ID, Quantity: 1, Provider: types.PaymentProviderStripe,
	})
	require.ErrorIs(t, err, apperr.ErrGateway)

	var order models.EventTicketOrder
	require.NoError(t, f.db.First(&order).Error)
	assert.Equal(t, types.TicketOrderStatusCanceled, order.Status)
}

func TestRecordManualDonation(t *testing.T) {
	f := newFixture(t)
	received := time.Date(2026, 9, 6, 11, 0, 0, 0, time.UTC)

	d, err := f.svc.RecordManualDonation(context.Background(), &ManualDonationRequest{
		Gift:       Gift{ChurchSlug: "grace", Amount: testutil.Dec("40"), Currency: "usd"},
		Donor:      Payer{Name: "Ada", Email: "ada@example.com"},
		ReceivedAt: &received,
		ActorID:    "staff-1",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DonationStatusCompleted, d.Status)
	assert.Equal(t, types.PaymentProviderManual, d.Provider)
	assert.Regexp(t, `^manual_`, d.ProviderRef)
	assert.True(t, received.Equal(*d.CompletedAt))

	var receipts int64
	require.NoError(t, f.db.Model(&models.OutboundMessage{}).Where("dedupe_key = ?", "receipt:"+d.ID).Count(&receipts).Error)
	assert.EqualValues(t, 1, receipts)
	assert.Equal(t, 1, f.pub.Count(realtime.EventDonationCompleted))

	_, err = f.svc.RecordManualDonation(context.Background(), &ManualDonationRequest{
		Gift: Gift{ChurchID: f.church.ID, Amount: testutil.Dec("40"), Currency: "USD", Provider: types.PaymentProviderStripe},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
