package refund

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

	"github.com/fatflowers/offertory/internal/app/service/gateway"
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
	stripe *testutil.FakeGateway
	pub    *testutil.Publisher
	church *models.Church
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{db: db, stripe: testutil.NewFakeGateway(types.PaymentProviderStripe), pub: &testutil.Publisher{}}
	f.svc = NewService(db, zap.NewNop().Sugar(), &config.Config{}, testutil.Registry(f.stripe), f.pub)
	f.church = testutil.Church(t, db, "grace")
	return f
}

func (f *fixture) donation(t *testing.T, provider types.PaymentProvider, ref, amount string) *models.Donation {
	t.Helper()
	d := &models.Donation{
		ID:          tool.GenerateUUIDV7(),
		ChurchID:    f.church.ID,
		Amount:      testutil.Dec(amount),
		Currency:    "USD",
		Status:      types.DonationStatusCompleted,
		Provider:    provider,
		ProviderRef: ref,
	}
	require.NoError(t, f.db.Create(d).Error)
	return d
}

func (f *fixture) apply(t *testing.T, evs ...gateway.RefundUpdated) {
	t.Helper()
	for _, ev := range evs {
		var batch realtime.Batch
		require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
			_, err := f.svc.ApplyRefund(context.Background(), tx, types.PaymentProviderStripe, ev, &batch)
			return err
		}))
		batch.Flush(context.Background(), f.pub, zap.NewNop().Sugar())
	}
}

func (f *fixture) reload(t *testing.T, id string) models.Donation {
	t.Helper()
	var d models.Donation
	require.NoError(t, f.db.First(&d, "id = ?", id).Error)
	return d
}

func TestApplyRefund_FullAmountAcrossTwoRefunds(t *testing.T) {
	orders := map[string][]string{
		"forty first": {"re_40", "re_40", "re_60"},
		"sixty first": {"re_60", "re_40", "re_60"},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			d := f.donation(t, types.PaymentProviderStripe, "cs_1", "100")
			events := map[string]gateway.RefundUpdated{
				"re_40": {RefundRef: "re_40", Amount: testutil.Dec("40"), Currency: "usd", Status: "succeeded",
					Correlation: gateway.Correlation{DonationID: d.ID}},
				"re_60": {RefundRef: "re_60", Amount: testutil.Dec("60"), Currency: "usd", Status: "succeeded",
					Correlation: gateway.Correlation{DonationID: d.ID}},
			}
			f.apply(t, events[order[0]])
			assert.Equal(t, types.DonationStatusCompleted, f.reload(t, d.ID).Status)
			f.apply(t, events[order[1]], events[order[2]])

			var refunds []models.Refund
			require.NoError(t, f.db.Where("donation_id = ?", d.ID).Find(&refunds).Error)
			require.Len(t, refunds, 2)
			total, err := refundedTotal(context.Background(), f.db, d.ID)
			require.NoError(t, err)
			assert.True(t, total.Equal(testutil.Dec("100")), total.String())

			after := f.reload(t, d.ID)
			assert.Equal(t, types.DonationStatusRefunded, after.Status)
			assert.NotNil(t, after.RefundedAt)
			assert.Equal(t, 1, f.pub.Count(realtime.EventDonationRefunded))
		})
	}
}

func TestApplyRefund_FailedRefundsDoNotCount(t *testing.T) {
	f := newFixture(t)
	d := f.donation(t, types.PaymentProviderStripe, "cs_1", "100")
	corr := gateway.Correlation{DonationID: d.ID}

	f.apply(t,
		gateway.RefundUpdated{RefundRef: "re_a", Amount: testutil.Dec("60"), Status: "succeeded", Correlation: corr},
		gateway.RefundUpdated{RefundRef: "re_b", Amount: testutil.Dec("40"), Status: "failed", Correlation: corr},
	)
	assert.Equal(t, types.DonationStatusCompleted, f.reload(t, d.ID).Status)

	f.apply(t, gateway.RefundUpdated{RefundRef: "re_c", Amount: testutil.Dec("40"), Status: "pending", Correlation: corr})
	assert.Equal(t, types.DonationStatusRefunded, f.reload(t, d.ID).Status)

	// a refund failing afterwards never un-refunds the donation
	f.apply(t, gateway.RefundUpdated{RefundRef: "re_c", Status: "failed", Correlation: corr})
	assert.Equal(t, types.DonationStatusRefunded, f.reload(t, d.ID).Status)

	var stored models.Refund
	require.NoError(t, f.db.First(&stored, "provider_ref = ?", "re_c").Error)
	assert.Equal(t, "failed", stored.Status)
	assert.True(t, stored.Amount.Equal(testutil.Dec("40")))
}

func TestApplyRefund_LinksByChargeReference(t *testing.T) {
	f := newFixture(t)
	d := f.donation(t, types.PaymentProviderStripe, "cs_9", "25")
	require.NoError(t, f.db.Model(d).Update("provider_charge_ref", "pi_9").Error)

	f.apply(t, gateway.RefundUpdated{RefundRef: "re_9", ChargeRef: "ch_9", PaymentRef: "pi_9", Amount: testutil.Dec("25"), Status: "succeeded"})

	var stored models.Refund
	require.NoError(t, f.db.First(&stored, "provider_ref = ?", "re_9").Error)
	assert.Equal(t, d.ID, lo.FromPtr(stored.DonationID))
	assert.Equal(t, f.church.ID, lo.FromPtr(stored.ChurchID))
	assert.Equal(t, "USD", stored.Currency)
	assert.Equal(t, types.DonationStatusRefunded, f.reload(t, d.ID).Status)
}

func TestApplyDispute_UpsertsAndLinksThroughIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donation(t, types.PaymentProviderStripe, "cs_5", "80")
	intent := &models.PaymentIntent{
		ID: tool.GenerateUUIDV7(), ChurchID: f.church.ID, Purpose: types.PaymentPurposeDonation,
		Amount: d.Amount, Currency: "USD", Provider: types.PaymentProviderStripe, ProviderRef: "cs_5",
		Status: types.PaymentIntentStatusSucceeded, DonationID: &d.ID,
	}
	require.NoError(t, f.db.Create(intent).Error)
	due := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	apply := func(ev gateway.DisputeUpdated) *models.Dispute {
		var out *models.Dispute
		require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = f.svc.ApplyDispute(ctx, tx, types.PaymentProviderStripe, ev, nil)
			return err
		}))
		return out
	}
	first := apply(gateway.DisputeUpdated{
		DisputeRef: "dp_1", ChargeRef: "ch_unknown", Amount: testutil.Dec("80"), Currency: "usd",
		Status: "needs_response", EvidenceDueBy: &due, Correlation: gateway.Correlation{PaymentIntentID: intent.ID},
	})
	assert.Equal(t, d.ID, lo.FromPtr(first.DonationID))

	second := apply(gateway.DisputeUpdated{DisputeRef: "dp_1", Status: "under_review"})
	assert.Equal(t, first.ID, second.ID)

	var rows []models.Dispute
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "under_review", rows[0].Status)
	require.NotNil(t, rows[0].EvidenceDueBy)
	assert.True(t, due.Equal(*rows[0].EvidenceDueBy))
	assert.Equal(t, d.ID, lo.FromPtr(rows[0].DonationID))
}

func TestCreateRefund_Manual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donation(t, types.PaymentProviderManual, "manual_1", "50")

	part, err := f.svc.CreateRefund(ctx, &CreateRequest{DonationID: d.ID, Amount: lo.ToPtr(testutil.Dec("20")), ActorID: "staff-1"})
	require.NoError(t, err)
	assert.Regexp(t, `^manual_refund_`, part.ProviderRef)
	assert.Equal(t, "succeeded", part.Status)
	assert.Equal(t, types.DonationStatusCompleted, f.reload(t, d.ID).Status)

	_, err = f.svc.CreateRefund(ctx, &CreateRequest{DonationID: d.ID, Amount: lo.ToPtr(testutil.Dec("31"))})
	require.ErrorIs(t, err, apperr.ErrValidation)

	rest, err := f.svc.CreateRefund(ctx, &CreateRequest{DonationID: d.ID})
	require.NoError(t, err)
	assert.True(t, rest.Amount.Equal(testutil.Dec("30")))
	assert.Equal(t, types.DonationStatusRefunded, f.reload(t, d.ID).Status)

	_, err = f.svc.CreateRefund(ctx, &CreateRequest{DonationID: d.ID})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateRefund(ctx, &CreateRequest{DonationID: tool.GenerateUUIDV7()})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRefund_ConcurrentManualRefundsStayWithinAmount(t *testing.T) {
	f := newFixture(t)
	d := f.donation(t, types.PaymentProviderManual, "manual_cc", "30")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CreateRefund(context.Background(), &CreateRequest{DonationID: d.ID, Amount: lo.ToPtr(testutil.Dec("20"))})
		}()
	}
	wg.Wait()

	ok := lo.CountBy(errs, func(err error) bool { return err == nil })
	assert.Equal(t, 1, ok)
	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		}
	}
	var n int64
	require.NoError(t, f.db.Model(&models.Refund{}).Where("donation_id = ?", d.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCreateRefund_LocksDonationRow(t *testing.T) {
	sql := testutil.PostgresSQL(t, func(tx *gorm.DB) *gorm.DB {
		return donationForUpdate(tx, "don-1").First(&models.Donation{})
	})
	assert.Contains(t, sql, "id = 'don-1'")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestCreateRefund_GatewayResolvesSessionReference(t *testing.T) {
	f := newFixture(t)
	f.stripe.Resolved = map[string]string{"cs_7": "pi_7"}
	d := f.donation(t, types.PaymentProviderStripe, "cs_7", "100")

	out, err := f.svc.CreateRefund(context.Background(), &CreateRequest{DonationID: d.ID, Amount: lo.ToPtr(testutil.Dec("30")), Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, "pending", out.Status)

	calls := f.stripe.Refunds()
	require.Len(t, calls, 1)
	assert.Equal(t, "pi_7", calls[0].PaymentRef)
	assert.True(t, calls[0].Amount.Equal(testutil.Dec("30")))

	after := f.reload(t, d.ID)
	assert.Equal(t, types.DonationStatusCompleted, after.Status)
	assert.Equal(t, "pi_7", lo.FromPtr(after.ProviderChargeRef))

	// the provider's webhook for the same refund updates the row in place
	f.apply(t, gateway.RefundUpdated{RefundRef: out.ProviderRef, PaymentRef: "pi_7", Amount: testutil.Dec("30"), Status: "succeeded"})
	var count int64
	require.NoError(t, f.db.Model(&models.Refund{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateRefund_GatewayFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.stripe.RefundErr = errors.New("charge already refunded")
	d := f.donation(t, types.PaymentProviderStripe, "pi_3", "10")

	_, err := f.svc.CreateRefund(context.Background(), &CreateRequest{DonationID: d.ID})
	require.ErrorIs(t, err, apperr.ErrGateway)

	var count int64
	require.NoError(t, f.db.Model(&models.Refund{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAlertStage(t *testing.T) {
	now := time.Now()
	cases := []struct {
		in   time.Duration
		want AlertStage
		ok   bool
	}{
		{-time.Minute, StageOverdue, true},
		{23 * time.Hour, StageOneDay, true},
		{48 * time.Hour, StageThreeDays, true},
		{6 * 24 * time.Hour, StageSevenDays, true},
		{8 * 24 * time.Hour, "", false},
	}
	for _, c := range cases {
		got, ok := alertStage(now.Add(c.in), now)
		assert.Equal(t, c.ok, ok, c.in.String())
		assert.Equal(t, c.want, got, c.in.String())
	}
}

func TestSweepDisputeAlerts_OncePerStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.Admin(t, f.db, f.church.ID, "pastor@grace.test")
	testutil.Admin(t, f.db, f.church.ID, "treasurer@grace.test")

	dispute := func(ref, status string, in time.Duration) *models.Dispute {
		due := time.Now().Add(in)
		d := &models.Dispute{
			ID: tool.GenerateUUIDV7(), ChurchID: &f.church.ID, Provider: types.PaymentProviderStripe,
			ProviderRef: ref, Amount: testutil.Dec("80"), Currency: "USD", Status: status, EvidenceDueBy: &due,
		}
		require.NoError(t, f.db.Create(d).Error)
		return d
	}
	soon := dispute("dp_soon", "needs_response", 20*time.Hour)
	dispute("dp_won", "won", 20*time.Hour)
	dispute("dp_far", "needs_response", 10*24*time.Hour)
	late := dispute("dp_late", "warning_needs_response", -2*time.Hour)

	sum, err := f.svc.SweepDisputeAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Visited)
	assert.Equal(t, 2, sum.Changed)
	assert.Equal(t, 2, sum.Skipped)
	assert.Empty(t, sum.Errors)

	again, err := f.svc.SweepDisputeAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)

	for _, c := range []struct {
		d      *models.Dispute
		action string
	}{{soon, "dispute.alert.one_day"}, {late, "dispute.alert.overdue"}} {
		var audits int64
		require.NoError(t, f.db.Model(&models.AuditLog{}).Where("target_id = ? AND action = ?", c.d.ID, c.action).Count(&audits).Error)
		assert.EqualValues(t, 1, audits, c.action)
	}

	var messages []models.OutboundMessage
	require.NoError(t, f.db.Where("template = ?", "dispute_alert").Find(&messages).Error)
	assert.Len(t, messages, 4)
	assert.ElementsMatch(t,
		[]string{"pastor@grace.test", "treasurer@grace.test", "pastor@grace.test", "treasurer@grace.test"},
		lo.Map(messages, func(m models.OutboundMessage, _ int) string { return m.Recipient }))
}
