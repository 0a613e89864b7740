package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/testutil"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func donation(t *testing.T, db *gorm.DB, churchID, amount, currency string, status types.DonationStatus, completed *time.Time, fundID *string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Donation{
		ID:          tool.GenerateUUIDV7(),
		ChurchID:    churchID,
		Amount:      testutil.Dec(amount),
		Currency:    currency,
		Status:      status,
		Provider:    types.PaymentProviderStripe,
		ProviderRef: tool.PrefixedRef("pi"),
		FundID:      fundID,
		CompletedAt: completed,
	}).Error)
}

func recurring(t *testing.T, db *gorm.DB, churchID, amount string, status types.RecurringStatus, created time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.RecurringDonation{
		ID:        tool.GenerateUUIDV7(),
		ChurchID:  churchID,
		Amount:    testutil.Dec(amount),
		Currency:  "USD",
		Interval:  types.RecurringIntervalMonthly,
		Status:    status,
		Provider:  types.PaymentProviderStripe,
		CreatedAt: created,
	}).Error)
}

type fixture struct {
	svc    *Service
	church *models.Church
	fund   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	church := testutil.Church(t, db, "grace")
	fund := tool.GenerateUUIDV7()

	donation(t, db, church.ID, "10.50", "USD", types.DonationStatusCompleted, lo.ToPtr(at("2026-03-01T09:00:00Z")), &fund)
	donation(t, db, church.ID, "4.50", "USD", types.DonationStatusRefunded, lo.ToPtr(at("2026-03-01T18:30:00Z")), nil)
	donation(t, db, church.ID, "5000", "NGN", types.DonationStatusCompleted, lo.ToPtr(at("2026-03-02T08:00:00Z")), &fund)
	donation(t, db, church.ID, "99", "USD", types.DonationStatusCompleted, lo.ToPtr(at("2026-03-05T00:00:00Z")), nil)
	donation(t, db, church.ID, "7", "USD", types.DonationStatusFailed, nil, nil)
	donation(t, db, church.ID, "8", "USD", types.DonationStatusPending, nil, nil)

	other := testutil.Church(t, db, "hope")
	donation(t, db, other.ID, "1000", "USD", types.DonationStatusCompleted, lo.ToPtr(at("2026-03-01T10:00:00Z")), nil)

	recurring(t, db, church.ID, "25", types.RecurringStatusActive, at("2026-03-01T12:00:00Z"))
	recurring(t, db, church.ID, "15", types.RecurringStatusActive, at("2026-02-10T12:00:00Z"))
	recurring(t, db, church.ID, "50", types.RecurringStatusCanceled, at("2026-03-02T12:00:00Z"))

	return &fixture{svc: NewService(db, zap.NewNop().Sugar()), church: church, fund: fund}
}

func (f *fixture) request(items ...StatisticType) *Request {
	return &Request{
		ChurchID: f.church.ID,
		From:     "2026-03-01",
		To:       "2026-03-04",
		DataItems: lo.Map(items, func(id StatisticType, _ int) *DataItem {
			return &DataItem{ID: id}
		}),
	}
}

func TestGetGivingStatistic_Donations(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.GetGivingStatistic(context.Background(),
		f.request(StatisticTypeDailyDonationCount, StatisticTypeDailyGiving, StatisticTypeTotalGiving))
	require.NoError(t, err)

	assert.Equal(t, []ResponseDataItem{
		{Date: "2026-03-02", Count: 1},
		{Date: "2026-03-01", Count: 2},
	}, res.DataItems[StatisticTypeDailyDonationCount])

	daily := res.DataItems[StatisticTypeDailyGiving]
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-03-02", daily[0].Date)
	assert.Equal(t, "NGN", daily[0].Label)
	assert.True(t, daily[0].Amount.Equal(testutil.Dec("5000")))
	assert.Equal(t, "2026-03-01", daily[1].Date)
	assert.True(t, daily[1].Amount.Equal(testutil.Dec("15")))
	assert.EqualValues(t, 2, daily[1].Count)

	total := res.DataItems[StatisticTypeTotalGiving]
	require.Len(t, total, 2)
	assert.Equal(t, "NGN", total[0].Label)
	assert.Equal(t, "USD", total[1].Label)
	assert.Empty(t, total[1].Date)
	assert.True(t, total[1].Amount.Equal(testutil.Dec("15")))
}

func TestGetGivingStatistic_Recurring(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.GetGivingStatistic(context.Background(),
		f.request(StatisticTypeDailyNewRecurringCount, StatisticTypeActiveRecurringCount))
	require.NoError(t, err)

	assert.Equal(t, []ResponseDataItem{
		{Date: "2026-03-02", Count: 1},
		{Date: "2026-03-01", Count: 1},
	}, res.DataItems[StatisticTypeDailyNewRecurringCount])

	active := res.DataItems[StatisticTypeActiveRecurringCount]
	require.Len(t, active, 1)
	assert.EqualValues(t, 2, active[0].Count)
	assert.True(t, active[0].Amount.Equal(testutil.Dec("40")))
}

func TestGetGivingStatistic_Filters(t *testing.T) {
	f := newFixture(t)

	req := f.request(StatisticTypeTotalGiving, StatisticTypeActiveRecurringCount)
	req.Filters = types.Filters{
		{Field: "currency", Operator: types.CommonFilterOperatorEq, Values: []any{"USD"}},
		{Field: "campaign_id", Operator: types.CommonFilterOperatorIn, Values: []any{"x"}},
		{Field: "1=1 OR church_id", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}
	res, err := f.svc.GetGivingStatistic(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.DataItems[StatisticTypeTotalGiving])
	// campaign_id cannot narrow recurring gifts
	assert.Nil(t, res.DataItems[StatisticTypeActiveRecurringCount])

	req = f.request(StatisticTypeTotalGiving)
	req.Filters = types.Filters{{Field: "fund_id", Operator: types.CommonFilterOperatorEq, Values: []any{f.fund}}}
	res, err = f.svc.GetGivingStatistic(context.Background(), req)
	require.NoError(t, err)
	total := res.DataItems[StatisticTypeTotalGiving]
	require.Len(t, total, 2)
	assert.True(t, total[1].Amount.Equal(testutil.Dec("10.5")))
}

func TestGetGivingStatistic_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(*Request)
		want error
	}{
		{"bad from", func(r *Request) { r.From = "03/01/2026" }, apperr.ErrValidation},
		{"inverted", func(r *Request) { r.To = "2026-02-01" }, apperr.ErrValidation},
		{"too long", func(r *Request) { r.From = "2024-01-01" }, apperr.ErrValidation},
		{"unknown item", func(r *Request) { r.DataItems = []*DataItem{{ID: "gmv"}} }, apperr.ErrValidation},
		{"no items", func(r *Request) { r.DataItems = nil }, apperr.ErrValidation},
		{"unknown church", func(r *Request) { r.ChurchID = tool.GenerateUUIDV7() }, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(StatisticTypeDailyGiving)
			tc.mod(req)
			_, err := f.svc.GetGivingStatistic(ctx, req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
