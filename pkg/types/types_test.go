package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurringIntervalNext(t *testing.T) {
	base := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, base.AddDate(0, 0, 7), RecurringIntervalWeekly.Next(base))
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), RecurringIntervalMonthly.Next(base))
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), RecurringIntervalQuarterly.Next(base))
	assert.Equal(t, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC), RecurringIntervalYearly.Next(base))
	assert.False(t, RecurringInterval("DAILY").Valid())
}

func TestTenantSubscriptionStatusIsActive(t *testing.T) {
	assert.True(t, TenantSubscriptionStatusPastDue.IsActive())
	assert.True(t, TenantSubscriptionStatusTrialing.IsActive())
	assert.False(t, TenantSubscriptionStatusCanceled.IsActive())
	assert.False(t, TenantSubscriptionStatusExpired.IsActive())
}

func TestFiltersAllowFields(t *testing.T) {
	fs := Filters{
		{Field: "status", Operator: CommonFilterOperatorEq, Values: []any{"FAILED"}},
		{Field: "1=1; drop table x", Operator: CommonFilterOperatorEq, Values: []any{1}},
		nil,
	}
	out := fs.AllowFields("status", "provider")
	require.Len(t, out, 1)
	assert.Equal(t, "status", out[0].Field)
}

func TestJobSummaryFail(t *testing.T) {
	s := NewJobSummary(JobDunning, time.Now())
	s.Fail("sub-1", errors.New("smtp down"))
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "sub-1", s.Errors[0].EntityID)
	assert.True(t, PaymentProviderPaystack.IsGateway())
	assert.False(t, PaymentProviderManual.IsGateway())
}
