package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/offertory/internal/testutil"
	"github.com/fatflowers/offertory/pkg/types"
)

func newService(t *testing.T) *Service {
	return New(testutil.NewDB(t), zap.NewNop().Sugar())
}

func begin(id string, payload string) *BeginRequest {
	return &BeginRequest{
		Provider:        types.PaymentProviderStripe,
		Scope:           types.GatewayScopeGiving,
		ExternalEventID: id,
		EventType:       "payment_intent.succeeded",
		Payload:         []byte(payload),
	}
}

func TestBeginProcessing_FirstDeliveryThenDuplicate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.BeginProcessing(ctx, begin("evt_1", `{"a":1}`))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	require.NotEmpty(t, first.RecordID)

	require.NoError(t, s.MarkProcessed(ctx, first.RecordID, map[string]any{"events": 1}))

	second, err := s.BeginProcessing(ctx, begin("evt_1", `{"a":1}`))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.RecordID, second.RecordID)
	require.NotNil(t, second.Existing)
	assert.Equal(t, types.WebhookEventStatusProcessed, second.Existing.Status)
	assert.JSONEq(t, `{"events":1}`, string(second.Existing.Result))
	assert.NotNil(t, second.Existing.ProcessedAt)
}

func TestBeginProcessing_InFlightIsDuplicate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.BeginProcessing(ctx, begin("evt_2", `{}`))
	require.NoError(t, err)
	again, err := s.BeginProcessing(ctx, begin("evt_2", `{}`))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, types.WebhookEventStatusProcessing, again.Existing.Status)
}

func TestBeginProcessing_ResumesAfterFailure(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.BeginProcessing(ctx, begin("evt_3", `{"v":1}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, first.RecordID, errors.New("gateway timeout"), nil))

	failed, err := s.Get(ctx, first.RecordID)
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "gateway timeout", *failed.Error)

	retry := begin("evt_3", `{"v":2}`)
	retry.EventType = "payment_intent.succeeded.v2"
	resumed, err := s.BeginProcessing(ctx, retry)
	require.NoError(t, err)
	assert.False(t, resumed.Duplicate)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, first.RecordID, resumed.RecordID)

	row, err := s.Get(ctx, first.RecordID)
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventStatusProcessing, row.Status)
	assert.Nil(t, row.Error)
	assert.Equal(t, 2, row.Attempts)
	assert.Equal(t, "payment_intent.succeeded.v2", row.EventType)
	assert.NotEqual(t, failed.PayloadHash, row.PayloadHash)

	// a concurrent redelivery while the resumed attempt runs is a duplicate
	again, err := s.BeginProcessing(ctx, retry)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
}

func TestBeginProcessing_ConcurrentDeliveriesSingleWinner(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Begin, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.BeginProcessing(ctx, begin("evt_race", `{}`))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range n {
		require.NoError(t, errs[i])
		if !results[i].Duplicate {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestBeginProcessing_ProvidersDoNotCollide(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.BeginProcessing(ctx, begin("shared", `{}`))
	require.NoError(t, err)
	req := begin("shared", `{}`)
	req.Provider = types.PaymentProviderPaystack
	b, err := s.BeginProcessing(ctx, req)
	require.NoError(t, err)
	assert.False(t, b.Duplicate)
	assert.NotEqual(t, a.RecordID, b.RecordID)
}

func TestBeginProcessing_RequiresEventID(t *testing.T) {
	s := newService(t)
	_, err := s.BeginProcessing(context.Background(), begin("", `{}`))
	require.Error(t, err)
}

func TestMarkProcessed_UnknownRecord(t *testing.T) {
	s := newService(t)
	require.Error(t, s.MarkProcessed(context.Background(), "missing", nil))
}

func TestList_FiltersAndIgnoresUnknownFields(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ok, err := s.BeginProcessing(ctx, begin("evt_a", `{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, ok.RecordID, nil))
	bad, err := s.BeginProcessing(ctx, begin("evt_b", `{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, bad.RecordID, errors.New("boom"), nil))

	out, err := s.List(ctx, &ListRequest{Filters: types.Filters{
		{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(types.WebhookEventStatusFailed)}},
		{Field: "payload_hash; DROP TABLE webhook_event", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "evt_b", out.Items[0].ExternalEventID)

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
}
