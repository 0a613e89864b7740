package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestBatchFlush(t *testing.T) {
	var b Batch
	b.Add("c1", "donation.completed", map[string]any{"donation_id": "d1"})
	b.Add("c1", "ticket_order.paid", nil)

	pub := &recordingPublisher{err: errors.New("redis down")}
	b.Flush(context.Background(), pub, zap.NewNop().Sugar())

	require.Len(t, pub.events, 2)
	require.Equal(t, "donation.completed", pub.events[0].Type)
	require.False(t, pub.events[0].OccurredAt.IsZero())
	require.Empty(t, b.Events())
}

func TestRedisPublisherChannel(t *testing.T) {
	p := NewRedisPublisher(nil, "offertory", zap.NewNop().Sugar())
	require.Equal(t, "offertory:church:c1:events", p.Channel("c1"))
	require.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
