// Package realtime fans church-scoped events out to connected dashboards
// through Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/logctx"
)

// Event types published to church dashboards.
const (
	EventDonationCompleted  = "donation.completed"
	EventDonationRefunded   = "donation.refunded"
	EventTicketOrderPaid    = "ticket_order.paid"
	EventRecurringActivated = "recurring_donation.activated"
	EventRecurringUpdated   = "recurring_donation.updated"
	EventRefundUpdated      = "refund.updated"
	EventDisputeUpdated     = "dispute.updated"
)

type Event struct {
	ChurchID   string         `json:"church_id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
	log    *zap.SugaredLogger
}

func NewRedisPublisher(client redis.UniversalClient, prefix string, log *zap.SugaredLogger) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix, log: log}
}

// Channel is the pub/sub channel dashboards of churchID subscribe to.
func (p *RedisPublisher) Channel(churchID string) string {
	return fmt.Sprintf("%s:church:%s:events", p.prefix, churchID)
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.ChurchID), body).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	logctx.FromCtx(ctx, p.log).Debugw("realtime_published", "type", ev.Type, "church_id", ev.ChurchID)
	return nil
}

// Nop drops events; used when no Redis address is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Batch collects events produced inside a database transaction so they are
// only published once it commits.
type Batch struct {
	events []Event
}

func (b *Batch) Add(churchID, typ string, payload map[string]any) {
	b.events = append(b.events, Event{ChurchID: churchID, Type: typ, Payload: payload, OccurredAt: time.Now().UTC()})
}

func (b *Batch) Events() []Event { return b.events }

// Flush publishes every collected event. Publishing is best effort: a failure
// is logged and never undoes the committed state.
func (b *Batch) Flush(ctx context.Context, pub Publisher, log *zap.SugaredLogger) {
	if pub == nil {
		return
	}
	for _, ev := range b.events {
		if err := pub.Publish(ctx, ev); err != nil {
			logctx.FromCtx(ctx, log).Warnw("realtime_publish_failed", "type", ev.Type, "church_id", ev.ChurchID, "error", err)
		}
	}
	b.events = nil
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) Publisher {
	if cfg.Redis.Addr == "" {
		log.Infow("realtime publisher disabled, no redis address configured")
		return Nop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// dashboards degrade to polling; payments must not wait on redis
				log.Warnw("redis ping failed", "addr", cfg.Redis.Addr, "error", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("closing redis client")
			return client.Close()
		},
	})
	return NewRedisPublisher(client, cfg.Redis.ChannelPrefix, log)
}

var Module = fx.Options(
	fx.Provide(newPublisher),
)
