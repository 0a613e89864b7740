package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/offertory/pkg/types"
)

// WebhookEvent is one row of the idempotency ledger.
type WebhookEvent struct {
	ID              string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider        types.PaymentProvider    `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_webhook_event_provider_event,priority:1" json:"provider"`
	ExternalEventID string                   `gorm:"column:external_event_id;type:varchar(255);not null;uniqueIndex:idx_webhook_event_provider_event,priority:2" json:"external_event_id"`
	Scope           types.GatewayScope       `gorm:"column:scope;type:varchar(32);not null" json:"scope"`
	EventType       string                   `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	PayloadHash     string                   `gorm:"column:payload_hash;type:varchar(64);not null" json:"payload_hash"`
	Status          types.WebhookEventStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Result          datatypes.JSON           `gorm:"column:result;type:jsonb" json:"result"`
	Error           *string                  `gorm:"column:error;type:text" json:"error"`
	Attempts        int                      `gorm:"column:attempts;not null;default:1" json:"attempts"`
	TraceID         string                   `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ReceivedAt      time.Time                `gorm:"column:received_at;not null" json:"received_at"`
	ProcessedAt     *time.Time               `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
