package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID   *string        `gorm:"column:church_id;type:uuid;index" json:"church_id"`
	ActorID    *string        `gorm:"column:actor_id;type:varchar(64)" json:"actor_id"`
	Action     string         `gorm:"column:action;type:varchar(128);not null;index:idx_audit_target_action,priority:2" json:"action"`
	TargetType string         `gorm:"column:target_type;type:varchar(64);not null" json:"target_type"`
	TargetID   string         `gorm:"column:target_id;type:varchar(255);not null;index:idx_audit_target_action,priority:1" json:"target_id"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }

type OutboundMessageStatus string

const (
	OutboundMessageStatusQueued OutboundMessageStatus = "QUEUED"
	OutboundMessageStatusSent   OutboundMessageStatus = "SENT"
)

// OutboundMessage is a queued notice picked up by the messaging worker.
type OutboundMessage struct {
	ID        string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  *string               `gorm:"column:church_id;type:uuid;index" json:"church_id"`
	Channel   string                `gorm:"column:channel;type:varchar(32);not null" json:"channel"`
	Recipient string                `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	Template  string                `gorm:"column:template;type:varchar(128);not null" json:"template"`
	Subject   string                `gorm:"column:subject;type:varchar(255)" json:"subject"`
	DedupeKey *string               `gorm:"column:dedupe_key;type:varchar(255);index" json:"dedupe_key"`
	Metadata  datatypes.JSON        `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Status    OutboundMessageStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (OutboundMessage) TableName() string { return "outbound_message" }
