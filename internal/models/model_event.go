package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/offertory/pkg/types"
)

type Event struct {
	ID       string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID string    `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	Title    string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	StartsAt time.Time `gorm:"column:starts_at" json:"starts_at"`
	// Capacity is the seat limit across all ticket types; nil means unlimited.
	Capacity     *int      `gorm:"column:capacity" json:"capacity"`
	RequiresRSVP bool      `gorm:"column:requires_rsvp;not null;default:false" json:"requires_rsvp"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Event) TableName() string { return "event" }

type TicketType struct {
	ID        string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  string          `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	EventID   string          `gorm:"column:event_id;type:uuid;not null;index" json:"event_id"`
	Name      string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Currency  string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Capacity  *int            `gorm:"column:capacity" json:"capacity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (TicketType) TableName() string { return "ticket_type" }

type EventRSVP struct {
	ID        string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  string           `gorm:"column:church_id;type:uuid;not null" json:"church_id"`
	EventID   string           `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_event_rsvp_event_member,priority:1" json:"event_id"`
	MemberID  string           `gorm:"column:member_id;type:uuid;not null;uniqueIndex:idx_event_rsvp_event_member,priority:2" json:"member_id"`
	Status    types.RSVPStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Guests    int              `gorm:"column:guests;not null;default:0" json:"guests"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (EventRSVP) TableName() string { return "event_rsvp" }

type EventTicketOrder struct {
	ID           string                  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID     string                  `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	EventID      string                  `gorm:"column:event_id;type:uuid;not null;index" json:"event_id"`
	TicketTypeID string                  `gorm:"column:ticket_type_id;type:uuid;not null;index" json:"ticket_type_id"`
	MemberID     *string                 `gorm:"column:member_id;type:uuid" json:"member_id"`
	BuyerName    string                  `gorm:"column:buyer_name;type:varchar(255)" json:"buyer_name"`
	BuyerEmail   string                  `gorm:"column:buyer_email;type:varchar(255)" json:"buyer_email"`
	Quantity     int                     `gorm:"column:quantity;not null" json:"quantity"`
	Amount       decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency     string                  `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status       types.TicketOrderStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Provider     types.PaymentProvider   `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	PaidAt       *time.Time              `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (EventTicketOrder) TableName() string { return "event_ticket_order" }
