package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/offertory/pkg/types"
)

// PaymentIntent is the local correlation record created before any gateway
// call. ProviderRef holds a "pending_<uuid>" placeholder until the gateway
// returns its own reference.
type PaymentIntent struct {
	ID                  string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID            string                    `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	Purpose             types.PaymentPurpose      `gorm:"column:purpose;type:varchar(32);not null" json:"purpose"`
	Amount              decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency            string                    `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Provider            types.PaymentProvider     `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_payment_intent_provider_ref,priority:1" json:"provider"`
	ProviderRef         string                    `gorm:"column:provider_ref;type:varchar(255);not null;uniqueIndex:idx_payment_intent_provider_ref,priority:2" json:"provider_ref"`
	ProviderChargeRef   *string                   `gorm:"column:provider_charge_ref;type:varchar(255);index" json:"provider_charge_ref"`
	ProviderCustomerID  *string                   `gorm:"column:provider_customer_id;type:varchar(255)" json:"provider_customer_id"`
	Status              types.PaymentIntentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CheckoutURL         *string                   `gorm:"column:checkout_url;type:text" json:"checkout_url"`
	DonationID          *string                   `gorm:"column:donation_id;type:uuid;index" json:"donation_id"`
	TicketOrderID       *string                   `gorm:"column:ticket_order_id;type:uuid;index" json:"ticket_order_id"`
	RecurringDonationID *string                   `gorm:"column:recurring_donation_id;type:uuid;index" json:"recurring_donation_id"`
	FailureReason       *string                   `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	// Extra is debug passthrough only; nothing reads correlation from it.
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (PaymentIntent) TableName() string { return "payment_intent" }

type Donation struct {
	ID                  string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID            string                `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	Amount              decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency            string                `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status              types.DonationStatus  `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Provider            types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_donation_provider_ref,priority:1" json:"provider"`
	ProviderRef         string                `gorm:"column:provider_ref;type:varchar(255);not null;uniqueIndex:idx_donation_provider_ref,priority:2" json:"provider_ref"`
	ProviderChargeRef   *string               `gorm:"column:provider_charge_ref;type:varchar(255);index" json:"provider_charge_ref"`
	FundID              *string               `gorm:"column:fund_id;type:uuid" json:"fund_id"`
	CampaignID          *string               `gorm:"column:campaign_id;type:uuid" json:"campaign_id"`
	PledgeID            *string               `gorm:"column:pledge_id;type:uuid" json:"pledge_id"`
	RecurringDonationID *string               `gorm:"column:recurring_donation_id;type:uuid;index" json:"recurring_donation_id"`
	MemberID            *string               `gorm:"column:member_id;type:uuid" json:"member_id"`
	DonorName           string                `gorm:"column:donor_name;type:varchar(255)" json:"donor_name"`
	DonorEmail          string                `gorm:"column:donor_email;type:varchar(255)" json:"donor_email"`
	IsAnonymous         bool                  `gorm:"column:is_anonymous;not null;default:false" json:"is_anonymous"`
	Note                string                `gorm:"column:note;type:text" json:"note"`
	CompletedAt         *time.Time            `gorm:"column:completed_at" json:"completed_at"`
	RefundedAt          *time.Time            `gorm:"column:refunded_at" json:"refunded_at"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

func (Donation) TableName() string { return "donation" }

type RecurringDonation struct {
	ID                 string                  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID           string                  `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	MemberID           *string                 `gorm:"column:member_id;type:uuid" json:"member_id"`
	FundID             *string                 `gorm:"column:fund_id;type:uuid" json:"fund_id"`
	DonorName          string                  `gorm:"column:donor_name;type:varchar(255)" json:"donor_name"`
	DonorEmail         string                  `gorm:"column:donor_email;type:varchar(255)" json:"donor_email"`
	Amount             decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency           string                  `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Interval           types.RecurringInterval `gorm:"column:billing_interval;type:varchar(32);not null" json:"interval"`
	Status             types.RecurringStatus   `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Provider           types.PaymentProvider   `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	ProviderRef        *string                 `gorm:"column:provider_ref;type:varchar(255);index" json:"provider_ref"`
	ProviderPlanRef    *string                 `gorm:"column:provider_plan_ref;type:varchar(255);index" json:"provider_plan_ref"`
	ProviderCustomerID *string                 `gorm:"column:provider_customer_id;type:varchar(255)" json:"provider_customer_id"`
	NextChargeAt       *time.Time              `gorm:"column:next_charge_at" json:"next_charge_at"`
	LastChargeAt       *time.Time              `gorm:"column:last_charge_at" json:"last_charge_at"`
	CanceledAt         *time.Time              `gorm:"column:canceled_at" json:"canceled_at"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

func (RecurringDonation) TableName() string { return "recurring_donation" }

// Refund is keyed by (provider, provider_ref); Status is the provider's raw string.
type Refund struct {
	ID              string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID        *string               `gorm:"column:church_id;type:uuid;index" json:"church_id"`
	DonationID      *string               `gorm:"column:donation_id;type:uuid;index" json:"donation_id"`
	PaymentIntentID *string               `gorm:"column:payment_intent_id;type:uuid" json:"payment_intent_id"`
	Provider        types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_refund_provider_ref,priority:1" json:"provider"`
	ProviderRef     string                `gorm:"column:provider_ref;type:varchar(255);not null;uniqueIndex:idx_refund_provider_ref,priority:2" json:"provider_ref"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency        string                `gorm:"column:currency;type:varchar(3)" json:"currency"`
	Status          string                `gorm:"column:status;type:varchar(64);not null" json:"status"`
	Reason          *string               `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func (Refund) TableName() string { return "refund" }

type Dispute struct {
	ID              string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID        *string               `gorm:"column:church_id;type:uuid;index" json:"church_id"`
	DonationID      *string               `gorm:"column:donation_id;type:uuid;index" json:"donation_id"`
	PaymentIntentID *string               `gorm:"column:payment_intent_id;type:uuid" json:"payment_intent_id"`
	Provider        types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:idx_dispute_provider_ref,priority:1" json:"provider"`
	ProviderRef     string                `gorm:"column:provider_ref;type:varchar(255);not null;uniqueIndex:idx_dispute_provider_ref,priority:2" json:"provider_ref"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(12,2)" json:"amount"`
	Currency        string                `gorm:"column:currency;type:varchar(3)" json:"currency"`
	Status          string                `gorm:"column:status;type:varchar(64);not null" json:"status"`
	Reason          *string               `gorm:"column:reason;type:text" json:"reason"`
	EvidenceDueBy   *time.Time            `gorm:"column:evidence_due_by" json:"evidence_due_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func (Dispute) TableName() string { return "dispute" }
