package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the closed set of normalized webhook events. The reconciliation
// engine switches on the concrete type and never sees provider JSON.
type Event interface {
	Kind() EventKind
}

type EventKind string

const (
	KindCheckoutCompleted    EventKind = "checkout_completed"
	KindPaymentSucceeded     EventKind = "payment_succeeded"
	KindPaymentFailed        EventKind = "payment_failed"
	KindInvoicePaid          EventKind = "invoice_paid"
	KindInvoicePaymentFailed EventKind = "invoice_payment_failed"
	KindSubscriptionCreated  EventKind = "subscription_created"
	KindSubscriptionUpdated  EventKind = "subscription_updated"
	KindSubscriptionCanceled EventKind = "subscription_canceled"
	KindRefundUpdated        EventKind = "refund_updated"
	KindDisputeUpdated       EventKind = "dispute_updated"
)

// CheckoutCompleted is a hosted checkout reaching its end. Paid is false for
// asynchronous payment methods that settle later.
type CheckoutCompleted struct {
	SessionRef      string
	PaymentRef      string
	SubscriptionRef string
	CustomerRef     string
	Amount          decimal.Decimal
	Currency        string
	Paid            bool
	OccurredAt      time.Time
	Correlation     Correlation
}

type PaymentSucceeded struct {
	PaymentRef  string
	SessionRef  string
	CustomerRef string
	PlanRef     string
	Amount      decimal.Decimal
	Currency    string
	PaidAt      time.Time
	Correlation Correlation
}

type PaymentFailed struct {
	PaymentRef  string
	SessionRef  string
	Reason      string
	Correlation Correlation
}

// InvoicePaid is one charge of a recurring subscription. ChargeRef is the
// stable per-charge key (invoice id, or transaction reference where the
// provider has no invoice id on every charge).
type InvoicePaid struct {
	ChargeRef       string
	InvoiceRef      string
	PaymentRef      string
	SubscriptionRef string
	PlanRef         string
	CustomerRef     string
	PriceRef        string
	Amount          decimal.Decimal
	Currency        string
	PaidAt          time.Time
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	Correlation     Correlation
}

type InvoicePaymentFailed struct {
	InvoiceRef      string
	SubscriptionRef string
	PlanRef         string
	Reason          string
	Correlation     Correlation
}

// SubscriptionState is shared by subscription create and update events.
// Status is the provider's raw status string.
type SubscriptionState struct {
	SubscriptionRef   string
	PlanRef           string
	PriceRef          string
	CustomerRef       string
	Status            string
	CancelAtPeriodEnd bool
	NextChargeAt      *time.Time
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	Correlation       Correlation
}

type SubscriptionCreated struct{ SubscriptionState }

type SubscriptionUpdated struct{ SubscriptionState }

type SubscriptionCanceled struct {
	SubscriptionRef string
	PlanRef         string
	CanceledAt      time.Time
	Correlation     Correlation
}

type RefundUpdated struct {
	RefundRef   string
	PaymentRef  string
	ChargeRef   string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	Reason      string
	Correlation Correlation
}

type DisputeUpdated struct {
	DisputeRef    string
	PaymentRef    string
	ChargeRef     string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	Reason        string
	EvidenceDueBy *time.Time
	Correlation   Correlation
}

func (CheckoutCompleted) Kind() EventKind    { return KindCheckoutCompleted }
func (PaymentSucceeded) Kind() EventKind     { return KindPaymentSucceeded }
func (PaymentFailed) Kind() EventKind        { return KindPaymentFailed }
func (InvoicePaid) Kind() EventKind          { return KindInvoicePaid }
func (InvoicePaymentFailed) Kind() EventKind { return KindInvoicePaymentFailed }
func (SubscriptionCreated) Kind() EventKind  { return KindSubscriptionCreated }
func (SubscriptionUpdated) Kind() EventKind  { return KindSubscriptionUpdated }
func (SubscriptionCanceled) Kind() EventKind { return KindSubscriptionCanceled }
func (RefundUpdated) Kind() EventKind        { return KindRefundUpdated }
func (DisputeUpdated) Kind() EventKind       { return KindDisputeUpdated }
