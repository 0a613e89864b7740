// Package gateway defines the provider-neutral contract every payment
// gateway adapter implements, and the normalized events they emit.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/offertory/pkg/types"
)

type Gateway interface {
	Provider() types.PaymentProvider
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	CreateRecurringCheckout(ctx context.Context, req *RecurringCheckoutRequest) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
	// ResolvePaymentReference maps a checkout-session style reference to the
	// underlying charge/payment id refunds and disputes refer to.
	ResolvePaymentReference(ctx context.Context, ref string) (string, error)
	FetchSubscription(ctx context.Context, ref string) (*SubscriptionSnapshot, error)
	// ParseWebhook verifies the signature and normalizes the payload.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Delivery, error)
}

type CheckoutRequest struct {
	// Reference is the local payment intent id; gateways use it as the
	// idempotency key or merchant reference.
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Quantity      int
	Description   string
	CustomerEmail string
	CustomerName  string
	SuccessURL    string
	CancelURL     string
	Correlation   Correlation
}

type RecurringCheckoutRequest struct {
	CheckoutRequest
	Interval types.RecurringInterval
	// PriceRef reuses an existing provider price/plan instead of creating one.
	PriceRef string
}

type CheckoutSession struct {
	ProviderRef        string `json:"provider_ref"`
	CheckoutURL        string `json:"checkout_url"`
	ProviderPlanRef    string `json:"provider_plan_ref,omitempty"`
	ProviderCustomerID string `json:"provider_customer_id,omitempty"`
}

type RefundRequest struct {
	PaymentRef  string
	Amount      decimal.Decimal
	Currency    string
	Reason      string
	Correlation Correlation
}

type RefundResult struct {
	ProviderRef string
	Status      string
	Amount      decimal.Decimal
	Currency    string
}

type SubscriptionSnapshot struct {
	ProviderRef        string
	Status             string
	CustomerID         string
	PriceRef           string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	Correlation        Correlation
}

// Delivery is one verified webhook request. A delivery may carry several
// events (a refunded charge lists every refund) or none for event types the
// service does not act on.
type Delivery struct {
	Provider        types.PaymentProvider
	ExternalEventID string
	EventType       string
	Events          []Event
}
