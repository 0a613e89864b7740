package stripepay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/types"
)

type Options struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

type Gateway struct {
	factory *ClientFactory
	opts    Options
}

var _ gateway.Gateway = (*Gateway)(nil)

func NewGateway(factory *ClientFactory, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Gateway{factory: factory, opts: opts}
}

func (g *Gateway) Provider() types.PaymentProvider { return types.PaymentProviderStripe }

func (g *Gateway) clients() *Clients { return g.factory.For(g.opts.SecretKey) }

func (g *Gateway) fail(op string, err error) error {
	return apperr.Gateway(string(types.PaymentProviderStripe), fmt.Errorf("%s: %w", op, err))
}

func (g *Gateway) urls(req *gateway.CheckoutRequest) (string, string) {
	success, cancel := req.SuccessURL, req.CancelURL
	if success == "" {
		success = g.opts.SuccessURL
	}
	if cancel == "" {
		cancel = g.opts.CancelURL
	}
	return success, cancel
}

// lineItem prices the whole amount as quantity units when it divides evenly,
// otherwise as a single unit.
func lineItem(req *gateway.CheckoutRequest) (unit int64, qty int64) {
	total := money.ToMinorUnits(req.Amount, req.Currency)
	qty = int64(req.Quantity)
	if qty <= 1 || total%qty != 0 {
		return total, 1
	}
	return total / qty, qty
}

func (g *Gateway) CreateCheckout(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	success, cancelURL := g.urls(req)
	unit, qty := lineItem(req)
	md := req.Correlation.Metadata()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(success),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(req.Currency)),
				UnitAmount:  stripe.Int64(unit),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Description)},
			},
			Quantity: stripe.Int64(qty),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: md},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Metadata = md
	params.Context = ctx
	params.IdempotencyKey = stripe.String("checkout_" + req.Reference)

	sess, err := g.clients().Sessions.New(params)
	if err != nil {
		return nil, g.fail("create checkout session", err)
	}
	out := &gateway.CheckoutSession{ProviderRef: sess.ID, CheckoutURL: sess.URL}
	if sess.Customer != nil {
		out.ProviderCustomerID = sess.Customer.ID
	}
	return out, nil
}

func recurringParams(interval types.RecurringInterval) *stripe.CheckoutSessionLineItemPriceDataRecurringParams {
	p := &stripe.CheckoutSessionLineItemPriceDataRecurringParams{IntervalCount: stripe.Int64(1)}
	switch interval {
	case types.RecurringIntervalWeekly:
		p.Interval = stripe.String("week")
	case types.RecurringIntervalQuarterly:
		p.Interval = stripe.String("month")
		p.IntervalCount = stripe.Int64(3)
	case types.RecurringIntervalYearly:
		p.Interval = stripe.String("year")
	default:
		p.Interval = stripe.String("month")
	}
	return p
}

func (g *Gateway) CreateRecurringCheckout(ctx context.Context, req *gateway.RecurringCheckoutRequest) (*gateway.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	success, cancelURL := g.urls(&req.CheckoutRequest)
	md := req.Correlation.Metadata()
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if req.PriceRef != "" {
		item.Price = stripe.String(req.PriceRef)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(strings.ToLower(req.Currency)),
			UnitAmount:  stripe.Int64(money.ToMinorUnits(req.Amount, req.Currency)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Description)},
			Recurring:   recurringParams(req.Interval),
		}
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(success),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{item},
		SubscriptionData:  &stripe.CheckoutSessionSubscriptionDataParams{Metadata: md},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Metadata = md
	params.Context = ctx
	params.IdempotencyKey = stripe.String("subscription_checkout_" + req.Reference)

	sess, err := g.clients().Sessions.New(params)
	if err != nil {
		return nil, g.fail("create subscription checkout session", err)
	}
	out := &gateway.CheckoutSession{ProviderRef: sess.ID, CheckoutURL: sess.URL, ProviderPlanRef: req.PriceRef}
	if sess.Customer != nil {
		out.ProviderCustomerID = sess.Customer.ID
	}
	return out, nil
}

// stripe only accepts a fixed set of refund reasons; anything else travels
// in metadata.
func refundReason(reason string) string {
	switch reason {
	case "duplicate", "fraudulent", "requested_by_customer":
		return reason
	}
	return "requested_by_customer"
}

func (g *Gateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	params := &stripe.RefundParams{Reason: stripe.String(refundReason(req.Reason))}
	if strings.HasPrefix(req.PaymentRef, "ch_") || strings.HasPrefix(req.PaymentRef, "py_") {
		params.Charge = stripe.String(req.PaymentRef)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentRef)
	}
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(money.ToMinorUnits(req.Amount, req.Currency))
	}
	md := req.Correlation.Metadata()
	if req.Reason != "" {
		md["reason"] = req.Reason
	}
	params.Metadata = md
	params.Context = ctx

	r, err := g.clients().Refunds.New(params)
	if err != nil {
		return nil, g.fail("create refund", err)
	}
	currency := strings.ToUpper(string(r.Currency))
	return &gateway.RefundResult{
		ProviderRef: r.ID,
		Status:      string(r.Status),
		Amount:      money.FromMinorUnits(r.Amount, currency),
		Currency:    currency,
	}, nil
}

func (g *Gateway) ResolvePaymentReference(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, "cs_") {
		return ref, nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.clients().Sessions.Get(ref, params)
	if err != nil {
		return "", g.fail("retrieve checkout session", err)
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return "", g.fail("retrieve checkout session", fmt.Errorf("session %s has no payment intent", ref))
	}
	return sess.PaymentIntent.ID, nil
}

func (g *Gateway) FetchSubscription(ctx context.Context, ref string) (*gateway.SubscriptionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.clients().Subscriptions.Get(ref, params)
	if err != nil {
		return nil, g.fail("retrieve subscription", err)
	}
	snap := &gateway.SubscriptionSnapshot{
		ProviderRef: sub.ID,
		Status:      string(sub.Status),
		Correlation: gateway.CorrelationFromMetadata(sub.Metadata),
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.LastResponse != nil && len(sub.LastResponse.RawJSON) > 0 {
		var obj subscriptionObject
		if err := json.Unmarshal(sub.LastResponse.RawJSON, &obj); err == nil {
			snap.PriceRef = obj.priceID()
			snap.CurrentPeriodStart, snap.CurrentPeriodEnd = obj.period()
		}
	}
	return snap, nil
}
