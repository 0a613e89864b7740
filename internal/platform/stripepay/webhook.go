package stripepay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/types"
)

const SignatureHeader = "Stripe-Signature"

func (g *Gateway) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*gateway.Delivery, error) {
	if g.opts.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret not configured", apperr.ErrInvalidSignature)
	}
	// the account may be pinned to a newer API version than the SDK
	event, err := webhook.ConstructEventWithOptions(payload, header.Get(SignatureHeader), g.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidSignature, err)
	}
	d := &gateway.Delivery{
		Provider:        types.PaymentProviderStripe,
		ExternalEventID: event.ID,
		EventType:       string(event.Type),
	}
	if event.Data == nil {
		return d, nil
	}
	occurred := unixOr(event.Created, time.Now().UTC())
	events, err := normalize(string(event.Type), event.Data.Raw, occurred)
	if err != nil {
		return nil, fmt.Errorf("%w: decode stripe %s: %v", apperr.ErrValidation, event.Type, err)
	}
	d.Events = events
	return d, nil
}

func normalize(eventType string, raw json.RawMessage, occurred time.Time) ([]gateway.Event, error) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s checkoutSessionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		cur := strings.ToUpper(s.Currency)
		return []gateway.Event{gateway.CheckoutCompleted{
			SessionRef:      s.ID,
			PaymentRef:      s.PaymentIntent.ID,
			SubscriptionRef: s.Subscription.ID,
			CustomerRef:     s.Customer.ID,
			Amount:          money.FromMinorUnits(s.AmountTotal, cur),
			Currency:        cur,
			Paid:            s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required",
			OccurredAt:      occurred,
			Correlation:     gateway.CorrelationFromMetadata(s.Metadata),
		}}, nil

	case "checkout.session.async_payment_failed", "checkout.session.expired":
		var s checkoutSessionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		reason := "checkout session expired"
		if eventType == "checkout.session.async_payment_failed" {
			reason = "asynchronous payment failed"
		}
		return []gateway.Event{gateway.PaymentFailed{
			SessionRef:  s.ID,
			PaymentRef:  s.PaymentIntent.ID,
			Reason:      reason,
			Correlation: gateway.CorrelationFromMetadata(s.Metadata),
		}}, nil

	case "payment_intent.succeeded":
		var pi paymentIntentObject
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, err
		}
		cur := strings.ToUpper(pi.Currency)
		amt := pi.AmountReceived
		if amt == 0 {
			amt = pi.Amount
		}
		return []gateway.Event{gateway.PaymentSucceeded{
			PaymentRef:  pi.ID,
			CustomerRef: pi.Customer.ID,
			Amount:      money.FromMinorUnits(amt, cur),
			Currency:    cur,
			PaidAt:      occurred,
			Correlation: gateway.CorrelationFromMetadata(pi.Metadata),
		}}, nil

	case "payment_intent.payment_failed", "payment_intent.canceled":
		var pi paymentIntentObject
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, err
		}
		reason := "payment canceled"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Message != "" {
			reason = pi.LastPaymentError.Message
		} else if eventType == "payment_intent.payment_failed" {
			reason = "payment failed"
		}
		return []gateway.Event{gateway.PaymentFailed{
			PaymentRef:  pi.ID,
			Reason:      reason,
			Correlation: gateway.CorrelationFromMetadata(pi.Metadata),
		}}, nil

	case "invoice.paid", "invoice.payment_succeeded":
		var in invoiceObject
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		if in.subscriptionID() == "" {
			return nil, nil
		}
		cur := strings.ToUpper(in.Currency)
		start, end := in.period()
		return []gateway.Event{gateway.InvoicePaid{
			ChargeRef:       in.ID,
			InvoiceRef:      in.ID,
			PaymentRef:      in.paymentIntentID(),
			SubscriptionRef: in.subscriptionID(),
			CustomerRef:     in.Customer.ID,
			PriceRef:        in.priceID(),
			Amount:          money.FromMinorUnits(in.AmountPaid, cur),
			Currency:        cur,
			PaidAt:          unixOr(in.StatusTransitions.PaidAt, occurred),
			PeriodStart:     start,
			PeriodEnd:       end,
			Correlation:     gateway.CorrelationFromMetadata(in.subscriptionMetadata()).Merge(gateway.CorrelationFromMetadata(in.Metadata)),
		}}, nil

	case "invoice.payment_failed":
		var in invoiceObject
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		if in.subscriptionID() == "" {
			return nil, nil
		}
		reason := "invoice payment failed"
		if in.LastFinalizationError != nil && in.LastFinalizationError.Message != "" {
			reason = in.LastFinalizationError.Message
		}
		return []gateway.Event{gateway.InvoicePaymentFailed{
			InvoiceRef:      in.ID,
			SubscriptionRef: in.subscriptionID(),
			Reason:          reason,
			Correlation:     gateway.CorrelationFromMetadata(in.subscriptionMetadata()),
		}}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.paused", "customer.subscription.resumed":
		var s subscriptionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		start, end := s.period()
		state := gateway.SubscriptionState{
			SubscriptionRef:   s.ID,
			PriceRef:          s.priceID(),
			CustomerRef:       s.Customer.ID,
			Status:            s.Status,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			NextChargeAt:      end,
			PeriodStart:       start,
			PeriodEnd:         end,
			Correlation:       gateway.CorrelationFromMetadata(s.Metadata),
		}
		if eventType == "customer.subscription.created" {
			return []gateway.Event{gateway.SubscriptionCreated{SubscriptionState: state}}, nil
		}
		return []gateway.Event{gateway.SubscriptionUpdated{SubscriptionState: state}}, nil

	case "customer.subscription.deleted":
		var s subscriptionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		canceled := unixOr(s.CanceledAt, occurred)
		if s.EndedAt > 0 {
			canceled = unixOr(s.EndedAt, occurred)
		}
		return []gateway.Event{gateway.SubscriptionCanceled{
			SubscriptionRef: s.ID,
			CanceledAt:      canceled,
			Correlation:     gateway.CorrelationFromMetadata(s.Metadata),
		}}, nil

	case "charge.refunded":
		var ch chargeObject
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, err
		}
		if ch.Refunds == nil {
			return nil, nil
		}
		out := make([]gateway.Event, 0, len(ch.Refunds.Data))
		for _, r := range ch.Refunds.Data {
			ev := refundEvent(r)
			if ev.ChargeRef == "" {
				ev.ChargeRef = ch.ID
			}
			if ev.PaymentRef == "" {
				ev.PaymentRef = ch.PaymentIntent.ID
			}
			ev.Correlation = ev.Correlation.Merge(gateway.CorrelationFromMetadata(ch.Metadata))
			out = append(out, ev)
		}
		return out, nil

	case "refund.created", "refund.updated", "refund.failed", "charge.refund.updated":
		var r refundObject
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return []gateway.Event{refundEvent(r)}, nil

	case "charge.dispute.created", "charge.dispute.updated", "charge.dispute.closed",
		"charge.dispute.funds_withdrawn", "charge.dispute.funds_reinstated":
		var dp disputeObject
		if err := json.Unmarshal(raw, &dp); err != nil {
			return nil, err
		}
		cur := strings.ToUpper(dp.Currency)
		return []gateway.Event{gateway.DisputeUpdated{
			DisputeRef:    dp.ID,
			PaymentRef:    dp.PaymentIntent.ID,
			ChargeRef:     dp.Charge.ID,
			Amount:        money.FromMinorUnits(dp.Amount, cur),
			Currency:      cur,
			Status:        dp.Status,
			Reason:        dp.Reason,
			EvidenceDueBy: unixPtr(dp.EvidenceDetails.DueBy),
			Correlation:   gateway.CorrelationFromMetadata(dp.Metadata),
		}}, nil
	}
	return nil, nil
}

func refundEvent(r refundObject) gateway.RefundUpdated {
	cur := strings.ToUpper(r.Currency)
	reason := r.Reason
	if v := r.Metadata["reason"]; v != "" {
		reason = v
	}
	return gateway.RefundUpdated{
		RefundRef:   r.ID,
		PaymentRef:  r.PaymentIntent.ID,
		ChargeRef:   r.Charge.ID,
		Amount:      money.FromMinorUnits(r.Amount, cur),
		Currency:    cur,
		Status:      r.Status,
		Reason:      reason,
		Correlation: gateway.CorrelationFromMetadata(r.Metadata),
	}
}
