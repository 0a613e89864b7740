package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/types"
)

const SignatureHeader = "x-paystack-signature"

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Sign returns the signature Paystack sends for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// eventID synthesizes a stable id: Paystack deliveries carry none. Identical
// payloads for the same object collapse to the same id.
func eventID(eventType string, ids []string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s:%s", eventType, strings.Join(ids, ","), hex.EncodeToString(sum[:8]))
}

func (g *Gateway) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*gateway.Delivery, error) {
	if !verify(g.opts.SecretKey, payload, header.Get(SignatureHeader)) {
		return nil, fmt.Errorf("%w: paystack signature mismatch", apperr.ErrInvalidSignature)
	}
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperr.Validation("decode paystack webhook: %v", err)
	}
	if env.Event == "" {
		return nil, apperr.Validation("paystack webhook without event type")
	}

	events, ids, err := normalize(env.Event, env.Data, time.Now().UTC())
	if err != nil {
		return nil, apperr.Validation("decode paystack %s: %v", env.Event, err)
	}
	return &gateway.Delivery{
		Provider:        types.PaymentProviderPaystack,
		ExternalEventID: eventID(env.Event, ids, payload),
		EventType:       env.Event,
		Events:          events,
	}, nil
}

func normalize(eventType string, raw json.RawMessage, now time.Time) ([]gateway.Event, []string, error) {
	switch {
	case eventType == "charge.success":
		var tx transactionData
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, nil, err
		}
		cur := money.Normalize(tx.Currency)
		corr := gateway.CorrelationFromMetadata(tx.Metadata)
		paidAt := tx.PaidAt
		if paidAt == "" {
			paidAt = tx.PaidAtAlt
		}
		ids := []string{tx.Reference}
		// renewal charges of a plan carry no checkout metadata
		if corr.PaymentIntentID == "" && tx.Plan.PlanCode != "" {
			return []gateway.Event{gateway.InvoicePaid{
				ChargeRef:   tx.Reference,
				PaymentRef:  tx.Reference,
				PlanRef:     tx.Plan.PlanCode,
				CustomerRef: tx.Customer.CustomerCode,
				PriceRef:    tx.Plan.PlanCode,
				Amount:      money.FromMinorUnits(int64(tx.Amount), cur),
				Currency:    cur,
				PaidAt:      timeOr(paidAt, now),
				Correlation: corr,
			}}, ids, nil
		}
		return []gateway.Event{gateway.PaymentSucceeded{
			PaymentRef:  tx.Reference,
			SessionRef:  tx.Reference,
			CustomerRef: tx.Customer.CustomerCode,
			PlanRef:     tx.Plan.PlanCode,
			Amount:      money.FromMinorUnits(int64(tx.Amount), cur),
			Currency:    cur,
			PaidAt:      timeOr(paidAt, now),
			Correlation: corr,
		}}, ids, nil

	case eventType == "charge.failed":
		var tx transactionData
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, nil, err
		}
		reason := tx.GatewayResponse
		if reason == "" {
			reason = "payment failed"
		}
		return []gateway.Event{gateway.PaymentFailed{
			PaymentRef:  tx.Reference,
			SessionRef:  tx.Reference,
			Reason:      reason,
			Correlation: gateway.CorrelationFromMetadata(tx.Metadata),
		}}, []string{tx.Reference}, nil

	case eventType == "subscription.create", eventType == "subscription.not_renew", eventType == "subscription.expiring_cards":
		var s subscriptionData
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, nil, err
		}
		next := parseTime(s.NextPaymentDate)
		state := gateway.SubscriptionState{
			SubscriptionRef:   s.SubscriptionCode,
			PlanRef:           s.Plan.PlanCode,
			PriceRef:          s.Plan.PlanCode,
			CustomerRef:       s.Customer.CustomerCode,
			Status:            s.Status,
			CancelAtPeriodEnd: eventType == "subscription.not_renew" || s.Status == "non-renewing",
			NextChargeAt:      next,
			PeriodStart:       parseTime(s.CreatedAt),
			PeriodEnd:         next,
			Correlation:       gateway.CorrelationFromMetadata(s.Metadata),
		}
		ids := []string{s.SubscriptionCode}
		if eventType == "subscription.create" {
			return []gateway.Event{gateway.SubscriptionCreated{SubscriptionState: state}}, ids, nil
		}
		return []gateway.Event{gateway.SubscriptionUpdated{SubscriptionState: state}}, ids, nil

	case eventType == "subscription.disable":
		var s subscriptionData
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, nil, err
		}
		return []gateway.Event{gateway.SubscriptionCanceled{
			SubscriptionRef: s.SubscriptionCode,
			PlanRef:         s.Plan.PlanCode,
			CanceledAt:      timeOr(s.CancelledAt, now),
			Correlation:     gateway.CorrelationFromMetadata(s.Metadata),
		}}, []string{s.SubscriptionCode}, nil

	case eventType == "invoice.update", eventType == "invoice.create":
		var in invoiceData
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, nil, err
		}
		ids := []string{in.InvoiceCode, in.Transaction.Reference}
		if !in.Paid && !strings.EqualFold(in.Status, "success") {
			return nil, ids, nil
		}
		ref := in.Transaction.Reference
		if ref == "" {
			ref = in.InvoiceCode
		}
		currency := in.Currency
		if currency == "" {
			currency = in.Transaction.Currency
		}
		cur := money.Normalize(currency)
		return []gateway.Event{gateway.InvoicePaid{
			ChargeRef:       ref,
			InvoiceRef:      in.InvoiceCode,
			PaymentRef:      in.Transaction.Reference,
			SubscriptionRef: in.Subscription.SubscriptionCode,
			PlanRef:         in.Subscription.Plan.PlanCode,
			CustomerRef:     in.Customer.CustomerCode,
			PriceRef:        in.Subscription.Plan.PlanCode,
			Amount:          money.FromMinorUnits(int64(in.Amount), cur),
			Currency:        cur,
			PaidAt:          timeOr(in.PaidAt, now),
			PeriodStart:     parseTime(in.PeriodStart),
			PeriodEnd:       parseTime(in.PeriodEnd),
			Correlation:     gateway.CorrelationFromMetadata(in.Transaction.Metadata),
		}}, ids, nil

	case eventType == "invoice.payment_failed":
		var in invoiceData
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, nil, err
		}
		reason := in.Description
		if reason == "" {
			reason = "invoice payment failed"
		}
		return []gateway.Event{gateway.InvoicePaymentFailed{
			InvoiceRef:      in.InvoiceCode,
			SubscriptionRef: in.Subscription.SubscriptionCode,
			PlanRef:         in.Subscription.Plan.PlanCode,
			Reason:          reason,
			Correlation:     gateway.CorrelationFromMetadata(in.Transaction.Metadata),
		}}, []string{in.InvoiceCode}, nil

	case strings.HasPrefix(eventType, "refund."):
		var r refundData
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, nil, err
		}
		cur := money.Normalize(r.Currency)
		return []gateway.Event{gateway.RefundUpdated{
			RefundRef:  r.key(),
			PaymentRef: r.transactionReference(),
			ChargeRef:  r.transactionReference(),
			Amount:     money.FromMinorUnits(int64(r.Amount), cur),
			Currency:   cur,
			Status:     r.Status,
			Reason:     r.MerchantNote,
		}}, []string{r.key(), r.Status}, nil

	case strings.HasPrefix(eventType, "charge.dispute."):
		var d disputeData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, nil, err
		}
		currency := d.Currency
		if currency == "" {
			currency = d.Transaction.Currency
		}
		cur := money.Normalize(currency)
		amount := d.RefundAmount
		if amount == 0 {
			amount = d.Transaction.Amount
		}
		due := d.DueAt
		if due == "" {
			due = d.DueAtAlt
		}
		status := d.Status
		if d.Resolution != "" {
			status = d.Status + ":" + d.Resolution
		}
		return []gateway.Event{gateway.DisputeUpdated{
			DisputeRef:    d.ID.String(),
			PaymentRef:    d.Transaction.Reference,
			ChargeRef:     d.Transaction.Reference,
			Amount:        money.FromMinorUnits(int64(amount), cur),
			Currency:      cur,
			Status:        status,
			Reason:        d.Category,
			EvidenceDueBy: parseTime(due),
			Correlation:   gateway.CorrelationFromMetadata(d.Transaction.Metadata),
		}}, []string{d.ID.String(), status}, nil
	}
	return nil, nil, nil
}
